package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/internal/delivery"
	"github.com/koorzenb/notification-scheduler-sub001/internal/eventbus"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

var (
	// ErrNotRunning is returned by every operation invoked before Start or
	// after Stop.
	ErrNotRunning = errors.New("engine not running")
	// ErrNotFound is returned by Cancel for an unknown id.
	ErrNotFound = errors.New("announcement not found")
)

// Status is a lifecycle transition of one announcement.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusFiring    Status = "firing"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StatusEvent is the bus payload for every transition. Event.Type on the bus
// is "announcement.<status>".
type StatusEvent struct {
	ID       string
	Status   Status
	At       time.Time
	Content  string
	Error    string
	Metadata map[string]any
}

func eventType(st Status) string { return "announcement." + string(st) }

// Config controls the engine.
type Config struct {
	Timezone  string // IANA TZ, e.g. "America/Halifax"
	Limits    announce.Limits
	Workers   int
	QueueSize int
}

type fireJob struct {
	a       announce.Announcement
	firedAt time.Time
}

// Service schedules announcements and drives their lifecycle. One-shot
// timers reference items by id plus a version counter, so cancellation
// before fire is a version check rather than pointer invalidation.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	cfg     Config
	loc     *time.Location
	store   *announce.Store
	bus     eventbus.Bus
	deliver delivery.Deliverer

	running bool
	timers  map[string]*time.Timer
	vers    map[string]uint64
	idSeq   atomic.Uint64

	queue     chan fireJob
	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}
