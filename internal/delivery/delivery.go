// Package delivery holds the delivery collaborators the engine calls when an
// announcement fires. The engine treats delivery as fire-and-forget: one
// attempt, success or failure, no retry at this layer.
package delivery

import (
	"context"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

// Deliverer presents an announcement to the user. Implementations may block;
// the engine invokes them off the timer path and without holding its lock.
type Deliverer interface {
	Deliver(ctx context.Context, a announce.Announcement) error
}

// Speech carries text-to-speech presentation parameters. They are opaque to
// the engine and validated at startup (each in [0,1]).
type Speech struct {
	Rate   float64
	Pitch  float64
	Volume float64
}

// LogDeliverer writes the announcement to the log. It is the default
// collaborator and the stand-in for platforms without a notification surface.
type LogDeliverer struct {
	log    logx.Logger
	speech Speech
}

func NewLogDeliverer(log logx.Logger, speech Speech) *LogDeliverer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogDeliverer{log: log, speech: speech}
}

func (d *LogDeliverer) Deliver(ctx context.Context, a announce.Announcement) error {
	_ = ctx
	fields := []logx.Field{
		logx.String("id", a.ID),
		logx.String("content", a.Content),
		logx.Float64("speech_rate", d.speech.Rate),
	}
	if len(a.Metadata) > 0 {
		fields = append(fields, logx.Any("metadata", a.Metadata))
	}
	d.log.Info("announce", fields...)
	return nil
}
