package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

func TestSQLiteStoreSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "announcements.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	got, err := st.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("fresh store returned %d records", len(got))
	}

	custom := int(recurrence.Custom)
	want := []Record{
		{ID: "a1", Content: "standup", ScheduledAtMS: 1764061200000, Active: true},
		{
			ID: "a2", Content: "gym", ScheduledAtMS: 1764075600000, Active: true,
			Recurrence: &custom, CustomDays: []int{1, 3, 5}, TimeOfDay: "06:30",
			Metadata: map[string]any{"room": "main"},
		},
	}
	if err := st.SaveSnapshot(ctx, want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err = st.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("snapshot mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Saving again replaces rows instead of appending.
	if err := st.SaveSnapshot(ctx, want[1:]); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err = st.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a2" {
		t.Fatalf("snapshot after overwrite = %+v", got)
	}
}
