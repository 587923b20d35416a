package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/koorzenb/notification-scheduler-sub001/internal/announce"
	"github.com/koorzenb/notification-scheduler-sub001/internal/recurrence"
	"github.com/koorzenb/notification-scheduler-sub001/pkg/logx"
)

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 11, 25, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   announce.Announcement
	}{
		{
			"one-time minimal",
			announce.Announcement{ID: "a1", Content: "standup", At: at, Active: true},
		},
		{
			"one-time retired with metadata",
			announce.Announcement{
				ID: "a2", Content: "done", At: at, Active: false,
				Metadata: map[string]any{"room": "main", "volume": 0.5},
			},
		},
		{
			"daily recurring",
			announce.Announcement{
				ID: "a3", Content: "coffee", At: at, Active: true,
				Rule: recurrence.Daily, TimeOfDay: recurrence.TimeOfDay{Hour: 9},
			},
		},
		{
			"custom days with nested metadata",
			announce.Announcement{
				ID: "a4", Content: "gym", At: at, Active: true,
				Rule:      recurrence.Custom,
				Days:      []int{1, 3, 5, 7},
				TimeOfDay: recurrence.TimeOfDay{Hour: 6, Minute: 30},
				Metadata: map[string]any{
					"tags":  []any{"health", "morning"},
					"voice": map[string]any{"rate": 0.5, "pitch": 0.5},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := EncodeRecord(tt.in)

			// The persisted form must survive JSON too, not just the struct.
			b, err := json.Marshal(r)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var back Record
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			got, err := DecodeRecord(back, time.UTC)
			if err != nil {
				t.Fatalf("DecodeRecord: %v", err)
			}
			if !got.At.Equal(tt.in.At) {
				t.Fatalf("At = %v, want %v", got.At, tt.in.At)
			}
			got.At, tt.in.At = time.Time{}, time.Time{}
			// JSON numbers come back as float64; normalize before comparing.
			wantMeta, _ := json.Marshal(tt.in.Metadata)
			gotMeta, _ := json.Marshal(got.Metadata)
			if string(wantMeta) != string(gotMeta) {
				t.Fatalf("metadata = %s, want %s", gotMeta, wantMeta)
			}
			got.Metadata, tt.in.Metadata = nil, nil
			if !reflect.DeepEqual(got, tt.in) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tt.in)
			}
		})
	}
}

func TestRecordNullFieldsStayAbsent(t *testing.T) {
	t.Parallel()
	r := EncodeRecord(announce.Announcement{
		ID: "a1", Content: "x",
		At: time.Date(2025, 11, 25, 9, 0, 0, 0, time.UTC), Active: true,
	})
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"recurrence", "custom_days", "time_of_day", "metadata"} {
		if _, ok := raw[key]; ok {
			t.Fatalf("one-time record serialized %q", key)
		}
	}
}

func TestDecodeRecordRejectsCorruptRows(t *testing.T) {
	t.Parallel()
	none := int(recurrence.None)
	daily := int(recurrence.Daily)
	custom := int(recurrence.Custom)

	tests := []struct {
		name string
		r    Record
	}{
		{"non-recurring rule index", Record{ID: "a", Content: "x", Recurrence: &none}},
		{"missing time of day", Record{ID: "a", Content: "x", Recurrence: &daily}},
		{"bad time of day", Record{ID: "a", Content: "x", Recurrence: &daily, TimeOfDay: "25:00"}},
		{"custom without days", Record{ID: "a", Content: "x", Recurrence: &custom, TimeOfDay: "08:00"}},
		{"custom with bad days", Record{ID: "a", Content: "x", Recurrence: &custom, TimeOfDay: "08:00", CustomDays: []int{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRecord(tt.r, time.UTC); err == nil {
				t.Fatal("expected decode error")
			}
		})
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "announcements.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	// Missing file is an empty snapshot, not an error.
	got, err := st.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("fresh store returned %d records", len(got))
	}

	daily := int(recurrence.Daily)
	want := []Record{
		{ID: "a1", Content: "standup", ScheduledAtMS: 1764061200000, Active: true},
		{ID: "a2", Content: "coffee", ScheduledAtMS: 1764061200000, Recurrence: &daily, TimeOfDay: "09:00", Active: true},
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

	// A later save fully replaces the previous snapshot.
	if err := st.SaveSnapshot(ctx, want[:1]); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err = st.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("snapshot after overwrite = %+v", got)
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) returned a store", driver)
		}
	}
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
