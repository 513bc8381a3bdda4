package invalidation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	go_json "github.com/goccy/go-json"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	published  []published
	publishErr error
	flushErr   error
	drained    bool
}

func (f *fakePublisher) Publish(subj string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{subject: subj, data: data})
	return nil
}

func (f *fakePublisher) FlushWithContext(ctx context.Context) error {
	return f.flushErr
}

func (f *fakePublisher) Drain() error {
	f.drained = true
	return nil
}

func TestNATSBackend_Subjects(t *testing.T) {
	conn := &fakePublisher{}
	backend := newNATSBackend(conn, "revalidate", newTestLogger())
	backend.now = func() time.Time { return fixedNow }

	ctx := context.Background()
	if err := backend.InvalidateTag(ctx, "settings"); err != nil {
		t.Fatalf("InvalidateTag() error = %v", err)
	}
	if err := backend.InvalidatePath(ctx, "/blog/hello", models.PathScopePage); err != nil {
		t.Fatalf("InvalidatePath() error = %v", err)
	}

	if len(conn.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(conn.published))
	}

	tests := []struct {
		subject string
		want    Message
	}{
		{
			subject: "revalidate.tag",
			want:    Message{Type: models.TargetKindTag, Tag: "settings", Timestamp: fixedNow.UnixMilli()},
		},
		{
			subject: "revalidate.path",
			want:    Message{Type: models.TargetKindPath, Path: "/blog/hello", Scope: models.PathScopePage, Timestamp: fixedNow.UnixMilli()},
		},
	}

	for i, tt := range tests {
		got := conn.published[i]
		if got.subject != tt.subject {
			t.Errorf("message %d subject = %q, want %q", i, got.subject, tt.subject)
		}
		var msg Message
		if err := go_json.Unmarshal(got.data, &msg); err != nil {
			t.Fatalf("decode message %d: %v", i, err)
		}
		if msg != tt.want {
			t.Errorf("message %d = %+v, want %+v", i, msg, tt.want)
		}
	}
}

func TestNATSBackend_Failures(t *testing.T) {
	tests := []struct {
		name string
		conn *fakePublisher
	}{
		{name: "publish fails", conn: &fakePublisher{publishErr: errors.New("connection closed")}},
		{name: "flush fails", conn: &fakePublisher{flushErr: errors.New("timeout")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newNATSBackend(tt.conn, "revalidate", newTestLogger())

			err := backend.InvalidateTag(context.Background(), "post")
			var netErr *NetworkError
			if !errors.As(err, &netErr) {
				t.Errorf("InvalidateTag() error = %v, want *NetworkError", err)
			}
		})
	}
}

func TestNATSBackend_CanceledContext(t *testing.T) {
	conn := &fakePublisher{}
	backend := newNATSBackend(conn, "revalidate", newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := backend.InvalidateTag(ctx, "post"); !errors.Is(err, context.Canceled) {
		t.Errorf("InvalidateTag() error = %v, want context.Canceled", err)
	}
	if len(conn.published) != 0 {
		t.Errorf("published %d messages after cancel, want 0", len(conn.published))
	}
}

func TestNATSBackend_Close(t *testing.T) {
	conn := &fakePublisher{}
	backend := newNATSBackend(conn, "revalidate", newTestLogger())

	if err := backend.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !conn.drained {
		t.Error("Close() did not drain the connection")
	}
}

func TestNewNATSBackend_RequiresURL(t *testing.T) {
	_, err := NewNATSBackend(config.NATSConfig{}, newTestLogger())

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("NewNATSBackend() error = %v, want *ConfigurationError", err)
	}
}
