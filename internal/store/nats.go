package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the root of event subjects
const DefaultSubjectPrefix = "hostcheck.jobs"

// Mirror wraps a Writer and publishes every stored event record to NATS
// on <prefix>.<job_id>.events. The wrapped write happens first; a failed
// publish is reported but the record stays stored.
type Mirror struct {
	next   Writer
	conn   *nats.Conn
	prefix string
}

// NewMirror returns a Writer that mirrors events from next onto conn
func NewMirror(next Writer, conn *nats.Conn, prefix string) *Mirror {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Mirror{next: next, conn: conn, prefix: prefix}
}

// Subject returns the subject events of jobID are published on
func (m *Mirror) Subject(jobID string) string {
	return fmt.Sprintf("%s.%s.events", m.prefix, subjectToken(jobID))
}

func (m *Mirror) Write(ctx context.Context, rec Record) error {
	if err := m.next.Write(ctx, rec); err != nil {
		return err
	}
	if rec.Kind != KindEvent {
		return nil
	}
	if err := m.conn.Publish(m.Subject(rec.JobID), rec.Payload); err != nil {
		return fmt.Errorf("publish event %s/%d: %w", rec.JobID, rec.Seq, err)
	}
	return nil
}

// subjectToken keeps a job id inside a single subject token
func subjectToken(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, id)
}
