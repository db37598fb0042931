// Package store persists job records, status transitions, events and results.
//
// Every record is written once. Writers reject a second write of the same
// (job, kind, seq) key with ErrExists, which is what makes job ids unique
// across restarts when the backend is durable.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrExists is returned when a record key has already been written
var ErrExists = errors.New("record already exists")

// Record kinds
const (
	KindJob    = "job"
	KindStatus = "status"
	KindEvent  = "event"
	KindResult = "result"
)

// Record is one immutable entry in a job's history
type Record struct {
	JobID   string
	Seq     int
	Kind    string
	Payload []byte
}

// Writer persists records with create-if-absent semantics
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// Key returns the storage key of rec below prefix, e.g.
// /hostcheck/jobs/job-1/event/0000000003
func Key(prefix string, rec Record) string {
	return fmt.Sprintf("%s/jobs/%s/%s/%010d", prefix, rec.JobID, rec.Kind, rec.Seq)
}

// Memory is an in-process Writer used by tests and the single-shot CLI
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := Key("", rec)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrExists)
	}
	payload := make([]byte, len(rec.Payload))
	copy(payload, rec.Payload)
	rec.Payload = payload
	m.records[key] = rec
	return nil
}

// Records returns a job's records ordered by kind then sequence
func (m *Memory) Records(jobID string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.records {
		if rec.JobID == jobID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
