package service

import (
	"sync"
	"time"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

// MutationState tracks an optimistic record through the pipeline.
type MutationState string

const (
	// StatePending: applied locally, durable write in flight.
	StatePending MutationState = "pending"
	// StateCommitted: durable write settled, record spliced to canonical.
	StateCommitted MutationState = "committed"
	// StateFailed: durable write rejected or timed out. The record stays
	// visible so the caller can retry or discard it deterministically.
	StateFailed MutationState = "failed"
)

// ViewRecord is one optimistic entity in the local view.
type ViewRecord struct {
	ID         string            `json:"id"`
	Collection domain.Collection `json:"collection"`
	State      MutationState     `json:"state"`
	Entity     any               `json:"entity"`
	Err        string            `json:"error,omitempty"`
	AppliedAt  time.Time         `json:"applied_at"`
}

// LocalView is the session-scoped in-memory mirror the UI reads: drafts
// appear here under temporary identifiers with zero latency, then get
// spliced for canonical records once the durable write settles.
type LocalView struct {
	mu      sync.RWMutex
	records map[string]*ViewRecord
}

// NewLocalView creates an empty local view. Its lifecycle is scoped to one
// session: constructed at session init, dropped at teardown.
func NewLocalView() *LocalView {
	return &LocalView{records: make(map[string]*ViewRecord)}
}

// Apply inserts an optimistic record under a temporary identifier.
func (v *LocalView) Apply(tempID string, collection domain.Collection, entity any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.records[tempID] = &ViewRecord{
		ID:         tempID,
		Collection: collection,
		State:      StatePending,
		Entity:     entity,
		AppliedAt:  time.Now(),
	}
}

// Splice replaces the temporary record with the canonical one (real id,
// server timestamps) after a successful durable write.
func (v *LocalView) Splice(tempID, canonicalID string, entity any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.records[tempID]
	if !ok {
		return
	}
	delete(v.records, tempID)
	rec.ID = canonicalID
	rec.State = StateCommitted
	rec.Entity = entity
	rec.Err = ""
	v.records[canonicalID] = rec
}

// MarkFailed flags a pending record whose durable write did not settle.
// The record remains visible under its temporary identifier.
func (v *LocalView) MarkFailed(tempID string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	rec, ok := v.records[tempID]
	if !ok {
		return
	}
	rec.State = StateFailed
	if err != nil {
		rec.Err = err.Error()
	}
}

// Get returns the record for an id (temporary or canonical).
func (v *LocalView) Get(id string) (*ViewRecord, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	rec, ok := v.records[id]
	return rec, ok
}

// Discard drops a record from the view. Used to clear failed records once
// the caller has given up on them.
func (v *LocalView) Discard(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.records, id)
}

// Failed lists all records whose durable write did not settle.
func (v *LocalView) Failed() []*ViewRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []*ViewRecord
	for _, rec := range v.records {
		if rec.State == StateFailed {
			out = append(out, rec)
		}
	}
	return out
}
