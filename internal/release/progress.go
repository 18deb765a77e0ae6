package release

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Progress is a point-in-time view of a release.
type Progress struct {
	ReleaseID       string    `json:"release_id"`
	Name            string    `json:"name"`
	Status          Status    `json:"status"`
	Percentage      float64   `json:"percentage"`
	CurrentStep     string    `json:"current_step"`
	TotalImages     int       `json:"total_images"`
	ProcessedImages int       `json:"processed_images"`
	GeneratedImages int       `json:"generated_images"`
	FailedImages    int       `json:"failed_images"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Tracker holds the live progress of every release started by an
// orchestrator. Readers get copies.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*Progress
	now     func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*Progress), now: time.Now}
}

// Get returns a copy of the progress of id.
func (t *Tracker) Get(id string) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[id]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// List returns copies of every entry ordered by id.
func (t *Tracker) List() []Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Progress, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReleaseID < out[j].ReleaseID })
	return out
}

// Active reports whether id is tracked and not terminal.
func (t *Tracker) Active(id string) bool {
	p, ok := t.Get(id)
	return ok && !p.Status.Terminal()
}

// Forget drops a terminal entry. Running releases are kept.
func (t *Tracker) Forget(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok || !p.Status.Terminal() {
		return false
	}
	delete(t.entries, id)
	return true
}

func (t *Tracker) create(id, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &Progress{
		ReleaseID:   id,
		Name:        name,
		Status:      StatusPending,
		CurrentStep: StatusPending.Step(),
		UpdatedAt:   t.now(),
	}
}

// transition moves id to status. Illegal moves are rejected.
func (t *Tracker) transition(id string, to Status, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok {
		return fmt.Errorf("release %s is not tracked", id)
	}
	if !p.Status.CanTransition(to) {
		return fmt.Errorf("release %s: illegal transition %s -> %s", id, p.Status, to)
	}
	p.Status = to
	p.CurrentStep = to.Step()
	if to == StatusCompleted {
		p.Percentage = 100
	}
	if errMsg != "" {
		p.ErrorMessage = errMsg
	}
	p.UpdatedAt = t.now()
	return nil
}

// counts records unit progress. The percentage never decreases.
func (t *Tracker) counts(id string, total, processed, generated, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok || p.Status.Terminal() {
		return
	}
	p.TotalImages = total
	p.ProcessedImages = processed
	p.GeneratedImages = generated
	p.FailedImages = failed
	if total > 0 {
		if pct := float64(processed) / float64(total) * 100; pct > p.Percentage {
			p.Percentage = pct
		}
	}
	p.UpdatedAt = t.now()
}
