package ui

import (
	"sync"
	"time"
)

// ProgressTracker holds progress state across stages. Safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	item       string
	startTime  time.Time
	stageStart time.Time
	errors     []ErrorEvent
	warnings   []ErrorEvent

	// lastETA smooths the estimate between updates.
	lastETA time.Duration
}

// ProgressStats is a snapshot of the tracker.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	Rate       float64
	ETA        time.Duration
	Elapsed    time.Duration
	Item       string
	ErrorCount int
	WarnCount  int
}

// NewProgressTracker creates a tracker at the reading stage.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{stage: StageReading, startTime: now, stageStart: now}
}

// SetStage moves to stage with a known total (0 if unknown).
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.item = ""
	p.stageStart = time.Now()
	p.lastETA = 0
}

// Update records progress within the current stage.
func (p *ProgressTracker) Update(current int, item string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if item != "" {
		p.item = item
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Elapsed:    time.Since(p.startTime),
		Item:       p.item,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
	}
	if p.total > 0 {
		st.Progress = min(float64(p.current)/float64(p.total), 1)
	}
	if secs := time.Since(p.stageStart).Seconds(); secs > 0 {
		st.Rate = float64(p.current) / secs
	}
	st.ETA = p.eta(st.Rate)
	return st
}

// eta estimates the remaining time of the current stage with exponential
// smoothing. Callers hold p.mu.
func (p *ProgressTracker) eta(rate float64) time.Duration {
	if p.total == 0 || p.current == 0 || rate <= 0 || p.current >= p.total {
		return 0
	}
	raw := time.Duration(float64(p.total-p.current) / rate * float64(time.Second))
	if p.lastETA > 0 {
		raw = time.Duration(0.3*float64(raw) + 0.7*float64(p.lastETA))
	}
	p.lastETA = raw
	return raw
}

// Errors returns recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.warnings...)
}
