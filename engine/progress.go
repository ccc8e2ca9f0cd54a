package engine

import "sync"

// Phase names the stage a progress report belongs to.
type Phase string

const (
	// PhaseDownloading covers model download before translation can start.
	PhaseDownloading Phase = "downloading"
	// PhaseTranslating covers the translation pass itself.
	PhaseTranslating Phase = "translating"
)

// ProgressFunc receives phase-scoped progress in percent.
type ProgressFunc func(phase Phase, percent int)

// progress wraps a ProgressFunc with clamping and per-phase monotonicity,
// so out-of-order worker completions never make the number go backwards.
type progress struct {
	mu    sync.Mutex
	fn    ProgressFunc
	phase Phase
	last  int
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn}
}

func (p *progress) set(phase Phase, percent int) {
	if p == nil || p.fn == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	p.mu.Lock()
	if phase != p.phase {
		p.phase = phase
		p.last = 0
	}
	if percent < p.last {
		p.mu.Unlock()
		return
	}
	p.last = percent
	p.mu.Unlock()

	p.fn(phase, percent)
}

// finish reports 100% for the current phase.
func (p *progress) finish(phase Phase) {
	p.set(phase, 100)
}
