package indexer

import "marketScope/internal/metrics"

// Phase is where a runner is within a pass.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseCommitting Phase = "committing"
)

var allPhases = []string{string(PhaseIdle), string(PhaseFetching), string(PhaseCommitting)}

// Phase reports the runner's current phase.
func (r *Runner) Phase() Phase {
	r.phaseMu.Lock()
	defer r.phaseMu.Unlock()
	return r.phase
}

func (r *Runner) setPhase(phase Phase) {
	r.phaseMu.Lock()
	r.phase = phase
	r.phaseMu.Unlock()
	metrics.SetPassPhase(string(phase), allPhases)
}
