package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Stage decision states.
type State int

const (
	NotStarted State = iota
	Skipped
	Ran
	Failed
)

func (s State) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Ran:
		return "ran"
	case Failed:
		return "failed"
	}
	return "not started"
}

// ErrStageFailed marks a stage whose work function or external tool
// failed; the run must stop (fail-fast, no partial stage commit).
var ErrStageFailed = errors.New("stage failed")

// Stage is one resumable unit of the pipeline.
type Stage struct {
	// Name identifies the stage in logs and error messages.
	Name string

	// Artifacts are the outputs whose presence means the stage is done.
	Artifacts []Artifact

	// Work produces the artifacts. It runs only when at least one
	// artifact is missing or empty.
	Work func(ctx context.Context) error

	// Remedy is an operator-facing hint logged when the stage fails.
	Remedy string
}

// Gate runs stages, skipping the ones whose artifacts already exist.
type Gate struct {
	log    *zap.SugaredLogger
	states map[string]State
}

// NewGate returns a gate logging through the given logger.
func NewGate(log *zap.SugaredLogger) *Gate {
	return &Gate{log: log, states: map[string]State{}}
}

// State reports the last decision made for a stage name.
func (g *Gate) State(name string) State {
	return g.states[name]
}

// Run executes one stage behind the artifact check. On failure every
// partially written artifact is deleted before the error is returned,
// so the next invocation re-runs the stage instead of trusting a
// truncated file.
func (g *Gate) Run(ctx context.Context, st Stage) error {
	if done(st.Artifacts) {
		g.states[st.Name] = Skipped
		g.log.Infof("Stage %s: output present, skipping.", st.Name)
		return nil
	}

	g.log.Infof("Stage %s: running.", st.Name)
	if err := st.Work(ctx); err != nil {
		g.states[st.Name] = Failed
		for _, a := range st.Artifacts {
			if rmErr := a.Remove(); rmErr != nil {
				g.log.Errorf("Stage %s: %v", st.Name, rmErr)
			}
		}
		if st.Remedy != "" {
			g.log.Errorf("Stage %s failed. %s", st.Name, st.Remedy)
		}
		return fmt.Errorf("stage %s: %w: %v", st.Name, ErrStageFailed, err)
	}

	g.states[st.Name] = Ran
	return nil
}

func done(artifacts []Artifact) bool {
	if len(artifacts) == 0 {
		return false
	}
	for _, a := range artifacts {
		if !a.Done() {
			return false
		}
	}
	return true
}
