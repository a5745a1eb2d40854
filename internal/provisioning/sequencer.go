package provisioning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/testnet-deploy/internal/deployment"
)

// Stage is one configuration backend invocation targeting one role.
type Stage struct {
	Name      string
	Role      deployment.RoleCategory
	Procedure string

	// DependsOn names a role whose stages must run, and succeed, first. A
	// stage whose dependency failed is skipped.
	DependsOn deployment.RoleCategory

	// NeedsEntryPoint resolves the network entry point before the stage runs.
	NeedsEntryPoint bool

	// AwaitNewMachines gates the stage on new machines of Role becoming
	// reachable.
	AwaitNewMachines bool

	Run func(ctx context.Context, ep EntryPoint) error
}

// StageStatus is the result of a single stage.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageOutcome records what happened to one stage.
type StageOutcome struct {
	Stage    string
	Role     deployment.RoleCategory
	Status   StageStatus
	Err      error
	Duration time.Duration
}

// SequenceReport aggregates the outcomes of a run.
type SequenceReport struct {
	Outcomes       []StageOutcome
	PartialFailure bool
}

// Failed returns the outcomes that did not succeed.
func (r *SequenceReport) Failed() []StageOutcome {
	var out []StageOutcome
	for _, o := range r.Outcomes {
		if o.Status != StageSucceeded {
			out = append(out, o)
		}
	}
	return out
}

// Summary renders one line per stage.
func (r *SequenceReport) Summary() string {
	var b strings.Builder
	for i, o := range r.Outcomes {
		fmt.Fprintf(&b, "%d. %s [%s]: %s", i+1, o.Stage, o.Role, o.Status)
		if o.Err != nil {
			fmt.Fprintf(&b, " (%v)", o.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Sequencer runs stages strictly in order. Stage failures are recorded and
// the run continues; gate and entry point failures abort it.
type Sequencer struct {
	Gate        MachineGate
	EntryPoints EntryPointResolver
	// Environment identifies the deployment kind and, for bootstrap
	// deployments, the peer of the running network.
	Environment deployment.EnvironmentDetails
	// Previous is the snapshot new machines are diffed against.
	Previous *deployment.Snapshot
	Observer Observer
	// Banner is called before each stage with its 1-based position.
	Banner func(n, total int, name string)
}

// ValidateOrder checks that no stage runs before a stage of the role it
// depends on.
func ValidateOrder(stages []Stage) error {
	for i, st := range stages {
		if st.DependsOn == "" {
			continue
		}
		for _, later := range stages[i+1:] {
			if later.Role == st.DependsOn {
				return fmt.Errorf("%w: %q depends on %s, scheduled later by %q", ErrStageOrder, st.Name, st.DependsOn, later.Name)
			}
		}
	}
	return nil
}

// Run executes stages in the supplied order. The returned error is non-nil
// only for fatal conditions; recoverable failures are in the report.
func (s *Sequencer) Run(ctx context.Context, stages []Stage) (*SequenceReport, error) {
	if err := ValidateOrder(stages); err != nil {
		return nil, err
	}

	report := &SequenceReport{}
	failedRoles := make(map[deployment.RoleCategory]bool)
	var entry *EntryPoint

	for i, st := range stages {
		if err := ctx.Err(); err != nil {
			return report, &StageError{Stage: st.Name, Err: err}
		}
		if s.Banner != nil {
			s.Banner(i+1, len(stages), st.Name)
		}

		if st.DependsOn != "" && failedRoles[st.DependsOn] {
			failedRoles[st.Role] = true
			report.PartialFailure = true
			report.Outcomes = append(report.Outcomes, StageOutcome{Stage: st.Name, Role: st.Role, Status: StageSkipped})
			s.event(EventStageSkipped, st, fmt.Sprintf("skipped: %s stage failed", st.DependsOn))
			continue
		}

		if st.AwaitNewMachines {
			if _, err := s.Gate.AwaitNewMachines(ctx, st.Role, s.Previous); err != nil {
				s.event(EventPhaseFailed, st, err.Error())
				return report, &StageError{Stage: st.Name, Err: err}
			}
		}

		if st.NeedsEntryPoint && entry == nil {
			ep, err := s.EntryPoints.Resolve(ctx, s.Environment)
			if err != nil {
				s.event(EventPhaseFailed, st, err.Error())
				return report, err
			}
			entry = &ep
		}
		var ep EntryPoint
		if entry != nil {
			ep = *entry
		}

		s.event(EventStageStarted, st, "starting")
		start := time.Now()
		err := st.Run(ctx, ep)
		outcome := StageOutcome{Stage: st.Name, Role: st.Role, Status: StageSucceeded, Duration: time.Since(start)}
		if err != nil {
			outcome.Status = StageFailed
			outcome.Err = err
			failedRoles[st.Role] = true
			report.PartialFailure = true
			s.event(EventStageFailed, st, fmt.Sprintf("failed: %v", err))
		} else {
			s.event(EventStageCompleted, st, fmt.Sprintf("completed in %v", outcome.Duration.Round(time.Millisecond)))
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}

func (s *Sequencer) event(t EventType, st Stage, msg string) {
	if s.Observer == nil {
		return
	}
	s.Observer.Event(Event{
		Type:    t,
		Phase:   st.Name,
		Message: msg,
		Fields:  map[string]string{"role": string(st.Role)},
	})
}
