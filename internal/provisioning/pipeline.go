package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes all provisioning phases sequentially.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()

	for i, phase := range phases {
		phaseStart := time.Now()
		LogPhaseStart(ctx.Observer, phase.Name(), i+1, len(phases))

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, phase.Name(), err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, phase.Name(), time.Since(phaseStart))
	}

	ctx.Observer.Event(Event{
		Type:    EventProgress,
		Message: fmt.Sprintf("provisioning completed in %v", time.Since(start).Round(time.Millisecond)),
	})
	return nil
}

// DefaultPhases returns the creation pipeline in execution order.
func DefaultPhases() []Phase {
	return []Phase{
		NewValidationPhase(),
		&SessionPhase{},
		&PlacementPhase{},
		&AllocationPhase{},
		&CreatePhase{},
		&PowerOnPhase{},
		&RecordPhase{},
	}
}
