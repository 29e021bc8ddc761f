package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/hvplane/internal/apierr"
)

// mockObserver records events.
type mockObserver struct {
	events []Event
}

func (m *mockObserver) Event(e Event)                         { m.events = append(m.events, e) }
func (m *mockObserver) WithFields(map[string]string) Observer { return m }

func (m *mockObserver) types() []EventType {
	out := make([]EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type funcPhase struct {
	name string
	fn   func(*Context) error
}

func (p funcPhase) Name() string                 { return p.name }
func (p funcPhase) Provision(ctx *Context) error { return p.fn(ctx) }

func TestRunPhases_Order(t *testing.T) {
	t.Parallel()

	var executed []string
	phase := func(name string) Phase {
		return funcPhase{name: name, fn: func(*Context) error {
			executed = append(executed, name)
			return nil
		}}
	}

	obs := &mockObserver{}
	ctx := &Context{Context: context.Background(), Observer: obs, State: NewState()}

	require.NoError(t, RunPhases(ctx, []Phase{phase("a"), phase("b"), phase("c")}))
	assert.Equal(t, []string{"a", "b", "c"}, executed)
	assert.Equal(t, EventProgress, obs.events[len(obs.events)-1].Type)
}

func TestRunPhases_StopsOnError(t *testing.T) {
	t.Parallel()

	var executed []string
	obs := &mockObserver{}
	ctx := &Context{Context: context.Background(), Observer: obs, State: NewState()}

	phases := []Phase{
		funcPhase{name: "first", fn: func(*Context) error { executed = append(executed, "first"); return nil }},
		funcPhase{name: "second", fn: func(*Context) error {
			return apierr.Wrap(apierr.KindUnreachable, "proxmox.GET /nodes", errors.New("refused"))
		}},
		funcPhase{name: "third", fn: func(*Context) error { executed = append(executed, "third"); return nil }},
	}

	err := RunPhases(ctx, phases)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second phase failed")
	assert.True(t, apierr.IsKind(err, apierr.KindUnreachable), "kind survives phase wrapping")
	assert.Equal(t, []string{"first"}, executed)
	assert.Equal(t, []EventType{EventPhaseStarted, EventPhaseCompleted, EventPhaseStarted, EventPhaseFailed}, obs.types())
}

func TestDefaultPhases(t *testing.T) {
	t.Parallel()

	var names []string
	for _, p := range DefaultPhases() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"validation", "session", "placement", "allocation", "create", "power-on", "record"}, names)
}
