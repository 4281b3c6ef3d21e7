// Package statemachine hosts durable finite state machines. A model owns
// one data bag whose currentState field is the single source of truth
// for resumption; every successful transition moves it forward and the
// snapshot is persisted to the KVS under the workflow's correlation key.
package statemachine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/metrics"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"go.uber.org/zap"
)

type State string

// Errored is the universal terminal failure state, reachable from any
// state through the error transition the engine injects into every spec.
const Errored State = "errored"

const ErrorTransitionName string = "error"

// StateData is implemented by every workflow data bag, normally by
// embedding Base.
type StateData interface {
	GetCurrentState() State
	SetCurrentState(State)
}

type Base struct {
	CurrentState State `json:"currentState"`
}

func (b *Base) GetCurrentState() State {
	return b.CurrentState
}

func (b *Base) SetCurrentState(s State) {
	b.CurrentState = s
}

type Handler[T StateData] func(ctx context.Context, m *Model[T]) error

type Transition struct {
	Name string
	// From lists the states the transition may fire in; empty means any.
	From []State
	To   State
}

type Spec[T StateData] struct {
	Name        string
	Initial     State
	Transitions []Transition
	Handlers    map[string]Handler[T]
}

type Config struct {
	Key string
	KVS persistence.KVS
}

type MalformedSpecError struct {
	Reason string
}

func (e MalformedSpecError) Error() string {
	return fmt.Sprintf("malformed state machine spec: %s", e.Reason)
}

type TransitionInFlightError struct {
	Requested string
}

func (e TransitionInFlightError) Error() string {
	return fmt.Sprintf("transition %s requested while another transition is in flight", e.Requested)
}

type InvalidTransitionError struct {
	Name  string
	State State
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s is not allowed from state %s", e.Name, e.State)
}

type Model[T StateData] struct {
	Data T

	config      Config
	spec        Spec[T]
	transitions map[string]Transition
	// pending guards against two transitions running on one instance.
	// The error transition bypasses it so a stuck step can be abandoned.
	pending atomic.Bool
	// errored is set once the error transition completes; a transition
	// still in flight at that point must not overwrite the Errored state.
	errored atomic.Bool
}

func (s *Spec[T]) validate() error {
	if s.Initial == "" {
		return MalformedSpecError{Reason: "initial state is empty"}
	}
	seen := make(map[string]bool)
	for _, t := range s.Transitions {
		if t.Name == "" {
			return MalformedSpecError{Reason: "transition with empty name"}
		}
		if seen[t.Name] {
			return MalformedSpecError{Reason: fmt.Sprintf("duplicate transition name %s", t.Name)}
		}
		seen[t.Name] = true
	}
	// a source state must be enterable, either as the initial state or as
	// some transition's target. Targets themselves may be terminal.
	reachable := map[State]bool{s.Initial: true, Errored: true}
	for _, t := range s.Transitions {
		reachable[t.To] = true
	}
	for _, t := range s.Transitions {
		for _, from := range t.From {
			if !reachable[from] {
				return MalformedSpecError{Reason: fmt.Sprintf("transition %s fires from unreachable state %s", t.Name, from)}
			}
		}
	}
	return nil
}

// New builds a model around data. The machine settles into the data's
// persisted currentState by direct assignment; when the data is fresh it
// starts from the spec's initial state.
func New[T StateData](data T, config Config, spec Spec[T]) (*Model[T], error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	transitions := make(map[string]Transition, len(spec.Transitions)+1)
	for _, t := range spec.Transitions {
		transitions[t.Name] = t
	}
	if _, ok := transitions[ErrorTransitionName]; !ok {
		transitions[ErrorTransitionName] = Transition{Name: ErrorTransitionName, To: Errored}
	}
	if data.GetCurrentState() == "" {
		data.SetCurrentState(spec.Initial)
	}
	return &Model[T]{
		Data:        data,
		config:      config,
		spec:        spec,
		transitions: transitions,
	}, nil
}

// LoadFromKVS rehydrates a model persisted under config.Key. The data
// argument is the decode target, a fresh zero value of the workflow's
// data bag.
func LoadFromKVS[T StateData](ctx context.Context, data T, config Config, spec Spec[T]) (*Model[T], error) {
	raw, err := config.KVS.Get(ctx, config.Key)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, persistence.NotFoundError{Key: config.Key}
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("error decoding workflow data for key %s: %w", config.Key, err)
	}
	return New(data, config, spec)
}

func (m *Model[T]) SaveToKVS(ctx context.Context) error {
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return err
	}
	return m.config.KVS.Set(ctx, m.config.Key, raw)
}

func (m *Model[T]) State() State {
	return m.Data.GetCurrentState()
}

func (m *Model[T]) Key() string {
	return m.config.Key
}

// Transition runs the named transition's handler and, on success, moves
// currentState to its target. On handler failure the state is unchanged
// and the caller decides whether to run the error transition. A second
// transition requested while one is in flight is rejected unless it is
// the error transition.
func (m *Model[T]) Transition(ctx context.Context, name string) error {
	t, ok := m.transitions[name]
	if !ok {
		return fmt.Errorf("unknown transition %s in workflow %s", name, m.spec.Name)
	}
	acquired := m.pending.CompareAndSwap(false, true)
	if !acquired && name != ErrorTransitionName {
		return TransitionInFlightError{Requested: name}
	}
	if acquired {
		defer m.pending.Store(false)
	}
	current := m.Data.GetCurrentState()
	if len(t.From) > 0 && !stateIn(current, t.From) {
		return InvalidTransitionError{Name: name, State: current}
	}
	if handler, ok := m.spec.Handlers[name]; ok && handler != nil {
		if err := handler(ctx, m); err != nil {
			metrics.RecordTransition(m.spec.Name, name, err)
			return err
		}
	}
	if name == ErrorTransitionName {
		m.errored.Store(true)
	} else if m.errored.Load() {
		// the error transition fired while this handler ran; the
		// Errored outcome stands
		return nil
	}
	m.Data.SetCurrentState(t.To)
	metrics.RecordTransition(m.spec.Name, name, nil)
	logger.Debug("transition complete",
		zap.String("workflow", m.spec.Name),
		zap.String("transition", name),
		zap.String("state", string(t.To)))
	return nil
}

// JumpToError forces the universal error transition, abandoning any
// in-flight transition.
func (m *Model[T]) JumpToError(ctx context.Context) error {
	return m.Transition(ctx, ErrorTransitionName)
}

func stateIn(s State, states []State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
