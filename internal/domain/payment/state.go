package payment

import "errors"

var (
	ErrGateBusy               = errors.New("payment: an attempt is already in flight")
	ErrGateClosed             = errors.New("payment: gate already unlocked")
	ErrInvalidStateTransition = errors.New("payment: invalid gate state transition")
)

type GateStatus string

const (
	GateIdle   GateStatus = "idle"
	GateBusy   GateStatus = "busy"
	GateClosed GateStatus = "closed"
)

// GateState implements the state pattern for the gate lifecycle:
// Idle -> Busy -> {Idle, Closed}.
type GateState interface {
	Status() GateStatus
	OnSubmit() (GateState, error)
	OnFailure() (GateState, error)
	OnSuccess() (GateState, error)
}

// InitialState is the state every gate starts in.
func InitialState() GateState { return idleState{} }

type idleState struct{}

func (idleState) Status() GateStatus { return GateIdle }

func (idleState) OnSubmit() (GateState, error) { return busyState{}, nil }

func (idleState) OnFailure() (GateState, error) { return nil, ErrInvalidStateTransition }

func (idleState) OnSuccess() (GateState, error) { return nil, ErrInvalidStateTransition }

type busyState struct{}

func (busyState) Status() GateStatus { return GateBusy }

func (busyState) OnSubmit() (GateState, error) { return nil, ErrGateBusy }

func (busyState) OnFailure() (GateState, error) { return idleState{}, nil }

func (busyState) OnSuccess() (GateState, error) { return closedState{}, nil }

type closedState struct{}

func (closedState) Status() GateStatus { return GateClosed }

func (closedState) OnSubmit() (GateState, error) { return nil, ErrGateClosed }

func (closedState) OnFailure() (GateState, error) { return nil, ErrInvalidStateTransition }

func (closedState) OnSuccess() (GateState, error) { return closedState{}, nil }
