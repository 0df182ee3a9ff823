package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateState_FailureReturnsToIdle(t *testing.T) {
	s := InitialState()
	require.Equal(t, GateIdle, s.Status())

	s, err := s.OnSubmit()
	require.NoError(t, err)
	assert.Equal(t, GateBusy, s.Status())

	_, err = s.OnSubmit()
	assert.ErrorIs(t, err, ErrGateBusy)

	s, err = s.OnFailure()
	require.NoError(t, err)
	assert.Equal(t, GateIdle, s.Status())
}

func TestGateState_SuccessIsTerminal(t *testing.T) {
	s, err := InitialState().OnSubmit()
	require.NoError(t, err)
	s, err = s.OnSuccess()
	require.NoError(t, err)
	assert.Equal(t, GateClosed, s.Status())

	_, err = s.OnSubmit()
	assert.ErrorIs(t, err, ErrGateClosed)
	_, err = s.OnFailure()
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestGateState_IdleRejectsSettlement(t *testing.T) {
	_, err := InitialState().OnSuccess()
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = InitialState().OnFailure()
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}
