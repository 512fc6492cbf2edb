package negotiator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateOfferCreated, true},
		{StateIdle, StateOfferReceived, true},
		{StateIdle, StateConnected, false},
		{StateOfferCreated, StateOfferSent, true},
		{StateOfferSent, StateAnswerReceived, true},
		{StateOfferSent, StateOfferReceived, false},
		{StateOfferReceived, StateAnswerSent, true},
		{StateAnswerSent, StateConnected, true},
		{StateAnswerReceived, StateCandidatesExchanging, true},
		{StateCandidatesExchanging, StateConnected, true},
		{StateConnected, StateCandidatesExchanging, false},
		{StateConnected, StateClosed, true},
		{StateOfferSent, StateFailed, true},
		{StateClosed, StateIdle, false},
		{StateFailed, StateClosed, false},
		{StateClosed, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, canTransition(tt.from, tt.to))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "candidates_exchanging", StateCandidatesExchanging.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateConnected.Terminal())
}
