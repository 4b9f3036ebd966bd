package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		to        string
		expectErr bool
	}{
		{"draft to internal review", StateDraft, StateInternalReview, false},
		{"internal review back to draft", StateInternalReview, StateDraft, false},
		{"internal review to active", StateInternalReview, StateActive, false},
		{"active to moderation", StateActive, StateModeration, false},
		{"moderation to legal review", StateModeration, StateLegalReview, false},
		{"legal review to published", StateLegalReview, StatePublished, false},
		{"published to sold", StatePublished, StateSold, false},
		{"rejected to internal review", StateRejected, StateInternalReview, false},
		{"unpublished to active", StateUnpublished, StateActive, false},
		{"mls listed to mls sold", StateMLSListed, StateMLSSold, false},

		{"draft straight to published", StateDraft, StatePublished, true},
		{"draft to moderation", StateDraft, StateModeration, true},
		{"sold is terminal", StateSold, StateActive, true},
		{"archived is terminal", StateArchived, StateActive, true},
		{"mls removed is terminal", StateMLSRemoved, StateMLSListed, true},
		{"mls listed cannot join local flow", StateMLSListed, StateActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Property{State: tt.from}
			err := p.Transition(tt.to)
			if tt.expectErr {
				assert.Error(t, err)
				assert.Equal(t, tt.from, p.State, "state must not change on a refused transition")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, p.State)
			}
		})
	}
}

func TestTransitionErrorNamesBothStates(t *testing.T) {
	p := &Property{State: StateDraft}
	err := p.Transition(StatePublished)
	require.Error(t, err)

	var transitionErr *ErrInvalidTransition
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StateDraft, transitionErr.From)
	assert.Equal(t, StatePublished, transitionErr.To)
	assert.Contains(t, err.Error(), "draft")
	assert.Contains(t, err.Error(), "published")
}

func TestForceTransitionBypassesTable(t *testing.T) {
	p := &Property{State: StateDraft}
	p.ForceTransition(StatePublished)
	assert.Equal(t, StatePublished, p.State)

	p.ForceTransition(StateMLSListed)
	assert.Equal(t, StateMLSListed, p.State)
}

func TestEveryStateHasTransitionEntry(t *testing.T) {
	states := []string{
		StateDraft, StateInternalReview, StateActive, StateModeration,
		StateLegalReview, StatePublished, StateRejected, StateUnpublished,
		StateSold, StateArchived, StateMLSListed, StateMLSRemoved, StateMLSSold,
	}
	for _, state := range states {
		_, ok := AllowedTransitions[state]
		assert.True(t, ok, "state %q missing from transition table", state)
	}
}
