package models

import "fmt"

// Property lifecycle states. The mls_* states belong to listings first
// observed through the MLS feed rather than created locally.
const (
	StateDraft          = "draft"
	StateInternalReview = "internal_review"
	StateActive         = "active"
	StateModeration     = "moderation"
	StateLegalReview    = "legal_review"
	StatePublished      = "published"
	StateRejected       = "rejected"
	StateUnpublished    = "unpublished"
	StateSold           = "sold"
	StateArchived       = "archived"
	StateMLSListed      = "mls_listed"
	StateMLSRemoved     = "mls_removed"
	StateMLSSold        = "mls_sold"
)

// AllowedTransitions defines, for each state, the set of states a user
// action may move it to. System code (webhook handlers, pull import) goes
// through ForceTransition and is not bound by this table.
var AllowedTransitions = map[string][]string{
	StateDraft:          {StateInternalReview},
	StateInternalReview: {StateDraft, StateActive},
	StateActive:         {StateModeration, StateSold, StateUnpublished},
	StateModeration:     {StateLegalReview, StateRejected, StateActive},
	StateLegalReview:    {StatePublished, StateRejected, StateModeration, StateActive},
	StatePublished:      {StateUnpublished, StateSold, StateArchived, StateActive},
	StateRejected:       {StateInternalReview},
	StateUnpublished:    {StateActive},
	StateArchived:       {},
	StateSold:           {},
	StateMLSListed:      {StateMLSRemoved, StateMLSSold},
	StateMLSRemoved:     {},
	StateMLSSold:        {},
}

// ErrInvalidTransition names both the source and target state.
type ErrInvalidTransition struct {
	From string
	To   string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("transition from %q to %q is not allowed, use the matching action", e.From, e.To)
}

// CanTransition reports whether the user-facing transition table permits
// moving from one state to another.
func CanTransition(from, to string) bool {
	for _, allowed := range AllowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition sets the property state after checking the transition table.
func (p *Property) Transition(to string) error {
	if !CanTransition(p.State, to) {
		return &ErrInvalidTransition{From: p.State, To: to}
	}
	p.State = to
	return nil
}

// ForceTransition sets the state without consulting the transition table.
// Reserved for system code reacting to remote events; never exposed to
// interactive callers.
func (p *Property) ForceTransition(to string) {
	p.State = to
}
