package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{DealStatePending, DealStateAccepted, true},
		{DealStatePending, DealStateRejected, true},
		{DealStateAccepted, DealStateAwaitingPayment, true},
		{DealStateAwaitingPayment, DealStateDrafting, true},
		{DealStateDrafting, DealStateReviewing, true},
		{DealStateReviewing, DealStateScheduled, true},
		{DealStateReviewing, DealStateDrafting, true},
		{DealStateScheduled, DealStatePublished, true},
		{DealStatePublished, DealStateCompleted, true},

		// Cancellation paths
		{DealStatePending, DealStateCancelled, true},
		{DealStateAccepted, DealStateCancelled, true},
		{DealStateAwaitingPayment, DealStateCancelled, true},
		{DealStateDrafting, DealStateCancelled, true},
		{DealStateReviewing, DealStateCancelled, true},
		{DealStateScheduled, DealStateCancelled, true},
		{DealStateCancelled, DealStateRefunded, true},

		// Invalid transitions
		{DealStatePending, DealStateDrafting, false},
		{DealStatePending, DealStateAwaitingPayment, false},
		{DealStateAccepted, DealStateDrafting, false},
		{DealStateAwaitingPayment, DealStateReviewing, false},
		{DealStateDrafting, DealStateScheduled, false},
		{DealStateScheduled, DealStateCompleted, false},
		{DealStatePublished, DealStateCancelled, false},
		{DealStateRejected, DealStateAccepted, false},
		{DealStateCompleted, DealStateRefunded, false},
		{DealStateRefunded, DealStateCompleted, false},
		{DealStateCompleted, DealStateCancelled, false},
		{"nonexistent", DealStateAccepted, false},
		{DealStatePending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatesHaveTransitionEntry(t *testing.T) {
	allStates := []string{
		DealStatePending, DealStateAccepted, DealStateAwaitingPayment,
		DealStateDrafting, DealStateReviewing, DealStateScheduled,
		DealStatePublished, DealStateCompleted, DealStateRejected,
		DealStateCancelled, DealStateRefunded,
	}

	for _, state := range allStates {
		if _, ok := ValidDealTransitions[state]; !ok {
			t.Errorf("state %q missing from ValidDealTransitions map", state)
		}
	}
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	terminal := []string{DealStateRejected, DealStateCompleted, DealStateRefunded}
	for _, state := range terminal {
		transitions := ValidDealTransitions[state]
		if len(transitions) != 0 {
			t.Errorf("terminal state %q should have no transitions, got %v", state, transitions)
		}
	}
}

func TestChannelPartyID(t *testing.T) {
	owner := uuid.New()
	applicant := uuid.New()

	listing := &Deal{OwnerID: owner, ApplicantID: applicant, DealType: DealTypeChannelListing}
	if got := listing.ChannelPartyID(); got != owner {
		t.Errorf("listing deal: channel party = %v, want owner %v", got, owner)
	}

	campaign := &Deal{OwnerID: owner, ApplicantID: applicant, DealType: DealTypeCampaignRequest, IsCampaignApplication: true}
	if got := campaign.ChannelPartyID(); got != applicant {
		t.Errorf("campaign deal: channel party = %v, want applicant %v", got, applicant)
	}
}

func TestDealPatchOneShotTimestamps(t *testing.T) {
	first := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	d := &Deal{}
	(&DealPatch{CreativeSubmittedAt: &first}).Apply(d)
	(&DealPatch{CreativeSubmittedAt: &second}).Apply(d)

	if d.CreativeSubmittedAt == nil || !d.CreativeSubmittedAt.Equal(first) {
		t.Errorf("creative_submitted_at overwritten: got %v, want %v", d.CreativeSubmittedAt, first)
	}
}

func TestDealPatchClearsReasons(t *testing.T) {
	reason := "too salesy"
	d := &Deal{EditRequestReason: &reason}

	(&DealPatch{ClearEditRequestReason: true, ClearRejectionReason: true}).Apply(d)

	if d.EditRequestReason != nil {
		t.Errorf("edit_request_reason not cleared: %v", *d.EditRequestReason)
	}
}
