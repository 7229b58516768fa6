package models

import "testing"

func TestBidStatusCanTransition(t *testing.T) {
	all := []BidStatus{BidPending, BidAccepted, BidDeclined, BidCompleted}
	legal := map[BidStatus]map[BidStatus]bool{
		BidPending:  {BidAccepted: true, BidDeclined: true},
		BidAccepted: {BidCompleted: true},
	}
	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			if got := from.CanTransition(to); got != want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestBidStatusReachable(t *testing.T) {
	tests := []struct {
		from, to BidStatus
		want     bool
	}{
		{BidPending, BidPending, true},
		{BidPending, BidAccepted, true},
		{BidPending, BidDeclined, true},
		{BidPending, BidCompleted, true}, // two steps via accepted
		{BidAccepted, BidCompleted, true},
		{BidAccepted, BidPending, false},
		{BidAccepted, BidDeclined, false},
		{BidDeclined, BidAccepted, false},
		{BidDeclined, BidCompleted, false},
		{BidCompleted, BidPending, false},
		{BidCompleted, BidAccepted, false},
		{BidCompleted, BidCompleted, true},
	}
	for _, tt := range tests {
		if got := tt.from.Reachable(tt.to); got != tt.want {
			t.Errorf("Reachable(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestBidStatusValidAndTerminal(t *testing.T) {
	for _, s := range []BidStatus{BidPending, BidAccepted, BidDeclined, BidCompleted} {
		if !s.Valid() {
			t.Errorf("%s not valid", s)
		}
	}
	if BidStatus("paused").Valid() || BidStatus("").Valid() {
		t.Errorf("unknown status reported valid")
	}
	if BidPending.Terminal() || BidAccepted.Terminal() {
		t.Errorf("non-terminal status reported terminal")
	}
	if !BidDeclined.Terminal() || !BidCompleted.Terminal() {
		t.Errorf("terminal status not reported terminal")
	}
}
