package types

import (
	"testing"
	"time"
)

func TestListingTitle(t *testing.T) {
	l := Listing{Year: 2019, Make: "Peterbilt", Model: "579"}
	if got := l.Title(); got != "2019 Peterbilt 579" {
		t.Errorf("Title() = %q", got)
	}
}

func TestSellerProfileComplete(t *testing.T) {
	tests := []struct {
		name   string
		seller Seller
		want   bool
	}{
		{"complete", Seller{Phone: "555-0100", SellerType: SellerDealer}, true},
		{"missing phone", Seller{SellerType: SellerPrivate}, false},
		{"missing type", Seller{Phone: "555-0100"}, false},
		{"unknown type", Seller{Phone: "555-0100", SellerType: "broker"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.seller.ProfileComplete(); got != tt.want {
				t.Errorf("ProfileComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdRunningOn(t *testing.T) {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ad := Ad{IsActive: true, StartDate: start, EndDate: start.AddDate(0, 0, 30)}

	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"first day", start.Add(15 * time.Hour), true},
		{"last day", start.AddDate(0, 0, 30).Add(23 * time.Hour), true},
		{"before", start.Add(-time.Hour), false},
		{"after", start.AddDate(0, 0, 31), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ad.RunningOn(tt.day); got != tt.want {
				t.Errorf("RunningOn() = %v, want %v", got, tt.want)
			}
		})
	}

	ad.IsActive = false
	if ad.RunningOn(start) {
		t.Error("inactive ad reported as running")
	}
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{Participant1: "u1", Participant2: "u2"}
	if !c.HasParticipant("u2") || c.HasParticipant("u3") {
		t.Error("HasParticipant mismatch")
	}
	if c.OtherParticipant("u1") != "u2" || c.OtherParticipant("u2") != "u1" {
		t.Error("OtherParticipant mismatch")
	}
}

func TestEnumValidity(t *testing.T) {
	if !TierProPlus.Valid() || Tier("gold").Valid() {
		t.Error("Tier.Valid mismatch")
	}
	if !ListingPending.Valid() || ListingStatus("draft").Valid() {
		t.Error("ListingStatus.Valid mismatch")
	}
	if !ReportScam.Valid() || ReportReason("rude").Valid() {
		t.Error("ReportReason.Valid mismatch")
	}
	if !CheckoutAd.Valid() || CheckoutKind("donation").Valid() {
		t.Error("CheckoutKind.Valid mismatch")
	}
}
