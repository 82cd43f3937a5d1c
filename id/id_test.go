package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/payout/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"InvestorID", id.NewInvestorID, "ivr_"},
		{"InvestmentID", id.NewInvestmentID, "ivt_"},
		{"QueueEntryID", id.NewQueueEntryID, "qen_"},
		{"PairingID", id.NewPairingID, "pair_"},
		{"ReferralID", id.NewReferralID, "ref_"},
		{"PaymentID", id.NewPaymentID, "pay_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"InvestorID", id.NewInvestorID, id.ParseInvestorID},
		{"InvestmentID", id.NewInvestmentID, id.ParseInvestmentID},
		{"QueueEntryID", id.NewQueueEntryID, id.ParseQueueEntryID},
		{"PairingID", id.NewPairingID, id.ParsePairingID},
		{"ReferralID", id.NewReferralID, id.ParseReferralID},
		{"PaymentID", id.NewPaymentID, id.ParsePaymentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseInvestorID rejects ivt_", id.NewInvestmentID().String(), id.ParseInvestorID},
		{"ParseInvestmentID rejects qen_", id.NewQueueEntryID().String(), id.ParseInvestmentID},
		{"ParseQueueEntryID rejects pair_", id.NewPairingID().String(), id.ParseQueueEntryID},
		{"ParsePairingID rejects ref_", id.NewReferralID().String(), id.ParsePairingID},
		{"ParseReferralID rejects pay_", id.NewPaymentID().String(), id.ParseReferralID},
		{"ParsePaymentID rejects ivr_", id.NewInvestorID().String(), id.ParsePaymentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewPairingID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestCompare(t *testing.T) {
	a, err := id.ParseQueueEntryID("qen_01h2xcejqtf2nbrexx3vqjhp41")
	if err != nil {
		t.Fatal(err)
	}
	b, err := id.ParseQueueEntryID("qen_01h2xcejqtf2nbrexx3vqjhp42")
	if err != nil {
		t.Fatal(err)
	}
	if a.Compare(b) >= 0 {
		t.Errorf("expected %q < %q", a, b)
	}
	if b.Compare(a) <= 0 {
		t.Errorf("expected %q > %q", b, a)
	}
	if a.Compare(a) != 0 {
		t.Error("expected ID to compare equal to itself")
	}
}
