// Package id defines the TypeID-based identifiers of payout entities.
//
// An ID renders as "prefix_suffix", where the prefix names the entity kind
// and the suffix is a UUIDv7, so IDs of one kind sort by creation time.
package id

import (
	"cmp"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the entity kind of an ID.
type Prefix string

const (
	PrefixInvestor   Prefix = "ivr"
	PrefixInvestment Prefix = "ivt"
	PrefixQueueEntry Prefix = "qen"
	PrefixPairing    Prefix = "pair"
	PrefixReferral   Prefix = "ref"
	PrefixPayment    Prefix = "pay"
)

// ID identifies one payout entity. The zero value is Nil and renders as "".
//
//nolint:recvcheck // UnmarshalText needs a pointer receiver.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// The aliases document which kind a field holds; they do not enforce it.
// Parse<Kind>ID does.
type (
	InvestorID   = ID
	InvestmentID = ID
	QueueEntryID = ID
	PairingID    = ID
	ReferralID   = ID
	PaymentID    = ID
)

func generate(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

func NewInvestorID() ID   { return generate(PrefixInvestor) }
func NewInvestmentID() ID { return generate(PrefixInvestment) }
func NewQueueEntryID() ID { return generate(PrefixQueueEntry) }
func NewPairingID() ID    { return generate(PrefixPairing) }
func NewReferralID() ID   { return generate(PrefixReferral) }
func NewPaymentID() ID    { return generate(PrefixPayment) }

// Parse reads an ID of any kind. The empty string is an error; stores that
// keep optional references map "" to Nil themselves.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

func parseKind(s string, want Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != want {
		return Nil, fmt.Errorf("id: %q is a %q id, want %q", s, got, want)
	}
	return parsed, nil
}

func ParseInvestorID(s string) (ID, error)   { return parseKind(s, PrefixInvestor) }
func ParseInvestmentID(s string) (ID, error) { return parseKind(s, PrefixInvestment) }
func ParseQueueEntryID(s string) (ID, error) { return parseKind(s, PrefixQueueEntry) }
func ParsePairingID(s string) (ID, error)    { return parseKind(s, PrefixPairing) }
func ParseReferralID(s string) (ID, error)   { return parseKind(s, PrefixReferral) }
func ParsePaymentID(s string) (ID, error)    { return parseKind(s, PrefixPayment) }

func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the entity kind, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// Compare orders IDs by their string form, which for one kind is creation
// order. It is the tiebreak of every store listing.
func (i ID) Compare(other ID) int {
	return cmp.Compare(i.String(), other.String())
}

func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler. Nil marshals to "".
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "" unmarshals to Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
