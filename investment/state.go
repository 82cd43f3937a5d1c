package investment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xraph/payout/types"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("investment: invalid status transition")

var transitions = map[Status][]Status{
	StatusPending:         {StatusPaired, StatusMatured},
	StatusPaired:          {StatusMatured, StatusPartiallyPaid, StatusCompleted, StatusPartiallyPaired},
	StatusMatured:         {StatusPaired, StatusPartiallyPaired},
	StatusPartiallyPaired: {StatusPaired, StatusPartiallyPaired, StatusPartiallyPaid, StatusCompleted},
	StatusPartiallyPaid:   {StatusPartiallyPaid, StatusCompleted},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the investment to status to, or fails with
// ErrInvalidTransition.
func (i *Investment) Transition(to Status, now time.Time) error {
	if !CanTransition(i.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, to)
	}
	i.Status = to
	i.TouchAt(now)
	return nil
}

// ComputeReturn returns principal + principal*dailyRate*days + bonus.
func ComputeReturn(principal types.Money, days int, dailyRate decimal.Decimal, bonus types.Money) types.Money {
	interest := principal.MulRate(dailyRate.Mul(decimal.NewFromInt(int64(days))))
	return principal.Add(interest).Add(bonus)
}

// NewTransactionRef returns a settlement reference such as "INV-3F2A9C1B".
func NewTransactionRef() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "INV-" + strings.ToUpper(raw[:8])
}
