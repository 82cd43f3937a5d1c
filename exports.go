package payout

import (
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/types"
)

// Re-export common types for convenience so users don't have to import the
// types and id packages.

// Money is re-exported from types package.
type Money = types.Money

// ID is the identifier type for all payout entities.
type ID = id.ID

// Re-export Money constructors
var (
	KES  = types.KES
	USD  = types.USD
	EUR  = types.EUR
	Zero = types.Zero
	Sum  = types.Sum

	ParseMoney = types.ParseMoney
)
