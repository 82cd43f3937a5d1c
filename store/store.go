// Package store defines the persistence contract for payout.
//
// Reads go through Store directly. Every read-modify-write goes through
// RunInTx: the callback receives a Tx whose ForUpdate/Lock methods take
// row-level locks that are held until the callback returns. Returning an
// error from the callback rolls back every write made through the Tx.
package store

import (
	"context"
	"errors"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
)

// Sentinel errors returned by every backend.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrQueueEmpty    = errors.New("store: queue empty")
	// ErrConflict reports a lock or write conflict that a later retry may
	// resolve.
	ErrConflict = errors.New("store: conflict")
)

// Store is the unified storage interface for all payout entities.
type Store interface {
	investor.Store
	investment.Store
	queue.Store
	pairing.Store
	referral.Store
	payment.Store

	// RunInTx runs fn inside one atomic transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the transactional view of the store.
type Tx interface {
	referral.Tx

	// AcquireMatchingLock serializes matching work across processes until
	// the transaction ends.
	AcquireMatchingLock(ctx context.Context) error

	// Investments
	CreateInvestment(ctx context.Context, inv *investment.Investment) error
	GetInvestmentForUpdate(ctx context.Context, investmentID id.InvestmentID) (*investment.Investment, error)
	UpdateInvestment(ctx context.Context, inv *investment.Investment) error

	// Queue. EnqueueEntry assigns Seq. LockQueueHead returns the entry
	// served next, skipping entries owned by exclude when it is not nil,
	// or ErrQueueEmpty.
	EnqueueEntry(ctx context.Context, e *queue.Entry) error
	LockQueueHead(ctx context.Context, exclude id.InvestorID) (*queue.Entry, error)
	GetQueueEntryForUpdate(ctx context.Context, investmentID id.InvestmentID) (*queue.Entry, error)
	UpdateQueueEntry(ctx context.Context, e *queue.Entry) error
	DeleteQueueEntry(ctx context.Context, entryID id.QueueEntryID) error

	// Pairings
	CreatePairing(ctx context.Context, p *pairing.Pairing) error
	GetPairingForUpdate(ctx context.Context, pairingID id.PairingID) (*pairing.Pairing, error)
	UpdatePairing(ctx context.Context, p *pairing.Pairing) error
	// ListPendingPairingsForUpdate locks the pending pairings whose matured
	// side is investmentID, oldest first.
	ListPendingPairingsForUpdate(ctx context.Context, investmentID id.InvestmentID) ([]*pairing.Pairing, error)

	// Payments
	CreatePayment(ctx context.Context, p *payment.Payment) error
	SumPairingPayments(ctx context.Context, pairingID id.PairingID) (int64, error)
}
