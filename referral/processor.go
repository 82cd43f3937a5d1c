package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/types"
)

var (
	// ErrCycle is returned when a referral chain revisits an investor.
	ErrCycle = errors.New("referral: referral cycle detected")

	// ErrSelfReferral is returned when an investor would refer themselves.
	ErrSelfReferral = errors.New("referral: investor cannot refer themselves")

	// ErrInvalidSplit is returned when a split amount is not strictly
	// between zero and the record's bonus.
	ErrInvalidSplit = errors.New("referral: invalid split amount")
)

// Tx is the transactional surface the processor needs. It is satisfied by
// store.Tx.
type Tx interface {
	GetInvestor(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error)
	GetInvestorForUpdate(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error)
	UpdateInvestor(ctx context.Context, inv *investor.Investor) error
	CreateReferral(ctx context.Context, r *Record) error
	ListPendingReferralsForUpdate(ctx context.Context, referrerID id.InvestorID) ([]*Record, error)
	UpdateReferral(ctx context.Context, r *Record) error
}

// Processor owns every mutation of investor bonus balances: crediting
// ancestors when an investment is placed and debiting the investor when a
// later investment consumes the balance.
type Processor struct {
	rate     decimal.Decimal
	maxDepth int
}

// NewProcessor creates a Processor paying rate of the invested amount to
// each ancestor up to maxDepth levels. A maxDepth of zero walks the whole
// chain.
func NewProcessor(rate decimal.Decimal, maxDepth int) *Processor {
	return &Processor{rate: rate, maxDepth: maxDepth}
}

// Rate returns the bonus rate.
func (p *Processor) Rate() decimal.Decimal { return p.rate }

// MaxDepth returns the configured chain depth.
func (p *Processor) MaxDepth() int { return p.maxDepth }

// Cascade credits every ancestor of the investing investor with a bonus on
// the original principal of inv and records one pending Record per level.
// The whole cascade happens in tx; a cycle aborts it with ErrCycle.
func (p *Processor) Cascade(ctx context.Context, tx Tx, inv *investment.Investment, now time.Time) ([]*Record, error) {
	origin, err := tx.GetInvestor(ctx, inv.InvestorID)
	if err != nil {
		return nil, err
	}

	bonus := inv.Amount.MulRate(p.rate)
	if !bonus.IsPositive() {
		return nil, nil
	}

	visited := map[string]bool{origin.ID.String(): true}
	node := origin
	var records []*Record

	for level := 1; p.maxDepth <= 0 || level <= p.maxDepth; level++ {
		if !node.HasReferrer() {
			break
		}
		if visited[node.ReferredBy.String()] {
			return nil, fmt.Errorf("%w: %s revisited at level %d", ErrCycle, node.ReferredBy, level)
		}
		visited[node.ReferredBy.String()] = true

		referrer, err := tx.GetInvestorForUpdate(ctx, node.ReferredBy)
		if err != nil {
			return nil, fmt.Errorf("referral: load referrer %s: %w", node.ReferredBy, err)
		}

		rec := &Record{
			Entity:         types.NewEntityAt(now),
			ID:             id.NewReferralID(),
			ReferrerID:     referrer.ID,
			ReferredID:     origin.ID,
			InvestmentID:   inv.ID,
			Level:          level,
			AmountInvested: inv.Amount,
			BonusEarned:    bonus,
			Status:         StatusPending,
		}
		if err := tx.CreateReferral(ctx, rec); err != nil {
			return nil, fmt.Errorf("referral: create record: %w", err)
		}

		referrer.BonusBalance = credit(referrer.BonusBalance, bonus)
		referrer.TouchAt(now)
		if err := tx.UpdateInvestor(ctx, referrer); err != nil {
			return nil, fmt.Errorf("referral: credit referrer %s: %w", referrer.ID, err)
		}

		records = append(records, rec)
		node = referrer
	}

	return records, nil
}

// Consume spends the locked investor's bonus balance against a new
// investment of principal. Nothing is consumed unless the balance is
// positive and principal covers it. Pending records are used oldest first;
// the record straddling the boundary is split. The returned amount is what
// the records backed, which is the bonus to fold into the return.
func (p *Processor) Consume(ctx context.Context, tx Tx, inv *investor.Investor, principal types.Money, now time.Time) (types.Money, []*Record, error) {
	used := types.Zero(principal.Currency)
	balance := inv.BonusBalance
	if !balance.IsPositive() || !balance.SameCurrency(principal) || principal.LessThan(balance) {
		return used, nil, nil
	}

	pending, err := tx.ListPendingReferralsForUpdate(ctx, inv.ID)
	if err != nil {
		return used, nil, err
	}

	remaining := balance
	var touched []*Record
	for _, rec := range pending {
		if !remaining.IsPositive() {
			break
		}
		if !rec.BonusEarned.GreaterThan(remaining) {
			rec.MarkUsed(now)
			if err := tx.UpdateReferral(ctx, rec); err != nil {
				return used, nil, err
			}
			remaining = remaining.Subtract(rec.BonusEarned)
			used = used.Add(rec.BonusEarned)
			touched = append(touched, rec)
			continue
		}

		usedPart, err := Split(rec, remaining, now)
		if err != nil {
			return used, nil, err
		}
		if err := tx.UpdateReferral(ctx, rec); err != nil {
			return used, nil, err
		}
		if err := tx.CreateReferral(ctx, usedPart); err != nil {
			return used, nil, err
		}
		used = used.Add(usedPart.BonusEarned)
		remaining = types.Zero(remaining.Currency)
		touched = append(touched, usedPart, rec)
	}

	inv.BonusBalance = balance.Subtract(used)
	inv.TouchAt(now)
	if err := tx.UpdateInvestor(ctx, inv); err != nil {
		return types.Zero(principal.Currency), nil, err
	}
	return used, touched, nil
}

// Split carves amount out of rec. rec keeps its ID and becomes the pending
// remainder; the returned record is the used part. AmountInvested is divided
// in the same proportion as the bonus, and both fields of the two parts sum
// exactly to the originals.
func Split(rec *Record, amount types.Money, now time.Time) (*Record, error) {
	if !amount.IsPositive() || !amount.SameCurrency(rec.BonusEarned) || !amount.LessThan(rec.BonusEarned) {
		return nil, fmt.Errorf("%w: %s of %s", ErrInvalidSplit, amount, rec.BonusEarned)
	}

	usedInvested := rec.AmountInvested.Scale(amount.Amount, rec.BonusEarned.Amount)
	usedAt := now.UTC()

	usedPart := &Record{
		Entity:         types.NewEntityAt(now),
		ID:             id.NewReferralID(),
		ReferrerID:     rec.ReferrerID,
		ReferredID:     rec.ReferredID,
		InvestmentID:   rec.InvestmentID,
		Level:          rec.Level,
		AmountInvested: usedInvested,
		BonusEarned:    amount,
		Status:         StatusUsed,
		UsedAt:         &usedAt,
		SplitFrom:      rec.ID,
	}

	rec.AmountInvested = rec.AmountInvested.Subtract(usedInvested)
	rec.BonusEarned = rec.BonusEarned.Subtract(amount)
	rec.TouchAt(now)

	return usedPart, nil
}

// CheckLink verifies that investorID may take referrerID as its referrer:
// not itself, and not an ancestor chain that leads back to investorID.
func CheckLink(ctx context.Context, tx Tx, investorID, referrerID id.InvestorID) error {
	if investorID.String() == referrerID.String() {
		return ErrSelfReferral
	}

	visited := map[string]bool{}
	cur := referrerID
	for !cur.IsNil() {
		if cur.String() == investorID.String() {
			return fmt.Errorf("%w: %s already descends from %s", ErrCycle, referrerID, investorID)
		}
		if visited[cur.String()] {
			return fmt.Errorf("%w: existing chain loops at %s", ErrCycle, cur)
		}
		visited[cur.String()] = true

		node, err := tx.GetInvestor(ctx, cur)
		if err != nil {
			return err
		}
		cur = node.ReferredBy
	}
	return nil
}

func credit(balance, bonus types.Money) types.Money {
	if balance.Currency == "" {
		balance = types.Zero(bonus.Currency)
	}
	return balance.Add(bonus)
}
