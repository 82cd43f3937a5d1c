package payout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/store"
	"github.com/xraph/payout/types"
)

// referralCodeAttempts bounds retries on a referral code collision.
const referralCodeAttempts = 5

// Registration describes a new investor.
type Registration struct {
	Name  string
	Email string
	// ReferralCode is the code of the investor who referred this one.
	ReferralCode string
	Metadata     map[string]string
}

// ──────────────────────────────────────────────────
// Investor management
// ──────────────────────────────────────────────────

// RegisterInvestor creates an investor with a fresh referral code, linked to
// the owner of reg.ReferralCode when one is given.
func (e *Engine) RegisterInvestor(ctx context.Context, reg Registration) (*investor.Investor, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return nil, ValidationError{Field: "name", Message: "is required"}
	}

	var referredBy id.InvestorID
	if code := investor.NormalizeReferralCode(reg.ReferralCode); code != "" {
		ref, err := e.store.GetInvestorByReferralCode(ctx, code)
		if err != nil {
			return nil, notFound(err, ErrReferrerNotFound, stringer(code))
		}
		referredBy = ref.ID
	}

	now := e.now()
	inv := &investor.Investor{
		Entity:       types.NewEntityAt(now),
		ID:           id.NewInvestorID(),
		Name:         name,
		Email:        strings.TrimSpace(reg.Email),
		ReferredBy:   referredBy,
		BonusBalance: types.Zero(e.config.Currency),
		Metadata:     reg.Metadata,
	}

	var err error
	for range referralCodeAttempts {
		inv.ReferralCode = investor.NewReferralCode()
		err = e.store.CreateInvestor(ctx, inv)
		if !errors.Is(err, store.ErrAlreadyExists) {
			break
		}
		e.logger.Debug("referral code collision, retrying", "code", inv.ReferralCode)
	}
	if err != nil {
		return nil, fmt.Errorf("payout: register investor: %w", err)
	}

	e.plugins.EmitInvestorRegistered(ctx, inv)
	return inv, nil
}

// SetReferrer links an existing investor to the owner of code. The link is
// rejected if the investor already has a referrer, names itself, or would
// close a loop in the referral chain.
func (e *Engine) SetReferrer(ctx context.Context, investorID id.InvestorID, code string) (*investor.Investor, error) {
	code = investor.NormalizeReferralCode(code)
	ref, err := e.store.GetInvestorByReferralCode(ctx, code)
	if err != nil {
		return nil, notFound(err, ErrReferrerNotFound, stringer(code))
	}

	var updated *investor.Investor
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inv, err := tx.GetInvestorForUpdate(ctx, investorID)
		if err != nil {
			return notFound(err, ErrInvestorNotFound, investorID)
		}
		if inv.HasReferrer() {
			return fmt.Errorf("%w: %s", ErrReferrerAlreadySet, investorID)
		}
		if err := referral.CheckLink(ctx, tx, inv.ID, ref.ID); err != nil {
			return err
		}

		inv.ReferredBy = ref.ID
		inv.TouchAt(e.now())
		if err := tx.UpdateInvestor(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("referrer linked",
		"investor_id", investorID.String(),
		"referrer_id", ref.ID.String(),
	)
	return updated, nil
}

// GetInvestor retrieves an investor by ID.
func (e *Engine) GetInvestor(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	inv, err := e.store.GetInvestor(ctx, investorID)
	if err != nil {
		return nil, notFound(err, ErrInvestorNotFound, investorID)
	}
	return inv, nil
}

// GetInvestorByReferralCode retrieves the owner of a referral code.
func (e *Engine) GetInvestorByReferralCode(ctx context.Context, code string) (*investor.Investor, error) {
	code = investor.NormalizeReferralCode(code)
	inv, err := e.store.GetInvestorByReferralCode(ctx, code)
	if err != nil {
		return nil, notFound(err, ErrInvestorNotFound, stringer(code))
	}
	return inv, nil
}

// ListInvestors lists investors, optionally only those referred by one
// investor.
func (e *Engine) ListInvestors(ctx context.Context, opts investor.ListOpts) ([]*investor.Investor, error) {
	return e.store.ListInvestors(ctx, opts)
}

type stringer string

func (s stringer) String() string { return string(s) }
