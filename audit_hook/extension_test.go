package audithook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/payout/audit_hook"
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/types"
)

type sink struct {
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.events = append(s.events, evt)
	return nil
}

func TestPairingFailedIsRecorded(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)

	p := &pairing.Pairing{ID: id.NewPairingID(), AmountMatched: types.KES(700)}
	require.NoError(t, ext.OnPairingFailed(context.Background(), p))

	require.Len(t, s.events, 1)
	evt := s.events[0]
	require.Equal(t, audithook.ActionPairingFailed, evt.Action)
	require.Equal(t, audithook.OutcomeFailure, evt.Outcome)
	require.Equal(t, p.ID.String(), evt.ResourceID)
	require.Equal(t, int64(700), evt.Metadata["amount"])
}

func TestCascadeFailureCarriesReason(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)

	require.NoError(t, ext.OnCascadeFailed(context.Background(), id.NewInvestmentID(), errors.New("cycle")))
	require.Len(t, s.events, 1)
	require.Equal(t, "cycle", s.events[0].Reason)
	require.Equal(t, audithook.SeverityError, s.events[0].Severity)
}

func TestActionFilters(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s, audithook.WithDisabledActions(audithook.ActionPairingFailed))
	ctx := context.Background()

	require.NoError(t, ext.OnPairingFailed(ctx, &pairing.Pairing{ID: id.NewPairingID()}))
	require.NoError(t, ext.OnPairingCreated(ctx, &pairing.Pairing{ID: id.NewPairingID()}))
	require.Len(t, s.events, 1)
	require.Equal(t, audithook.ActionPairingCreated, s.events[0].Action)

	s.events = nil
	only := audithook.New(s, audithook.WithEnabledActions(audithook.ActionPairingFailed))
	require.NoError(t, only.OnPairingCreated(ctx, &pairing.Pairing{ID: id.NewPairingID()}))
	require.Empty(t, s.events)
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	require.NoError(t, ext.OnPairingCreated(context.Background(), &pairing.Pairing{ID: id.NewPairingID()}))
}
