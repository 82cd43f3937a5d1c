package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/notify"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, evt notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestDispatcherDrainsOnStop(t *testing.T) {
	rec := &recorder{}
	d := notify.NewDispatcher(rec)
	d.Start()

	ctx := context.Background()
	investor := id.NewInvestorID()
	require.NoError(t, d.Send(ctx, notify.Event{Kind: notify.KindMatured, InvestorID: investor}))
	require.NoError(t, d.Send(ctx, notify.Event{Kind: notify.KindPaired, InvestorID: investor}))
	d.Stop()

	require.Equal(t, []notify.Kind{notify.KindMatured, notify.KindPaired}, rec.kinds())
}

func TestDispatcherDeliversEverySendRacingStop(t *testing.T) {
	for range 50 {
		rec := &recorder{}
		d := notify.NewDispatcher(rec)
		d.Start()

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					_ = d.Send(context.Background(), notify.Event{Kind: notify.KindPaired})
				}
			}()
		}
		d.Stop()
		wg.Wait()

		require.Len(t, rec.kinds(), 8*20)
	}
}

func TestDispatcherDeliversSynchronouslyWhenNotStarted(t *testing.T) {
	rec := &recorder{}
	d := notify.NewDispatcher(rec)

	require.NoError(t, d.Send(context.Background(), notify.Event{Kind: notify.KindPaymentReminder}))
	require.Equal(t, []notify.Kind{notify.KindPaymentReminder}, rec.kinds())
}

func TestDispatcherSurvivesNotifierFailure(t *testing.T) {
	calls := 0
	failing := notify.NotifierFunc(func(context.Context, notify.Event) error {
		calls++
		return errors.New("smtp down")
	})
	d := notify.NewDispatcher(failing)

	require.NoError(t, d.Send(context.Background(), notify.Event{Kind: notify.KindPairingFailed}))
	require.Equal(t, 1, calls)
}

func TestDispatcherTimesOutSlowNotifier(t *testing.T) {
	slow := notify.NotifierFunc(func(ctx context.Context, _ notify.Event) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := notify.NewDispatcher(slow, notify.WithTimeout(10*time.Millisecond))

	start := time.Now()
	require.NoError(t, d.Send(context.Background(), notify.Event{Kind: notify.KindPaired}))
	require.Less(t, time.Since(start), time.Second)
}

func TestMultiReturnsFirstError(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	n := notify.Multi(
		notify.NotifierFunc(func(context.Context, notify.Event) error { return boom }),
		rec,
	)
	err := n.Notify(context.Background(), notify.Event{Kind: notify.KindReferralBonus})
	require.ErrorIs(t, err, boom)
	require.Len(t, rec.kinds(), 1)
}
