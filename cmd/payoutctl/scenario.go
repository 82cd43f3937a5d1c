package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/payout"
	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/store/memory"
	"github.com/xraph/payout/types"
)

// Scenario is the history payoutctl replays before running a command.
// Every step happens After the Start time.
type Scenario struct {
	Start       time.Time        `mapstructure:"-"`
	Investors   []InvestorStep   `mapstructure:"investors"`
	Investments []InvestmentStep `mapstructure:"investments"`
	Payments    []PaymentStep    `mapstructure:"payments"`
}

// InvestorStep registers an investor. ReferredBy names the key of an
// earlier investor.
type InvestorStep struct {
	Key        string        `mapstructure:"key"`
	Name       string        `mapstructure:"name"`
	Email      string        `mapstructure:"email"`
	ReferredBy string        `mapstructure:"referred_by"`
	After      time.Duration `mapstructure:"after"`
}

// InvestmentStep places an investment. Amount is in major units.
type InvestmentStep struct {
	Key      string        `mapstructure:"key"`
	Investor string        `mapstructure:"investor"`
	Amount   string        `mapstructure:"amount"`
	Days     int           `mapstructure:"days"`
	After    time.Duration `mapstructure:"after"`
}

// PaymentStep settles the open pairings of the investment named by Payer.
// An empty Amount pays every open pairing in full; otherwise Amount is
// spread over them oldest first.
type PaymentStep struct {
	Payer     string        `mapstructure:"payer"`
	Amount    string        `mapstructure:"amount"`
	Reference string        `mapstructure:"reference"`
	After     time.Duration `mapstructure:"after"`
}

// loadScenario reads a scenario file. An empty path is an empty scenario
// starting now.
func loadScenario(path string) (*Scenario, error) {
	sc := &Scenario{Start: time.Now().UTC()}
	if path == "" {
		return sc, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	if err := v.Unmarshal(sc); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", path, err)
	}
	if v.IsSet("start") {
		sc.Start = v.GetTime("start")
	}
	if sc.Start.IsZero() {
		return nil, fmt.Errorf("scenario %s: start is not a valid time", path)
	}
	return sc, nil
}

// clock is the engine clock; replay moves it forward step by step.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

// session is an engine replaying a scenario.
type session struct {
	engine *payout.Engine
	clock  *clock
	cfg    payout.Config

	// keys map scenario keys to the IDs the engine assigned.
	investors   map[string]id.InvestorID
	investments map[string]id.InvestmentID
}

// step is one scenario action at an offset from the start.
type step struct {
	after time.Duration
	order int
	apply func(ctx context.Context, s *session) error
}

// openSession builds an in-memory engine for cfg and replays sc on it. Each
// step runs a full cycle at its time before it is applied. The engine is
// started; call close when done.
func openSession(ctx context.Context, cfg payout.Config, sc *Scenario, logger *slog.Logger) (*session, error) {
	clk := &clock{now: sc.Start}
	engine := payout.New(memory.New(),
		payout.WithConfig(cfg),
		payout.WithClock(clk.Now),
		payout.WithLogger(logger),
		payout.WithNotifier(notify.LogNotifier{Logger: logger}),
	)
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}

	s := &session{
		engine:      engine,
		clock:       clk,
		cfg:         cfg,
		investors:   make(map[string]id.InvestorID),
		investments: make(map[string]id.InvestmentID),
	}
	if err := s.replay(ctx, sc); err != nil {
		_ = s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) close() error { return s.engine.Stop() }

// last is the time of the final replayed step.
func (s *session) last() time.Time { return s.clock.now }

func (s *session) replay(ctx context.Context, sc *Scenario) error {
	var steps []step
	for _, st := range sc.Investors {
		steps = append(steps, step{after: st.After, order: len(steps), apply: st.apply})
	}
	for _, st := range sc.Investments {
		steps = append(steps, step{after: st.After, order: len(steps), apply: st.apply})
	}
	for _, st := range sc.Payments {
		steps = append(steps, step{after: st.After, order: len(steps), apply: st.apply})
	}
	slices.SortStableFunc(steps, func(a, b step) int {
		return cmp.Or(cmp.Compare(a.after, b.after), cmp.Compare(a.order, b.order))
	})

	for _, st := range steps {
		if st.after < 0 {
			return fmt.Errorf("scenario: negative offset %s", st.after)
		}
		s.clock.now = sc.Start.Add(st.after)
		if _, err := s.engine.RunCycle(ctx); err != nil {
			return fmt.Errorf("scenario: cycle at %s: %w", s.clock.now.Format(time.RFC3339), err)
		}
		if err := st.apply(ctx, s); err != nil {
			return fmt.Errorf("scenario at +%s: %w", st.after, err)
		}
	}
	return nil
}

func (st InvestorStep) apply(ctx context.Context, s *session) error {
	if st.Key == "" {
		return fmt.Errorf("investor %q: key is required", st.Name)
	}
	if _, dup := s.investors[st.Key]; dup {
		return fmt.Errorf("investor %q: duplicate key", st.Key)
	}

	reg := payout.Registration{Name: st.Name, Email: st.Email}
	if st.ReferredBy != "" {
		referrerID, ok := s.investors[st.ReferredBy]
		if !ok {
			return fmt.Errorf("investor %q: unknown referrer %q", st.Key, st.ReferredBy)
		}
		referrer, err := s.engine.GetInvestor(ctx, referrerID)
		if err != nil {
			return err
		}
		reg.ReferralCode = referrer.ReferralCode
	}

	inv, err := s.engine.RegisterInvestor(ctx, reg)
	if err != nil {
		return fmt.Errorf("investor %q: %w", st.Key, err)
	}
	s.investors[st.Key] = inv.ID
	return nil
}

func (st InvestmentStep) apply(ctx context.Context, s *session) error {
	investorID, ok := s.investors[st.Investor]
	if !ok {
		return fmt.Errorf("investment %q: unknown investor %q", st.Key, st.Investor)
	}
	if _, dup := s.investments[st.Key]; dup {
		return fmt.Errorf("investment %q: duplicate key", st.Key)
	}
	amount, err := types.ParseMoney(st.Amount, s.cfg.Currency)
	if err != nil {
		return fmt.Errorf("investment %q: %w", st.Key, err)
	}

	inv, err := s.engine.CreateInvestment(ctx, investorID, amount, st.Days)
	if err != nil {
		return fmt.Errorf("investment %q: %w", st.Key, err)
	}
	s.investments[st.Key] = inv.ID
	return nil
}

func (st PaymentStep) apply(ctx context.Context, s *session) error {
	payerID, ok := s.investments[st.Payer]
	if !ok {
		return fmt.Errorf("payment: unknown investment %q", st.Payer)
	}

	open, err := s.engine.ListPairings(ctx, pairing.ListOpts{
		InvestmentID:  payerID,
		PaymentStatus: pairing.PaymentPending,
	})
	if err != nil {
		return err
	}
	open = slices.DeleteFunc(open, func(p *pairing.Pairing) bool { return p.NewInvestmentID.String() != payerID.String() })
	if len(open) == 0 {
		return fmt.Errorf("payment: investment %q has no open pairings", st.Payer)
	}

	var budget *types.Money
	if st.Amount != "" {
		amount, err := types.ParseMoney(st.Amount, s.cfg.Currency)
		if err != nil {
			return fmt.Errorf("payment %q: %w", st.Payer, err)
		}
		budget = &amount
	}

	opts := []payout.PaymentOption{payout.WithMethod(payment.MethodManual)}
	if st.Reference != "" {
		opts = append(opts, payout.WithReference(st.Reference))
	}

	for _, p := range open {
		amount := p.AmountMatched
		if budget != nil {
			if !budget.IsPositive() {
				break
			}
			amount = amount.Min(*budget)
		}
		pay, err := s.engine.SettlePairing(ctx, p.ID, amount, opts...)
		if err != nil {
			return fmt.Errorf("payment %q: settle %s: %w", st.Payer, p.ID, err)
		}
		if budget != nil {
			*budget = budget.Subtract(pay.Amount)
		}
	}
	return nil
}

// investmentKey returns the scenario key of an investment, or its ID when
// the investment was not named in the scenario.
func (s *session) investmentKey(investmentID id.InvestmentID) string {
	for key, v := range s.investments {
		if v.String() == investmentID.String() {
			return key
		}
	}
	return investmentID.String()
}

// investorKey is investmentKey for investors.
func (s *session) investorKey(investorID id.InvestorID) string {
	for key, v := range s.investors {
		if v.String() == investorID.String() {
			return key
		}
	}
	return investorID.String()
}

// sortedStatuses orders a status breakdown for printing.
func sortedStatuses(byStatus map[investment.Status]int64) []investment.Status {
	return slices.Sorted(maps.Keys(byStatus))
}
