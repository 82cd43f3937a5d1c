// Package postgres implements store.Store on PostgreSQL.
//
// Reads and migrations go through Grove. Transactions run on a pgx pool so
// that row locks (SELECT ... FOR UPDATE) and the transaction-scoped
// advisory lock behind AcquireMatchingLock are held until commit.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	payoutstore "github.com/xraph/payout/store"
)

// compile-time interface checks
var (
	_ payoutstore.Store = (*Store)(nil)
	_ payoutstore.Tx    = (*tx)(nil)
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db   *grove.DB
	pg   *pgdriver.PgDB
	pool *pgxpool.Pool
}

// New creates a PostgreSQL store. db serves reads and migrations; pool
// serves transactions. Both must point at the same database.
func New(db *grove.DB, pool *pgxpool.Pool) *Store {
	return &Store{
		db:   db,
		pg:   pgdriver.Unwrap(db),
		pool: pool,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("payout/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("payout/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return err
	}
	return s.pool.Ping(ctx)
}

// Close closes the pool and the database connection.
func (s *Store) Close() error {
	s.pool.Close()
	return s.db.Close()
}

// RunInTx runs fn in a READ COMMITTED transaction. Lock conflicts,
// deadlocks and serialization failures surface as store.ErrConflict.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx payoutstore.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(t pgx.Tx) error {
		return fn(ctx, &tx{tx: t})
	})
	return mapError(err)
}

// ==================== Investor reads ====================

func (s *Store) CreateInvestor(ctx context.Context, inv *investor.Investor) error {
	m := toInvestorModel(inv)
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) GetInvestor(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	m := new(investorModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", investorID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return fromInvestorModel(m)
}

func (s *Store) GetInvestorByReferralCode(ctx context.Context, code string) (*investor.Investor, error) {
	m := new(investorModel)
	err := s.pg.NewSelect(m).
		Where("referral_code = $1", code).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return fromInvestorModel(m)
}

func (s *Store) ListInvestors(ctx context.Context, opts investor.ListOpts) ([]*investor.Investor, error) {
	var models []investorModel
	q := s.pg.NewSelect(&models)
	if !opts.ReferredBy.IsNil() {
		q = q.Where("referred_by = $1", opts.ReferredBy.String())
	}
	q = q.OrderExpr("created_at ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/postgres: list investors: %w", err)
	}
	return convertAll(models, fromInvestorModel)
}

// ==================== Investment reads ====================

func (s *Store) GetInvestment(ctx context.Context, investmentID id.InvestmentID) (*investment.Investment, error) {
	m := new(investmentModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", investmentID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return fromInvestmentModel(m)
}

func (s *Store) ListInvestments(ctx context.Context, opts investment.ListOpts) ([]*investment.Investment, error) {
	var models []investmentModel
	q := s.pg.NewSelect(&models)
	argIdx := 1
	if !opts.InvestorID.IsNil() {
		q = q.Where(fmt.Sprintf("investor_id = $%d", argIdx), opts.InvestorID.String())
		argIdx++
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where(fmt.Sprintf("status = ANY($%d)", argIdx), statuses)
		argIdx++
	}
	if opts.Unmatured {
		q = q.Where("matured_at IS NULL")
	}
	if !opts.MaturesBefore.IsZero() {
		q = q.Where(fmt.Sprintf("matures_at <= $%d", argIdx), opts.MaturesBefore)
	}
	q = q.OrderExpr("created_at ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/postgres: list investments: %w", err)
	}
	return convertAll(models, fromInvestmentModel)
}

func (s *Store) CountInvestmentsByStatus(ctx context.Context) (map[investment.Status]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM payout_investments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("payout/postgres: count investments: %w", err)
	}
	defer rows.Close()

	counts := make(map[investment.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[investment.Status(status)] = n
	}
	return counts, rows.Err()
}

// ==================== Queue reads ====================

func (s *Store) ListQueue(ctx context.Context, opts queue.ListOpts) ([]*queue.Entry, error) {
	var models []queueEntryModel
	q := s.pg.NewSelect(&models)
	if !opts.InvestorID.IsNil() {
		q = q.Where("investor_id = $1", opts.InvestorID.String())
	}
	q = q.OrderExpr("enqueued_at ASC, seq ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/postgres: list queue: %w", err)
	}
	return convertAll(models, fromQueueEntryModel)
}

func (s *Store) GetQueueEntryByInvestment(ctx context.Context, investmentID id.InvestmentID) (*queue.Entry, error) {
	m := new(queueEntryModel)
	err := s.pg.NewSelect(m).
		Where("investment_id = $1", investmentID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return fromQueueEntryModel(m)
}

func (s *Store) QueueStats(ctx context.Context) (queue.Stats, error) {
	var st queue.Stats
	if err := s.pg.NewRaw(`SELECT COUNT(*) FROM payout_queue`).Scan(ctx, &st.Entries); err != nil {
		return st, fmt.Errorf("payout/postgres: queue stats: %w", err)
	}
	if err := s.pg.NewRaw(`SELECT COALESCE(SUM(amount_remaining), 0)::BIGINT FROM payout_queue`).Scan(ctx, &st.Remaining); err != nil {
		return st, fmt.Errorf("payout/postgres: queue stats: %w", err)
	}
	return st, nil
}

// ==================== Pairing reads ====================

func (s *Store) GetPairing(ctx context.Context, pairingID id.PairingID) (*pairing.Pairing, error) {
	m := new(pairingModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", pairingID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return fromPairingModel(m)
}

func (s *Store) ListPairings(ctx context.Context, opts pairing.ListOpts) ([]*pairing.Pairing, error) {
	var models []pairingModel
	q := s.pg.NewSelect(&models)
	argIdx := 1
	if !opts.InvestorID.IsNil() {
		q = q.Where(fmt.Sprintf("(matured_investor_id = $%d OR new_investor_id = $%d)", argIdx, argIdx), opts.InvestorID.String())
		argIdx++
	}
	if !opts.InvestmentID.IsNil() {
		q = q.Where(fmt.Sprintf("(matured_investment_id = $%d OR new_investment_id = $%d)", argIdx, argIdx), opts.InvestmentID.String())
		argIdx++
	}
	if opts.PaymentStatus != "" {
		q = q.Where(fmt.Sprintf("payment_status = $%d", argIdx), string(opts.PaymentStatus))
		argIdx++
	}
	if !opts.DueBefore.IsZero() {
		q = q.Where(fmt.Sprintf("due_at < $%d", argIdx), opts.DueBefore)
	}
	q = q.OrderExpr("paired_at ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/postgres: list pairings: %w", err)
	}
	return convertAll(models, fromPairingModel)
}

// ==================== Referral reads ====================

func (s *Store) ListReferrals(ctx context.Context, opts referral.ListOpts) ([]*referral.Record, error) {
	var models []referralModel
	q := s.pg.NewSelect(&models)
	argIdx := 1
	if !opts.ReferrerID.IsNil() {
		q = q.Where(fmt.Sprintf("referrer_id = $%d", argIdx), opts.ReferrerID.String())
		argIdx++
	}
	if !opts.ReferredID.IsNil() {
		q = q.Where(fmt.Sprintf("referred_id = $%d", argIdx), opts.ReferredID.String())
		argIdx++
	}
	if opts.Status != "" {
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	q = q.OrderExpr("created_at ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/postgres: list referrals: %w", err)
	}
	return convertAll(models, fromReferralModel)
}

// ==================== Payment reads ====================

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models)
	argIdx := 1
	if !opts.InvestmentID.IsNil() {
		q = q.Where(fmt.Sprintf("investment_id = $%d", argIdx), opts.InvestmentID.String())
		argIdx++
	}
	if !opts.PairingID.IsNil() {
		q = q.Where(fmt.Sprintf("pairing_id = $%d", argIdx), opts.PairingID.String())
		argIdx++
	}
	if !opts.InvestorID.IsNil() {
		q = q.Where(fmt.Sprintf("(from_investor_id = $%d OR to_investor_id = $%d)", argIdx, argIdx), opts.InvestorID.String())
	}
	q = q.OrderExpr("created_at ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/postgres: list payments: %w", err)
	}
	return convertAll(models, fromPaymentModel)
}

// ==================== Helpers ====================

func convertAll[M, T any](models []M, convert func(*M) (*T, error)) ([]*T, error) {
	result := make([]*T, 0, len(models))
	for i := range models {
		item, err := convert(&models[i])
		if err != nil {
			return nil, fmt.Errorf("payout/postgres: decode row: %w", err)
		}
		result = append(result, item)
	}
	return result, nil
}

// isNoRows checks if an error wraps sql.ErrNoRows or pgx.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func notFound(err error) error {
	if isNoRows(err) {
		return payoutstore.ErrNotFound
	}
	return err
}

// mapError translates PostgreSQL error codes into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", payoutstore.ErrAlreadyExists, pgErr.ConstraintName)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", payoutstore.ErrConflict, pgErr.Message)
		}
	}
	return err
}
