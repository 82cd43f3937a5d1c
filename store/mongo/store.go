// Package mongo implements store.Store on MongoDB.
//
// Transactions need a replica set. Documents read through a Tx ForUpdate
// method are claimed with a lock_version increment so that a concurrent
// transaction touching the same document hits a write conflict and is
// retried by the driver.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	payoutstore "github.com/xraph/payout/store"
)

// Collection name constants.
const (
	colInvestors   = "payout_investors"
	colInvestments = "payout_investments"
	colQueue       = "payout_queue"
	colPairings    = "payout_pairings"
	colReferrals   = "payout_referrals"
	colPayments    = "payout_payments"
	colLocks       = "payout_locks"
	colCounters    = "payout_counters"
)

// compile-time interface checks
var (
	_ payoutstore.Store = (*Store)(nil)
	_ payoutstore.Tx    = (*tx)(nil)
)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all payout collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("payout/mongo: migrate %s indexes: %w", col, err)
		}
	}

	// Transactions upsert into these; create them up front.
	singletons := map[string]string{colLocks: matchingLockID, colCounters: queueSeqID}
	for col, docID := range singletons {
		_, err := s.mdb.Collection(col).UpdateOne(ctx,
			bson.M{"_id": docID},
			bson.M{"$setOnInsert": bson.M{"_id": docID}},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("payout/mongo: seed %s: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInTx runs fn inside a multi-document transaction. The driver retries
// the whole callback on transient write conflicts; a conflict that outlives
// the retry window surfaces as store.ErrConflict.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx payoutstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client := s.mdb.Collection(colInvestments).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("payout/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(sc, &tx{s: s})
	})
	return mapError(err)
}

// ==================== Investor reads ====================

func (s *Store) CreateInvestor(ctx context.Context, inv *investor.Investor) error {
	m := toInvestorModel(inv)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) GetInvestor(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	var m investorModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": investorID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get investor")
	}
	return fromInvestorModel(&m)
}

func (s *Store) GetInvestorByReferralCode(ctx context.Context, code string) (*investor.Investor, error) {
	var m investorModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"referral_code": code}).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get investor by referral code")
	}
	return fromInvestorModel(&m)
}

func (s *Store) ListInvestors(ctx context.Context, opts investor.ListOpts) ([]*investor.Investor, error) {
	var models []investorModel

	filter := bson.M{}
	if !opts.ReferredBy.IsNil() {
		filter["referred_by"] = opts.ReferredBy.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/mongo: list investors: %w", err)
	}
	return convertAll(models, fromInvestorModel)
}

// ==================== Investment reads ====================

func (s *Store) GetInvestment(ctx context.Context, investmentID id.InvestmentID) (*investment.Investment, error) {
	var m investmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": investmentID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get investment")
	}
	return fromInvestmentModel(&m)
}

func (s *Store) ListInvestments(ctx context.Context, opts investment.ListOpts) ([]*investment.Investment, error) {
	var models []investmentModel

	filter := bson.M{}
	if !opts.InvestorID.IsNil() {
		filter["investor_id"] = opts.InvestorID.String()
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	if opts.Unmatured {
		filter["matured_at"] = nil
	}
	if !opts.MaturesBefore.IsZero() {
		filter["matures_at"] = bson.M{"$lte": opts.MaturesBefore}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/mongo: list investments: %w", err)
	}
	return convertAll(models, fromInvestmentModel)
}

func (s *Store) CountInvestmentsByStatus(ctx context.Context) (map[investment.Status]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.mdb.Collection(colInvestments).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("payout/mongo: count investments: %w", err)
	}
	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("payout/mongo: count investments: %w", err)
	}

	counts := make(map[investment.Status]int64, len(rows))
	for _, r := range rows {
		counts[investment.Status(r.Status)] = r.Count
	}
	return counts, nil
}

// ==================== Queue reads ====================

func (s *Store) ListQueue(ctx context.Context, opts queue.ListOpts) ([]*queue.Entry, error) {
	var models []queueEntryModel

	filter := bson.M{}
	if !opts.InvestorID.IsNil() {
		filter["investor_id"] = opts.InvestorID.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(queueOrder)
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/mongo: list queue: %w", err)
	}
	return convertAll(models, fromQueueEntryModel)
}

func (s *Store) GetQueueEntryByInvestment(ctx context.Context, investmentID id.InvestmentID) (*queue.Entry, error) {
	var m queueEntryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"investment_id": investmentID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get queue entry")
	}
	return fromQueueEntryModel(&m)
}

func (s *Store) QueueStats(ctx context.Context) (queue.Stats, error) {
	var st queue.Stats
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "entries", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "remaining", Value: bson.D{{Key: "$sum", Value: "$amount_remaining"}}},
		}}},
	}
	cursor, err := s.mdb.Collection(colQueue).Aggregate(ctx, pipeline)
	if err != nil {
		return st, fmt.Errorf("payout/mongo: queue stats: %w", err)
	}
	var rows []struct {
		Entries   int64 `bson:"entries"`
		Remaining int64 `bson:"remaining"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return st, fmt.Errorf("payout/mongo: queue stats: %w", err)
	}
	if len(rows) > 0 {
		st.Entries = rows[0].Entries
		st.Remaining = rows[0].Remaining
	}
	return st, nil
}

// ==================== Pairing reads ====================

func (s *Store) GetPairing(ctx context.Context, pairingID id.PairingID) (*pairing.Pairing, error) {
	var m pairingModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": pairingID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get pairing")
	}
	return fromPairingModel(&m)
}

func (s *Store) ListPairings(ctx context.Context, opts pairing.ListOpts) ([]*pairing.Pairing, error) {
	var models []pairingModel

	var and []bson.M
	if !opts.InvestorID.IsNil() {
		v := opts.InvestorID.String()
		and = append(and, bson.M{"$or": bson.A{bson.M{"matured_investor_id": v}, bson.M{"new_investor_id": v}}})
	}
	if !opts.InvestmentID.IsNil() {
		v := opts.InvestmentID.String()
		and = append(and, bson.M{"$or": bson.A{bson.M{"matured_investment_id": v}, bson.M{"new_investment_id": v}}})
	}
	if opts.PaymentStatus != "" {
		and = append(and, bson.M{"payment_status": string(opts.PaymentStatus)})
	}
	if !opts.DueBefore.IsZero() {
		and = append(and, bson.M{"due_at": bson.M{"$lt": opts.DueBefore}})
	}
	filter := bson.M{}
	if len(and) > 0 {
		filter["$and"] = and
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "paired_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/mongo: list pairings: %w", err)
	}
	return convertAll(models, fromPairingModel)
}

// ==================== Referral reads ====================

func (s *Store) ListReferrals(ctx context.Context, opts referral.ListOpts) ([]*referral.Record, error) {
	var models []referralModel

	filter := bson.M{}
	if !opts.ReferrerID.IsNil() {
		filter["referrer_id"] = opts.ReferrerID.String()
	}
	if !opts.ReferredID.IsNil() {
		filter["referred_id"] = opts.ReferredID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/mongo: list referrals: %w", err)
	}
	return convertAll(models, fromReferralModel)
}

// ==================== Payment reads ====================

func (s *Store) ListPayments(ctx context.Context, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	filter := bson.M{}
	if !opts.InvestmentID.IsNil() {
		filter["investment_id"] = opts.InvestmentID.String()
	}
	if !opts.PairingID.IsNil() {
		filter["pairing_id"] = opts.PairingID.String()
	}
	if !opts.InvestorID.IsNil() {
		v := opts.InvestorID.String()
		filter["$or"] = bson.A{bson.M{"from_investor_id": v}, bson.M{"to_investor_id": v}}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("payout/mongo: list payments: %w", err)
	}
	return convertAll(models, fromPaymentModel)
}

// ==================== Helpers ====================

var queueOrder = bson.D{{Key: "enqueued_at", Value: 1}, {Key: "seq", Value: 1}}

func convertAll[M, T any](models []M, convert func(*M) (*T, error)) ([]*T, error) {
	result := make([]*T, 0, len(models))
	for i := range models {
		item, err := convert(&models[i])
		if err != nil {
			return nil, fmt.Errorf("payout/mongo: decode document: %w", err)
		}
		result = append(result, item)
	}
	return result, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func notFound(err error, op string) error {
	if isNoDocuments(err) {
		return payoutstore.ErrNotFound
	}
	return fmt.Errorf("payout/mongo: %s: %w", op, err)
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", payoutstore.ErrAlreadyExists, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %v", payoutstore.ErrConflict, err)
	}
	return err
}

// migrationIndexes returns the index definitions for all payout collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colInvestors: {
			{
				Keys:    bson.D{{Key: "referral_code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "referred_by", Value: 1}}},
		},
		colInvestments: {
			{Keys: bson.D{{Key: "investor_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "matures_at", Value: 1}}},
			{Keys: bson.D{{Key: "matured_at", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colQueue: {
			{
				Keys:    bson.D{{Key: "investment_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: queueOrder},
			{Keys: bson.D{{Key: "investor_id", Value: 1}}},
		},
		colPairings: {
			{Keys: bson.D{{Key: "matured_investment_id", Value: 1}}},
			{Keys: bson.D{{Key: "new_investment_id", Value: 1}}},
			{Keys: bson.D{{Key: "payment_status", Value: 1}, {Key: "due_at", Value: 1}}},
		},
		colReferrals: {
			{Keys: bson.D{{Key: "referrer_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "referred_id", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "investment_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "pairing_id", Value: 1}}},
		},
	}
}
