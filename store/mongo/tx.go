package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/payout/id"
	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/investor"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/payment"
	"github.com/xraph/payout/queue"
	"github.com/xraph/payout/referral"
	payoutstore "github.com/xraph/payout/store"
)

const (
	matchingLockID = "matching"
	queueSeqID     = "queue_seq"
)

// claim bumps lock_version on the documents it touches.
var claim = bson.M{"$inc": bson.M{"lock_version": 1}}

// tx runs every operation on the session context handed to the RunInTx
// callback.
type tx struct {
	s *Store
}

func (x *tx) col(name string) *mongo.Collection {
	return x.s.mdb.Collection(name)
}

// claimOne locks the first document matching filter and decodes it into out.
func (x *tx) claimOne(ctx context.Context, col string, filter bson.M, out any, opts ...*options.FindOneAndUpdateOptionsBuilder) error {
	o := options.FindOneAndUpdate().SetReturnDocument(options.After)
	for _, extra := range opts {
		o = extra.SetReturnDocument(options.After)
	}
	err := x.col(col).FindOneAndUpdate(ctx, filter, claim, o).Decode(out)
	if err != nil {
		if isNoDocuments(err) {
			return payoutstore.ErrNotFound
		}
		return mapError(err)
	}
	return nil
}

func (x *tx) replace(ctx context.Context, col, docID string, doc any) error {
	res, err := x.col(col).ReplaceOne(ctx, bson.M{"_id": docID}, doc)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return payoutstore.ErrNotFound
	}
	return nil
}

func (x *tx) insert(ctx context.Context, col string, doc any) error {
	_, err := x.col(col).InsertOne(ctx, doc)
	return mapError(err)
}

func (x *tx) AcquireMatchingLock(ctx context.Context) error {
	_, err := x.col(colLocks).UpdateOne(ctx,
		bson.M{"_id": matchingLockID},
		claim,
		options.UpdateOne().SetUpsert(true),
	)
	return mapError(err)
}

// ==================== Investors ====================

func (x *tx) GetInvestor(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	var m investorModel
	err := x.col(colInvestors).FindOne(ctx, bson.M{"_id": investorID.String()}).Decode(&m)
	if err != nil {
		return nil, notFound(err, "get investor")
	}
	return fromInvestorModel(&m)
}

func (x *tx) GetInvestorForUpdate(ctx context.Context, investorID id.InvestorID) (*investor.Investor, error) {
	var m investorModel
	if err := x.claimOne(ctx, colInvestors, bson.M{"_id": investorID.String()}, &m); err != nil {
		return nil, err
	}
	return fromInvestorModel(&m)
}

func (x *tx) UpdateInvestor(ctx context.Context, inv *investor.Investor) error {
	m := toInvestorModel(inv)
	return x.replace(ctx, colInvestors, m.ID, m)
}

// ==================== Investments ====================

func (x *tx) CreateInvestment(ctx context.Context, inv *investment.Investment) error {
	return x.insert(ctx, colInvestments, toInvestmentModel(inv))
}

func (x *tx) GetInvestmentForUpdate(ctx context.Context, investmentID id.InvestmentID) (*investment.Investment, error) {
	var m investmentModel
	if err := x.claimOne(ctx, colInvestments, bson.M{"_id": investmentID.String()}, &m); err != nil {
		return nil, err
	}
	return fromInvestmentModel(&m)
}

func (x *tx) UpdateInvestment(ctx context.Context, inv *investment.Investment) error {
	m := toInvestmentModel(inv)
	return x.replace(ctx, colInvestments, m.ID, m)
}

// ==================== Queue ====================

func (x *tx) EnqueueEntry(ctx context.Context, e *queue.Entry) error {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := x.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": queueSeqID},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return fmt.Errorf("payout/mongo: next queue seq: %w", mapError(err))
	}
	e.Seq = counter.Seq
	return x.insert(ctx, colQueue, toQueueEntryModel(e))
}

func (x *tx) LockQueueHead(ctx context.Context, exclude id.InvestorID) (*queue.Entry, error) {
	filter := bson.M{}
	if !exclude.IsNil() {
		filter["investor_id"] = bson.M{"$ne": exclude.String()}
	}
	var m queueEntryModel
	err := x.claimOne(ctx, colQueue, filter, &m, options.FindOneAndUpdate().SetSort(queueOrder))
	if err != nil {
		if errors.Is(err, payoutstore.ErrNotFound) {
			return nil, payoutstore.ErrQueueEmpty
		}
		return nil, err
	}
	return fromQueueEntryModel(&m)
}

func (x *tx) GetQueueEntryForUpdate(ctx context.Context, investmentID id.InvestmentID) (*queue.Entry, error) {
	var m queueEntryModel
	if err := x.claimOne(ctx, colQueue, bson.M{"investment_id": investmentID.String()}, &m); err != nil {
		return nil, err
	}
	return fromQueueEntryModel(&m)
}

func (x *tx) UpdateQueueEntry(ctx context.Context, e *queue.Entry) error {
	m := toQueueEntryModel(e)
	return x.replace(ctx, colQueue, m.ID, m)
}

func (x *tx) DeleteQueueEntry(ctx context.Context, entryID id.QueueEntryID) error {
	res, err := x.col(colQueue).DeleteOne(ctx, bson.M{"_id": entryID.String()})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return payoutstore.ErrNotFound
	}
	return nil
}

// ==================== Pairings ====================

func (x *tx) CreatePairing(ctx context.Context, p *pairing.Pairing) error {
	return x.insert(ctx, colPairings, toPairingModel(p))
}

func (x *tx) GetPairingForUpdate(ctx context.Context, pairingID id.PairingID) (*pairing.Pairing, error) {
	var m pairingModel
	if err := x.claimOne(ctx, colPairings, bson.M{"_id": pairingID.String()}, &m); err != nil {
		return nil, err
	}
	return fromPairingModel(&m)
}

func (x *tx) UpdatePairing(ctx context.Context, p *pairing.Pairing) error {
	m := toPairingModel(p)
	return x.replace(ctx, colPairings, m.ID, m)
}

func (x *tx) ListPendingPairingsForUpdate(ctx context.Context, investmentID id.InvestmentID) ([]*pairing.Pairing, error) {
	filter := bson.M{"matured_investment_id": investmentID.String(), "payment_status": string(pairing.PaymentPending)}
	if _, err := x.col(colPairings).UpdateMany(ctx, filter, claim); err != nil {
		return nil, mapError(err)
	}

	cursor, err := x.col(colPairings).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "paired_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapError(err)
	}
	var models []pairingModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("payout/mongo: pending pairings: %w", err)
	}
	return convertAll(models, fromPairingModel)
}

// ==================== Referrals ====================

func (x *tx) CreateReferral(ctx context.Context, r *referral.Record) error {
	return x.insert(ctx, colReferrals, toReferralModel(r))
}

func (x *tx) ListPendingReferralsForUpdate(ctx context.Context, referrerID id.InvestorID) ([]*referral.Record, error) {
	filter := bson.M{"referrer_id": referrerID.String(), "status": string(referral.StatusPending)}
	if _, err := x.col(colReferrals).UpdateMany(ctx, filter, claim); err != nil {
		return nil, mapError(err)
	}

	cursor, err := x.col(colReferrals).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapError(err)
	}
	var models []referralModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("payout/mongo: pending referrals: %w", err)
	}
	return convertAll(models, fromReferralModel)
}

func (x *tx) UpdateReferral(ctx context.Context, r *referral.Record) error {
	m := toReferralModel(r)
	return x.replace(ctx, colReferrals, m.ID, m)
}

// ==================== Payments ====================

func (x *tx) CreatePayment(ctx context.Context, p *payment.Payment) error {
	return x.insert(ctx, colPayments, toPaymentModel(p))
}

func (x *tx) SumPairingPayments(ctx context.Context, pairingID id.PairingID) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "pairing_id", Value: pairingID.String()}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cursor, err := x.col(colPayments).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, mapError(err)
	}
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("payout/mongo: sum payments: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
