package aggregate

import (
	"context"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

// PaymentAggregate adds the payments of each commitment to a
// SettlementAggregate.
type PaymentAggregate struct {
	settlements *SettlementAggregate
	order       []string
	payments    map[string][]models.Payment
	count       int
}

// NewPaymentAggregate groups payments by commitment. Payments must belong to
// commitments of the contract.
func NewPaymentAggregate(agg *SettlementAggregate, payments []models.Payment) result.Result[*PaymentAggregate] {
	commitments := agg.CommitmentAggregate()
	pa := &PaymentAggregate{
		settlements: agg,
		payments:    make(map[string][]models.Payment),
		count:       len(payments),
	}
	for _, p := range payments {
		if _, ok := commitments.Commitment(p.CommitmentID); !ok {
			return invariant[*PaymentAggregate]("payment %s references commitment %s outside contract %d", p.ID, p.CommitmentID, commitments.Contract().ID)
		}
		pa.payments[p.CommitmentID] = append(pa.payments[p.CommitmentID], p)
	}
	for _, cid := range commitments.CommitmentIDs() {
		if len(pa.payments[cid]) > 0 {
			pa.order = append(pa.order, cid)
		}
	}
	return result.Ok(pa)
}

// BuildPaymentAggregate fetches the payments of every commitment.
func BuildPaymentAggregate(ctx context.Context, agg *SettlementAggregate, src PaymentSource) result.Result[*PaymentAggregate] {
	var all []models.Payment
	for _, cid := range agg.CommitmentAggregate().CommitmentIDs() {
		fetched := src.PaymentsByCommitment(ctx, cid)
		if fetched.IsErr() {
			return result.Fail[*PaymentAggregate](fetched.Failure())
		}
		for _, p := range fetched.Value() {
			if p.CommitmentID != cid {
				return invariant[*PaymentAggregate]("payment %s fetched for commitment %s belongs to %s", p.ID, cid, p.CommitmentID)
			}
		}
		all = append(all, fetched.Value()...)
	}
	return NewPaymentAggregate(agg, all)
}

func (a *PaymentAggregate) SettlementAggregate() *SettlementAggregate { return a.settlements }

func (a *PaymentAggregate) CommitmentAggregate() *CommitmentAggregate {
	return a.settlements.CommitmentAggregate()
}

// Count is the number of payments across all commitments.
func (a *PaymentAggregate) Count() int { return a.count }

// CommitmentIDs lists commitments with at least one payment, in commitment order.
func (a *PaymentAggregate) CommitmentIDs() []string {
	return append([]string(nil), a.order...)
}

// Payments returns a copy of the commitment's payments in load order.
func (a *PaymentAggregate) Payments(commitmentID string) []models.Payment {
	return append([]models.Payment(nil), a.payments[commitmentID]...)
}
