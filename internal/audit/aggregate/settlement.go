package aggregate

import (
	"context"
	"sort"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/audit/normalize"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

type SettlementItem = normalize.SettlementItem

// SettlementAggregate extends a CommitmentAggregate with the settlements of
// each commitment, indexed by commitment id then settlement id, plus an index
// by invoice key.
type SettlementAggregate struct {
	commitments *CommitmentAggregate
	grouped     normalize.Grouped
	count       int
}

// NewSettlementAggregate normalizes items and checks that every settlement
// belongs to a commitment of agg.
func NewSettlementAggregate(agg *CommitmentAggregate, items []SettlementItem) result.Result[*SettlementAggregate] {
	for _, it := range items {
		if _, ok := agg.Commitment(it.Settlement.CommitmentID); !ok {
			return invariant[*SettlementAggregate]("settlement %d references commitment %s outside contract %d", it.Settlement.ID, it.Settlement.CommitmentID, agg.Contract().ID)
		}
		if key, ok := it.InvoiceKey(); ok && it.Invoice != nil && it.Invoice.Key != key {
			return invariant[*SettlementAggregate]("settlement %d carries invoice key %s but invoice %s was loaded", it.Settlement.ID, key, it.Invoice.Key)
		}
	}
	return result.Map(normalize.Normalize(items), func(g normalize.Grouped) *SettlementAggregate {
		return &SettlementAggregate{commitments: agg, grouped: g, count: len(items)}
	})
}

// BuildSettlementAggregate fetches the settlements of every commitment and
// the invoice of every invoiced settlement. A commitment without settlements
// and a key without a matching invoice are both accepted.
func BuildSettlementAggregate(ctx context.Context, agg *CommitmentAggregate, src SettlementSource) result.Result[*SettlementAggregate] {
	invoices := make(map[string]*models.Invoice)
	var items []SettlementItem

	for _, cid := range agg.CommitmentIDs() {
		fetched := src.SettlementsByCommitment(ctx, cid)
		if fetched.IsErr() {
			return result.Fail[*SettlementAggregate](fetched.Failure())
		}
		for _, s := range fetched.Value() {
			if s.CommitmentID != cid {
				return invariant[*SettlementAggregate]("settlement %d fetched for commitment %s belongs to %s", s.ID, cid, s.CommitmentID)
			}
			it := SettlementItem{Settlement: s}
			if key, ok := it.InvoiceKey(); ok {
				inv, cached := invoices[key]
				if !cached {
					found := src.InvoiceByKey(ctx, key)
					if found.IsErr() {
						return result.Fail[*SettlementAggregate](found.Failure())
					}
					inv = found.Value()
					invoices[key] = inv
				}
				it.Invoice = inv
			}
			items = append(items, it)
		}
	}
	return NewSettlementAggregate(agg, items)
}

func (a *SettlementAggregate) CommitmentAggregate() *CommitmentAggregate { return a.commitments }

// Count is the number of settlements across all commitments.
func (a *SettlementAggregate) Count() int { return a.count }

// HasSettlements reports whether the commitment has at least one settlement.
func (a *SettlementAggregate) HasSettlements(commitmentID string) bool {
	return len(a.grouped.Order[commitmentID]) > 0
}

// CommitmentIDs lists the commitments that have settlements, in commitment order.
func (a *SettlementAggregate) CommitmentIDs() []string {
	var out []string
	for _, cid := range a.commitments.CommitmentIDs() {
		if a.HasSettlements(cid) {
			out = append(out, cid)
		}
	}
	return out
}

// Items returns copies of the commitment's settlements in arrival order.
func (a *SettlementAggregate) Items(commitmentID string) []SettlementItem {
	ids := a.grouped.Order[commitmentID]
	inner := a.grouped.ByCommitment[commitmentID]
	out := make([]SettlementItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, inner[id].Clone())
	}
	return out
}

func (a *SettlementAggregate) Item(commitmentID string, settlementID int64) (SettlementItem, bool) {
	it, ok := a.grouped.ByCommitment[commitmentID][settlementID]
	if !ok {
		return SettlementItem{}, false
	}
	return it.Clone(), true
}

// InvoiceKeys lists the invoice keys referenced by settlements, in first-seen order.
func (a *SettlementAggregate) InvoiceKeys() []string {
	return append([]string(nil), a.grouped.InvoiceKeys...)
}

// ItemsByInvoice returns the settlements tied to key, ordered by commitment
// then arrival.
func (a *SettlementAggregate) ItemsByInvoice(key string) []SettlementItem {
	refs := a.grouped.ByInvoiceKey[key]
	out := make([]SettlementItem, 0, len(refs))
	for _, ref := range refs {
		out = append(out, a.grouped.ByCommitment[ref.CommitmentID][ref.SettlementID].Clone())
	}
	return out
}

// Invoice returns the invoice loaded for key, if any.
func (a *SettlementAggregate) Invoice(key string) (models.Invoice, bool) {
	for _, ref := range a.grouped.ByInvoiceKey[key] {
		if inv := a.grouped.ByCommitment[ref.CommitmentID][ref.SettlementID].Invoice; inv != nil {
			return *inv, true
		}
	}
	return models.Invoice{}, false
}

// Invoices returns the distinct invoices found, sorted by key.
func (a *SettlementAggregate) Invoices() []models.Invoice {
	var out []models.Invoice
	for _, key := range a.grouped.InvoiceKeys {
		if inv, ok := a.Invoice(key); ok {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
