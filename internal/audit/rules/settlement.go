package rules

import (
	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/finutil"
	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/shopspring/decimal"
)

// SettlementPolicy tunes the settlement rules.
type SettlementPolicy struct {
	// RequireInvoice makes a settlement without a matched invoice a violation.
	RequireInvoice bool
}

// SettlementRules returns the settlement rule set in evaluation order.
func SettlementRules(policy SettlementPolicy) []Rule[*aggregate.SettlementAggregate] {
	return []Rule[*aggregate.SettlementAggregate]{
		{Name: "settlement_items", Check: func(agg *aggregate.SettlementAggregate) result.Result[Unit] {
			return checkSettlementItems(agg, policy)
		}},
		{Name: "invoice_limit", Check: checkInvoiceLimit},
	}
}

// settlementAccumulator folds the settlements of one commitment in a single
// pass, checking each item as it arrives.
type settlementAccumulator struct {
	contract   models.Contract
	supplier   models.Supplier
	commitment models.Commitment
	policy     SettlementPolicy
	total      decimal.Decimal
}

func (acc *settlementAccumulator) fold(it aggregate.SettlementItem) result.Result[Unit] {
	s := it.Settlement
	cm := acc.commitment

	if finutil.Before(s.IssueDate, cm.Date) {
		return violation("settlement %d dated %s is before commitment %s dated %s",
			s.ID, finutil.FormatDate(s.IssueDate), cm.ID, finutil.FormatDate(cm.Date))
	}
	if finutil.Before(s.IssueDate, acc.contract.Date) {
		return violation("settlement %d dated %s is before the contract date %s",
			s.ID, finutil.FormatDate(s.IssueDate), finutil.FormatDate(acc.contract.Date))
	}

	acc.total = acc.total.Add(s.Value)
	if acc.total.GreaterThan(cm.Value) {
		return violation("settlements of commitment %s reach %s at settlement %d, exceeding the commitment value %s",
			cm.ID, acc.total.StringFixed(2), s.ID, cm.Value.StringFixed(2))
	}

	inv := it.Invoice
	if inv == nil {
		if acc.policy.RequireInvoice {
			return violation("settlement %d of commitment %s has no invoice", s.ID, cm.ID)
		}
		return pass()
	}
	if inv.IssuerTaxID != acc.supplier.Document {
		return violation("invoice %s issuer %s differs from supplier document %s",
			inv.Key, inv.IssuerTaxID, acc.supplier.Document)
	}
	if finutil.After(inv.IssuedAt, s.IssueDate) {
		return violation("invoice %s issued %s after settlement %d dated %s",
			inv.Key, finutil.FormatDate(inv.IssuedAt), s.ID, finutil.FormatDate(s.IssueDate))
	}
	if finutil.Before(inv.IssuedAt, cm.Date) {
		return violation("invoice %s issued %s before commitment %s dated %s",
			inv.Key, finutil.FormatDate(inv.IssuedAt), cm.ID, finutil.FormatDate(cm.Date))
	}
	if finutil.Before(inv.IssuedAt, acc.contract.Date) {
		return violation("invoice %s issued %s before the contract date %s",
			inv.Key, finutil.FormatDate(inv.IssuedAt), finutil.FormatDate(acc.contract.Date))
	}
	return pass()
}

func checkSettlementItems(agg *aggregate.SettlementAggregate, policy SettlementPolicy) result.Result[Unit] {
	commitments := agg.CommitmentAggregate()
	for _, cid := range agg.CommitmentIDs() {
		cm, _ := commitments.Commitment(cid)
		acc := &settlementAccumulator{
			contract:   commitments.Contract(),
			supplier:   commitments.Supplier(),
			commitment: cm,
			policy:     policy,
			total:      decimal.Zero,
		}
		for _, it := range agg.Items(cid) {
			if res := acc.fold(it); res.IsErr() {
				return res
			}
		}
	}
	return pass()
}

// checkInvoiceLimit bounds the settlements of a commitment tied to one
// invoice key by that invoice's total. Partial settlements are allowed.
func checkInvoiceLimit(agg *aggregate.SettlementAggregate) result.Result[Unit] {
	keys := agg.InvoiceKeys()
	for _, cid := range agg.CommitmentIDs() {
		for _, key := range keys {
			inv, found := agg.Invoice(key)
			if !found {
				continue
			}
			sum, tied := decimal.Zero, false
			for _, it := range agg.ItemsByInvoice(key) {
				if it.Settlement.CommitmentID == cid {
					sum = sum.Add(it.Settlement.Value)
					tied = true
				}
			}
			if tied && sum.GreaterThan(inv.Total) {
				return violation("sum exceeds invoice value: settlements of commitment %s tied to invoice %s total %s, invoice value %s",
					cid, key, sum.StringFixed(2), inv.Total.StringFixed(2))
			}
		}
	}
	return pass()
}
