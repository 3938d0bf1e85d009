package rules

import (
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/finutil"
	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/shopspring/decimal"
)

// PaymentFragment holds every sum and date bound the payment rules need. It
// is built once per validation and only read by the rules.
type PaymentFragment struct {
	SettledByCommitment         map[string]decimal.Decimal
	FirstSettlementByCommitment map[string]time.Time

	// PaidCommitments lists commitments with payments in commitment order.
	PaidCommitments          []string
	PaidByCommitment         map[string]decimal.Decimal
	FirstPaymentByCommitment map[string]time.Time
	TotalPaid                decimal.Decimal
	LastPayment              *time.Time
	PaymentIDs               []string
	PaymentValues            []decimal.Decimal

	ContractValue       decimal.Decimal
	ContractDate        time.Time
	FirstCommitmentDate *time.Time

	Today time.Time
}

// BuildPaymentFragment aggregates the payment aggregate in one pass.
func BuildPaymentFragment(agg *aggregate.PaymentAggregate, today time.Time) PaymentFragment {
	settlements := agg.SettlementAggregate()
	commitments := agg.CommitmentAggregate()
	contract := commitments.Contract()

	f := PaymentFragment{
		SettledByCommitment:         make(map[string]decimal.Decimal),
		FirstSettlementByCommitment: make(map[string]time.Time),
		PaidByCommitment:            make(map[string]decimal.Decimal),
		FirstPaymentByCommitment:    make(map[string]time.Time),
		TotalPaid:                   decimal.Zero,
		ContractValue:               contract.Value,
		ContractDate:                contract.Date,
		Today:                       today,
	}

	for _, cid := range settlements.CommitmentIDs() {
		sum := decimal.Zero
		var first time.Time
		for i, it := range settlements.Items(cid) {
			sum = sum.Add(it.Settlement.Value)
			if i == 0 || it.Settlement.IssueDate.Before(first) {
				first = it.Settlement.IssueDate
			}
		}
		f.SettledByCommitment[cid] = sum
		f.FirstSettlementByCommitment[cid] = first
	}

	for _, cid := range agg.CommitmentIDs() {
		sum := decimal.Zero
		var first time.Time
		for i, p := range agg.Payments(cid) {
			sum = sum.Add(p.Value)
			f.PaymentIDs = append(f.PaymentIDs, p.ID)
			f.PaymentValues = append(f.PaymentValues, p.Value)
			if i == 0 || p.Date.Before(first) {
				first = p.Date
			}
			if f.LastPayment == nil || p.Date.After(*f.LastPayment) {
				last := p.Date
				f.LastPayment = &last
			}
		}
		f.PaidCommitments = append(f.PaidCommitments, cid)
		f.PaidByCommitment[cid] = sum
		f.FirstPaymentByCommitment[cid] = first
		f.TotalPaid = f.TotalPaid.Add(sum)
	}

	for _, cm := range commitments.Commitments() {
		if f.FirstCommitmentDate == nil || cm.Date.Before(*f.FirstCommitmentDate) {
			d := cm.Date
			f.FirstCommitmentDate = &d
		}
	}
	return f
}

// PaymentRules returns the payment rule set in evaluation order.
func PaymentRules() []Rule[PaymentFragment] {
	return []Rule[PaymentFragment]{
		{Name: "payment_requires_settlement", Check: paymentRequiresSettlement},
		{Name: "payment_ids_unique", Check: paymentIDsUnique},
		{Name: "payments_within_settlements", Check: paymentsWithinSettlements},
		{Name: "payments_within_contract", Check: paymentsWithinContract},
		{Name: "payment_value_positive", Check: paymentValuePositive},
		{Name: "payment_after_settlement", Check: paymentAfterSettlement},
		{Name: "payment_not_future", Check: paymentNotFuture},
		{Name: "payment_after_contract", Check: paymentAfterContract},
		{Name: "payment_after_commitment", Check: paymentAfterCommitment},
	}
}

func paymentRequiresSettlement(f PaymentFragment) result.Result[Unit] {
	for _, cid := range f.PaidCommitments {
		if _, ok := f.SettledByCommitment[cid]; !ok {
			return violation("payment without registered settlement: commitment %s has payments but no settlement", cid)
		}
	}
	return pass()
}

func paymentIDsUnique(f PaymentFragment) result.Result[Unit] {
	seen := make(map[string]int, len(f.PaymentIDs))
	var dupes []string
	for _, id := range f.PaymentIDs {
		seen[id]++
		if seen[id] == 2 {
			dupes = append(dupes, id)
		}
	}
	if len(dupes) > 0 {
		return violation("duplicate payments: ids %s", formatList(dupes))
	}
	return pass()
}

func paymentsWithinSettlements(f PaymentFragment) result.Result[Unit] {
	for _, cid := range f.PaidCommitments {
		paid := f.PaidByCommitment[cid]
		settled := f.SettledByCommitment[cid]
		if !finutil.SumsMatchLimit(paid, settled) {
			return violation("payments %s exceed settlements %s for commitment %s",
				finutil.Quantize(paid).StringFixed(2), finutil.Quantize(settled).StringFixed(2), cid)
		}
	}
	return pass()
}

func paymentsWithinContract(f PaymentFragment) result.Result[Unit] {
	if !finutil.SumsMatchLimit(f.TotalPaid, f.ContractValue) {
		return violation("total paid %s exceeds contract value %s",
			finutil.Quantize(f.TotalPaid).StringFixed(2), finutil.Quantize(f.ContractValue).StringFixed(2))
	}
	return pass()
}

func paymentValuePositive(f PaymentFragment) result.Result[Unit] {
	for i, v := range f.PaymentValues {
		if !v.IsPositive() {
			return violation("payment %s has non-positive value %s", f.PaymentIDs[i], v.String())
		}
	}
	return pass()
}

func paymentAfterSettlement(f PaymentFragment) result.Result[Unit] {
	for _, cid := range f.PaidCommitments {
		firstSettlement, ok := f.FirstSettlementByCommitment[cid]
		if !ok {
			continue
		}
		firstPayment := f.FirstPaymentByCommitment[cid]
		if finutil.Before(firstPayment, firstSettlement) {
			return violation("payment dated %s precedes the first settlement %s of commitment %s",
				finutil.FormatDate(firstPayment), finutil.FormatDate(firstSettlement), cid)
		}
	}
	return pass()
}

func paymentNotFuture(f PaymentFragment) result.Result[Unit] {
	if f.LastPayment != nil && finutil.After(*f.LastPayment, f.Today) {
		return violation("future-dated payment detected: %s", finutil.FormatDate(*f.LastPayment))
	}
	return pass()
}

func paymentAfterContract(f PaymentFragment) result.Result[Unit] {
	for _, cid := range f.PaidCommitments {
		firstPayment := f.FirstPaymentByCommitment[cid]
		if finutil.Before(firstPayment, f.ContractDate) {
			return violation("payment dated %s precedes the contract date %s (commitment %s)",
				finutil.FormatDate(firstPayment), finutil.FormatDate(f.ContractDate), cid)
		}
	}
	return pass()
}

func paymentAfterCommitment(f PaymentFragment) result.Result[Unit] {
	if f.FirstCommitmentDate == nil {
		return pass()
	}
	for _, cid := range f.PaidCommitments {
		firstPayment := f.FirstPaymentByCommitment[cid]
		if finutil.Before(firstPayment, *f.FirstCommitmentDate) {
			return violation("payment dated %s precedes the first commitment date %s (commitment %s)",
				finutil.FormatDate(firstPayment), finutil.FormatDate(*f.FirstCommitmentDate), cid)
		}
	}
	return pass()
}
