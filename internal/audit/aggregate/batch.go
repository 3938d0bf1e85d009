package aggregate

import (
	"context"
	"fmt"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

// Related is the pre-joined data of a batch of contracts, as produced by the
// batch loader. It satisfies every source interface by map lookup, so the
// batch builders reuse the single-contract construction logic.
type Related struct {
	Entities        map[int64]models.Entity
	Suppliers       map[int64]models.Supplier
	Commitments     map[int64][]models.Commitment
	Settlements     map[string][]models.Settlement
	Invoices        map[string]models.Invoice
	Payments        map[string][]models.Payment
	InvoicePayments map[string][]models.InvoicePayment

	// Rejected holds rows that failed validation while loading, keyed by the
	// lookup that would have returned them. That lookup returns the failure.
	Rejected map[string]*result.Failure
}

// Lookup names used as Rejected keys.
const (
	LookupEntity          = "entity"
	LookupSupplier        = "supplier"
	LookupCommitments     = "commitments"
	LookupSettlements     = "settlements"
	LookupInvoice         = "invoice"
	LookupPayments        = "payments"
	LookupInvoicePayments = "invoice_payments"
)

func NewRelated() *Related {
	return &Related{
		Entities:        make(map[int64]models.Entity),
		Suppliers:       make(map[int64]models.Supplier),
		Commitments:     make(map[int64][]models.Commitment),
		Settlements:     make(map[string][]models.Settlement),
		Invoices:        make(map[string]models.Invoice),
		Payments:        make(map[string][]models.Payment),
		InvoicePayments: make(map[string][]models.InvoicePayment),
		Rejected:        make(map[string]*result.Failure),
	}
}

func rejectKey(lookup string, key any) string {
	return fmt.Sprintf("%s:%v", lookup, key)
}

// Reject records f for the lookup of key. The first failure per key is kept.
func (r *Related) Reject(lookup string, key any, f *result.Failure) {
	k := rejectKey(lookup, key)
	if _, exists := r.Rejected[k]; !exists {
		r.Rejected[k] = f
	}
}

func (r *Related) rejected(lookup string, key any) *result.Failure {
	if len(r.Rejected) == 0 {
		return nil
	}
	return r.Rejected[rejectKey(lookup, key)]
}

func (r *Related) AddEntity(e models.Entity)     { r.Entities[e.ID] = e }
func (r *Related) AddSupplier(s models.Supplier) { r.Suppliers[s.ID] = s }

// AddCommitment files c under its contract. Commitments with no contract
// cannot be reached by any lookup and are dropped.
func (r *Related) AddCommitment(c models.Commitment) {
	if !c.ContractID.Valid {
		return
	}
	r.Commitments[c.ContractID.Int64] = append(r.Commitments[c.ContractID.Int64], c)
}

func (r *Related) AddSettlement(s models.Settlement) {
	r.Settlements[s.CommitmentID] = append(r.Settlements[s.CommitmentID], s)
}

// AddInvoice keeps the first invoice seen per key.
func (r *Related) AddInvoice(n models.Invoice) {
	if _, dup := r.Invoices[n.Key]; !dup {
		r.Invoices[n.Key] = n
	}
}

func (r *Related) AddPayment(p models.Payment) {
	r.Payments[p.CommitmentID] = append(r.Payments[p.CommitmentID], p)
}

func (r *Related) AddInvoicePayment(ip models.InvoicePayment) {
	r.InvoicePayments[ip.InvoiceKey] = append(r.InvoicePayments[ip.InvoiceKey], ip)
}

// Distribute builds each row with factory and hands the valid ones to add.
// A failing row is rejected under lookup, keyed by its keyColumn value.
func Distribute[T any](rel *Related, lookup, keyColumn string, rows []models.Row, factory func(models.Row) result.Result[T], add func(T)) {
	for _, row := range rows {
		res := factory(row)
		if res.IsOk() {
			add(res.Value())
			continue
		}
		if key, err := row.String(keyColumn); err == nil {
			rel.Reject(lookup, key, res.Failure())
		}
	}
}

var _ Sources = (*Related)(nil)

func (r *Related) Entity(_ context.Context, id int64) result.Result[models.Entity] {
	if f := r.rejected(LookupEntity, id); f != nil {
		return result.Fail[models.Entity](f)
	}
	e, ok := r.Entities[id]
	if !ok {
		return result.Errf[models.Entity](result.KindFetch, "entity %d not found", id)
	}
	return result.Ok(e)
}

func (r *Related) Supplier(_ context.Context, id int64) result.Result[models.Supplier] {
	if f := r.rejected(LookupSupplier, id); f != nil {
		return result.Fail[models.Supplier](f)
	}
	s, ok := r.Suppliers[id]
	if !ok {
		return result.Errf[models.Supplier](result.KindFetch, "supplier %d not found", id)
	}
	return result.Ok(s)
}

func (r *Related) CommitmentsByContract(_ context.Context, contractID int64) result.Result[[]models.Commitment] {
	if f := r.rejected(LookupCommitments, contractID); f != nil {
		return result.Fail[[]models.Commitment](f)
	}
	return result.Ok(append([]models.Commitment(nil), r.Commitments[contractID]...))
}

func (r *Related) SettlementsByCommitment(_ context.Context, commitmentID string) result.Result[[]models.Settlement] {
	if f := r.rejected(LookupSettlements, commitmentID); f != nil {
		return result.Fail[[]models.Settlement](f)
	}
	return result.Ok(append([]models.Settlement(nil), r.Settlements[commitmentID]...))
}

func (r *Related) InvoiceByKey(_ context.Context, key string) result.Result[*models.Invoice] {
	if f := r.rejected(LookupInvoice, key); f != nil {
		return result.Fail[*models.Invoice](f)
	}
	inv, ok := r.Invoices[key]
	if !ok {
		return result.Ok[*models.Invoice](nil)
	}
	return result.Ok(&inv)
}

func (r *Related) PaymentsByCommitment(_ context.Context, commitmentID string) result.Result[[]models.Payment] {
	if f := r.rejected(LookupPayments, commitmentID); f != nil {
		return result.Fail[[]models.Payment](f)
	}
	return result.Ok(append([]models.Payment(nil), r.Payments[commitmentID]...))
}

func (r *Related) InvoicePaymentsByKey(_ context.Context, key string) result.Result[[]models.InvoicePayment] {
	if f := r.rejected(LookupInvoicePayments, key); f != nil {
		return result.Fail[[]models.InvoicePayment](f)
	}
	return result.Ok(append([]models.InvoicePayment(nil), r.InvoicePayments[key]...))
}

// Merge copies other into r. Later values win on key collisions.
func (r *Related) Merge(other *Related) {
	for k, v := range other.Entities {
		r.Entities[k] = v
	}
	for k, v := range other.Suppliers {
		r.Suppliers[k] = v
	}
	for k, v := range other.Commitments {
		r.Commitments[k] = v
	}
	for k, v := range other.Settlements {
		r.Settlements[k] = v
	}
	for k, v := range other.Invoices {
		r.Invoices[k] = v
	}
	for k, v := range other.Payments {
		r.Payments[k] = v
	}
	for k, v := range other.InvoicePayments {
		r.InvoicePayments[k] = v
	}
	for k, v := range other.Rejected {
		r.Rejected[k] = v
	}
}

// BuildCommitmentAggregates builds one aggregate per contract. Each item is
// isolated: a failure or panic in one contract never stops the others.
func BuildCommitmentAggregates(ctx context.Context, contracts []models.Contract, rel *Related) []result.Result[*CommitmentAggregate] {
	out := make([]result.Result[*CommitmentAggregate], len(contracts))
	for i, c := range contracts {
		out[i] = Guard(func() result.Result[*CommitmentAggregate] {
			return BuildCommitmentAggregate(ctx, c, rel)
		})
	}
	return out
}

func BuildSettlementAggregates(ctx context.Context, aggs []*CommitmentAggregate, rel *Related) []result.Result[*SettlementAggregate] {
	out := make([]result.Result[*SettlementAggregate], len(aggs))
	for i, a := range aggs {
		out[i] = Guard(func() result.Result[*SettlementAggregate] {
			if a == nil {
				panic(fmt.Sprintf("nil commitment aggregate at position %d", i))
			}
			return BuildSettlementAggregate(ctx, a, rel)
		})
	}
	return out
}

func BuildPaymentAggregates(ctx context.Context, aggs []*SettlementAggregate, rel *Related) []result.Result[*PaymentAggregate] {
	out := make([]result.Result[*PaymentAggregate], len(aggs))
	for i, a := range aggs {
		out[i] = Guard(func() result.Result[*PaymentAggregate] {
			if a == nil {
				panic(fmt.Sprintf("nil settlement aggregate at position %d", i))
			}
			return BuildPaymentAggregate(ctx, a, rel)
		})
	}
	return out
}
