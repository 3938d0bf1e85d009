package rules

import (
	"context"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/shopspring/decimal"
)

const invoicePaymentsRule = "invoice_payments_match_total"

// CheckInvoicePayments requires the payment records of an invoice to add up
// to its total exactly. An invoice with no records is not yet reconciled and
// passes.
func CheckInvoicePayments(inv models.Invoice, records []models.InvoicePayment) result.Result[Unit] {
	if len(records) == 0 {
		return pass()
	}
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Value)
	}
	if !sum.Equal(inv.Total) {
		return violation("invoice %s payments total %s but the invoice value is %s",
			inv.Key, sum.String(), inv.Total.String())
	}
	return pass()
}

// ValidateInvoices runs CheckInvoicePayments over every invoice matched by the
// aggregate, fetching its records from src. Fetch failures are returned as is.
func ValidateInvoices(ctx context.Context, agg *aggregate.SettlementAggregate, src aggregate.InvoicePaymentSource) result.Result[*aggregate.SettlementAggregate] {
	for _, inv := range agg.Invoices() {
		records := src.InvoicePaymentsByKey(ctx, inv.Key)
		if records.IsErr() {
			return result.Fail[*aggregate.SettlementAggregate](records.Failure())
		}
		check := Apply(inv, []Rule[models.Invoice]{{
			Name: invoicePaymentsRule,
			Check: func(i models.Invoice) result.Result[Unit] {
				return CheckInvoicePayments(i, records.Value())
			},
		}})
		if check.IsErr() {
			return result.Fail[*aggregate.SettlementAggregate](check.Failure())
		}
	}
	return result.Ok(agg)
}
