// Package aggregate builds the immutable Commitment, Settlement and Payment
// aggregates of one contract. Builders fetch through the source interfaces;
// the batch builders feed them from pre-loaded maps instead, so both paths
// share the same construction code.
package aggregate

import (
	"context"
	"fmt"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

type CommitmentSource interface {
	Entity(ctx context.Context, id int64) result.Result[models.Entity]
	Supplier(ctx context.Context, id int64) result.Result[models.Supplier]
	CommitmentsByContract(ctx context.Context, contractID int64) result.Result[[]models.Commitment]
}

// SettlementSource returns Ok(nil) from InvoiceByKey when no invoice matches.
type SettlementSource interface {
	SettlementsByCommitment(ctx context.Context, commitmentID string) result.Result[[]models.Settlement]
	InvoiceByKey(ctx context.Context, key string) result.Result[*models.Invoice]
}

type PaymentSource interface {
	PaymentsByCommitment(ctx context.Context, commitmentID string) result.Result[[]models.Payment]
}

// InvoicePaymentSource is only used by the invoice consistency check.
type InvoicePaymentSource interface {
	InvoicePaymentsByKey(ctx context.Context, key string) result.Result[[]models.InvoicePayment]
}

// Sources groups everything a full contract audit reads.
type Sources interface {
	CommitmentSource
	SettlementSource
	PaymentSource
	InvoicePaymentSource
}

func invariant[T any](format string, args ...any) result.Result[T] {
	return result.Errf[T](result.KindInvariant, "invariant violated: "+format, args...)
}

// Guard turns a panic inside build into an invariant failure for that one item.
func Guard[T any](build func() result.Result[T]) (out result.Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			out = result.Errf[T](result.KindInvariant, "invariant violated: %s", fmt.Sprint(rec))
		}
	}()
	return build()
}
