package store

import (
	"context"
	"errors"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

// LifecycleStore serves the single-contract aggregate builders, one query
// per lookup, through the row fetcher and the entity factories.
type LifecycleStore struct {
	rows *RowStore
}

var _ aggregate.Sources = (*LifecycleStore)(nil)

func fetchOne[T any](ctx context.Context, rows *RowStore, table, label string, id any, factory func(models.Row) result.Result[T]) result.Result[T] {
	row, err := rows.FetchByID(ctx, table, id)
	if errors.Is(err, ErrNotFound) {
		return result.Errf[T](result.KindFetch, "%s %v not found", label, id)
	}
	if err != nil {
		return result.FromError[T](result.KindFetch, err)
	}
	return factory(row)
}

func fetchAll[T any](ctx context.Context, rows *RowStore, table, column string, id any, factory func(models.Row) result.Result[T]) result.Result[[]T] {
	found, err := rows.FetchAllByForeignKey(ctx, table, column, id)
	if err != nil {
		return result.FromError[[]T](result.KindFetch, err)
	}
	return models.Collect(found, factory)
}

func (ls *LifecycleStore) Entity(ctx context.Context, id int64) result.Result[models.Entity] {
	return fetchOne(ctx, ls.rows, "entidade", "entity", id, models.NewEntity)
}

func (ls *LifecycleStore) Supplier(ctx context.Context, id int64) result.Result[models.Supplier] {
	return fetchOne(ctx, ls.rows, "fornecedor", "supplier", id, models.NewSupplier)
}

func (ls *LifecycleStore) CommitmentsByContract(ctx context.Context, contractID int64) result.Result[[]models.Commitment] {
	return fetchAll(ctx, ls.rows, "empenho", "id_contrato", contractID, models.NewCommitment)
}

func (ls *LifecycleStore) SettlementsByCommitment(ctx context.Context, commitmentID string) result.Result[[]models.Settlement] {
	return fetchAll(ctx, ls.rows, "liquidacao_nota_fiscal", "id_empenho", commitmentID, models.NewSettlement)
}

// InvoiceByKey returns Ok(nil) when no invoice has the key.
func (ls *LifecycleStore) InvoiceByKey(ctx context.Context, key string) result.Result[*models.Invoice] {
	invoices := fetchAll(ctx, ls.rows, "nfe", "chave_nfe", key, models.NewInvoice)
	return result.Map(invoices, func(found []models.Invoice) *models.Invoice {
		if len(found) == 0 {
			return nil
		}
		return &found[0]
	})
}

func (ls *LifecycleStore) PaymentsByCommitment(ctx context.Context, commitmentID string) result.Result[[]models.Payment] {
	return fetchAll(ctx, ls.rows, "pagamento", "id_empenho", commitmentID, models.NewPayment)
}

func (ls *LifecycleStore) InvoicePaymentsByKey(ctx context.Context, key string) result.Result[[]models.InvoicePayment] {
	return fetchAll(ctx, ls.rows, "nfe_pagamento", "chave_nfe", key, models.NewInvoicePayment)
}
