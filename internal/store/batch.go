package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// BatchStore loads everything a page of contracts needs with one ANY($1)
// query per table, in three dependent rounds.
type BatchStore struct {
	db Queryer
}

const (
	queryEntities        = `SELECT * FROM entidade WHERE id_entidade = ANY($1)`
	querySuppliers       = `SELECT * FROM fornecedor WHERE id_fornecedor = ANY($1)`
	queryCommitments     = `SELECT * FROM empenho WHERE id_contrato = ANY($1) ORDER BY id_contrato, id_empenho`
	querySettlements     = `SELECT * FROM liquidacao_nota_fiscal WHERE id_empenho = ANY($1) ORDER BY id_empenho, id_liquidacao_empenhonotafiscal`
	queryPayments        = `SELECT * FROM pagamento WHERE id_empenho = ANY($1) ORDER BY id_empenho, id_pagamento`
	queryInvoices        = `SELECT * FROM nfe WHERE chave_nfe = ANY($1)`
	queryInvoicePayments = `SELECT * FROM nfe_pagamento WHERE chave_nfe = ANY($1) ORDER BY chave_nfe, id`
)

func (bs *BatchStore) selectRows(ctx context.Context, query string, arg interface{}) ([]models.Row, error) {
	rows, err := bs.db.QueryxContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (bs *BatchStore) LoadRelated(ctx context.Context, contracts []models.Contract) (*aggregate.Related, error) {
	rel := aggregate.NewRelated()
	if len(contracts) == 0 {
		return rel, nil
	}

	entityIDs, supplierIDs, contractIDs := contractKeys(contracts)

	var entityRows, supplierRows, commitmentRows []models.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		entityRows, err = bs.selectRows(gctx, queryEntities, pq.Array(entityIDs))
		return wrapLoad("entities", err)
	})
	g.Go(func() (err error) {
		supplierRows, err = bs.selectRows(gctx, querySuppliers, pq.Array(supplierIDs))
		return wrapLoad("suppliers", err)
	})
	g.Go(func() (err error) {
		commitmentRows, err = bs.selectRows(gctx, queryCommitments, pq.Array(contractIDs))
		return wrapLoad("commitments", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregate.Distribute(rel, aggregate.LookupEntity, "id_entidade", entityRows, models.NewEntity, rel.AddEntity)
	aggregate.Distribute(rel, aggregate.LookupSupplier, "id_fornecedor", supplierRows, models.NewSupplier, rel.AddSupplier)

	var commitmentIDs []string
	aggregate.Distribute(rel, aggregate.LookupCommitments, "id_contrato", commitmentRows, models.NewCommitment, func(c models.Commitment) {
		if c.ContractID.Valid {
			rel.AddCommitment(c)
			commitmentIDs = append(commitmentIDs, c.ID)
		}
	})
	if len(commitmentIDs) == 0 {
		return rel, nil
	}

	var settlementRows, paymentRows []models.Row
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		settlementRows, err = bs.selectRows(gctx, querySettlements, pq.Array(commitmentIDs))
		return wrapLoad("settlements", err)
	})
	g.Go(func() (err error) {
		paymentRows, err = bs.selectRows(gctx, queryPayments, pq.Array(commitmentIDs))
		return wrapLoad("payments", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keys := make(map[string]struct{})
	aggregate.Distribute(rel, aggregate.LookupSettlements, "id_empenho", settlementRows, models.NewSettlement, func(s models.Settlement) {
		rel.AddSettlement(s)
		if s.InvoiceKey.Valid && s.InvoiceKey.String != "" {
			keys[s.InvoiceKey.String] = struct{}{}
		}
	})
	aggregate.Distribute(rel, aggregate.LookupPayments, "id_empenho", paymentRows, models.NewPayment, rel.AddPayment)
	if len(keys) == 0 {
		return rel, nil
	}

	invoiceKeys := make([]string, 0, len(keys))
	for k := range keys {
		invoiceKeys = append(invoiceKeys, k)
	}
	sort.Strings(invoiceKeys)

	var invoiceRows, invoicePaymentRows []models.Row
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		invoiceRows, err = bs.selectRows(gctx, queryInvoices, pq.Array(invoiceKeys))
		return wrapLoad("invoices", err)
	})
	g.Go(func() (err error) {
		invoicePaymentRows, err = bs.selectRows(gctx, queryInvoicePayments, pq.Array(invoiceKeys))
		return wrapLoad("invoice payments", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregate.Distribute(rel, aggregate.LookupInvoice, "chave_nfe", invoiceRows, models.NewInvoice, rel.AddInvoice)
	aggregate.Distribute(rel, aggregate.LookupInvoicePayments, "chave_nfe", invoicePaymentRows, models.NewInvoicePayment, rel.AddInvoicePayment)

	return rel, nil
}

func contractKeys(contracts []models.Contract) (entities, suppliers, ids []int64) {
	seenEntity := make(map[int64]bool)
	seenSupplier := make(map[int64]bool)
	for _, c := range contracts {
		ids = append(ids, c.ID)
		if !seenEntity[c.EntityID] {
			seenEntity[c.EntityID] = true
			entities = append(entities, c.EntityID)
		}
		if !seenSupplier[c.SupplierID] {
			seenSupplier[c.SupplierID] = true
			suppliers = append(suppliers, c.SupplierID)
		}
	}
	return entities, suppliers, ids
}

func wrapLoad(what string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
	return nil
}
