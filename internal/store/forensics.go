package store

import (
	"context"
	"fmt"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/forensics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type ForensicsStore struct {
	db Queryer
}

func (fs *ForensicsStore) PaymentValues(ctx context.Context) ([]decimal.Decimal, error) {
	values := []decimal.Decimal{}
	if err := fs.db.SelectContext(ctx, &values, `SELECT valor FROM pagamento WHERE valor > 0`); err != nil {
		return nil, fmt.Errorf("failed to fetch payment values: %w", err)
	}
	return values, nil
}

// InvoiceUsages lists every settlement with an invoice key along with the
// contract and supplier document it was settled under.
func (fs *ForensicsStore) InvoiceUsages(ctx context.Context) ([]forensics.InvoiceUsage, error) {
	query := `
		SELECT
			l.chave_danfe,
			c.id_contrato,
			e.id_empenho,
			l.id_liquidacao_empenhonotafiscal,
			COALESCE(f.documento, '') AS cnpj_fornecedor_contrato
		FROM liquidacao_nota_fiscal l
		JOIN empenho e ON e.id_empenho = l.id_empenho
		JOIN contrato c ON c.id_contrato = e.id_contrato
		LEFT JOIN fornecedor f ON f.id_fornecedor = c.id_fornecedor
		WHERE l.chave_danfe IS NOT NULL AND l.chave_danfe <> ''
		ORDER BY l.chave_danfe, c.id_contrato`

	usages := []forensics.InvoiceUsage{}
	if err := fs.db.SelectContext(ctx, &usages, query); err != nil {
		return nil, fmt.Errorf("failed to fetch invoice usages: %w", err)
	}
	return usages, nil
}

type orphanQuery struct {
	name   string
	source string
	target string
	total  string
	ids    string
}

var orphanQueries = []orphanQuery{
	{
		name:   forensics.OrphanPaymentsNullCommitment,
		source: "pagamento",
		target: "empenho",
		total:  `SELECT COUNT(*) FROM pagamento`,
		ids:    `SELECT p.id_pagamento::text FROM pagamento p WHERE p.id_empenho IS NULL`,
	},
	{
		name:   forensics.OrphanPaymentsMissingCommitment,
		source: "pagamento",
		target: "empenho",
		total:  `SELECT COUNT(*) FROM pagamento`,
		ids: `SELECT p.id_pagamento::text FROM pagamento p
			LEFT JOIN empenho e ON e.id_empenho = p.id_empenho
			WHERE p.id_empenho IS NOT NULL AND e.id_empenho IS NULL`,
	},
	{
		name:   forensics.OrphanSettlementsMissingContract,
		source: "liquidacao_nota_fiscal",
		target: "contrato",
		total:  `SELECT COUNT(*) FROM liquidacao_nota_fiscal`,
		ids: `SELECT l.id_liquidacao_empenhonotafiscal::text FROM liquidacao_nota_fiscal l
			LEFT JOIN empenho e ON e.id_empenho = l.id_empenho
			LEFT JOIN contrato c ON c.id_contrato = e.id_contrato
			WHERE c.id_contrato IS NULL`,
	},
	{
		name:   forensics.OrphanContractsMissingEntity,
		source: "contrato",
		target: "entidade",
		total:  `SELECT COUNT(*) FROM contrato`,
		ids: `SELECT c.id_contrato::text FROM contrato c
			LEFT JOIN entidade en ON en.id_entidade = c.id_entidade
			WHERE en.id_entidade IS NULL`,
	},
	{
		name:   forensics.OrphanContractsMissingSupplier,
		source: "contrato",
		target: "fornecedor",
		total:  `SELECT COUNT(*) FROM contrato`,
		ids: `SELECT c.id_contrato::text FROM contrato c
			LEFT JOIN fornecedor f ON f.id_fornecedor = c.id_fornecedor
			WHERE f.id_fornecedor IS NULL`,
	},
}

// Orphans runs every dangling-reference query concurrently.
func (fs *ForensicsStore) Orphans(ctx context.Context) (forensics.OrphanReport, error) {
	categories := make([]forensics.OrphanCategory, len(orphanQueries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range orphanQueries {
		g.Go(func() error {
			var total int
			if err := fs.db.GetContext(gctx, &total, q.total); err != nil {
				return fmt.Errorf("failed to count %s: %w", q.source, err)
			}
			ids := []string{}
			if err := fs.db.SelectContext(gctx, &ids, q.ids); err != nil {
				return fmt.Errorf("failed to query %s: %w", q.name, err)
			}
			categories[i] = forensics.NewOrphanCategory(q.name, q.source, q.target, total, ids)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return forensics.OrphanReport{}, err
	}

	return forensics.OrphanReport{GeneratedAt: time.Now(), Categories: categories}, nil
}
