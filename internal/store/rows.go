package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
)

type tableSpec struct {
	id  string
	fks []string
}

// tables whitelists what the row fetcher may read, since table and column
// names cannot be bound as query parameters.
var tables = map[string]tableSpec{
	"contrato":               {id: "id_contrato", fks: []string{"id_entidade", "id_fornecedor"}},
	"entidade":               {id: "id_entidade"},
	"fornecedor":             {id: "id_fornecedor", fks: []string{"documento"}},
	"empenho":                {id: "id_empenho", fks: []string{"id_contrato", "id_entidade"}},
	"liquidacao_nota_fiscal": {id: "id_liquidacao_empenhonotafiscal", fks: []string{"id_empenho", "chave_danfe"}},
	"nfe":                    {id: "id", fks: []string{"chave_nfe"}},
	"pagamento":              {id: "id_pagamento", fks: []string{"id_empenho"}},
	"nfe_pagamento":          {id: "id", fks: []string{"chave_nfe"}},
}

// RowStore returns raw rows keyed by column name. It knows nothing about
// the entities built from them.
type RowStore struct {
	db Queryer
}

func (rs *RowStore) FetchByID(ctx context.Context, table string, id any) (models.Row, error) {
	spec, ok := tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 LIMIT 1", table, spec.id)

	row := models.Row{}
	err := rs.db.QueryRowxContext(ctx, query, id).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %v: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %v: %w", table, id, err)
	}
	return row, nil
}

func (rs *RowStore) FetchAllByForeignKey(ctx context.Context, table, column string, id any) ([]models.Row, error) {
	spec, ok := tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	if !slices.Contains(spec.fks, column) {
		return nil, fmt.Errorf("column %q is not a lookup key of %s", column, table)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1 ORDER BY %s", table, column, spec.id)

	rows, err := rs.db.QueryxContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s by %s: %w", table, column, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func scanRows(rows interface {
	Next() bool
	MapScan(map[string]interface{}) error
	Err() error
}) ([]models.Row, error) {
	var out []models.Row
	for rows.Next() {
		row := models.Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
