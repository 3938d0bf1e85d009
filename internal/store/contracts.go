package store

import (
	"context"
	"fmt"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/lib/pq"
)

type ContractStore struct {
	db Queryer
}

func (cs *ContractStore) CountContracts(ctx context.Context) (int, error) {
	var total int
	if err := cs.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contrato`); err != nil {
		return 0, fmt.Errorf("failed to count contracts: %w", err)
	}
	return total, nil
}

func (cs *ContractStore) ContractPage(ctx context.Context, offset, limit int) ([]models.Contract, error) {
	query := `SELECT * FROM contrato ORDER BY id_contrato LIMIT $1 OFFSET $2`
	return cs.query(ctx, query, limit, offset)
}

func (cs *ContractStore) ContractsByIDs(ctx context.Context, ids []int64) ([]models.Contract, error) {
	query := `SELECT * FROM contrato WHERE id_contrato = ANY($1) ORDER BY id_contrato`
	return cs.query(ctx, query, pq.Array(ids))
}

// query builds contracts through the validating factory. A malformed
// contract row fails the whole page.
func (cs *ContractStore) query(ctx context.Context, query string, args ...interface{}) ([]models.Contract, error) {
	rows, err := cs.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	raw, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	contracts, err := models.Collect(raw, models.NewContract).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("failed to build contracts: %w", err)
	}
	return contracts, nil
}
