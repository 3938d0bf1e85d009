package aggregate

import (
	"context"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

// CommitmentAggregate bundles a contract with its entity, supplier and
// commitments. It is immutable once built.
type CommitmentAggregate struct {
	contract    models.Contract
	entity      models.Entity
	supplier    models.Supplier
	order       []string
	commitments map[string]models.Commitment
}

// NewCommitmentAggregate checks the construction invariants and stores
// copies of its inputs.
func NewCommitmentAggregate(contract models.Contract, entity models.Entity, supplier models.Supplier, commitments []models.Commitment) result.Result[*CommitmentAggregate] {
	if contract.EntityID != entity.ID {
		return invariant[*CommitmentAggregate]("contract %d references entity %d but entity %d was loaded", contract.ID, contract.EntityID, entity.ID)
	}
	if contract.SupplierID != supplier.ID {
		return invariant[*CommitmentAggregate]("contract %d references supplier %d but supplier %d was loaded", contract.ID, contract.SupplierID, supplier.ID)
	}

	agg := &CommitmentAggregate{
		contract:    contract,
		entity:      entity,
		supplier:    supplier,
		order:       make([]string, 0, len(commitments)),
		commitments: make(map[string]models.Commitment, len(commitments)),
	}
	for _, c := range commitments {
		if !c.ContractID.Valid || c.ContractID.Int64 != contract.ID {
			return invariant[*CommitmentAggregate]("commitment %s does not belong to contract %d", c.ID, contract.ID)
		}
		if c.EntityID != contract.EntityID {
			return invariant[*CommitmentAggregate]("commitment %s belongs to entity %d, contract %d belongs to entity %d", c.ID, c.EntityID, contract.ID, contract.EntityID)
		}
		if _, dup := agg.commitments[c.ID]; dup {
			return invariant[*CommitmentAggregate]("duplicate commitment %s in contract %d", c.ID, contract.ID)
		}
		agg.order = append(agg.order, c.ID)
		agg.commitments[c.ID] = c
	}
	return result.Ok(agg)
}

// BuildCommitmentAggregate fetches entity, supplier and commitments of the
// contract. The first fetch failure is returned as is.
func BuildCommitmentAggregate(ctx context.Context, contract models.Contract, src CommitmentSource) result.Result[*CommitmentAggregate] {
	return result.Bind(src.Entity(ctx, contract.EntityID), func(entity models.Entity) result.Result[*CommitmentAggregate] {
		return result.Bind(src.Supplier(ctx, contract.SupplierID), func(supplier models.Supplier) result.Result[*CommitmentAggregate] {
			return result.Bind(src.CommitmentsByContract(ctx, contract.ID), func(commitments []models.Commitment) result.Result[*CommitmentAggregate] {
				return NewCommitmentAggregate(contract, entity, supplier, commitments)
			})
		})
	})
}

func (a *CommitmentAggregate) Contract() models.Contract { return a.contract }
func (a *CommitmentAggregate) Entity() models.Entity     { return a.entity }
func (a *CommitmentAggregate) Supplier() models.Supplier { return a.supplier }
func (a *CommitmentAggregate) Len() int                  { return len(a.order) }

// CommitmentIDs returns the commitment ids in load order.
func (a *CommitmentAggregate) CommitmentIDs() []string {
	return append([]string(nil), a.order...)
}

func (a *CommitmentAggregate) Commitment(id string) (models.Commitment, bool) {
	c, ok := a.commitments[id]
	return c, ok
}

// Commitments returns copies of the commitments in load order.
func (a *CommitmentAggregate) Commitments() []models.Commitment {
	out := make([]models.Commitment, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.commitments[id])
	}
	return out
}
