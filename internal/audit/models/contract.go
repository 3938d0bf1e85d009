package models

import (
	"fmt"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/shopspring/decimal"
)

type Contract struct {
	ID          int64           `db:"id_contrato" json:"id"`
	Value       decimal.Decimal `db:"valor" json:"value"`
	Date        time.Time       `db:"data" json:"date"`
	Description string          `db:"objeto" json:"description"`
	EntityID    int64           `db:"id_entidade" json:"entity_id"`
	SupplierID  int64           `db:"id_fornecedor" json:"supplier_id"`
}

func (c Contract) Validate() result.Result[Contract] {
	return runChecks(fmt.Sprintf("contract %d", c.ID), c,
		requiredID("id_contrato", c.ID),
		requiredID("id_entidade", c.EntityID),
		requiredID("id_fornecedor", c.SupplierID),
		maxLen("objeto", c.Description, 255),
		nonNegative("valor", c.Value),
		maxMagnitude("valor", c.Value),
	)
}

// NewContract reads and validates a contract row.
func NewContract(row Row) result.Result[Contract] {
	rr := rowReader{row: row}
	c := Contract{
		ID:         rr.int64("id_contrato"),
		Value:      rr.decimal("valor"),
		Date:       rr.time("data"),
		EntityID:   rr.int64("id_entidade"),
		SupplierID: rr.int64("id_fornecedor"),
	}
	if rr.err == nil && row.Has("objeto") {
		c.Description = rr.string("objeto")
	}
	if rr.err != nil {
		return structural[Contract]("contract", rr.err)
	}
	return c.Validate()
}

// Entity is the government body that owns a contract.
type Entity struct {
	ID           int64  `db:"id_entidade" json:"id"`
	Name         string `db:"nome" json:"name"`
	State        string `db:"estado" json:"state"`
	Municipality string `db:"municipio" json:"municipality"`
	TaxID        string `db:"cnpj" json:"tax_id"`
}

func (e Entity) Validate() result.Result[Entity] {
	return runChecks(fmt.Sprintf("entity %d", e.ID), e,
		requiredID("id_entidade", e.ID),
		requiredText("nome", e.Name),
		maxLen("nome", e.Name, 255),
		maxLen("estado", e.State, 50),
		maxLen("municipio", e.Municipality, 100),
		maxLen("cnpj", e.TaxID, 20),
	)
}

func NewEntity(row Row) result.Result[Entity] {
	rr := rowReader{row: row}
	e := Entity{
		ID:           rr.int64("id_entidade"),
		Name:         rr.string("nome"),
		State:        rr.nullString("estado").String,
		Municipality: rr.nullString("municipio").String,
		TaxID:        rr.nullString("cnpj").String,
	}
	if rr.err != nil {
		return structural[Entity]("entity", rr.err)
	}
	return e.Validate()
}

type Supplier struct {
	ID       int64  `db:"id_fornecedor" json:"id"`
	Name     string `db:"nome" json:"name"`
	Document string `db:"documento" json:"document"`
}

func (s Supplier) Validate() result.Result[Supplier] {
	return runChecks(fmt.Sprintf("supplier %d", s.ID), s,
		requiredID("id_fornecedor", s.ID),
		requiredText("documento", s.Document),
		maxLen("nome", s.Name, 255),
		maxLen("documento", s.Document, 20),
	)
}

func NewSupplier(row Row) result.Result[Supplier] {
	rr := rowReader{row: row}
	s := Supplier{
		ID:       rr.int64("id_fornecedor"),
		Name:     rr.nullString("nome").String,
		Document: rr.string("documento"),
	}
	if rr.err != nil {
		return structural[Supplier]("supplier", rr.err)
	}
	return s.Validate()
}
