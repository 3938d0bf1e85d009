package rules

import (
	"strings"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/finutil"
	"github.com/farxc/envelopa-auditoria/internal/result"
	"golang.org/x/text/cases"
)

// CommitmentContext is the read-only view the commitment rules inspect.
type CommitmentContext struct {
	Contract    models.Contract
	Entity      models.Entity
	Supplier    models.Supplier
	Commitments []models.Commitment
}

func NewCommitmentContext(agg *aggregate.CommitmentAggregate) CommitmentContext {
	return CommitmentContext{
		Contract:    agg.Contract(),
		Entity:      agg.Entity(),
		Supplier:    agg.Supplier(),
		Commitments: agg.Commitments(),
	}
}

// CommitmentRules returns the commitment rule set in evaluation order.
func CommitmentRules() []Rule[CommitmentContext] {
	return []Rule[CommitmentContext]{
		{Name: "entity_valid", Check: entityValid},
		{Name: "supplier_valid", Check: supplierValid},
		{Name: "commitments_same_entity", Check: commitmentsSameEntity},
		{Name: "creditor_document_matches_supplier", Check: creditorDocumentMatches},
		{Name: "commitments_same_contract", Check: commitmentsSameContract},
		{Name: "commitment_ids_unique", Check: commitmentIDsUnique},
		{Name: "commitment_total_within_contract", Check: commitmentTotalWithinContract},
		{Name: "commitment_date_after_contract", Check: commitmentDateAfterContract},
		{Name: "creditor_name_matches_supplier", Check: creditorNameMatches},
	}
}

func entityValid(c CommitmentContext) result.Result[Unit] {
	if res := c.Entity.Validate(); res.IsErr() {
		return result.Fail[Unit](res.Failure())
	}
	return pass()
}

func supplierValid(c CommitmentContext) result.Result[Unit] {
	if res := c.Supplier.Validate(); res.IsErr() {
		return result.Fail[Unit](res.Failure())
	}
	return pass()
}

func commitmentsSameEntity(c CommitmentContext) result.Result[Unit] {
	for _, cm := range c.Commitments {
		if cm.EntityID != c.Contract.EntityID {
			return violation("commitment %s belongs to a different entity: %d, contract %d belongs to entity %d",
				cm.ID, cm.EntityID, c.Contract.ID, c.Contract.EntityID)
		}
	}
	return pass()
}

func creditorDocumentMatches(c CommitmentContext) result.Result[Unit] {
	document := strings.TrimSpace(c.Supplier.Document)
	for _, cm := range c.Commitments {
		if strings.TrimSpace(cm.CreditorTaxID) != document {
			return violation("commitment %s: creditor document %s differs from supplier document %s",
				cm.ID, cm.CreditorTaxID, c.Supplier.Document)
		}
	}
	return pass()
}

func commitmentsSameContract(c CommitmentContext) result.Result[Unit] {
	for _, cm := range c.Commitments {
		if !cm.ContractID.Valid || cm.ContractID.Int64 != c.Contract.ID {
			return violation("commitment %s is not linked to contract %d", cm.ID, c.Contract.ID)
		}
	}
	return pass()
}

func commitmentIDsUnique(c CommitmentContext) result.Result[Unit] {
	seen := make(map[string]int, len(c.Commitments))
	var dupes []string
	for _, cm := range c.Commitments {
		seen[cm.ID]++
		if seen[cm.ID] == 2 {
			dupes = append(dupes, cm.ID)
		}
	}
	if len(dupes) > 0 {
		return violation("duplicate commitments in contract %d: ids %s", c.Contract.ID, formatList(dupes))
	}
	return pass()
}

func commitmentTotalWithinContract(c CommitmentContext) result.Result[Unit] {
	total := finutil.Sum()
	for _, cm := range c.Commitments {
		total = total.Add(cm.Value)
	}
	if !finutil.SumsMatchLimit(total, c.Contract.Value) {
		return violation("sum of commitments %s exceeds contract value %s for contract %d",
			finutil.Quantize(total).StringFixed(2), finutil.Quantize(c.Contract.Value).StringFixed(2), c.Contract.ID)
	}
	return pass()
}

func commitmentDateAfterContract(c CommitmentContext) result.Result[Unit] {
	for _, cm := range c.Commitments {
		if finutil.Before(cm.Date, c.Contract.Date) {
			return violation("commitment %s dated %s is before the contract date %s",
				cm.ID, finutil.FormatDate(cm.Date), finutil.FormatDate(c.Contract.Date))
		}
	}
	return pass()
}

func creditorNameMatches(c CommitmentContext) result.Result[Unit] {
	want := foldName(c.Supplier.Name)
	for _, cm := range c.Commitments {
		if foldName(cm.CreditorName) != want {
			return violation("commitment %s: creditor name %q differs from supplier name %q",
				cm.ID, cm.CreditorName, c.Supplier.Name)
		}
	}
	return pass()
}

// foldName compares names case-insensitively; a Caser is not safe for
// concurrent use, so one is built per call.
func foldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
