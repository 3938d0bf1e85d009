// Package audittest provides lifecycle fixtures for tests.
package audittest

import (
	"database/sql"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/shopspring/decimal"
)

const (
	ContractID       int64 = 10
	EntityID         int64 = 1
	SupplierID       int64 = 2
	SupplierDocument       = "12345678000199"
	SupplierName           = "ACME LTDA"
)

func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ContractDate is the effective date of the default contract.
var ContractDate = Date(2024, time.January, 10)

func Contract() models.Contract {
	return models.Contract{
		ID:          ContractID,
		Value:       Money("10000.00"),
		Date:        ContractDate,
		Description: "Fornecimento de material de escritório",
		EntityID:    EntityID,
		SupplierID:  SupplierID,
	}
}

func Entity() models.Entity {
	return models.Entity{ID: EntityID, Name: "Prefeitura Municipal de Olinda", State: "PE", Municipality: "Olinda", TaxID: "10404184000109"}
}

func Supplier() models.Supplier {
	return models.Supplier{ID: SupplierID, Name: SupplierName, Document: SupplierDocument}
}

// Commitment returns a commitment of the default contract and supplier.
func Commitment(id, value string, date time.Time) models.Commitment {
	return models.Commitment{
		ID:            id,
		Year:          int64(date.Year()),
		Date:          date,
		CreditorTaxID: SupplierDocument,
		CreditorName:  SupplierName,
		Value:         Money(value),
		EntityID:      EntityID,
		ContractID:    sql.NullInt64{Int64: ContractID, Valid: true},
	}
}

// Settlement returns a settlement; an empty key means not invoiced.
func Settlement(id int64, commitmentID, key, value string, date time.Time) models.Settlement {
	s := models.Settlement{ID: id, CommitmentID: commitmentID, IssueDate: date, Value: Money(value)}
	if key != "" {
		s.InvoiceKey = sql.NullString{String: key, Valid: true}
	}
	return s
}

func Invoice(key, total string, issued time.Time) models.Invoice {
	return models.Invoice{ID: 1, Key: key, Number: "1001", IssuedAt: issued, IssuerTaxID: SupplierDocument, Total: Money(total)}
}

func Payment(id, commitmentID, value string, date time.Time) models.Payment {
	return models.Payment{ID: id, CommitmentID: commitmentID, Date: date, Value: Money(value)}
}

func InvoicePayment(id, key, value string) models.InvoicePayment {
	return models.InvoicePayment{ID: id, InvoiceKey: key, Type: "transferência", Value: Money(value)}
}

// Scenario is a contract plus the related data a batch loader would return.
type Scenario struct {
	Contract models.Contract
	Related  *aggregate.Related
}

// NewScenario starts from the default contract, entity and supplier.
func NewScenario() *Scenario {
	rel := aggregate.NewRelated()
	rel.Entities[EntityID] = Entity()
	rel.Suppliers[SupplierID] = Supplier()
	return &Scenario{Contract: Contract(), Related: rel}
}

func (s *Scenario) WithCommitment(c models.Commitment) *Scenario {
	id := s.Contract.ID
	if c.ContractID.Valid {
		id = c.ContractID.Int64
	}
	s.Related.Commitments[id] = append(s.Related.Commitments[id], c)
	return s
}

func (s *Scenario) WithSettlement(st models.Settlement) *Scenario {
	s.Related.Settlements[st.CommitmentID] = append(s.Related.Settlements[st.CommitmentID], st)
	return s
}

func (s *Scenario) WithInvoice(inv models.Invoice) *Scenario {
	s.Related.Invoices[inv.Key] = inv
	return s
}

func (s *Scenario) WithPayment(p models.Payment) *Scenario {
	s.Related.Payments[p.CommitmentID] = append(s.Related.Payments[p.CommitmentID], p)
	return s
}

func (s *Scenario) WithInvoicePayment(ip models.InvoicePayment) *Scenario {
	s.Related.InvoicePayments[ip.InvoiceKey] = append(s.Related.InvoicePayments[ip.InvoiceKey], ip)
	return s
}
