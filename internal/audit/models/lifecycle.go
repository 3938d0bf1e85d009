package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/shopspring/decimal"
)

// Commitment ("empenho") reserves contract funds for a creditor.
type Commitment struct {
	ID            string          `db:"id_empenho" json:"id"`
	Year          int64           `db:"ano" json:"year"`
	Date          time.Time       `db:"data_empenho" json:"date"`
	CreditorTaxID string          `db:"cpf_cnpj_credor" json:"creditor_tax_id"`
	CreditorName  string          `db:"credor" json:"creditor_name"`
	Value         decimal.Decimal `db:"valor" json:"value"`
	EntityID      int64           `db:"id_entidade" json:"entity_id"`
	ContractID    sql.NullInt64   `db:"id_contrato" json:"contract_id"`
}

func (c Commitment) Validate() result.Result[Commitment] {
	return runChecks(fmt.Sprintf("commitment %s", c.ID), c,
		requiredText("id_empenho", c.ID),
		requiredID("id_entidade", c.EntityID),
		maxLen("id_empenho", c.ID, 50),
		maxLen("cpf_cnpj_credor", c.CreditorTaxID, 20),
		maxLen("credor", c.CreditorName, 255),
		maxMagnitude("valor", c.Value),
	)
}

func NewCommitment(row Row) result.Result[Commitment] {
	rr := rowReader{row: row}
	c := Commitment{
		ID:            rr.string("id_empenho"),
		Year:          rr.int64("ano"),
		Date:          rr.time("data_empenho"),
		CreditorTaxID: rr.firstString("cpf_cnpj_credor", "cpfcnpjcredor"),
		CreditorName:  rr.string("credor"),
		Value:         rr.decimal("valor"),
		EntityID:      rr.int64("id_entidade"),
		ContractID:    rr.nullInt64("id_contrato"),
	}
	if rr.err != nil {
		return structural[Commitment]("commitment", rr.err)
	}
	return c.Validate()
}

// Settlement ("liquidação") confirms delivery against a commitment. The
// invoice key is empty while the settlement has not been invoiced.
type Settlement struct {
	ID           int64           `db:"id_liquidacao_empenhonotafiscal" json:"id"`
	InvoiceKey   sql.NullString  `db:"chave_danfe" json:"invoice_key"`
	IssueDate    time.Time       `db:"data_emissao" json:"issue_date"`
	Value        decimal.Decimal `db:"valor" json:"value"`
	CommitmentID string          `db:"id_empenho" json:"commitment_id"`
}

func (s Settlement) Validate() result.Result[Settlement] {
	return runChecks(fmt.Sprintf("settlement %d", s.ID), s,
		requiredID("id_liquidacao_empenhonotafiscal", s.ID),
		requiredText("id_empenho", s.CommitmentID),
		maxLen("chave_danfe", s.InvoiceKey.String, 50),
		maxMagnitude("valor", s.Value),
	)
}

func NewSettlement(row Row) result.Result[Settlement] {
	rr := rowReader{row: row}
	s := Settlement{
		ID:           rr.int64("id_liquidacao_empenhonotafiscal"),
		InvoiceKey:   rr.nullString("chave_danfe"),
		IssueDate:    rr.time("data_emissao"),
		Value:        rr.decimal("valor"),
		CommitmentID: rr.string("id_empenho"),
	}
	if rr.err != nil {
		return structural[Settlement]("settlement", rr.err)
	}
	return s.Validate()
}

// Invoice is an electronic tax invoice (NFe) identified by its access key.
type Invoice struct {
	ID          int64           `db:"id" json:"id"`
	Key         string          `db:"chave_nfe" json:"key"`
	Number      string          `db:"numero_nfe" json:"number"`
	IssuedAt    time.Time       `db:"data_hora_emissao" json:"issued_at"`
	IssuerTaxID string          `db:"cnpj_emitente" json:"issuer_tax_id"`
	Total       decimal.Decimal `db:"valor_total_nfe" json:"total"`
}

func (n Invoice) Validate() result.Result[Invoice] {
	return runChecks(fmt.Sprintf("invoice %s", n.Key), n,
		requiredText("chave_nfe", n.Key),
		maxLen("chave_nfe", n.Key, 50),
		maxLen("numero_nfe", n.Number, 20),
		maxLen("cnpj_emitente", n.IssuerTaxID, 20),
		maxMagnitude("valor_total_nfe", n.Total),
	)
}

func NewInvoice(row Row) result.Result[Invoice] {
	rr := rowReader{row: row}
	n := Invoice{
		ID:          rr.int64("id"),
		Key:         rr.string("chave_nfe"),
		Number:      rr.nullString("numero_nfe").String,
		IssuedAt:    rr.time("data_hora_emissao"),
		IssuerTaxID: rr.string("cnpj_emitente"),
		Total:       rr.decimal("valor_total_nfe"),
	}
	if rr.err != nil {
		return structural[Invoice]("invoice", rr.err)
	}
	return n.Validate()
}

// Payment is linked to a commitment only, never to a specific settlement.
type Payment struct {
	ID           string          `db:"id_pagamento" json:"id"`
	CommitmentID string          `db:"id_empenho" json:"commitment_id"`
	Date         time.Time       `db:"data_pagamento_emp" json:"date"`
	Value        decimal.Decimal `db:"valor" json:"value"`
}

func (p Payment) Validate() result.Result[Payment] {
	return runChecks(fmt.Sprintf("payment %s", p.ID), p,
		requiredText("id_pagamento", p.ID),
		requiredText("id_empenho", p.CommitmentID),
		maxMagnitude("valor", p.Value),
	)
}

func NewPayment(row Row) result.Result[Payment] {
	rr := rowReader{row: row}
	p := Payment{
		ID:           rr.string("id_pagamento"),
		CommitmentID: rr.string("id_empenho"),
		Date:         rr.time("data_pagamento_emp"),
		Value:        rr.decimal("valor"),
	}
	if rr.err != nil {
		return structural[Payment]("payment", rr.err)
	}
	return p.Validate()
}

// InvoicePayment is one payment line declared inside an invoice.
type InvoicePayment struct {
	ID         string          `db:"id" json:"id"`
	InvoiceKey string          `db:"chave_nfe" json:"invoice_key"`
	Type       string          `db:"tipo_pagamento" json:"type"`
	Value      decimal.Decimal `db:"valor_pagamento" json:"value"`
}

func (ip InvoicePayment) Validate() result.Result[InvoicePayment] {
	return runChecks(fmt.Sprintf("invoice payment %s", ip.ID), ip,
		requiredText("chave_nfe", ip.InvoiceKey),
		maxLen("chave_nfe", ip.InvoiceKey, 50),
		maxMagnitude("valor_pagamento", ip.Value),
	)
}

func NewInvoicePayment(row Row) result.Result[InvoicePayment] {
	rr := rowReader{row: row}
	ip := InvoicePayment{
		ID:         rr.string("id"),
		InvoiceKey: rr.string("chave_nfe"),
		Type:       rr.nullString("tipo_pagamento").String,
		Value:      rr.decimal("valor_pagamento"),
	}
	if rr.err != nil {
		return structural[InvoicePayment]("invoice payment", rr.err)
	}
	return ip.Validate()
}

// Collect validates every row with factory and stops at the first failure.
func Collect[T any](rows []Row, factory func(Row) result.Result[T]) result.Result[[]T] {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		r := factory(row)
		if r.IsErr() {
			return result.Fail[[]T](r.Failure())
		}
		out = append(out, r.Value())
	}
	return result.Ok(out)
}
