package forensics

import (
	"sort"
)

// InvoiceUsage is one settlement that references an invoice key, together
// with the contract and supplier it was settled under.
type InvoiceUsage struct {
	InvoiceKey       string `db:"chave_danfe" json:"invoice_key"`
	ContractID       int64  `db:"id_contrato" json:"contract_id"`
	CommitmentID     string `db:"id_empenho" json:"commitment_id"`
	SettlementID     int64  `db:"id_liquidacao_empenhonotafiscal" json:"settlement_id"`
	SupplierDocument string `db:"cnpj_fornecedor_contrato" json:"supplier_document"`
}

// ReuseFinding is an invoice settled under more than one contract. It is
// Critical when those contracts belong to different suppliers.
type ReuseFinding struct {
	InvoiceKey        string   `json:"invoice_key"`
	Contracts         []int64  `json:"contracts"`
	SupplierDocuments []string `json:"supplier_documents"`
	Usages            int      `json:"usages"`
	Critical          bool     `json:"critical"`
}

func InvoiceReuse(usages []InvoiceUsage) []ReuseFinding {
	byKey := make(map[string][]InvoiceUsage)
	for _, u := range usages {
		if u.InvoiceKey == "" {
			continue
		}
		byKey[u.InvoiceKey] = append(byKey[u.InvoiceKey], u)
	}

	findings := []ReuseFinding{}
	for key, uses := range byKey {
		contracts := make(map[int64]struct{})
		docs := make(map[string]struct{})
		for _, u := range uses {
			contracts[u.ContractID] = struct{}{}
			docs[u.SupplierDocument] = struct{}{}
		}
		if len(contracts) < 2 {
			continue
		}
		f := ReuseFinding{
			InvoiceKey: key,
			Usages:     len(uses),
			Critical:   len(docs) > 1,
		}
		for id := range contracts {
			f.Contracts = append(f.Contracts, id)
		}
		for doc := range docs {
			f.SupplierDocuments = append(f.SupplierDocuments, doc)
		}
		sort.Slice(f.Contracts, func(i, j int) bool { return f.Contracts[i] < f.Contracts[j] })
		sort.Strings(f.SupplierDocuments)
		findings = append(findings, f)
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Critical != findings[j].Critical {
			return findings[i].Critical
		}
		return findings[i].InvoiceKey < findings[j].InvoiceKey
	})
	return findings
}
