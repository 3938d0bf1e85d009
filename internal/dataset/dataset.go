// Package dataset audits table exports on disk instead of a database. Each
// lifecycle table is read from <dir>/<table>.csv as exported by the portal:
// semicolon separated, Windows-1252 encoded, loosely quoted.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/forensics"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

const (
	TableContracts       = "contrato"
	TableEntities        = "entidade"
	TableSuppliers       = "fornecedor"
	TableCommitments     = "empenho"
	TableSettlements     = "liquidacao_nota_fiscal"
	TableInvoices        = "nfe"
	TablePayments        = "pagamento"
	TableInvoicePayments = "nfe_pagamento"
)

// ReadCSV decodes one export into raw rows. Every column is kept as text;
// coercion happens in the entity factories. Blank cells are left out.
func ReadCSV(r io.Reader) ([]models.Row, error) {
	data, err := io.ReadAll(charmap.Windows1252.NewDecoder().Reader(r))
	if err != nil {
		return nil, err
	}
	// gota refuses a header with no records; that is an empty table here.
	if !strings.Contains(strings.TrimSpace(string(data)), "\n") {
		return nil, nil
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.WithDelimiter(';'),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if err := df.Error(); err != nil {
		return nil, err
	}

	records := df.Records()
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]

	rows := make([]models.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(models.Row, len(header))
		for i, col := range header {
			if i < len(rec) && rec[i] != "" {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadTable reads <dir>/<table>.csv. A missing file reads as an empty table
// unless required is set.
func ReadTable(dir, table string, required bool) ([]models.Row, error) {
	path := filepath.Join(dir, table+".csv")

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	rows, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

// Dataset holds a whole export in memory. It is at once the contract source,
// the batch loader and the single-contract source of an audit.
type Dataset struct {
	*aggregate.Related
	contracts []models.Contract
	// commitmentContract maps a commitment id to its contract.
	commitmentContract map[string]int64
}

var (
	_ audit.ContractSource = (*Dataset)(nil)
	_ audit.RelatedLoader  = (*Dataset)(nil)
	_ aggregate.Sources    = (*Dataset)(nil)
)

// Load reads every table under dir. Only the contract table is required; a
// malformed contract row fails the load.
func Load(dir string) (*Dataset, error) {
	tables := make(map[string][]models.Row)
	for _, table := range []string{
		TableContracts, TableEntities, TableSuppliers, TableCommitments,
		TableSettlements, TableInvoices, TablePayments, TableInvoicePayments,
	} {
		rows, err := ReadTable(dir, table, table == TableContracts)
		if err != nil {
			return nil, err
		}
		tables[table] = rows
	}

	contracts, err := models.Collect(tables[TableContracts], models.NewContract).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("failed to build contracts: %w", err)
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })

	ds := &Dataset{
		Related:            aggregate.NewRelated(),
		contracts:          contracts,
		commitmentContract: make(map[string]int64),
	}
	rel := ds.Related

	aggregate.Distribute(rel, aggregate.LookupEntity, "id_entidade", tables[TableEntities], models.NewEntity, rel.AddEntity)
	aggregate.Distribute(rel, aggregate.LookupSupplier, "id_fornecedor", tables[TableSuppliers], models.NewSupplier, rel.AddSupplier)
	aggregate.Distribute(rel, aggregate.LookupCommitments, "id_contrato", tables[TableCommitments], models.NewCommitment, func(c models.Commitment) {
		rel.AddCommitment(c)
		if c.ContractID.Valid {
			ds.commitmentContract[c.ID] = c.ContractID.Int64
		}
	})
	aggregate.Distribute(rel, aggregate.LookupSettlements, "id_empenho", tables[TableSettlements], models.NewSettlement, rel.AddSettlement)
	aggregate.Distribute(rel, aggregate.LookupInvoice, "chave_nfe", tables[TableInvoices], models.NewInvoice, rel.AddInvoice)
	aggregate.Distribute(rel, aggregate.LookupPayments, "id_empenho", tables[TablePayments], models.NewPayment, rel.AddPayment)
	aggregate.Distribute(rel, aggregate.LookupInvoicePayments, "chave_nfe", tables[TableInvoicePayments], models.NewInvoicePayment, rel.AddInvoicePayment)

	return ds, nil
}

func (ds *Dataset) CountContracts(context.Context) (int, error) {
	return len(ds.contracts), nil
}

func (ds *Dataset) ContractPage(_ context.Context, offset, limit int) ([]models.Contract, error) {
	if offset >= len(ds.contracts) {
		return nil, nil
	}
	end := min(offset+limit, len(ds.contracts))
	return append([]models.Contract(nil), ds.contracts[offset:end]...), nil
}

func (ds *Dataset) ContractsByIDs(_ context.Context, ids []int64) ([]models.Contract, error) {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Contract
	for _, c := range ds.contracts {
		if wanted[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// LoadRelated returns the whole export: lookups are by key, so extra data
// is never seen by contracts outside the page.
func (ds *Dataset) LoadRelated(context.Context, []models.Contract) (*aggregate.Related, error) {
	return ds.Related, nil
}

func (ds *Dataset) PaymentValues(context.Context) ([]decimal.Decimal, error) {
	values := []decimal.Decimal{}
	for _, payments := range ds.Payments {
		for _, p := range payments {
			if p.Value.IsPositive() {
				values = append(values, p.Value)
			}
		}
	}
	return values, nil
}

func (ds *Dataset) InvoiceUsages(context.Context) ([]forensics.InvoiceUsage, error) {
	documents := make(map[int64]string, len(ds.contracts))
	for _, c := range ds.contracts {
		documents[c.ID] = ds.Suppliers[c.SupplierID].Document
	}

	usages := []forensics.InvoiceUsage{}
	for commitmentID, settlements := range ds.Settlements {
		contractID, ok := ds.commitmentContract[commitmentID]
		if !ok {
			continue
		}
		for _, s := range settlements {
			if !s.InvoiceKey.Valid || s.InvoiceKey.String == "" {
				continue
			}
			usages = append(usages, forensics.InvoiceUsage{
				InvoiceKey:       s.InvoiceKey.String,
				ContractID:       contractID,
				CommitmentID:     commitmentID,
				SettlementID:     s.ID,
				SupplierDocument: documents[contractID],
			})
		}
	}
	return usages, nil
}
