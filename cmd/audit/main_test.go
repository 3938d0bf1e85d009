package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/forensics"
	"github.com/farxc/envelopa-auditoria/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatReport(t *testing.T) {
	ok := audit.Report{ContractID: 10, Stage: audit.StagePayment, Validated: true}
	assert.Equal(t, "C  10 | E:✓ L:✓ P:✓", formatReport(ok, false))
	assert.Equal(t, "C  10 | E:✓ L:✓ P:✓ N:.", formatReport(ok, true))

	failed := audit.Report{ContractID: 1234, Stage: audit.StageSettlement, Message: "settlement 3 of commitment E1 has no invoice"}
	assert.Equal(t, "C1234 | E:✓ L:✗ P:. | settlement 3 of commitment E1 has no invoice", formatReport(failed, false))

	build := audit.Report{ContractID: 7, Stage: audit.StageCommitment, BuildError: true, Message: "entity 1 not found"}
	assert.Equal(t, "C   7 | E:B L:. P:. | entity 1 not found", formatReport(build, false))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, audit.RunSummary{
		Contracts: 3,
		Validated: 1,
		Batches:   2,
		Stages: map[audit.Stage]audit.StageCounts{
			audit.StageCommitment: {Passed: 2, Failed: 1},
			audit.StageSettlement: {Passed: 2},
			audit.StagePayment:    {Passed: 1, Failed: 1},
		},
		TopErrors: []audit.ErrorCount{{Message: "payment without registered settlement: c", Count: 1}},
		Duration:  2 * time.Second,
	}, false)

	out := buf.String()
	assert.Contains(t, out, "Total contracts: 3")
	assert.Contains(t, out, "✓  EMP:   2  LIQ:   2  PAG:   1")
	assert.Contains(t, out, "✗  EMP:   1  LIQ:   0  PAG:   1")
	assert.Contains(t, out, "(1.5 contracts/s)")
	assert.Contains(t, out, "[   1x] payment without registered settlement: c")
	assert.NotContains(t, out, "NFE")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 10, 11 ,12")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12}, ids)

	ids, err = parseIDs("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = parseIDs("10,x")
	assert.ErrorContains(t, err, `invalid contract id "x"`)
}

type fakeForensics struct {
	values []decimal.Decimal
}

func (f fakeForensics) PaymentValues(context.Context) ([]decimal.Decimal, error) {
	return f.values, nil
}

func (f fakeForensics) InvoiceUsages(context.Context) ([]forensics.InvoiceUsage, error) {
	return []forensics.InvoiceUsage{
		{InvoiceKey: "K1", ContractID: 10, SupplierDocument: "111"},
		{InvoiceKey: "K1", ContractID: 11, SupplierDocument: "222"},
	}, nil
}

type fakeOrphanForensics struct {
	fakeForensics
}

func (fakeOrphanForensics) Orphans(context.Context) (forensics.OrphanReport, error) {
	return forensics.OrphanReport{Categories: []forensics.OrphanCategory{
		forensics.NewOrphanCategory(forensics.OrphanContractsMissingSupplier, "contrato", "fornecedor", 4, []string{"12"}),
	}}, nil
}

func TestRunForensics(t *testing.T) {
	values := make([]decimal.Decimal, 0, 60)
	for i := 0; i < 60; i++ {
		values = append(values, decimal.NewFromInt(int64(100+i*37)))
	}

	var buf bytes.Buffer
	runForensics(context.Background(), &buf, fakeForensics{values: values}, logger.NewNop())
	out := buf.String()
	assert.Contains(t, out, "BENFORD (60 payments)")
	assert.Contains(t, out, "INVOICE REUSE (1 invoices)")
	assert.Contains(t, out, "! K1")
	assert.NotContains(t, out, "ORPHANS")

	buf.Reset()
	runForensics(context.Background(), &buf, fakeOrphanForensics{}, logger.NewNop())
	out = buf.String()
	assert.NotContains(t, out, "BENFORD", "too few payments")
	assert.Contains(t, out, "ORPHANS (1 rows)")
	assert.Contains(t, out, "e.g. 12")
}
