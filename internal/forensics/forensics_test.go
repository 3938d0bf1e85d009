package forensics

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadingDigit(t *testing.T) {
	cases := map[string]int{
		"0.05":    5,
		"1234.50": 1,
		"-700":    7,
		"9":       9,
	}
	for in, want := range cases {
		got, ok := LeadingDigit(decimal.RequireFromString(in))
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := LeadingDigit(decimal.Zero)
	assert.False(t, ok)
}

// benfordSample has 1000 values whose leading digits follow Benford's law.
func benfordSample() []decimal.Decimal {
	counts := []int{301, 176, 125, 97, 79, 67, 58, 51, 46}
	var out []decimal.Decimal
	for i, n := range counts {
		for j := 0; j < n; j++ {
			out = append(out, decimal.RequireFromString(fmt.Sprintf("%d%d.%02d", i+1, j%100, j%97)))
		}
	}
	return out
}

func TestBenfordNaturalDistribution(t *testing.T) {
	res, err := Benford(benfordSample())
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Samples)
	assert.Len(t, res.Digits, 9)
	assert.False(t, res.Anomalous)
	assert.Less(t, res.MaxDelta, 0.01)
	assert.Greater(t, res.PValue, 0.9)
	assert.InDelta(t, 0.30103, res.Digits[0].ExpectedPct, 1e-5)
}

func TestBenfordFlagsFixedCeiling(t *testing.T) {
	values := make([]decimal.Decimal, 0, 100)
	for i := 0; i < 100; i++ {
		values = append(values, decimal.RequireFromString("9999.99"))
	}

	res, err := Benford(values)
	require.NoError(t, err)
	assert.True(t, res.Anomalous)
	assert.Equal(t, 9, res.SuspectDigit)
	assert.Less(t, res.PValue, 0.001)
}

func TestBenfordRequiresSamples(t *testing.T) {
	values := []decimal.Decimal{decimal.NewFromInt(12), decimal.Zero}

	res, err := Benford(values)
	require.ErrorIs(t, err, ErrInsufficientSamples)
	assert.Equal(t, 1, res.Samples)
}

func TestInvoiceReuse(t *testing.T) {
	usages := []InvoiceUsage{
		{InvoiceKey: "K1", ContractID: 1, SupplierDocument: "A"},
		{InvoiceKey: "K1", ContractID: 1, SupplierDocument: "A"},
		{InvoiceKey: "K2", ContractID: 1, SupplierDocument: "A"},
		{InvoiceKey: "K2", ContractID: 2, SupplierDocument: "A"},
		{InvoiceKey: "K3", ContractID: 3, SupplierDocument: "A"},
		{InvoiceKey: "K3", ContractID: 4, SupplierDocument: "B"},
		{InvoiceKey: "", ContractID: 5, SupplierDocument: "C"},
	}

	got := InvoiceReuse(usages)
	require.Len(t, got, 2)

	assert.Equal(t, "K3", got[0].InvoiceKey)
	assert.True(t, got[0].Critical)
	assert.Equal(t, []string{"A", "B"}, got[0].SupplierDocuments)

	assert.Equal(t, "K2", got[1].InvoiceKey)
	assert.False(t, got[1].Critical)
	assert.Equal(t, []int64{1, 2}, got[1].Contracts)
	assert.Equal(t, 2, got[1].Usages)
}

func TestInvoiceReuseEmpty(t *testing.T) {
	assert.Empty(t, InvoiceReuse(nil))
	assert.NotNil(t, InvoiceReuse(nil))
}

func TestOrphanCategory(t *testing.T) {
	ids := make([]string, 0, 60)
	for i := 60; i > 0; i-- {
		ids = append(ids, fmt.Sprintf("PGT-%03d", i))
	}

	c := NewOrphanCategory(OrphanPaymentsMissingCommitment, "pagamento", "empenho", 200, ids)
	assert.Equal(t, 60, c.Count)
	assert.Len(t, c.Samples, OrphanSampleLimit)
	assert.Equal(t, "PGT-001", c.Samples[0])

	empty := NewOrphanCategory(OrphanContractsMissingEntity, "contrato", "entidade", 10, nil)
	assert.NotNil(t, empty.Samples)

	report := OrphanReport{Categories: []OrphanCategory{c, empty}}
	assert.Equal(t, 60, report.Orphans())
	got, ok := report.Category(OrphanContractsMissingEntity)
	require.True(t, ok)
	assert.Zero(t, got.Count)
}
