package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/forensics"
	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var day = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func TestRowStoreFetchByID(t *testing.T) {
	db, mock := newMock(t)
	rs := &RowStore{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM entidade WHERE id_entidade = $1 LIMIT 1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id_entidade", "nome"}).AddRow(int64(1), "Prefeitura"))

	row, err := rs.FetchByID(context.Background(), "entidade", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "Prefeitura", row["nome"])

	mock.ExpectQuery("FROM entidade").
		WillReturnRows(sqlmock.NewRows([]string{"id_entidade", "nome"}))

	_, err = rs.FetchByID(context.Background(), "entidade", int64(9))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRowStoreRejectsUnknownNames(t *testing.T) {
	db, _ := newMock(t)
	rs := &RowStore{db: db}

	_, err := rs.FetchByID(context.Background(), "users; DROP TABLE contrato", 1)
	assert.ErrorContains(t, err, "unknown table")

	_, err = rs.FetchAllByForeignKey(context.Background(), "empenho", "valor", 1)
	assert.ErrorContains(t, err, "is not a lookup key of empenho")
}

func TestLifecycleStoreNotFoundAndOptionalInvoice(t *testing.T) {
	db, mock := newMock(t)
	ls := &LifecycleStore{rows: &RowStore{db: db}}

	mock.ExpectQuery("FROM fornecedor").WillReturnRows(sqlmock.NewRows([]string{"id_fornecedor"}))
	sup := ls.Supplier(context.Background(), 2)
	require.True(t, sup.IsErr())
	assert.Equal(t, result.KindFetch, sup.Kind())
	assert.Equal(t, "supplier 2 not found", sup.Err())

	mock.ExpectQuery("FROM nfe WHERE chave_nfe").WillReturnRows(sqlmock.NewRows([]string{"id", "chave_nfe"}))
	inv := ls.InvoiceByKey(context.Background(), "K1")
	require.True(t, inv.IsOk())
	assert.Nil(t, inv.Value())

	mock.ExpectQuery("FROM pagamento WHERE id_empenho").WillReturnError(errors.New("connection reset"))
	pays := ls.PaymentsByCommitment(context.Background(), "E1")
	require.True(t, pays.IsErr())
	assert.Equal(t, result.KindFetch, pays.Kind())
	assert.Contains(t, pays.Err(), "connection reset")
}

var contractColumns = []string{"id_contrato", "valor", "data", "objeto", "id_entidade", "id_fornecedor"}

func TestContractStorePaging(t *testing.T) {
	db, mock := newMock(t)
	cs := &ContractStore{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contrato")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	total, err := cs.CountContracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(contractColumns).
			AddRow(int64(10), "10000.00", day, "Obra", int64(1), int64(2)).
			AddRow(int64(11), "500.00", day, "Serviço", int64(1), int64(3)))

	page, err := cs.ContractPage(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(11), page[1].ID)
	assert.Equal(t, "500", page[1].Value.String())
}

func TestContractStoreMalformedRowFailsPage(t *testing.T) {
	db, mock := newMock(t)
	cs := &ContractStore{db: db}

	mock.ExpectQuery("FROM contrato WHERE id_contrato = ANY").
		WillReturnRows(sqlmock.NewRows(contractColumns).
			AddRow(int64(10), "10000.00", day, "Obra", int64(1), int64(2)).
			AddRow(int64(11), nil, day, "Serviço", int64(1), int64(3)))

	_, err := cs.ContractsByIDs(context.Background(), []int64{10, 11})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build contracts")
}

func TestBatchStoreLoadRelated(t *testing.T) {
	db, mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	bs := &BatchStore{db: db}

	mock.ExpectQuery("FROM entidade WHERE id_entidade = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id_entidade", "nome", "estado"}).
			AddRow(int64(1), "Prefeitura Municipal de Olinda", "PE"))
	mock.ExpectQuery("FROM fornecedor WHERE id_fornecedor = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id_fornecedor", "nome", "documento"}).
			AddRow(int64(2), "ACME LTDA", "12345678000199").
			AddRow(int64(3), "SEM DOCUMENTO", ""))
	mock.ExpectQuery("FROM empenho WHERE id_contrato = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id_empenho", "ano", "data_empenho", "cpf_cnpj_credor", "credor", "valor", "id_entidade", "id_contrato"}).
			AddRow("E1", int64(2024), day, "12345678000199", "ACME LTDA", "1000.00", int64(1), int64(10)))
	mock.ExpectQuery("FROM liquidacao_nota_fiscal WHERE id_empenho = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id_liquidacao_empenhonotafiscal", "chave_danfe", "data_emissao", "valor", "id_empenho"}).
			AddRow(int64(1), "K1", day, "1000.00", "E1"))
	mock.ExpectQuery("FROM pagamento WHERE id_empenho = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id_pagamento", "id_empenho", "data_pagamento_emp", "valor"}).
			AddRow("P1", "E1", day, "1000.00"))
	mock.ExpectQuery("FROM nfe WHERE chave_nfe = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id", "chave_nfe", "numero_nfe", "data_hora_emissao", "cnpj_emitente", "valor_total_nfe"}).
			AddRow(int64(1), "K1", "1001", day, "12345678000199", "1000.00"))
	mock.ExpectQuery("FROM nfe_pagamento WHERE chave_nfe = ANY").
		WillReturnRows(sqlmock.NewRows([]string{"id", "chave_nfe", "tipo_pagamento", "valor_pagamento"}).
			AddRow("1", "K1", "transferência", "1000.00"))

	contracts := []models.Contract{
		{ID: 10, EntityID: 1, SupplierID: 2},
		{ID: 11, EntityID: 1, SupplierID: 3},
	}
	rel, err := bs.LoadRelated(context.Background(), contracts)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Contains(t, rel.Entities, int64(1))
	assert.Contains(t, rel.Suppliers, int64(2))
	assert.NotContains(t, rel.Suppliers, int64(3))
	assert.Len(t, rel.Commitments[10], 1)
	assert.Len(t, rel.Settlements["E1"], 1)
	assert.Len(t, rel.Payments["E1"], 1)
	assert.Contains(t, rel.Invoices, "K1")
	assert.Len(t, rel.InvoicePayments["K1"], 1)

	sup := rel.Supplier(context.Background(), 3)
	require.True(t, sup.IsErr())
	assert.Equal(t, result.KindStructural, sup.Kind())
}

func TestBatchStoreLoadFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	bs := &BatchStore{db: db}

	mock.ExpectQuery("FROM entidade").WillReturnRows(sqlmock.NewRows([]string{"id_entidade", "nome"}))
	mock.ExpectQuery("FROM fornecedor").WillReturnError(errors.New("timeout"))
	mock.ExpectQuery("FROM empenho").WillReturnRows(sqlmock.NewRows([]string{"id_empenho"}))

	_, err := bs.LoadRelated(context.Background(), []models.Contract{{ID: 10, EntityID: 1, SupplierID: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load suppliers")
}

func TestBatchStoreEmptyPage(t *testing.T) {
	db, mock := newMock(t)
	rel, err := (&BatchStore{db: db}).LoadRelated(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rel.Commitments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRunStoreLifecycle(t *testing.T) {
	db, mock := newMock(t)
	as := &AuditRunStore{db: db}
	ctx := context.Background()

	run := &audit.Run{ID: uuid.New(), Trigger: audit.TriggerAPI, Status: audit.RunStatusInProgress, StartedAt: day}

	mock.ExpectQuery("INSERT INTO audit_run").
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(day.Add(time.Second)))
	require.NoError(t, as.StartRun(ctx, run))
	assert.Equal(t, day.Add(time.Second), run.StartedAt)

	mock.ExpectExec("INSERT INTO audit_finding").WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, as.RecordFindings(ctx, run.ID, []audit.Report{
		{ContractID: 11, Stage: audit.StageCommitment, Kind: "rule", Rule: "commitments_within_contract", Message: "over"},
		{ContractID: 12, Stage: audit.StagePayment, Kind: "rule", Rule: "payment_requires_settlement", Message: "unsettled"},
	}))

	run.Status = audit.RunStatusPartial
	run.FinishedAt = day.Add(time.Minute)
	run.Summary = audit.RunSummary{RunID: run.ID, Contracts: 3, Validated: 1}
	mock.ExpectExec("UPDATE audit_run").
		WithArgs(audit.RunStatusPartial, run.FinishedAt, 3, 1, sqlmock.AnyArg(), run.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, as.FinishRun(ctx, run))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRunStoreNoFindingsSkipsInsert(t *testing.T) {
	db, mock := newMock(t)
	require.NoError(t, (&AuditRunStore{db: db}).RecordFindings(context.Background(), uuid.New(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRunStoreNotFound(t *testing.T) {
	db, mock := newMock(t)
	as := &AuditRunStore{db: db}
	id := uuid.New()

	mock.ExpectQuery("FROM audit_run").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := as.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec("UPDATE audit_run").WillReturnResult(sqlmock.NewResult(0, 0))
	err = as.FinishRun(context.Background(), &audit.Run{ID: id})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuditRunStoreFindings(t *testing.T) {
	db, mock := newMock(t)
	as := &AuditRunStore{db: db}
	id := uuid.New()

	mock.ExpectQuery("FROM audit_finding").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "contract_id", "stage", "build_error", "kind", "rule", "message"}).
			AddRow(int64(1), id.String(), int64(11), "commitment", false, "rule", "commitments_within_contract", "over"))

	findings, err := as.Findings(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, id, findings[0].RunID)
	assert.Equal(t, "commitments_within_contract", findings[0].Rule)
}

func TestForensicsStorePaymentValues(t *testing.T) {
	db, mock := newMock(t)
	fs := &ForensicsStore{db: db}

	mock.ExpectQuery("SELECT valor FROM pagamento").
		WillReturnRows(sqlmock.NewRows([]string{"valor"}).AddRow("123.45").AddRow("9.10"))

	values, err := fs.PaymentValues(context.Background())
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "123.45", values[0].StringFixed(2))
}

func TestForensicsStoreInvoiceUsages(t *testing.T) {
	db, mock := newMock(t)
	fs := &ForensicsStore{db: db}

	mock.ExpectQuery("FROM liquidacao_nota_fiscal l").
		WillReturnRows(sqlmock.NewRows([]string{"chave_danfe", "id_contrato", "id_empenho", "id_liquidacao_empenhonotafiscal", "cnpj_fornecedor_contrato"}).
			AddRow("K1", int64(10), "E1", int64(1), "111").
			AddRow("K1", int64(11), "E2", int64(2), "222"))

	usages, err := fs.InvoiceUsages(context.Background())
	require.NoError(t, err)

	findings := forensics.InvoiceReuse(usages)
	require.Len(t, findings, 1)
	assert.True(t, findings[0].Critical)
}

func TestForensicsStoreOrphans(t *testing.T) {
	db, mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	fs := &ForensicsStore{db: db}

	count := func(n int64) *sqlmock.Rows { return sqlmock.NewRows([]string{"count"}).AddRow(n) }
	ids := func(v ...string) *sqlmock.Rows {
		rows := sqlmock.NewRows([]string{"id"})
		for _, id := range v {
			rows.AddRow(id)
		}
		return rows
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pagamento")).WillReturnRows(count(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pagamento")).WillReturnRows(count(10))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM liquidacao_nota_fiscal")).WillReturnRows(count(5))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contrato")).WillReturnRows(count(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contrato")).WillReturnRows(count(3))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id_empenho IS NULL")).WillReturnRows(ids("P9", "P7"))
	mock.ExpectQuery(regexp.QuoteMeta("p.id_empenho IS NOT NULL")).WillReturnRows(ids())
	mock.ExpectQuery(regexp.QuoteMeta("FROM liquidacao_nota_fiscal l")).WillReturnRows(ids("4"))
	mock.ExpectQuery(regexp.QuoteMeta("en.id_entidade IS NULL")).WillReturnRows(ids())
	mock.ExpectQuery(regexp.QuoteMeta("f.id_fornecedor IS NULL")).WillReturnRows(ids("12"))

	report, err := fs.Orphans(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, report.Categories, 5)
	assert.Equal(t, 4, report.Orphans())

	nullCommitment, ok := report.Category(forensics.OrphanPaymentsNullCommitment)
	require.True(t, ok)
	assert.Equal(t, 10, nullCommitment.Total)
	assert.Equal(t, []string{"P7", "P9"}, nullCommitment.Samples)

	missing, _ := report.Category(forensics.OrphanPaymentsMissingCommitment)
	assert.Equal(t, 0, missing.Count)
	assert.Equal(t, []string{}, missing.Samples)
}
