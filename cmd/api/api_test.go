package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/audittest"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/forensics"
	"github.com/farxc/envelopa-auditoria/internal/logger"
	"github.com/farxc/envelopa-auditoria/internal/metrics"
	"github.com/farxc/envelopa-auditoria/internal/response"
	"github.com/farxc/envelopa-auditoria/internal/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContracts struct {
	contracts []models.Contract
}

func (f *fakeContracts) CountContracts(context.Context) (int, error) { return len(f.contracts), nil }

func (f *fakeContracts) ContractPage(_ context.Context, offset, limit int) ([]models.Contract, error) {
	if offset >= len(f.contracts) {
		return nil, nil
	}
	return f.contracts[offset:min(offset+limit, len(f.contracts))], nil
}

func (f *fakeContracts) ContractsByIDs(_ context.Context, ids []int64) ([]models.Contract, error) {
	var out []models.Contract
	for _, c := range f.contracts {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type fakeLoader struct {
	related *aggregate.Related
}

func (f *fakeLoader) LoadRelated(context.Context, []models.Contract) (*aggregate.Related, error) {
	return f.related, nil
}

type fakeRuns struct {
	mu       sync.Mutex
	runs     []store.AuditRun
	findings map[uuid.UUID][]store.AuditFinding
}

func (f *fakeRuns) StartRun(_ context.Context, run *audit.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, store.AuditRun{ID: run.ID, TriggerType: run.Trigger, Status: run.Status, StartedAt: run.StartedAt})
	return nil
}

func (f *fakeRuns) RecordFindings(_ context.Context, runID uuid.UUID, reports []audit.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range reports {
		f.findings[runID] = append(f.findings[runID], store.AuditFinding{RunID: runID, ContractID: r.ContractID, Stage: string(r.Stage), Message: r.Message})
	}
	return nil
}

func (f *fakeRuns) FinishRun(_ context.Context, run *audit.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == run.ID {
			f.runs[i].Status = run.Status
			f.runs[i].Contracts = run.Summary.Contracts
			f.runs[i].Validated = run.Summary.Validated
		}
	}
	return nil
}

func (f *fakeRuns) GetLatest(_ context.Context, limit int) ([]store.AuditRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[:min(limit, len(f.runs))], nil
}

func (f *fakeRuns) GetByID(_ context.Context, id uuid.UUID) (store.AuditRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return store.AuditRun{}, store.ErrNotFound
}

func (f *fakeRuns) Findings(_ context.Context, runID uuid.UUID) ([]store.AuditFinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findings[runID], nil
}

type fakeForensics struct {
	values []decimal.Decimal
	usages []forensics.InvoiceUsage
}

func (f *fakeForensics) PaymentValues(context.Context) ([]decimal.Decimal, error) {
	return f.values, nil
}

func (f *fakeForensics) InvoiceUsages(context.Context) ([]forensics.InvoiceUsage, error) {
	return f.usages, nil
}

func (f *fakeForensics) Orphans(context.Context) (forensics.OrphanReport, error) {
	return forensics.OrphanReport{Categories: []forensics.OrphanCategory{
		forensics.NewOrphanCategory(forensics.OrphanPaymentsNullCommitment, "pagamento", "empenho", 3, []string{"P1"}),
	}}, nil
}

type testServer struct {
	handler http.Handler
	runs    *fakeRuns
}

// newTestServer serves contract 10 (valid) and contract 11 (commitments
// above the contract value).
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := audittest.NewScenario().
		WithCommitment(audittest.Commitment("E1", "1000.00", audittest.Date(2024, time.February, 1))).
		WithSettlement(audittest.Settlement(1, "E1", "K1", "1000.00", audittest.Date(2024, time.March, 1))).
		WithInvoice(audittest.Invoice("K1", "1000.00", audittest.Date(2024, time.February, 1))).
		WithPayment(audittest.Payment("P1", "E1", "1000.00", audittest.Date(2024, time.March, 20)))

	over := audittest.Contract()
	over.ID = 11
	big := audittest.Commitment("E11", "20000.00", audittest.Date(2024, time.February, 1))
	big.ContractID.Int64 = 11
	s.WithCommitment(big)

	runs := &fakeRuns{findings: make(map[uuid.UUID][]store.AuditFinding)}
	storage := store.Storage{
		Lifecycle: s.Related,
		Contracts: &fakeContracts{contracts: []models.Contract{s.Contract, over}},
		Batch:     &fakeLoader{related: s.Related},
		AuditRuns: runs,
		Forensics: &fakeForensics{
			values: []decimal.Decimal{decimal.NewFromInt(12)},
			usages: []forensics.InvoiceUsage{
				{InvoiceKey: "K9", ContractID: 10, SupplierDocument: "1"},
				{InvoiceKey: "K9", ContractID: 11, SupplierDocument: "1"},
			},
		},
	}

	reg := prometheus.NewRegistry()
	cfg := config{audit: auditConfig{batchSize: 10, workers: 2}}
	app := newApplication(cfg, storage, logger.NewNop(), metrics.NewWithRegistry(reg), reg)

	return &testServer{handler: app.mount(), runs: runs}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"available"`)
}

func TestAuditContractHandler(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/v1/audits/contracts/10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	ok := decode[response.APIResponse[audit.Report]](t, rr)
	assert.True(t, ok.Data.Validated)
	assert.Equal(t, "contract validated", ok.Message)

	rr = ts.do(t, http.MethodGet, "/v1/audits/contracts/11", "")
	require.Equal(t, http.StatusOK, rr.Code)
	failed := decode[response.APIResponse[audit.Report]](t, rr)
	assert.False(t, failed.Data.Validated)
	assert.Equal(t, audit.StageCommitment, failed.Data.Stage)
	assert.Equal(t, "contract failed at the commitment stage", failed.Message)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/v1/audits/contracts/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/v1/audits/contracts/abc", "").Code)
}

func TestCreateAuditRunHandler(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/v1/audits", `{"contract_ids":[10,11],"batch_size":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[response.APIResponse[audit.RunSummary]](t, rr)
	assert.Equal(t, 2, res.Data.Contracts)
	assert.Equal(t, 1, res.Data.Validated)
	assert.Equal(t, 2, res.Data.Batches)

	require.Len(t, ts.runs.runs, 1)
	assert.Equal(t, audit.TriggerAPI, ts.runs.runs[0].TriggerType)
	assert.Equal(t, audit.RunStatusPartial, ts.runs.runs[0].Status)

	rr = ts.do(t, http.MethodGet, "/v1/audits/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[response.ListResponse[store.AuditRun]](t, rr)
	assert.Equal(t, 1, list.Count)

	runID := ts.runs.runs[0].ID.String()
	rr = ts.do(t, http.MethodGet, "/v1/audits/runs/"+runID+"/findings", "")
	require.Equal(t, http.StatusOK, rr.Code)
	findings := decode[response.ListResponse[store.AuditFinding]](t, rr)
	require.Equal(t, 1, findings.Count)
	assert.Equal(t, int64(11), findings.Data[0].ContractID)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v1/audits/runs/"+runID, "").Code)
}

func TestCreateAuditRunRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/v1/audits", `{"batch_size":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/v1/audits", `{"contract_ids":[0]}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/v1/audits", `{"unknown":true}`).Code)
	assert.Empty(t, ts.runs.runs)
}

func TestRunNotFound(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/v1/audits/runs/"+uuid.NewString()+"/findings", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/v1/audits/runs/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/v1/audits/runs/not-a-uuid", "").Code)
}

func TestForensicsHandlers(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/v1/forensics/benford", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(t, http.MethodGet, "/v1/forensics/invoice-reuse", "")
	require.Equal(t, http.StatusOK, rr.Code)
	reuse := decode[response.ListResponse[forensics.ReuseFinding]](t, rr)
	require.Equal(t, 1, reuse.Count)
	assert.False(t, reuse.Data[0].Critical)

	rr = ts.do(t, http.MethodGet, "/v1/forensics/orphans", "")
	require.Equal(t, http.StatusOK, rr.Code)
	orphans := decode[response.APIResponse[forensics.OrphanReport]](t, rr)
	assert.Equal(t, 1, orphans.Data.Orphans())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/v1/audits/contracts/10", "")

	rr := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "envelopa_audit_contracts_total")
}
