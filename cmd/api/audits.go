package main

import (
	"errors"
	"net/http"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/response"
	"github.com/farxc/envelopa-auditoria/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AuditContractResponse = response.APIResponse[audit.Report]
type CreateAuditRunResponse = response.APIResponse[audit.RunSummary]
type GetAuditRunsResponse = response.ListResponse[store.AuditRun]
type GetAuditRunResponse = response.APIResponse[store.AuditRun]
type GetRunFindingsResponse = response.ListResponse[store.AuditFinding]

// createAuditRunInput narrows a batch run. An empty body audits every
// contract.
type createAuditRunInput struct {
	ContractIDs []int64 `json:"contract_ids" validate:"omitempty,max=10000,dive,gt=0"`
	Limit       int     `json:"limit" validate:"gte=0"`
	BatchSize   int     `json:"batch_size" validate:"gte=0,lte=5000"`
}

// @Summary		Audit one contract
// @Description	Runs the commitment, settlement and payment stages for a single contract.
// @Tags			Audits
// @Produce		json
// @Param			id	path		int						true	"Contract id"
// @Success		200	{object}	AuditContractResponse	"Audit report, validated or not"
// @Failure		400	{object}	response.ErrorResponse	"Invalid contract id"
// @Failure		404	{object}	response.ErrorResponse	"Contract not found"
// @Router			/audits/contracts/{id} [get]
func (app *application) handleAuditContract(w http.ResponseWriter, r *http.Request) {
	id, err := contractIDParam(r)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid contract id")
		return
	}

	ctx := r.Context()
	contracts, err := app.store.Contracts.ContractsByIDs(ctx, []int64{id})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to load contract: "+err.Error())
		return
	}
	if len(contracts) == 0 {
		writeJSONError(w, http.StatusNotFound, "contract not found")
		return
	}

	report := app.auditor.AuditContract(ctx, contracts[0], app.store.Lifecycle)

	msg := "contract validated"
	if !report.Validated {
		msg = "contract failed at the " + string(report.Stage) + " stage"
	}

	if err := writeJSON(w, http.StatusOK, response.OK(report, msg)); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Run a batch audit
// @Description	Audits the given contracts, or every contract up to limit, and records the run.
// @Tags			Audits
// @Accept			json
// @Produce		json
// @Param			run	body		object{contract_ids:[]int64,limit:int,batch_size:int}	false	"Run scope"
// @Success		201	{object}	CreateAuditRunResponse									"Run summary"
// @Failure		400	{object}	response.ErrorResponse									"Invalid request payload"
// @Failure		500	{object}	response.ErrorResponse									"Run failed"
// @Router			/audits [post]
func (app *application) handleCreateAuditRun(w http.ResponseWriter, r *http.Request) {
	var input createAuditRunInput
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
	}

	if err := app.validate.Struct(input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}

	summary, err := app.runner.Run(r.Context(), audit.RunOptions{
		ContractIDs: input.ContractIDs,
		Limit:       input.Limit,
		BatchSize:   input.BatchSize,
		Trigger:     audit.TriggerAPI,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "audit run failed: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusCreated, response.OK(summary, "audit run finished")); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		List audit runs
// @Description	Returns the latest audit runs, newest first.
// @Tags			Audits
// @Produce		json
// @Param			limit	query		int						false	"Limit the number of results"	default(10)
// @Success		200		{object}	GetAuditRunsResponse	"Latest runs"
// @Failure		500		{object}	response.ErrorResponse	"Failed to list runs"
// @Router			/audits/runs [get]
func (app *application) handleGetAuditRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10, 100)

	runs, err := app.store.AuditRuns.GetLatest(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get audit runs: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, response.List(runs)); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Get an audit run
// @Tags			Audits
// @Produce		json
// @Param			id	path		string					true	"Run id"
// @Success		200	{object}	GetAuditRunResponse		"Run"
// @Failure		404	{object}	response.ErrorResponse	"Run not found"
// @Router			/audits/runs/{id} [get]
func (app *application) handleGetAuditRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := app.store.AuditRuns.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "audit run not found")
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, "failed to get audit run: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, response.OK(run, "")); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		List the findings of a run
// @Tags			Audits
// @Produce		json
// @Param			id	path		string					true	"Run id"
// @Success		200	{object}	GetRunFindingsResponse	"Failed contracts of the run"
// @Failure		404	{object}	response.ErrorResponse	"Run not found"
// @Router			/audits/runs/{id}/findings [get]
func (app *application) handleGetRunFindings(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	ctx := r.Context()
	if _, err := app.store.AuditRuns.GetByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "audit run not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "failed to get audit run: "+err.Error())
		return
	}

	findings, err := app.store.AuditRuns.Findings(ctx, id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get findings: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, response.List(findings)); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
