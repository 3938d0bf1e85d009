package main

import (
	"errors"
	"net/http"

	"github.com/farxc/envelopa-auditoria/internal/forensics"
	"github.com/farxc/envelopa-auditoria/internal/response"
)

type GetBenfordResponse = response.APIResponse[forensics.BenfordResult]
type GetInvoiceReuseResponse = response.ListResponse[forensics.ReuseFinding]
type GetOrphansResponse = response.APIResponse[forensics.OrphanReport]

// @Summary		Benford analysis of payments
// @Description	Compares the leading digits of every positive payment value with Benford's law.
// @Tags			Forensics
// @Produce		json
// @Success		200	{object}	GetBenfordResponse		"Digit distribution and chi-square test"
// @Failure		422	{object}	response.ErrorResponse	"Not enough payments to analyse"
// @Failure		500	{object}	response.ErrorResponse	"Failed to load payments"
// @Router			/forensics/benford [get]
func (app *application) handleGetBenford(w http.ResponseWriter, r *http.Request) {
	values, err := app.store.Forensics.PaymentValues(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get payment values: "+err.Error())
		return
	}

	res, err := forensics.Benford(values)
	if errors.Is(err, forensics.ErrInsufficientSamples) {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg := "distribution follows Benford's law"
	if res.Anomalous {
		msg = "distribution deviates from Benford's law"
	}

	if err := writeJSON(w, http.StatusOK, response.OK(res, msg)); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Invoices reused across contracts
// @Description	Lists invoice keys settled under more than one contract, critical ones first.
// @Tags			Forensics
// @Produce		json
// @Success		200	{object}	GetInvoiceReuseResponse	"Reuse findings"
// @Failure		500	{object}	response.ErrorResponse	"Failed to load settlements"
// @Router			/forensics/invoice-reuse [get]
func (app *application) handleGetInvoiceReuse(w http.ResponseWriter, r *http.Request) {
	usages, err := app.store.Forensics.InvoiceUsages(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get invoice usages: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, response.List(forensics.InvoiceReuse(usages))); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}

// @Summary		Dangling references
// @Description	Counts payments, settlements and contracts whose links point nowhere.
// @Tags			Forensics
// @Produce		json
// @Success		200	{object}	GetOrphansResponse		"Orphan report"
// @Failure		500	{object}	response.ErrorResponse	"Failed to run the orphan queries"
// @Router			/forensics/orphans [get]
func (app *application) handleGetOrphans(w http.ResponseWriter, r *http.Request) {
	report, err := app.store.Forensics.Orphans(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to get orphans: "+err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, response.OK(report, "")); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write response")
	}
}
