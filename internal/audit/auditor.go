// Package audit drives a contract through the commitment, settlement and
// payment stages and runs batch audits over many contracts.
package audit

import (
	"context"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/audit/rules"
	"github.com/farxc/envelopa-auditoria/internal/metrics"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

type Stage string

const (
	StageCommitment Stage = "commitment"
	StageSettlement Stage = "settlement"
	StagePayment    Stage = "payment"
	StageInvoice    Stage = "invoice"
)

var stageOrder = map[Stage]int{
	StageCommitment: 1,
	StageSettlement: 2,
	StagePayment:    3,
	StageInvoice:    4,
}

// Outcome markers printed per stage.
const (
	OutcomeSkipped     = "."
	OutcomeBuildFailed = "B"
	OutcomeRuleFailed  = "✗"
	OutcomePassed      = "✓"
)

// Report is the result of auditing one contract. Stage is the last stage that
// ran: the failing one, or the final stage when Validated is true.
type Report struct {
	ContractID int64         `json:"contract_id"`
	Stage      Stage         `json:"stage"`
	Validated  bool          `json:"validated"`
	BuildError bool          `json:"build_error,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	Rule       string        `json:"rule,omitempty"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Outcome returns the marker of stage within this report.
func (r Report) Outcome(stage Stage) string {
	reached, current := stageOrder[r.Stage], stageOrder[stage]
	switch {
	case current < reached:
		return OutcomePassed
	case current > reached:
		return OutcomeSkipped
	case r.Validated:
		return OutcomePassed
	case r.BuildError:
		return OutcomeBuildFailed
	default:
		return OutcomeRuleFailed
	}
}

func (r *Report) reach(stage Stage) {
	r.Stage = stage
}

func (r *Report) fail(stage Stage, build bool, f *result.Failure) {
	r.Stage = stage
	r.Validated = false
	r.BuildError = build
	r.Kind = f.Kind.String()
	r.Rule = f.Rule
	r.Message = f.Message
}

// FailedReport reports a contract that could not be audited at all, such as
// when its batch could not be loaded.
func FailedReport(contractID int64, f *result.Failure) Report {
	r := Report{ContractID: contractID}
	r.fail(StageCommitment, true, f)
	return r
}

type Options struct {
	Policy rules.SettlementPolicy
	// CheckInvoicePayments adds the invoice-payment consistency stage.
	CheckInvoicePayments bool
	Clock                func() time.Time
}

type Auditor struct {
	rules         rules.Config
	checkInvoices bool
	metrics       *metrics.Metrics
}

func NewAuditor(opts Options, m *metrics.Metrics) *Auditor {
	cfg := rules.DefaultConfig(opts.Policy)
	if opts.Clock != nil {
		cfg.Clock = opts.Clock
	}
	return &Auditor{rules: cfg, checkInvoices: opts.CheckInvoicePayments, metrics: m}
}

// runStage builds the stage aggregate from the previous stage's output and
// validates it, recording the first failure on the report. A panic in either
// step becomes an invariant failure of this contract only.
func runStage[T, U any](r *Report, stage Stage, in result.Result[T], build func(T) result.Result[U], validate func(U) result.Result[U]) result.Result[U] {
	if in.IsErr() {
		return result.Fail[U](in.Failure())
	}
	built := result.Bind(in, func(v T) result.Result[U] {
		return aggregate.Guard(func() result.Result[U] { return build(v) })
	})
	if built.IsErr() {
		r.fail(stage, true, built.Failure())
		return built
	}
	checked := result.Bind(built, func(v U) result.Result[U] {
		return aggregate.Guard(func() result.Result[U] { return validate(v) })
	})
	if checked.IsErr() {
		r.fail(stage, false, checked.Failure())
		return checked
	}
	r.reach(stage)
	return checked
}

// AuditContract runs every stage for contract, stopping at the first failure.
func (a *Auditor) AuditContract(ctx context.Context, contract models.Contract, src aggregate.Sources) Report {
	start := time.Now()
	r := Report{ContractID: contract.ID, Validated: true}

	commitments := runStage(&r, StageCommitment, result.Ok(contract),
		func(c models.Contract) result.Result[*aggregate.CommitmentAggregate] {
			return aggregate.BuildCommitmentAggregate(ctx, c, src)
		},
		a.rules.ValidateCommitmentAggregate)

	settlements := runStage(&r, StageSettlement, commitments,
		func(agg *aggregate.CommitmentAggregate) result.Result[*aggregate.SettlementAggregate] {
			return aggregate.BuildSettlementAggregate(ctx, agg, src)
		},
		a.rules.ValidateSettlementAggregate)

	payments := runStage(&r, StagePayment, settlements,
		func(agg *aggregate.SettlementAggregate) result.Result[*aggregate.PaymentAggregate] {
			return aggregate.BuildPaymentAggregate(ctx, agg, src)
		},
		a.rules.ValidatePaymentAggregate)

	if a.checkInvoices {
		runStage(&r, StageInvoice, payments,
			func(agg *aggregate.PaymentAggregate) result.Result[*aggregate.SettlementAggregate] {
				return result.Ok(agg.SettlementAggregate())
			},
			func(agg *aggregate.SettlementAggregate) result.Result[*aggregate.SettlementAggregate] {
				return rules.ValidateInvoices(ctx, agg, src)
			})
	}

	r.Duration = time.Since(start)
	a.metrics.ObserveContract(string(r.Stage), r.Validated, r.Kind, r.Duration)
	return r
}
