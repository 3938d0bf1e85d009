package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/farxc/envelopa-auditoria/internal/audit"
	"github.com/farxc/envelopa-auditoria/internal/forensics"
)

var rule = strings.Repeat("=", 80)

// formatReport renders one contract as C<id> | E:<s> L:<s> P:<s>, with the
// failure message appended when the contract did not validate.
func formatReport(rep audit.Report, withInvoice bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "C%4d | E:%s L:%s P:%s", rep.ContractID,
		rep.Outcome(audit.StageCommitment),
		rep.Outcome(audit.StageSettlement),
		rep.Outcome(audit.StagePayment))
	if withInvoice {
		fmt.Fprintf(&b, " N:%s", rep.Outcome(audit.StageInvoice))
	}
	if !rep.Validated {
		fmt.Fprintf(&b, " | %s", rep.Message)
	}
	return b.String()
}

func printSummary(w io.Writer, s audit.RunSummary, withInvoice bool) {
	stages := []audit.Stage{audit.StageCommitment, audit.StageSettlement, audit.StagePayment}
	labels := []string{"EMP", "LIQ", "PAG"}
	if withInvoice {
		stages = append(stages, audit.StageInvoice)
		labels = append(labels, "NFE")
	}

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "AUDIT SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Run:             %s\n", s.RunID)
	fmt.Fprintf(w, "  Total contracts: %d\n", s.Contracts)
	fmt.Fprintf(w, "  Validated:       %d\n", s.Validated)
	fmt.Fprintf(w, "  Batches:         %d\n", s.Batches)

	var ok, failed strings.Builder
	for i, stage := range stages {
		counts := s.Stages[stage]
		fmt.Fprintf(&ok, "  %s:%4d", labels[i], counts.Passed)
		fmt.Fprintf(&failed, "  %s:%4d", labels[i], counts.Failed)
	}
	fmt.Fprintf(w, "\n  %s%s\n", audit.OutcomePassed, ok.String())
	fmt.Fprintf(w, "  %s%s\n", audit.OutcomeRuleFailed, failed.String())

	seconds := s.Duration.Seconds()
	if seconds > 0 {
		fmt.Fprintf(w, "\n  Total: %.2fs (%.1f contracts/s)\n", seconds, float64(s.Contracts)/seconds)
	}

	if len(s.TopErrors) > 0 {
		fmt.Fprintln(w, "\n  TOP ERRORS:")
		for _, e := range s.TopErrors {
			fmt.Fprintf(w, "     [%4dx] %s\n", e.Count, e.Message)
		}
	}
	fmt.Fprintln(w, rule)
}

func printBenford(w io.Writer, res forensics.BenfordResult) {
	fmt.Fprintf(w, "\nBENFORD (%d payments)\n", res.Samples)
	fmt.Fprintln(w, "  digit   count  observed  expected   delta")
	for _, d := range res.Digits {
		fmt.Fprintf(w, "  %5d  %6d  %7.2f%%  %7.2f%%  %6.2f%%\n", d.Digit, d.Observed, d.ObservedPct*100, d.ExpectedPct*100, d.Delta*100)
	}
	verdict := "within tolerance"
	if res.Anomalous {
		verdict = fmt.Sprintf("ANOMALOUS, digit %d deviates most", res.SuspectDigit)
	}
	fmt.Fprintf(w, "  chi2=%.3f p=%.4f max delta=%.2f%%: %s\n", res.ChiSquare, res.PValue, res.MaxDelta*100, verdict)
}

func printReuse(w io.Writer, findings []forensics.ReuseFinding) {
	fmt.Fprintf(w, "\nINVOICE REUSE (%d invoices)\n", len(findings))
	for _, f := range findings {
		marker := " "
		if f.Critical {
			marker = "!"
		}
		fmt.Fprintf(w, "  %s %s contracts=%v suppliers=%v usages=%d\n", marker, f.InvoiceKey, f.Contracts, f.SupplierDocuments, f.Usages)
	}
}

func printOrphans(w io.Writer, report forensics.OrphanReport) {
	fmt.Fprintf(w, "\nORPHANS (%d rows)\n", report.Orphans())
	for _, c := range report.Categories {
		fmt.Fprintf(w, "  %-30s %6d / %-6d %s -> %s\n", c.Name, c.Count, c.Total, c.Source, c.Target)
		if len(c.Samples) > 0 {
			fmt.Fprintf(w, "    e.g. %s\n", strings.Join(c.Samples, ", "))
		}
	}
}
