// Package rules holds the ordered business-rule sets of each lifecycle stage
// and the driver that applies them.
package rules

import (
	"fmt"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/audit/aggregate"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

type Unit = result.Unit

// Rule is a named pure predicate over a stage context.
type Rule[C any] struct {
	Name  string
	Check func(C) result.Result[Unit]
}

// Apply runs rules in order and returns the first failure, tagged with the
// rule name. Later rules are not evaluated.
func Apply[C any](subject C, rules []Rule[C]) result.Result[Unit] {
	for _, r := range rules {
		res := r.Check(subject)
		if res.IsOk() {
			continue
		}
		f := res.Failure().WithRule(r.Name)
		if f.Kind == result.KindUnknown {
			f.Kind = result.KindRule
		}
		return result.Fail[Unit](f)
	}
	return result.OkUnit()
}

func pass() result.Result[Unit] {
	return result.OkUnit()
}

func violation(format string, args ...any) result.Result[Unit] {
	return result.Errf[Unit](result.KindRule, format, args...)
}

// Config is the explicit rule configuration of a validation run.
type Config struct {
	Commitment []Rule[CommitmentContext]
	Settlement []Rule[*aggregate.SettlementAggregate]
	Payment    []Rule[PaymentFragment]
	// Clock supplies "today" for the future-payment rule.
	Clock func() time.Time
}

// DefaultConfig returns the full rule sets with the given settlement policy.
func DefaultConfig(policy SettlementPolicy) Config {
	return Config{
		Commitment: CommitmentRules(),
		Settlement: SettlementRules(policy),
		Payment:    PaymentRules(),
		Clock:      time.Now,
	}
}

func (c Config) ValidateCommitmentAggregate(agg *aggregate.CommitmentAggregate) result.Result[*aggregate.CommitmentAggregate] {
	return result.Bind(Apply(NewCommitmentContext(agg), c.Commitment), func(Unit) result.Result[*aggregate.CommitmentAggregate] {
		return result.Ok(agg)
	})
}

func (c Config) ValidateSettlementAggregate(agg *aggregate.SettlementAggregate) result.Result[*aggregate.SettlementAggregate] {
	return result.Bind(Apply(agg, c.Settlement), func(Unit) result.Result[*aggregate.SettlementAggregate] {
		return result.Ok(agg)
	})
}

func (c Config) ValidatePaymentAggregate(agg *aggregate.PaymentAggregate) result.Result[*aggregate.PaymentAggregate] {
	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}
	frag := BuildPaymentFragment(agg, clock())
	return result.Bind(Apply(frag, c.Payment), func(Unit) result.Result[*aggregate.PaymentAggregate] {
		return result.Ok(agg)
	})
}

// ValidateCommitmentAggregate applies the commitment rules and returns agg
// unchanged on success.
func ValidateCommitmentAggregate(agg *aggregate.CommitmentAggregate) result.Result[*aggregate.CommitmentAggregate] {
	return DefaultConfig(SettlementPolicy{}).ValidateCommitmentAggregate(agg)
}

// ValidateSettlementAggregate applies the settlement rules with invoices
// treated as optional.
func ValidateSettlementAggregate(agg *aggregate.SettlementAggregate) result.Result[*aggregate.SettlementAggregate] {
	return DefaultConfig(SettlementPolicy{}).ValidateSettlementAggregate(agg)
}

func ValidatePaymentAggregate(agg *aggregate.PaymentAggregate) result.Result[*aggregate.PaymentAggregate] {
	return DefaultConfig(SettlementPolicy{}).ValidatePaymentAggregate(agg)
}

func formatList(items []string) string {
	return fmt.Sprintf("%v", items)
}
