package forensics

import (
	"sort"
	"time"
)

// OrphanSampleLimit caps the ids listed per orphan category.
const OrphanSampleLimit = 50

const (
	OrphanPaymentsNullCommitment     = "payments_null_commitment"
	OrphanPaymentsMissingCommitment  = "payments_missing_commitment"
	OrphanSettlementsMissingContract = "settlements_missing_contract"
	OrphanContractsMissingEntity     = "contracts_missing_entity"
	OrphanContractsMissingSupplier   = "contracts_missing_supplier"
)

// OrphanCategory counts the rows of Source with a dangling link to Target.
type OrphanCategory struct {
	Name    string   `json:"name"`
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Total   int      `json:"total"`
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
}

type OrphanReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Categories  []OrphanCategory `json:"categories"`
}

func NewOrphanCategory(name, source, target string, total int, ids []string) OrphanCategory {
	samples := append([]string(nil), ids...)
	sort.Strings(samples)
	if len(samples) > OrphanSampleLimit {
		samples = samples[:OrphanSampleLimit]
	}
	if samples == nil {
		samples = []string{}
	}
	return OrphanCategory{
		Name:    name,
		Source:  source,
		Target:  target,
		Total:   total,
		Count:   len(ids),
		Samples: samples,
	}
}

// Orphans returns the number of dangling rows across categories.
func (r OrphanReport) Orphans() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Count
	}
	return n
}

func (r OrphanReport) Category(name string) (OrphanCategory, bool) {
	for _, c := range r.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return OrphanCategory{}, false
}
