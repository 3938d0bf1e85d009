// Package normalize turns the flat settlement list of a contract into the
// nested commitment -> settlement index the settlement rules run on.
//
// The integrity checks must run on the flat list before grouping: once rows
// are keyed by settlement id, a duplicated row would silently overwrite its
// twin.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/farxc/envelopa-auditoria/internal/audit/models"
	"github.com/farxc/envelopa-auditoria/internal/result"
)

// SettlementItem pairs a settlement with its invoice, when one was found.
type SettlementItem struct {
	Settlement models.Settlement
	Invoice    *models.Invoice
}

// InvoiceKey returns the settlement's invoice key, if any.
func (it SettlementItem) InvoiceKey() (string, bool) {
	if !it.Settlement.InvoiceKey.Valid || it.Settlement.InvoiceKey.String == "" {
		return "", false
	}
	return it.Settlement.InvoiceKey.String, true
}

// Clone copies the item so callers cannot reach the stored invoice.
func (it SettlementItem) Clone() SettlementItem {
	if it.Invoice != nil {
		inv := *it.Invoice
		it.Invoice = &inv
	}
	return it
}

// Ref points at one settlement inside the grouped index.
type Ref struct {
	CommitmentID string
	SettlementID int64
}

// Grouped is the normalized settlement index.
type Grouped struct {
	// ByCommitment maps commitment id -> settlement id -> item.
	ByCommitment map[string]map[int64]SettlementItem
	// Order keeps the arrival order of settlements per commitment.
	Order map[string][]int64
	// ByInvoiceKey lists the settlements tied to each invoice key.
	ByInvoiceKey map[string][]Ref
	// InvoiceKeys lists the invoice keys in first-seen order.
	InvoiceKeys []string
}

// CheckUniqueSettlementIDs rejects a list in which a settlement id repeats.
func CheckUniqueSettlementIDs(items []SettlementItem) result.Result[[]SettlementItem] {
	seen := make(map[int64]int, len(items))
	var dupes []int64
	for _, it := range items {
		id := it.Settlement.ID
		seen[id]++
		if seen[id] == 2 {
			dupes = append(dupes, id)
		}
	}
	if len(dupes) > 0 {
		return result.Errf[[]SettlementItem](result.KindInvariant,
			"duplicate settlements detected: ids %s", formatIDs(dupes))
	}
	return result.Ok(items)
}

// CheckInvoiceKeyOneToOne rejects a settlement id that appears with two
// different invoice keys. Rows without a key are skipped.
func CheckInvoiceKeyOneToOne(items []SettlementItem) result.Result[[]SettlementItem] {
	keys := make(map[int64][]string, len(items))
	for _, it := range items {
		key, ok := it.InvoiceKey()
		if !ok {
			continue
		}
		id := it.Settlement.ID
		known := keys[id]
		if len(known) > 0 && !contains(known, key) {
			known = append(known, key)
			sort.Strings(known)
			return result.Errf[[]SettlementItem](result.KindInvariant,
				"one-to-one violation: settlement %d linked to multiple invoice keys [%s]", id, strings.Join(known, " "))
		}
		if len(known) == 0 {
			keys[id] = []string{key}
		}
	}
	return result.Ok(items)
}

// Group builds the nested index. Items must already have passed both checks.
func Group(items []SettlementItem) Grouped {
	g := Grouped{
		ByCommitment: make(map[string]map[int64]SettlementItem),
		Order:        make(map[string][]int64),
		ByInvoiceKey: make(map[string][]Ref),
	}
	for _, it := range items {
		cid := it.Settlement.CommitmentID
		inner, ok := g.ByCommitment[cid]
		if !ok {
			inner = make(map[int64]SettlementItem)
			g.ByCommitment[cid] = inner
		}
		inner[it.Settlement.ID] = it.Clone()
		g.Order[cid] = append(g.Order[cid], it.Settlement.ID)

		if key, ok := it.InvoiceKey(); ok {
			if _, seen := g.ByInvoiceKey[key]; !seen {
				g.InvoiceKeys = append(g.InvoiceKeys, key)
			}
			g.ByInvoiceKey[key] = append(g.ByInvoiceKey[key], Ref{CommitmentID: cid, SettlementID: it.Settlement.ID})
		}
	}
	return g
}

// Normalize runs the duplicate check, then the one-to-one check, then groups.
func Normalize(items []SettlementItem) result.Result[Grouped] {
	checked := result.Ok(items).
		Then(CheckUniqueSettlementIDs).
		Then(CheckInvoiceKeyOneToOne)
	return result.Map(checked, Group)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
