package mining

import (
	"github.com/goodnatureofminers/blockinsight7000-miner/internal/tx"
)

// Select walks candidates in order and keeps every transaction that still fits into
// maxWeight - reserve. A transaction that does not fit is skipped and the walk goes
// on. Candidates are not reordered. It returns the selection and its total weight.
func Select(candidates []*tx.Transaction, maxWeight, reserve int64) ([]*tx.Transaction, int64) {
	budget := maxWeight - reserve
	selected := make([]*tx.Transaction, 0, len(candidates))
	var weight int64
	for _, t := range candidates {
		w := t.Weight()
		if weight+w > budget {
			continue
		}
		selected = append(selected, t)
		weight += w
	}
	return selected, weight
}
