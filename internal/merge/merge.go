// Package merge implements last-writer-wins reconciliation of order lists.
//
// Rules:
//   - An incoming order whose id is unknown locally is appended.
//   - A known order is replaced only when the incoming UpdatedAt is strictly
//     later than the local one. Equal timestamps keep the local copy.
//   - Orders missing from an incoming list are never deleted; absence in a
//     broadcast says nothing. Only tombstones remove orders.
//   - A tombstoned id is never added back.
//
// Because a replacement needs a strictly later timestamp, the outcome for
// any id is the snapshot with the greatest UpdatedAt regardless of the
// order in which snapshots arrive.
package merge

import (
	"time"

	"github.com/roach88/ordersync/internal/model"
)

// Result is the outcome of merging one incoming list into a local one.
type Result struct {
	Orders  []model.Order
	Added   []string
	Updated []string
	Removed []string
}

// Changed reports whether the merged list differs from the local input.
func (r Result) Changed() bool {
	return len(r.Added) > 0 || len(r.Updated) > 0 || len(r.Removed) > 0
}

// Orders merges incoming into local. Neither input is modified.
// Local ordering is preserved; new orders are appended in incoming order.
func Orders(local, incoming []model.Order, tombstones map[string]time.Time) Result {
	out := model.CloneOrders(local)
	if out == nil {
		out = []model.Order{}
	}
	index := make(map[string]int, len(out))
	for i, o := range out {
		index[o.ID] = i
	}

	var res Result
	for _, in := range incoming {
		if in.ID == "" {
			continue
		}
		if _, dead := tombstones[in.ID]; dead {
			continue
		}
		i, ok := index[in.ID]
		if !ok {
			index[in.ID] = len(out)
			out = append(out, in.Clone())
			res.Added = append(res.Added, in.ID)
			continue
		}
		if in.NewerThan(out[i]) {
			out[i] = in.Clone()
			if !contains(res.Added, in.ID) && !contains(res.Updated, in.ID) {
				res.Updated = append(res.Updated, in.ID)
			}
		}
	}

	if len(tombstones) > 0 {
		kept := out[:0]
		for _, o := range out {
			if _, dead := tombstones[o.ID]; dead {
				res.Removed = append(res.Removed, o.ID)
				continue
			}
			kept = append(kept, o)
		}
		out = kept
	}

	res.Orders = out
	return res
}

// Missing returns the stored orders whose ids are absent from local and not
// tombstoned, in stored order. Calling it again after appending the result
// returns nothing.
func Missing(local, stored []model.Order, tombstones map[string]time.Time) []model.Order {
	have := make(map[string]struct{}, len(local))
	for _, o := range local {
		have[o.ID] = struct{}{}
	}

	var missing []model.Order
	for _, o := range stored {
		if _, ok := have[o.ID]; ok {
			continue
		}
		if _, dead := tombstones[o.ID]; dead {
			continue
		}
		have[o.ID] = struct{}{}
		missing = append(missing, o.Clone())
	}
	return missing
}

// Tombstones unions incoming into local, keeping the earliest removal time.
// Returns the merged map and the ids that were new to local.
func Tombstones(local, incoming map[string]time.Time) (map[string]time.Time, []string) {
	out := make(map[string]time.Time, len(local)+len(incoming))
	for id, at := range local {
		out[id] = at
	}
	var added []string
	for id, at := range incoming {
		cur, ok := out[id]
		if !ok {
			added = append(added, id)
			out[id] = at
			continue
		}
		if at.Before(cur) {
			out[id] = at
		}
	}
	return out, added
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
