package model

import "sort"

// Group partitions events by (account_id, product_id) and stable-sorts
// each partition by timestamp ascending. Ties retain input order.
func Group(events []TransactionEvent) map[GroupKey][]TransactionEvent {
	grouped := make(map[GroupKey][]TransactionEvent)
	for _, e := range events {
		key := GroupKey{AccountID: e.AccountID, ProductID: e.ProductID}
		grouped[key] = append(grouped[key], e)
	}
	for key, group := range grouped {
		sorted := make([]TransactionEvent, len(group))
		copy(sorted, group)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		grouped[key] = sorted
	}
	return grouped
}

// SortedGroupKeys returns a group's keys in a deterministic order, useful
// for tests and for splitting work across goroutines reproducibly.
func SortedGroupKeys(grouped map[GroupKey][]TransactionEvent) []GroupKey {
	keys := make([]GroupKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].AccountID != keys[j].AccountID {
			return keys[i].AccountID < keys[j].AccountID
		}
		return keys[i].ProductID < keys[j].ProductID
	})
	return keys
}
