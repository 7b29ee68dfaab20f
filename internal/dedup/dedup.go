// Package dedup computes which scraped labels have not been notified yet.
package dedup

import "ColaMonitor/internal/domain"

// FilterNew returns the labels whose TTB id is not in seen, in input order.
func FilterNew(labels []domain.Label, seen domain.SeenLabels) []domain.Label {
	known := make(map[string]struct{}, len(seen.TTBIDs))
	for _, id := range seen.TTBIDs {
		known[id] = struct{}{}
	}

	fresh := make([]domain.Label, 0, len(labels))
	for _, label := range labels {
		if _, ok := known[label.TTBID]; ok {
			continue
		}
		fresh = append(fresh, label)
	}
	return fresh
}

// MarkSeen returns a copy of seen whose id set is the union with ids.
// LastRun is left alone; stores stamp it when saving.
func MarkSeen(seen domain.SeenLabels, ids []string) domain.SeenLabels {
	merged := make([]string, 0, len(seen.TTBIDs)+len(ids))
	set := make(map[string]struct{}, cap(merged))

	add := func(id string) {
		if _, ok := set[id]; ok {
			return
		}
		set[id] = struct{}{}
		merged = append(merged, id)
	}
	for _, id := range seen.TTBIDs {
		add(id)
	}
	for _, id := range ids {
		add(id)
	}

	return domain.SeenLabels{
		LastRun: seen.LastRun,
		TTBIDs:  merged,
	}
}

// IDs lists the TTB ids of labels in order.
func IDs(labels []domain.Label) []string {
	ids := make([]string, len(labels))
	for i, label := range labels {
		ids[i] = label.TTBID
	}
	return ids
}
