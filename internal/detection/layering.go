package detection

import (
	"sort"
	"time"

	"surveillance/internal/model"
)

// indexThreshold is the group-size cutover between the linear scan and the
// indexed binary-search path. Tuning parameter only, not a contract (spec
// §9): both paths must produce byte-identical sequence lists.
const indexThreshold = 100

// LayeringDetector finds place/cancel/opposite-trade sequences within the
// three timing windows of DetectionConfig, ported from
// original_source/.../detectors/layering_detector.py.
type LayeringDetector struct {
	Config model.DetectionConfig
}

// NewLayeringDetector constructs a detector with the given config. It does
// not validate cfg and never panics; DetectionConfig.Validate is the check
// for non-positive windows, and NewDefaultRegistry builds this detector
// from DefaultDetectionConfig without calling it.
func NewLayeringDetector(cfg model.DetectionConfig) *LayeringDetector {
	return &LayeringDetector{Config: cfg}
}

func (d *LayeringDetector) Name() string { return "layering" }

func (d *LayeringDetector) Description() string {
	return "Detects place/cancel/opposite-trade spoofing sequences within tight timing windows"
}

// FilterEvents keeps only the three event types layering cares about.
func (d *LayeringDetector) FilterEvents(events []model.TransactionEvent) []model.TransactionEvent {
	out := make([]model.TransactionEvent, 0, len(events))
	for _, e := range events {
		switch e.EventType {
		case model.EventOrderPlaced, model.EventOrderCancelled, model.EventTradeExecuted:
			out = append(out, e)
		}
	}
	return out
}

// Detect groups events by (account, product) and runs the per-group scan.
func (d *LayeringDetector) Detect(events []model.TransactionEvent) ([]model.SuspiciousSequence, error) {
	grouped := model.Group(events)
	var all []model.SuspiciousSequence
	for _, key := range model.SortedGroupKeys(grouped) {
		all = append(all, d.detectGroup(key, grouped[key])...)
	}
	return all, nil
}

// eventIndex maps (event_type, side) to a timestamp-sorted slice of events
// sharing that key, built once per group when the group is large enough
// to amortize the build cost against O(log n) binary-search queries.
type eventIndex map[indexKey][]model.TransactionEvent

type indexKey struct {
	eventType model.EventType
	side      model.Side
}

func buildEventIndex(events []model.TransactionEvent) eventIndex {
	idx := make(eventIndex)
	for _, e := range events {
		k := indexKey{e.EventType, e.Side}
		idx[k] = append(idx[k], e)
	}
	for k := range idx {
		sort.Slice(idx[k], func(i, j int) bool {
			return idx[k][i].Timestamp.Before(idx[k][j].Timestamp)
		})
	}
	return idx
}

// queryWindow returns events of the given (type, side) with timestamp in
// [start, end] inclusive, via binary search over the pre-built index.
func queryWindow(idx eventIndex, eventType model.EventType, side model.Side, start, end time.Time) []model.TransactionEvent {
	if start.After(end) {
		return nil
	}
	bucket, ok := idx[indexKey{eventType, side}]
	if !ok {
		return nil
	}
	lo := sort.Search(len(bucket), func(i int) bool {
		return !bucket[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(bucket), func(i int) bool {
		return bucket[i].Timestamp.After(end)
	})
	if lo >= hi {
		return nil
	}
	return bucket[lo:hi]
}

func linearScan(events []model.TransactionEvent, eventType model.EventType, side model.Side, start, end time.Time) []model.TransactionEvent {
	var out []model.TransactionEvent
	for _, e := range events {
		if e.EventType == eventType && e.Side == side && !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}
	return out
}

func firstLinear(events []model.TransactionEvent, eventType model.EventType, side model.Side, start, end time.Time) (model.TransactionEvent, bool) {
	for _, e := range events {
		if e.EventType == eventType && e.Side == side && !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			return e, true
		}
	}
	return model.TransactionEvent{}, false
}

// detectGroup scans a single (account, product) group's timestamp-sorted
// event list, forward by index, emitting one sequence per qualifying
// place/cancel/trade chain and skipping the scan past the last consumed
// placement so no ORDER_PLACED event contributes to two sequences
// (spec invariant #3).
func (d *LayeringDetector) detectGroup(key model.GroupKey, events []model.TransactionEvent) []model.SuspiciousSequence {
	n := len(events)
	if n == 0 {
		return nil
	}

	useIndex := n >= indexThreshold
	var idx eventIndex
	if useIndex {
		idx = buildEventIndex(events)
	}

	var sequences []model.SuspiciousSequence

	i := 0
	for i < n {
		ev := events[i]
		if ev.EventType != model.EventOrderPlaced {
			i++
			continue
		}

		side := ev.Side
		startTS := ev.Timestamp

		// 1) Collect same-side placements within orders_window of ev.
		placements := []model.TransactionEvent{ev}
		lastPlacementIdx := i
		j := i + 1
		for j < n && !events[j].Timestamp.After(startTS.Add(d.Config.OrdersWindow)) {
			cand := events[j]
			if cand.EventType == model.EventOrderPlaced && cand.Side == side {
				placements = append(placements, cand)
				lastPlacementIdx = j
			}
			j++
		}
		if len(placements) < 3 {
			i++
			continue
		}

		lastPlacementTime := placements[len(placements)-1].Timestamp
		cancelDeadline := lastPlacementTime.Add(d.Config.CancelWindow)

		// 2) Require >= 3 cancellations on the same side within cancel_window
		// of the last placement in the window.
		var cancellations []model.TransactionEvent
		if useIndex {
			cancellations = queryWindow(idx, model.EventOrderCancelled, side, startTS, cancelDeadline)
		} else {
			cancellations = linearScan(events, model.EventOrderCancelled, side, startTS, cancelDeadline)
		}
		if len(cancellations) < 3 {
			i++
			continue
		}

		lastCancelTime := cancellations[0].Timestamp
		for _, c := range cancellations {
			if c.Timestamp.After(lastCancelTime) {
				lastCancelTime = c.Timestamp
			}
		}

		// 3) Require an opposite-side trade within opposite_trade_window of
		// the last cancellation.
		opposite := side.Opposite()
		tradeDeadline := lastCancelTime.Add(d.Config.OppositeTradeWindow)

		var (
			trade   model.TransactionEvent
			hasTrade bool
		)
		if useIndex {
			matches := queryWindow(idx, model.EventTradeExecuted, opposite, lastCancelTime, tradeDeadline)
			if len(matches) > 0 {
				trade, hasTrade = matches[0], true
			}
		} else {
			trade, hasTrade = firstLinear(events, model.EventTradeExecuted, opposite, lastCancelTime, tradeDeadline)
		}
		if !hasTrade {
			i++
			continue
		}

		endTS := trade.Timestamp
		orderTimestamps := make([]time.Time, len(placements))
		for k, p := range placements {
			orderTimestamps[k] = p.Timestamp
		}

		spoofCancelQty, numCancelled, oppTradeQty := d.aggregate(events, idx, useIndex, side, opposite, startTS, endTS)

		var buyQty, sellQty int64
		if side == model.SideBuy {
			buyQty, sellQty = spoofCancelQty, oppTradeQty
		} else {
			sellQty, buyQty = spoofCancelQty, oppTradeQty
		}

		sequences = append(sequences, model.SuspiciousSequence{
			DetectionType:      model.DetectionLayering,
			AccountID:          key.AccountID,
			ProductID:          key.ProductID,
			StartTimestamp:     startTS,
			EndTimestamp:       endTS,
			TotalBuyQty:        buyQty,
			TotalSellQty:       sellQty,
			Side:               side,
			NumCancelledOrders: numCancelled,
			OrderTimestamps:    orderTimestamps,
		})

		// 5) Advance past the last placement consumed by this sequence.
		i = lastPlacementIdx + 1
	}

	return sequences
}

// aggregate sums cancel and opposite-trade quantities over [start, end]
// inclusive, using whichever scan strategy the caller selected.
func (d *LayeringDetector) aggregate(events []model.TransactionEvent, idx eventIndex, useIndex bool, side, opposite model.Side, start, end time.Time) (spoofCancelQty int64, numCancelled int, oppTradeQty int64) {
	if useIndex {
		cancels := queryWindow(idx, model.EventOrderCancelled, side, start, end)
		for _, c := range cancels {
			spoofCancelQty += c.Quantity
		}
		numCancelled = len(cancels)

		trades := queryWindow(idx, model.EventTradeExecuted, opposite, start, end)
		for _, t := range trades {
			oppTradeQty += t.Quantity
		}
		return
	}

	for _, e := range events {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		if e.EventType == model.EventOrderCancelled && e.Side == side {
			spoofCancelQty += e.Quantity
			numCancelled++
		} else if e.EventType == model.EventTradeExecuted && e.Side == opposite {
			oppTradeQty += e.Quantity
		}
	}
	return
}
