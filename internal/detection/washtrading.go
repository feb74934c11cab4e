package detection

import (
	"math"

	"surveillance/internal/model"
)

// WashTradingDetector finds sliding windows of alternating self-offsetting
// trades, ported from
// original_source/.../detectors/wash_trading_detector.py.
//
// Detect expects its input pre-filtered to TRADE_EXECUTED events; FilterEvents
// does that filtering for callers that route raw events through it.
type WashTradingDetector struct {
	Config model.WashTradingConfig
}

func NewWashTradingDetector(cfg model.WashTradingConfig) *WashTradingDetector {
	return &WashTradingDetector{Config: cfg}
}

func (d *WashTradingDetector) Name() string { return "wash_trading" }

func (d *WashTradingDetector) Description() string {
	return "Detects rapid alternating self-offsetting buy/sell activity in a narrow window"
}

// FilterEvents keeps only executed trades.
func (d *WashTradingDetector) FilterEvents(events []model.TransactionEvent) []model.TransactionEvent {
	out := make([]model.TransactionEvent, 0, len(events))
	for _, e := range events {
		if e.EventType == model.EventTradeExecuted {
			out = append(out, e)
		}
	}
	return out
}

func (d *WashTradingDetector) Detect(events []model.TransactionEvent) ([]model.SuspiciousSequence, error) {
	grouped := model.Group(events)
	var all []model.SuspiciousSequence
	for _, key := range model.SortedGroupKeys(grouped) {
		all = append(all, d.detectGroup(key, grouped[key])...)
	}
	return all, nil
}

func (d *WashTradingDetector) detectGroup(key model.GroupKey, trades []model.TransactionEvent) []model.SuspiciousSequence {
	minTotal := d.Config.MinBuyTrades + d.Config.MinSellTrades
	if len(trades) < minTotal {
		return nil
	}

	var sequences []model.SuspiciousSequence

	for start := 0; start < len(trades); start++ {
		windowStart := trades[start].Timestamp
		windowEnd := windowStart.Add(d.Config.WindowSize)

		var window []model.TransactionEvent
		for i := start; i < len(trades); i++ {
			if trades[i].Timestamp.After(windowEnd) {
				break
			}
			window = append(window, trades[i])
		}

		if len(window) < minTotal {
			continue
		}

		var buyQty, sellQty int64
		var buyCount, sellCount int
		for _, t := range window {
			if t.Side == model.SideBuy {
				buyCount++
				buyQty += t.Quantity
			} else {
				sellCount++
				sellQty += t.Quantity
			}
		}
		if buyCount < d.Config.MinBuyTrades || sellCount < d.Config.MinSellTrades {
			continue
		}

		totalVolume := buyQty + sellQty
		if totalVolume < d.Config.MinTotalVolume {
			continue
		}

		alternation := alternationPercentage(window)
		if alternation < d.Config.MinAlternationPercentage {
			continue
		}

		seq := model.SuspiciousSequence{
			DetectionType:         model.DetectionWashTrading,
			AccountID:             key.AccountID,
			ProductID:             key.ProductID,
			StartTimestamp:        windowStart,
			EndTimestamp:          window[len(window)-1].Timestamp,
			TotalBuyQty:           buyQty,
			TotalSellQty:          sellQty,
			AlternationPercentage: alternation,
		}

		if pct, ok := priceChangePercentage(window); ok && pct >= d.Config.OptionalPriceChangeThreshold {
			seq.HasPriceChange = true
			seq.PriceChangePercentage = pct
		}

		sequences = append(sequences, seq)
	}

	return sequences
}

// alternationPercentage is the share of adjacent trade pairs whose side
// differs, as a percentage of (len(trades) - 1) transitions.
func alternationPercentage(trades []model.TransactionEvent) float64 {
	if len(trades) < 2 {
		return 0.0
	}
	switches := 0
	for i := 1; i < len(trades); i++ {
		if trades[i].Side != trades[i-1].Side {
			switches++
		}
	}
	return float64(switches) / float64(len(trades)-1) * 100.0
}

// priceChangePercentage returns |last-first|/first * 100 and whether the
// computation was well-defined (first price non-zero).
func priceChangePercentage(trades []model.TransactionEvent) (float64, bool) {
	if len(trades) == 0 {
		return 0, false
	}
	first, _ := trades[0].Price.Float64()
	last, _ := trades[len(trades)-1].Price.Float64()
	if first == 0 {
		return 0, false
	}
	return math.Abs((last-first)/first) * 100.0, true
}
