package detection

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"surveillance/internal/model"
)

func trade(ts time.Time, account string, side model.Side, qty int64, price float64) model.TransactionEvent {
	return model.TransactionEvent{
		Timestamp: ts, AccountID: account, ProductID: "BTC-USD",
		Side: side, Price: decimal.NewFromFloat(price), Quantity: qty,
		EventType: model.EventTradeExecuted,
	}
}

func alternatingWashTrades(base time.Time) []model.TransactionEvent {
	var out []model.TransactionEvent
	for i := 0; i < 6; i++ {
		side := model.SideBuy
		if i%2 == 1 {
			side = model.SideSell
		}
		out = append(out, trade(base.Add(time.Duration(i)*time.Minute), "ACC1", side, 2000, 100))
	}
	return out
}

func TestWashTradingDetectorFindsAlternatingSequence(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	d := NewWashTradingDetector(model.DefaultWashTradingConfig())
	events := alternatingWashTrades(base)

	sequences, err := d.Detect(d.FilterEvents(events))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(sequences) == 0 {
		t.Fatal("expected at least one wash-trading sequence")
	}

	seq := sequences[0]
	if seq.DetectionType != model.DetectionWashTrading {
		t.Errorf("DetectionType = %v, want WASH_TRADING", seq.DetectionType)
	}
	if seq.AlternationPercentage != 100.0 {
		t.Errorf("AlternationPercentage = %v, want 100.0", seq.AlternationPercentage)
	}
	if seq.TotalBuyQty != 6000 || seq.TotalSellQty != 6000 {
		t.Errorf("TotalBuyQty/TotalSellQty = %d/%d, want 6000/6000", seq.TotalBuyQty, seq.TotalSellQty)
	}
	if seq.HasPriceChange {
		t.Errorf("expected HasPriceChange = false when price never moves")
	}
}

func TestWashTradingDetectorRejectsBelowVolumeThreshold(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	cfg := model.DefaultWashTradingConfig()
	cfg.MinTotalVolume = 100_000

	d := NewWashTradingDetector(cfg)
	events := alternatingWashTrades(base)

	sequences, err := d.Detect(d.FilterEvents(events))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(sequences) != 0 {
		t.Errorf("expected no sequences below the volume threshold, got %d", len(sequences))
	}
}

func TestWashTradingDetectorRejectsLowAlternation(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	// All same side: no alternation at all.
	var events []model.TransactionEvent
	for i := 0; i < 6; i++ {
		events = append(events, trade(base.Add(time.Duration(i)*time.Minute), "ACC1", model.SideBuy, 2000, 100))
	}

	d := NewWashTradingDetector(model.DefaultWashTradingConfig())
	sequences, err := d.Detect(d.FilterEvents(events))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(sequences) != 0 {
		t.Errorf("expected no sequences with zero alternation, got %d", len(sequences))
	}
}

func TestWashTradingDetectorSetsPriceChangeWhenAboveThreshold(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	var events []model.TransactionEvent
	prices := []float64{100, 100, 100, 100, 100, 110}
	for i := 0; i < 6; i++ {
		side := model.SideBuy
		if i%2 == 1 {
			side = model.SideSell
		}
		events = append(events, trade(base.Add(time.Duration(i)*time.Minute), "ACC1", side, 2000, prices[i]))
	}

	d := NewWashTradingDetector(model.DefaultWashTradingConfig())
	sequences, err := d.Detect(d.FilterEvents(events))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(sequences) == 0 {
		t.Fatal("expected at least one sequence")
	}
	if !sequences[0].HasPriceChange {
		t.Errorf("expected HasPriceChange = true for a 10%% price move")
	}
	if sequences[0].PriceChangePercentage < 9.9 || sequences[0].PriceChangePercentage > 10.1 {
		t.Errorf("PriceChangePercentage = %v, want ~10.0", sequences[0].PriceChangePercentage)
	}
}

func TestWashTradingFilterEventsKeepsOnlyTrades(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	events := []model.TransactionEvent{
		placed(base, "A1", model.SideBuy, 1),
		cancelled(base, "A1", model.SideBuy, 1),
		trade(base, "A1", model.SideBuy, 1, 100),
	}

	d := NewWashTradingDetector(model.DefaultWashTradingConfig())
	filtered := d.FilterEvents(events)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 trade event to pass through, got %d", len(filtered))
	}
	if filtered[0].EventType != model.EventTradeExecuted {
		t.Errorf("expected remaining event to be TRADE_EXECUTED, got %v", filtered[0].EventType)
	}
}
