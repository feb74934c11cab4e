// Package model defines the domain types shared by the detection engine
// and the orchestration layer: transaction events, detection configs, and
// the tagged-variant suspicious sequence result.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is one of BUY or SELL.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// EventType is one of the three transaction lifecycle events.
type EventType string

const (
	EventOrderPlaced    EventType = "ORDER_PLACED"
	EventOrderCancelled EventType = "ORDER_CANCELLED"
	EventTradeExecuted  EventType = "TRADE_EXECUTED"
)

// TransactionEvent is an immutable domain record parsed from one input row.
type TransactionEvent struct {
	Timestamp time.Time
	AccountID string
	ProductID string
	Side      Side
	Price     decimal.Decimal
	Quantity  int64
	EventType EventType
}

// GroupKey identifies an (account, instrument) partition of the event set.
type GroupKey struct {
	AccountID string
	ProductID string
}

// DetectionType tags which algorithm produced a SuspiciousSequence.
type DetectionType string

const (
	DetectionLayering    DetectionType = "LAYERING"
	DetectionWashTrading DetectionType = "WASH_TRADING"
)

// SuspiciousSequence is the tagged-variant detection result. Fields not
// applicable to a given DetectionType are left nil/zero.
type SuspiciousSequence struct {
	DetectionType  DetectionType
	AccountID      string
	ProductID      string
	StartTimestamp time.Time
	EndTimestamp   time.Time
	TotalBuyQty    int64
	TotalSellQty   int64

	// LAYERING-only fields.
	Side               Side
	NumCancelledOrders int
	OrderTimestamps    []time.Time

	// WASH_TRADING-only fields.
	AlternationPercentage float64
	HasPriceChange        bool
	PriceChangePercentage float64
}

// DetectionConfig holds the layering detector's three timing windows.
type DetectionConfig struct {
	OrdersWindow        time.Duration
	CancelWindow        time.Duration
	OppositeTradeWindow time.Duration
}

// DefaultDetectionConfig returns the spec's default layering windows.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		OrdersWindow:        10 * time.Second,
		CancelWindow:        5 * time.Second,
		OppositeTradeWindow: 2 * time.Second,
	}
}

// Validate rejects any non-positive window, per spec invariant #8.
func (c DetectionConfig) Validate() error {
	if c.OrdersWindow <= 0 {
		return fmt.Errorf("%w: orders_window must be positive, got %s", ErrConfigInvalid, c.OrdersWindow)
	}
	if c.CancelWindow <= 0 {
		return fmt.Errorf("%w: cancel_window must be positive, got %s", ErrConfigInvalid, c.CancelWindow)
	}
	if c.OppositeTradeWindow <= 0 {
		return fmt.Errorf("%w: opposite_trade_window must be positive, got %s", ErrConfigInvalid, c.OppositeTradeWindow)
	}
	return nil
}

// WashTradingConfig holds the wash-trading detector's thresholds.
type WashTradingConfig struct {
	MinBuyTrades                 int
	MinSellTrades                int
	MinAlternationPercentage     float64
	MinTotalVolume               int64
	WindowSize                   time.Duration
	OptionalPriceChangeThreshold float64
}

// DefaultWashTradingConfig returns the spec's default wash-trading thresholds.
func DefaultWashTradingConfig() WashTradingConfig {
	return WashTradingConfig{
		MinBuyTrades:                 3,
		MinSellTrades:                3,
		MinAlternationPercentage:     60.0,
		MinTotalVolume:               10_000,
		WindowSize:                   30 * time.Minute,
		OptionalPriceChangeThreshold: 1.0,
	}
}

// Validate rejects any non-positive threshold, per spec invariant #8.
func (c WashTradingConfig) Validate() error {
	if c.MinBuyTrades <= 0 {
		return fmt.Errorf("%w: min_buy_trades must be positive, got %d", ErrConfigInvalid, c.MinBuyTrades)
	}
	if c.MinSellTrades <= 0 {
		return fmt.Errorf("%w: min_sell_trades must be positive, got %d", ErrConfigInvalid, c.MinSellTrades)
	}
	if c.MinAlternationPercentage <= 0 {
		return fmt.Errorf("%w: min_alternation_percentage must be positive, got %f", ErrConfigInvalid, c.MinAlternationPercentage)
	}
	if c.MinTotalVolume <= 0 {
		return fmt.Errorf("%w: min_total_volume must be positive, got %d", ErrConfigInvalid, c.MinTotalVolume)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window_size must be positive, got %s", ErrConfigInvalid, c.WindowSize)
	}
	if c.OptionalPriceChangeThreshold <= 0 {
		return fmt.Errorf("%w: optional_price_change_threshold must be positive, got %f", ErrConfigInvalid, c.OptionalPriceChangeThreshold)
	}
	return nil
}
