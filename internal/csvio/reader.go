// Package csvio reads transaction events from CSV and writes detection
// results back out, matching the fixed schemas the rest of the pipeline
// (and any downstream spreadsheet consumer) depends on.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"surveillance/internal/model"
)

var requiredColumns = []string{
	"timestamp", "account_id", "product_id", "side", "price", "quantity", "event_type",
}

// ReadTransactions parses a transactions CSV into events. Rows that fail
// validation are skipped with a structured warning rather than aborting the
// whole file; a missing required column or a missing file is fatal, since
// those indicate the input isn't the expected shape at all.
func ReadTransactions(path string, logger *slog.Logger) ([]model.TransactionEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", model.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("csvio: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header of %s: %w", model.ErrInputMalformed, path, err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := colIndex[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required CSV columns in %s: %v", model.ErrInputMalformed, path, missing)
	}

	var events []model.TransactionEvent
	lineNo := 1 // header consumed line 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			logger.Warn("skipping malformed CSV row", "file", path, "line", lineNo, "error", err)
			continue
		}

		event, parseErr := parseRow(row, colIndex)
		if parseErr != nil {
			logger.Warn("skipping invalid row", "file", path, "line", lineNo, "error", parseErr)
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func parseRow(row []string, colIndex map[string]int) (model.TransactionEvent, error) {
	get := func(col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	ts, err := parseTimestamp(get("timestamp"))
	if err != nil {
		return model.TransactionEvent{}, err
	}

	accountID := strings.TrimSpace(get("account_id"))
	if accountID == "" {
		return model.TransactionEvent{}, fmt.Errorf("empty account_id")
	}
	productID := strings.TrimSpace(get("product_id"))
	if productID == "" {
		return model.TransactionEvent{}, fmt.Errorf("empty product_id")
	}

	side, err := parseSide(get("side"))
	if err != nil {
		return model.TransactionEvent{}, err
	}

	price, err := parsePrice(get("price"))
	if err != nil {
		return model.TransactionEvent{}, err
	}

	quantity, err := parseQuantity(get("quantity"))
	if err != nil {
		return model.TransactionEvent{}, err
	}

	eventType, err := parseEventType(get("event_type"))
	if err != nil {
		return model.TransactionEvent{}, err
	}

	return model.TransactionEvent{
		Timestamp: ts,
		AccountID: accountID,
		ProductID: productID,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		EventType: eventType,
	}, nil
}

// parseTimestamp accepts RFC3339 with either a numeric offset or a
// trailing "Z", matching the sample data's UTC designator.
func parseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %q", raw)
	}
	return t, nil
}

func parseSide(raw string) (model.Side, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch model.Side(value) {
	case model.SideBuy, model.SideSell:
		return model.Side(value), nil
	default:
		return "", fmt.Errorf("invalid side: %q", raw)
	}
}

func parseEventType(raw string) (model.EventType, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch model.EventType(value) {
	case model.EventOrderPlaced, model.EventOrderCancelled, model.EventTradeExecuted:
		return model.EventType(value), nil
	default:
		return "", fmt.Errorf("invalid event_type: %q", raw)
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price: %q", raw)
	}
	if p.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("price must be positive, got %q", raw)
	}
	return p, nil
}

func parseQuantity(raw string) (int64, error) {
	q, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity: %q", raw)
	}
	if q <= 0 {
		return 0, fmt.Errorf("quantity must be positive, got %q", raw)
	}
	return q, nil
}
