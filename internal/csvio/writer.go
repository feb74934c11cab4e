package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"surveillance/internal/model"
)

var suspiciousAccountsColumns = []string{
	"account_id",
	"product_id",
	"total_buy_qty",
	"total_sell_qty",
	"num_cancelled_orders",
	"detected_timestamp",
	"detection_type",
	"alternation_percentage",
	"price_change_percentage",
}

// WriteSuspiciousAccounts writes the detection-result CSV. Columns specific
// to one detection type are left empty for sequences of the other type
// (e.g. alternation_percentage is always empty on LAYERING rows).
func WriteSuspiciousAccounts(path string, sequences []model.SuspiciousSequence) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csvio: creating output dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvio: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(suspiciousAccountsColumns); err != nil {
		return fmt.Errorf("csvio: writing header: %w", err)
	}

	for _, seq := range sequences {
		alternation := ""
		if seq.DetectionType == model.DetectionWashTrading {
			alternation = strconv.FormatFloat(seq.AlternationPercentage, 'f', 2, 64)
		}
		priceChange := ""
		if seq.DetectionType == model.DetectionWashTrading && seq.HasPriceChange {
			priceChange = strconv.FormatFloat(seq.PriceChangePercentage, 'f', 2, 64)
		}

		row := []string{
			SanitizeForCSV(seq.AccountID),
			SanitizeForCSV(seq.ProductID),
			strconv.FormatInt(seq.TotalBuyQty, 10),
			strconv.FormatInt(seq.TotalSellQty, 10),
			strconv.Itoa(seq.NumCancelledOrders),
			seq.EndTimestamp.Format(time.RFC3339Nano),
			string(seq.DetectionType),
			alternation,
			priceChange,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csvio: writing row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

var detectionLogColumns = []string{
	"account_id",
	"product_id",
	"window_start_timestamp",
	"detected_timestamp",
	"duration_seconds",
	"num_cancelled_orders",
	"total_buy_qty",
	"total_sell_qty",
	"order_timestamps",
}

// WriteDetectionLogs writes one row per sequence with the full window
// detail, optionally pseudonymizing account_id with a salted SHA-256 digest
// instead of the sanitized plaintext value. salt is required when
// pseudonymize is true.
func WriteDetectionLogs(path string, sequences []model.SuspiciousSequence, pseudonymize bool, salt string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csvio: creating output dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvio: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(detectionLogColumns); err != nil {
		return fmt.Errorf("csvio: writing header: %w", err)
	}

	for _, seq := range sequences {
		accountID := SanitizeForCSV(seq.AccountID)
		if pseudonymize {
			pseudo, err := PseudonymizeAccountID(seq.AccountID, salt)
			if err != nil {
				return err
			}
			accountID = pseudo
		}

		duration := seq.EndTimestamp.Sub(seq.StartTimestamp).Seconds()

		timestamps := make([]string, len(seq.OrderTimestamps))
		for i, ts := range seq.OrderTimestamps {
			timestamps[i] = ts.Format(time.RFC3339Nano)
		}

		row := []string{
			accountID,
			SanitizeForCSV(seq.ProductID),
			seq.StartTimestamp.Format(time.RFC3339Nano),
			seq.EndTimestamp.Format(time.RFC3339Nano),
			strconv.FormatFloat(duration, 'f', 3, 64),
			strconv.Itoa(seq.NumCancelledOrders),
			strconv.FormatInt(seq.TotalBuyQty, 10),
			strconv.FormatInt(seq.TotalSellQty, 10),
			strings.Join(timestamps, ";"),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csvio: writing row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
