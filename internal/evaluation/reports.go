// Run output writers: summary JSON and per-negotiation CSV.
package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/talgya/bazaar/internal/trade"
)

// WriteSummary writes aggregate metrics plus run metadata as summary.json.
func WriteSummary(metrics Metrics, extra map[string]any, runDir string) (string, error) {
	record := map[string]any{}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return "", fmt.Errorf("flatten metrics: %w", err)
	}
	for k, v := range extra {
		record[k] = v
	}

	path := filepath.Join(runDir, "summary.json")
	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

var dealFields = []string{
	"time_step", "item_id", "item_name", "buyer_id", "seller_id",
	"deal_made", "deal_price", "termination_reason", "rounds_taken",
	"buyer_value", "seller_cost", "buyer_surplus", "seller_surplus",
}

// WriteDealsCSV writes one row per negotiation as deals.csv.
func WriteDealsCSV(results []*trade.NegotiationResult, runDir string) (string, error) {
	path := filepath.Join(runDir, "deals.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create deals csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(dealFields); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range results {
		price := ""
		if r.DealPrice != nil {
			price = strconv.FormatFloat(*r.DealPrice, 'f', 2, 64)
		}
		row := []string{
			strconv.Itoa(r.TimeStep),
			r.Item.ID,
			r.Item.Name,
			r.BuyerID,
			r.SellerID,
			strconv.FormatBool(r.DealMade),
			price,
			string(r.TerminationReason),
			strconv.Itoa(r.RoundsTaken),
			strconv.FormatFloat(r.BuyerValue, 'f', 2, 64),
			strconv.FormatFloat(r.SellerCost, 'f', 2, 64),
			strconv.FormatFloat(r.BuyerSurplus, 'f', 2, 64),
			strconv.FormatFloat(r.SellerSurplus, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, nil
}
