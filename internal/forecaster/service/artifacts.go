package service

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang-stock-forecaster/internal/entity"
)

// artifactWriter emits the CSV outputs of a run: one file per successful
// (symbol, method) pair and one cross-method comparison file.
type artifactWriter struct {
	outputDir string
}

type pairKey struct {
	symbol string
	method entity.ForecastMethod
}

func newArtifactWriter(outputDir string) *artifactWriter {
	return &artifactWriter{outputDir: outputDir}
}

func (w *artifactWriter) Write(batch []entity.ForecastStock) error {
	if len(batch) == 0 {
		return nil
	}
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	grouped := make(map[pairKey][]entity.ForecastStock)
	var order []pairKey
	for _, rec := range batch {
		key := pairKey{rec.Symbol, rec.Method}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], rec)
	}

	for _, key := range order {
		name := fmt.Sprintf("forecast_%s_%s.csv", sanitizeSymbol(key.symbol), key.method)
		if err := w.writePairFile(filepath.Join(w.outputDir, name), grouped[key]); err != nil {
			return err
		}
	}

	return w.writeComparisonFile(filepath.Join(w.outputDir, "forecast_comparison.csv"), order, grouped)
}

func (w *artifactWriter) writePairFile(path string, records []entity.ForecastStock) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	defer cw.Flush()

	header := []string{"forecast_date", "symbol", "method", "forecast_day", "predicted_close", "price_change", "price_change_pct", "lower_bound", "upper_bound"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.ForecastDate.Format("2006-01-02"),
			rec.Symbol,
			string(rec.Method),
			formatIntPtr(rec.ForecastDay),
			formatFloat(rec.PredictedClose),
			formatFloatPtr(rec.PriceChange),
			formatFloatPtr(rec.PriceChangePct),
			formatFloatPtr(rec.LowerBound),
			formatFloatPtr(rec.UpperBound),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *artifactWriter) writeComparisonFile(path string, order []pairKey, grouped map[pairKey][]entity.ForecastStock) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	defer cw.Flush()

	if err := cw.Write([]string{"symbol", "method", "avg_predicted_close", "avg_price_change_pct"}); err != nil {
		return err
	}

	for _, key := range order {
		records := grouped[key]
		var sumClose, sumPct float64
		for _, rec := range records {
			sumClose += rec.PredictedClose
			if rec.PriceChangePct != nil {
				sumPct += *rec.PriceChangePct
			}
		}
		n := float64(len(records))
		row := []string{
			key.symbol,
			string(key.method),
			fmt.Sprintf("%.2f", sumClose/n),
			fmt.Sprintf("%.2f", sumPct/n),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sanitizeSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, ".", "_")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
