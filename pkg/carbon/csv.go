package carbon

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// csvStampLayout keeps exported filenames free of characters that trip up
// common filesystems.
const csvStampLayout = "20060102T150405Z"

// csvHeader matches the column naming of the upstream export format.
var csvHeader = []string{"timestamp", "marginal_carbon_lb/MWh"}

// ExportCSV fetches the window [start, end] and writes it as a two-column
// CSV file under dir, one row per sample. The filename encodes region,
// market, and both bounds. Returns the path of the written file.
func (c *Client) ExportCSV(ctx context.Context, dir string, start, end time.Time, region, market string, extra map[string]string) (string, error) {
	samples, err := c.Fetch(ctx, start, end, region, market, extra)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%s_%s.csv",
		normalizeRegion(region), normalizeMarket(market),
		start.UTC().Format(csvStampLayout), end.UTC().Format(csvStampLayout))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("carbon: create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("carbon: write csv header: %w", err)
	}
	for _, s := range samples {
		row := []string{s.Time.Format(RecordTimeLayout), strconv.FormatFloat(s.Value, 'f', -1, 64)}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("carbon: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("carbon: flush csv: %w", err)
	}
	return path, nil
}

// WriteCSV writes grid points to w in the same column format as ExportCSV.
// Absent points keep their row but leave the value cell empty.
func WriteCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("carbon: write csv header: %w", err)
	}
	for _, p := range points {
		row := []string{p.Time.Format(RecordTimeLayout), ""}
		if p.Valid {
			row[1] = strconv.FormatFloat(p.Value, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("carbon: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("carbon: flush csv: %w", err)
	}
	return nil
}
