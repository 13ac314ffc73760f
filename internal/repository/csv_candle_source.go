package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"TrendPull/internal/domain/models"
	"TrendPull/pkg/util"
)

// LoadCandlesCSV reads timestamp,open,high,low,close,volume rows. Timestamps are unix
// milliseconds (seconds and RFC3339 are accepted too). A header row is skipped.
func LoadCandlesCSV(path, symbol, tf string) (models.CandleSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.CandleSeries{}, fmt.Errorf("open candles csv: %w", err)
	}
	defer f.Close()
	return ReadCandlesCSV(f, symbol, tf)
}

// ReadCandlesCSV parses candles from r. Rows must be strictly increasing in time.
func ReadCandlesCSV(r io.Reader, symbol, tf string) (models.CandleSeries, error) {
	out := models.CandleSeries{Symbol: symbol, Timeframe: tf}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("candles csv line %d: %w", line, err)
		}
		if len(rec) < 6 {
			return out, fmt.Errorf("candles csv line %d: want 6 fields, got %d", line, len(rec))
		}
		ts, ok := util.ParseTime(strings.TrimSpace(rec[0]))
		if !ok {
			if line == 1 {
				continue // header
			}
			return out, fmt.Errorf("candles csv line %d: bad timestamp %q", line, rec[0])
		}
		var v [5]float64
		for i := range v {
			v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return out, fmt.Errorf("candles csv line %d field %d: %w", line, i+2, err)
			}
		}
		out.Candles = append(out.Candles, models.Candle{
			Time: ts, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4],
		})
	}
	if err := out.Validate(1); err != nil {
		return out, err
	}
	return out, nil
}

// WriteCandlesCSV writes series in the format ReadCandlesCSV accepts.
func WriteCandlesCSV(w io.Writer, series models.CandleSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range series.Candles {
		row := []string{
			strconv.FormatInt(c.Time.UnixMilli(), 10),
			util.FormatFloat(c.Open),
			util.FormatFloat(c.High),
			util.FormatFloat(c.Low),
			util.FormatFloat(c.Close),
			util.FormatFloat(c.Volume),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
