// Package export writes series tables as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/lox/basinseries/internal/series"
)

const DateColumn = "date"

// WriteCSV writes a header of "date" plus the column names, then one record
// per row. Missing values are empty cells.
func WriteCSV(w io.Writer, t series.Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{DateColumn}, t.ColumnNames()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range t.Rows() {
		record[0] = row.Time.Format(time.RFC3339)
		for i, v := range row.Values {
			if v.Valid {
				record[i+1] = strconv.FormatFloat(v.Float64, 'g', -1, 64)
			} else {
				record[i+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes t to path, zstd-compressed when path ends in ".zst".
func WriteFile(path string, t series.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return WriteCSV(f, t)
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}
	if err := WriteCSV(zw, t); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
