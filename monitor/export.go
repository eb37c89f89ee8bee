package monitor

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"

	"github.com/dreamsxin/procmetrics/types"
)

// CSVHeader is the first record of every export.
var CSVHeader = []string{"tempo_segundos", "ram_mb", "cpu_percent"}

// Row is one exported sample.
type Row struct {
	ElapsedSeconds float64
	MemoryMB       float64
	CPUPercent     float64
}

// RowFromSample converts a sample into its export form.
func RowFromSample(s types.Sample) Row {
	return Row{
		ElapsedSeconds: s.Elapsed.Seconds(),
		MemoryMB:       s.MemoryMB,
		CPUPercent:     s.CPUPercent,
	}
}

func (r Row) record() []string {
	return []string{
		fmt.Sprintf("%.2f", r.ElapsedSeconds),
		fmt.Sprintf("%.2f", r.MemoryMB),
		fmt.Sprintf("%.1f", r.CPUPercent),
	}
}

// WriteCSV writes the header followed by one record per row.
func WriteCSV(w io.Writer, rows iter.Seq[Row]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return errors.Wrap(err, "failed to write csv header")
	}
	for row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return errors.Wrap(err, "failed to write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush csv")
}

// ReadCSV parses an export written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}
	if strings.Join(header, ",") != strings.Join(CSVHeader, ",") {
		return nil, errors.Errorf("unexpected csv header %q", header)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read csv row")
		}

		var vals [3]float64
		for i, field := range rec {
			vals[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s value", CSVHeader[i])
			}
		}
		rows = append(rows, Row{ElapsedSeconds: vals[0], MemoryMB: vals[1], CPUPercent: vals[2]})
	}
}

// ExportFileName names the CSV of a run of target started at at.
func ExportFileName(target string, at time.Time) string {
	base := filepath.Base(target)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("monitor_%s_%d.csv", base, at.Unix())
}

// ExportSeries writes the retained samples of series to dir and returns the
// path of the created file.
func ExportSeries(dir, target string, at time.Time, series *TimeSeries) (string, error) {
	if !series.Retained() {
		return "", errors.New("series does not retain samples")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create export directory %s", dir)
	}

	path := filepath.Join(dir, ExportFileName(target, at))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to create export file")
	}

	if err := WriteCSV(f, series.Rows()); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "failed to close export file")
	}
	return path, nil
}
