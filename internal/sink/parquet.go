package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eventsync/internal/model"
)

// ParquetSink writes one snappy-compressed Parquet file per year.
type ParquetSink struct {
	dir    string
	source string
}

// NewParquetSink creates a sink writing <dir>/<source>_<year>_processed.parquet.
// The directory is created if needed.
func NewParquetSink(dir, source string) (*ParquetSink, error) {
	if dir == "" {
		return nil, eris.New("sink: parquet: output dir is required")
	}
	if source == "" {
		source = DefaultSource
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "sink: parquet: create output dir %s", dir)
	}
	return &ParquetSink{dir: dir, source: source}, nil
}

// Name returns "parquet".
func (s *ParquetSink) Name() string { return "parquet" }

// Path returns the output file for year.
func (s *ParquetSink) Path(year int) string {
	return filepath.Join(s.dir, FileName(s.source, year))
}

// FileName returns <source>_<year>_processed.parquet.
func FileName(source string, year int) string {
	return fmt.Sprintf("%s_%d_processed.parquet", source, year)
}

// Write replaces year's file with rows. Empty batches write nothing. The file
// is written under a temporary name and renamed, so readers never see a
// partial file.
func (s *ParquetSink) Write(ctx context.Context, year int, rows []model.EnrichedEvent) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "sink: parquet: write cancelled")
	}

	path := s.Path(year)
	f, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "sink: parquet: create temp file for %d", year)
	}
	tmp := f.Name()
	defer os.Remove(tmp) //nolint:errcheck

	out := make([]eventRow, len(rows))
	for i, r := range rows {
		out[i] = toRow(r)
	}

	w := parquet.NewGenericWriter[eventRow](f, eventSchema, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(out); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "sink: parquet: write rows for %d", year)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "sink: parquet: finalize %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "sink: parquet: close %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "sink: parquet: rename to %s", path)
	}
	return nil
}
