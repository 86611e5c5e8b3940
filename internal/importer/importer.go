// Package importer builds the reference dataset from an Open Food Facts
// JSONL dump, either from scratch or as a delta on top of an existing build.
package importer

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/korjavin/nomnom/internal/off"
	"github.com/korjavin/nomnom/internal/reference"
)

const (
	maxBarcodeLen = 64
	batchSize     = 5_000
	progressEvery = 100_000
)

// Modes recorded in the manifest.
const (
	ModeFull   = "full"
	ModeAppend = "append"
)

// Skip reasons recorded in the manifest.
const (
	SkipParseError     = "parse_error"
	SkipEmptyBarcode   = "empty_barcode"
	SkipBarcodeTooLong = "barcode_too_long"
)

// ErrDatasetExists is returned by a full import into a directory that already
// holds a dataset.
var ErrDatasetExists = errors.New("output directory already holds a dataset")

// Options controls an import run.
type Options struct {
	DumpPath  string
	OutputDir string
	// Append upserts the dump into an existing dataset instead of building a
	// new one. Rows are replaced by barcode.
	Append  bool
	Verbose bool
	Logger  *slog.Logger
}

// Import reads a JSONL Open Food Facts dump (gzip-compressed when the file
// name ends in .gz), writes every product with a usable barcode to the
// reference store and returns the manifest it wrote.
//
// Products without a resolvable name are stored but not indexed for text
// search. Lines that fail to parse and products with an empty or over-long
// barcode are skipped and counted by reason.
func Import(ctx context.Context, opts Options) (*reference.Manifest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mode := ModeFull
	if opts.Append {
		mode = ModeAppend
	} else if _, err := os.Stat(filepath.Join(opts.OutputDir, "pebble")); err == nil {
		return nil, fmt.Errorf("%s: %w", opts.OutputDir, ErrDatasetExists)
	}

	src, err := openDump(opts.DumpPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	s, err := reference.Open(opts.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open reference store: %w", err)
	}
	defer s.Close()

	var (
		productCount int64
		indexedCount int64
		skippedCount int64
		skipReasons  = make(map[string]int64)
		startTime    = time.Now()
	)
	skip := func(reason string) {
		skippedCount++
		skipReasons[reason]++
	}

	batch := s.NewWriteBatch()

	scanner := bufio.NewScanner(src)
	// Some OFF lines can be very large; allocate a generous buffer.
	buf := make([]byte, 0, 4*1024*1024)
	scanner.Buffer(buf, 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p off.Product
		if err := json.Unmarshal(line, &p); err != nil {
			skip(SkipParseError)
			logger.Debug("json unmarshal error, skipping line", "error", err)
			continue
		}

		p.Code = strings.TrimSpace(p.Code)
		switch {
		case p.Code == "":
			skip(SkipEmptyBarcode)
			continue
		case len(p.Code) > maxBarcodeLen:
			skip(SkipBarcodeTooLong)
			continue
		}

		indexed, err := batch.Put(p)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", p.Code, err)
		}
		productCount++
		if indexed {
			indexedCount++
		}

		if batch.Len() >= batchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := batch.Flush(); err != nil {
				return nil, fmt.Errorf("batch flush: %w", err)
			}
		}

		if opts.Verbose && productCount%progressEvery == 0 {
			elapsed := time.Since(startTime)
			rate := float64(productCount) / elapsed.Seconds()
			logger.Info("import progress",
				"products", productCount,
				"indexed", indexedCount,
				"skipped", skippedCount,
				"rate_per_s", int(rate),
				"elapsed", elapsed.Round(time.Second),
			)
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	if err := batch.Close(); err != nil {
		return nil, fmt.Errorf("final batch flush: %w", err)
	}

	m := &reference.Manifest{
		BuildTime:     time.Now().UTC(),
		DumpSource:    opts.DumpPath,
		Mode:          mode,
		ProductCount:  productCount,
		IndexedCount:  indexedCount,
		SkippedCount:  skippedCount,
		SchemaVersion: reference.SchemaVersion,
		SkipReasons:   skipReasons,
	}
	if opts.Append {
		if prev, err := reference.ReadManifest(opts.OutputDir); err == nil {
			// Upserted rows may already have existed, so totals are an upper bound.
			m.ProductCount += prev.ProductCount
			m.IndexedCount += prev.IndexedCount
		} else {
			logger.Warn("previous manifest unreadable, counts cover this run only", "error", err)
		}
	}

	if err := reference.WriteManifest(opts.OutputDir, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

type dump struct {
	io.Reader
	closers []io.Closer
}

func (d *dump) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i].Close())
	}
	return errors.Join(errs...)
}

func openDump(path string) (*dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return &dump{Reader: f, closers: []io.Closer{f}}, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	return &dump{Reader: gz, closers: []io.Closer{f, gz}}, nil
}
