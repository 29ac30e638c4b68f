// =============================================================================
// SPED Toolkit - Tax Aggregator
// =============================================================================
//
// This module folds the item-level records of a SPED file into a compact
// table keyed by fiscal classification (block, CFOP, PIS/COFINS CST and
// rate). Supported record types and their field positions live in
// layout.go; the table itself lives in table.go.
//
// Record types are self-identifying, so no block tracking is needed. A
// record that is too short for its layout is skipped. Only I/O failures
// abort the run.
//
// =============================================================================

package aggregator

import (
	"context"
	"io"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
)

// Options configures an aggregation run.
type Options struct {
	// Encoding of the SPED input. Default: "latin-1"
	Encoding string

	// Progress, when set, receives completion percentages.
	Progress spedparser.ProgressFunc
}

// Aggregate reads path and returns its aggregation table.
//
// RETURNS:
//   - A table, possibly empty, when the whole file was read.
//   - nil and an error when the file could not be opened or read, or the
//     context was cancelled.
func Aggregate(ctx context.Context, path string, opts Options) (*Table, error) {
	enc, err := spedparser.LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader, err := spedparser.Open(path, enc)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	progress := spedparser.NewProgress(ctx, opts.Progress, path)
	table, err := aggregate(reader, progress)
	if err != nil {
		return nil, err
	}

	progress.Done()
	return table, nil
}

// AggregateReader aggregates an already-decoded stream.
func AggregateReader(ctx context.Context, r io.Reader) (*Table, error) {
	return aggregate(spedparser.NewReader(r, nil), spedparser.NewProgressTotal(ctx, nil, 0))
}

func aggregate(reader *spedparser.Reader, progress *spedparser.Progress) (*Table, error) {
	table := NewTable()
	linesRead := 0

	for reader.Next() {
		linesRead++
		if err := progress.Tick(linesRead); err != nil {
			return nil, err
		}

		rec, ok := spedparser.Parse(reader.Line())
		if !ok {
			continue
		}

		l, ok := layouts[rec.Registro]
		if !ok {
			continue
		}

		if key, amounts, ok := l.entry(rec); ok {
			table.Add(key, amounts)
		}
	}

	if err := reader.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
