package spedparser

import "context"

// ProgressInterval is the number of lines between progress checkpoints.
const ProgressInterval = 5000

// ProgressFunc receives a completion percentage between 0 and 100.
// It is called at coarse granularity, not with every integer value.
type ProgressFunc func(percent int)

// Progress drives the periodic checkpoint shared by every pass: it reports
// the completion percentage and is the only place a pass looks at its
// context for cancellation.
type Progress struct {
	ctx   context.Context
	fn    ProgressFunc
	total int
}

// NewProgress prepares a checkpoint for a pass over path. The input is
// pre-scanned to count lines only when fn is non-nil; a failed pre-scan
// disables percentage reporting but not cancellation.
func NewProgress(ctx context.Context, fn ProgressFunc, path string) *Progress {
	p := &Progress{ctx: ctx, fn: fn}
	if fn != nil {
		if total, err := CountLines(path); err == nil {
			p.total = total
		}
	}
	return p
}

// NewProgressTotal prepares a checkpoint when the line count is already
// known (or unknown, with total 0).
func NewProgressTotal(ctx context.Context, fn ProgressFunc, total int) *Progress {
	return &Progress{ctx: ctx, fn: fn, total: total}
}

// Tick is called once per line read. Every ProgressInterval lines it
// reports progress (capped at 99) and returns the context error if the
// pass has been cancelled.
func (p *Progress) Tick(linesRead int) error {
	if linesRead%ProgressInterval != 0 {
		return nil
	}

	if p.ctx != nil {
		if err := p.ctx.Err(); err != nil {
			return err
		}
	}

	if p.fn != nil && p.total > 0 {
		percent := linesRead * 100 / p.total
		if percent > 99 {
			percent = 99
		}
		p.fn(percent)
	}
	return nil
}

// Done reports completion.
func (p *Progress) Done() {
	if p.fn != nil {
		p.fn(100)
	}
}
