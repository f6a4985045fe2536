// Package progress shows a console progress bar for batch jobs.
package progress

import (
	"github.com/schollz/progressbar/v3"
)

// Bar counts processed items out of a known total and estimates the time
// left. A nil *Bar is valid and does nothing.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar for total items. Quiet bars track progress without
// drawing anything.
func New(total int, desc string, quiet bool) *Bar {
	if quiet {
		return &Bar{bar: progressbar.DefaultSilent(int64(total), desc)}
	}
	return &Bar{bar: progressbar.Default(int64(total), desc)}
}

// Add marks n more items as processed.
func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

// Done returns how many items have been processed.
func (b *Bar) Done() int64 {
	if b == nil {
		return 0
	}
	return int64(b.bar.State().CurrentNum)
}

// Finish fills the bar and moves the cursor past it.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
