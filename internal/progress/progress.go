// Package progress shows activity while a page request is in flight: a
// spinner on a terminal, nothing otherwise.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter reports the progress of an operation of unknown length.
type Reporter interface {
	Start(description string)
	SetDescription(desc string)
	Finish()
	Error(err error)
}

// New returns a spinner writing to f when f is a terminal, and a
// NoOpProgress otherwise.
func New(f *os.File) Reporter {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return NewCLIProgress(f)
	}
	return NewNoOpProgress()
}

// CLIProgress implements progress reporting for CLI mode using a spinner.
type CLIProgress struct {
	out io.Writer

	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
}

// NewCLIProgress creates a new CLI progress reporter writing to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start shows the spinner with description. A running spinner is
// finished first.
func (p *CLIProgress) Start(description string) {
	p.Finish()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.spin(p.bar, p.stop, p.done)
}

// spin advances the spinner until stop is closed.
func (p *CLIProgress) spin(bar *progressbar.ProgressBar, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}

// SetDescription updates the spinner description.
func (p *CLIProgress) SetDescription(desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// Finish stops and clears the spinner.
func (p *CLIProgress) Finish() {
	p.mu.Lock()
	bar, stop, done := p.bar, p.stop, p.done
	p.bar, p.stop, p.done = nil, nil, nil
	p.mu.Unlock()

	if bar == nil {
		return
	}
	close(stop)
	<-done
	_ = bar.Finish()
}

// Error stops the spinner and displays an error message.
func (p *CLIProgress) Error(err error) {
	p.Finish()
	if err != nil {
		fmt.Fprintf(p.out, "Error: %v\n", err)
	}
}

// NoOpProgress is a progress reporter that does nothing (for pipes and tests).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(description string) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}
