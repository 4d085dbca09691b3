package internal

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/briandowns/spinner"
)

// CommandCounter tracks progress across the goroutines of a module run.
// Fields are updated atomically so the spinner can read them concurrently.
type CommandCounter struct {
	Total     int64
	Pending   int64
	Executing int64
	Complete  int64
	Error     int64
}

func (c *CommandCounter) AddTotal(n int64)   { atomic.AddInt64(&c.Total, n) }
func (c *CommandCounter) AddPending(n int64) { atomic.AddInt64(&c.Pending, n) }
func (c *CommandCounter) AddRunning(n int64) { atomic.AddInt64(&c.Executing, n) }
func (c *CommandCounter) AddDone(n int64)    { atomic.AddInt64(&c.Complete, n) }
func (c *CommandCounter) AddError(n int64)   { atomic.AddInt64(&c.Error, n) }

func (c *CommandCounter) snapshot() (total, complete int64) {
	return atomic.LoadInt64(&c.Total), atomic.LoadInt64(&c.Complete)
}

// SpinUntil renders a progress spinner on stderr until done receives a value.
// unit names the thing being counted ("projects", "scopes").
// The caller must read from done again after sending to confirm shutdown.
func SpinUntil(module string, counter *CommandCounter, done chan bool, unit string) {
	if !isTerminal(os.Stderr) {
		<-done
		done <- true
		return
	}

	s := spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Start()
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			s.Stop()
			done <- true
			return
		case <-ticker.C:
			total, complete := counter.snapshot()
			s.Suffix = fmt.Sprintf(" [%s] %d/%d %s complete", module, complete, total, unit)
		}
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
