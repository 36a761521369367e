// Package metrics provides counters for reactor runtime behavior: backend
// poll cadence, file/timer dispatch volume, and registration churn. It is a
// good tool for spotting a busy-loop (BackendPolls rising with
// BackendFiredEvents flat) or timer starvation (TimersCreated growing much
// faster than TimersFired).
package metrics

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// All metrics definitions.
const (
	// BackendPolls counts calls to the backend's Poll.
	BackendPolls = iota
	// BackendFiredEvents counts the total (fd, mask) pairs Poll has
	// returned across all calls.
	BackendFiredEvents
	// BackendPollErrors counts Poll calls that returned a non-EINTR error
	// and were absorbed as zero-fired.
	BackendPollErrors
	// FilesRegistered counts successful calls to RegisterFile.
	FilesRegistered
	// FilesUnregistered counts calls to UnregisterFile on an fd that had a
	// non-empty registered mask.
	FilesUnregistered
	// TimersCreated counts calls to CreateTimer.
	TimersCreated
	// TimersDeleted counts calls to DeleteTimer that found a match.
	TimersDeleted
	// TimersFired counts timer handler invocations across all
	// ProcessEvents calls.
	TimersFired
	// HandlerPanicsRecovered counts file/time handler panics recovered
	// under WithIgnoreHandlerPanic.
	HandlerPanicsRecovered

	max
)

var allMetrics [max]atomic.Uint64

// Add adds delta to the named counter. Unknown names are ignored.
func Add(name int, delta uint64) {
	if name < 0 || name >= max {
		return
	}
	allMetrics[name].Add(delta)
}

// Get returns the current value of the named counter, or 0 for an unknown
// name.
func Get(name int) uint64 {
	if name < 0 || name >= max {
		return 0
	}
	return allMetrics[name].Load()
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot [max]uint64

// GetAll returns a Snapshot of every counter.
func GetAll() Snapshot {
	var s Snapshot
	for i := range allMetrics {
		s[i] = allMetrics[i].Load()
	}
	return s
}

// ShowMetricsOfPeriod blocks for d, then prints the delta of every counter
// observed over that window.
func ShowMetricsOfPeriod(d time.Duration) {
	old := GetAll()
	<-time.After(d)
	cur := GetAll()
	var delta Snapshot
	for i := range cur {
		delta[i] = cur[i] - old[i]
	}
	show(delta)
}

// ShowMetrics prints the current value of every counter.
func ShowMetrics() {
	show(GetAll())
}

func show(s Snapshot) {
	fmt.Println("######### reactor metrics (", time.Now().Format("2006-01-02 15:04:05"), ") ###########")
	fmt.Printf("%-45s: %d\n", "# backend poll calls", s[BackendPolls])
	fmt.Printf("%-45s: %d\n", "# backend fired events", s[BackendFiredEvents])
	fmt.Printf("%-45s: %d\n", "# backend poll errors absorbed", s[BackendPollErrors])
	fmt.Printf("%-45s: %d\n", "# files registered", s[FilesRegistered])
	fmt.Printf("%-45s: %d\n", "# files unregistered", s[FilesUnregistered])
	fmt.Printf("%-45s: %d\n", "# timers created", s[TimersCreated])
	fmt.Printf("%-45s: %d\n", "# timers deleted", s[TimersDeleted])
	fmt.Printf("%-45s: %d\n", "# timers fired", s[TimersFired])
	fmt.Printf("%-45s: %d\n", "# handler panics recovered", s[HandlerPanicsRecovered])
}
