// Package prof collects named wall-clock timings for the command line tools.
package prof

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"
)

// Entry is one timing measurement.
type Entry struct {
	Label string
	Dur   time.Duration
}

var (
	mu     sync.Mutex
	record []Entry
)

// Track records the time elapsed since start under name. Use it as
//
//	defer prof.Track(time.Now(), "extract")
func Track(start time.Time, name string) {
	elapsed := time.Since(start)
	mu.Lock()
	record = append(record, Entry{Label: name, Dur: elapsed})
	mu.Unlock()
}

// Time runs fn and records its duration under name.
func Time(name string, fn func() error) error {
	defer Track(time.Now(), name)
	return fn()
}

// SnapshotAndReset returns the collected entries and clears them.
func SnapshotAndReset() []Entry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Entry, len(record))
	copy(out, record)
	record = nil
	return out
}

// Summary aggregates entries per label, keeping first-seen order.
type Summary struct {
	Label string
	Count int
	Total time.Duration
}

// Summarize groups entries by label.
func Summarize(entries []Entry) []Summary {
	idx := make(map[string]int)
	var out []Summary
	for _, e := range entries {
		i, ok := idx[e.Label]
		if !ok {
			i = len(out)
			idx[e.Label] = i
			out = append(out, Summary{Label: e.Label})
		}
		out[i].Count++
		out[i].Total += e.Dur
	}
	return out
}

// Report writes a table of the collected timings to w and resets them. With
// byTotal the rows are sorted by decreasing total time.
func Report(w io.Writer, byTotal bool) error {
	rows := Summarize(SnapshotAndReset())
	if byTotal {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Total > rows[j].Total })
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "stage\tcalls\ttotal\tmean")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Label, r.Count, r.Total, r.Total/time.Duration(r.Count))
	}
	return tw.Flush()
}
