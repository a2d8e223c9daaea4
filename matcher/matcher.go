// Package matcher pairs Toggl entries with Jira worklog items that describe
// the same interval of work.
package matcher

import (
	"math"
	"sort"
	"time"

	"tjsync/worklog"
)

// Distance weights and the matching threshold. They were tuned by hand;
// changing any of them reshapes matching for every pairing.
const (
	IssueWeight   = 100.0
	CommentWeight = 1.0
	StartWeight   = 2.0
	StopWeight    = 1.0
	Threshold     = 5.0
)

// Pairing associates at most one source entry with at most one reference
// entry. At least one side is always set.
type Pairing struct {
	Source    *worklog.Entry
	Reference *worklog.Entry
	// Distance is nil unless both sides are set.
	Distance *float64
	Start    time.Time
}

// Matched reports whether both sides are present.
func (p Pairing) Matched() bool {
	return p.Source != nil && p.Reference != nil
}

type candidate struct {
	distance float64
	source   int
	ref      int
}

// Match pairs source and reference entries greedily by ascending distance,
// skipping candidates above Threshold. The result is ordered newest first.
func Match(source, reference []worklog.Entry) []Pairing {
	candidates := make([]candidate, 0, len(source)*len(reference))
	for i := range source {
		for j := range reference {
			candidates = append(candidates, candidate{
				distance: Distance(source[i], reference[j]),
				source:   i,
				ref:      j,
			})
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].distance != candidates[b].distance {
			return candidates[a].distance < candidates[b].distance
		}
		if candidates[a].source != candidates[b].source {
			return candidates[a].source < candidates[b].source
		}
		return candidates[a].ref < candidates[b].ref
	})

	sourceUsed := make([]bool, len(source))
	refUsed := make([]bool, len(reference))
	pairings := make([]Pairing, 0, len(source)+len(reference))

	for _, c := range candidates {
		if c.distance > Threshold {
			break
		}
		if sourceUsed[c.source] || refUsed[c.ref] {
			continue
		}
		sourceUsed[c.source] = true
		refUsed[c.ref] = true
		distance := c.distance
		pairings = append(pairings, newPairing(entryRef(source[c.source]), entryRef(reference[c.ref]), &distance))
	}
	for i := range source {
		if !sourceUsed[i] {
			pairings = append(pairings, newPairing(entryRef(source[i]), nil, nil))
		}
	}
	for j := range reference {
		if !refUsed[j] {
			pairings = append(pairings, newPairing(nil, entryRef(reference[j]), nil))
		}
	}

	sort.SliceStable(pairings, func(a, b int) bool {
		return pairings[a].Start.After(pairings[b].Start)
	})
	return pairings
}

func newPairing(source, reference *worklog.Entry, distance *float64) Pairing {
	p := Pairing{Source: source, Reference: reference, Distance: distance}
	switch {
	case source != nil:
		p.Start = source.Start
	case reference != nil:
		p.Start = reference.Start
	}
	return p
}

func entryRef(e worklog.Entry) *worklog.Entry {
	return &e
}

// Distance scores how unlikely it is that a and b describe the same work.
func Distance(a, b worklog.Entry) float64 {
	return IssueWeight*stringDistance(a.Issue, b.Issue) +
		CommentWeight*stringDistance(a.Comment, b.Comment) +
		StartWeight*hoursBetween(a.Start, b.Start) +
		StopWeight*hoursBetween(a.Stop, b.Stop)
}

func stringDistance(a, b string) float64 {
	if a == b {
		return 0
	}
	return 1
}

func hoursBetween(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours())
}
