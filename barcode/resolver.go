package barcode

import (
	"strings"

	"github.com/fenwick-bio/aligncore/util"
)

// UnknownSample is the reserved sample index for an unresolved barcode
// (spec §3 "Sample 0 within a lane is reserved for 'unknown'").
const UnknownSample = 0

// Resolver maps observed barcode bases to a sample index, allowing up to
// MaxMismatches mismatches per barcode component (spec §2 L2). It is
// built once per (flowcell, lane) and is safe for concurrent read-only
// use across worker goroutines.
type Resolver struct {
	maxMismatches int
	componentLens []int
	entries       []resolverEntry
}

type resolverEntry struct {
	components []string
	sample     int
}

// NewResolver builds a Resolver from the sample sheet rows of one lane.
// All rows must agree on the number of barcode components and each
// component's length; mismatched geometry is a configuration error
// surfaced by the (out-of-scope) option-parsing layer, so NewResolver
// simply uses the first row's geometry for validation.
func NewResolver(rows []Row, maxMismatches int) *Resolver {
	r := &Resolver{maxMismatches: maxMismatches}
	for _, row := range rows {
		comps := row.Components()
		if r.componentLens == nil {
			r.componentLens = make([]int, len(comps))
			for i, c := range comps {
				r.componentLens[i] = len(c)
			}
		}
		r.entries = append(r.entries, resolverEntry{components: comps, sample: row.Sample})
	}
	return r
}

// Resolve returns the sample index for observedBarcode, whose components
// must be joined with '-' exactly as the sample sheet's Barcode field is.
// When more than one sample sheet entry is within maxMismatches, the
// closest unique match wins; a tie, or no match within budget, resolves
// to UnknownSample (spec §2's "assigns unknown bucket when unresolved").
func (r *Resolver) Resolve(observedBarcode string) int {
	observed := strings.Split(observedBarcode, "-")
	if len(observed) != len(r.componentLens) {
		return UnknownSample
	}

	bestSample := UnknownSample
	bestDist := r.maxMismatches + 1
	tied := false

	for _, e := range r.entries {
		total := 0
		ok := true
		for i, comp := range e.components {
			if len(observed[i]) != len(comp) {
				ok = false
				break
			}
			d := util.HammingDistance([]byte(observed[i]), []byte(comp))
			total += d
			if total > r.maxMismatches {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		switch {
		case total < bestDist:
			bestDist = total
			bestSample = e.sample
			tied = false
		case total == bestDist:
			tied = true
		}
	}
	if tied {
		return UnknownSample
	}
	return bestSample
}
