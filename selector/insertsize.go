package selector

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Orientation models the relative strand/order arrangement of a pair's
// two fragments (spec §4.4 "two most probable orientation models").
type Orientation int

const (
	// OrientationFR is "forward-reverse": mate 1 forward, mate 2 reverse,
	// mate 1 upstream of mate 2 — the usual short-insert paired-end case.
	OrientationFR Orientation = iota
	OrientationRF
	OrientationFF
)

// insertSizePhase1Cap bounds how many confidently-paired templates Phase
// 1 collects before fitting a model (spec §4.4 "up to a bounded number").
const insertSizePhase1Cap = 10000

// TemplateLengthEstimator implements the per-barcode two-phase estimator
// of spec §4.4: Phase 1 collects confidently-paired template lengths from
// a prefix of the tile to estimate median and robust stddev and to pick
// the two most probable orientation models; Phase 2 scores subsequent
// templates against the fitted model. gonum/stat supplies the median and
// quantile primitives (matching kortschak-ins's use of the same package
// for the same purpose).
type TemplateLengthEstimator struct {
	defaultLength int
	defaultStddev float64

	lengths     []float64
	orientCount map[Orientation]int

	median   float64
	stddev   float64
	primary  Orientation
	secondary Orientation
	fitted   bool
}

// NewTemplateLengthEstimator seeds an estimator with the user-supplied
// default used until Phase 1 has collected enough data (spec §4.4 "when
// insufficient, the user-supplied default is used").
func NewTemplateLengthEstimator(defaultLength int, defaultStddev float64) *TemplateLengthEstimator {
	return &TemplateLengthEstimator{
		defaultLength: defaultLength,
		defaultStddev: defaultStddev,
		orientCount:   map[Orientation]int{},
	}
}

// Observe feeds one confidently-paired template's observed length and
// orientation into Phase 1. Once the collector reaches
// insertSizePhase1Cap observations, the model is fit and further calls
// are no-ops: Phase 2 begins implicitly.
func (e *TemplateLengthEstimator) Observe(length int, orientation Orientation) {
	if e.fitted {
		return
	}
	e.lengths = append(e.lengths, float64(length))
	e.orientCount[orientation]++
	if len(e.lengths) >= insertSizePhase1Cap {
		e.fit()
	}
}

// Finalize forces a fit from whatever was collected, used at the end of
// a tile's prefix scan even if insertSizePhase1Cap was never reached.
func (e *TemplateLengthEstimator) Finalize() {
	if !e.fitted && len(e.lengths) > 0 {
		e.fit()
	}
}

func (e *TemplateLengthEstimator) fit() {
	sorted := append([]float64(nil), e.lengths...)
	sort.Float64s(sorted)

	e.median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	// Robust stddev via the interquartile range, scaled to approximate a
	// normal distribution's sigma (IQR ~= 1.349 sigma).
	iqr := q3 - q1
	e.stddev = iqr / 1.349
	if e.stddev <= 0 {
		e.stddev = e.defaultStddev
	}

	e.primary, e.secondary = topTwoOrientations(e.orientCount)
	e.fitted = true
}

func topTwoOrientations(counts map[Orientation]int) (Orientation, Orientation) {
	type kv struct {
		o Orientation
		n int
	}
	var kvs []kv
	for o, n := range counts {
		kvs = append(kvs, kv{o, n})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].n > kvs[j].n })
	primary, secondary := OrientationFR, OrientationRF
	if len(kvs) > 0 {
		primary = kvs[0].o
	}
	if len(kvs) > 1 {
		secondary = kvs[1].o
	}
	return primary, secondary
}

// Model returns the current (median, stddev) estimate, falling back to
// the configured default before Phase 1 has fit a model.
func (e *TemplateLengthEstimator) Model() (median, stddev float64) {
	if !e.fitted {
		return float64(e.defaultLength), e.defaultStddev
	}
	return e.median, e.stddev
}

// LikelyOrientation reports whether orientation is one of the two
// orientations Phase 1 found most probable; an unlikely orientation
// contributes a larger score penalty in Phase 2 template scoring.
func (e *TemplateLengthEstimator) LikelyOrientation(o Orientation) bool {
	if !e.fitted {
		return o == OrientationFR
	}
	return o == e.primary || o == e.secondary
}

// ScoreLength returns a Phase 2 score contribution for an observed
// template length: the number of estimated standard deviations it falls
// from the median, negated so closer-to-median scores higher.
func (e *TemplateLengthEstimator) ScoreLength(length int) float64 {
	median, stddev := e.Model()
	if stddev <= 0 {
		stddev = 1
	}
	z := (float64(length) - median) / stddev
	if z < 0 {
		z = -z
	}
	return -z
}
