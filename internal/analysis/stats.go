package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// welford accumulates a running mean and sum of squared deviations.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

// std is the sample standard deviation; ok is false for n <= 1.
func (w *welford) std() (float64, bool) {
	if w.n <= 1 {
		return 0, false
	}
	return math.Sqrt(w.m2 / float64(w.n-1)), true
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// nearestRank returns the smallest value with at least p of the data at or
// below it: sorted[ceil(p*n)-1].
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	k := int(math.Ceil(p*float64(n))) - 1
	if k < 0 {
		k = 0
	}
	if k >= n {
		k = n - 1
	}
	return sorted[k]
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := sortedCopy(vals)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// finite returns &v, or nil when v is NaN or infinite.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// lookupColumns resolves names against d, failing on the first unknown one.
func lookupColumns(d *dataset.Dataset, role string, names []string) ([]*dataset.Column, error) {
	cols := make([]*dataset.Column, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			return nil, dataset.Invalid("%s column %q listed twice", role, name)
		}
		seen[name] = true
		c, ok := d.Column(name)
		if !ok {
			return nil, dataset.Invalid("%s column %q not found in %s (columns: %s)",
				role, name, d.Name(), strings.Join(d.Schema().Names(), ", "))
		}
		cols[i] = c
	}
	return cols, nil
}

// numericColumns resolves names, or every numeric column when names is
// empty. Named columns must be numeric.
func numericColumns(d *dataset.Dataset, role string, names []string) ([]*dataset.Column, error) {
	if len(names) == 0 {
		names = d.NumericColumns()
	}
	cols, err := lookupColumns(d, role, names)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if !c.Type().IsNumeric() {
			return nil, dataset.Invalid("%s column %q is %s, want a numeric column", role, c.Name(), c.Type())
		}
	}
	return cols, nil
}

// uniqueName returns name, or name_2, name_3, ... when taken.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		used[name] = true
		return name
	}
	for i := 2; ; i++ {
		cand := name + "_" + strconv.Itoa(i)
		if !used[cand] {
			used[cand] = true
			return cand
		}
	}
}
