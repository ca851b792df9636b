package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// CorrelationPair is one off-diagonal entry of the matrix.
type CorrelationPair struct {
	A string   `json:"a"`
	B string   `json:"b"`
	R *float64 `json:"r"`
	N int      `json:"n"`
}

// CorrelationMatrix holds pairwise Pearson coefficients. Values[i][j] is
// null when either column has zero variance over the rows where both are
// present, or when fewer than two such rows exist. The diagonal is 1.
type CorrelationMatrix struct {
	Name    string            `json:"name"`
	Columns []string          `json:"columns"`
	Values  [][]*float64      `json:"values"`
	Pairs   []CorrelationPair `json:"pairs"`
	Notes   []string          `json:"notes,omitempty"`
}

// pairAcc is a one-pass co-moment accumulator over rows where both
// columns are present.
type pairAcc struct {
	n            float64
	meanX, meanY float64
	m2X, m2Y     float64
	cXY          float64
}

func (p *pairAcc) add(x, y float64) {
	p.n++
	dx := x - p.meanX
	p.meanX += dx / p.n
	dy := y - p.meanY
	p.meanY += dy / p.n
	p.m2X += dx * (x - p.meanX)
	p.m2Y += dy * (y - p.meanY)
	p.cXY += dx * (y - p.meanY)
}

func (p *pairAcc) r() *float64 {
	if p.n < 2 || p.m2X == 0 || p.m2Y == 0 {
		return nil
	}
	r := p.cXY / math.Sqrt(p.m2X*p.m2Y)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return finite(r)
}

// Correlation computes Pearson coefficients between the named numeric
// columns, or all numeric columns when none are named, using pairwise
// complete observations.
func Correlation(d *dataset.Dataset, columns []string) (*CorrelationMatrix, error) {
	if len(columns) == 1 {
		return nil, dataset.Invalid("correlation needs at least two columns, got %q", columns[0])
	}
	cols, err := numericColumns(d, "correlation", columns)
	if err != nil {
		return nil, err
	}
	n := len(cols)
	m := &CorrelationMatrix{Name: d.Name(), Columns: make([]string, n), Values: make([][]*float64, n), Pairs: []CorrelationPair{}}
	if n < 2 {
		m.Notes = append(m.Notes, fmt.Sprintf("fewer than two numeric columns (%d)", n))
	}
	data := make([][]float64, n)
	valid := make([][]bool, n)
	for i, c := range cols {
		m.Columns[i] = c.Name()
		data[i] = make([]float64, c.Len())
		valid[i] = make([]bool, c.Len())
		vals, rows := c.Floats()
		for k, r := range rows {
			data[i][r] = vals[k]
			valid[i][r] = true
		}
	}
	one := 1.0
	for i := range m.Values {
		m.Values[i] = make([]*float64, n)
		m.Values[i][i] = &one
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var acc pairAcc
			for r := 0; r < d.NumRows(); r++ {
				if valid[i][r] && valid[j][r] {
					acc.add(data[i][r], data[j][r])
				}
			}
			r := acc.r()
			m.Values[i][j], m.Values[j][i] = r, r
			m.Pairs = append(m.Pairs, CorrelationPair{A: m.Columns[i], B: m.Columns[j], R: r, N: int(acc.n)})
			if r == nil {
				m.Notes = append(m.Notes, fmt.Sprintf("%s ~ %s: undefined (zero variance or fewer than 2 paired values)", m.Columns[i], m.Columns[j]))
			}
		}
	}
	sort.SliceStable(m.Pairs, func(i, j int) bool {
		ri, rj := m.Pairs[i].R, m.Pairs[j].R
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		}
		return math.Abs(*ri) > math.Abs(*rj)
	})
	return m, nil
}

// Markdown lists pairs ranked by |r| in the CLI text layout.
func (m *CorrelationMatrix) Markdown() string {
	var b strings.Builder
	b.WriteString("[CORRELATIONS]\n")
	if m.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", m.Name))
	}
	b.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(m.Columns, ", ")))
	for _, p := range m.Pairs {
		if p.R == nil {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=n/a (n=%d)\n", p.A, p.B, p.N))
			continue
		}
		b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, *p.R, p.N))
	}
	return b.String()
}
