package connectivity

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"tractseg/pkg/atlas"
	"tractseg/pkg/criteria"
	"tractseg/pkg/segerr"
)

// Pair keys a bucket by the labels of a streamline's first and last node.
type Pair struct {
	A, B int
}

// Sorted returns the pair with the smaller label first.
func (p Pair) Sorted() Pair {
	if p.B < p.A {
		return Pair{A: p.B, B: p.A}
	}
	return p
}

// Mapping is a label-pair to streamline-index grouping plus its count
// matrix. It is immutable once built.
type Mapping struct {
	symmetric bool
	n         int
	labels    []int
	index     map[int]int
	buckets   map[Pair][]int
	counts    [][]int
}

func newMapping(labels []int, symmetric bool, n int) *Mapping {
	m := &Mapping{
		symmetric: symmetric,
		n:         n,
		labels:    labels,
		index:     make(map[int]int, len(labels)),
		buckets:   make(map[Pair][]int),
		counts:    make([][]int, len(labels)),
	}
	for i, l := range labels {
		m.index[l] = i
		m.counts[i] = make([]int, len(labels))
	}
	return m
}

// add appends streamline i to bucket p. Indices must arrive in ascending order.
func (m *Mapping) add(p Pair, i int) {
	m.buckets[p] = append(m.buckets[p], i)
	m.counts[m.index[p.A]][m.index[p.B]]++
}

func (m *Mapping) key(a, b int) Pair {
	p := Pair{A: a, B: b}
	if m.symmetric {
		return p.Sorted()
	}
	return p
}

// Symmetric reports whether (A,B) and (B,A) share a bucket.
func (m *Mapping) Symmetric() bool { return m.symmetric }

// Len returns the number of streamlines mapped.
func (m *Mapping) Len() int { return m.n }

// Bucket returns the ascending streamline indices connecting a and b.
func (m *Mapping) Bucket(a, b int) []int {
	src := m.buckets[m.key(a, b)]
	out := make([]int, len(src))
	copy(out, src)
	return out
}

// Count returns the number of streamlines connecting a and b.
func (m *Mapping) Count(a, b int) int {
	return len(m.buckets[m.key(a, b)])
}

// Pairs returns the non-empty buckets in label order.
func (m *Mapping) Pairs() []Pair {
	out := make([]Pair, 0, len(m.buckets))
	for p := range m.buckets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Labels returns the matrix axis: Unlabeled followed by the mapped labels.
func (m *Mapping) Labels() []int {
	out := make([]int, len(m.labels))
	copy(out, m.labels)
	return out
}

// Names translates the matrix axis through lut.
func (m *Mapping) Names(lut atlas.LookupTable) []string {
	out := make([]string, len(m.labels))
	for i, l := range m.labels {
		out[i] = lut.Name(l)
	}
	return out
}

// Matrix returns a copy of the count matrix indexed like Labels. Atlas labels
// are non-negative and Unlabeled sorts first, so in symmetric mode only the
// upper triangle is populated. The cells sum to Len
// for a mapping returned by Map, and to the selection size after Mask.
func (m *Mapping) Matrix() [][]int {
	out := make([][]int, len(m.counts))
	for i, row := range m.counts {
		out[i] = make([]int, len(row))
		copy(out[i], row)
	}
	return out
}

// Dense returns the count matrix as a gonum matrix.
func (m *Mapping) Dense() *mat.Dense {
	k := len(m.labels)
	d := mat.NewDense(k, k, nil)
	for i, row := range m.counts {
		for j, c := range row {
			d.Set(i, j, float64(c))
		}
	}
	return d
}

// Total returns the sum of the count matrix.
func (m *Mapping) Total() int {
	total := 0
	for _, row := range m.counts {
		for _, c := range row {
			total += c
		}
	}
	return total
}

// Category returns the criterion vector selecting the streamlines in any
// of the given buckets.
func (m *Mapping) Category(pairs ...Pair) criteria.Result {
	bits := make([]bool, m.n)
	for _, p := range pairs {
		for _, i := range m.buckets[m.key(p.A, p.B)] {
			bits[i] = true
		}
	}
	return criteria.FromBools(bits)
}

// Mask returns a mapping holding only the streamlines selected by keep.
// Indices keep referring to the original tractogram.
func (m *Mapping) Mask(keep criteria.Result) (*Mapping, error) {
	if keep.Len() != m.n {
		return nil, &segerr.LengthMismatchError{Name: "mask", Got: keep.Len(), Want: m.n}
	}
	out := newMapping(m.labels, m.symmetric, m.n)
	byIndex := make([]Pair, m.n)
	assigned := make([]bool, m.n)
	for p, idxs := range m.buckets {
		for _, i := range idxs {
			byIndex[i] = p
			assigned[i] = true
		}
	}
	for i := 0; i < m.n; i++ {
		if assigned[i] && keep.At(i) {
			out.add(byIndex[i], i)
		}
	}
	return out, nil
}
