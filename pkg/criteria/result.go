// Package criteria decides, per streamline, whether a tractogram satisfies
// spatial criteria against ROIs, and combines those decisions into a final
// inclusion vector.
package criteria

// Result is an immutable boolean vector with one entry per streamline.
type Result struct {
	bits []bool
}

// FromBools returns a Result holding a copy of bits.
func FromBools(bits []bool) Result {
	out := make([]bool, len(bits))
	copy(out, bits)
	return Result{bits: out}
}

// Fill returns a Result of length n with every entry set to v.
func Fill(n int, v bool) Result {
	out := make([]bool, n)
	if v {
		for i := range out {
			out[i] = true
		}
	}
	return Result{bits: out}
}

// Len returns the number of entries.
func (r Result) Len() int { return len(r.bits) }

// At returns entry i.
func (r Result) At(i int) bool { return r.bits[i] }

// Count returns the number of true entries.
func (r Result) Count() int {
	n := 0
	for _, b := range r.bits {
		if b {
			n++
		}
	}
	return n
}

// Indices returns the ascending indices of the true entries.
func (r Result) Indices() []int {
	out := make([]int, 0, r.Count())
	for i, b := range r.bits {
		if b {
			out = append(out, i)
		}
	}
	return out
}

// Not returns the complement.
func (r Result) Not() Result {
	out := make([]bool, len(r.bits))
	for i, b := range r.bits {
		out[i] = !b
	}
	return Result{bits: out}
}

// Bools returns a copy of the entries.
func (r Result) Bools() []bool {
	out := make([]bool, len(r.bits))
	copy(out, r.bits)
	return out
}
