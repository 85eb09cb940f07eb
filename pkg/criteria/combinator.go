package criteria

import (
	"strconv"
	"strings"

	"tractseg/pkg/segerr"
)

// Kind tags how a criterion's result was produced.
type Kind int

const (
	KindROI Kind = iota
	KindEndpoint
	KindMidpoint
	KindCategory
	KindLength
)

var kindNames = [...]string{"roi", "endpoint", "midpoint", "category", "length"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Criterion is a named, already evaluated result.
type Criterion struct {
	Name   string
	Kind   Kind
	Result Result
}

// Expr is a boolean expression over criteria. Build one with Ref, Not, And
// and Or, and evaluate it with Combine.
type Expr interface {
	eval(n int) ([]bool, error)
	String() string
}

type refExpr struct{ c Criterion }

type notExpr struct{ e Expr }

type andExpr struct{ es []Expr }

type orExpr struct{ es []Expr }

// Ref wraps a criterion as an expression leaf.
func Ref(c Criterion) Expr { return refExpr{c: c} }

// Not negates e. The underlying criterion is not re-evaluated.
func Not(e Expr) Expr { return notExpr{e: e} }

// And is true where every operand is true. With no operands it is true
// everywhere.
func And(es ...Expr) Expr { return andExpr{es: es} }

// Or is true where any operand is true. With no operands it is false
// everywhere.
func Or(es ...Expr) Expr { return orExpr{es: es} }

func (r refExpr) eval(n int) ([]bool, error) {
	if r.c.Result.Len() != n {
		return nil, &segerr.LengthMismatchError{Name: r.c.Name, Got: r.c.Result.Len(), Want: n}
	}
	return r.c.Result.Bools(), nil
}

func (r refExpr) String() string { return r.c.Name }

func (x notExpr) eval(n int) ([]bool, error) {
	bits, err := x.e.eval(n)
	if err != nil {
		return nil, err
	}
	for i := range bits {
		bits[i] = !bits[i]
	}
	return bits, nil
}

func (x notExpr) String() string { return "!" + x.e.String() }

func (x andExpr) eval(n int) ([]bool, error) {
	return fold(x.es, n, true, func(a, b bool) bool { return a && b })
}

func (x andExpr) String() string { return join(x.es, " & ") }

func (x orExpr) eval(n int) ([]bool, error) {
	return fold(x.es, n, false, func(a, b bool) bool { return a || b })
}

func (x orExpr) String() string { return join(x.es, " | ") }

func fold(es []Expr, n int, identity bool, op func(a, b bool) bool) ([]bool, error) {
	acc := Fill(n, identity).bits
	for _, e := range es {
		bits, err := e.eval(n)
		if err != nil {
			return nil, err
		}
		for i := range acc {
			acc[i] = op(acc[i], bits[i])
		}
	}
	return acc, nil
}

func join(es []Expr, sep string) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Combine evaluates e over a tractogram of n streamlines. Every leaf must
// hold exactly n entries.
func Combine(e Expr, n int) (Result, error) {
	if e == nil {
		return Result{}, segerr.New("Combine", segerr.ErrInvalidArgument, "nil expression")
	}
	bits, err := e.eval(n)
	if err != nil {
		return Result{}, err
	}
	return Result{bits: bits}, nil
}

// All is the conjunction of rs, the usual way criteria are combined.
func All(n int, rs ...Result) (Result, error) {
	es := make([]Expr, len(rs))
	for i, r := range rs {
		es[i] = Ref(Criterion{Name: "#" + strconv.Itoa(i), Result: r})
	}
	return Combine(And(es...), n)
}
