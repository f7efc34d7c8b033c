package script

import (
	"math"

	"github.com/pkg/errors"
)

// errMissing aborts evaluation when a referenced document field has no
// values; the script then contributes nothing for that document.
var errMissing = errors.New("missing field value")

// number carries a value through evaluation together with its numeric
// kind. Long arithmetic truncates on division, double arithmetic does
// not; a single double operand promotes the whole operation.
type number struct {
	f      float64
	i      int64
	isLong bool
}

func long(i int64) number     { return number{i: i, isLong: true} }
func double(f float64) number { return number{f: f} }

func (n number) float() float64 {
	if n.isLong {
		return float64(n.i)
	}
	return n.f
}

type env struct {
	doc   Doc
	bound *float64
}

// Eval evaluates a document script, yielding zero or more values for
// the document. Expressions reading a field the document does not
// have yield nothing.
func (s *Script) Eval(doc Doc) ([]float64, error) {
	if s.usesValue {
		return nil, errors.Errorf("script %q references _value and must be evaluated per raw value", s.source)
	}
	return s.eval(env{doc: doc})
}

// EvalValue evaluates a value script with the raw value bound as
// `_value`.
func (s *Script) EvalValue(doc Doc, value float64) ([]float64, error) {
	return s.eval(env{doc: doc, bound: &value})
}

func (s *Script) eval(e env) ([]float64, error) {
	if s.seq != nil {
		if e.doc == nil {
			return nil, nil
		}
		values := e.doc.FieldValues(s.seq.name())
		if len(values) == 0 {
			return nil, nil
		}
		out := make([]float64, len(values))
		copy(out, values)
		return out, nil
	}

	n, err := evalExpr(s.root, e)
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "script %q", s.source)
	}
	return []float64{n.float()}, nil
}

func evalExpr(ex *expr, e env) (number, error) {
	n, err := evalTerm(ex.Left, e)
	if err != nil {
		return number{}, err
	}
	for _, op := range ex.Ops {
		rhs, err := evalTerm(op.Term, e)
		if err != nil {
			return number{}, err
		}
		n, err = apply(op.Op, n, rhs)
		if err != nil {
			return number{}, err
		}
	}
	return n, nil
}

func evalTerm(t *term, e env) (number, error) {
	n, err := evalUnary(t.Left, e)
	if err != nil {
		return number{}, err
	}
	for _, op := range t.Ops {
		rhs, err := evalUnary(op.Unary, e)
		if err != nil {
			return number{}, err
		}
		n, err = apply(op.Op, n, rhs)
		if err != nil {
			return number{}, err
		}
	}
	return n, nil
}

func evalUnary(u *unary, e env) (number, error) {
	if u.Cast != nil {
		n, err := evalUnary(u.Cast.Unary, e)
		if err != nil {
			return number{}, err
		}
		if u.Cast.Type == "long" {
			if n.isLong {
				return n, nil
			}
			return long(int64(n.f)), nil
		}
		return double(n.float()), nil
	}

	p := u.Primary
	switch {
	case p.Float != nil:
		return double(*p.Float), nil
	case p.Int != nil:
		return long(*p.Int), nil
	case p.Value:
		if e.bound == nil {
			return number{}, errors.New("no raw value bound for _value")
		}
		return double(*e.bound), nil
	case p.Doc != nil:
		if e.doc == nil {
			return number{}, errMissing
		}
		values := e.doc.FieldValues(p.Doc.name())
		if len(values) == 0 {
			return number{}, errMissing
		}
		return double(values[0]), nil
	default:
		return evalExpr(p.Group, e)
	}
}

func apply(op string, a, b number) (number, error) {
	if a.isLong && b.isLong {
		switch op {
		case "+":
			return long(a.i + b.i), nil
		case "-":
			return long(a.i - b.i), nil
		case "*":
			return long(a.i * b.i), nil
		case "/":
			if b.i == 0 {
				return number{}, errors.New("integer division by zero")
			}
			return long(a.i / b.i), nil
		default:
			if b.i == 0 {
				return number{}, errors.New("integer division by zero")
			}
			return long(a.i % b.i), nil
		}
	}

	af, bf := a.float(), b.float()
	switch op {
	case "+":
		return double(af + bf), nil
	case "-":
		return double(af - bf), nil
	case "*":
		return double(af * bf), nil
	case "/":
		return double(af / bf), nil
	default:
		return double(math.Mod(af, bf)), nil
	}
}
