// Package script implements the small expression language accepted by
// scripted value sources: numeric literals, the bound raw value `_value`,
// document accessors `doc['field'].value` and `doc['field'].values`,
// arithmetic with long/double semantics, and C-style numeric casts.
package script

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// Doc gives the evaluator read access to a document's numeric
// field values.
type Doc interface {
	FieldValues(name string) []float64
}

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "Float", Pattern: `\d+\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `'[^']*'`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `\[|\]|\(|\)|\.|\+|-|\*|/|%`},
})

var parser = participle.MustBuild[program](
	participle.Lexer(scriptLexer),
	participle.UseLookahead(4),
)

type program struct {
	Expr *expr `parser:"@@"`
}

type expr struct {
	Left *term     `parser:"@@"`
	Ops  []*termOp `parser:"@@*"`
}

type termOp struct {
	Op   string `parser:"@('+' | '-')"`
	Term *term  `parser:"@@"`
}

type term struct {
	Left *unary     `parser:"@@"`
	Ops  []*unaryOp `parser:"@@*"`
}

type unaryOp struct {
	Op    string `parser:"@('*' | '/' | '%')"`
	Unary *unary `parser:"@@"`
}

type unary struct {
	Cast    *cast    `parser:"@@"`
	Primary *primary `parser:"| @@"`
}

type cast struct {
	Type  string `parser:"'(' @('long' | 'double') ')'"`
	Unary *unary `parser:"@@"`
}

type primary struct {
	Float *float64 `parser:"@Float"`
	Int   *int64   `parser:"| @Int"`
	Doc   *docRef  `parser:"| @@"`
	Value bool     `parser:"| @'_value'"`
	Group *expr    `parser:"| '(' @@ ')'"`
}

type docRef struct {
	Field string `parser:"'doc' '[' @String ']'"`
	Prop  string `parser:"'.' @('value' | 'values')"`
}

func (d *docRef) name() string {
	return strings.Trim(d.Field, "'")
}

// Script is a compiled expression, safe for concurrent evaluation.
type Script struct {
	source    string
	root      *expr
	seq       *docRef
	usesValue bool
	fields    []string
}

// Compile parses an expression into an evaluable Script.
//
// A `doc['field'].values` accessor yields the document's whole value
// sequence and is therefore only valid as the entire expression, not
// as an arithmetic operand.
func Compile(source string) (*Script, error) {
	prog, err := parser.ParseString("", source)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid script %q", source)
	}

	s := &Script{
		source: source,
		root:   prog.Expr,
	}

	if ref := sequenceRef(prog.Expr); ref != nil {
		s.seq = ref
		s.fields = []string{ref.name()}
		return s, nil
	}

	if err := inspect(prog.Expr, s); err != nil {
		return nil, errors.Wrapf(err, "invalid script %q", source)
	}

	return s, nil
}

// MustCompile is Compile, panicking on error.
func MustCompile(source string) *Script {
	s, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return s
}

// Source returns the original expression text.
func (s *Script) Source() string {
	return s.source
}

// UsesValue reports whether the expression references `_value` and
// therefore needs a raw value bound per evaluation.
func (s *Script) UsesValue() bool {
	return s.usesValue
}

// Fields returns the document fields the expression reads.
func (s *Script) Fields() []string {
	return s.fields
}

// sequenceRef returns the doc accessor when the expression is exactly
// a bare `doc['field'].values`, without surrounding arithmetic.
func sequenceRef(e *expr) *docRef {
	if len(e.Ops) != 0 || len(e.Left.Ops) != 0 {
		return nil
	}
	p := e.Left.Left.Primary
	if p == nil {
		return nil
	}
	if p.Group != nil {
		return sequenceRef(p.Group)
	}
	if p.Doc != nil && p.Doc.Prop == "values" {
		return p.Doc
	}
	return nil
}

func inspect(e *expr, s *Script) error {
	if err := inspectTerm(e.Left, s); err != nil {
		return err
	}
	for _, op := range e.Ops {
		if err := inspectTerm(op.Term, s); err != nil {
			return err
		}
	}
	return nil
}

func inspectTerm(t *term, s *Script) error {
	if err := inspectUnary(t.Left, s); err != nil {
		return err
	}
	for _, op := range t.Ops {
		if err := inspectUnary(op.Unary, s); err != nil {
			return err
		}
	}
	return nil
}

func inspectUnary(u *unary, s *Script) error {
	if u.Cast != nil {
		return inspectUnary(u.Cast.Unary, s)
	}
	p := u.Primary
	switch {
	case p.Value:
		s.usesValue = true
	case p.Doc != nil:
		if p.Doc.Prop == "values" {
			return errors.New("doc[...].values cannot be used as an arithmetic operand")
		}
		s.fields = appendField(s.fields, p.Doc.name())
	case p.Group != nil:
		return inspect(p.Group, s)
	}
	return nil
}

func appendField(fields []string, name string) []string {
	for _, f := range fields {
		if f == name {
			return fields
		}
	}
	return append(fields, name)
}
