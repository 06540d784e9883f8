// Package expr is the predicate tree a LiteTable query is parsed into.
//
// Nodes are immutable once built. Every node can report the columns it reads, evaluate itself
// against a loaded row and render itself back into text that Parse accepts.
package expr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/litetable/litetable-query/internal/litetable"
)

// Expr is a node of a predicate tree. The set of node types is closed.
type Expr interface {
	// Columns returns the sorted, distinct columns the node reads.
	Columns() []string
	// Match evaluates the node against a row. A column missing from the row is null.
	Match(row litetable.Row) (bool, error)
	String() string

	node()
}

// Op is a comparison operator.
type Op uint8

const (
	Eq Op = iota + 1
	Ne
	Lt
	Le
	Gt
	Ge
)

var opText = map[Op]string{Eq: "=", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">="}

func (o Op) String() string {
	if s, ok := opText[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Ordering reports whether the operator needs an ordered comparison.
func (o Op) Ordering() bool {
	return o == Lt || o == Le || o == Gt || o == Ge
}

// holds applies the operator to the result of Value.Compare.
func (o Op) holds(cmp int) bool {
	switch o {
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	}
	return false
}

type (
	// Compare is `column op value`.
	Compare struct {
		Column string
		Op     Op
		Value  litetable.Value
	}

	// Range is `lower <(=) column <(=) upper`.
	Range struct {
		Column         string
		Lower          litetable.Value
		LowerInclusive bool
		Upper          litetable.Value
		UpperInclusive bool
	}

	// In is `column IN (values...)`.
	In struct {
		Column string
		Values []litetable.Value
	}

	IsNull struct {
		Column string
	}

	NotNull struct {
		Column string
	}

	And struct {
		Left, Right Expr
	}

	Or struct {
		Left, Right Expr
	}

	Not struct {
		Child Expr
	}
)

func (Compare) node() {}
func (Range) node()   {}
func (In) node()      {}
func (IsNull) node()  {}
func (NotNull) node() {}
func (And) node()     {}
func (Or) node()      {}
func (Not) node()     {}

func (c Compare) Columns() []string { return []string{c.Column} }
func (r Range) Columns() []string   { return []string{r.Column} }
func (i In) Columns() []string      { return []string{i.Column} }
func (n IsNull) Columns() []string  { return []string{n.Column} }
func (n NotNull) Columns() []string { return []string{n.Column} }
func (a And) Columns() []string     { return merge(a.Left.Columns(), a.Right.Columns()) }
func (o Or) Columns() []string      { return merge(o.Left.Columns(), o.Right.Columns()) }
func (n Not) Columns() []string     { return n.Child.Columns() }

func merge(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}

func (c Compare) Match(row litetable.Row) (bool, error) {
	f, ok := row.Get(c.Column)
	if !ok {
		return false, nil
	}
	switch c.Op {
	case Eq:
		return f.Value.Equal(c.Value), nil
	case Ne:
		return !f.Value.Equal(c.Value), nil
	}
	cmp, err := f.Value.Compare(c.Value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", c, err)
	}
	return c.Op.holds(cmp), nil
}

func (r Range) Match(row litetable.Row) (bool, error) {
	f, ok := row.Get(r.Column)
	if !ok {
		return false, nil
	}
	lo, err := f.Value.Compare(r.Lower)
	if err != nil {
		return false, fmt.Errorf("%s: %w", r, err)
	}
	hi, err := f.Value.Compare(r.Upper)
	if err != nil {
		return false, fmt.Errorf("%s: %w", r, err)
	}
	if lo < 0 || (lo == 0 && !r.LowerInclusive) {
		return false, nil
	}
	return hi < 0 || (hi == 0 && r.UpperInclusive), nil
}

func (i In) Match(row litetable.Row) (bool, error) {
	f, ok := row.Get(i.Column)
	if !ok {
		return false, nil
	}
	for _, v := range i.Values {
		if f.Value.Equal(v) {
			return true, nil
		}
	}
	return false, nil
}

func (n IsNull) Match(row litetable.Row) (bool, error) {
	_, ok := row.Get(n.Column)
	return !ok, nil
}

func (n NotNull) Match(row litetable.Row) (bool, error) {
	_, ok := row.Get(n.Column)
	return ok, nil
}

func (a And) Match(row litetable.Row) (bool, error) {
	ok, err := a.Left.Match(row)
	if err != nil || !ok {
		return false, err
	}
	return a.Right.Match(row)
}

func (o Or) Match(row litetable.Row) (bool, error) {
	ok, err := o.Left.Match(row)
	if err != nil || ok {
		return ok, err
	}
	return o.Right.Match(row)
}

func (n Not) Match(row litetable.Row) (bool, error) {
	ok, err := n.Child.Match(row)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// column renders a column name, quoting it with backticks when it is not a bare identifier or
// collides with a keyword.
func column(name string) string {
	if isIdent(name) && !isKeyword(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (c Compare) String() string {
	return column(c.Column) + " " + c.Op.String() + " " + c.Value.Literal()
}

func (r Range) String() string {
	lo, hi := "<", "<"
	if r.LowerInclusive {
		lo = "<="
	}
	if r.UpperInclusive {
		hi = "<="
	}
	return r.Lower.Literal() + " " + lo + " " + column(r.Column) + " " + hi + " " + r.Upper.Literal()
}

func (i In) String() string {
	lits := make([]string, len(i.Values))
	for n, v := range i.Values {
		lits[n] = v.Literal()
	}
	return column(i.Column) + " IN (" + strings.Join(lits, ", ") + ")"
}

func (n IsNull) String() string  { return column(n.Column) + " IS NULL" }
func (n NotNull) String() string { return column(n.Column) + " IS NOT NULL" }
func (a And) String() string     { return "(" + a.Left.String() + " AND " + a.Right.String() + ")" }
func (o Or) String() string      { return "(" + o.Left.String() + " OR " + o.Right.String() + ")" }
func (n Not) String() string     { return "NOT " + n.Child.String() }
