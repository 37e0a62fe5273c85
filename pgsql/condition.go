package pgsql

import (
	"fmt"
	"strings"
)

// Cond is a single boolean condition over a column reference. Conditions are
// built with the package constructors (EQ, In, LT, Or, ...) and compiled into
// a parameterized WHERE clause by CompileWhere.
type Cond interface {
	cond()
}

type (
	eqCond      struct{ col string; v any }
	neqCond     struct{ col string; v any }
	isNullCond  struct{ col string }
	notNullCond struct{ col string }
	inCond      struct {
		col string
		vs  []any
	}
	likeCond struct {
		col  string
		v    string
		fold bool // ILIKE when true
	}
	dateCond  struct{ col string; v any }
	rangeCond struct {
		col string
		op  string
		v   any
	}
	notCond struct{ c Cond }
	orCond  struct{ cs []Cond }
)

func (eqCond) cond()      {}
func (neqCond) cond()     {}
func (isNullCond) cond()  {}
func (notNullCond) cond() {}
func (inCond) cond()      {}
func (likeCond) cond()    {}
func (dateCond) cond()    {}
func (rangeCond) cond()   {}
func (notCond) cond()     {}
func (orCond) cond()      {}

// EQ returns an equality condition. A nil value compiles to IS NULL.
func EQ(col string, v any) Cond { return eqCond{col: col, v: v} }

// NEQ returns an inequality condition. A nil value compiles to IS NOT NULL.
func NEQ(col string, v any) Cond { return neqCond{col: col, v: v} }

// IsNull returns an IS NULL condition.
func IsNull(col string) Cond { return isNullCond{col: col} }

// NotNull returns an IS NOT NULL condition.
func NotNull(col string) Cond { return notNullCond{col: col} }

// In returns a membership condition with one placeholder per value.
// Building with an empty value list fails with ErrEmptyIn.
func In(col string, vs ...any) Cond { return inCond{col: col, vs: vs} }

// Like returns a substring match condition. The value is bound as %v%.
func Like(col, v string) Cond { return likeCond{col: col, v: v} }

// ILike returns a case-insensitive substring match condition.
func ILike(col, v string) Cond { return likeCond{col: col, v: v, fold: true} }

// DateEQ returns a DATE(col) = value condition.
func DateEQ(col string, v any) Cond { return dateCond{col: col, v: v} }

// LT returns a col < value condition.
func LT(col string, v any) Cond { return rangeCond{col: col, op: "<", v: v} }

// LTE returns a col <= value condition.
func LTE(col string, v any) Cond { return rangeCond{col: col, op: "<=", v: v} }

// GT returns a col > value condition.
func GT(col string, v any) Cond { return rangeCond{col: col, op: ">", v: v} }

// GTE returns a col >= value condition.
func GTE(col string, v any) Cond { return rangeCond{col: col, op: ">=", v: v} }

// Not negates the given condition by wrapping it in NOT (...).
func Not(c Cond) Cond { return notCond{c: c} }

// Or groups conditions into the statement's OR-group. All Or conditions in a
// predicate are flattened into a single group combined as
// (AND-group) OR (OR-group). Or groups cannot be nested.
func Or(cs ...Cond) Cond { return orCond{cs: cs} }

// compiler accumulates parameter values and numbers placeholders. The
// placeholder index continues from the seeded values so UPDATE statements can
// bind SET parameters first.
type compiler struct {
	args []any
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

// qualify resolves a column reference. Bare names are qualified with the
// alias; pre-qualified names pass through verbatim.
func qualify(col, alias string) string {
	if alias != "" && !strings.Contains(col, ".") {
		return alias + "." + col
	}
	return col
}

func (c *compiler) fragment(cn Cond, alias string) (string, error) {
	switch cn := cn.(type) {
	case eqCond:
		if cn.v == nil {
			return qualify(cn.col, alias) + " IS NULL", nil
		}
		return qualify(cn.col, alias) + " = " + c.bind(cn.v), nil
	case neqCond:
		if cn.v == nil {
			return qualify(cn.col, alias) + " IS NOT NULL", nil
		}
		return qualify(cn.col, alias) + " != " + c.bind(cn.v), nil
	case isNullCond:
		return qualify(cn.col, alias) + " IS NULL", nil
	case notNullCond:
		return qualify(cn.col, alias) + " IS NOT NULL", nil
	case inCond:
		if len(cn.vs) == 0 {
			return "", ErrEmptyIn
		}
		ph := make([]string, len(cn.vs))
		for i, v := range cn.vs {
			ph[i] = c.bind(v)
		}
		return qualify(cn.col, alias) + " IN (" + strings.Join(ph, ", ") + ")", nil
	case likeCond:
		op := "LIKE"
		if cn.fold {
			op = "ILIKE"
		}
		return qualify(cn.col, alias) + " " + op + " " + c.bind("%"+cn.v+"%"), nil
	case dateCond:
		return "DATE(" + qualify(cn.col, alias) + ") = " + c.bind(cn.v), nil
	case rangeCond:
		return qualify(cn.col, alias) + " " + cn.op + " " + c.bind(cn.v), nil
	case notCond:
		if _, ok := cn.c.(orCond); ok {
			return "", ErrNestedOr
		}
		frag, err := c.fragment(cn.c, alias)
		if err != nil {
			return "", err
		}
		return "NOT (" + frag + ")", nil
	case orCond:
		return "", ErrNestedOr
	default:
		return "", fmt.Errorf("pgsql: unknown condition type %T", cn)
	}
}

// CompileWhere renders the predicate into a WHERE clause with numbered
// placeholders. The seed values are copied, not mutated; placeholder
// numbering starts after them and the returned args contain seed values
// followed by the condition values in the order their placeholders appear.
// Conditions outside Or groups form the AND-group; Or group members form the
// OR-group. When both groups exist the clause is WHERE (AND..) OR (OR..).
// An empty predicate yields an empty clause.
func CompileWhere(conds []Cond, seed []any, alias string) (string, []any, error) {
	args := make([]any, len(seed), len(seed)+len(conds))
	copy(args, seed)
	if len(conds) == 0 {
		return "", args, nil
	}
	c := &compiler{args: args}
	var ands, ors []string
	// Two passes keep the textual placeholder order: the AND-group renders
	// first, so its values must bind first even when an Or group is declared
	// ahead of other conditions.
	for _, cn := range conds {
		if _, ok := cn.(orCond); ok {
			continue
		}
		frag, err := c.fragment(cn, alias)
		if err != nil {
			return "", nil, err
		}
		ands = append(ands, frag)
	}
	for _, cn := range conds {
		or, ok := cn.(orCond)
		if !ok {
			continue
		}
		for _, sub := range or.cs {
			frag, err := c.fragment(sub, alias)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, frag)
		}
	}
	if len(ands) == 0 && len(ors) == 0 {
		return "", c.args, nil
	}
	var b strings.Builder
	b.WriteString("WHERE ")
	if len(ands) > 0 {
		b.WriteString("(" + strings.Join(ands, " AND ") + ")")
	}
	if len(ors) > 0 {
		if len(ands) > 0 {
			b.WriteString(" OR ")
		}
		b.WriteString("(" + strings.Join(ors, " OR ") + ")")
	}
	return b.String(), c.args, nil
}
