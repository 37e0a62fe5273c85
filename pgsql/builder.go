// Package pgsql builds parameterized PostgreSQL statements. Statements are
// assembled as structured values (Selector, Inserter, Updater, Deleter) and
// rendered once by Build into SQL text plus positionally ordered arguments;
// nothing in this package touches a connection.
package pgsql

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores,
// dots for schema.name).
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidIdentifier reports whether s can be used as a table or database name.
func ValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// JoinKind selects the join type. The zero value renders as INNER.
type JoinKind string

// Supported join kinds.
const (
	InnerJoin JoinKind = "INNER"
	LeftJoin  JoinKind = "LEFT"
	RightJoin JoinKind = "RIGHT"
)

// Join describes one joined table. On maps local columns to remote columns;
// local names without a dot are qualified with the main table alias, remote
// names are always qualified with the join alias. An empty Alias is
// auto-generated from the table name.
type Join struct {
	Table string
	Alias string
	On    map[string]string
	Kind  JoinKind
}

// Direction orders a column ascending or descending.
type Direction string

// Sort directions.
const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is one ORDER BY term. An empty Direction renders as ASC.
type Order struct {
	Column    string
	Direction Direction
}

// aliasSet tracks aliases already claimed within one statement so the main
// table and all joins stay unambiguous.
type aliasSet map[string]struct{}

func (s aliasSet) add(alias string) {
	s[alias] = struct{}{}
}

// derive builds an alias from the table name by taking the first character
// of each underscore-separated segment (user_accounts -> ua), appending an
// increasing numeric suffix on collision.
func (s aliasSet) derive(table string) string {
	name := strings.TrimLeft(table, "_")
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part != "" {
			b.WriteByte(part[0])
		}
	}
	base := b.String()
	if base == "" {
		base = "t"
	}
	alias := base
	for i := 1; ; i++ {
		if _, ok := s[alias]; !ok {
			break
		}
		alias = base + strconv.Itoa(i)
	}
	s.add(alias)
	return alias
}

// Selector builds SELECT statements.
type Selector struct {
	table    string
	alias    string
	columns  map[string]bool
	joins    []Join
	where    []Cond
	orders   []Order
	limit    int
	offset   int
	expanded map[string][]string // join alias -> projected columns
}

// Select returns a SELECT builder for the given table.
func Select(table string) *Selector {
	return &Selector{table: table, limit: -1, offset: -1}
}

// As sets an explicit alias for the main table.
func (s *Selector) As(alias string) *Selector {
	s.alias = alias
	return s
}

// Columns sets the projection as a column -> include-flag mapping. Keys may
// be bare names (qualified with the main alias), alias-qualified names
// (re-aliased as joinalias_column), or carry an explicit " AS " suffix.
// Without a projection the statement selects mainalias.*.
func (s *Selector) Columns(cols map[string]bool) *Selector {
	s.columns = cols
	return s
}

// Join appends joined tables.
func (s *Selector) Join(joins ...Join) *Selector {
	s.joins = append(s.joins, joins...)
	return s
}

// Where appends conditions to the statement predicate.
func (s *Selector) Where(conds ...Cond) *Selector {
	s.where = append(s.where, conds...)
	return s
}

// OrderBy appends ORDER BY terms. Bare column names are qualified with the
// main alias.
func (s *Selector) OrderBy(orders ...Order) *Selector {
	s.orders = append(s.orders, orders...)
	return s
}

// Limit sets the LIMIT clause. Negative values leave it out.
func (s *Selector) Limit(n int) *Selector {
	s.limit = n
	return s
}

// Offset sets the OFFSET clause. Negative values leave it out.
func (s *Selector) Offset(n int) *Selector {
	s.offset = n
	return s
}

// HasColumns reports whether an explicit projection was set.
func (s *Selector) HasColumns() bool {
	return len(s.columns) > 0
}

// ExpandJoin records the column names to project for a joined table when no
// explicit projection is set. Each column renders as alias.col AS alias_col.
func (s *Selector) ExpandJoin(alias string, columns ...string) *Selector {
	if s.expanded == nil {
		s.expanded = make(map[string][]string)
	}
	s.expanded[alias] = columns
	return s
}

// ResolvedJoins returns the joins with the aliases they will render with.
// Alias assignment is deterministic: the main table claims its alias first,
// then each join in declaration order.
func (s *Selector) ResolvedJoins() []Join {
	_, joins := s.resolve()
	return joins
}

// resolve assigns the main alias and join aliases within a shared alias set.
func (s *Selector) resolve() (string, []Join) {
	seen := aliasSet{}
	main := s.alias
	if main == "" {
		main = seen.derive(s.table)
	} else {
		seen.add(main)
	}
	joins := make([]Join, len(s.joins))
	copy(joins, s.joins)
	for i := range joins {
		if joins[i].Alias == "" {
			joins[i].Alias = seen.derive(joins[i].Table)
		} else {
			seen.add(joins[i].Alias)
		}
	}
	return main, joins
}

func (s *Selector) projection(main string, joins []Join) []string {
	if !s.HasColumns() {
		fields := []string{main + ".*"}
		for _, j := range joins {
			for _, col := range s.expanded[j.Alias] {
				fields = append(fields, j.Alias+"."+col+" AS "+j.Alias+"_"+col)
			}
		}
		return fields
	}
	var fields []string
	for _, key := range sortedKeys(s.columns) {
		if !s.columns[key] {
			continue
		}
		if orig, as, ok := strings.Cut(key, " AS "); ok {
			if !strings.Contains(orig, ".") {
				orig = main + "." + orig
			}
			fields = append(fields, orig+" AS "+as)
			continue
		}
		if !strings.Contains(key, ".") {
			fields = append(fields, main+"."+key)
			continue
		}
		parts := strings.Split(key, ".")
		alias, col := parts[0], parts[len(parts)-1]
		if alias != main {
			fields = append(fields, key+" AS "+alias+"_"+col)
		} else {
			fields = append(fields, key)
		}
	}
	return fields
}

func (s *Selector) joinClause(main string, joins []Join) (string, error) {
	var b strings.Builder
	for _, j := range joins {
		if len(j.On) == 0 {
			return "", ErrNoJoinOn
		}
		kind := j.Kind
		if kind == "" {
			kind = InnerJoin
		}
		pairs := make([]string, 0, len(j.On))
		for _, local := range sortedKeys(j.On) {
			lcol := local
			if !strings.Contains(local, ".") {
				lcol = main + "." + local
			}
			pairs = append(pairs, lcol+" = "+j.Alias+"."+j.On[local])
		}
		fmt.Fprintf(&b, " %s JOIN %s AS %s ON %s", kind, j.Table, j.Alias, strings.Join(pairs, " AND "))
	}
	return b.String(), nil
}

// Build renders the SELECT statement.
func (s *Selector) Build() (string, []any, error) {
	return s.build(false)
}

// BuildCount renders SELECT COUNT(*) AS total over the same FROM/JOIN/WHERE
// machinery, ignoring projection, ordering and pagination.
func (s *Selector) BuildCount() (string, []any, error) {
	return s.build(true)
}

func (s *Selector) build(count bool) (string, []any, error) {
	if !ValidIdentifier(s.table) {
		return "", nil, &BuildError{Table: s.table, Op: "select", Err: ErrBadIdentifier}
	}
	main, joins := s.resolve()
	joinClause, err := s.joinClause(main, joins)
	if err != nil {
		return "", nil, &BuildError{Table: s.table, Op: "select", Err: err}
	}
	where, args, err := CompileWhere(s.where, nil, main)
	if err != nil {
		return "", nil, &BuildError{Table: s.table, Op: "select", Err: err}
	}
	var b strings.Builder
	if count {
		b.WriteString("SELECT COUNT(*) AS total")
	} else {
		b.WriteString("SELECT " + strings.Join(s.projection(main, joins), ", "))
	}
	b.WriteString(" FROM " + s.table + " AS " + main)
	b.WriteString(joinClause)
	if where != "" {
		b.WriteString(" " + where)
	}
	if count {
		return b.String(), args, nil
	}
	if len(s.orders) > 0 {
		terms := make([]string, len(s.orders))
		for i, o := range s.orders {
			dir := o.Direction
			if dir == "" {
				dir = Asc
			}
			terms[i] = qualify(o.Column, main) + " " + string(dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if s.limit >= 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(s.limit))
	}
	if s.offset >= 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(s.offset))
	}
	return b.String(), args, nil
}

// Inserter builds INSERT statements.
type Inserter struct {
	table     string
	row       map[string]any
	rows      []map[string]any
	returning map[string]bool
}

// Insert returns an INSERT builder for the given table.
func Insert(table string) *Inserter {
	return &Inserter{table: table}
}

// Set provides the values for a single-row insert. Entries with nil values
// are dropped, so an omitted field and an explicit null bind identically.
func (i *Inserter) Set(values map[string]any) *Inserter {
	i.row = values
	return i
}

// Rows provides the records for a bulk insert. All rows must share the key
// set of the first row; the column order derives from it.
func (i *Inserter) Rows(rows ...map[string]any) *Inserter {
	i.rows = append(i.rows, rows...)
	return i
}

// Returning sets the RETURNING projection as a column -> include-flag map.
func (i *Inserter) Returning(cols map[string]bool) *Inserter {
	i.returning = cols
	return i
}

// ReturningColumns returns the selected RETURNING column names in the order
// they render.
func (i *Inserter) ReturningColumns() []string {
	var cols []string
	for _, key := range sortedKeys(i.returning) {
		if i.returning[key] {
			cols = append(cols, key)
		}
	}
	return cols
}

// Build renders the INSERT statement.
func (i *Inserter) Build() (string, []any, error) {
	if !ValidIdentifier(i.table) {
		return "", nil, &BuildError{Table: i.table, Op: "insert", Err: ErrBadIdentifier}
	}
	if len(i.rows) > 0 {
		return i.buildBulk()
	}
	var cols []string
	for _, col := range sortedKeys(i.row) {
		if i.row[col] != nil {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return "", nil, &BuildError{Table: i.table, Op: "insert", Err: ErrNoValues}
	}
	args := make([]any, 0, len(cols))
	ph := make([]string, len(cols))
	for n, col := range cols {
		v, err := encodeValue(i.row[col])
		if err != nil {
			return "", nil, &BuildError{Table: i.table, Op: "insert", Err: err}
		}
		args = append(args, v)
		ph[n] = "$" + strconv.Itoa(len(args))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", i.table, strings.Join(cols, ", "), strings.Join(ph, ", "))
	if ret := i.ReturningColumns(); len(ret) > 0 {
		b.WriteString(" RETURNING " + strings.Join(ret, ", "))
	}
	return b.String(), args, nil
}

func (i *Inserter) buildBulk() (string, []any, error) {
	cols := sortedKeys(i.rows[0])
	if len(cols) == 0 {
		return "", nil, &BuildError{Table: i.table, Op: "insert", Err: ErrNoValues}
	}
	var (
		args   []any
		tuples = make([]string, len(i.rows))
	)
	for r, row := range i.rows {
		if len(row) != len(cols) {
			return "", nil, &BuildError{Table: i.table, Op: "insert", Err: ErrMixedRows}
		}
		ph := make([]string, len(cols))
		for n, col := range cols {
			v, ok := row[col]
			if !ok {
				return "", nil, &BuildError{Table: i.table, Op: "insert", Err: ErrMixedRows}
			}
			ev, err := encodeValue(v)
			if err != nil {
				return "", nil, &BuildError{Table: i.table, Op: "insert", Err: err}
			}
			args = append(args, ev)
			ph[n] = "$" + strconv.Itoa(len(args))
		}
		tuples[r] = "(" + strings.Join(ph, ", ") + ")"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s", i.table, strings.Join(cols, ", "), strings.Join(tuples, ", "))
	if ret := i.ReturningColumns(); len(ret) > 0 {
		b.WriteString(" RETURNING " + strings.Join(ret, ", "))
	}
	return b.String(), args, nil
}

// Updater builds UPDATE statements.
type Updater struct {
	table  string
	values map[string]any
	where  []Cond
}

// Update returns an UPDATE builder for the given table.
func Update(table string) *Updater {
	return &Updater{table: table}
}

// Set provides the SET values. Entries with nil values are dropped.
func (u *Updater) Set(values map[string]any) *Updater {
	u.values = values
	return u
}

// Where appends conditions. An Updater without conditions renders a
// table-wide UPDATE; the builder does not forbid it.
func (u *Updater) Where(conds ...Cond) *Updater {
	u.where = append(u.where, conds...)
	return u
}

// Build renders the UPDATE statement. SET parameters bind first, WHERE
// placeholders continue the numbering.
func (u *Updater) Build() (string, []any, error) {
	if !ValidIdentifier(u.table) {
		return "", nil, &BuildError{Table: u.table, Op: "update", Err: ErrBadIdentifier}
	}
	var cols []string
	for _, col := range sortedKeys(u.values) {
		if u.values[col] != nil {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return "", nil, &BuildError{Table: u.table, Op: "update", Err: ErrNoValues}
	}
	seed := make([]any, 0, len(cols))
	sets := make([]string, len(cols))
	for n, col := range cols {
		v, err := encodeValue(u.values[col])
		if err != nil {
			return "", nil, &BuildError{Table: u.table, Op: "update", Err: err}
		}
		seed = append(seed, v)
		sets[n] = col + " = $" + strconv.Itoa(len(seed))
	}
	where, args, err := CompileWhere(u.where, seed, "")
	if err != nil {
		return "", nil, &BuildError{Table: u.table, Op: "update", Err: err}
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s", u.table, strings.Join(sets, ", "))
	if where != "" {
		stmt += " " + where
	}
	return stmt, args, nil
}

// Deleter builds DELETE statements.
type Deleter struct {
	table string
	where []Cond
}

// Delete returns a DELETE builder for the given table.
func Delete(table string) *Deleter {
	return &Deleter{table: table}
}

// Where appends conditions. A Deleter without conditions renders a
// table-wide DELETE; the builder does not forbid it.
func (d *Deleter) Where(conds ...Cond) *Deleter {
	d.where = append(d.where, conds...)
	return d
}

// Build renders the DELETE statement.
func (d *Deleter) Build() (string, []any, error) {
	if !ValidIdentifier(d.table) {
		return "", nil, &BuildError{Table: d.table, Op: "delete", Err: ErrBadIdentifier}
	}
	where, args, err := CompileWhere(d.where, nil, "")
	if err != nil {
		return "", nil, &BuildError{Table: d.table, Op: "delete", Err: err}
	}
	stmt := "DELETE FROM " + d.table
	if where != "" {
		stmt += " " + where
	}
	return stmt, args, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeValue serializes composite values (maps, slices, structs) to their
// JSON text before binding. Scalars, byte slices, times and driver.Valuer
// implementations pass through untouched.
func encodeValue(v any) (any, error) {
	switch v.(type) {
	case nil, []byte, time.Time, driver.Valuer:
		return v, nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		return string(b), nil
	}
	return v, nil
}
