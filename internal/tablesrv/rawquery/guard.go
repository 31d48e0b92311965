package rawquery

import (
	"context"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"github.com/tansive/tablebase/internal/common/apperrors"
	"github.com/tansive/tablebase/internal/common/uuid"
	"github.com/tansive/tablebase/internal/tablesrv/db/models"
	"github.com/tansive/tablebase/internal/tablesrv/sqlscan"
	"github.com/tansive/tablebase/internal/tablesrv/tableschema"
)

// TableResolver looks up a logical table of the caller's project.
type TableResolver interface {
	ResolveTable(ctx context.Context, name string) (*models.Table, apperrors.Error)
}

// TableResolverFunc adapts a function to TableResolver.
type TableResolverFunc func(ctx context.Context, name string) (*models.Table, apperrors.Error)

func (f TableResolverFunc) ResolveTable(ctx context.Context, name string) (*models.Table, apperrors.Error) {
	return f(ctx, name)
}

type Options struct {
	ProjectID uuid.UUID
	// Trusted statements are not checked; logical names are still rewritten.
	Trusted bool
}

// Plan is a statement ready to run.
type Plan struct {
	Text        string
	Statement   string // keyword of the main statement
	ReturnsRows bool
	IsWrite     bool
	Tables      []*models.Table // tables the statement references
}

var (
	physicalNamePattern = regexp.MustCompile(`t_[0-9a-f]{32}_`)

	allowedStatements = map[string]bool{
		"select": true, "insert": true, "update": true, "delete": true, "values": true,
	}
	rowStatements = map[string]bool{
		"select": true, "values": true, "table": true, "show": true, "explain": true,
	}
	dmlStatements = map[string]bool{
		"insert": true, "update": true, "delete": true,
	}
	subqueryStarts = map[string]bool{
		"select": true, "with": true, "values": true, "table": true,
	}
	// keywords that can precede "(" without making it a function call
	nonCallKeywords = map[string]bool{
		"in": true, "exists": true, "any": true, "all": true, "some": true, "as": true,
		"from": true, "join": true, "on": true, "and": true, "or": true, "not": true,
		"when": true, "then": true, "else": true, "where": true, "select": true,
		"values": true, "using": true, "lateral": true, "over": true, "filter": true,
		"within": true, "by": true, "set": true, "returning": true, "case": true,
		"is": true, "like": true, "between": true, "into": true, "union": true,
		"intersect": true, "except": true, "distinct": true, "having": true, "with": true,
	}
	// keywords that end a relation item instead of naming its alias
	clauseKeywords = map[string]bool{
		"where": true, "join": true, "inner": true, "left": true, "right": true,
		"full": true, "cross": true, "natural": true, "on": true, "using": true,
		"set": true, "group": true, "order": true, "limit": true, "offset": true,
		"having": true, "union": true, "intersect": true, "except": true,
		"window": true, "fetch": true, "for": true, "returning": true, "values": true,
		"default": true, "select": true, "lateral": true, "tablesample": true,
		"overriding": true, "do": true, "with": true, "into": true, "as": true,
	}
	fromClauseEnds = map[string]bool{
		"where": true, "group": true, "having": true, "order": true, "limit": true,
		"offset": true, "window": true, "union": true, "intersect": true, "except": true,
		"returning": true, "fetch": true, "for": true, "conflict": true, "set": true,
	}
	systemSchemas = map[string]bool{
		"information_schema": true, "public": true, "tablesrv": true,
	}
)

type frameKind int

const (
	frameTop frameKind = iota
	frameSubquery
	frameGroup
	frameCall
)

type frame struct {
	kind   frameKind
	inFrom bool // a comma starts another relation item
}

type relationRef struct {
	index   int
	aliased bool
	target  bool // INSERT, UPDATE or DELETE target, never a CTE
}

// cteScope is a WITH query name and the token range where references to it mean the
// CTE rather than a table.
type cteScope struct {
	name     string
	from, to int
}

type analysis struct {
	tokens    []sqlscan.Token
	main      string
	isWrite   bool
	returning bool
	ctes      []cteScope
	relations []*relationRef
	qualified []int // relation positions holding schema-qualified names
}

func (a *analysis) at(i int) sqlscan.Token {
	if i >= 0 && i < len(a.tokens) {
		return a.tokens[i]
	}
	return sqlscan.Token{Kind: sqlscan.Punct}
}

func (a *analysis) isKeyword(i int, kw string) bool {
	return i >= 0 && i < len(a.tokens) && a.tokens[i].Is(kw)
}

// skipParens returns the index after the ")" closing the "(" at i.
func (a *analysis) skipParens(i int) int {
	depth := 0
	for j := i; j < len(a.tokens); j++ {
		switch {
		case a.tokens[j].Is("("):
			depth++
		case a.tokens[j].Is(")"):
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(a.tokens)
}

func analyze(tokens []sqlscan.Token) *analysis {
	a := &analysis{tokens: tokens}
	a.findMainStatement()

	frames := []frame{{kind: frameTop}}
	for i, t := range tokens {
		top := &frames[len(frames)-1]
		switch {
		case t.Is("("):
			frames = append(frames, frame{kind: a.frameAt(i)})
			continue
		case t.Is(")"):
			if len(frames) > 1 {
				frames = frames[:len(frames)-1]
			}
			continue
		case t.Is(","):
			if top.inFrom {
				a.relationItem(i+1, true, false)
			}
			continue
		case t.Kind != sqlscan.Ident:
			continue
		}

		switch t.Value {
		case "with":
			a.collectCTEs(i)
		case "insert", "delete":
			a.isWrite = true
		case "update":
			if !a.isKeyword(i-1, "for") && !a.isKeyword(i-1, "key") && !a.isKeyword(i-1, "do") {
				a.isWrite = true
				if top.kind != frameCall {
					a.relationItem(i+1, false, true)
				}
			}
		case "returning":
			if len(frames) == 1 {
				a.returning = true
			}
		}
		if top.kind == frameCall {
			continue
		}
		if fromClauseEnds[t.Value] {
			top.inFrom = false
		}
		switch t.Value {
		case "from":
			if !a.isKeyword(i-1, "distinct") {
				top.inFrom = true
				a.relationItem(i+1, true, a.isKeyword(i-1, "delete"))
			}
		case "join":
			a.relationItem(i+1, true, false)
		case "into":
			a.relationItem(i+1, false, true)
		case "using":
			if !a.isKeyword(i+1, "(") {
				top.inFrom = true
				a.relationItem(i+1, true, false)
			}
		case "table":
			if a.at(i + 1).IsName() {
				a.relationItem(i+1, false, false)
			}
		}
	}
	return a
}

func (a *analysis) frameAt(i int) frameKind {
	next := a.at(i + 1)
	if next.Kind == sqlscan.Ident && subqueryStarts[next.Value] {
		return frameSubquery
	}
	prev := a.at(i - 1)
	if prev.Kind == sqlscan.QuotedIdent || (prev.Kind == sqlscan.Ident && !nonCallKeywords[prev.Value]) {
		return frameCall
	}
	return frameGroup
}

func (a *analysis) findMainStatement() {
	if len(a.tokens) == 0 {
		return
	}
	first := a.tokens[0]
	if first.Kind != sqlscan.Ident {
		return
	}
	if first.Value != "with" {
		a.main = first.Value
		return
	}
	depth := 0
	for _, t := range a.tokens[1:] {
		switch {
		case t.Is("("):
			depth++
		case t.Is(")"):
			depth--
		case depth == 0 && t.Kind == sqlscan.Ident:
			switch t.Value {
			case "select", "insert", "update", "delete", "values", "table":
				a.main = t.Value
				return
			}
		}
	}
}

// collectCTEs records the names defined by the WITH clause at i. A name counts only
// when it is followed by AS and a parenthesized body, so WITH TIME ZONE and friends
// are ignored. A name is visible from the end of its own body to the end of the query
// the WITH belongs to; under RECURSIVE it is visible in every body of the clause.
func (a *analysis) collectCTEs(i int) {
	scopeEnd := a.enclosingEnd(i)
	j := i + 1
	recursive := a.isKeyword(j, "recursive")
	if recursive {
		j++
	}
	for j < len(a.tokens) {
		name := a.at(j)
		if !name.IsName() {
			return
		}
		j++
		if a.isKeyword(j, "(") {
			j = a.skipParens(j)
		}
		if !a.isKeyword(j, "as") {
			return
		}
		j++
		if a.isKeyword(j, "not") {
			j++
		}
		if a.isKeyword(j, "materialized") {
			j++
		}
		if !a.isKeyword(j, "(") {
			return
		}
		j = a.skipParens(j)
		from := j
		if recursive {
			from = i
		}
		a.ctes = append(a.ctes, cteScope{name: name.Value, from: from, to: scopeEnd})
		if !a.isKeyword(j, ",") {
			return
		}
		j++
	}
}

// enclosingEnd returns the index of the ")" closing the group that holds token i, or
// the number of tokens at the top level.
func (a *analysis) enclosingEnd(i int) int {
	depth := 0
	for j := i; j < len(a.tokens); j++ {
		switch {
		case a.tokens[j].Is("("):
			depth++
		case a.tokens[j].Is(")"):
			if depth == 0 {
				return j
			}
			depth--
		}
	}
	return len(a.tokens)
}

// isCTE reports whether the relation named at token i refers to a WITH query.
func (a *analysis) isCTE(i int) bool {
	name := a.tokens[i].Value
	for _, c := range a.ctes {
		if c.name == name && i >= c.from && i < c.to {
			return true
		}
	}
	return false
}

// relationItem records the relation named at j and returns the index after the item
// and its alias. With functions set, name( is a set returning function call. A target
// is the relation a data-modifying statement writes to.
func (a *analysis) relationItem(j int, functions, target bool) int {
	for a.isKeyword(j, "only") || a.isKeyword(j, "lateral") {
		j++
	}
	var ref *relationRef
	t := a.at(j)
	switch {
	case t.Is("("):
		next := a.at(j + 1)
		if !(next.Kind == sqlscan.Ident && subqueryStarts[next.Value]) {
			// parenthesized join: its first member is a relation too
			a.relationItem(j+1, true, false)
		}
		j = a.skipParens(j)
	case t.IsName():
		switch {
		case a.isKeyword(j+1, "."):
			a.qualified = append(a.qualified, j)
			j += 3
			if functions && a.isKeyword(j, "(") {
				j = a.skipParens(j)
			}
		case functions && a.isKeyword(j+1, "("):
			j = a.skipParens(j + 1)
		default:
			ref = &relationRef{index: j, target: target}
			a.relations = append(a.relations, ref)
			j++
		}
	default:
		return j
	}

	aliased := false
	if a.isKeyword(j, "as") {
		aliased = true
		j++
		if a.at(j).IsName() {
			j++
		}
	} else if next := a.at(j); next.Kind == sqlscan.QuotedIdent || (next.Kind == sqlscan.Ident && !clauseKeywords[next.Value]) {
		aliased = true
		j++
	}
	if aliased && a.isKeyword(j, "(") && functions {
		j = a.skipParens(j)
	}
	if ref != nil {
		ref.aliased = aliased
	}
	return j
}

// Prepare checks a tenant statement and rewrites logical table names to physical
// ones. Outside the trusted tier only single SELECT, INSERT, UPDATE, DELETE or VALUES
// statements over the caller's own tables and CTEs are accepted.
func Prepare(ctx context.Context, text string, opts Options, resolver TableResolver) (*Plan, apperrors.Error) {
	tokens, err := sqlscan.Scan(text)
	if err != nil {
		return nil, ErrInvalidQuery.MsgErr(err.Error(), err)
	}
	tokens, err = sqlscan.SingleStatement(tokens)
	if err != nil {
		return nil, ErrInvalidQuery.MsgErr(err.Error(), err)
	}
	if err := sqlscan.CheckBalanced(tokens); err != nil {
		return nil, ErrInvalidQuery.MsgErr(err.Error(), err)
	}
	text = text[:tokens[len(tokens)-1].End]

	a := analyze(tokens)
	ownPrefix := tableschema.PhysicalTablePrefix(opts.ProjectID)
	if !opts.Trusted {
		if err := a.check(ownPrefix); err != nil {
			return nil, err
		}
	}

	plan := &Plan{
		Statement:   a.main,
		IsWrite:     a.isWrite,
		ReturnsRows: rowStatements[a.main] || (dmlStatements[a.main] && a.returning),
	}
	seen := map[uuid.UUID]bool{}
	addTable := func(t *models.Table) {
		if !seen[t.TableID] {
			seen[t.TableID] = true
			plan.Tables = append(plan.Tables, t)
		}
	}

	var b strings.Builder
	last := 0
	for _, ref := range a.relations {
		tok := tokens[ref.index]
		if !ref.target && a.isCTE(ref.index) {
			continue
		}
		if strings.HasPrefix(tok.Value, ownPrefix) {
			table, rerr := resolver.ResolveTable(ctx, strings.TrimPrefix(tok.Value, ownPrefix))
			if rerr != nil {
				if opts.Trusted {
					continue
				}
				return nil, relationError(tok.Value, rerr)
			}
			addTable(table)
			continue
		}
		table, rerr := resolver.ResolveTable(ctx, tok.Value)
		if rerr != nil {
			if opts.Trusted {
				continue
			}
			return nil, relationError(tok.Value, rerr)
		}
		addTable(table)

		b.WriteString(text[last:tok.Pos])
		b.WriteString(pq.QuoteIdentifier(table.PhysicalName))
		if !ref.aliased {
			b.WriteString(" AS ")
			b.WriteString(pq.QuoteIdentifier(tok.Value))
		}
		last = tok.End
	}
	b.WriteString(text[last:])
	plan.Text = b.String()
	return plan, nil
}

func relationError(name string, err apperrors.Error) apperrors.Error {
	if apperrors.KindOf(err) == apperrors.KindNotFound || apperrors.KindOf(err) == apperrors.KindInvalid {
		return ErrRelationNotFound.MsgErr("relation "+name+" not found", err)
	}
	return err
}

func (a *analysis) check(ownPrefix string) apperrors.Error {
	first := a.tokens[0]
	if first.Kind != sqlscan.Ident || !(allowedStatements[first.Value] || first.Value == "with") || !allowedStatements[a.main] {
		return ErrStatementNotAllowed.Msg("statement " + strings.ToUpper(first.Text) + " is not allowed")
	}
	for _, t := range a.tokens {
		switch t.Kind {
		case sqlscan.Ident, sqlscan.QuotedIdent, sqlscan.String:
		default:
			continue
		}
		for _, m := range physicalNamePattern.FindAllString(t.Value, -1) {
			if m != ownPrefix {
				return ErrStatementNotAllowed.Msg("query references a table outside this project")
			}
		}
	}
	for _, fn := range sqlscan.FunctionCalls(a.tokens) {
		if sqlscan.IsRestrictedFunction(fn) {
			return ErrStatementNotAllowed.Msg("function " + fn + " is not allowed")
		}
	}
	if len(a.qualified) > 0 {
		t := a.tokens[a.qualified[0]]
		return ErrStatementNotAllowed.Msg("schema-qualified relation " + t.Value + "." + a.at(a.qualified[0]+2).Value + " is not allowed")
	}
	for i := 0; i+2 < len(a.tokens); i++ {
		t := a.tokens[i]
		if t.IsName() && a.tokens[i+1].Is(".") && a.tokens[i+2].IsName() {
			if systemSchemas[t.Value] || strings.HasPrefix(t.Value, "pg_") {
				return ErrStatementNotAllowed.Msg("references to schema " + t.Value + " are not allowed")
			}
		}
	}
	return nil
}
