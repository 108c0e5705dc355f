package sqlparse

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/lyx/lyx"
	"github.com/spaolacci/murmur3"
)

const DefaultCacheSize = 1024

// LyxParser classifies statements with the lyx SQL parser, falling back to
// keyword matching for the time-series dialect statements lyx does not know
// (DESCRIBE, EXISTS, engine options on CREATE TABLE and so on). Parsed
// statements are cached by the murmur3 hash of their text.
type LyxParser struct {
	cache *lru.Cache

	// lyx keeps global parser state
	mu sync.Mutex
}

var _ Parser = &LyxParser{}

func NewLyxParser(cacheSize int) *LyxParser {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New(cacheSize)
	return &LyxParser{cache: cache}
}

type cachedStatement struct {
	sql  string
	stmt Statement
}

func (p *LyxParser) Parse(sql string) (*Statement, error) {
	text := strings.TrimSpace(sql)
	if text == "" {
		return nil, dperror.New(dperror.DP_SQL_PARSE, "empty statement")
	}

	key := murmur3.Sum64([]byte(text))
	if v, ok := p.cache.Get(key); ok {
		c := v.(*cachedStatement)
		if c.sql == text {
			return c.stmt.clone(), nil
		}
	}

	stmt, err := p.parse(text)
	if err != nil {
		return nil, err
	}
	stmt.Sql = sql
	p.cache.Add(key, &cachedStatement{sql: text, stmt: *stmt})
	return stmt.clone(), nil
}

func (s *Statement) clone() *Statement {
	c := *s
	c.Tables = append([]string(nil), s.Tables...)
	return &c
}

func (p *LyxParser) parse(text string) (*Statement, error) {
	p.mu.Lock()
	node, err := lyx.Parse(text)
	p.mu.Unlock()

	if err == nil && node != nil {
		if stmt, ok := fromNode(node); ok {
			return stmt, nil
		}
	}

	stmt := fromKeywords(text)
	if stmt.Type == Unknown && err != nil {
		dplog.Zero.Debug().Err(err).Str("sql", text).Msg("sqlparse: statement not recognized")
	}
	return stmt, nil
}

func fromNode(node lyx.Node) (*Statement, bool) {
	tc := newTableCollector()

	switch q := node.(type) {
	case *lyx.Select:
		tc.selectStmt(q)
		return &Statement{Type: Select, Tables: tc.result()}, true
	case *lyx.Insert:
		tc.ctes(q.WithClause)
		tc.fromNode(q.TableRef)
		tc.node(q.SubSelect)
		return &Statement{Type: Insert, Tables: tc.result()}, true
	case *lyx.Update:
		tc.fromNode(q.TableRef)
		return &Statement{Type: Update, Tables: tc.result()}, true
	case *lyx.Delete:
		tc.fromNode(q.TableRef)
		return &Statement{Type: Delete, Tables: tc.result()}, true
	case *lyx.CreateTable:
		tc.fromNode(q.TableRv)
		return &Statement{Type: Create, Tables: tc.result()}, true
	case *lyx.VariableSetStmt:
		return &Statement{Type: Set}, true
	case *lyx.VariableShowStmt:
		return &Statement{Type: Show}, true
	case *lyx.Explain:
		stmt := &Statement{Type: Explain}
		if inner, ok := fromNode(q.Stmt); ok {
			stmt.Tables = inner.Tables
		}
		return stmt, true
	}
	/* Alter, Drop, Truncate and the rest are classified from the text. */
	return nil, false
}

type tableCollector struct {
	seen   map[string]struct{}
	cte    map[string]struct{}
	tables []string
}

func newTableCollector() *tableCollector {
	return &tableCollector{
		seen: map[string]struct{}{},
		cte:  map[string]struct{}{},
	}
}

func (tc *tableCollector) add(name string) {
	if name == "" {
		return
	}
	if _, ok := tc.cte[name]; ok {
		return
	}
	if _, ok := tc.seen[name]; ok {
		return
	}
	tc.seen[name] = struct{}{}
	tc.tables = append(tc.tables, name)
}

func (tc *tableCollector) result() []string {
	return tc.tables
}

func (tc *tableCollector) ctes(with []*lyx.CommonTableExpr) {
	for _, cte := range with {
		tc.cte[cte.Name] = struct{}{}
	}
	for _, cte := range with {
		tc.node(cte.SubQuery)
	}
}

func (tc *tableCollector) node(n lyx.Node) {
	if n == nil {
		return
	}
	if s, ok := n.(*lyx.Select); ok {
		tc.selectStmt(s)
	}
}

func (tc *tableCollector) selectStmt(s *lyx.Select) {
	tc.ctes(s.WithClause)
	for _, f := range s.FromClause {
		tc.fromNode(f)
	}
	tc.node(s.LArg)
	tc.node(s.RArg)
}

// fromNode accepts both lyx.Node and lyx.FromClauseNode fields.
func (tc *tableCollector) fromNode(n any) {
	switch q := n.(type) {
	case *lyx.RangeVar:
		tc.add(q.RelationName)
	case *lyx.JoinExpr:
		tc.fromNode(q.Larg)
		tc.fromNode(q.Rarg)
	case *lyx.SubSelect:
		tc.node(q.Arg)
	case *lyx.Select:
		tc.selectStmt(q)
	}
}
