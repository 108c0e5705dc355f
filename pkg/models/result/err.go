package result

import (
	"fmt"
	"iter"
	"strings"

	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/point"
)

// Err describes one failed physical call and links to the failures combined
// after it. Nodes are immutable: combining builds new head nodes and shares the
// existing tails, so a chain handed to another goroutine never changes.
//
// Only the head of a chain carries folded successes (SubOk, SubQueryOk); they
// aggregate every success folded into any part of the chain.
type Err struct {
	Code    int
	Message string
	ErrTo   endpoint.Endpoint

	SubOk      *WriteOk
	SubQueryOk *SqlQueryOk

	FailedWrites []point.Point
	Sql          string

	next *Err
}

// WriteErr reports a failed write to one endpoint along with the points it carried.
func WriteErr(code int, msg string, to endpoint.Endpoint, failed []point.Point) *Err {
	return &Err{
		Code:         code,
		Message:      msg,
		ErrTo:        to,
		FailedWrites: failed,
	}
}

// QueryErr reports a failed query to one endpoint.
func QueryErr(code int, msg string, to endpoint.Endpoint, sql string) *Err {
	return &Err{
		Code:    code,
		Message: msg,
		ErrTo:   to,
		Sql:     sql,
	}
}

func (e *Err) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s (to %s)", e.Code, e.Message, e.ErrTo)
	if n := e.Len() - 1; n > 0 {
		fmt.Fprintf(&sb, ", and %d more failure(s)", n)
	}
	return sb.String()
}

func (e *Err) Next() *Err {
	return e.next
}

// All iterates the chain from head to tail. The sequence can be ranged over
// any number of times.
func (e *Err) All() iter.Seq[*Err] {
	return func(yield func(*Err) bool) {
		for cur := e; cur != nil; cur = cur.next {
			if !yield(cur) {
				return
			}
		}
	}
}

func (e *Err) Len() int {
	n := 0
	for cur := e; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Endpoints lists the failed endpoint of every node in chain order.
func (e *Err) Endpoints() []endpoint.Endpoint {
	eps := make([]endpoint.Endpoint, 0, e.Len())
	for n := range e.All() {
		eps = append(eps, n.ErrTo)
	}
	return eps
}

// AllFailedWrites collects the failed points of every node in chain order.
func (e *Err) AllFailedWrites() []point.Point {
	var failed []point.Point
	for n := range e.All() {
		failed = append(failed, n.FailedWrites...)
	}
	return failed
}

func (e *Err) shallow() *Err {
	c := *e
	return &c
}

// FoldWriteOk returns a new head with ok folded into its SubOk.
func (e *Err) FoldWriteOk(ok *WriteOk) *Err {
	head := e.shallow()
	head.SubOk = e.SubOk.Combine(ok)
	return head
}

// FoldQueryOk returns a new head with ok folded into its SubQueryOk.
func (e *Err) FoldQueryOk(ok *SqlQueryOk) *Err {
	head := e.shallow()
	head.SubQueryOk = e.SubQueryOk.Combine(ok)
	return head
}

// Combine appends o's chain after e's tail. The head fields of e win; the folded
// successes of both chains move to the new head. e's nodes are copied, o's tail
// is shared.
func (e *Err) Combine(o *Err) *Err {
	if e == nil {
		return o
	}
	if o == nil {
		return e
	}

	tail := o
	if o.SubOk != nil || o.SubQueryOk != nil {
		tail = o.shallow()
		tail.SubOk = nil
		tail.SubQueryOk = nil
	}

	nodes := make([]*Err, 0, e.Len())
	for n := range e.All() {
		nodes = append(nodes, n.shallow())
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		nodes[i].next = tail
		tail = nodes[i]
	}

	head := nodes[0]
	head.SubOk = e.SubOk.Combine(o.SubOk)
	head.SubQueryOk = e.SubQueryOk.Combine(o.SubQueryOk)
	return head
}

func (e *Err) Result() Result[*WriteOk, *Err] {
	return Fail[*WriteOk](e)
}

func (e *Err) QueryResult() Result[*SqlQueryOk, *Err] {
	return Fail[*SqlQueryOk](e)
}
