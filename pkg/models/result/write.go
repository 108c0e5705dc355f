package result

import (
	"fmt"
	"sort"
)

// WriteOk counts the rows one storage node accepted and rejected. Values are
// never modified after construction; Combine builds a new one.
type WriteOk struct {
	Success int
	Failed  int

	tables map[string]struct{}
}

func NewWriteOk(success, failed int, tables ...string) *WriteOk {
	w := &WriteOk{
		Success: success,
		Failed:  failed,
		tables:  make(map[string]struct{}, len(tables)),
	}
	for _, t := range tables {
		w.tables[t] = struct{}{}
	}
	return w
}

func EmptyWriteOk() *WriteOk {
	return NewWriteOk(0, 0)
}

// Tables returns the touched tables, sorted.
func (w *WriteOk) Tables() []string {
	if w == nil {
		return nil
	}
	tables := make([]string, 0, len(w.tables))
	for t := range w.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

func (w *WriteOk) HasTable(table string) bool {
	if w == nil {
		return false
	}
	_, ok := w.tables[table]
	return ok
}

// Combine sums the counters and unions the tables. A nil receiver or argument
// acts as the empty outcome.
func (w *WriteOk) Combine(o *WriteOk) *WriteOk {
	if w == nil {
		return o
	}
	if o == nil {
		return w
	}
	merged := &WriteOk{
		Success: w.Success + o.Success,
		Failed:  w.Failed + o.Failed,
		tables:  make(map[string]struct{}, len(w.tables)+len(o.tables)),
	}
	for t := range w.tables {
		merged.tables[t] = struct{}{}
	}
	for t := range o.tables {
		merged.tables[t] = struct{}{}
	}
	return merged
}

func (w *WriteOk) FoldInto(e *Err) *Err {
	return e.FoldWriteOk(w)
}

func (w *WriteOk) Result() Result[*WriteOk, *Err] {
	return Ok[*WriteOk, *Err](w)
}

func (w *WriteOk) String() string {
	if w == nil {
		return "WriteOk{}"
	}
	return fmt.Sprintf("WriteOk{success=%d, failed=%d, tables=%v}", w.Success, w.Failed, w.Tables())
}
