package result

import "fmt"

type Column struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Row keeps the column order of the server response.
type Row struct {
	Columns []Column `json:"columns"`
}

func NewRow(columns ...Column) Row {
	return Row{Columns: columns}
}

func (r Row) Get(name string) (any, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

func (r Row) Len() int {
	return len(r.Columns)
}

type SqlQueryOk struct {
	Sql          string
	AffectedRows int
	Rows         []Row
}

func NewSqlQueryOk(sql string, affectedRows int, rows []Row) *SqlQueryOk {
	return &SqlQueryOk{
		Sql:          sql,
		AffectedRows: affectedRows,
		Rows:         rows,
	}
}

func (q *SqlQueryOk) RowCount() int {
	if q == nil {
		return 0
	}
	return len(q.Rows)
}

// Combine sums affected rows and concatenates rows. The receiver's SQL text is kept.
func (q *SqlQueryOk) Combine(o *SqlQueryOk) *SqlQueryOk {
	if q == nil {
		return o
	}
	if o == nil {
		return q
	}
	rows := make([]Row, 0, len(q.Rows)+len(o.Rows))
	rows = append(rows, q.Rows...)
	rows = append(rows, o.Rows...)
	sql := q.Sql
	if sql == "" {
		sql = o.Sql
	}
	return &SqlQueryOk{
		Sql:          sql,
		AffectedRows: q.AffectedRows + o.AffectedRows,
		Rows:         rows,
	}
}

func (q *SqlQueryOk) FoldInto(e *Err) *Err {
	return e.FoldQueryOk(q)
}

func (q *SqlQueryOk) Result() Result[*SqlQueryOk, *Err] {
	return Ok[*SqlQueryOk, *Err](q)
}

func (q *SqlQueryOk) String() string {
	if q == nil {
		return "SqlQueryOk{}"
	}
	return fmt.Sprintf("SqlQueryOk{sql=%q, affectedRows=%d, rowCount=%d}", q.Sql, q.AffectedRows, q.RowCount())
}
