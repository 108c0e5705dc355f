package point

import (
	"time"

	"github.com/pkg/errors"
)

// Point is one row written to a time-series table.
type Point struct {
	Table     string            `json:"table"`
	Timestamp int64             `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
	Fields    map[string]any    `json:"fields"`
}

func (p Point) TableName() string {
	return p.Table
}

type Builder struct {
	p Point
}

func NewPoint(table string) *Builder {
	return &Builder{
		p: Point{
			Table:  table,
			Tags:   map[string]string{},
			Fields: map[string]any{},
		},
	}
}

// Timestamp sets the point time in milliseconds since the epoch.
func (b *Builder) Timestamp(ms int64) *Builder {
	b.p.Timestamp = ms
	return b
}

func (b *Builder) Time(t time.Time) *Builder {
	b.p.Timestamp = t.UnixMilli()
	return b
}

func (b *Builder) Tag(name, value string) *Builder {
	b.p.Tags[name] = value
	return b
}

func (b *Builder) Field(name string, value any) *Builder {
	b.p.Fields[name] = value
	return b
}

func (b *Builder) Build() (Point, error) {
	if b.p.Table == "" {
		return Point{}, errors.New("point: table name is required")
	}
	if len(b.p.Fields) == 0 {
		return Point{}, errors.Errorf("point: table %s: at least one field is required", b.p.Table)
	}
	if b.p.Timestamp == 0 {
		b.p.Timestamp = time.Now().UnixMilli()
	}
	return b.p, nil
}

// Tables returns the distinct table names of points in first-seen order.
func Tables(points []Point) []string {
	seen := make(map[string]struct{}, len(points))
	tables := make([]string, 0)
	for _, p := range points {
		if _, ok := seen[p.Table]; ok {
			continue
		}
		seen[p.Table] = struct{}{}
		tables = append(tables, p.Table)
	}
	return tables
}
