// Package route decides which storage node serves each table and splits
// batches of records accordingly.
package route

import (
	"slices"

	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
)

// Route binds a table to the endpoint serving it at one point in time.
type Route struct {
	Table    string            `json:"table"`
	Endpoint endpoint.Endpoint `json:"endpoint"`
}

func NewRoute(table string, ep endpoint.Endpoint) Route {
	return Route{Table: table, Endpoint: ep}
}

// Record is anything addressed to a table.
type Record interface {
	TableName() string
}

// SplitByRoute groups records by the endpoint of their table. Records keep their
// relative input order inside every group. A record whose table has no route
// fails the whole split with DP_ROUTING_ERROR.
func SplitByRoute[R Record](records []R, routes map[string]Route) (map[endpoint.Endpoint][]R, error) {
	groups := map[endpoint.Endpoint][]R{}
	for _, rec := range records {
		r, ok := routes[rec.TableName()]
		if !ok {
			return nil, dperror.Newf(dperror.DP_ROUTING_ERROR, "table %q has no route", rec.TableName())
		}
		groups[r.Endpoint] = append(groups[r.Endpoint], rec)
	}
	return groups, nil
}

// ReverseRoutes lists the tables served by each endpoint, sorted.
func ReverseRoutes(routes map[string]Route) map[endpoint.Endpoint][]string {
	res := map[endpoint.Endpoint][]string{}
	for table, r := range routes {
		res[r.Endpoint] = append(res[r.Endpoint], table)
	}
	for _, tables := range res {
		slices.Sort(tables)
	}
	return res
}

// Chunk cuts records into consecutive batches of at most size elements.
func Chunk[R any](records []R, size int) [][]R {
	if size <= 0 || len(records) <= size {
		return [][]R{records}
	}
	res := make([][]R, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		res = append(res, records[start:min(start+size, len(records))])
	}
	return res
}
