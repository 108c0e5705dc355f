package route_test

import (
	"testing"

	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/models/point"
	"github.com/pg-sharding/dataplane/router/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	epA = endpoint.New("127.0.0.1", 8831)
	epB = endpoint.New("127.0.0.2", 8831)
)

func mockPoints(t *testing.T, tables ...string) []point.Point {
	t.Helper()
	var res []point.Point
	for _, table := range tables {
		for i := 0; i < 2; i++ {
			p, err := point.NewPoint(table).Timestamp(int64(i)).Field("i", i).Build()
			require.NoError(t, err)
			res = append(res, p)
		}
	}
	return res
}

func TestSplitOneGroup(t *testing.T) {
	assert := assert.New(t)

	points := mockPoints(t, "t1", "t2", "t3")
	routes := map[string]route.Route{
		"t1": route.NewRoute("t1", epA),
		"t2": route.NewRoute("t2", epA),
		"t3": route.NewRoute("t3", epA),
	}

	groups, err := route.SplitByRoute(points, routes)
	assert.NoError(err)
	assert.Len(groups, 1)
	assert.Equal(points, groups[epA])
}

func TestSplitTwoGroups(t *testing.T) {
	assert := assert.New(t)

	points := mockPoints(t, "t1", "t3", "t2")
	routes := map[string]route.Route{
		"t1": route.NewRoute("t1", epA),
		"t2": route.NewRoute("t2", epA),
		"t3": route.NewRoute("t3", epB),
	}

	groups, err := route.SplitByRoute(points, routes)
	assert.NoError(err)
	assert.Len(groups, 2)
	assert.Len(groups[epA], 4)
	assert.Len(groups[epB], 2)

	/* input order is kept inside a group */
	var tables []string
	for _, p := range groups[epA] {
		tables = append(tables, p.Table)
	}
	assert.Equal([]string{"t1", "t1", "t2", "t2"}, tables)
}

func TestSplitMissingRoute(t *testing.T) {
	assert := assert.New(t)

	_, err := route.SplitByRoute(mockPoints(t, "t1", "ghost"), map[string]route.Route{
		"t1": route.NewRoute("t1", epA),
	})
	assert.Error(err)
	assert.True(dperror.IsCode(err, dperror.DP_ROUTING_ERROR))
	assert.Contains(err.Error(), "ghost")
}

func TestReverseRoutes(t *testing.T) {
	assert := assert.New(t)

	rev := route.ReverseRoutes(map[string]route.Route{
		"b": route.NewRoute("b", epA),
		"a": route.NewRoute("a", epA),
		"c": route.NewRoute("c", epB),
	})
	assert.Equal(map[endpoint.Endpoint][]string{
		epA: {"a", "b"},
		epB: {"c"},
	}, rev)
}

func TestChunk(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([][]int{{1, 2}, {3, 4}, {5}}, route.Chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal([][]int{{1, 2}}, route.Chunk([]int{1, 2}, 0))
	assert.Equal([][]int{{1, 2}}, route.Chunk([]int{1, 2}, 5))
}

func TestStaticAuthority(t *testing.T) {
	assert := assert.New(t)

	a, err := route.NewStaticAuthority(map[string]string{"cpu": "127.0.0.1:8831"})
	require.NoError(t, err)

	routes, err := a.Resolve(t.Context(), []string{"cpu", "mem"})
	assert.NoError(err)
	assert.Equal(map[string]route.Route{"cpu": route.NewRoute("cpu", epA)}, routes)

	_, err = route.NewStaticAuthority(map[string]string{"cpu": "nonsense"})
	assert.Error(err)
}
