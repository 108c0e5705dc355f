package client_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pg-sharding/dataplane/pkg/client"
	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	mock_route "github.com/pg-sharding/dataplane/pkg/mock/route"
	mock_sqlparse "github.com/pg-sharding/dataplane/pkg/mock/sqlparse"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/models/point"
	"github.com/pg-sharding/dataplane/pkg/models/result"
	"github.com/pg-sharding/dataplane/pkg/protocol"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/pg-sharding/dataplane/pkg/rpc/rpctest"
	"github.com/pg-sharding/dataplane/pkg/sqlparse"
	"github.com/pg-sharding/dataplane/pkg/stream"
	"github.com/pg-sharding/dataplane/router/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/metadata"
)

var (
	cluster = endpoint.New("cluster", 8831)
	nodeA   = endpoint.New("node-a", 8831)
	nodeB   = endpoint.New("node-b", 8831)
)

var okHeader = protocol.ResponseHeader{Code: protocol.CodeOk}

type fixture struct {
	network *rpctest.Network
	cfg     config.ClientCfg
	opts    client.Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	network := rpctest.NewNetwork()
	t.Cleanup(network.Close)

	cfg := config.NewDefaultClientCfg()
	cfg.Router.ClusterAddress = cluster.String()
	cfg.StaticRoutes = map[string]string{
		"cpu": nodeA.String(),
		"mem": nodeB.String(),
	}
	return &fixture{network: network, cfg: cfg}
}

func (f *fixture) client(t *testing.T) *client.Client {
	t.Helper()

	opts := f.opts
	opts.Config = f.cfg
	copts := f.network.ChannelOptions(f.cfg.Rpc)
	opts.DialOptions = copts.DialOptions
	opts.TargetScheme = copts.TargetScheme

	cl, err := client.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })
	return cl
}

func points(t *testing.T, table string, n int) []point.Point {
	t.Helper()

	res := make([]point.Point, 0, n)
	for i := range n {
		p, err := point.NewPoint(table).Tag("host", fmt.Sprintf("h%d", i)).Field("v", i).Build()
		require.NoError(t, err)
		res = append(res, p)
	}
	return res
}

// counter is a storage node accepting every write.
type counter struct {
	calls  atomic.Int64
	points atomic.Int64
}

func (c *counter) write(_ context.Context, req *protocol.WriteRequest) (*protocol.WriteResponse, error) {
	c.calls.Inc()
	c.points.Add(int64(len(req.Points)))
	return &protocol.WriteResponse{Header: okHeader, Success: len(req.Points)}, nil
}

func TestWriteSplitsByEndpoint(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var a, b counter
	f.network.Serve(nodeA, rpctest.Funcs{WriteFunc: a.write})
	f.network.Serve(nodeB, rpctest.Funcs{WriteFunc: b.write})
	cl := f.client(t)

	in := append(points(t, "cpu", 3), points(t, "mem", 2)...)
	res, err := cl.Write(context.Background(), in)
	require.NoError(t, err)

	assert.True(res.IsOk())
	assert.Equal(5, res.GetOk().Success)
	assert.Equal([]string{"cpu", "mem"}, res.GetOk().Tables())
	assert.Equal(int64(3), a.points.Load())
	assert.Equal(int64(2), b.points.Load())

	rates := cl.Rates().Snapshot()
	require.Len(t, rates, 1)
	assert.Equal("Write", rates[0].Method)
	assert.Equal(int64(1), rates[0].Total)
}

func TestWriteChunksByMaxWriteSize(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.cfg.Write.MaxWriteSize = 2
	var a counter
	f.network.Serve(nodeA, rpctest.Funcs{WriteFunc: a.write})
	cl := f.client(t)

	res, err := cl.Write(context.Background(), points(t, "cpu", 5))
	require.NoError(t, err)

	assert.True(res.IsOk())
	assert.Equal(5, res.GetOk().Success)
	assert.Equal(int64(3), a.calls.Load())
}

func TestWriteEmpty(t *testing.T) {
	f := newFixture(t)
	cl := f.client(t)

	res, err := cl.Write(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.IsOk())
	assert.Equal(t, 0, res.GetOk().Success)
}

func TestWriteFailureCarriesPoints(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var a counter
	f.network.Serve(nodeA, rpctest.Funcs{WriteFunc: a.write})
	f.network.Serve(nodeB, rpctest.Funcs{
		WriteFunc: func(context.Context, *protocol.WriteRequest) (*protocol.WriteResponse, error) {
			return &protocol.WriteResponse{
				Header: protocol.ResponseHeader{Code: protocol.CodeBadRequest, Error: "bad points"},
			}, nil
		},
	})
	cl := f.client(t)

	mem := points(t, "mem", 2)
	res, err := cl.Write(context.Background(), append(points(t, "cpu", 3), mem...))
	require.NoError(t, err)
	require.False(t, res.IsOk())

	e := res.GetErr()
	assert.Equal(1, e.Len())
	assert.Equal(int(protocol.CodeBadRequest), e.Code)
	assert.Equal("bad points", e.Message)
	assert.Equal(nodeB, e.ErrTo)
	assert.Equal(mem, e.FailedWrites)
	require.NotNil(t, e.SubOk)
	assert.Equal(3, e.SubOk.Success)
}

func TestWriteUnreachableEndpoint(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.cfg.Rpc.DefaultRpcTimeout = 200 * time.Millisecond
	var a counter
	f.network.Serve(nodeA, rpctest.Funcs{WriteFunc: a.write})
	cl := f.client(t)

	mem := points(t, "mem", 1)
	res, err := cl.Write(context.Background(), append(points(t, "cpu", 1), mem...))
	require.NoError(t, err)
	require.False(t, res.IsOk())

	assert.Equal(nodeB, res.GetErr().ErrTo)
	assert.Equal(mem, res.GetErr().AllFailedWrites())
	assert.Equal(1, res.GetErr().SubOk.Success)
}

func TestWriteCancelKeepsCompletedCalls(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var a counter
	aborted := make(chan struct{})
	f.network.Serve(nodeA, rpctest.Funcs{WriteFunc: a.write})
	f.network.Serve(nodeB, rpctest.Funcs{
		WriteFunc: func(ctx context.Context, _ *protocol.WriteRequest) (*protocol.WriteResponse, error) {
			<-ctx.Done()
			close(aborted)
			return nil, ctx.Err()
		},
	})
	cl := f.client(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	mem := points(t, "mem", 2)
	start := time.Now()
	res, err := cl.Write(ctx, append(points(t, "cpu", 3), mem...))
	require.NoError(t, err)
	assert.Less(time.Since(start), 5*time.Second)
	require.False(t, res.IsOk())

	e := res.GetErr()
	assert.Equal(1, e.Len())
	assert.Equal(nodeB, e.ErrTo)
	assert.Equal(mem, e.AllFailedWrites())
	require.NotNil(t, e.SubOk)
	assert.Equal(3, e.SubOk.Success)
	assert.Equal([]string{"cpu"}, e.SubOk.Tables())

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("pending call on node-b was not cancelled")
	}
}

// requestIDs records the request id header of every write it accepts.
type requestIDs struct {
	mu  sync.Mutex
	ids []string
}

func (r *requestIDs) write(ctx context.Context, req *protocol.WriteRequest) (*protocol.WriteResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	r.mu.Lock()
	r.ids = append(r.ids, md.Get(rpc.RequestIDKey)...)
	r.mu.Unlock()
	return &protocol.WriteResponse{Header: okHeader, Success: len(req.Points)}, nil
}

func TestWriteSharesRequestID(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var ids requestIDs
	f.network.Serve(nodeA, rpctest.Funcs{WriteFunc: ids.write})
	f.network.Serve(nodeB, rpctest.Funcs{WriteFunc: ids.write})
	cl := f.client(t)

	_, err := cl.Write(context.Background(), append(points(t, "cpu", 1), points(t, "mem", 1)...))
	require.NoError(t, err)
	_, err = cl.Write(context.Background(), points(t, "cpu", 1))
	require.NoError(t, err)

	require.Len(t, ids.ids, 3)
	assert.NotEmpty(ids.ids[0])
	assert.Equal(ids.ids[0], ids.ids[1], "one logical write, one request id")
	assert.NotEqual(ids.ids[0], ids.ids[2])

	ctx := rpc.WithCallContext(context.Background(), rpc.NewContext().With(rpc.RequestIDKey, "req-1"))
	_, err = cl.Write(ctx, points(t, "mem", 1))
	require.NoError(t, err)
	assert.Equal("req-1", ids.ids[3])
}

func TestWriteRetriesInvalidRoute(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)

	f := newFixture(t)
	var b counter
	f.network.Serve(nodeA, rpctest.Funcs{
		WriteFunc: func(_ context.Context, req *protocol.WriteRequest) (*protocol.WriteResponse, error) {
			return &protocol.WriteResponse{
				Header: protocol.ResponseHeader{Code: protocol.CodeInvalidRoute, Error: "moved"},
			}, nil
		},
	})
	f.network.Serve(nodeB, rpctest.Funcs{WriteFunc: b.write})

	router := mock_route.NewMockRouter(ctrl)
	gomock.InOrder(
		router.EXPECT().RouteFor(gomock.Any(), []string{"mem"}).
			Return(map[string]route.Route{"mem": route.NewRoute("mem", nodeA)}, nil),
		router.EXPECT().ClearRoutes("mem"),
		router.EXPECT().RouteFor(gomock.Any(), []string{"mem"}).
			Return(map[string]route.Route{"mem": route.NewRoute("mem", nodeB)}, nil),
	)
	router.EXPECT().ClusterAddress().Return(cluster).AnyTimes()
	f.opts.Router = router
	cl := f.client(t)

	res, err := cl.Write(context.Background(), points(t, "mem", 4))
	require.NoError(t, err)

	assert.True(res.IsOk())
	assert.Equal(4, res.GetOk().Success)
	assert.Equal(int64(4), b.points.Load())
}

func TestWriteRetryGivesUp(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var calls atomic.Int64
	f.network.Serve(nodeA, rpctest.Funcs{
		WriteFunc: func(_ context.Context, req *protocol.WriteRequest) (*protocol.WriteResponse, error) {
			calls.Inc()
			return &protocol.WriteResponse{
				Header: protocol.ResponseHeader{Code: protocol.CodeShouldRetry, Error: "busy"},
			}, nil
		},
	})
	f.cfg.Write.MaxRetries = 2
	cl := f.client(t)

	in := points(t, "cpu", 2)
	res, err := cl.Write(context.Background(), in)
	require.NoError(t, err)
	require.False(t, res.IsOk())

	assert.Equal(int64(3), calls.Load())
	assert.Equal(int(protocol.CodeShouldRetry), res.GetErr().Code)
	assert.Equal(in, res.GetErr().AllFailedWrites())
}

func TestWriteRoutingError(t *testing.T) {
	ctrl := gomock.NewController(t)

	f := newFixture(t)
	router := mock_route.NewMockRouter(ctrl)
	router.EXPECT().ClusterAddress().Return(cluster).AnyTimes()
	router.EXPECT().RouteFor(gomock.Any(), []string{"disk"}).Return(map[string]route.Route{}, nil)
	f.opts.Router = router
	cl := f.client(t)

	_, err := cl.Write(context.Background(), points(t, "disk", 1))
	assert.True(t, dperror.IsCode(err, dperror.DP_ROUTING_ERROR))
}

func queryNode(name string, calls *atomic.Int64) rpctest.Funcs {
	return rpctest.Funcs{
		SqlQueryFunc: func(_ context.Context, req *protocol.SqlQueryRequest) (*protocol.SqlQueryResponse, error) {
			if calls != nil {
				calls.Inc()
			}
			rows := make([]protocol.Row, 0, len(req.Tables))
			for _, t := range req.Tables {
				rows = append(rows, protocol.Row{Columns: []protocol.Column{
					{Name: "node", Value: name},
					{Name: "table", Value: t},
				}})
			}
			return &protocol.SqlQueryResponse{Header: okHeader, AffectedRows: len(rows), Rows: rows}, nil
		},
	}
}

func TestSqlQueryFansOut(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.network.Serve(nodeA, queryNode("a", nil))
	f.network.Serve(nodeB, queryNode("b", nil))
	cl := f.client(t)

	res, err := cl.SqlQuery(context.Background(), "SELECT count(*) FROM cpu", "cpu", "mem")
	require.NoError(t, err)
	require.True(t, res.IsOk())

	q := res.GetOk()
	assert.Equal(2, q.AffectedRows)
	assert.Equal(2, q.RowCount())
	nodes := map[any]bool{}
	for _, r := range q.Rows {
		v, _ := r.Get("node")
		nodes[v] = true
	}
	assert.Equal(map[any]bool{"a": true, "b": true}, nodes)
}

func TestSqlQueryParsesTables(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var calls atomic.Int64
	f.network.Serve(nodeA, queryNode("a", &calls))
	cl := f.client(t)

	res, err := cl.SqlQuery(context.Background(), "SELECT * FROM cpu WHERE host = 'h1'")
	require.NoError(t, err)
	require.True(t, res.IsOk())

	v, _ := res.GetOk().Rows[0].Get("table")
	assert.Equal("cpu", v)
	assert.Equal(int64(1), calls.Load())
}

func TestSqlQueryWithoutTablesGoesToCluster(t *testing.T) {
	ctrl := gomock.NewController(t)

	f := newFixture(t)
	f.network.Serve(cluster, queryNode("cluster", nil))
	parser := mock_sqlparse.NewMockParser(ctrl)
	parser.EXPECT().Parse("SHOW DATABASES").Return(&sqlparse.Statement{Sql: "SHOW DATABASES", Type: sqlparse.Show}, nil)
	f.opts.Parser = parser
	cl := f.client(t)

	res, err := cl.SqlQuery(context.Background(), "SHOW DATABASES")
	require.NoError(t, err)
	require.True(t, res.IsOk())
	assert.Equal(t, 0, res.GetOk().RowCount())
}

func TestSqlQueryParseError(t *testing.T) {
	f := newFixture(t)
	cl := f.client(t)

	_, err := cl.SqlQuery(context.Background(), "   ")
	assert.True(t, dperror.IsCode(err, dperror.DP_SQL_PARSE))
}

func flakyQueryNode(failures int64, calls *atomic.Int64) rpctest.Funcs {
	good := queryNode("a", nil)
	return rpctest.Funcs{
		SqlQueryFunc: func(ctx context.Context, req *protocol.SqlQueryRequest) (*protocol.SqlQueryResponse, error) {
			if calls.Inc() <= failures {
				return &protocol.SqlQueryResponse{
					Header: protocol.ResponseHeader{Code: protocol.CodeShouldRetry, Error: "busy"},
				}, nil
			}
			return good.SqlQuery(ctx, req)
		},
	}
}

func TestSqlQueryRetriesIdempotent(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var calls atomic.Int64
	f.network.Serve(nodeA, flakyQueryNode(1, &calls))
	cl := f.client(t)

	res, err := cl.SqlQuery(context.Background(), "SELECT * FROM cpu", "cpu")
	require.NoError(t, err)

	assert.True(res.IsOk())
	assert.Equal(int64(2), calls.Load())
}

func TestSqlQueryDoesNotRetryWrites(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var calls atomic.Int64
	f.network.Serve(nodeA, flakyQueryNode(1, &calls))
	cl := f.client(t)

	res, err := cl.SqlQuery(context.Background(), "INSERT INTO cpu VALUES (1)", "cpu")
	require.NoError(t, err)

	require.False(t, res.IsOk())
	assert.Equal(int(protocol.CodeShouldRetry), res.GetErr().Code)
	assert.Equal("INSERT INTO cpu VALUES (1)", res.GetErr().Sql)
	assert.Equal(int64(1), calls.Load())
}

func TestStreamWrite(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	var mu sync.Mutex
	var got []*protocol.WriteRequest
	f.network.Serve(nodeA, rpctest.Funcs{
		StreamWriteFunc: func(_ context.Context, recv func() (*protocol.WriteRequest, error)) (*protocol.WriteResponse, error) {
			reqs, err := rpctest.DrainWrites(recv)
			if err != nil {
				return nil, err
			}
			n := 0
			for _, r := range reqs {
				n += len(r.Points)
			}
			mu.Lock()
			got = reqs
			mu.Unlock()
			return &protocol.WriteResponse{Header: okHeader, Success: n}, nil
		},
	})
	cl := f.client(t)

	w, err := cl.StreamWrite(context.Background(), "cpu")
	require.NoError(t, err)

	in := points(t, "cpu", 3)
	assert.NoError(w.Write(in[:2]...))
	assert.NoError(w.Write(in[2]))
	assert.True(dperror.IsCode(w.Write(points(t, "mem", 1)...), dperror.DP_ROUTING_ERROR))

	res := w.Completed()
	require.True(t, res.IsOk())
	assert.Equal(3, res.GetOk().Success)
	assert.True(res.GetOk().HasTable("cpu"))
	assert.Equal(res, w.Completed())

	mu.Lock()
	assert.Len(got, 2)
	mu.Unlock()

	assert.True(dperror.IsCode(w.Write(in...), dperror.DP_STREAM_CLOSED))
}

func TestStreamWriteNoRoute(t *testing.T) {
	f := newFixture(t)
	cl := f.client(t)

	_, err := cl.StreamWrite(context.Background(), "disk")
	assert.Error(t, err)
}

func streamNode(batches int, failAt int) rpctest.Funcs {
	return rpctest.Funcs{
		StreamSqlQueryFunc: func(_ context.Context, req *protocol.SqlQueryRequest, send func(*protocol.SqlQueryResponse) error) error {
			for i := range batches {
				if i == failAt {
					return send(&protocol.SqlQueryResponse{
						Header: protocol.ResponseHeader{Code: protocol.CodeInternal, Error: "disk failure"},
					})
				}
				resp := &protocol.SqlQueryResponse{Header: okHeader}
				for j := range 2 {
					resp.Rows = append(resp.Rows, protocol.Row{Columns: []protocol.Column{
						{Name: "id", Value: fmt.Sprintf("%d-%d", i, j)},
					}})
				}
				if err := send(resp); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func TestBlockingStreamSqlQuery(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.network.Serve(nodeA, streamNode(3, -1))
	cl := f.client(t)

	it, err := cl.BlockingStreamSqlQuery(context.Background(), "SELECT id FROM cpu", time.Second, "cpu")
	require.NoError(t, err)
	defer it.Close()

	var ids []any
	for {
		has, err := it.HasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		row, err := it.Next()
		require.NoError(t, err)
		v, _ := row.Get("id")
		ids = append(ids, v)
	}
	assert.Equal([]any{"0-0", "0-1", "1-0", "1-1", "2-0", "2-1"}, ids)
}

func TestBlockingStreamSqlQueryError(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.network.Serve(nodeA, streamNode(3, 1))
	cl := f.client(t)

	it, err := cl.BlockingStreamSqlQuery(context.Background(), "SELECT id FROM cpu", time.Second, "cpu")
	require.NoError(t, err)
	defer it.Close()

	for range 2 {
		has, err := it.HasNext()
		require.NoError(t, err)
		require.True(t, has)
		_, err = it.Next()
		require.NoError(t, err)
	}

	_, err = it.HasNext()
	var qerr *result.Err
	require.ErrorAs(t, err, &qerr)
	assert.Equal(int(protocol.CodeInternal), qerr.Code)
	assert.Equal(nodeA, qerr.ErrTo)
}

func TestStreamSqlQueryObserver(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.network.Serve(nodeA, streamNode(2, -1))
	cl := f.client(t)

	var mu sync.Mutex
	rows := 0
	done := make(chan struct{})
	err := cl.StreamSqlQuery(context.Background(), "SELECT id FROM cpu", stream.ObserverFuncs[*result.SqlQueryOk]{
		Next: func(q *result.SqlQueryOk) {
			mu.Lock()
			rows += q.RowCount()
			mu.Unlock()
		},
		Completed: func() { close(done) },
	}, "cpu")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not complete")
	}
	mu.Lock()
	assert.Equal(4, rows)
	mu.Unlock()
}

func TestStreamSqlQuerySpansEndpoints(t *testing.T) {
	f := newFixture(t)
	cl := f.client(t)

	err := cl.StreamSqlQuery(context.Background(), "SELECT 1", stream.ObserverFuncs[*result.SqlQueryOk]{}, "cpu", "mem")
	assert.True(t, dperror.IsCode(err, dperror.DP_ROUTING_ERROR))
}

func TestClientNeedsClusterAddress(t *testing.T) {
	cfg := config.NewDefaultClientCfg()
	_, err := client.New(client.Options{Config: cfg})
	assert.True(t, dperror.IsCode(err, dperror.DP_INVALID_CONFIG))
}

func TestClientCloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	cl := f.client(t)

	assert.NoError(t, cl.Close())
	assert.NoError(t, cl.Close())
}
