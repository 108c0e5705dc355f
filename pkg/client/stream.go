package client

import (
	"context"
	"sync"
	"time"

	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/models/point"
	"github.com/pg-sharding/dataplane/pkg/models/result"
	"github.com/pg-sharding/dataplane/pkg/protocol"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/pg-sharding/dataplane/pkg/stream"
	"github.com/pg-sharding/dataplane/router/statistics"
)

// StreamWriter sends points of one table over a single client stream.
type StreamWriter struct {
	table  string
	ep     endpoint.Endpoint
	stream rpc.ClientStream
	start  time.Time

	mu   sync.Mutex
	sent int
	done bool
	res  WriteResult
}

// StreamWrite opens a client stream to the endpoint owning table. The stream
// lives as long as ctx.
func (c *Client) StreamWrite(ctx context.Context, table string) (*StreamWriter, error) {
	c.rates.OnCall("StreamWrite")
	ctx = rpc.WithRequestID(ctx)
	routes, err := c.router.RouteFor(ctx, []string{table})
	if err != nil {
		return nil, err
	}
	r, ok := routes[table]
	if !ok {
		return nil, dperror.Newf(dperror.DP_ROUTING_ERROR, "no route for table %q", table)
	}

	ch, err := c.channel(r.Endpoint)
	if err != nil {
		return nil, err
	}
	cs, err := ch.ClientStreaming(ctx, c.method(&protocol.WriteRequest{}, rpc.ClientStreaming))
	if err != nil {
		return nil, dperror.Wrap(dperror.DP_RPC_ERROR, err)
	}

	dplog.Zero.Debug().
		Str("table", table).
		Str("endpoint", r.Endpoint.String()).
		Msg("client: stream write opened")
	return &StreamWriter{
		table:  table,
		ep:     r.Endpoint,
		stream: cs,
		start:  time.Now(),
	}, nil
}

func (w *StreamWriter) Write(points ...point.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return dperror.New(dperror.DP_STREAM_CLOSED, "stream write already completed")
	}
	for _, p := range points {
		if p.Table != w.table {
			return dperror.Newf(dperror.DP_ROUTING_ERROR, "point of table %q written to stream of table %q", p.Table, w.table)
		}
	}
	if len(points) == 0 {
		return nil
	}
	if err := w.stream.Send(&protocol.WriteRequest{Points: points}); err != nil {
		return dperror.Wrap(dperror.DP_RPC_ERROR, err)
	}
	w.sent += len(points)
	return nil
}

// Completed closes the stream and waits for the server's answer. Later calls
// return the same outcome.
func (w *StreamWriter) Completed() WriteResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return w.res
	}
	w.done = true

	resp := &protocol.WriteResponse{}
	err := w.stream.CloseAndRecv(resp)
	switch {
	case err != nil:
		w.res = result.WriteErr(int(codeOf(err)), err.Error(), w.ep, nil).Result()
	case !resp.Header.IsOk():
		w.res = result.WriteErr(int(resp.Header.Code), resp.Header.Error, w.ep, nil).Result()
	default:
		w.res = result.NewWriteOk(resp.Success, resp.Failed, w.table).Result()
	}

	var callErr error
	if !w.res.IsOk() {
		callErr = w.res.GetErr()
	}
	statistics.RecordCall(statistics.StatisticsTypeLogical, "StreamWrite", time.Since(w.start), callErr)
	dplog.Zero.Debug().
		Str("table", w.table).
		Int("sent", w.sent).
		Bool("ok", w.res.IsOk()).
		Msg("client: stream write completed")
	return w.res
}

// StreamSqlQuery streams the answers of sql into observer from a background
// goroutine. Every table must be owned by one endpoint. The returned error
// covers only opening the stream; later failures reach observer.OnError.
func (c *Client) StreamSqlQuery(ctx context.Context, sql string, observer stream.Observer[*result.SqlQueryOk], tables ...string) error {
	c.rates.OnCall("StreamSqlQuery")
	ctx = rpc.WithRequestID(ctx)
	stmt, err := c.statement(sql, tables)
	if err != nil {
		return err
	}
	byEndpoint, err := c.targets(ctx, stmt.Tables)
	if err != nil {
		return err
	}
	if len(byEndpoint) != 1 {
		return dperror.Newf(dperror.DP_ROUTING_ERROR, "streaming query spans %d endpoints", len(byEndpoint))
	}
	var ep endpoint.Endpoint
	for e := range byEndpoint {
		ep = e
	}

	ch, err := c.channel(ep)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	req := &protocol.SqlQueryRequest{Tables: stmt.Tables, Sql: sql}
	ss, err := ch.ServerStreaming(ctx, c.method(req, rpc.ServerStreaming), req)
	if err != nil {
		cancel()
		return dperror.Wrap(dperror.DP_RPC_ERROR, err)
	}

	start := time.Now()
	go func() {
		defer cancel()
		err := pump(ss, ep, sql, observer)
		statistics.RecordCall(statistics.StatisticsTypeLogical, "StreamSqlQuery", time.Since(start), err)
	}()
	return nil
}

// pump forwards responses until the stream ends and reports how it ended.
func pump(ss rpc.ServerStream, ep endpoint.Endpoint, sql string, observer stream.Observer[*result.SqlQueryOk]) error {
	for {
		resp := &protocol.SqlQueryResponse{}
		err := ss.Recv(resp)
		if isEOF(err) {
			observer.OnCompleted()
			return nil
		}
		if err != nil {
			e := result.QueryErr(int(codeOf(err)), err.Error(), ep, sql)
			observer.OnError(e)
			return e
		}
		if !resp.Header.IsOk() {
			e := result.QueryErr(int(resp.Header.Code), resp.Header.Error, ep, sql)
			observer.OnError(e)
			return e
		}
		observer.OnNext(result.NewSqlQueryOk(sql, resp.AffectedRows, convertRows(resp.Rows)))
	}
}

// BlockingStreamSqlQuery is StreamSqlQuery read row by row; each HasNext waits
// at most timeout, DefaultRpcTimeout when timeout is not positive.
func (c *Client) BlockingStreamSqlQuery(ctx context.Context, sql string, timeout time.Duration, tables ...string) (*stream.FlatIterator[*result.SqlQueryOk, result.Row], error) {
	timeout = config.ValueOrDefaultDuration(timeout, config.ValueOrDefaultDuration(c.cfg.Rpc.DefaultRpcTimeout, config.DefaultRpcTimeout))

	it := stream.NewBlockingIterator[*result.SqlQueryOk](timeout, stream.DefaultCapacity)
	if err := c.StreamSqlQuery(ctx, sql, it.Observer(), tables...); err != nil {
		return nil, err
	}
	return stream.NewFlatIterator(it, func(q *result.SqlQueryOk) []result.Row {
		return q.Rows
	}), nil
}
