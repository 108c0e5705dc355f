package client

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pg-sharding/dataplane/pkg/config"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/point"
	"github.com/pg-sharding/dataplane/pkg/models/result"
	"github.com/pg-sharding/dataplane/pkg/protocol"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/pg-sharding/dataplane/router/route"
	"github.com/pg-sharding/dataplane/router/statistics"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type WriteResult = result.Result[*result.WriteOk, *result.Err]

// Write sends points to the endpoints owning their tables, MaxWriteSize points
// per call. Failed calls become Err nodes carrying their points; portions
// failing with a retryable code are resent after their routes are refreshed.
//
// The returned error is set only when the request could not be routed at all.
func (c *Client) Write(ctx context.Context, points []point.Point) (WriteResult, error) {
	span, ctx := opentracing.StartSpanFromContext(rpc.WithRequestID(ctx), "write")
	defer span.Finish()

	c.rates.OnCall("Write")
	start := time.Now()
	res, err := c.writeWithRetry(ctx, points)
	callErr := err
	if err == nil && !res.IsOk() {
		callErr = res.GetErr()
	}
	if callErr != nil {
		ext.Error.Set(span, true)
	}
	statistics.RecordCall(statistics.StatisticsTypeLogical, "Write", time.Since(start), callErr)
	return res, err
}

func (c *Client) writeWithRetry(ctx context.Context, points []point.Point) (WriteResult, error) {
	res, err := c.writeOnce(ctx, points)
	if err != nil || res.IsOk() || c.cfg.Write.MaxRetries <= 0 {
		return res, err
	}

	// the first attempt of retry.Do is already a retry
	backoff := retry.WithMaxRetries(uint64(c.cfg.Write.MaxRetries-1), retry.NewFibonacci(retryBackoff))
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		kept, again := splitRetryable(res.GetErr())
		if len(again) == 0 {
			return nil
		}

		tables := point.Tables(again)
		c.router.ClearRoutes(tables...)
		dplog.Zero.Info().
			Strs("tables", tables).
			Int("points", len(again)).
			Msg("client: retrying failed writes")

		retried, err := c.writeOnce(ctx, again)
		if err != nil {
			return err
		}
		res = result.Combine(kept, retried)
		if !res.IsOk() && hasRetryable(res.GetErr()) {
			return retry.RetryableError(res.GetErr())
		}
		return nil
	})
	// exhausted or cancelled retries leave the last combined outcome in res
	return res, nil
}

// writeOnce performs one routed fan-out without retries.
func (c *Client) writeOnce(ctx context.Context, points []point.Point) (WriteResult, error) {
	if len(points) == 0 {
		return result.EmptyWriteOk().Result(), nil
	}

	routes, err := c.router.RouteFor(ctx, point.Tables(points))
	if err != nil {
		return WriteResult{}, err
	}
	groups, err := route.SplitByRoute(points, routes)
	if err != nil {
		return WriteResult{}, err
	}

	type call struct {
		ep    endpoint.Endpoint
		batch []point.Point
	}
	size := config.ValueOrDefaultInt(c.cfg.Write.MaxWriteSize, config.DefaultMaxWriteSize)
	var calls []call
	for _, ep := range sortedEndpoints(groups) {
		for _, batch := range route.Chunk(groups[ep], size) {
			calls = append(calls, call{ep: ep, batch: batch})
		}
	}

	results := make([]WriteResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, cl := range calls {
		g.Go(func() error {
			results[i] = c.writeTo(gctx, cl.ep, cl.batch)
			return nil
		})
	}
	_ = g.Wait()

	return result.CombineAll(results[0], results[1:]...), nil
}

// writeTo is one physical write call.
func (c *Client) writeTo(ctx context.Context, ep endpoint.Endpoint, batch []point.Point) WriteResult {
	ch, err := c.channel(ep)
	if err != nil {
		return result.WriteErr(int(protocol.CodeInternal), err.Error(), ep, batch).Result()
	}

	req := &protocol.WriteRequest{Points: batch}
	resp := &protocol.WriteResponse{}
	if err := ch.Unary(ctx, c.method(req, rpc.Unary), req, resp); err != nil {
		dplog.Zero.Debug().
			Err(err).
			Str("endpoint", ep.String()).
			Int("points", len(batch)).
			Msg("client: write failed")
		return result.WriteErr(int(codeOf(err)), err.Error(), ep, batch).Result()
	}
	if !resp.Header.IsOk() {
		return result.WriteErr(int(resp.Header.Code), resp.Header.Error, ep, batch).Result()
	}
	return result.NewWriteOk(resp.Success, resp.Failed, point.Tables(batch)...).Result()
}

// splitRetryable separates the points of retryable failures from the rest of
// the chain. kept holds the successes and the failures that stay final.
func splitRetryable(e *result.Err) (kept WriteResult, again []point.Point) {
	ok := e.SubOk
	if ok == nil {
		ok = result.EmptyWriteOk()
	}
	kept = ok.Result()
	for n := range e.All() {
		if protocol.Code(n.Code).Retryable() {
			again = append(again, n.FailedWrites...)
			continue
		}
		kept = result.Combine(kept, result.WriteErr(n.Code, n.Message, n.ErrTo, n.FailedWrites).Result())
	}
	return kept, again
}

func hasRetryable(e *result.Err) bool {
	for n := range e.All() {
		if protocol.Code(n.Code).Retryable() {
			return true
		}
	}
	return false
}

func sortedEndpoints[R any](groups map[endpoint.Endpoint][]R) []endpoint.Endpoint {
	eps := make([]endpoint.Endpoint, 0, len(groups))
	for ep := range groups {
		eps = append(eps, ep)
	}
	endpoint.Sort(eps)
	return eps
}
