package client

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/endpoint"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pg-sharding/dataplane/pkg/models/result"
	"github.com/pg-sharding/dataplane/pkg/protocol"
	"github.com/pg-sharding/dataplane/pkg/rpc"
	"github.com/pg-sharding/dataplane/pkg/sqlparse"
	"github.com/pg-sharding/dataplane/router/route"
	"github.com/pg-sharding/dataplane/router/statistics"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type QueryResult = result.Result[*result.SqlQueryOk, *result.Err]

// SqlQuery runs sql on every endpoint owning one of tables and combines the
// answers. Without tables they are taken from the statement itself; a statement
// touching no table goes to the cluster address. Idempotent statements are
// rerun after a retryable failure.
//
// The returned error is set when the statement cannot be parsed or routed.
func (c *Client) SqlQuery(ctx context.Context, sql string, tables ...string) (QueryResult, error) {
	span, ctx := opentracing.StartSpanFromContext(rpc.WithRequestID(ctx), "sql query")
	defer span.Finish()

	c.rates.OnCall("SqlQuery")
	start := time.Now()
	res, err := c.sqlQuery(ctx, sql, tables)
	callErr := err
	if err == nil && !res.IsOk() {
		callErr = res.GetErr()
	}
	if callErr != nil {
		ext.Error.Set(span, true)
	}
	statistics.RecordCall(statistics.StatisticsTypeLogical, "SqlQuery", time.Since(start), callErr)
	return res, err
}

func (c *Client) sqlQuery(ctx context.Context, sql string, tables []string) (QueryResult, error) {
	stmt, err := c.statement(sql, tables)
	if err != nil {
		return QueryResult{}, err
	}

	res, err := c.queryOnce(ctx, stmt)
	if err != nil || res.IsOk() || !stmt.Type.Idempotent() || c.cfg.Query.MaxRetries <= 0 || !hasRetryable(res.GetErr()) {
		return res, err
	}

	backoff := retry.WithMaxRetries(uint64(c.cfg.Query.MaxRetries-1), retry.NewFibonacci(retryBackoff))
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		c.router.ClearRoutes(stmt.Tables...)
		dplog.Zero.Info().
			Str("statement", stmt.Type.String()).
			Strs("tables", stmt.Tables).
			Msg("client: retrying query")

		again, err := c.queryOnce(ctx, stmt)
		if err != nil {
			return err
		}
		res = again
		if !res.IsOk() && hasRetryable(res.GetErr()) {
			return retry.RetryableError(res.GetErr())
		}
		return nil
	})
	return res, nil
}

// statement classifies sql. Explicit tables win over parsed ones, and an
// unparsable statement is still sent when its tables are given.
func (c *Client) statement(sql string, tables []string) (*sqlparse.Statement, error) {
	stmt, err := c.parser.Parse(sql)
	if err != nil {
		if len(tables) == 0 {
			return nil, err
		}
		dplog.Zero.Debug().Err(err).Msg("client: sending unparsed statement")
		stmt = &sqlparse.Statement{Sql: sql, Type: sqlparse.Unknown}
	}
	if len(tables) > 0 {
		stmt.Tables = tables
	}
	return stmt, nil
}

// targets groups tables by the endpoint owning them.
func (c *Client) targets(ctx context.Context, tables []string) (map[endpoint.Endpoint][]string, error) {
	if len(tables) == 0 {
		return map[endpoint.Endpoint][]string{c.router.ClusterAddress(): nil}, nil
	}
	routes, err := c.router.RouteFor(ctx, tables)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if _, ok := routes[t]; !ok {
			return nil, dperror.Newf(dperror.DP_ROUTING_ERROR, "no route for table %q", t)
		}
	}
	return route.ReverseRoutes(routes), nil
}

func (c *Client) queryOnce(ctx context.Context, stmt *sqlparse.Statement) (QueryResult, error) {
	byEndpoint, err := c.targets(ctx, stmt.Tables)
	if err != nil {
		return QueryResult{}, err
	}

	eps := sortedEndpoints(byEndpoint)
	results := make([]QueryResult, len(eps))
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range eps {
		g.Go(func() error {
			results[i] = c.queryTo(gctx, ep, stmt.Sql, byEndpoint[ep])
			return nil
		})
	}
	_ = g.Wait()

	return result.CombineAll(results[0], results[1:]...), nil
}

// queryTo is one physical query call.
func (c *Client) queryTo(ctx context.Context, ep endpoint.Endpoint, sql string, tables []string) QueryResult {
	ch, err := c.channel(ep)
	if err != nil {
		return result.QueryErr(int(protocol.CodeInternal), err.Error(), ep, sql).QueryResult()
	}

	req := &protocol.SqlQueryRequest{Tables: tables, Sql: sql}
	resp := &protocol.SqlQueryResponse{}
	if err := ch.Unary(ctx, c.method(req, rpc.Unary), req, resp); err != nil {
		dplog.Zero.Debug().
			Err(err).
			Str("endpoint", ep.String()).
			Msg("client: query failed")
		return result.QueryErr(int(codeOf(err)), err.Error(), ep, sql).QueryResult()
	}
	if !resp.Header.IsOk() {
		return result.QueryErr(int(resp.Header.Code), resp.Header.Error, ep, sql).QueryResult()
	}
	return result.NewSqlQueryOk(sql, resp.AffectedRows, convertRows(resp.Rows)).Result()
}

func convertRows(rows []protocol.Row) []result.Row {
	if len(rows) == 0 {
		return nil
	}
	res := make([]result.Row, 0, len(rows))
	for _, r := range rows {
		cols := make([]result.Column, 0, len(r.Columns))
		for _, col := range r.Columns {
			cols = append(cols, result.Column{Name: col.Name, Value: col.Value})
		}
		res = append(res, result.NewRow(cols...))
	}
	return res
}
