// Package protocol holds the messages exchanged with storage nodes.
package protocol

import (
	"github.com/pg-sharding/dataplane/pkg/models/point"
)

type Code uint32

const (
	CodeOk           Code = 200
	CodeInvalidRoute Code = 302
	CodeShouldRetry  Code = 310
	CodeBadRequest   Code = 400
	CodeInternal     Code = 500
	CodeFlowControl  Code = 503
)

func (c Code) String() string {
	switch c {
	case CodeOk:
		return "OK"
	case CodeInvalidRoute:
		return "INVALID_ROUTE"
	case CodeShouldRetry:
		return "SHOULD_RETRY"
	case CodeBadRequest:
		return "BAD_REQUEST"
	case CodeInternal:
		return "INTERNAL_ERROR"
	case CodeFlowControl:
		return "FLOW_CONTROL"
	default:
		return "UNKNOWN"
	}
}

// Retryable reports whether the failed portion of a request may be resent
// after refreshing its routes.
func (c Code) Retryable() bool {
	return c == CodeInvalidRoute || c == CodeShouldRetry
}

type ResponseHeader struct {
	Code  Code   `json:"code"`
	Error string `json:"error,omitempty"`
}

func (h ResponseHeader) IsOk() bool {
	return h.Code == CodeOk
}

type RequestContext struct {
	Database string `json:"database,omitempty"`
}

type RouteRequest struct {
	Context RequestContext `json:"context"`
	Tables  []string       `json:"tables"`
}

type RouteEntry struct {
	Table string `json:"table"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
}

type RouteResponse struct {
	Header ResponseHeader `json:"header"`
	Routes []RouteEntry   `json:"routes"`
}

type WriteRequest struct {
	Context RequestContext `json:"context"`
	Points  []point.Point  `json:"points"`
}

type WriteResponse struct {
	Header  ResponseHeader `json:"header"`
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
}

type SqlQueryRequest struct {
	Context RequestContext `json:"context"`
	Tables  []string       `json:"tables"`
	Sql     string         `json:"sql"`
}

type Column struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type Row struct {
	Columns []Column `json:"columns"`
}

type SqlQueryResponse struct {
	Header       ResponseHeader `json:"header"`
	AffectedRows int            `json:"affected_rows"`
	Rows         []Row          `json:"rows"`
}
