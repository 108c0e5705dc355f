package config

import (
	"time"

	"github.com/pg-sharding/dataplane/pkg/models/dperror"
)

type RouteMode string

const (
	// RouteModeDirect sends each physical call straight to the node owning the table.
	RouteModeDirect = RouteMode("direct")
	// RouteModeProxy sends everything to the cluster address, which forwards internally.
	RouteModeProxy = RouteMode("proxy")
)

type LimitKind string

const (
	LimitGradient = LimitKind("gradient")
	LimitVegas    = LimitKind("vegas")
	LimitNone     = LimitKind("none")
)

const (
	DefaultMaxCachedSize = 10000
	DefaultGcPeriod      = 60 * time.Second
	DefaultRefreshPeriod = 30 * time.Second

	DefaultRpcTimeout            = 10 * time.Second
	DefaultMaxInboundMessageSize = 64 * 1024 * 1024
	DefaultFlowControlWindow     = 64 * 1024 * 1024
	DefaultIdleTimeout           = 5 * time.Minute
	DefaultKeepAliveTimeout      = 3 * time.Second

	DefaultInitialLimit  = 64
	DefaultMaxLimit      = 1024
	DefaultLongRttWindow = 100
	DefaultSmoothing     = 0.2

	DefaultMaxRetries   = 1
	DefaultMaxWriteSize = 512
)

type RouterOptions struct {
	ClusterAddress string        `json:"cluster_address" toml:"cluster_address" yaml:"cluster_address"`
	RouteMode      RouteMode     `json:"route_mode" toml:"route_mode" yaml:"route_mode"`
	MaxCachedSize  int           `json:"max_cached_size" toml:"max_cached_size" yaml:"max_cached_size"`
	GcPeriod       time.Duration `json:"gc_period" toml:"gc_period" yaml:"gc_period"`
	RefreshPeriod  time.Duration `json:"refresh_period" toml:"refresh_period" yaml:"refresh_period"`
}

func NewDefaultRouterOptions() RouterOptions {
	return RouterOptions{
		RouteMode:     RouteModeDirect,
		MaxCachedSize: DefaultMaxCachedSize,
		GcPeriod:      DefaultGcPeriod,
		RefreshPeriod: DefaultRefreshPeriod,
	}
}

func (o RouterOptions) Copy() RouterOptions {
	return o
}

func (o RouterOptions) Validate() error {
	if o.ClusterAddress == "" {
		return dperror.New(dperror.DP_INVALID_CONFIG, "router: cluster address is required")
	}
	switch o.RouteMode {
	case RouteModeDirect, RouteModeProxy, "":
	default:
		return dperror.Newf(dperror.DP_INVALID_CONFIG, "router: unknown route mode %q", o.RouteMode)
	}
	if o.MaxCachedSize < 0 {
		return dperror.New(dperror.DP_INVALID_CONFIG, "router: max cached size must not be negative")
	}
	return nil
}

type RpcOptions struct {
	User     string `json:"user" toml:"user" yaml:"user"`
	Password string `json:"password" toml:"password" yaml:"password"`

	DefaultRpcTimeout     time.Duration `json:"default_rpc_timeout" toml:"default_rpc_timeout" yaml:"default_rpc_timeout"`
	MaxInboundMessageSize int           `json:"max_inbound_message_size" toml:"max_inbound_message_size" yaml:"max_inbound_message_size"`
	FlowControlWindow     int32         `json:"flow_control_window" toml:"flow_control_window" yaml:"flow_control_window"`
	IdleTimeout           time.Duration `json:"idle_timeout" toml:"idle_timeout" yaml:"idle_timeout"`
	// Zero disables keepalive pings.
	KeepAliveTime         time.Duration `json:"keep_alive_time" toml:"keep_alive_time" yaml:"keep_alive_time"`
	KeepAliveTimeout      time.Duration `json:"keep_alive_timeout" toml:"keep_alive_timeout" yaml:"keep_alive_timeout"`
	KeepAliveWithoutCalls bool          `json:"keep_alive_without_calls" toml:"keep_alive_without_calls" yaml:"keep_alive_without_calls"`
	ConnectionMaxAge      time.Duration `json:"connection_max_age" toml:"connection_max_age" yaml:"connection_max_age"`

	LimitKind        LimitKind `json:"limit_kind" toml:"limit_kind" yaml:"limit_kind"`
	InitialLimit     int       `json:"initial_limit" toml:"initial_limit" yaml:"initial_limit"`
	MaxLimit         int       `json:"max_limit" toml:"max_limit" yaml:"max_limit"`
	LongRttWindow    int       `json:"long_rtt_window" toml:"long_rtt_window" yaml:"long_rtt_window"`
	Smoothing        float64   `json:"smoothing" toml:"smoothing" yaml:"smoothing"`
	BlockOnLimit     bool      `json:"block_on_limit" toml:"block_on_limit" yaml:"block_on_limit"`
	LogOnLimitChange bool      `json:"log_on_limit_change" toml:"log_on_limit_change" yaml:"log_on_limit_change"`
}

func NewDefaultRpcOptions() RpcOptions {
	return RpcOptions{
		DefaultRpcTimeout:     DefaultRpcTimeout,
		MaxInboundMessageSize: DefaultMaxInboundMessageSize,
		FlowControlWindow:     DefaultFlowControlWindow,
		IdleTimeout:           DefaultIdleTimeout,
		KeepAliveTimeout:      DefaultKeepAliveTimeout,
		LimitKind:             LimitGradient,
		InitialLimit:          DefaultInitialLimit,
		MaxLimit:              DefaultMaxLimit,
		LongRttWindow:         DefaultLongRttWindow,
		Smoothing:             DefaultSmoothing,
		LogOnLimitChange:      true,
	}
}

func (o RpcOptions) Copy() RpcOptions {
	return o
}

func (o RpcOptions) Validate() error {
	switch o.LimitKind {
	case LimitGradient, LimitVegas, LimitNone, "":
	default:
		return dperror.Newf(dperror.DP_INVALID_CONFIG, "rpc: unknown limit kind %q", o.LimitKind)
	}
	if o.InitialLimit < 0 || o.MaxLimit < 0 {
		return dperror.New(dperror.DP_INVALID_CONFIG, "rpc: limits must not be negative")
	}
	if o.MaxLimit > 0 && o.InitialLimit > o.MaxLimit {
		return dperror.Newf(dperror.DP_INVALID_CONFIG, "rpc: initial limit %d exceeds max limit %d", o.InitialLimit, o.MaxLimit)
	}
	if o.Smoothing < 0 || o.Smoothing > 1 {
		return dperror.Newf(dperror.DP_INVALID_CONFIG, "rpc: smoothing %v is out of [0, 1]", o.Smoothing)
	}
	if (o.User == "") != (o.Password == "") {
		return dperror.New(dperror.DP_INVALID_CONFIG, "rpc: user and password must be set together")
	}
	return nil
}

type WriteOptions struct {
	MaxRetries   int `json:"max_retries" toml:"max_retries" yaml:"max_retries"`
	MaxWriteSize int `json:"max_write_size" toml:"max_write_size" yaml:"max_write_size"`
}

type QueryOptions struct {
	MaxRetries int `json:"max_retries" toml:"max_retries" yaml:"max_retries"`
}

type EtcdCfg struct {
	Endpoints   []string      `json:"endpoints" toml:"endpoints" yaml:"endpoints"`
	Prefix      string        `json:"prefix" toml:"prefix" yaml:"prefix"`
	DialTimeout time.Duration `json:"dial_timeout" toml:"dial_timeout" yaml:"dial_timeout"`
}

// JaegerCfg enables span reporting when JaegerUrl is set.
type JaegerCfg struct {
	JaegerUrl string `json:"jaeger_url" toml:"jaeger_url" yaml:"jaeger_url"`
}
