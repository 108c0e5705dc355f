package config

import (
	"encoding/json"
	"maps"
	"os"
	"strconv"

	"github.com/pg-sharding/dataplane/pkg/dplog"
	"github.com/pg-sharding/dataplane/pkg/models/dperror"
	"github.com/pkg/errors"
)

// WriteLimitPercentEnv overrides the share of the concurrency budget given to
// write methods.
const WriteLimitPercentEnv = "DP_WRITE_LIMIT_PERCENT"

const DefaultWriteLimitPercent = 0.7

type ClientCfg struct {
	LogLevel      string `json:"log_level" toml:"log_level" yaml:"log_level"`
	LogFile       string `json:"log_file" toml:"log_file" yaml:"log_file"`
	PrettyLogging bool   `json:"pretty_logging" toml:"pretty_logging" yaml:"pretty_logging"`

	Router RouterOptions `json:"router" toml:"router" yaml:"router"`
	Rpc    RpcOptions    `json:"rpc" toml:"rpc" yaml:"rpc"`
	Write  WriteOptions  `json:"write" toml:"write" yaml:"write"`
	Query  QueryOptions  `json:"query" toml:"query" yaml:"query"`

	// table -> host:port, used when no routing authority is reachable
	StaticRoutes map[string]string `json:"static_routes" toml:"static_routes" yaml:"static_routes"`
	Etcd         EtcdCfg           `json:"etcd" toml:"etcd" yaml:"etcd"`

	JaegerConfig JaegerCfg `json:"jaeger" toml:"jaeger" yaml:"jaeger"`
}

var cfgClient = NewDefaultClientCfg()

func NewDefaultClientCfg() ClientCfg {
	return ClientCfg{
		LogLevel: "info",
		Router:   NewDefaultRouterOptions(),
		Rpc:      NewDefaultRpcOptions(),
		Write: WriteOptions{
			MaxRetries:   DefaultMaxRetries,
			MaxWriteSize: DefaultMaxWriteSize,
		},
		Query: QueryOptions{
			MaxRetries: DefaultMaxRetries,
		},
	}
}

func (c ClientCfg) Copy() ClientCfg {
	cp := c
	cp.Router = c.Router.Copy()
	cp.Rpc = c.Rpc.Copy()
	cp.StaticRoutes = maps.Clone(c.StaticRoutes)
	cp.Etcd.Endpoints = append([]string(nil), c.Etcd.Endpoints...)
	return cp
}

func (c ClientCfg) Validate() error {
	if err := c.Router.Validate(); err != nil {
		return err
	}
	if err := c.Rpc.Validate(); err != nil {
		return err
	}
	if c.Write.MaxRetries < 0 || c.Query.MaxRetries < 0 {
		return dperror.New(dperror.DP_INVALID_CONFIG, "retries must not be negative")
	}
	return nil
}

// LoadClientCfg loads the client configuration from the given file path.
// Unset fields keep their defaults.
//
// Returns:
// - string: the running configuration rendered as JSON.
// - error: an error if the file could not be read, decoded or validated.
func LoadClientCfg(cfgPath string) (string, error) {
	file, err := os.Open(cfgPath)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			dplog.Zero.Error().Err(err).Msg("failed to close config file")
		}
	}()

	loaded := NewDefaultClientCfg()
	if err := initConfig(file, &loaded); err != nil {
		return "", errors.Wrapf(err, "failed to decode %s", cfgPath)
	}
	if err := loaded.Validate(); err != nil {
		return "", err
	}
	cfgClient = loaded

	configBytes, err := json.MarshalIndent(cfgClient, "", "  ")
	if err != nil {
		return "", err
	}
	return string(configBytes), nil
}

func ClientConfig() *ClientCfg {
	return &cfgClient
}

// WriteLimitPercent reads the write share of the limiter budget from the
// environment, clamped to (0, 1].
func WriteLimitPercent() float64 {
	raw, ok := os.LookupEnv(WriteLimitPercentEnv)
	if !ok {
		return DefaultWriteLimitPercent
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		dplog.Zero.Warn().Str("value", raw).Msg("ignoring invalid " + WriteLimitPercentEnv)
		return DefaultWriteLimitPercent
	}
	if v > 1 {
		return 1
	}
	return v
}
