package endpoint

import (
	"net"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Endpoint is the address of a storage node. It is a value type: two endpoints
// with the same host and port are equal and hash to the same map key.
type Endpoint struct {
	Host string `json:"host" toml:"host" yaml:"host"`
	Port int    `json:"port" toml:"port" yaml:"port"`
}

func New(host string, port int) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// Parse reads an endpoint in host:port form.
func Parse(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, errors.Wrapf(err, "parse endpoint %q", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, errors.Wrapf(err, "parse endpoint port %q", s)
	}
	if port < 0 || port > 65535 {
		return Endpoint{}, errors.Errorf("endpoint port out of range: %q", s)
	}
	return New(host, port), nil
}

// MustParse is Parse for addresses known to be valid, e.g. in tests and defaults.
func MustParse(s string) Endpoint {
	ep, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ep
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.Port == 0
}

// Less orders endpoints by host, then by port.
func (e Endpoint) Less(o Endpoint) bool {
	if e.Host != o.Host {
		return e.Host < o.Host
	}
	return e.Port < o.Port
}

// Sort orders endpoints in place so fan-out order is reproducible.
func Sort(eps []Endpoint) {
	sort.Slice(eps, func(i, j int) bool {
		return eps[i].Less(eps[j])
	})
}
