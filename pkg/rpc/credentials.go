package rpc

import (
	"context"
	"encoding/base64"

	"google.golang.org/grpc/credentials"
)

type basicAuth struct {
	header string
}

var _ credentials.PerRPCCredentials = basicAuth{}

func newBasicAuth(user, password string) basicAuth {
	return basicAuth{
		header: "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password)),
	}
}

func (b basicAuth) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": b.header}, nil
}

// storage nodes are reached over plaintext inside the cluster network
func (basicAuth) RequireTransportSecurity() bool {
	return false
}
