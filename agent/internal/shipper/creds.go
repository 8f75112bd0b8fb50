package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hrstress/hrstress/agent/internal/config"
)

// apiKeyCreds attaches the server API key to every call as gRPC metadata.
type apiKeyCreds struct {
	header string // lowercase
	key    string
}

func (c apiKeyCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{c.header: c.key}, nil
}

// RequireTransportSecurity is false so the key also works against a
// plaintext server in local setups.
func (apiKeyCreds) RequireTransportSecurity() bool { return false }

// callOptions returns the per-call options for auth. Only apikey needs any.
func callOptions(auth config.AuthConfig) []grpc.CallOption {
	if auth.Mode != "apikey" {
		return nil
	}
	key := auth.Key()
	if key == "" {
		return nil
	}
	header := auth.Header
	if header == "" {
		header = config.DefaultAPIKeyHeader
	}
	return []grpc.CallOption{grpc.PerRPCCredentials(apiKeyCreds{header: strings.ToLower(header), key: key})}
}

// dialOptions returns the transport credentials for auth: TLS with a client
// certificate for mtls, plaintext otherwise.
func dialOptions(auth config.AuthConfig) ([]grpc.DialOption, error) {
	if auth.Mode != "mtls" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
	creds, err := mtlsCredentials(auth)
	if err != nil {
		return nil, fmt.Errorf("shipper: mtls: %w", err)
	}
	return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil
}

func mtlsCredentials(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	if auth.CAFile == "" {
		return credentials.NewTLS(cfg), nil
	}

	caPEM, err := os.ReadFile(auth.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
	}
	cfg.RootCAs = pool
	return credentials.NewTLS(cfg), nil
}

// defaultDial opens a client connection to endpoint. The connection is
// established lazily; failures surface on the first call.
func defaultDial(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg.ServerAuth)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, endpoint, opts...) //nolint:staticcheck // NewClient needs grpc 1.63
}
