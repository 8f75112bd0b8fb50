package ingest

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/hrstress/hrstress/agent/internal/config"
	"github.com/hrstress/hrstress/pkg/table"
	"github.com/hrstress/hrstress/pkg/types"
)

const defaultFetchTimeout = 30 * time.Second

// Result is the outcome of reading one source once.
type Result struct {
	SourceID   string
	SourceType string
	Origin     string
	ReadAt     time.Time

	Table *types.Table
	// Digest is the xxhash of the raw bytes. Equal digests mean the source
	// has not changed since the previous read.
	Digest uint64

	// Err is non-nil if the read or parse failed. Table is nil then.
	Err error
}

// Reader fetches and parses one source.
type Reader interface {
	Read(ctx context.Context) (*Result, error)
}

// New returns the Reader for src. HTTP clients are built once and reused.
func New(src config.Source) (Reader, error) {
	switch src.Type {
	case config.SourceFile:
		return &fileReader{src: src}, nil
	case config.SourceHTTP:
		client, err := buildHTTPClient(src)
		if err != nil {
			return nil, fmt.Errorf("ingest %q: build http client: %w", src.ID, err)
		}
		return &httpReader{src: src, client: client}, nil
	default:
		return nil, fmt.Errorf("ingest: unsupported source type %q", src.Type)
	}
}

type fileReader struct {
	src config.Source
}

func (r *fileReader) Read(_ context.Context) (*Result, error) {
	res := newResult(r.src)
	data, err := readCapped(r.src.Path)
	if err != nil {
		res.Err = fmt.Errorf("read %q: %w", r.src.ID, err)
		slog.Warn("ingest: file read failed", "source", r.src.ID, "path", r.src.Path, "err", err)
		return res, nil
	}
	fill(res, data, table.DelimiterFor(r.src.Path))
	return res, nil
}

func readCapped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, table.MaxBytes))
}

type httpReader struct {
	src    config.Source
	client *http.Client
}

func (r *httpReader) Read(ctx context.Context) (*Result, error) {
	res := newResult(r.src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.src.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest %q: build request: %w", r.src.ID, err)
	}
	req.Header.Set("Accept", "text/csv, text/tab-separated-values;q=0.9, text/plain;q=0.5")

	resp, err := r.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("fetch %q: %w", r.src.ID, err)
		slog.Warn("ingest: http fetch failed", "source", r.src.ID, "err", err)
		return res, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("fetch %q: unexpected status %d", r.src.ID, resp.StatusCode)
		slog.Warn("ingest: http fetch failed", "source", r.src.ID, "status", resp.StatusCode)
		return res, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, table.MaxBytes))
	if err != nil {
		res.Err = fmt.Errorf("fetch %q: read body: %w", r.src.ID, err)
		return res, nil
	}

	delim := table.DelimiterFor(r.src.Endpoint)
	if ct := resp.Header.Get("Content-Type"); ct != "" && table.DelimiterFor(ct) == '\t' {
		delim = '\t'
	}
	fill(res, data, delim)
	return res, nil
}

func newResult(src config.Source) *Result {
	return &Result{
		SourceID:   src.ID,
		SourceType: src.Type,
		Origin:     src.Origin(),
		ReadAt:     time.Now().UTC(),
	}
}

// fill parses data into res, recording a parse failure in res.Err.
func fill(res *Result, data []byte, delim rune) {
	res.Digest = xxhash.Sum64(data)
	t, err := table.Parse(bytes.NewReader(data), delim)
	if err != nil {
		res.Err = fmt.Errorf("parse %q: %w", res.SourceID, err)
		return
	}
	res.Table = t
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		header := t.auth.Header
		if header == "" {
			header = config.DefaultAPIKeyHeader
		}
		req.Header.Set(header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

func buildHTTPClient(src config.Source) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if src.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(src.Auth.CertFile, src.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if src.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(src.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", src.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg, Proxy: http.ProxyFromEnvironment},
			auth: src.Auth,
		},
		Timeout: defaultFetchTimeout,
	}, nil
}
