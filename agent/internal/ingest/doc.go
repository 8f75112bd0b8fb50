// Package ingest reads heart-rate tables for the agent.
//
// Each configured source gets a Reader from New(config.Source): a file
// reader for local CSV/TSV files and an HTTP reader for URLs that serve CSV.
// A Read returns a Result holding the parsed types.Table and an xxhash
// digest of the raw bytes, which the compute engine uses to skip unchanged
// sources. Read failures (missing file, HTTP 5xx, malformed CSV) are
// reported in Result.Err rather than as a returned error, so one bad source
// never stops a scan.
//
// HTTP authentication (mTLS, API key, bearer, basic) is applied by
// authRoundTripper; readers receive a pre-configured *http.Client.
//
// ReadFile is also used directly by the analyze command.
package ingest
