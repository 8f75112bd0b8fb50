// Package compute turns ingest reads into shippable analysis results.
//
// Engine.Process runs hrv.Analyze over each successful read and remembers,
// per source, the digest of the last analysed bytes and the last error. A
// source that has not changed, or that keeps failing the same way, yields
// nil so the shipper is not flooded with identical snapshots.
//
// Failures are classified into reasons (read, empty, missing_column,
// invalid) that the server exposes as metric labels.
package compute
