// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort          port for the gRPC receiver (default 50051)
//   - HTTPPort          port for the REST API and WebSocket hub (default 8080)
//   - Auth.Mode         "apikey" or "none"
//   - Auth.KeyEnv       environment variable holding the expected API key
//   - Auth.Header       gRPC metadata/HTTP header name (default "x-api-key")
//   - Session.TTL       how long a source's latest session stays live (default 30m)
//   - Session.History   sessions kept per source for comparison (default 10)
//   - MaxUploadBytes    body cap for POST /api/v1/analyze (default 10 MiB)
//   - Publish.NATSURL   NATS server; empty disables publishing
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
