// Package shipper sends session snapshots to hrstress-server over gRPC
// (SessionService.SendSession, see pkg/rpc).
//
// Ship converts a compute.Result into an rpc.SessionSnapshot and queues it
// without blocking. The queue is bounded by agent.buffer_size; when it is
// full the oldest snapshot is evicted.
//
// Run keeps one client connection and sends snapshots in order. A failed
// send puts the snapshot back at the head of the queue and reconnects after
// retryDelay (ship_interval doubling up to a minute, with jitter).
// InvalidArgument, Unauthenticated and PermissionDenied are not retried.
//
// The API key travels as per-call credentials, mTLS as transport
// credentials. dialFn is replaced in tests.
package shipper
