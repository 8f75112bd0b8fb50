// Package receiver implements rpc.SessionServiceServer, the gRPC endpoint
// that accepts SessionSnapshot messages from hrstress-agent instances.
//
// Receiver.SendSession validates the snapshot (codes.InvalidArgument when
// source_id is empty or the stress level is unknown), then records it.
// Authentication is enforced upstream by the gRPC server interceptor
// (see package auth), so the receiver only performs structural validation.
package receiver
