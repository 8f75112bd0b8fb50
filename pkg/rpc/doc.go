// Package rpc defines the agent→server gRPC contract.
//
// The service is hrstress.session.v1.SessionService with a single unary
// method, SendSession. Messages are plain Go structs carried by a JSON codec
// registered with grpc/encoding under the "json" content subtype, so NaN
// metrics travel as null exactly as they do over REST and WebSocket.
// Importing this package registers the codec; both ends must import it.
package rpc
