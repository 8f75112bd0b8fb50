package receiver

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hrstress/hrstress/pkg/rpc"
)

// Recorder accepts validated sessions; *record.Recorder implements it.
type Recorder interface {
	Record(snap *rpc.SessionSnapshot)
}

// Receiver implements rpc.SessionServiceServer.
// It validates each incoming SessionSnapshot and hands it to the recorder.
type Receiver struct {
	rec Recorder
}

// New creates a Receiver that records accepted sessions with rec.
func New(rec Recorder) *Receiver {
	return &Receiver{rec: rec}
}

// SendSession is the unary RPC handler called by hrstress-agent instances.
// Authentication is enforced by the gRPC server interceptor before this is called.
func (r *Receiver) SendSession(ctx context.Context, snap *rpc.SessionSnapshot) (*rpc.SendResponse, error) {
	if err := snap.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	r.rec.Record(snap)

	slog.Debug("receiver: session accepted",
		"source_id", snap.SourceID,
		"agent_id", snap.AgentID,
		"stress", snap.Stress.Level,
		"error", snap.Error,
	)
	return &rpc.SendResponse{Ok: true}, nil
}
