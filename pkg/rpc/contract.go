package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/hrstress/hrstress/pkg/types"
)

const (
	ServiceName       = "hrstress.session.v1.SessionService"
	CodecName         = "json"
	MethodSendSession = "/" + ServiceName + "/SendSession"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Source kinds reported in SessionSnapshot.SourceKind.
const (
	SourceFile   = "file"
	SourceHTTP   = "http"
	SourceUpload = "upload"
)

// SessionSnapshot is one analysed session as shipped by an agent.
type SessionSnapshot struct {
	AgentID    string    `json:"agent_id"`
	SessionID  string    `json:"session_id"`
	SourceID   string    `json:"source_id"`
	SourceKind string    `json:"source_kind"`
	Origin     string    `json:"origin,omitempty"` // file path or URL
	AnalyzedAt time.Time `json:"analyzed_at"`

	TimestampColumn string `json:"timestamp_column,omitempty"`
	HeartRateColumn string `json:"heart_rate_column,omitempty"`

	HeartRate        types.HeartRateSummary  `json:"heart_rate"`
	Metrics          types.TimeDomainMetrics `json:"metrics"`
	Stress           types.StressAssessment  `json:"stress"`
	WindowSeconds    int                     `json:"window_seconds"`
	NonPositiveCount int                     `json:"non_positive_count"`
	Samples          []types.Sample          `json:"samples,omitempty"`

	// Error is set when the source could not be analysed, e.g. it has no
	// heart-rate column. Metrics are undefined in that case.
	Error string `json:"error,omitempty"`
	// FailureReason classifies Error: read, empty, missing_column or invalid.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Failed reports whether the snapshot carries an analysis error.
func (s *SessionSnapshot) Failed() bool { return s.Error != "" }

// Validate checks the fields the server relies on.
func (s *SessionSnapshot) Validate() error {
	if s.SourceID == "" {
		return errors.New("source_id is required")
	}
	if s.Failed() {
		return nil
	}
	switch s.Stress.Level {
	case types.StressLow, types.StressMedium, types.StressHigh, types.StressUnknown:
	default:
		return fmt.Errorf("unknown stress level %q", s.Stress.Level)
	}
	if s.HeartRate.Count < 0 || s.NonPositiveCount < 0 {
		return errors.New("counts must not be negative")
	}
	return nil
}

// SendResponse acknowledges a SendSession call.
type SendResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// SessionServiceServer is implemented by the server's receiver.
type SessionServiceServer interface {
	SendSession(ctx context.Context, in *SessionSnapshot) (*SendResponse, error)
}

// SessionServiceClient is used by the agent's shipper.
type SessionServiceClient interface {
	SendSession(ctx context.Context, in *SessionSnapshot, opts ...grpc.CallOption) (*SendResponse, error)
}

type sessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) SessionServiceClient {
	return &sessionServiceClient{cc: cc}
}

func (c *sessionServiceClient) SendSession(ctx context.Context, in *SessionSnapshot, opts ...grpc.CallOption) (*SendResponse, error) {
	out := &SendResponse{}
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, MethodSendSession, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterSessionServiceServer(s grpc.ServiceRegistrar, impl SessionServiceServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*SessionServiceServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "SendSession",
				Handler:    sendSessionHandler,
			},
		},
		Streams: []grpc.StreamDesc{},
	}, impl)
}

func sendSessionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &SessionSnapshot{}
	if err := dec(in); err != nil {
		return nil, err
	}
	impl := srv.(SessionServiceServer)
	if interceptor == nil {
		return impl.SendSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSendSession}
	handler := func(ctx context.Context, req any) (any, error) {
		snap, ok := req.(*SessionSnapshot)
		if !ok {
			return nil, fmt.Errorf("invalid request type %T", req)
		}
		return impl.SendSession(ctx, snap)
	}
	return interceptor(ctx, in, info, handler)
}
