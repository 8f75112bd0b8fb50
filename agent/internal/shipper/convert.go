package shipper

import (
	"math"

	"github.com/google/uuid"

	"github.com/hrstress/hrstress/agent/internal/compute"
	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/pkg/types"
)

// toSnapshot converts a compute.Result into the wire message. Every
// snapshot gets a fresh session id; the server keys its store by source id.
func toSnapshot(r *compute.Result, agentID string, includeSamples bool) *rpc.SessionSnapshot {
	snap := &rpc.SessionSnapshot{
		AgentID:    agentID,
		SessionID:  uuid.NewString(),
		SourceID:   r.SourceID,
		SourceKind: r.SourceType,
		Origin:     r.Origin,
		AnalyzedAt: r.Timestamp.UTC(),
	}

	if r.Failed() {
		snap.Error = r.ErrorMessage
		snap.FailureReason = r.Reason
		snap.HeartRate = hrv.SummarizeHeartRate(nil)
		snap.Metrics = types.UndefinedMetrics()
		snap.Stress = hrv.EstimateStress(math.NaN(), math.NaN())
		return snap
	}

	a := r.Analysis
	snap.TimestampColumn = a.Columns.Timestamp
	snap.HeartRateColumn = a.Columns.HeartRate
	snap.HeartRate = a.HeartRate
	snap.Metrics = a.Metrics
	snap.Stress = a.Stress
	snap.WindowSeconds = a.WindowSeconds
	snap.NonPositiveCount = a.NonPositiveCount
	if includeSamples {
		snap.Samples = a.Samples
	}
	return snap
}
