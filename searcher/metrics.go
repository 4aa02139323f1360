package searcher

import "sync/atomic"

// Metrics counts what one or more Play calls did. Sampled enumeration
// expansions are surfaced here because they mean the move list, and so
// the search, was deliberately incomplete.
type Metrics struct {
	Iterations          atomic.Int64
	FullPlayouts        atomic.Int64
	Reclones            atomic.Int64
	TableHits           atomic.Int64
	SampledEnumerations atomic.Int64
	ShortCircuits       atomic.Int64
}

// Snapshot returns a plain-value copy for logging.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Iterations:          m.Iterations.Load(),
		FullPlayouts:        m.FullPlayouts.Load(),
		Reclones:            m.Reclones.Load(),
		TableHits:           m.TableHits.Load(),
		SampledEnumerations: m.SampledEnumerations.Load(),
		ShortCircuits:       m.ShortCircuits.Load(),
	}
}

type MetricsSnapshot struct {
	Iterations          int64 `json:"iterations"`
	FullPlayouts        int64 `json:"fullPlayouts"`
	Reclones            int64 `json:"reclones"`
	TableHits           int64 `json:"tableHits"`
	SampledEnumerations int64 `json:"sampledEnumerations"`
	ShortCircuits       int64 `json:"shortCircuits"`
}
