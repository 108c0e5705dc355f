package statistics

import (
	"slices"
	"sync"
	"time"

	"github.com/caio/go-tdigest"
)

type digestKey struct {
	statType StatisticsType
	endpoint string
}

// LatencyHolder keeps a t-digest of call latencies, in milliseconds, per
// endpoint. Prometheus histograms lose the per-endpoint quantiles the CLI
// reports, so they are kept here as well.
type LatencyHolder struct {
	mu      sync.Mutex
	digests map[digestKey]*tdigest.TDigest
}

var _ StatHolder = &LatencyHolder{}

func NewLatencyHolder() *LatencyHolder {
	return &LatencyHolder{
		digests: map[digestKey]*tdigest.TDigest{},
	}
}

func (h *LatencyHolder) Record(statType StatisticsType, endpoint string, d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := digestKey{statType: statType, endpoint: endpoint}
	td, ok := h.digests[key]
	if !ok {
		var err error
		if td, err = tdigest.New(); err != nil {
			return
		}
		h.digests[key] = td
	}
	_ = td.Add(float64(d.Microseconds()) / 1000)
}

// Quantile returns the q-quantile in milliseconds, 0 without samples.
func (h *LatencyHolder) Quantile(statType StatisticsType, endpoint string, q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	td, ok := h.digests[digestKey{statType: statType, endpoint: endpoint}]
	if !ok {
		return 0
	}
	return td.Quantile(q)
}

func (h *LatencyHolder) Count(statType StatisticsType, endpoint string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	td, ok := h.digests[digestKey{statType: statType, endpoint: endpoint}]
	if !ok {
		return 0
	}
	return td.Count()
}

func (h *LatencyHolder) Endpoints(statType StatisticsType) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var res []string
	for k := range h.digests {
		if k.statType == statType {
			res = append(res, k.endpoint)
		}
	}
	slices.Sort(res)
	return res
}
