package dispatch

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// statsResponse is the read-only operator stats page payload (§6 External
// interfaces: "a minimal read-only debug/stats HTTP surface... not the
// excluded RPC server").
type statsResponse struct {
	ChainHeight  uint64 `json:"chain_height"`
	TotalTxCount uint64 `json:"total_tx_count"`
	StemPoolSize int    `json:"stem_pool_size"`
	FluffPoolSize int   `json:"fluff_pool_size"`
	DandelionState string `json:"dandelion_state"`
}

// StatsHandler builds the httprouter.Router serving the operator stats page.
// Grounded on the teacher's node/api package pattern of a small dedicated
// HTTP mux per subsystem, narrowed here to GET /stats and nothing else: no
// write path exists because the RPC surface is explicitly out of scope
// (§1).
func (s *Service) StatsHandler() http.Handler {
	r := httprouter.New()
	r.GET("/stats", s.handleStats)
	return r
}

func (s *Service) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	stem, fluff := s.pool.Size()
	resp := statsResponse{
		ChainHeight:    s.store.ChainHeight(),
		TotalTxCount:   s.store.TotalTxCount(),
		StemPoolSize:   stem,
		FluffPoolSize:  fluff,
		DandelionState: s.router.State().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorw("failed to encode stats response", "err", err)
	}
}
