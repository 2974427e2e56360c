// Package dandelion implements the Dandelion++ router (C6): per-epoch
// stem/fluff state, stem-peer selection, and routing decisions for
// transactions arriving locally, from a peer's stem relay, or already
// fluffed (§4.6).
package dandelion

import (
	"math/rand"
	"sync"
	"time"

	"git.gammaspectra.live/P2Pool/monero-node-core/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleDandelion)

// State is the router's current Dandelion++ phase (§4.6 State).
type State uint8

const (
	StateStem State = iota
	StateFluff
)

func (s State) String() string {
	if s == StateFluff {
		return "fluff"
	}
	return "stem"
}

// TxStateKind distinguishes how a transaction arrived for routing purposes.
type TxStateKind uint8

const (
	TxFluff TxStateKind = iota
	TxStem
	TxLocal
)

// TxState is the routing state a transaction carries into Route (§4.6 Route
// request).
type TxState[ID comparable] struct {
	Kind TxStateKind
	From ID // valid when Kind == TxStem
}

// DiffuseSink broadcasts a transaction to the wider network, ending its
// dandelion routing in State = Fluff.
type DiffuseSink[Tx any] interface {
	Diffuse(tx Tx) error
}

// StemPeer forwards a transaction privately to one outbound peer.
type StemPeer[Tx any] interface {
	Stem(tx Tx) error
}

// OutboundPeer is one freshly discovered stem candidate.
type OutboundPeer[ID comparable, Tx any] struct {
	Id   ID
	Peer StemPeer[Tx]
}

// PeerSource supplies outbound peers for stemming, in discovery order. A
// source that never sends anything degrades gracefully to always fluffing
// (§4.6: "If Stem is selected but stem_peers is empty, fall back to
// fluff").
type PeerSource[ID comparable, Tx any] interface {
	Peers() <-chan OutboundPeer[ID, Tx]
}

// Router is C6: it holds the current epoch's Dandelion++ state and decides
// where to send a transaction (§4.6).
//
// Grounded on cuprate's dandelion-tower DandelionRouter (router.rs): the
// same state machine, translated from a poll-driven tower::Service into a
// directly-called Go method guarded by a mutex, since this core already
// runs §5's scheduling model on goroutines and channels rather than a
// Future executor with its own poll_ready step.
type Router[ID comparable, Tx any] struct {
	mu sync.Mutex

	broadcast DiffuseSink[Tx]
	peers     PeerSource[ID, Tx]
	config    Config

	state      State
	epochStart time.Time

	localRoute *ID
	stemRoutes map[ID]ID
	stemPeers  map[ID]StemPeer[Tx]

	rng *rand.Rand
}

// NewRouter constructs a Router, drawing its initial epoch state from
// config.FluffProbability.
func NewRouter[ID comparable, Tx any](broadcast DiffuseSink[Tx], peers PeerSource[ID, Tx], config Config) *Router[ID, Tx] {
	r := &Router[ID, Tx]{
		broadcast:  broadcast,
		peers:      peers,
		config:     config,
		epochStart: time.Now(),
		stemRoutes: make(map[ID]ID),
		stemPeers:  make(map[ID]StemPeer[Tx]),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.state = r.drawState()
	return r
}

func (r *Router[ID, Tx]) drawState() State {
	if r.rng.Float64() < r.config.FluffProbability {
		return StateFluff
	}
	return StateStem
}

// State reports the router's current epoch phase.
func (r *Router[ID, Tx]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// maybeRollEpoch clears all stem-routing state and re-draws State once the
// epoch has elapsed (§4.6 Epoch rollover). Caller must hold r.mu.
func (r *Router[ID, Tx]) maybeRollEpoch() {
	if time.Since(r.epochStart) <= r.config.EpochDuration {
		return
	}
	r.stemPeers = make(map[ID]StemPeer[Tx])
	r.stemRoutes = make(map[ID]ID)
	r.localRoute = nil
	r.state = r.drawState()
	r.epochStart = time.Now()
	logger.Debugw("starting new dandelion epoch", "state", r.state.String())
}

// fillStemPeers drains whatever peers are immediately available from the
// discovery source until the graph's target size is met or the source has
// nothing more to offer right now (§4.6 State: "pulling from an external
// discovery stream up to the graph's required size"). Caller must hold
// r.mu.
func (r *Router[ID, Tx]) fillStemPeers() {
	if r.peers == nil {
		return
	}
	needed := 1
	if r.state == StateStem {
		needed = r.config.numberOfStems()
	}
	ch := r.peers.Peers()
	for len(r.stemPeers) < needed {
		select {
		case p, ok := <-ch:
			if !ok {
				return
			}
			r.stemPeers[p.Id] = p.Peer
		default:
			return
		}
	}
}

// Route implements §4.6's Route request: (tx, TxState) -> the state the tx
// ended up in.
func (r *Router[ID, Tx]) Route(tx Tx, state TxState[ID]) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maybeRollEpoch()
	r.fillStemPeers()

	switch state.Kind {
	case TxFluff:
		return r.fluffLocked(tx)
	case TxLocal:
		logger.Debugw("stemming local tx")
		return r.stemLocalLocked(tx)
	default: // TxStem
		if r.state == StateFluff {
			logger.Debugw("fluffing stem tx: router epoch is in fluff state")
			return r.fluffLocked(tx)
		}
		return r.stemLocked(tx, state.From)
	}
}

func (r *Router[ID, Tx]) fluffLocked(tx Tx) (State, error) {
	if err := r.broadcast.Diffuse(tx); err != nil {
		return 0, err
	}
	return StateFluff, nil
}

func (r *Router[ID, Tx]) stemLocked(tx Tx, from ID) (State, error) {
	if len(r.stemPeers) == 0 {
		logger.Debugw("stem peers empty, fluffing stem transaction")
		return r.fluffLocked(tx)
	}
	for {
		route, ok := r.stemRoutes[from]
		if !ok {
			route = r.pickPeerLocked()
			r.stemRoutes[from] = route
		}
		peer, ok := r.stemPeers[route]
		if !ok {
			// Chosen peer has dropped out of the graph: purge the stale
			// mapping and pick again (§4.6 Route request).
			delete(r.stemRoutes, from)
			continue
		}
		if err := peer.Stem(tx); err != nil {
			return 0, err
		}
		return StateStem, nil
	}
}

func (r *Router[ID, Tx]) stemLocalLocked(tx Tx) (State, error) {
	if len(r.stemPeers) == 0 {
		logger.Warnw("stem peers empty, fluffing local tx, privacy degraded")
		return r.fluffLocked(tx)
	}
	for {
		if r.localRoute == nil {
			picked := r.pickPeerLocked()
			r.localRoute = &picked
		}
		peer, ok := r.stemPeers[*r.localRoute]
		if !ok {
			r.localRoute = nil
			continue
		}
		if err := peer.Stem(tx); err != nil {
			return 0, err
		}
		return StateStem, nil
	}
}

func (r *Router[ID, Tx]) pickPeerLocked() ID {
	n := r.rng.Intn(len(r.stemPeers))
	i := 0
	for id := range r.stemPeers {
		if i == n {
			return id
		}
		i++
	}
	panic("unreachable: pickPeerLocked called with empty stemPeers")
}
