package dandelion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	diffused []string
}

func (s *fakeSink) Diffuse(tx string) error {
	s.diffused = append(s.diffused, tx)
	return nil
}

type fakePeer struct {
	id      int
	stemmed []string
}

func (p *fakePeer) Stem(tx string) error {
	p.stemmed = append(p.stemmed, tx)
	return nil
}

type staticSource struct {
	ch chan OutboundPeer[int, string]
}

func newStaticSource(peers ...*fakePeer) *staticSource {
	ch := make(chan OutboundPeer[int, string], len(peers))
	for _, p := range peers {
		ch <- OutboundPeer[int, string]{Id: p.id, Peer: p}
	}
	return &staticSource{ch: ch}
}

func (s *staticSource) Peers() <-chan OutboundPeer[int, string] { return s.ch }

func TestRouteFluffDiffuses(t *testing.T) {
	sink := &fakeSink{}
	r := NewRouter[int, string](sink, newStaticSource(), Config{FluffProbability: 1, EpochDuration: time.Hour})

	state, err := r.Route("tx1", TxState[int]{Kind: TxFluff})
	require.NoError(t, err)
	require.Equal(t, StateFluff, state)
	require.Equal(t, []string{"tx1"}, sink.diffused)
}

func TestRouteStemWithNoPeersFallsBackToFluff(t *testing.T) {
	sink := &fakeSink{}
	r := NewRouter[int, string](sink, newStaticSource(), Config{FluffProbability: 0, EpochDuration: time.Hour})

	state, err := r.Route("tx1", TxState[int]{Kind: TxStem, From: 7})
	require.NoError(t, err)
	require.Equal(t, StateFluff, state)
}

func TestRouteStemForwardsToMemoizedPeer(t *testing.T) {
	peer := &fakePeer{id: 1}
	sink := &fakeSink{}
	r := NewRouter[int, string](sink, newStaticSource(peer), Config{FluffProbability: 0, EpochDuration: time.Hour, StemGraphSize: 1})

	state, err := r.Route("tx1", TxState[int]{Kind: TxStem, From: 7})
	require.NoError(t, err)
	require.Equal(t, StateStem, state)

	state, err = r.Route("tx2", TxState[int]{Kind: TxStem, From: 7})
	require.NoError(t, err)
	require.Equal(t, StateStem, state)

	require.Equal(t, []string{"tx1", "tx2"}, peer.stemmed)
}

func TestEpochRolloverClearsStemState(t *testing.T) {
	peer := &fakePeer{id: 1}
	sink := &fakeSink{}
	r := NewRouter[int, string](sink, newStaticSource(peer), Config{FluffProbability: 0, EpochDuration: time.Nanosecond, StemGraphSize: 1})

	_, err := r.Route("tx1", TxState[int]{Kind: TxStem, From: 7})
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	// The epoch has rolled over and the stem-peer source is now empty, so
	// routing falls back to fluff instead of reusing the stale mapping.
	state, err := r.Route("tx2", TxState[int]{Kind: TxStem, From: 7})
	require.NoError(t, err)
	require.Equal(t, StateFluff, state)
}
