package txpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

func hashOf(b byte) ctypes.Hash {
	var h ctypes.Hash
	h[0] = b
	return h
}

func TestAddAndFilterKnown(t *testing.T) {
	p := New()

	txId := hashOf(1)
	blobHash := hashOf(2)

	conflict, err := p.AddTransaction(AddTransactionRequest{
		TxId:      txId,
		BlobHash:  blobHash,
		Blob:      []byte("blob"),
		StateStem: true,
	})
	require.NoError(t, err)
	require.Nil(t, conflict)

	unknown, stemHashes := p.FilterKnownTxBlobHashes([]ctypes.Hash{blobHash, hashOf(3)})
	require.Equal(t, []ctypes.Hash{hashOf(3)}, unknown)
	require.Equal(t, []ctypes.Hash{txId}, stemHashes)

	blob, err := p.TxBlob(txId)
	require.NoError(t, err)
	require.Equal(t, []byte("blob"), blob)
}

func TestAddTransactionDetectsInPoolDoubleSpend(t *testing.T) {
	p := New()
	ki := ctypes.KeyImage(hashOf(9))

	first := hashOf(1)
	_, err := p.AddTransaction(AddTransactionRequest{
		TxId:      first,
		BlobHash:  hashOf(11),
		KeyImages: []ctypes.KeyImage{ki},
		StateStem: true,
	})
	require.NoError(t, err)

	second := hashOf(2)
	conflict, err := p.AddTransaction(AddTransactionRequest{
		TxId:      second,
		BlobHash:  hashOf(12),
		KeyImages: []ctypes.KeyImage{ki},
		StateStem: true,
	})
	require.NoError(t, err)
	require.NotNil(t, conflict)
	require.Equal(t, first, *conflict)

	_, err = p.TxBlob(second)
	require.Error(t, err)
}

func TestPromoteIsIdempotent(t *testing.T) {
	p := New()
	txId := hashOf(1)
	_, err := p.AddTransaction(AddTransactionRequest{
		TxId:      txId,
		BlobHash:  hashOf(2),
		StateStem: true,
	})
	require.NoError(t, err)

	stem, fluff := p.Size()
	require.Equal(t, 1, stem)
	require.Equal(t, 0, fluff)

	require.NoError(t, p.Promote(txId))
	stem, fluff = p.Size()
	require.Equal(t, 0, stem)
	require.Equal(t, 1, fluff)

	// Promoting an already-fluffed tx is a no-op, not an error.
	require.NoError(t, p.Promote(txId))
	stem, fluff = p.Size()
	require.Equal(t, 0, stem)
	require.Equal(t, 1, fluff)
}

func TestRemoveByKeyImages(t *testing.T) {
	p := New()
	ki := ctypes.KeyImage(hashOf(9))
	txId := hashOf(1)
	_, err := p.AddTransaction(AddTransactionRequest{
		TxId:      txId,
		BlobHash:  hashOf(2),
		KeyImages: []ctypes.KeyImage{ki},
		StateStem: false,
	})
	require.NoError(t, err)

	removed := p.RemoveByKeyImages([]ctypes.KeyImage{ki})
	require.Equal(t, []ctypes.Hash{txId}, removed)

	_, err = p.TxBlob(txId)
	require.Error(t, err)
}

func TestTxsBeingHandledGuardsConcurrentBatches(t *testing.T) {
	guard := NewTxsBeingHandled()

	batchA := guard.LocalTracker()
	batchB := guard.LocalTracker()

	h := hashOf(1)
	require.True(t, batchA.TryAdd(h))
	require.False(t, batchB.TryAdd(h))

	batchA.Release()
	require.True(t, batchB.TryAdd(h))
	batchB.Release()
}
