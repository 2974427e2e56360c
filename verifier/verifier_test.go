package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.gammaspectra.live/P2Pool/monero-node-core/consensus"
	chainctx "git.gammaspectra.live/P2Pool/monero-node-core/context"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage"
	"git.gammaspectra.live/P2Pool/monero-node-core/storage/database"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

func newTestVerifier(t *testing.T) (*Verifier, *storage.Engine) {
	t.Helper()
	store, err := storage.New(storage.Config{Dir: t.TempDir(), DBType: database.MemoryDB, Sync: storage.SyncSafe})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	mc := chainctx.NewMainContext(consensus.Mainnet)
	mc.Seed(chainctx.ChainTail{HardForkCurrent: consensus.HFVersion1})

	pool := NewComputePool(1)
	v := New(mc, store, pool, &ReorgLock{}, nil, nil, nil)
	return v, store
}

// unmixableTx is a minimal pre-RingCT transaction with one ToKey input whose
// amount has zero matching outputs on chain, which under HFVersion1's
// decoy-minimum-0 rule is legally unmixable (§4.1 Decoy policy) regardless
// of ring width, and a single decomposed output.
func unmixableTx(keyImage ctypes.Hash) ctypes.Transaction {
	return ctypes.Transaction{
		Version: ctypes.TxVersionOne,
		Inputs: []ctypes.Input{
			{Kind: ctypes.InputToKey, Amount: 1000, KeyOffsets: []uint64{5}, KeyImage: keyImage},
		},
		Outputs: []ctypes.Output{{Amount: 1000}},
		Fee:     10,
	}
}

func TestVerifyMempoolTxAcceptsUnmixableInput(t *testing.T) {
	v, _ := newTestVerifier(t)
	tx := unmixableTx(ctypes.Hash{0x01})
	require.NoError(t, v.VerifyMempoolTx(context.Background(), tx, consensus.HFVersion1))
}

func TestVerifyMempoolTxRejectsEmptyInputs(t *testing.T) {
	v, _ := newTestVerifier(t)
	tx := ctypes.Transaction{Version: ctypes.TxVersionOne}
	err := v.VerifyMempoolTx(context.Background(), tx, consensus.HFVersion1)
	require.Error(t, err)
}

func TestVerifyMempoolTxRejectsAlreadySpentKeyImage(t *testing.T) {
	v, store := newTestVerifier(t)

	ki := ctypes.Hash{0x42}
	genesis := &ctypes.VerifiedBlockInformation{
		Block: ctypes.Block{
			MinerTx: ctypes.Transaction{
				Version: ctypes.TxVersionOne,
				Inputs:  []ctypes.Input{{Kind: ctypes.InputGen}, {Kind: ctypes.InputToKey, KeyImage: ki}},
				Outputs: []ctypes.Output{{Amount: 1000}},
			},
		},
		BlockHash:            ctypes.Hash{0x01},
		MinerTxHash:          ctypes.Hash{0x02},
		Blobs:                []ctypes.TxBlob{{Pruned: []byte{0x00}}},
		CumulativeDifficulty: ctypes.DifficultyFromUint64(1),
	}
	require.NoError(t, store.WriteBlock(genesis))

	tx := unmixableTx(ki)
	err := v.VerifyMempoolTx(context.Background(), tx, consensus.HFVersion1)
	require.Error(t, err, "a tx spending an already-confirmed key image must be rejected")
}

func TestVerifyMempoolTxRejectsRingSizeOutOfBounds(t *testing.T) {
	v, _ := newTestVerifier(t)
	tx := ctypes.Transaction{
		Version: ctypes.TxVersionTwo,
		Inputs: []ctypes.Input{
			{Kind: ctypes.InputToKey, KeyOffsets: []uint64{1}, KeyImage: ctypes.Hash{0x02}},
		},
		Outputs: []ctypes.Output{{Amount: 0}},
		Rct:     &ctypes.RingCTSignatures{Commitments: []ctypes.Hash{{0x03}}},
	}
	// HFVersion16's decoy minimum is 15; a ring of width 1 cannot satisfy it.
	err := v.VerifyMempoolTx(context.Background(), tx, consensus.HFVersion16)
	require.Error(t, err)
}
