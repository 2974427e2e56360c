package consensus

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// RingSizeBounds returns the minimum and maximum number of ring members
// (including the real spend) a ToKey input may carry under hf.
func RingSizeBounds(hf HFVersion) (min, max int) {
	switch {
	case hf < HFVersion2:
		return 1, 1 << 16
	default:
		min = DecoyMinimum(hf) + 1
		return min, 1 << 16
	}
}

// CheckTransactionStructure validates the subject-matter-independent
// structural rules of §4.1 Transaction: non-empty, non-miner inputs only
// ToKey, unique key images within the tx, unique absolute ring offsets per
// input, and valid output public keys (non-zero, checked upstream by the
// cryptographic collaborator — here only well-formedness of the container
// is checked).
func CheckTransactionStructure(tx ctypes.Transaction, hf HFVersion) error {
	if len(tx.Inputs) == 0 {
		return errs.Consensusf("EmptyInputs", "transaction has no inputs")
	}

	seenImages := make(map[ctypes.KeyImage]struct{}, len(tx.Inputs))
	minRing, maxRing := RingSizeBounds(hf)

	for i, in := range tx.Inputs {
		if in.Kind != ctypes.InputToKey {
			return errs.Consensusf("NonKeyInput", "transaction input %d is not ToKey", i)
		}
		if len(in.KeyOffsets) < minRing || len(in.KeyOffsets) > maxRing {
			return errs.Consensusf("RingSizeOutOfBounds", "input %d ring size %d outside [%d,%d]", i, len(in.KeyOffsets), minRing, maxRing)
		}
		if _, dup := seenImages[in.KeyImage]; dup {
			return errs.Consensusf("DuplicateKeyImageInTx", "key image %x repeated within transaction", in.KeyImage)
		}
		seenImages[in.KeyImage] = struct{}{}

		abs := in.AbsoluteOffsets()
		seenOffsets := make(map[uint64]struct{}, len(abs))
		for _, off := range abs {
			if _, dup := seenOffsets[off]; dup {
				return errs.Consensusf("DuplicateRingMember", "input %d references ring member %d twice", i, off)
			}
			seenOffsets[off] = struct{}{}
		}
	}

	if err := checkOutputAmounts(tx, hf); err != nil {
		return err
	}

	return nil
}

// checkOutputAmounts enforces §4.1's per-hard-fork output-amount rule: V1
// only allows decomposed clear amounts, V2+ forbids non-zero clear amounts
// entirely (every output must be an RCT commitment).
func checkOutputAmounts(tx ctypes.Transaction, hf HFVersion) error {
	if tx.Version == ctypes.TxVersionOne {
		for i, o := range tx.Outputs {
			if !isDecomposedAmount(o.Amount) {
				return errs.Consensusf("NonDecomposedAmount", "v1 output %d amount %d is not decomposed", i, o.Amount)
			}
		}
		return nil
	}
	for i, o := range tx.Outputs {
		if o.Amount != 0 {
			return errs.Consensusf("NonZeroAmountV2", "v2 output %d carries non-zero clear amount %d", i, o.Amount)
		}
	}
	return nil
}

// decomposedAmounts mirrors the fixed table of 1-digit-times-power-of-ten
// values Monero's pre-RingCT pool uses to quantize output amounts, which
// keeps the anonymity set for each (amount, amount_index) bucket non-trivial.
func isDecomposedAmount(amount uint64) bool {
	if amount == 0 {
		return true
	}
	for amount%10 == 0 {
		amount /= 10
	}
	return amount >= 1 && amount <= 9
}

// CheckTimelock enforces a transaction's inputs' timelocks against the
// spend-time context (§3 Timelock, §4.1 Transaction).
func CheckTimelock(tl ctypes.TimeLock, currentHeight uint64, adjustedTime uint64) error {
	if tl.IsLocked(currentHeight, adjustedTime) {
		return errs.Consensusf("TimeLocked", "output spend attempted before unlock (kind=%d value=%d)", tl.Kind, tl.Value)
	}
	return nil
}
