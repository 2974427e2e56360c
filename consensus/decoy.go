package consensus

import "git.gammaspectra.live/P2Pool/monero-node-core/errs"

// DecoyMinimum returns the minimum number of decoys (ring members other
// than the real spend) required per input for hard fork hf (§4.1 Decoy
// policy).
func DecoyMinimum(hf HFVersion) int {
	switch {
	case hf < HFVersion2:
		return 0
	case hf <= HFVersion5:
		return 2
	case hf == HFVersion6:
		return 4
	case hf == HFVersion7:
		return 6
	case hf <= HFVersion14:
		return 10
	default: // V15, V16
		return 15
	}
}

// OutputsWithAmount reports the mixability of an input: how many on-chain
// outputs exist for its amount (0 for RCT inputs, where amount is
// definitionally zero and mixability is judged over RCT outputs instead).
type OutputsWithAmount struct {
	Amount uint64
	Count  uint64
}

// IsMixable reports whether an input drawing from `available` outputs with
// its amount can satisfy the ring-size floor for hf (§4.1 Decoy policy).
func IsMixable(hf HFVersion, available uint64) bool {
	return available > uint64(DecoyMinimum(hf))
}

// CheckDecoyPolicy enforces the all-or-nothing unmixable rule: an unmixable
// input is only permitted when *every* input in the transaction is
// unmixable (§4.1 Decoy policy).
func CheckDecoyPolicy(hf HFVersion, mixable []bool) error {
	anyMixable := false
	anyUnmixable := false
	for _, m := range mixable {
		if m {
			anyMixable = true
		} else {
			anyUnmixable = true
		}
	}
	if anyMixable && anyUnmixable {
		return errs.Consensusf("MixableUnmixableMix", "transaction mixes an unmixable input with mixable inputs")
	}
	return nil
}
