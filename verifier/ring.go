package verifier

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
	ctypes "git.gammaspectra.live/P2Pool/monero-node-core/types"
)

// resolveRings resolves every ToKey input's ring members for a batch of
// transactions against storage, grouping requests so each distinct pre-RCT
// amount and the full set of RCT indices are each fetched in a single query
// regardless of how many transactions or inputs reference them (§4.4
// Transaction batch verification: "issue one Outputs query").
func (v *Verifier) resolveRings(txs []ctypes.Transaction) ([][][]RingMember, error) {
	preRctIndices := make(map[ctypes.Amount]map[uint64]struct{})
	rctIndexSeen := make(map[uint64]struct{})
	var rctIndices []uint64

	for _, tx := range txs {
		for _, in := range tx.Inputs {
			if in.Kind != ctypes.InputToKey {
				continue
			}
			abs := in.AbsoluteOffsets()
			if tx.Rct != nil {
				for _, idx := range abs {
					if _, seen := rctIndexSeen[idx]; !seen {
						rctIndexSeen[idx] = struct{}{}
						rctIndices = append(rctIndices, idx)
					}
				}
				continue
			}
			set, ok := preRctIndices[in.Amount]
			if !ok {
				set = make(map[uint64]struct{})
				preRctIndices[in.Amount] = set
			}
			for _, idx := range abs {
				set[idx] = struct{}{}
			}
		}
	}

	preRct := make(map[ctypes.Amount]map[uint64]*ctypes.PreRCTOutput, len(preRctIndices))
	for amount, set := range preRctIndices {
		indices := make([]uint64, 0, len(set))
		for idx := range set {
			indices = append(indices, idx)
		}
		outs, err := v.store.Outputs(amount, indices)
		if err != nil {
			return nil, errs.NotFoundf("resolve ring members for amount %d: %v", amount, err)
		}
		byIndex := make(map[uint64]*ctypes.PreRCTOutput, len(indices))
		for i, idx := range indices {
			byIndex[idx] = outs[i]
		}
		preRct[amount] = byIndex
	}

	var rct map[uint64]*ctypes.RctOutput
	if len(rctIndices) > 0 {
		outs, err := v.store.RctOutputs(rctIndices)
		if err != nil {
			return nil, errs.NotFoundf("resolve rct ring members: %v", err)
		}
		rct = make(map[uint64]*ctypes.RctOutput, len(rctIndices))
		for i, idx := range rctIndices {
			rct[idx] = outs[i]
		}
	}

	result := make([][][]RingMember, len(txs))
	for ti, tx := range txs {
		var rings [][]RingMember
		for _, in := range tx.Inputs {
			if in.Kind != ctypes.InputToKey {
				continue
			}
			abs := in.AbsoluteOffsets()
			members := make([]RingMember, len(abs))
			for i, idx := range abs {
				if tx.Rct != nil {
					members[i] = RingMember{Rct: rct[idx]}
				} else {
					members[i] = RingMember{PreRCT: preRct[in.Amount][idx]}
				}
			}
			rings = append(rings, members)
		}
		result[ti] = rings
	}
	return result, nil
}
