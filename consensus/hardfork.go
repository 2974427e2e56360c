package consensus

import (
	"git.gammaspectra.live/P2Pool/monero-node-core/errs"
)

// HFVersion is a validated hard-fork version number, 1..16 (§4.1 Hard-fork).
type HFVersion uint8

const (
	HFVersion1 HFVersion = iota + 1
	HFVersion2
	HFVersion3
	HFVersion4
	HFVersion5
	HFVersion6
	HFVersion7
	HFVersion8
	HFVersion9
	HFVersion10
	HFVersion11
	HFVersion12
	HFVersion13
	HFVersion14
	HFVersion15
	HFVersion16

	hfVersionMin = HFVersion1
	hfVersionMax = HFVersion16
)

// FromVersion maps a raw on-wire version byte 1..16 to a validated
// HFVersion, erroring on anything outside that range (§4.1).
func FromVersion(v uint8) (HFVersion, error) {
	if v < uint8(hfVersionMin) || v > uint8(hfVersionMax) {
		return 0, errs.Consensusf("VersionIncorrect", "hard-fork version %d out of range [%d,%d]", v, hfVersionMin, hfVersionMax)
	}
	return HFVersion(v), nil
}

// FromVote maps a raw vote byte to an HFVersion: 0 defaults to version 1,
// and any vote beyond the highest known version saturates at that highest
// known version (§4.1 `from_vote`).
func FromVote(v uint8) HFVersion {
	if v == 0 {
		return HFVersion1
	}
	if v > uint8(hfVersionMax) {
		return hfVersionMax
	}
	return HFVersion(v)
}

// CheckBlockVersionVote enforces that a block's declared major version
// matches the currently active hard fork, and that its vote (minor version)
// is for the current fork or later (§4.1).
func CheckBlockVersionVote(current HFVersion, version HFVersion, vote HFVersion) error {
	if version != current {
		return errs.Consensusf("VersionIncorrect", "block version %d != current hard fork %d", version, current)
	}
	if vote < current {
		return errs.Consensusf("VersionIncorrect", "vote %d below current hard fork %d", vote, current)
	}
	return nil
}

// TargetBlockTime is the intended seconds-per-block used by the difficulty
// algorithm: 60s under V1, 120s from V2 onward (§4.1 Hard-fork).
func TargetBlockTime(v HFVersion) uint64 {
	if v == HFVersion1 {
		return 60
	}
	return 120
}

// Network selects the activation-height / vote-threshold table to use.
type Network uint8

const (
	Mainnet Network = iota
	Testnet
	Stagenet
)

// ActivationRule is one row of the per-network hard-fork table: the height
// at which a version first becomes eligible to activate, and the percentage
// of the voting window that must favor it (§3 Hard-fork state, §6).
type ActivationRule struct {
	Version              HFVersion
	Height               uint64
	VoteThresholdPercent uint64
}

// mainnetActivationHeights per §6, one entry per hard fork from V1 (genesis)
// through V16.
var mainnetActivationHeights = []uint64{
	0, 1009827, 1141317, 1220516, 1288616, 1400000, 1546000, 1685555,
	1686275, 1788000, 1788720, 1978433, 2210000, 2210720, 2688888, 2689608,
}

// testnetActivationHeights and stagenetActivationHeights mirror the
// reference implementation's tables, one entry per hard fork from V1
// through V16.
var testnetActivationHeights = []uint64{
	0, 624634, 800500, 801219, 802660, 971400, 1057027, 1057058,
	1057778, 1154318, 1155038, 1308737, 1543939, 1544659, 1982800, 1983520,
}

var stagenetActivationHeights = []uint64{
	0, 32000, 33000, 34000, 35000, 36000, 37000, 176456,
	177176, 269000, 269720, 454721, 675405, 676125, 1151000, 1151720,
}

func heightsFor(n Network) []uint64 {
	switch n {
	case Testnet:
		return testnetActivationHeights
	case Stagenet:
		return stagenetActivationHeights
	default:
		return mainnetActivationHeights
	}
}

// defaultVoteThresholdPercent is used uniformly across versions; only the
// activation height table differs from network to network in practice.
const defaultVoteThresholdPercent = 80

// ActivationTable returns the full ordered activation-rule table for n.
func ActivationTable(n Network) []ActivationRule {
	heights := heightsFor(n)
	table := make([]ActivationRule, len(heights))
	for i, h := range heights {
		table[i] = ActivationRule{
			Version:              HFVersion(i + 1),
			Height:               h,
			VoteThresholdPercent: defaultVoteThresholdPercent,
		}
	}
	return table
}

// ActivationHeight returns the configured activation height for v on
// network n.
func ActivationHeight(n Network, v HFVersion) uint64 {
	heights := heightsFor(n)
	idx := int(v) - 1
	if idx < 0 || idx >= len(heights) {
		return 0
	}
	return heights[idx]
}

// DefaultHardForkWindow is the rolling vote-tally window size (§3).
const DefaultHardForkWindow = 10080
