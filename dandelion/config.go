package dandelion

import "time"

// Config is the Dandelion++ router and pool manager's tunable parameters
// (§4.6).
type Config struct {
	// FluffProbability is the Bernoulli parameter drawn once per epoch to
	// pick State (§4.6 State).
	FluffProbability float64
	// EpochDuration bounds how long a drawn State and its stem-peer graph
	// remain in effect before a rollover (§4.6 Epoch rollover).
	EpochDuration time.Duration
	// StemGraphSize is how many outbound stem peers the router tries to
	// maintain while State == Stem (§4.6 State: "the graph's required
	// size").
	StemGraphSize int
	// EmbargoMeanSeconds parameterizes the exponential embargo-timer
	// distribution (§4.6 Embargo).
	EmbargoMeanSeconds float64
}

// DefaultConfig holds the default parameters: a 20% per-epoch fluff
// probability, a ten-minute epoch, two stem peers, and a ~39s mean embargo
// (cuprate/monerod's historical constant).
var DefaultConfig = Config{
	FluffProbability:   0.2,
	EpochDuration:      10 * time.Minute,
	StemGraphSize:      2,
	EmbargoMeanSeconds: 39,
}

func (c Config) numberOfStems() int {
	if c.StemGraphSize <= 0 {
		return 2
	}
	return c.StemGraphSize
}
