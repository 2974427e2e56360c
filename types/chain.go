package types

import (
	"fmt"

	uuid "github.com/satori/go.uuid"
)

// ChainId is an opaque 128-bit token identifying an alt chain. It is minted
// on the first alt block of a new fork and destroyed when that fork is
// either promoted to main or entirely flushed (§3 Lifecycles).
type ChainId [16]byte

// NilChainId is the zero value, reserved to mean "the main chain" wherever a
// ChainId field doubles as a Chain selector.
var NilChainId ChainId

// NewChainId mints a fresh opaque chain identity. Backed by a random (v4)
// UUID: a ChainId has no semantic content beyond uniqueness, which is
// exactly the contract a UUID provides.
func NewChainId() ChainId {
	var id ChainId
	copy(id[:], uuid.NewV4().Bytes())
	return id
}

func (c ChainId) String() string {
	return uuid.UUID(c).String()
}

func (c ChainId) IsNil() bool {
	return c == NilChainId
}

// Chain selects either the main chain or a specific alt chain.
type Chain struct {
	AltId ChainId // NilChainId means Main
}

// Main is the canonical chain selector.
var Main = Chain{}

func Alt(id ChainId) Chain {
	return Chain{AltId: id}
}

func (c Chain) IsMain() bool {
	return c.AltId.IsNil()
}

func (c Chain) String() string {
	if c.IsMain() {
		return "main"
	}
	return fmt.Sprintf("alt(%s)", c.AltId)
}

// AltChainInfo records where an alt chain forked off and how long it is.
// Walking ParentChain pointers from any alt chain yields the full history
// back to the main chain, forming a DAG rooted at Main (§3).
type AltChainInfo struct {
	ChainId             ChainId
	ParentChain         Chain
	CommonAncestorHeight uint64
	ChainHeight         uint64
}
