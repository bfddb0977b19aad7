package state

import (
	"time"

	"github.com/auriumchain/node/foundation/blockchain/database"
	"github.com/auriumchain/node/foundation/blockchain/peer"
)

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveBeneficiary returns the address mining rewards are paid to.
func (s *State) RetrieveBeneficiary() string {
	return s.beneficiaryID
}

// RetrieveGenesis returns a copy of the genesis block.
func (s *State) RetrieveGenesis() database.Block {
	return s.db.Genesis()
}

// RetrieveConsensus returns the mining parameters.
func (s *State) RetrieveConsensus() Consensus {
	return s.consensus
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// StalePeers returns the known peers not heard from within the horizon.
func (s *State) StalePeers(horizon time.Duration) []string {
	return s.knownPeers.Stale(horizon, time.Now())
}

// Persist rewrites the whole chain to storage.
func (s *State) Persist() error {
	return s.db.Persist()
}
