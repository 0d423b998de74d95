package config

import "github.com/tolelom/diseq/types"

// GenesisBlock is block #0: empty, unsigned, timestamped at node boot.
// Every node in the committee constructs the identical genesis block
// independently rather than gossiping it, so BlockStore.Height starts at 1
// without any proposal round.
func GenesisBlock(bootUnixTimestamp uint32) *types.Block {
	return &types.Block{
		Height:    0,
		Messages:  nil,
		Timestamp: bootUnixTimestamp,
	}
}
