package config

import "fmt"

const (
	ethereumMainnetChainID  = 1
	bscMainnetChainID       = 56
	polygonMainnetChainID   = 137
	arbitrumMainnetChainID  = 42161
	baseMainnetChainID      = 8453
	avalancheMainnetChainID = 43114

	ethereumSepoliaChainID = 11155111
	bscTestnetChainID      = 97
	polygonAmoyChainID     = 80002
	arbitrumSepoliaChainID = 421614
	baseSepoliaChainID     = 84532
	avalancheFujiChainID   = 43113

	ethereumName  = "ETHEREUM"
	bscName       = "BSC"
	polygonName   = "POLYGON"
	arbitrumName  = "ARBITRUM"
	baseName      = "BASE"
	avalancheName = "AVALANCHE"
)

// chainNameFromID returns the chain name based on the chain ID
func chainNameFromID(chainID uint64) (string, error) {
	switch chainID {
	case arbitrumMainnetChainID, arbitrumSepoliaChainID:
		return arbitrumName, nil
	case baseMainnetChainID, baseSepoliaChainID:
		return baseName, nil
	case polygonMainnetChainID, polygonAmoyChainID:
		return polygonName, nil
	case ethereumMainnetChainID, ethereumSepoliaChainID:
		return ethereumName, nil
	case bscMainnetChainID, bscTestnetChainID:
		return bscName, nil
	case avalancheMainnetChainID, avalancheFujiChainID:
		return avalancheName, nil
	}
	return "", fmt.Errorf("unsupported chain ID: %d", chainID)
}

// GetChainName returns a human-readable chain name for labels and logs,
// falling back to a numeric form for unrecognized chains.
func GetChainName(chainID uint64) string {
	name, err := chainNameFromID(chainID)
	if err != nil {
		return fmt.Sprintf("chain_%d", chainID)
	}
	return name
}
