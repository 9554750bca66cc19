package services

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// ChainClient is the read surface the monitor needs from a chain connection.
// *ethclient.Client satisfies it.
type ChainClient interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ClientRegistry maps a chain ID to a live connection for that chain.
// Registration happens at startup; lookups may run concurrently from many
// watch tasks.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[uint64]ChainClient
}

// NewClientRegistry creates a registry with the provided map of chain IDs to clients.
func NewClientRegistry(clients map[uint64]ChainClient) *ClientRegistry {
	if clients == nil {
		clients = make(map[uint64]ChainClient)
	}
	return &ClientRegistry{clients: clients}
}

// NewClientRegistryFromEthClients wraps a map of ethclient.Client instances.
func NewClientRegistryFromEthClients(clients map[uint64]*ethclient.Client) *ClientRegistry {
	wrapped := make(map[uint64]ChainClient, len(clients))
	for chainID, client := range clients {
		wrapped[chainID] = client
	}
	return NewClientRegistry(wrapped)
}

// Register adds or replaces the connection for a chain ID.
func (r *ClientRegistry) Register(chainID uint64, client ChainClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[chainID] = client
}

// GetClient returns the client for the specified chain ID.
func (r *ClientRegistry) GetClient(chainID uint64) (ChainClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[chainID]
	if !ok {
		return nil, errors.Errorf("no client found for chain ID %d", chainID)
	}
	return client, nil
}
