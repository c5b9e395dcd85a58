// Package chain wraps the WebSocket RPC connection to the chain-data
// provider: log subscriptions and block header lookups.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrNotConnected is returned when the provider connection is down.
// Callers must treat it as retryable.
var ErrNotConnected = errors.New("chain provider not connected")

// Config holds provider connection settings.
type Config struct {
	// WebSocket endpoint URL, including any provider API key.
	URL string

	DialTimeout   time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// Client is a connection-guarded wrapper around ethclient. The single
// underlying WebSocket connection is shared by all subscriptions.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	client    *ethclient.Client
	rpcClient *rpc.Client
	connected bool
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "chain-client"),
	}
}

// Connect dials the provider, retrying up to MaxRetries times. The chain ID
// check verifies the endpoint actually speaks Ethereum RPC before we hand
// the connection to subscribers.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info("retrying connection", "attempt", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryInterval):
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		c.rpcClient, err = rpc.DialContext(dialCtx, c.cfg.URL)
		cancel()
		if err != nil {
			c.logger.Warn("connection failed", "error", err, "attempt", attempt)
			continue
		}

		c.client = ethclient.NewClient(c.rpcClient)

		var chainID *big.Int
		chainID, err = c.client.ChainID(ctx)
		if err != nil {
			c.logger.Warn("chain ID check failed", "error", err)
			c.client.Close()
			continue
		}

		c.connected = true
		c.logger.Info("connected to provider", "chain_id", chainID)
		return nil
	}

	return fmt.Errorf("connect after %d attempts: %w", c.cfg.MaxRetries+1, err)
}

// Close releases the connection. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.connected = false
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HeaderByNumber fetches the header for a block number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConnected
	}
	return client.HeaderByNumber(ctx, number)
}

// SubscribeFilterLogs opens a filtered log subscription on the shared
// WebSocket connection.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConnected
	}
	return client.SubscribeFilterLogs(ctx, query, ch)
}
