package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"shade/crypto"
)

// ErrUnknownToken is returned by StaticProber for unregistered token contracts.
var ErrUnknownToken = errors.New("tokens: unknown token contract")

// StaticProber answers symbol probes from an in-memory directory of token
// contracts. It stands in for the host token interface when the contract is
// embedded outside a ledger.
type StaticProber struct {
	mu      sync.RWMutex
	symbols map[crypto.Address]string
}

// NewStaticProber returns an empty directory.
func NewStaticProber() *StaticProber {
	return &StaticProber{symbols: make(map[crypto.Address]string)}
}

// Register records token with the provided symbol.
func (p *StaticProber) Register(token crypto.Address, symbol string) error {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return fmt.Errorf("tokens: symbol required for %s", token)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols[token] = normalized
	return nil
}

// Symbol implements Prober.
func (p *StaticProber) Symbol(_ context.Context, token crypto.Address) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	symbol, ok := p.symbols[token]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	return symbol, nil
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, token crypto.Address) (string, error)

// Symbol implements Prober.
func (f ProberFunc) Symbol(ctx context.Context, token crypto.Address) (string, error) {
	return f(ctx, token)
}
