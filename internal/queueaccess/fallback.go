package queueaccess

import (
	"context"
	"fmt"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/queue"
)

// Session represents a job access handle and its cleanup function.
type Session struct {
	Access Access
	// Remote reports whether the daemon API backs the session.
	Remote bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries the daemon API first, then falls back to direct
// store access.
func OpenWithFallback(
	ctx context.Context,
	dial func(ctx context.Context) (*Client, error),
	openStore func() (*queue.Store, error),
	cfg *config.Config,
) (Session, error) {
	if dial != nil {
		if client, err := dial(ctx); err == nil {
			return Session{Access: NewHTTPAccess(client), Remote: true}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{
		Access: NewStoreAccess(cfg, store),
		close:  store.Close,
	}, nil
}

// DialDaemon returns a dial function that reaches the daemon configured in cfg
// and confirms it answers.
func DialDaemon(cfg *config.Config) func(ctx context.Context) (*Client, error) {
	return func(ctx context.Context) (*Client, error) {
		client, err := NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			return nil, err
		}
		return client, nil
	}
}
