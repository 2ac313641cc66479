// Package decider defines the reasoning collaborator interface and its
// implementations. The concrete decider is selected once at startup from
// configuration; the workflow engine only ever sees the interface.
package decider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Decider produces one structured recommendation per workflow cycle.
// Implementations must be safe for concurrent use across workflow identities.
type Decider interface {
	Name() string
	Decide(ctx context.Context, snap domain.MarketSnapshot, portfolio domain.PortfolioState) (domain.Decision, error)
}

// Config selects and parameterises the decider.
type Config struct {
	Name     string        // "remote" or "technical"
	Endpoint string        // remote: reasoning service base URL
	APIKey   string        // remote: bearer credential
	Model    string        // remote: model hint forwarded to the service
	Timeout  time.Duration // remote: per-call deadline, 0 selects the default
}

// New constructs the configured Decider.
func New(cfg Config, logger *slog.Logger) (Decider, error) {
	switch cfg.Name {
	case "remote":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("decider: remote requires an endpoint")
		}
		return NewRemote(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Timeout, logger), nil
	case "technical", "":
		return NewTechnical(logger), nil
	default:
		return nil, fmt.Errorf("decider: unknown decider %q", cfg.Name)
	}
}
