package decider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// decideRequest is the payload posted to the reasoning service.
type decideRequest struct {
	Symbol    string                `json:"symbol"`
	Model     string                `json:"model,omitempty"`
	Signals   map[string]float64    `json:"signals"`
	Portfolio domain.PortfolioState `json:"portfolio"`
}

// Remote calls an external reasoning service over HTTP. The service receives
// the snapshot signals plus portfolio state and returns a Decision in the
// domain schema. Any transport failure or malformed response is surfaced as
// ErrDecision so the workflow fails the cycle instead of crashing.
type Remote struct {
	http   *resty.Client
	model  string
	logger *slog.Logger
}

// NewRemote creates a Remote decider against the given base URL. timeout <= 0
// selects a 45 second default.
func NewRemote(endpoint, apiKey, model string, timeout time.Duration, logger *slog.Logger) *Remote {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetRetryCount(1)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &Remote{
		http:   client,
		model:  model,
		logger: logger.With(slog.String("component", "remote_decider")),
	}
}

func (r *Remote) Name() string { return "remote" }

// Decide posts the snapshot to /v1/decide and validates the response.
func (r *Remote) Decide(ctx context.Context, snap domain.MarketSnapshot, portfolio domain.PortfolioState) (domain.Decision, error) {
	var decision domain.Decision

	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(decideRequest{
			Symbol:    snap.Symbol,
			Model:     r.model,
			Signals:   snap.Signals,
			Portfolio: portfolio,
		}).
		SetResult(&decision).
		Post("/v1/decide")
	if err != nil {
		return domain.Decision{}, fmt.Errorf("decider: remote call: %v: %w", err, domain.ErrDecision)
	}
	if resp.IsError() {
		return domain.Decision{}, fmt.Errorf("decider: remote status %d: %w", resp.StatusCode(), domain.ErrDecision)
	}
	if err := decision.Validate(); err != nil {
		return domain.Decision{}, err
	}

	r.logger.Info("remote decision received",
		slog.String("symbol", snap.Symbol),
		slog.String("action", string(decision.Action)),
		slog.Float64("confidence", decision.Confidence),
	)
	return decision, nil
}

// Compile-time interface check.
var _ Decider = (*Remote)(nil)
