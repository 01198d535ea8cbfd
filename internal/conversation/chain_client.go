package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ChainLLMClient tries an ordered list of LLM clients and returns the first
// non-empty response. A provider that errors or replies with empty text is
// skipped and the next one attempted.
type ChainLLMClient struct {
	clients []LLMClient
	logger  *slog.Logger
}

// NewChainLLMClient creates a chain over the given clients, tried in order.
func NewChainLLMClient(clients []LLMClient, logger *slog.Logger) *ChainLLMClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainLLMClient{
		clients: clients,
		logger:  logger,
	}
}

// Complete walks the chain until a provider returns non-empty text. When every
// provider fails it returns ErrAllProvidersFailed wrapping the last error.
func (c *ChainLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if len(c.clients) == 0 {
		return LLMResponse{}, ErrAllProvidersFailed
	}

	var lastErr error
	for i, client := range c.clients {
		if err := ctx.Err(); err != nil {
			return LLMResponse{}, err
		}

		resp, err := client.Complete(ctx, req)
		if err != nil {
			lastErr = err
			c.logger.Warn("llm provider failed, trying next",
				"provider_index", i,
				"providers_total", len(c.clients),
				"error", err.Error(),
			)
			continue
		}
		if strings.TrimSpace(resp.Text) == "" {
			c.logger.Warn("llm provider returned empty text, trying next",
				"provider_index", i,
			)
			continue
		}

		if i > 0 {
			c.logger.Info("llm fallback provider succeeded", "provider_index", i)
		}
		return resp, nil
	}

	if lastErr != nil {
		return LLMResponse{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	}
	return LLMResponse{}, ErrAllProvidersFailed
}

// IsQuotaError reports whether an LLM failure looks like provider quota
// exhaustion rather than a transient fault.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted")
}
