package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
)

// Client wraps an OpenAI-compatible embeddings endpoint
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a new embedding client. baseURL may point at any
// OpenAI-compatible gateway; a dummy key is used when none is configured.
func NewClient(baseURL, apiKey, model string) *Client {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL + "/v1"
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger.Named("embedding"),
	}
}

// Model returns the configured embedding model
func (c *Client) Model() string {
	return c.model
}

// Embed returns one embedding vector per input text
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	}

	// Retry logic with linear backoff
	var resp openai.EmbeddingResponse
	var err error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			c.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
		}

		resp, err = c.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}

		c.logger.Error("Embedding request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", c.model),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts after %d attempts: %w", len(texts), maxRetries, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	c.logger.Debug("Embeddings generated",
		zap.String("model", c.model),
		zap.Int("count", len(vectors)),
	)
	return vectors, nil
}

// EmbedOne embeds a single text
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
