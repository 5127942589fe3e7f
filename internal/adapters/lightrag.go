package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fanlunting/yuxi2/internal/graph"
	apperrors "github.com/fanlunting/yuxi2/pkg/errors"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
)

const lightRAGRequestTimeout = 30 * time.Second

// LightRAGAdapter serves knowledge bases backed by a LightRAG server.
// The kb_id selects the backing store server-side; no local graph database
// is involved.
type LightRAGAdapter struct {
	baseURL string
	kbID    string
	client  *http.Client
	logger  *zap.Logger
}

// NewLightRAGAdapter builds a lightrag adapter from factory options.
// The server address comes from options, falling back to LIGHTRAG_URL.
func NewLightRAGAdapter(opts Options) (GraphAdapter, error) {
	baseURL := opts.Config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("LIGHTRAG_URL")
	}
	if baseURL == "" {
		return nil, apperrors.NewAdapterMisconfigured(TypeLightRAG, "server base URL is required")
	}

	return &LightRAGAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		kbID:    opts.Config.KBID,
		client:  &http.Client{Timeout: lightRAGRequestTimeout},
		logger:  logger.Named("adapter.lightrag"),
	}, nil
}

// Type returns the adapter's type tag
func (a *LightRAGAdapter) Type() string {
	return TypeLightRAG
}

// KBID returns the knowledge base identifier this adapter serves
func (a *LightRAGAdapter) KBID() string {
	return a.kbID
}

// Wire types for the LightRAG graph API

type lightRAGNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

type lightRAGEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

type lightRAGGraph struct {
	Nodes []lightRAGNode `json:"nodes"`
	Edges []lightRAGEdge `json:"edges"`
}

// SampleGraph fetches a subgraph from the server
func (a *LightRAGAdapter) SampleGraph(ctx context.Context, limit int) (*graph.Subgraph, error) {
	return a.fetchGraph(ctx, "*", limit)
}

// SearchNodes fetches the subgraph around nodes matching the query label
func (a *LightRAGAdapter) SearchNodes(ctx context.Context, query string, limit int) ([]graph.Entity, error) {
	sub, err := a.fetchGraph(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return sub.Nodes, nil
}

// Labels lists the entity labels known to the server for this kb
func (a *LightRAGAdapter) Labels(ctx context.Context) ([]string, error) {
	var labels []string
	if err := a.getJSON(ctx, "/graph/label/list", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// Stats counts nodes and edges from a full graph fetch. The LightRAG API
// has no dedicated count endpoint.
func (a *LightRAGAdapter) Stats(ctx context.Context) (*graph.Stats, error) {
	sub, err := a.fetchGraph(ctx, "*", 0)
	if err != nil {
		return nil, err
	}
	return &graph.Stats{
		NodeCount: int64(len(sub.Nodes)),
		EdgeCount: int64(len(sub.Edges)),
	}, nil
}

// Close releases idle connections held by the HTTP client
func (a *LightRAGAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *LightRAGAdapter) fetchGraph(ctx context.Context, label string, maxNodes int) (*graph.Subgraph, error) {
	params := url.Values{}
	params.Set("label", label)
	if maxNodes > 0 {
		params.Set("max_nodes", strconv.Itoa(maxNodes))
	}

	var raw lightRAGGraph
	if err := a.getJSON(ctx, "/graphs", params, &raw); err != nil {
		return nil, err
	}

	sub := &graph.Subgraph{Nodes: []graph.Entity{}, Edges: []graph.Relation{}}
	for _, node := range raw.Nodes {
		entity := graph.Entity{
			ID:         node.ID,
			Properties: node.Properties,
		}
		if name, ok := node.Properties["entity_id"].(string); ok {
			entity.Name = name
		} else {
			entity.Name = node.ID
		}
		if len(node.Labels) > 0 {
			entity.Type = node.Labels[0]
		}
		sub.Nodes = append(sub.Nodes, entity)
	}
	for _, edge := range raw.Edges {
		rel := graph.Relation{
			SourceID: edge.Source,
			TargetID: edge.Target,
			Type:     edge.Type,
		}
		if w, ok := edge.Properties["weight"].(float64); ok {
			rel.Weight = w
		}
		sub.Edges = append(sub.Edges, rel)
	}
	return sub, nil
}

func (a *LightRAGAdapter) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("kb_id", a.kbID)
	endpoint := a.baseURL + path + "?" + params.Encode()

	// Retry logic with linear backoff
	var lastErr error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			a.logger.Warn("Retrying LightRAG request",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to build LightRAG request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("LightRAG server returned %d for %s", resp.StatusCode, path)
			// Client errors will not improve on retry
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return lastErr
			}
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode LightRAG response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("LightRAG request failed after %d attempts: %w", maxRetries, lastErr)
}
