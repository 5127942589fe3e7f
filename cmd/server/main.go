package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/fanlunting/yuxi2/internal/adapters"
	"github.com/fanlunting/yuxi2/internal/embedding"
	"github.com/fanlunting/yuxi2/internal/graph"
	"github.com/fanlunting/yuxi2/internal/ingest"
	"github.com/fanlunting/yuxi2/internal/kb"
	"github.com/fanlunting/yuxi2/pkg/config"
	apperrors "github.com/fanlunting/yuxi2/pkg/errors"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting knowledge graph server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify Neo4j connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	// Initialize dependencies
	graphStore := graph.NewStore(driver)
	kbManager, err := kb.NewManager(cfg.KBDBPath)
	if err != nil {
		log.Fatal("Failed to open knowledge base store", zap.Error(err))
	}
	defer kbManager.Close()

	var embedder *embedding.Client
	if cfg.EmbeddingEnabled() {
		embedder = embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	}

	factory := adapters.NewFactory(
		adapters.WithEmbedder(embedder),
		adapters.WithLightRAGBaseURL(cfg.LightRAGURL),
	)
	ingester := ingest.NewIngester(graphStore, embedder, cfg.ChunkSize, cfg.ChunkOverlap)

	// openAdapter resolves a knowledge base identifier to a fresh adapter.
	// Callers close the returned adapter.
	openAdapter := func(kbID string) (adapters.GraphAdapter, error) {
		return factory.CreateForKB(kbID, kbManager, graphStore)
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Supported adapter types
		api.GET("/adapters", func(c *gin.Context) {
			c.JSON(http.StatusOK, factory.SupportedTypes())
		})

		// Create knowledge base
		api.POST("/kb", func(c *gin.Context) {
			var req struct {
				Name       string `json:"name" binding:"required"`
				Kind       string `json:"kind"`
				EmbedModel string `json:"embed_model"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			record, err := kbManager.Create(c.Request.Context(), req.Name, req.Kind, req.EmbedModel)
			if err != nil {
				log.Error("Failed to create knowledge base", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create knowledge base"})
				return
			}

			// Upload-backed bases get a vector index for similarity search
			if record.Kind != kb.KindLightRAG && embedder != nil {
				scope := graph.Scope{
					Database: cfg.Neo4jDatabase,
					Label:    kb.DeriveNodeLabel(record.ID),
				}
				if err := graphStore.EnsureVectorIndex(c.Request.Context(), scope, cfg.EmbeddingDim); err != nil {
					log.Warn("Failed to create vector index", zap.String("kb_id", record.ID), zap.Error(err))
				}
			}

			c.JSON(http.StatusCreated, record)
		})

		// List knowledge bases
		api.GET("/kb", func(c *gin.Context) {
			kbs, err := kbManager.List(c.Request.Context())
			if err != nil {
				log.Error("Failed to list knowledge bases", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list knowledge bases"})
				return
			}
			c.JSON(http.StatusOK, kbs)
		})

		// Get knowledge base
		api.GET("/kb/:id", func(c *gin.Context) {
			record, err := kbManager.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				var notFound *apperrors.ErrKBNotFound
				if errors.As(err, &notFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "Knowledge base not found"})
					return
				}
				log.Error("Failed to fetch knowledge base", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch knowledge base"})
				return
			}
			c.JSON(http.StatusOK, record)
		})

		// Delete knowledge base (and its upload graph data)
		api.DELETE("/kb/:id", func(c *gin.Context) {
			kbID := c.Param("id")
			ctx := c.Request.Context()

			adapter, err := openAdapter(kbID)
			if err == nil {
				if upload, ok := adapter.(*adapters.UploadAdapter); ok {
					if err := upload.Wipe(ctx); err != nil {
						log.Warn("Failed to wipe graph data", zap.String("kb_id", kbID), zap.Error(err))
					}
				}
				adapter.Close()
			}

			if err := kbManager.Delete(ctx, kbID); err != nil {
				var notFound *apperrors.ErrKBNotFound
				if errors.As(err, &notFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "Knowledge base not found"})
					return
				}
				log.Error("Failed to delete knowledge base", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete knowledge base"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		// Sample the knowledge base graph
		api.GET("/kb/:id/graph", func(c *gin.Context) {
			adapter, err := openAdapter(c.Param("id"))
			if err != nil {
				log.Error("Failed to create adapter", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open graph"})
				return
			}
			defer adapter.Close()

			sub, err := adapter.SampleGraph(c.Request.Context(), queryLimit(c, 100))
			if err != nil {
				log.Error("Failed to sample graph", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sample graph"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"adapter_type": adapter.Type(), "graph": sub})
		})

		// List graph labels
		api.GET("/kb/:id/graph/labels", func(c *gin.Context) {
			adapter, err := openAdapter(c.Param("id"))
			if err != nil {
				log.Error("Failed to create adapter", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open graph"})
				return
			}
			defer adapter.Close()

			labels, err := adapter.Labels(c.Request.Context())
			if err != nil {
				log.Error("Failed to list labels", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list labels"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"labels": labels})
		})

		// Search graph nodes
		api.GET("/kb/:id/graph/search", func(c *gin.Context) {
			query := strings.TrimSpace(c.Query("q"))
			if query == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
				return
			}

			adapter, err := openAdapter(c.Param("id"))
			if err != nil {
				log.Error("Failed to create adapter", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open graph"})
				return
			}
			defer adapter.Close()

			nodes, err := adapter.SearchNodes(c.Request.Context(), query, queryLimit(c, 20))
			if err != nil {
				log.Error("Failed to search nodes", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search nodes"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"nodes": nodes})
		})

		// Graph stats
		api.GET("/kb/:id/graph/stats", func(c *gin.Context) {
			adapter, err := openAdapter(c.Param("id"))
			if err != nil {
				log.Error("Failed to create adapter", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open graph"})
				return
			}
			defer adapter.Close()

			stats, err := adapter.Stats(c.Request.Context())
			if err != nil {
				log.Error("Failed to fetch stats", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
				return
			}
			c.JSON(http.StatusOK, stats)
		})

		// Ingest a document into an upload knowledge base
		api.POST("/kb/:id/documents", func(c *gin.Context) {
			kbID := c.Param("id")
			ctx := c.Request.Context()

			var req struct {
				Source string `json:"source" binding:"required"`
				Text   string `json:"text"`
				HTML   string `json:"html"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if req.Text == "" && req.HTML == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "text or html is required"})
				return
			}

			if factory.DetectType(kbID, kbManager) == adapters.TypeLightRAG {
				c.JSON(http.StatusBadRequest, gin.H{"error": "LightRAG knowledge bases are ingested server-side"})
				return
			}

			text := req.Text
			if text == "" {
				extracted, err := ingest.ExtractHTML(strings.NewReader(req.HTML))
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid html"})
					return
				}
				text = extracted
			}

			scope := graph.Scope{
				Database: cfg.Neo4jDatabase,
				Label:    kb.DeriveNodeLabel(kbID),
			}
			chunks, err := ingester.IngestDocument(ctx, scope, ingest.Document{
				Source: req.Source,
				Text:   text,
			})
			if err != nil {
				log.Error("Failed to ingest document", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest document"})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"chunks": chunks})
		})
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

func queryLimit(c *gin.Context, defaultValue int) int {
	raw := c.Query("limit")
	if raw == "" {
		return defaultValue
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultValue
	}
	return limit
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
