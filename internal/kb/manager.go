// Knowledge base metadata store - SQLite
package kb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	apperrors "github.com/fanlunting/yuxi2/pkg/errors"
	"github.com/fanlunting/yuxi2/pkg/logger"
	"go.uber.org/zap"
)

// Knowledge base kinds. LightRAG-backed bases get their own server-side
// store; everything else lives in the shared Neo4j database.
const (
	KindLightRAG = "lightrag"
	KindUpload   = "upload"
)

// KnowledgeBase is a metadata record for a single knowledge base
type KnowledgeBase struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	EmbedModel string    `json:"embed_model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Manager tracks knowledge bases in a local SQLite database and classifies
// identifiers for the adapter factory
type Manager struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewManager opens (or creates) the metadata database at dbPath
func NewManager(dbPath string) (*Manager, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := &Manager{db: db, logger: logger.Named("kb")}

	// Set WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous: %w", err)
	}

	if err := m.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	m.logger.Info("Knowledge base store opened", zap.String("path", dbPath))
	return m, nil
}

func (m *Manager) initSchema() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS knowledge_bases (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			embed_model TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}

// Create registers a new knowledge base and returns its record
func (m *Manager) Create(ctx context.Context, name, kind, embedModel string) (*KnowledgeBase, error) {
	if name == "" {
		return nil, fmt.Errorf("knowledge base name is required")
	}
	if kind == "" {
		kind = KindUpload
	}

	kb := &KnowledgeBase{
		ID:         uuid.New().String(),
		Name:       name,
		Kind:       kind,
		EmbedModel: embedModel,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (id, name, kind, embed_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, kb.ID, kb.Name, kb.Kind, kb.EmbedModel, kb.CreatedAt, kb.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert knowledge base: %w", err)
	}

	m.logger.Info("Knowledge base created",
		zap.String("kb_id", kb.ID),
		zap.String("name", kb.Name),
		zap.String("kind", kb.Kind),
	)
	return kb, nil
}

// Get returns the knowledge base with the given id
func (m *Manager) Get(ctx context.Context, kbID string) (*KnowledgeBase, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, name, kind, COALESCE(embed_model, ''), created_at, updated_at
		FROM knowledge_bases WHERE id = ?
	`, kbID)

	kb := &KnowledgeBase{}
	err := row.Scan(&kb.ID, &kb.Name, &kb.Kind, &kb.EmbedModel, &kb.CreatedAt, &kb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewKBNotFound(kbID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	return kb, nil
}

// List returns all knowledge bases, newest first
func (m *Manager) List(ctx context.Context) ([]KnowledgeBase, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, kind, COALESCE(embed_model, ''), created_at, updated_at
		FROM knowledge_bases ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	defer rows.Close()

	kbs := []KnowledgeBase{}
	for rows.Next() {
		var kb KnowledgeBase
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Kind, &kb.EmbedModel, &kb.CreatedAt, &kb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		kbs = append(kbs, kb)
	}
	return kbs, rows.Err()
}

// Delete removes the knowledge base record. Graph data is cleaned up by the
// caller through the adapter.
func (m *Manager) Delete(ctx context.Context, kbID string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = ?`, kbID)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewKBNotFound(kbID)
	}

	m.logger.Info("Knowledge base deleted", zap.String("kb_id", kbID))
	return nil
}

// IsLightRAGDatabase reports whether the identifier names a LightRAG-backed
// knowledge base. Unknown identifiers and lookup failures report false.
func (m *Manager) IsLightRAGDatabase(kbID string) bool {
	kb, err := m.Get(context.Background(), kbID)
	if err != nil {
		return false
	}
	return kb.Kind == KindLightRAG
}
