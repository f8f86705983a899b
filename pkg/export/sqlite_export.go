package export

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vanderheijden86/checktree/pkg/debug"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/version"

	_ "modernc.org/sqlite"
)

// ErrSchemaMismatch is returned when appending to a database written by an
// incompatible version of ct.
var ErrSchemaMismatch = errors.New("sqlite schema version mismatch")

// SQLiteExporter appends snapshots to a SQLite database.
type SQLiteExporter struct {
	// Overwrite removes an existing database before writing.
	Overwrite bool
}

// NewSQLiteExporter creates an exporter that appends to existing databases.
func NewSQLiteExporter() *SQLiteExporter {
	return &SQLiteExporter{}
}

// Export writes snaps to the database at path, creating it when needed.
func (e *SQLiteExporter) Export(path string, snaps ...*Snapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if e.Overwrite {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove existing database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := CreateSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	v, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != 0 && v != SchemaVersion {
		return fmt.Errorf("%w: database has %d, want %d", ErrSchemaMismatch, v, SchemaVersion)
	}

	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		if err := insertSnapshot(db, snap); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.ID, err)
		}
	}

	if err := insertMeta(db); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	debug.Log("export: wrote %d snapshot(s) to %s", len(snaps), path)
	return db.Close()
}

func insertSnapshot(db *sql.DB, snap *Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO snapshots (id, model_id, created_at, source, query, node_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.ModelID, snap.CreatedAt.Format(time.RFC3339Nano), snap.Source, snap.Query, len(snap.Nodes)); err != nil {
		return err
	}

	nodeStmt, err := tx.Prepare(`
		INSERT INTO nodes (snapshot_id, id, label, parent_id, depth, position, is_leaf)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	statusStmt, err := tx.Prepare(`
		INSERT INTO statuses (snapshot_id, node_id, layer, status, expanded, matching)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer statusStmt.Close()

	for pos, row := range snap.Nodes {
		var parent *string
		if row.Parent != "" {
			p := row.Parent
			parent = &p
		}
		if _, err := nodeStmt.Exec(snap.ID, row.ID, row.Label, parent, row.Depth, pos, boolInt(row.Leaf)); err != nil {
			return fmt.Errorf("insert node %s: %w", row.ID, err)
		}
		layers := [...]struct {
			layer  model.Layer
			status model.Status
		}{
			{model.LayerPrimary, row.Primary},
			{model.LayerSecondary, row.Secondary},
		}
		for _, l := range layers {
			if _, err := statusStmt.Exec(snap.ID, row.ID, l.layer.String(), l.status.String(),
				boolInt(row.Expanded), boolInt(row.Matching)); err != nil {
				return fmt.Errorf("insert %s status for %s: %w", l.layer, row.ID, err)
			}
		}
	}
	return tx.Commit()
}

func insertMeta(db *sql.DB) error {
	meta := map[string]string{
		"schema_version": strconv.Itoa(SchemaVersion),
		"ct_version":     version.Version,
		"updated_at":     time.Now().UTC().Format(time.RFC3339),
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range meta {
		if _, err := stmt.Exec(k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
