package export

import (
	"database/sql"
	"fmt"
	"strconv"
)

// SchemaVersion is stored in the meta table and checked before appending.
const SchemaVersion = 1

// CreateSchema creates all tables and indexes. It is idempotent.
func CreateSchema(db *sql.DB) error {
	if err := createCoreTables(db); err != nil {
		return fmt.Errorf("create core tables: %w", err)
	}
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	if err := createMetaTable(db); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	return nil
}

func createCoreTables(db *sql.DB) error {
	// One row per node per snapshot; trees can change between snapshots.
	nodesSQL := `
		CREATE TABLE IF NOT EXISTS nodes (
			snapshot_id TEXT NOT NULL,
			id TEXT NOT NULL,
			label TEXT NOT NULL,
			parent_id TEXT,
			depth INTEGER NOT NULL,
			position INTEGER NOT NULL,
			is_leaf INTEGER NOT NULL,
			PRIMARY KEY (snapshot_id, id),
			FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
		)
	`
	snapshotsSQL := `
		CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			source TEXT,
			query TEXT,
			node_count INTEGER NOT NULL
		)
	`
	statusesSQL := `
		CREATE TABLE IF NOT EXISTS statuses (
			snapshot_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			layer TEXT NOT NULL,
			status TEXT NOT NULL,
			expanded INTEGER NOT NULL DEFAULT 0,
			matching INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (snapshot_id, node_id, layer),
			FOREIGN KEY (snapshot_id) REFERENCES snapshots(id)
		)
	`
	if _, err := db.Exec(snapshotsSQL); err != nil {
		return fmt.Errorf("create snapshots table: %w", err)
	}
	if _, err := db.Exec(nodesSQL); err != nil {
		return fmt.Errorf("create nodes table: %w", err)
	}
	if _, err := db.Exec(statusesSQL); err != nil {
		return fmt.Errorf("create statuses table: %w", err)
	}
	return nil
}

func createIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(snapshot_id, parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_statuses_status ON statuses(snapshot_id, layer, status)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at DESC)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func createMetaTable(db *sql.DB) error {
	metaSQL := `
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)
	`
	if _, err := db.Exec(metaSQL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	return nil
}

// schemaVersion reads the stored schema version. A database without one
// reports 0.
func schemaVersion(db *sql.DB) (int, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema_version %q", value)
	}
	return v, nil
}
