package checkpoint

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/qconcept/internal/concept"
	"github.com/danielpatrickdp/qconcept/internal/layout"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	checkpoint_id TEXT PRIMARY KEY,
	parent_id     TEXT,
	fingerprint   TEXT NOT NULL,
	layout_json   TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES checkpoints(checkpoint_id)
);

CREATE TABLE IF NOT EXISTS active_checkpoint (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	checkpoint_id TEXT NOT NULL,
	FOREIGN KEY (checkpoint_id) REFERENCES checkpoints(checkpoint_id)
);
`

// timeLayout is fixed width so created_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region store-struct
// Store manages versioned embedding tables in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region save
// NewRecord wraps an embedding table for cfg in a record with a fresh ID.
// The table shape must match the layout of cfg.
func NewRecord(cfg *concept.Config, parentID string, embedding *layout.Tensor, metricsJSON string) (Record, error) {
	l := LayoutOf(cfg)
	if err := layout.ExpectShape("embedding table", embedding, l.Rows, l.Cols); err != nil {
		return Record{}, err
	}
	return Record{
		CheckpointID: uuid.New().String(),
		ParentID:     parentID,
		Layout:       l,
		Embedding:    embedding.Clone(),
		CreatedAt:    time.Now().UTC(),
		MetricsJSON:  metricsJSON,
	}, nil
}

// Commit inserts rec and makes it the active checkpoint atomically.
func (s *Store) Commit(rec Record) error {
	if err := layout.ExpectShape("embedding table", rec.Embedding, rec.Layout.Rows, rec.Layout.Cols); err != nil {
		return err
	}
	layoutJSON, err := json.Marshal(rec.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	var metricsPtr interface{}
	if rec.MetricsJSON != "" {
		metricsPtr = rec.MetricsJSON
	}

	_, err = tx.Exec(
		`INSERT INTO checkpoints (checkpoint_id, parent_id, fingerprint, layout_json, embedding, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CheckpointID, parentPtr, rec.Layout.Fingerprint(), string(layoutJSON),
		encodeTable(rec.Embedding), rec.CreatedAt.UTC().Format(timeLayout), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_checkpoint (id, checkpoint_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET checkpoint_id = excluded.checkpoint_id`,
		rec.CheckpointID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Save builds a record for cfg and commits it.
func (s *Store) Save(cfg *concept.Config, parentID string, embedding *layout.Tensor, metricsJSON string) (Record, error) {
	rec, err := NewRecord(cfg, parentID, embedding, metricsJSON)
	if err != nil {
		return Record{}, err
	}
	if err := s.Commit(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// #endregion save

// #region get
// GetCurrent reads the active checkpoint.
func (s *Store) GetCurrent() (Record, error) {
	var id string
	err := s.db.QueryRow(`SELECT checkpoint_id FROM active_checkpoint WHERE id = 1`).Scan(&id)
	if err != nil {
		return Record{}, fmt.Errorf("get active: %w", err)
	}
	return s.Get(id)
}

// Get retrieves a checkpoint by ID.
func (s *Store) Get(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT checkpoint_id, parent_id, layout_json, embedding, created_at, metrics_json
		 FROM checkpoints WHERE checkpoint_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("get checkpoint %s: %w", id, err)
	}
	return rec, nil
}

// Load returns the embedding table of checkpoint id after checking that
// its layout matches cfg.
func (s *Store) Load(id string, cfg *concept.Config) (*layout.Tensor, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	want := LayoutOf(cfg)
	if rec.Layout.Fingerprint() != want.Fingerprint() {
		return nil, fmt.Errorf("checkpoint %s (%s, %v) does not fit config (%s, %v): %w",
			id, rec.Layout.Kind, rec.Layout.InstanceDomains, want.Kind, want.InstanceDomains, ErrLayoutMismatch)
	}
	return rec.Embedding, nil
}

// #endregion get

// #region rollback
// Rollback sets the active pointer to a previous checkpoint.
func (s *Store) Rollback(targetID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM checkpoints WHERE checkpoint_id = ?`, targetID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check checkpoint: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("checkpoint %s not found", targetID)
	}

	_, err = s.db.Exec(`UPDATE active_checkpoint SET checkpoint_id = ? WHERE id = 1`, targetID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list
// List returns the most recent checkpoints, newest first.
func (s *Store) List(limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT checkpoint_id, parent_id, layout_json, embedding, created_at, metrics_json
		 FROM checkpoints ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list

// #region scan
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var parentID sql.NullString
	var layoutJSON string
	var blob []byte
	var createdStr string
	var metricsJSON sql.NullString

	if err := row.Scan(&rec.CheckpointID, &parentID, &layoutJSON, &blob, &createdStr, &metricsJSON); err != nil {
		return Record{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	if err := json.Unmarshal([]byte(layoutJSON), &rec.Layout); err != nil {
		return Record{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	table, err := decodeTable(blob, rec.Layout.Rows, rec.Layout.Cols)
	if err != nil {
		return Record{}, err
	}
	rec.Embedding = table
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	if metricsJSON.Valid {
		rec.MetricsJSON = metricsJSON.String
	}
	return rec, nil
}

// #endregion scan

// #region table-encoding
func encodeTable(t *layout.Tensor) []byte {
	data := t.Data()
	buf := make([]byte, len(data)*8)
	for i, f := range data {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeTable(b []byte, rows, cols int) (*layout.Tensor, error) {
	if len(b) != rows*cols*8 {
		return nil, fmt.Errorf("embedding blob has %d bytes, want %d: %w", len(b), rows*cols*8, concept.ErrShape)
	}
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return layout.FromData(data, rows, cols)
}

// #endregion table-encoding
