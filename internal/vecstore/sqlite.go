package vecstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore implements Store on an embedded SQLite database. One database
// file holds every collection; points carry their collection id.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens or creates the database at dbPath and applies
// pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureCollection creates the collection row if missing and verifies the
// dimension of an existing one.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dimension)
	}

	var existing int
	err := s.db.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", name).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx, "INSERT INTO collections (name, dimension) VALUES (?, ?)", name, dimension)
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	case existing != dimension:
		return fmt.Errorf("%w: collection %s has dimension %d, want %d", ErrDimensionMismatch, name, existing, dimension)
	default:
		return nil
	}
}

// collectionID resolves a collection name to its id and dimension.
func (s *SQLiteStore) collectionID(ctx context.Context, name string) (int64, int, error) {
	var id int64
	var dimension int
	err := s.db.QueryRowContext(ctx, "SELECT id, dimension FROM collections WHERE name = ?", name).Scan(&id, &dimension)
	if err == sql.ErrNoRows {
		return 0, 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to look up collection %s: %w", name, err)
	}
	return id, dimension, nil
}

// Upsert writes points inside one transaction. Conflicting point IDs are
// overwritten, which keeps reprocessing after a crash duplicate-free.
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	collID, dimension, err := s.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	for _, p := range points {
		if len(p.Vector) != dimension {
			return fmt.Errorf("%w: point %s has dimension %d, collection %s wants %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), collection, dimension)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO points (collection_id, point_id, vector, project, file_path, line, role, preview, session_id, ts, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection_id, point_id) DO UPDATE SET
			vector = excluded.vector,
			project = excluded.project,
			file_path = excluded.file_path,
			line = excluded.line,
			role = excluded.role,
			preview = excluded.preview,
			session_id = excluded.session_id,
			ts = excluded.ts,
			updated_at = CURRENT_TIMESTAMP
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range points {
		var ts int64
		if !p.Payload.Timestamp.IsZero() {
			ts = p.Payload.Timestamp.UnixNano()
		}
		_, err := stmt.ExecContext(ctx, collID, p.ID, serializeVector(p.Vector),
			p.Payload.Project, p.Payload.FilePath, p.Payload.Line,
			p.Payload.Role, p.Payload.Preview, p.Payload.SessionID, ts)
		if err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Query returns the top results by cosine similarity. With sqlite-vec the
// distance is computed in SQL; otherwise candidates are scored in Go.
func (s *SQLiteStore) Query(ctx context.Context, collection string, vector []float32, limit int) ([]Result, error) {
	if limit <= 0 {
		return []Result{}, nil
	}

	collID, dimension, err := s.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, collection %s wants %d",
			ErrDimensionMismatch, len(vector), collection, dimension)
	}

	if VectorExtensionAvailable {
		return s.queryOptimized(ctx, collID, vector, limit)
	}
	return s.queryFallback(ctx, collID, vector, limit)
}

// queryOptimized uses the sqlite-vec extension so ranking happens in SQL.
// vec_distance_cosine returns distance, converted to similarity here.
func (s *SQLiteStore) queryOptimized(ctx context.Context, collID int64, vector []float32, limit int) ([]Result, error) {
	const query = `
		SELECT 1.0 - vec_distance_cosine(vector, ?) AS similarity,
		       project, file_path, line, role, preview, session_id, ts
		FROM points
		WHERE collection_id = ?
		ORDER BY similarity DESC, ts DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, serializeVector(vector), collID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResults(rows)
}

// queryFallback loads candidate vectors and scores them in Go.
func (s *SQLiteStore) queryFallback(ctx context.Context, collID int64, vector []float32, limit int) ([]Result, error) {
	const query = `
		SELECT vector, project, file_path, line, role, preview, session_id, ts
		FROM points
		WHERE collection_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, collID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Result, 0, 64)
	for rows.Next() {
		var blob []byte
		var payload Payload
		var sessionID sql.NullString
		var ts int64
		if err := rows.Scan(&blob, &payload.Project, &payload.FilePath, &payload.Line,
			&payload.Role, &payload.Preview, &sessionID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		payload.SessionID = sessionID.String
		if ts != 0 {
			payload.Timestamp = time.Unix(0, ts).UTC()
		}

		candidate := deserializeVector(blob)
		if len(candidate) != len(vector) {
			continue
		}
		results = append(results, Result{
			Score:   cosineSimilarity(vector, candidate),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scanResults reads rows shaped (similarity, payload columns...).
func scanResults(rows *sql.Rows) ([]Result, error) {
	results := make([]Result, 0, 16)
	for rows.Next() {
		var r Result
		var sessionID sql.NullString
		var ts int64
		if err := rows.Scan(&r.Score, &r.Payload.Project, &r.Payload.FilePath, &r.Payload.Line,
			&r.Payload.Role, &r.Payload.Preview, &sessionID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Payload.SessionID = sessionID.String
		if ts != 0 {
			r.Payload.Timestamp = time.Unix(0, ts).UTC()
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count returns the number of points in the collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	collID, _, err := s.collectionID(ctx, collection)
	if err != nil {
		return 0, err
	}

	var count int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points WHERE collection_id = ?", collID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// DropCollection deletes the collection row; points cascade.
func (s *SQLiteStore) DropCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}
