package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/perts/copilot/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps cycles and responses in a SQLite database. It satisfies
// the same store interfaces as the YAML stores.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteStore creates or opens the database at dbPath and ensures the
// schema exists.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("opening database: creating directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		uid TEXT PRIMARY KEY,
		team_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		start_date TEXT,
		end_date TEXT,
		extended_end_date TEXT,
		meeting_location TEXT NOT NULL DEFAULT '',
		resolution_date TEXT,
		created TEXT NOT NULL,
		modified TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cycles_team ON cycles(team_id, ordinal);

	CREATE TABLE IF NOT EXISTS responses (
		uid TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		team_id TEXT NOT NULL,
		parent_id TEXT NOT NULL,
		module_label TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		page INTEGER NOT NULL DEFAULT 0,
		body_json TEXT,
		created TEXT NOT NULL,
		modified TEXT NOT NULL,
		UNIQUE (type, user_id, team_id, parent_id, module_label)
	);
	CREATE INDEX IF NOT EXISTS idx_responses_team ON responses(team_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Conn, so reads and writes
// can run either on the pool or inside an immediate transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// immediate runs fn on one connection inside BEGIN IMMEDIATE, which takes
// the database write lock before the first read. fn's error rolls the
// transaction back and is returned unchanged.
func (s *SQLiteStore) immediate(fn func(ctx context.Context, q querier) error) (err error) {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()
	if err = fn(ctx, conn); err != nil {
		return err
	}
	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// --- cycles ---

const cycleColumns = `uid, team_id, ordinal, start_date, end_date, extended_end_date,
	meeting_location, resolution_date, created, modified`

func (s *SQLiteStore) ListCycles(teamID string) ([]models.Cycle, error) {
	return listCycles(context.Background(), s.db, teamID)
}

func listCycles(ctx context.Context, q querier, teamID string) ([]models.Cycle, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE team_id = ? ORDER BY ordinal, uid`, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	defer rows.Close()

	var cycles []models.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("listing cycles: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func (s *SQLiteStore) GetCycle(uid string) (*models.Cycle, error) {
	row := s.db.QueryRow(`SELECT `+cycleColumns+` FROM cycles WHERE uid = ?`, uid)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cycle %s: %w", uid, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting cycle %s: %w", uid, err)
	}
	return &c, nil
}

func (s *SQLiteStore) PutCycle(cycle models.Cycle) error {
	return s.PutCycles([]models.Cycle{cycle})
}

// PutCycles upserts every cycle in one transaction.
func (s *SQLiteStore) PutCycles(cycles []models.Cycle) error {
	return s.immediate(func(ctx context.Context, q querier) error {
		return putCycles(ctx, q, cycles)
	})
}

func putCycles(ctx context.Context, q querier, cycles []models.Cycle) error {
	for _, c := range cycles {
		if c.UID == "" {
			return fmt.Errorf("saving cycle: uid must not be empty")
		}
		if _, err := q.ExecContext(ctx, `INSERT INTO cycles (`+cycleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(uid) DO UPDATE SET
				team_id = excluded.team_id,
				ordinal = excluded.ordinal,
				start_date = excluded.start_date,
				end_date = excluded.end_date,
				extended_end_date = excluded.extended_end_date,
				meeting_location = excluded.meeting_location,
				resolution_date = excluded.resolution_date,
				modified = excluded.modified`,
			c.UID, c.TeamID, c.Ordinal,
			nullTime(c.StartDate), nullTime(c.EndDate), nullTime(c.ExtendedEndDate),
			c.MeetingLocation, nullTime(c.ResolutionDate),
			formatTime(c.Created), formatTime(c.Modified),
		); err != nil {
			return fmt.Errorf("saving cycle %s: %w", c.UID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) DeleteCycle(uid string) error {
	return deleteCycle(context.Background(), s.db, uid)
}

func deleteCycle(ctx context.Context, q querier, uid string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM cycles WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("removing cycle %s: %w", uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("removing cycle %s: %w", uid, models.ErrNotFound)
	}
	return nil
}

// UpdateCycles runs fn on the team's cycles and applies its changes in one
// immediate transaction.
func (s *SQLiteStore) UpdateCycles(teamID string, fn func(cycles []models.Cycle) ([]models.Cycle, []string, error)) error {
	return s.immediate(func(ctx context.Context, q querier) error {
		cycles, err := listCycles(ctx, q, teamID)
		if err != nil {
			return err
		}
		put, remove, err := fn(cycles)
		if err != nil {
			return err
		}
		for _, uid := range remove {
			if err := deleteCycle(ctx, q, uid); err != nil {
				return err
			}
		}
		return putCycles(ctx, q, put)
	})
}

// --- responses ---

const responseColumns = `uid, type, user_id, team_id, parent_id, module_label,
	progress, page, body_json, created, modified`

func (s *SQLiteStore) ListResponses(teamID string) ([]models.Response, error) {
	rows, err := s.db.Query(`SELECT `+responseColumns+` FROM responses WHERE team_id = ? ORDER BY created, uid`, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing responses: %w", err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("listing responses: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindResponse(key models.ResponseKey) (*models.Response, error) {
	return findResponse(context.Background(), s.db, key)
}

func findResponse(ctx context.Context, q querier, key models.ResponseKey) (*models.Response, error) {
	row := q.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses
		WHERE type = ? AND user_id = ? AND team_id = ? AND parent_id = ? AND module_label = ?`,
		string(key.Type), key.UserID, key.TeamID, key.ParentID, key.ModuleLabel)
	r, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("response %s/%s: %w", key.ParentID, key.ModuleLabel, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding response: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) PutResponse(r models.Response) error {
	return putResponse(context.Background(), s.db, r)
}

func putResponse(ctx context.Context, q querier, r models.Response) error {
	if r.UID == "" {
		return fmt.Errorf("saving response: uid must not be empty")
	}
	body, err := json.Marshal(r.Body)
	if err != nil {
		return fmt.Errorf("saving response: encoding body: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO responses (`+responseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, user_id, team_id, parent_id, module_label) DO UPDATE SET
			progress = excluded.progress,
			page = excluded.page,
			body_json = excluded.body_json,
			modified = excluded.modified`,
		r.UID, string(r.Type), r.UserID, r.TeamID, r.ParentID, r.ModuleLabel,
		r.Progress, r.Page, string(body), formatTime(r.Created), formatTime(r.Modified))
	if err != nil {
		return fmt.Errorf("saving response %s: %w", r.UID, err)
	}
	return nil
}

// UpdateResponse reads the response for key, passes it (nil when absent) to
// fn and upserts the result, all in one immediate transaction.
func (s *SQLiteStore) UpdateResponse(key models.ResponseKey, fn func(current *models.Response) (models.Response, error)) (*models.Response, error) {
	var saved models.Response
	err := s.immediate(func(ctx context.Context, q querier) error {
		current, err := findResponse(ctx, q, key)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next.Key() != key {
			return fmt.Errorf("saving response %s: key does not match", next.UID)
		}
		if err := putResponse(ctx, q, next); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// --- scanning ---

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner) (models.Cycle, error) {
	var (
		c                            models.Cycle
		start, end, extended, resolv sql.NullString
		created, modified            string
	)
	if err := row.Scan(&c.UID, &c.TeamID, &c.Ordinal, &start, &end, &extended,
		&c.MeetingLocation, &resolv, &created, &modified); err != nil {
		return models.Cycle{}, err
	}

	var err error
	if c.StartDate, err = parseNullTime(start); err != nil {
		return models.Cycle{}, err
	}
	if c.EndDate, err = parseNullTime(end); err != nil {
		return models.Cycle{}, err
	}
	if c.ExtendedEndDate, err = parseNullTime(extended); err != nil {
		return models.Cycle{}, err
	}
	if c.ResolutionDate, err = parseNullTime(resolv); err != nil {
		return models.Cycle{}, err
	}
	if c.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return models.Cycle{}, err
	}
	if c.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return models.Cycle{}, err
	}
	return c, nil
}

func scanResponse(row scanner) (models.Response, error) {
	var (
		r                 models.Response
		typ               string
		body              sql.NullString
		created, modified string
	)
	if err := row.Scan(&r.UID, &typ, &r.UserID, &r.TeamID, &r.ParentID, &r.ModuleLabel,
		&r.Progress, &r.Page, &body, &created, &modified); err != nil {
		return models.Response{}, err
	}
	r.Type = models.ResponseType(typ)

	if body.Valid && body.String != "" && body.String != "null" {
		if err := json.Unmarshal([]byte(body.String), &r.Body); err != nil {
			return models.Response{}, fmt.Errorf("decoding body of %s: %w", r.UID, err)
		}
	}

	var err error
	if r.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return models.Response{}, err
	}
	if r.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return models.Response{}, err
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
