package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	logx "plantcare/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const metaTimezone = "timezone"

// sqliteStore keeps a due_day column next to the raw due_date so range
// filters run in SQL. due_day is NULL when due_date cannot be normalized.
type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	norm calendar.Normalizer
	now  func() time.Time
}

const taskColumns = `id, plant_id, type, description, due_date, completed, created_at, completed_at`

func openSQLite(cfg Config, norm calendar.Normalizer, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	// busy_timeout goes in the DSN so every (re)opened connection waits on
	// another process's write lock instead of failing with SQLITE_BUSY.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busy.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, norm: norm, now: time.Now}

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	ctx := context.Background()
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := st.reindexIfZoneChanged(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// reindexIfZoneChanged recomputes due_day when the reference timezone differs
// from the one the rows were indexed with.
func (s *sqliteStore) reindexIfZoneChanged(ctx context.Context) error {
	zone := s.norm.Location().String()
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaTimezone).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	case stored == zone:
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT seq, due_date FROM tasks`)
	if err != nil {
		return err
	}
	type row struct {
		seq int64
		due string
	}
	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.seq, &r.due); err != nil {
			_ = rows.Close()
			return err
		}
		all = append(all, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, r := range all {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET due_day = ? WHERE seq = ?`, s.dueDay(r.due), r.seq); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		metaTimezone, zone,
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if len(all) > 0 {
		s.log.Info("tasks reindexed", logx.Int("count", len(all)), logx.String("from", stored), logx.String("to", zone))
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) dueDay(raw string) any {
	k, err := s.norm.Normalize(raw)
	if err != nil {
		return nil
	}
	return k.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqliteStore) insertTask(ctx context.Context, db execer, t care.Task) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tasks(id, plant_id, type, description, due_date, due_day, completed, created_at)
		 VALUES(?,?,?,?,?,?,0,?)`,
		t.ID, t.PlantID, string(t.Type), t.Description, t.DueDate, s.dueDay(t.DueDate),
		t.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) CreateTask(ctx context.Context, d care.TaskDraft) (care.Task, error) {
	t := newTask(d, s.now())
	if err := s.insertTask(ctx, s.db, t); err != nil {
		return care.Task{}, err
	}
	return t, nil
}

// CreateTaskUnless runs the guard query and the insert in one BEGIN IMMEDIATE
// transaction. IMMEDIATE takes the database write lock before the read, so a
// second process running the same step waits on busy_timeout and then sees
// the row this one inserted.
func (s *sqliteStore) CreateTaskUnless(ctx context.Context, guard care.TaskFilter, d care.TaskDraft) (care.Task, bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return care.Task{}, false, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return care.Task{}, false, fmt.Errorf("begin: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_, _ = conn.ExecContext(context.Background(), `ROLLBACK`)
		}
	}()

	where, args := taskWhere(guard)
	existing, err := scanTask(conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY seq LIMIT 1`, args...))
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return care.Task{}, false, err
	}

	t := newTask(d, s.now())
	if err := s.insertTask(ctx, conn, t); err != nil {
		return care.Task{}, false, err
	}
	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		return care.Task{}, false, fmt.Errorf("commit: %w", err)
	}
	done = true
	return t, true, nil
}

// taskWhere renders f as a WHERE clause (with leading space) and its args.
func taskWhere(f care.TaskFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.PlantID != "" {
		where = append(where, "plant_id = ?")
		args = append(args, f.PlantID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *f.Completed)
	}
	if f.DueFrom != nil || f.DueTo != nil {
		where = append(where, "due_day IS NOT NULL")
	}
	if f.DueFrom != nil {
		where = append(where, "due_day >= ?")
		args = append(args, f.DueFrom.String())
	}
	if f.DueTo != nil {
		where = append(where, "due_day <= ?")
		args = append(args, f.DueTo.String())
	}
	if len(where) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(where, " AND "), args
}

func (s *sqliteStore) FindTasks(ctx context.Context, f care.TaskFilter) ([]care.Task, error) {
	where, args := taskWhere(f)
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]care.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) getTask(ctx context.Context, id string) (care.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return care.Task{}, care.TaskNotFound(id)
	}
	return t, err
}

func (s *sqliteStore) CompleteTask(ctx context.Context, id string) (care.Task, bool, error) {
	at := s.now().UTC().Format(time.RFC3339Nano)
	// Already-completed rows keep their original completed_at.
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET completed = 1, completed_at = ? WHERE id = ? AND completed = 0`, at, id)
	if err != nil {
		return care.Task{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return care.Task{}, false, err
	}
	t, err := s.getTask(ctx, id)
	if err != nil {
		return care.Task{}, false, err
	}
	return t, n > 0, nil
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return care.TaskNotFound(id)
	}
	return nil
}

func (s *sqliteStore) GetPlant(ctx context.Context, id string) (care.Plant, error) {
	p, err := scanPlant(s.db.QueryRowContext(ctx,
		`SELECT id, name, watering_frequency_days, last_watered_date FROM plants WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return care.Plant{}, care.PlantNotFound(id)
	}
	return p, err
}

func (s *sqliteStore) ListPlantsWithAutoWatering(ctx context.Context) ([]care.Plant, error) {
	return s.listPlants(ctx, `WHERE watering_frequency_days > 0`)
}

func (s *sqliteStore) ListPlants(ctx context.Context) ([]care.Plant, error) {
	return s.listPlants(ctx, "")
}

func (s *sqliteStore) listPlants(ctx context.Context, where string) ([]care.Plant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, watering_frequency_days, last_watered_date FROM plants `+where+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]care.Plant, 0)
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutPlant(ctx context.Context, p care.Plant) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return errEmptyPlantID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plants(id, name, watering_frequency_days, last_watered_date) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name,
		   watering_frequency_days=excluded.watering_frequency_days,
		   last_watered_date=excluded.last_watered_date`,
		p.ID, p.Name, p.WateringFrequencyDays, nullStr(p.LastWateredDate),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(r scanner) (care.Task, error) {
	var (
		t           care.Task
		typ         string
		createdAt   string
		completedAt sql.NullString
	)
	if err := r.Scan(&t.ID, &t.PlantID, &typ, &t.Description, &t.DueDate, &t.Completed, &createdAt, &completedAt); err != nil {
		return care.Task{}, err
	}
	t.Type = care.TaskType(typ)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		t.CreatedAt = ts
	}
	if completedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			t.CompletedAt = &ts
		}
	}
	return t, nil
}

func scanPlant(r scanner) (care.Plant, error) {
	var (
		p    care.Plant
		last sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Name, &p.WateringFrequencyDays, &last); err != nil {
		return care.Plant{}, err
	}
	p.LastWateredDate = last.String
	return p, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
