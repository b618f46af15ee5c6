package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"

	"github.com/rcliao/memeboard/internal/model"
)

// SQLiteStore implements Store using SQLite, for single-binary durable setups.
type SQLiteStore struct {
	db  *sql.DB
	ids *idSource
}

var (
	registerFuncsOnce sync.Once
	registerFuncsErr  error
)

// unicodeLower folds case the way strings.ToLower does; SQLite's lower()
// only handles ASCII.
func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

func registerFuncs() error {
	registerFuncsOnce.Do(func() {
		registerFuncsErr = sqlite.RegisterDeterministicScalarFunction("unicode_lower", 1, unicodeLower)
	})
	return registerFuncsErr
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := registerFuncs(); err != nil {
		return nil, fmt.Errorf("register sql functions: %w", err)
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serialises writers; ApplyEdit's read-then-write
	// transaction would otherwise race for the write lock.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, ids: newIDSource()}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memes (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		tags            TEXT NOT NULL DEFAULT '[]',
		image_url       TEXT NOT NULL,
		created_at      INTEGER NOT NULL,
		edited_by_users INTEGER NOT NULL DEFAULT 0,
		last_edited_at  INTEGER,
		is_locked       INTEGER NOT NULL DEFAULT 0,
		is_featured     INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_memes_created ON memes(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memes_popular ON memes(edited_by_users DESC, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memes_featured ON memes(is_featured DESC, created_at DESC);

	CREATE TABLE IF NOT EXISTS meme_edits (
		meme_id       TEXT NOT NULL REFERENCES memes(id) ON DELETE CASCADE,
		seq           INTEGER NOT NULL,
		previous_name TEXT NOT NULL,
		previous_tags TEXT NOT NULL DEFAULT '[]',
		edited_at     INTEGER NOT NULL,
		PRIMARY KEY (meme_id, seq)
	);

	CREATE TABLE IF NOT EXISTS admins (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const memeColumns = `id, title, tags, image_url, created_at, edited_by_users, last_edited_at, is_locked, is_featured`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Meme, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memeColumns+` FROM memes WHERE id = ?`, id)
	m, err := scanMeme(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	memes := []model.Meme{m}
	if err := s.loadHistory(ctx, memes); err != nil {
		return nil, err
	}
	return &memes[0], nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Meme, error) {
	p = normalizeListParams(p)

	var where []string
	var args []interface{}
	if q := strings.TrimSpace(p.Search); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(unicode_lower(title) LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM json_each(memes.tags) WHERE unicode_lower(json_each.value) LIKE ? ESCAPE '\'))`)
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + memeColumns + ` FROM memes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + sqliteOrder(p.SortBy) + ` LIMIT ? OFFSET ?`
	args = append(args, p.Limit, p.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	memes := []model.Meme{}
	for rows.Next() {
		m, err := scanMeme(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		memes = append(memes, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before the history query.
	rows.Close()

	if err := s.loadHistory(ctx, memes); err != nil {
		return nil, err
	}
	return memes, nil
}

func sqliteOrder(sortBy model.SortBy) string {
	switch sortBy {
	case model.SortPopular:
		return `edited_by_users DESC, created_at DESC, id DESC`
	case model.SortFeatured:
		return `is_featured DESC, created_at DESC, id DESC`
	default:
		return `created_at DESC, id DESC`
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLiteStore) Create(ctx context.Context, p CreateParams) (*model.Meme, error) {
	now := model.Now()
	m := model.Meme{
		ID:          s.ids.newID(now),
		Title:       p.Title,
		Tags:        append([]string{}, p.Tags...),
		ImageURL:    p.ImageURL,
		CreatedAt:   now,
		EditHistory: []model.EditHistoryEntry{},
	}
	tagsJSON, _ := json.Marshal(m.Tags)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memes (id, title, tags, image_url, created_at, edited_by_users, is_locked, is_featured)
		 VALUES (?, ?, ?, ?, ?, 0, 0, 0)`,
		m.ID, m.Title, string(tagsJSON), m.ImageURL, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert meme: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) CreateBulk(ctx context.Context, items []CreateParams) ([]model.Meme, error) {
	out := make([]model.Meme, 0, len(items))
	for _, p := range items {
		m, err := s.Create(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, p UpdateParams) (*model.Meme, error) {
	var sets []string
	var args []interface{}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Tags != nil {
		b, _ := json.Marshal(p.Tags)
		sets = append(sets, "tags = ?")
		args = append(args, string(b))
	}
	if p.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, *p.ImageURL)
	}
	if p.IsLocked != nil {
		sets = append(sets, "is_locked = ?")
		args = append(args, boolToInt(*p.IsLocked))
	}
	if p.IsFeatured != nil {
		sets = append(sets, "is_featured = ?")
		args = append(args, boolToInt(*p.IsFeatured))
	}
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE memes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update meme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) ApplyEdit(ctx context.Context, id, title string, tags []string) (*model.Meme, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var prevTitle, prevTags string
	var edits int
	var locked bool
	err = tx.QueryRowContext(ctx,
		`SELECT title, tags, edited_by_users, is_locked FROM memes WHERE id = ?`, id).
		Scan(&prevTitle, &prevTags, &edits, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meme %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, fmt.Errorf("meme %s: %w", id, ErrLocked)
	}

	now := model.Now().UnixMilli()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO meme_edits (meme_id, seq, previous_name, previous_tags, edited_at) VALUES (?, ?, ?, ?, ?)`,
		id, edits, prevTitle, prevTags, now)
	if err != nil {
		return nil, fmt.Errorf("insert edit: %w", err)
	}

	tagsJSON, _ := json.Marshal(nonNil(tags))
	_, err = tx.ExecContext(ctx,
		`UPDATE memes SET title = ?, tags = ?, edited_by_users = edited_by_users + 1, last_edited_at = ? WHERE id = ?`,
		title, string(tagsJSON), now, id)
	if err != nil {
		return nil, fmt.Errorf("apply edit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete meme: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_locked), 0), COALESCE(SUM(is_featured), 0), COALESCE(SUM(edited_by_users), 0)
		FROM memes`).Scan(&st.Total, &st.Locked, &st.Featured, &st.Edits)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) CreateAdmin(ctx context.Context, a model.Admin) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = model.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		a.Username, a.PasswordHash, a.Role, a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("admin %s: %w", a.Username, ErrAdminExists)
	}
	return nil
}

func (s *SQLiteStore) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, created_at FROM admins WHERE username = ?`, username).
		Scan(&a.Username, &a.PasswordHash, &a.Role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("admin %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// loadHistory fills EditHistory for memes in one query.
func (s *SQLiteStore) loadHistory(ctx context.Context, memes []model.Meme) error {
	if len(memes) == 0 {
		return nil
	}
	index := make(map[string]int, len(memes))
	placeholders := make([]string, len(memes))
	args := make([]interface{}, len(memes))
	for i := range memes {
		index[memes[i].ID] = i
		placeholders[i] = "?"
		args[i] = memes[i].ID
		memes[i].EditHistory = []model.EditHistoryEntry{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT meme_id, previous_name, previous_tags, edited_at FROM meme_edits
		 WHERE meme_id IN (`+strings.Join(placeholders, ",")+`) ORDER BY meme_id, seq`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var memeID, prevTags string
		var e model.EditHistoryEntry
		var editedAt int64
		if err := rows.Scan(&memeID, &e.PreviousName, &prevTags, &editedAt); err != nil {
			return err
		}
		e.PreviousTags = decodeTags(prevTags)
		e.EditedAt = fromMillis(editedAt)
		i := index[memeID]
		memes[i].EditHistory = append(memes[i].EditHistory, e)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMeme(row scanner) (model.Meme, error) {
	var m model.Meme
	var tagsJSON string
	var createdAt int64
	var lastEdited sql.NullInt64

	err := row.Scan(
		&m.ID, &m.Title, &tagsJSON, &m.ImageURL, &createdAt,
		&m.EditedByUsers, &lastEdited, &m.IsLocked, &m.IsFeatured,
	)
	if err != nil {
		return m, err
	}

	m.Tags = decodeTags(tagsJSON)
	m.CreatedAt = fromMillis(createdAt)
	if lastEdited.Valid {
		t := fromMillis(lastEdited.Int64)
		m.LastEditedAt = &t
	}
	return m, nil
}

func decodeTags(s string) []string {
	tags := []string{}
	if s != "" {
		json.Unmarshal([]byte(s), &tags)
	}
	return nonNil(tags)
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
