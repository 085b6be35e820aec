package storystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
	_ "modernc.org/sqlite"
)

// ErrNotFound reports a story id with no matching row.
var ErrNotFound = errors.New("story not found")

// StoredStory is one persisted story with its ordered character list.
type StoredStory struct {
	ID          int64
	ChildName   string
	Universe    string
	Setting     string
	Theme       string
	StoryLength string
	Title       string
	Prompt      string
	StoryText   string
	AudioPath   string
	Provider    string
	Characters  []string
	CreatedAt   time.Time
}

// Store wraps the SQLite-backed story archive.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the story store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log.With(slog.String("component", "storystore")), clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			s.log.Warn("story store vacuum failed", slogError(err))
		}
	}

	if err := s.Prune(ctx); err != nil {
		s.log.Warn("story store prune on start failed", slogError(err))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS stories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    child_name TEXT,
    universe TEXT,
    setting TEXT,
    theme TEXT,
    story_length TEXT,
    title TEXT,
    prompt TEXT,
    story_text TEXT,
    audio_path TEXT,
    provider TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS story_characters (
    story_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (story_id, position),
    FOREIGN KEY(story_id) REFERENCES stories(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS preferences (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    child_name TEXT,
    favorite_universe TEXT,
    favorite_character TEXT,
    favorite_setting TEXT,
    favorite_theme TEXT,
    preferred_length TEXT,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stories_created ON stories(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveStory writes the story and its characters in one transaction and
// returns the new story id.
func (s *Store) SaveStory(ctx context.Context, st StoredStory) (int64, error) {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.clock().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`INSERT INTO stories(child_name, universe, setting, theme, story_length, title, prompt, story_text, audio_path, provider, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ChildName, st.Universe, st.Setting, st.Theme, st.StoryLength, st.Title, st.Prompt, st.StoryText, st.AudioPath, st.Provider, st.CreatedAt)
	if err != nil {
		return 0, err
	}
	var id int64
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for position, name := range st.Characters {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO story_characters(story_id, position, name) VALUES(?, ?, ?)`,
			id, position, name); err != nil {
			return 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const storyColumns = `id, child_name, universe, setting, theme, story_length, title, prompt, story_text, audio_path, provider, created_at`

func scanStory(scan func(...any) error) (StoredStory, error) {
	var st StoredStory
	var created string
	err := scan(&st.ID, &st.ChildName, &st.Universe, &st.Setting, &st.Theme, &st.StoryLength,
		&st.Title, &st.Prompt, &st.StoryText, &st.AudioPath, &st.Provider, &created)
	if err != nil {
		return StoredStory{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		st.CreatedAt = ts
	}
	return st, nil
}

// StoryByID retrieves one story with its characters.
func (s *Store) StoryByID(ctx context.Context, id int64) (StoredStory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id)
	st, err := scanStory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredStory{}, ErrNotFound
	}
	if err != nil {
		return StoredStory{}, err
	}
	st.Characters, err = s.storyCharacters(ctx, id)
	if err != nil {
		return StoredStory{}, err
	}
	return st, nil
}

// RecentStories lists up to limit stories, newest first.
func (s *Store) RecentStories(ctx context.Context, limit int) ([]StoredStory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+storyColumns+` FROM stories ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var stories []StoredStory
	for rows.Next() {
		st, err := scanStory(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		stories = append(stories, st)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range stories {
		stories[i].Characters, err = s.storyCharacters(ctx, stories[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return stories, nil
}

func (s *Store) storyCharacters(ctx context.Context, storyID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM story_characters WHERE story_id = ? ORDER BY position ASC`, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// UpdateAudioPath records the audio asset produced for a story.
func (s *Store) UpdateAudioPath(ctx context.Context, id int64, path string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE stories SET audio_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ElementFrequency counts how often each element value appeared in
// stories created within the trailing window. A windowDays of zero or
// less counts over the whole archive.
func (s *Store) ElementFrequency(ctx context.Context, windowDays int) (story.FrequencyTable, error) {
	cutoff := time.Time{}
	if windowDays > 0 {
		cutoff = s.clock().Add(-time.Duration(windowDays) * 24 * time.Hour)
	}

	queries := []struct {
		category string
		query    string
	}{
		{story.CategoryUniverses, `SELECT universe, COUNT(*) FROM stories WHERE created_at >= ? AND universe != '' GROUP BY universe`},
		{story.CategorySettings, `SELECT setting, COUNT(*) FROM stories WHERE created_at >= ? AND setting != '' GROUP BY setting`},
		{story.CategoryThemes, `SELECT theme, COUNT(*) FROM stories WHERE created_at >= ? AND theme != '' GROUP BY theme`},
		{story.CategoryCharacters, `SELECT sc.name, COUNT(*) FROM story_characters sc
			JOIN stories st ON st.id = sc.story_id WHERE st.created_at >= ? GROUP BY sc.name`},
	}

	freq := story.FrequencyTable{}
	for _, q := range queries {
		counts, err := s.countRows(ctx, q.query, cutoff.UTC())
		if err != nil {
			return nil, err
		}
		freq[q.category] = counts
	}
	return freq, nil
}

func (s *Store) countRows(ctx context.Context, query string, cutoff time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		counts[value] = count
	}
	return counts, rows.Err()
}

// Preferences returns the stored favorites, or the zero value when
// none have been saved yet.
func (s *Store) Preferences(ctx context.Context) (story.Preferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT child_name, favorite_universe, favorite_character, favorite_setting, favorite_theme, preferred_length
		 FROM preferences WHERE id = 1`)
	var p story.Preferences
	err := row.Scan(&p.ChildName, &p.FavoriteUniverse, &p.FavoriteCharacter, &p.FavoriteSetting, &p.FavoriteTheme, &p.PreferredLength)
	if errors.Is(err, sql.ErrNoRows) {
		return story.Preferences{}, nil
	}
	if err != nil {
		return story.Preferences{}, err
	}
	return p, nil
}

// SavePreferences upserts the single preferences row.
func (s *Store) SavePreferences(ctx context.Context, p story.Preferences) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(id, child_name, favorite_universe, favorite_character, favorite_setting, favorite_theme, preferred_length, updated_at)
		 VALUES(1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   child_name=excluded.child_name,
		   favorite_universe=excluded.favorite_universe,
		   favorite_character=excluded.favorite_character,
		   favorite_setting=excluded.favorite_setting,
		   favorite_theme=excluded.favorite_theme,
		   preferred_length=excluded.preferred_length,
		   updated_at=excluded.updated_at`,
		p.ChildName, p.FavoriteUniverse, p.FavoriteCharacter, p.FavoriteSetting, p.FavoriteTheme, p.PreferredLength, s.clock().UTC())
	return err
}

// Prune applies configured retention (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM stories WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxStories > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM stories WHERE id IN (
			SELECT id FROM stories ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxStories)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
