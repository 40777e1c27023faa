package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema is the settings table: a single row with defaults.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	id                  INTEGER PRIMARY KEY CHECK (id = 1),
	reading_mode        TEXT NOT NULL DEFAULT 'auto',
	reading_target_lang TEXT NOT NULL DEFAULT 'en',
	writing_enabled     INTEGER NOT NULL DEFAULT 0,
	writing_target_lang TEXT NOT NULL DEFAULT 'en',
	shortcut_ctrl       INTEGER NOT NULL DEFAULT 1,
	shortcut_shift      INTEGER NOT NULL DEFAULT 0,
	shortcut_alt        INTEGER NOT NULL DEFAULT 0,
	shortcut_key        TEXT NOT NULL DEFAULT 'i',
	updated_at          INTEGER NOT NULL
);
`

// Store persists Settings in SQLite.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the settings database with production pragmas
// and applies the schema. Register the modernc driver in the caller:
//
//	import _ "modernc.org/sqlite"
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("settings: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("settings: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings: apply schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Get returns the current settings, seeding the defaults row on first use.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT reading_mode, reading_target_lang, writing_enabled,
		       writing_target_lang, shortcut_ctrl, shortcut_shift,
		       shortcut_alt, shortcut_key
		FROM settings WHERE id = 1
	`)

	var out Settings
	var writing, ctrl, shift, alt int
	err := row.Scan(&out.ReadingMode, &out.ReadingTargetLang, &writing,
		&out.WritingTargetLang, &ctrl, &shift, &alt, &out.Shortcut.Key)
	if err == sql.ErrNoRows {
		def := Defaults()
		if perr := s.Put(ctx, def); perr != nil {
			return Settings{}, perr
		}
		return def, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings: get: %w", err)
	}

	out.WritingEnabled = writing != 0
	out.Shortcut.Ctrl = ctrl != 0
	out.Shortcut.Shift = shift != 0
	out.Shortcut.Alt = alt != 0
	return out, nil
}

// Put validates and persists settings, touching updated_at so the change
// watcher fires.
func (s *Store) Put(ctx context.Context, in Settings) error {
	if err := in.Validate(); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (id, reading_mode, reading_target_lang,
			writing_enabled, writing_target_lang, shortcut_ctrl,
			shortcut_shift, shortcut_alt, shortcut_key, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			reading_mode = excluded.reading_mode,
			reading_target_lang = excluded.reading_target_lang,
			writing_enabled = excluded.writing_enabled,
			writing_target_lang = excluded.writing_target_lang,
			shortcut_ctrl = excluded.shortcut_ctrl,
			shortcut_shift = excluded.shortcut_shift,
			shortcut_alt = excluded.shortcut_alt,
			shortcut_key = excluded.shortcut_key,
			updated_at = excluded.updated_at
	`, in.ReadingMode, in.ReadingTargetLang, boolInt(in.WritingEnabled),
		in.WritingTargetLang, boolInt(in.Shortcut.Ctrl), boolInt(in.Shortcut.Shift),
		boolInt(in.Shortcut.Alt), in.Shortcut.Key, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("settings: put: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
