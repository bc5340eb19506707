// Package store persists learners, sessions, answers, mastery, and the
// token ledger in SQLite. It is the durable side of the session
// coordinator's write-through model.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/sarthakj/practiq/internal/grade"
	"github.com/sarthakj/practiq/internal/learner"
	"github.com/sarthakj/practiq/internal/mastery"
	"github.com/sarthakj/practiq/internal/session"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite connection. It implements session.Store.
type Store struct {
	db *sqlx.DB
}

var _ session.Store = (*Store)(nil)

// Open connects to the SQLite database at path, applies pragmas, and
// runs migration.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for single-user local use.
func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS learners (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL UNIQUE,
	grade              INTEGER NOT NULL DEFAULT 0,
	token_balance      INTEGER NOT NULL DEFAULT 0,
	learning_style     TEXT NOT NULL DEFAULT 'balanced',
	lifetime_questions INTEGER NOT NULL DEFAULT 0,
	lifetime_correct   INTEGER NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS concept_mastery (
	learner_id       TEXT NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
	concept          TEXT NOT NULL,
	level            REAL NOT NULL,
	total_attempts   INTEGER NOT NULL DEFAULT 0,
	correct_attempts INTEGER NOT NULL DEFAULT 0,
	last_practiced   INTEGER NOT NULL DEFAULT 0,
	latency_window   TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (learner_id, concept)
);

CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	learner_id   TEXT NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL,
	grade        INTEGER NOT NULL,
	target_type  TEXT NOT NULL DEFAULT '',
	target_value INTEGER NOT NULL DEFAULT 0,
	concept      TEXT NOT NULL DEFAULT '',
	started_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_learner_status
	ON sessions(learner_id, status);

CREATE TABLE IF NOT EXISTS answer_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	question_id TEXT NOT NULL,
	submitted   TEXT NOT NULL,
	correct     INTEGER NOT NULL,
	latency_ms  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	UNIQUE (session_id, question_id)
);

CREATE TABLE IF NOT EXISTS credits (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	learner_id    TEXT NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
	amount        INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	balance_after INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);
`

type learnerRow struct {
	ID                string `db:"id"`
	Name              string `db:"name"`
	Grade             int    `db:"grade"`
	TokenBalance      int    `db:"token_balance"`
	LearningStyle     string `db:"learning_style"`
	LifetimeQuestions int    `db:"lifetime_questions"`
	LifetimeCorrect   int    `db:"lifetime_correct"`
	CreatedAt         int64  `db:"created_at"`
	UpdatedAt         int64  `db:"updated_at"`
}

func (r learnerRow) profile() *learner.Profile {
	return &learner.Profile{
		ID:                r.ID,
		Name:              r.Name,
		Grade:             grade.Grade(r.Grade),
		TokenBalance:      r.TokenBalance,
		LearningStyle:     learner.LearningStyle(r.LearningStyle),
		LifetimeQuestions: r.LifetimeQuestions,
		LifetimeCorrect:   r.LifetimeCorrect,
		CreatedAt:         time.UnixMilli(r.CreatedAt),
		UpdatedAt:         time.UnixMilli(r.UpdatedAt),
	}
}

// CreateProfile inserts a new learner.
func (s *Store) CreateProfile(ctx context.Context, p *learner.Profile) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learners (id, name, grade, token_balance, learning_style,
			lifetime_questions, lifetime_correct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, int(p.Grade), p.TokenBalance, string(p.LearningStyle),
		p.LifetimeQuestions, p.LifetimeCorrect, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("create learner: %w", err)
	}
	return nil
}

// Profile loads a learner by id.
func (s *Store) Profile(ctx context.Context, learnerID string) (*learner.Profile, error) {
	var row learnerRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM learners WHERE id = ?`, learnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("learner %s: %w", learnerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load learner: %w", err)
	}
	return row.profile(), nil
}

// ProfileByName loads a learner by display name.
func (s *Store) ProfileByName(ctx context.Context, name string) (*learner.Profile, error) {
	var row learnerRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM learners WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("learner %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load learner: %w", err)
	}
	return row.profile(), nil
}

// SaveProfile persists profile fields other than the token balance,
// which only Credit may move.
func (s *Store) SaveProfile(ctx context.Context, p *learner.Profile) error {
	p.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE learners
		SET grade = ?, learning_style = ?, lifetime_questions = ?,
			lifetime_correct = ?, updated_at = ?
		WHERE id = ?`,
		int(p.Grade), string(p.LearningStyle), p.LifetimeQuestions,
		p.LifetimeCorrect, p.UpdatedAt.UnixMilli(), p.ID)
	if err != nil {
		return fmt.Errorf("save learner: %w", err)
	}
	return nil
}

// Credit applies an additive token delta inside a transaction and
// records it in the ledger. Returns the new balance.
func (s *Store) Credit(ctx context.Context, learnerID string, amount int, reason string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE learners SET token_balance = token_balance + ?, updated_at = ?
		WHERE id = ?`,
		amount, time.Now().UnixMilli(), learnerID); err != nil {
		return 0, fmt.Errorf("apply credit: %w", err)
	}

	var balance int
	if err := tx.GetContext(ctx, &balance,
		`SELECT token_balance FROM learners WHERE id = ?`, learnerID); err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credits (learner_id, amount, reason, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		learnerID, amount, reason, balance, time.Now().UnixMilli()); err != nil {
		return 0, fmt.Errorf("record credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credit: %w", err)
	}
	return balance, nil
}

// CreateSession persists a new session row with status active.
func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, learner_id, kind, status, grade,
			target_type, target_value, concept, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.LearnerID, string(sess.Kind), string(session.StatusActive),
		int(sess.Grade), string(sess.Target.TargetType), sess.Target.TargetValue,
		sess.Target.Concept, sess.StartedAt.UnixMilli(), sess.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SetSessionStatus records a terminal transition.
func (s *Store) SetSessionStatus(ctx context.Context, sessionID string, status session.Status, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), at.UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	return nil
}

// TouchSession bumps the session's last-activity timestamp.
func (s *Store) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		at.UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// AppendAnswer appends one answer record. A duplicate
// (session, question) pair is ignored, keeping the first write.
func (s *Store) AppendAnswer(ctx context.Context, rec session.AnswerRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO answer_events
			(session_id, question_id, submitted, correct, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.QuestionID, rec.Submitted, rec.Correct,
		rec.LatencyMs, rec.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("append answer: %w", err)
	}
	return nil
}

type masteryRow struct {
	LearnerID       string  `db:"learner_id"`
	Concept         string  `db:"concept"`
	Level           float64 `db:"level"`
	TotalAttempts   int     `db:"total_attempts"`
	CorrectAttempts int     `db:"correct_attempts"`
	LastPracticed   int64   `db:"last_practiced"`
	LatencyWindow   string  `db:"latency_window"`
}

// SaveMastery upserts one concept mastery record.
func (s *Store) SaveMastery(ctx context.Context, learnerID string, m mastery.ConceptMastery) error {
	window, err := json.Marshal(m.LatencyWindow)
	if err != nil {
		return fmt.Errorf("encode latency window: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO concept_mastery
			(learner_id, concept, level, total_attempts, correct_attempts,
			 last_practiced, latency_window)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (learner_id, concept) DO UPDATE SET
			level = excluded.level,
			total_attempts = excluded.total_attempts,
			correct_attempts = excluded.correct_attempts,
			last_practiced = excluded.last_practiced,
			latency_window = excluded.latency_window`,
		learnerID, m.Concept, m.Level, m.TotalAttempts, m.CorrectAttempts,
		m.LastPracticedAt.UnixMilli(), string(window))
	if err != nil {
		return fmt.Errorf("save mastery: %w", err)
	}
	return nil
}

// MasteryRecords loads every concept mastery record for a learner.
func (s *Store) MasteryRecords(ctx context.Context, learnerID string) ([]mastery.ConceptMastery, error) {
	var rows []masteryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM concept_mastery WHERE learner_id = ? ORDER BY concept`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}

	records := make([]mastery.ConceptMastery, 0, len(rows))
	for _, row := range rows {
		var window []int
		if err := json.Unmarshal([]byte(row.LatencyWindow), &window); err != nil {
			return nil, fmt.Errorf("decode latency window for %s: %w", row.Concept, err)
		}
		records = append(records, mastery.ConceptMastery{
			Concept:         row.Concept,
			Level:           row.Level,
			TotalAttempts:   row.TotalAttempts,
			CorrectAttempts: row.CorrectAttempts,
			LastPracticedAt: time.UnixMilli(row.LastPracticed),
			LatencyWindow:   window,
		})
	}
	return records, nil
}

// ActiveSession returns the learner's active session row, or nil.
func (s *Store) ActiveSession(ctx context.Context, learnerID string) (*session.ActiveInfo, error) {
	var row struct {
		ID        string `db:"id"`
		Kind      string `db:"kind"`
		StartedAt int64  `db:"started_at"`
		UpdatedAt int64  `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT id, kind, started_at, updated_at FROM sessions
		WHERE learner_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`,
		learnerID, string(session.StatusActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active session: %w", err)
	}
	return &session.ActiveInfo{
		SessionID: row.ID,
		Kind:      session.Kind(row.Kind),
		StartedAt: time.UnixMilli(row.StartedAt),
		UpdatedAt: time.UnixMilli(row.UpdatedAt),
	}, nil
}

// RecentQuestionIDs returns the learner's most recently answered
// question ids, newest first.
func (s *Store) RecentQuestionIDs(ctx context.Context, learnerID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT a.question_id FROM answer_events a
		JOIN sessions s ON s.id = a.session_id
		WHERE s.learner_id = ?
		ORDER BY a.id DESC LIMIT ?`,
		learnerID, n)
	if err != nil {
		return nil, fmt.Errorf("load recent questions: %w", err)
	}
	return ids, nil
}

// LearnerStats summarizes a learner's history for the stats command.
type LearnerStats struct {
	SessionsCompleted int `db:"sessions_completed"`
	TokensEarned      int `db:"tokens_earned"`
	QuestionsAnswered int `db:"questions_answered"`
	QuestionsCorrect  int `db:"questions_correct"`
}

// Stats aggregates session and ledger history for a learner.
func (s *Store) Stats(ctx context.Context, learnerID string) (*LearnerStats, error) {
	var stats LearnerStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM sessions
				WHERE learner_id = ? AND status = 'completed') AS sessions_completed,
			(SELECT COALESCE(SUM(amount), 0) FROM credits
				WHERE learner_id = ? AND amount > 0) AS tokens_earned,
			(SELECT COUNT(*) FROM answer_events a
				JOIN sessions s ON s.id = a.session_id
				WHERE s.learner_id = ?) AS questions_answered,
			(SELECT COUNT(*) FROM answer_events a
				JOIN sessions s ON s.id = a.session_id
				WHERE s.learner_id = ? AND a.correct) AS questions_correct`,
		learnerID, learnerID, learnerID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &stats, nil
}

// Reset deletes a learner and all dependent rows.
func (s *Store) Reset(ctx context.Context, learnerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM learners WHERE id = ?`, learnerID)
	if err != nil {
		return fmt.Errorf("reset learner: %w", err)
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. PRACTIQ_DB environment variable
// 2. $XDG_DATA_HOME/practiq/practiq.db
// 3. ~/.local/share/practiq/practiq.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("PRACTIQ_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "practiq", "practiq.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
