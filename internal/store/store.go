// Package store is the durable source of truth for research tasks and
// their pipeline steps. Every status mutation also emits a matching
// update event, so state changes are never recorded without being
// observable by watchers (and vice versa).
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ferret/internal/updates"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrChatNotFound means a research request referenced a chat that
	// does not exist. Checked before insert to avoid orphan rows.
	ErrChatNotFound = errors.New("chat not found")
	// ErrAlreadyRunning means another orchestration already claimed the
	// pending -> running transition for this research.
	ErrAlreadyRunning = errors.New("research already running")
	// ErrInvalidTransition means the requested status change would move
	// backward or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store provides access to the ferret database.
type Store struct {
	db *sql.DB
	ch *updates.Channel
}

// Open opens (or creates) the SQLite database at the given path.
// The returned handle is shared between the store and the updates log.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// New creates a store over an open database and an update channel.
// The channel is an explicit dependency: the store never owns its
// lifecycle, the process wiring the system together does.
func New(db *sql.DB, ch *updates.Channel) (*Store, error) {
	s := &Store{db: db, ch: ch}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS research (
		id            TEXT PRIMARY KEY,
		chat_id       TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id       TEXT NOT NULL,
		query         TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		results       TEXT NOT NULL DEFAULT '{}',
		error         TEXT,
		started_at    DATETIME,
		completed_at  DATETIME,
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS research_chat_id_idx ON research(chat_id);
	CREATE INDEX IF NOT EXISTS research_status_idx ON research(status);

	CREATE TABLE IF NOT EXISTS research_steps (
		id            TEXT PRIMARY KEY,
		research_id   TEXT NOT NULL REFERENCES research(id) ON DELETE CASCADE,
		step_order    INTEGER NOT NULL,
		step_type     TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		data          TEXT NOT NULL DEFAULT '{}',
		error         TEXT,
		started_at    DATETIME,
		completed_at  DATETIME,
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL,
		UNIQUE(research_id, step_order)
	);
	CREATE INDEX IF NOT EXISTS research_steps_research_id_idx ON research_steps(research_id);
	CREATE INDEX IF NOT EXISTS research_steps_status_idx ON research_steps(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// notify mirrors a mutation into the update channel: best-effort live
// broadcast plus durable history. A failed notification never rolls
// back the write — the record is the source of truth.
func (s *Store) notify(researchID string, e updates.Event) {
	if s.ch == nil {
		return
	}
	s.ch.Publish(researchID, e)
	if err := s.ch.Record(researchID, e); err != nil {
		log.Printf("store: record update for research %s: %v", researchID, err)
	}
}

// --- Chats ---

// CreateChat inserts a new chat and returns it with a generated ID.
func (s *Store) CreateChat(title string) (*Chat, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO chats (id, title, created_at) VALUES (?, ?, ?)`,
		id, title, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return &Chat{ID: id, Title: title, CreatedAt: now}, nil
}

// ChatExists reports whether a chat with the given ID exists.
func (s *Store) ChatExists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM chats WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check chat: %w", err)
	}
	return true, nil
}

// --- Research ---

// CreateResearch inserts a new research request with status pending.
// Returns ErrChatNotFound if the owning chat does not resolve.
func (s *Store) CreateResearch(chatID, userID, query string) (*Research, error) {
	exists, err := s.ChatExists(chatID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("research for chat %s: %w", chatID, ErrChatNotFound)
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO research (id, chat_id, user_id, query, status, results, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '{}', ?, ?)`,
		id, chatID, userID, query, string(StatusPending), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert research: %w", err)
	}

	return &Research{
		ID:        id,
		ChatID:    chatID,
		UserID:    userID,
		Query:     query,
		Status:    StatusPending,
		Results:   json.RawMessage(`{}`),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const researchColumns = `id, chat_id, user_id, query, status, results, error, started_at, completed_at, created_at, updated_at`

// GetResearch returns a single research by ID, or ErrNotFound.
func (s *Store) GetResearch(id string) (*Research, error) {
	row := s.db.QueryRow(`SELECT `+researchColumns+` FROM research WHERE id = ?`, id)
	r, err := scanResearch(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("research %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListResearchByChat returns all research for a chat, newest first.
func (s *Store) ListResearchByChat(chatID string) ([]Research, error) {
	rows, err := s.db.Query(
		`SELECT `+researchColumns+` FROM research WHERE chat_id = ? ORDER BY created_at DESC, id DESC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query research: %w", err)
	}
	defer rows.Close()

	var list []Research
	for rows.Next() {
		r, err := scanResearchRows(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

// ListResearchByStatus returns all research in the given status,
// newest first. An empty status returns everything.
func (s *Store) ListResearchByStatus(status Status) ([]Research, error) {
	query := `SELECT ` + researchColumns + ` FROM research`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query research: %w", err)
	}
	defer rows.Close()

	var list []Research
	for rows.Next() {
		r, err := scanResearchRows(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *r)
	}
	return list, rows.Err()
}

// CountResearchByStatus returns how many research records are in each
// status.
func (s *Store) CountResearchByStatus() (map[Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM research GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count research: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// StatusUpdate carries the optional fields of a status change.
// Only supplied fields are written.
type StatusUpdate struct {
	Results     json.RawMessage
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// allowedFrom lists the statuses each target status may be reached from.
var allowedFrom = map[Status][]Status{
	StatusRunning: {StatusPending},
	StatusDone:    {StatusRunning},
	StatusFailed:  {StatusPending, StatusRunning},
}

// SetResearchStatus transitions a research to a new status, applying
// any supplied optional fields, and emits a status_update event.
// The transition is guarded: a research never moves backward, and the
// pending -> running claim succeeds for at most one caller.
func (s *Store) SetResearchStatus(id string, status Status, upd StatusUpdate) (*Research, error) {
	from, ok := allowedFrom[status]
	if !ok {
		return nil, fmt.Errorf("set status %s: %w", status, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	set := "status = ?, updated_at = ?"
	args := []any{string(status), now}
	if len(upd.Results) > 0 {
		set += ", results = ?"
		args = append(args, string(upd.Results))
	}
	if upd.Error != "" {
		set += ", error = ?"
		args = append(args, upd.Error)
	}
	if upd.StartedAt != nil {
		set += ", started_at = ?"
		args = append(args, upd.StartedAt.UTC())
	}
	if upd.CompletedAt != nil {
		set += ", completed_at = ?"
		args = append(args, upd.CompletedAt.UTC())
	}

	query := `UPDATE research SET ` + set + ` WHERE id = ? AND status IN (`
	args = append(args, id)
	for i, f := range from {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, string(f))
	}
	query += ")"

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("update research status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		current, err := s.GetResearch(id)
		if err != nil {
			return nil, err
		}
		if status == StatusRunning && current.Status == StatusRunning {
			return nil, fmt.Errorf("research %s: %w", id, ErrAlreadyRunning)
		}
		return nil, fmt.Errorf("research %s: %s -> %s: %w", id, current.Status, status, ErrInvalidTransition)
	}

	s.notify(id, updates.Event{
		Type:      updates.EventStatusUpdate,
		Status:    string(status),
		Error:     upd.Error,
		Timestamp: now,
	})

	return s.GetResearch(id)
}

// --- Steps ---

// CreateStep inserts a pipeline step and emits a step_created event.
// (research_id, step_order) is unique, so a duplicate orchestration
// attempt fails here instead of producing a second step row.
func (s *Store) CreateStep(researchID string, order int, typ StepType, status Status, data json.RawMessage) (*ResearchStep, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	var startedAt *time.Time
	if status == StatusRunning {
		startedAt = &now
	}

	_, err := s.db.Exec(
		`INSERT INTO research_steps (id, research_id, step_order, step_type, status, data, started_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, researchID, order, string(typ), string(status), string(data), startedAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert step: %w", err)
	}

	s.notify(researchID, updates.Event{
		Type:      updates.EventStepCreated,
		StepID:    id,
		StepType:  string(typ),
		StepOrder: order,
		Status:    string(status),
		Timestamp: now,
	})

	return &ResearchStep{
		ID:         id,
		ResearchID: researchID,
		Order:      order,
		Type:       typ,
		Status:     status,
		Data:       data,
		StartedAt:  startedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// StepUpdate carries the optional fields of a step status change.
type StepUpdate struct {
	Data        json.RawMessage
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// SetStepStatus transitions a step and emits a step_update event.
// The step is re-read afterwards to recover its research ID, type and
// order for the event, so callers need not repeat them.
func (s *Store) SetStepStatus(id string, status Status, upd StepUpdate) (*ResearchStep, error) {
	now := time.Now().UTC()
	set := "status = ?, updated_at = ?"
	args := []any{string(status), now}
	if len(upd.Data) > 0 {
		set += ", data = ?"
		args = append(args, string(upd.Data))
	}
	if upd.Error != "" {
		set += ", error = ?"
		args = append(args, upd.Error)
	}
	if upd.StartedAt != nil {
		set += ", started_at = ?"
		args = append(args, upd.StartedAt.UTC())
	}
	if upd.CompletedAt != nil {
		set += ", completed_at = ?"
		args = append(args, upd.CompletedAt.UTC())
	}
	args = append(args, id)

	res, err := s.db.Exec(`UPDATE research_steps SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update step status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("step %s: %w", id, ErrNotFound)
	}

	step, err := s.GetStep(id)
	if err != nil {
		return nil, err
	}

	e := updates.Event{
		Type:      updates.EventStepUpdate,
		StepID:    step.ID,
		StepType:  string(step.Type),
		StepOrder: step.Order,
		Status:    string(status),
		Error:     upd.Error,
		Timestamp: now,
	}
	if len(upd.Data) > 0 {
		e.Data = upd.Data
	}
	s.notify(step.ResearchID, e)

	return step, nil
}

const stepColumns = `id, research_id, step_order, step_type, status, data, error, started_at, completed_at, created_at, updated_at`

// GetStep returns a single step by ID, or ErrNotFound.
func (s *Store) GetStep(id string) (*ResearchStep, error) {
	row := s.db.QueryRow(`SELECT `+stepColumns+` FROM research_steps WHERE id = ?`, id)
	st, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("step %s: %w", id, ErrNotFound)
	}
	return st, err
}

// GetSteps returns all steps for a research, in execution order.
func (s *Store) GetSteps(researchID string) ([]ResearchStep, error) {
	rows, err := s.db.Query(
		`SELECT `+stepColumns+` FROM research_steps WHERE research_id = ? ORDER BY step_order`,
		researchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []ResearchStep
	for rows.Next() {
		st, err := scanStepRows(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *st)
	}
	return steps, rows.Err()
}

// LatestStep returns the step with the highest order for a research,
// or nil if no steps exist yet.
func (s *Store) LatestStep(researchID string) (*ResearchStep, error) {
	row := s.db.QueryRow(
		`SELECT `+stepColumns+` FROM research_steps WHERE research_id = ? ORDER BY step_order DESC LIMIT 1`,
		researchID,
	)
	st, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// --- Scanning ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResearchFrom(sc rowScanner) (*Research, error) {
	var r Research
	var results string
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := sc.Scan(
		&r.ID, &r.ChatID, &r.UserID, &r.Query, &r.Status, &results,
		&errMsg, &startedAt, &completedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Results = json.RawMessage(results)
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		r.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func scanResearch(row *sql.Row) (*Research, error) {
	r, err := scanResearchFrom(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("scan research: %w", err)
	}
	return r, err
}

func scanResearchRows(rows *sql.Rows) (*Research, error) {
	r, err := scanResearchFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("scan research: %w", err)
	}
	return r, nil
}

func scanStepFrom(sc rowScanner) (*ResearchStep, error) {
	var st ResearchStep
	var data string
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := sc.Scan(
		&st.ID, &st.ResearchID, &st.Order, &st.Type, &st.Status, &data,
		&errMsg, &startedAt, &completedAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.Data = json.RawMessage(data)
	if errMsg.Valid {
		st.Error = errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		st.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		st.CompletedAt = &t
	}
	return &st, nil
}

func scanStep(row *sql.Row) (*ResearchStep, error) {
	st, err := scanStepFrom(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("scan step: %w", err)
	}
	return st, err
}

func scanStepRows(rows *sql.Rows) (*ResearchStep, error) {
	st, err := scanStepFrom(rows)
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}
	return st, nil
}
