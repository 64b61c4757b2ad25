package updates

import (
	"database/sql"
	"fmt"
)

// HistoryCap is how many events the durable list keeps per research task.
// Older entries are discarded; the task/step records remain the source
// of truth for anything that scrolled off.
const HistoryCap = 100

// Log is the durable, capped per-task event history.
type Log struct {
	db *sql.DB
}

// NewLog prepares the history table on the given database.
func NewLog(db *sql.DB) (*Log, error) {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS research_updates (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		research_id  TEXT NOT NULL,
		payload      TEXT NOT NULL,
		timestamp    DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS research_updates_research_id_idx
		ON research_updates(research_id);
	`)
	if err != nil {
		return nil, fmt.Errorf("migrate updates log: %w", err)
	}
	return &Log{db: db}, nil
}

// Append records the event and trims the task's history to HistoryCap
// entries, newest kept.
func (l *Log) Append(researchID string, e Event) error {
	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, err = l.db.Exec(
		`INSERT INTO research_updates (research_id, payload, timestamp) VALUES (?, ?, ?)`,
		researchID, string(payload), e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append update: %w", err)
	}

	_, err = l.db.Exec(
		`DELETE FROM research_updates
		 WHERE research_id = ? AND id NOT IN (
			SELECT id FROM research_updates
			WHERE research_id = ?
			ORDER BY id DESC LIMIT ?
		 )`,
		researchID, researchID, HistoryCap,
	)
	if err != nil {
		return fmt.Errorf("trim updates: %w", err)
	}
	return nil
}

// History returns the retained events for a task, oldest first.
func (l *Log) History(researchID string) ([]Event, error) {
	rows, err := l.db.Query(
		`SELECT payload FROM research_updates WHERE research_id = ? ORDER BY id`,
		researchID,
	)
	if err != nil {
		return nil, fmt.Errorf("read updates: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		e, err := Decode([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode update: %w", err)
		}
		e.ResearchID = researchID
		events = append(events, e)
	}
	return events, rows.Err()
}
