package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/eventmerge/internal/model"
)

const recordColumns = `id, owner_id, title, description, status, start_time, end_time, created_at, updated_at`

// FetchOrdered returns all records owned by ownerID, ascending by start time
// with creation order breaking ties, and with participants resolved.
//
// Returns ErrOwnerNotFound if the owner does not exist, and an empty slice
// (not nil) if the owner has no records.
func (s *Store) FetchOrdered(ctx context.Context, ownerID string) ([]model.Record, error) {
	if _, err := getOwner(ctx, s.db, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE owner_id = ?
		ORDER BY start_time ASC, seq ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []model.Record{}
	index := make(map[string]int)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	links, err := s.db.QueryContext(ctx, `
		SELECT rp.record_id, o.id, o.name
		FROM record_participants rp
		JOIN records r ON r.id = rp.record_id
		JOIN owners o ON o.id = rp.participant_id
		WHERE r.owner_id = ?
		ORDER BY rp.rowid ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var recordID string
		var p model.Participant
		if err := links.Scan(&recordID, &p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if i, ok := index[recordID]; ok {
			records[i].Participants = append(records[i].Participants, p)
		}
	}
	if err := links.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return records, nil
}

// CreateRecord inserts a record and its participant links atomically.
//
// Returns ErrOwnerNotFound if rec.OwnerID is unknown and
// ErrParticipantNotFound if any participant ID is unknown. Participant names
// are taken from the owners table, not from rec.
func (s *Store) CreateRecord(ctx context.Context, rec model.NewRecord) (model.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Record{}, fmt.Errorf("create record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	created, err := s.insertRecord(ctx, tx, rec)
	if err != nil {
		return model.Record{}, fmt.Errorf("create record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Record{}, fmt.Errorf("create record: commit: %w", err)
	}
	return created, nil
}

// GetRecord retrieves a single record with its participants.
// Returns ErrRecordNotFound if no such record exists.
func (s *Store) GetRecord(ctx context.Context, id string) (model.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("record %q: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return model.Record{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.name
		FROM record_participants rp
		JOIN owners o ON o.id = rp.participant_id
		WHERE rp.record_id = ?
		ORDER BY rp.rowid ASC
	`, id)
	if err != nil {
		return model.Record{}, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return model.Record{}, fmt.Errorf("scan participant: %w", err)
		}
		rec.Participants = append(rec.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return model.Record{}, fmt.Errorf("iterate participants: %w", err)
	}

	return rec, nil
}

// DeleteRecord removes a record and its participant links.
// Returns ErrRecordNotFound if no such record exists.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	if err := deleteRecord(ctx, s.db, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func deleteRecord(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %q: %w", id, ErrRecordNotFound)
	}
	return nil
}

// insertRecord writes rec and its participant links through q, which is
// expected to be a transaction.
func (s *Store) insertRecord(ctx context.Context, q querier, rec model.NewRecord) (model.Record, error) {
	if _, err := getOwner(ctx, q, rec.OwnerID); err != nil {
		return model.Record{}, err
	}

	participants, err := resolveParticipants(ctx, q, rec.Participants)
	if err != nil {
		return model.Record{}, err
	}

	start, err := formatTime(rec.StartTime)
	if err != nil {
		return model.Record{}, fmt.Errorf("insert record: start: %w", err)
	}
	end, err := formatTime(rec.EndTime)
	if err != nil {
		return model.Record{}, fmt.Errorf("insert record: end: %w", err)
	}
	now := s.now()
	stamp, err := formatTime(now)
	if err != nil {
		return model.Record{}, fmt.Errorf("insert record: %w", err)
	}

	created := model.Record{
		ID:           s.ids.Generate(),
		OwnerID:      rec.OwnerID,
		Title:        rec.Title,
		Description:  rec.Description,
		Status:       rec.Status,
		StartTime:    rec.StartTime.UTC(),
		EndTime:      rec.EndTime.UTC(),
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO records
		(id, owner_id, title, description, status, start_time, end_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		created.ID,
		created.OwnerID,
		created.Title,
		created.Description,
		string(created.Status),
		start,
		end,
		stamp,
		stamp,
	)
	if err != nil {
		return model.Record{}, fmt.Errorf("insert record: %w", err)
	}

	for _, p := range participants {
		_, err := q.ExecContext(ctx, `
			INSERT INTO record_participants (record_id, participant_id)
			VALUES (?, ?)
		`, created.ID, p.ID)
		if err != nil {
			return model.Record{}, fmt.Errorf("insert participant %q: %w", p.ID, err)
		}
	}

	return created, nil
}

// resolveParticipants deduplicates ps by ID and loads each name from the
// owners table. The result is never nil.
func resolveParticipants(ctx context.Context, q querier, ps []model.Participant) ([]model.Participant, error) {
	set := model.NewParticipantSet(ps...)
	resolved := set.Slice()
	for i, p := range resolved {
		err := q.QueryRowContext(ctx, `SELECT name FROM owners WHERE id = ?`, p.ID).Scan(&resolved[i].Name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("participant %q: %w", p.ID, ErrParticipantNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve participant %q: %w", p.ID, err)
		}
	}
	return resolved, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.Record, error) {
	var rec model.Record
	var status string
	var start, end, createdAt, updatedAt string
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Title,
		&rec.Description,
		&status,
		&start,
		&end,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Record{}, err
		}
		return model.Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.Status = model.Status(status)
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&rec.StartTime, start},
		{&rec.EndTime, end},
		{&rec.CreatedAt, createdAt},
		{&rec.UpdatedAt, updatedAt},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return model.Record{}, fmt.Errorf("scan record: %w", err)
		}
	}
	return rec, nil
}
