package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bibedit-cli/internal/model"
)

// RecordInfo is a committed record's listing entry.
type RecordInfo struct {
	RecID     int       `json:"recID"`
	Title     string    `json:"title"`
	Fields    int       `json:"fields"`
	UpdatedAt time.Time `json:"updatedAt"`
	HasDraft  bool      `json:"hasDraft"`
}

func encodeRecord(rec model.Record) (string, error) {
	if rec == nil {
		rec = model.Record{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecord(s string) (model.Record, error) {
	rec := model.Record{}
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Get returns the committed copy of recID.
func (db *DB) Get(ctx context.Context, recID int) (model.Record, error) {
	var js string
	err := db.sql.QueryRowContext(ctx, `SELECT json FROM records WHERE rec_id = ?`, recID).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(js)
}

// Put writes the committed copy of recID, creating it if needed.
func (db *DB) Put(ctx context.Context, recID int, rec model.Record) error {
	if recID <= 0 {
		return fmt.Errorf("invalid record id %d", recID)
	}
	js, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	now := db.nowMs()
	_, err = db.sql.ExecContext(ctx, `INSERT INTO records(rec_id, title, json, created_at_unixms, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(rec_id) DO UPDATE SET title = excluded.title, json = excluded.json, updated_at_unixms = excluded.updated_at_unixms`,
		recID, rec.Title(), js, now, now)
	return err
}

// Create stores rec under the next free record id and returns it.
func (db *DB) Create(ctx context.Context, rec model.Record) (int, error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(rec_id) FROM records`).Scan(&maxID); err != nil {
		return 0, err
	}
	id := int(maxID.Int64) + 1
	js, err := encodeRecord(rec)
	if err != nil {
		return 0, err
	}
	now := db.nowMs()
	if _, err := tx.ExecContext(ctx, `INSERT INTO records(rec_id, title, json, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		id, rec.Title(), js, now, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Delete removes recID and its draft.
func (db *DB) Delete(ctx context.Context, recID int) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM records WHERE rec_id = ?`, recID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all committed records ordered by id.
func (db *DB) List(ctx context.Context) ([]RecordInfo, error) {
	rows, err := db.sql.QueryContext(ctx, `SELECT r.rec_id, r.title, r.json, r.updated_at_unixms, d.rec_id IS NOT NULL
		FROM records r LEFT JOIN drafts d ON d.rec_id = r.rec_id
		ORDER BY r.rec_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecordInfo{}
	for rows.Next() {
		var (
			info      RecordInfo
			js        string
			updatedMs int64
		)
		if err := rows.Scan(&info.RecID, &info.Title, &js, &updatedMs, &info.HasDraft); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(js)
		if err != nil {
			return nil, err
		}
		info.Fields = rec.FieldCount()
		info.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
