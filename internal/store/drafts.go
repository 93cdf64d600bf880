package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bibedit-cli/internal/model"
)

// Draft returns the working copy of recID, creating it from the committed
// record on first access. owner becomes the draft's holder on creation.
func (db *DB) Draft(ctx context.Context, recID int, owner string) (model.Record, error) {
	var js string
	err := db.sql.QueryRowContext(ctx, `SELECT json FROM drafts WHERE rec_id = ?`, recID).Scan(&js)
	if err == nil {
		return decodeRecord(js)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	rec, err := db.Get(ctx, recID)
	if err != nil {
		return nil, err
	}
	if err := db.SaveDraft(ctx, recID, owner, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveDraft replaces the working copy of recID and records owner as its
// holder.
func (db *DB) SaveDraft(ctx context.Context, recID int, owner string, rec model.Record) error {
	js, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = db.sql.ExecContext(ctx, `INSERT INTO drafts(rec_id, json, owner, updated_at_unixms) VALUES(?, ?, ?, ?)
		ON CONFLICT(rec_id) DO UPDATE SET json = excluded.json, owner = excluded.owner, updated_at_unixms = excluded.updated_at_unixms`,
		recID, js, owner, db.nowMs())
	return err
}

// DraftOwner returns who holds the draft of recID and when it was last
// saved. ok is false when no draft is open.
func (db *DB) DraftOwner(ctx context.Context, recID int) (owner string, updatedAt time.Time, ok bool, err error) {
	var ms int64
	err = db.sql.QueryRowContext(ctx, `SELECT owner, updated_at_unixms FROM drafts WHERE rec_id = ?`, recID).Scan(&owner, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return owner, time.UnixMilli(ms).UTC(), true, nil
}

// DiscardDraft drops the working copy of recID. Missing drafts are not an
// error.
func (db *DB) DiscardDraft(ctx context.Context, recID int) error {
	_, err := db.sql.ExecContext(ctx, `DELETE FROM drafts WHERE rec_id = ?`, recID)
	return err
}

// Commit makes the draft of recID the committed copy and drops the draft.
func (db *DB) Commit(ctx context.Context, recID int) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var js string
	err = tx.QueryRowContext(ctx, `SELECT json FROM drafts WHERE rec_id = ?`, recID).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	rec, err := decodeRecord(js)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE records SET json = ?, title = ?, updated_at_unixms = ? WHERE rec_id = ?`,
		js, rec.Title(), db.nowMs(), recID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE rec_id = ?`, recID); err != nil {
		return err
	}
	return tx.Commit()
}
