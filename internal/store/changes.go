package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Change is one applied mutation in the change log.
type Change struct {
	ID        string          `json:"id"`
	RecID     int             `json:"recID"`
	TxnID     int64           `json:"txnID"`
	Type      string          `json:"type"`
	Owner     string          `json:"owner"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// AppendChange records a mutation. The ULID id sorts in append order.
func (db *DB) AppendChange(ctx context.Context, recID int, txnID int64, typ, owner string, payload any) (Change, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Change{}, err
	}
	now := db.now().UTC()
	c := Change{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		RecID:     recID,
		TxnID:     txnID,
		Type:      typ,
		Owner:     owner,
		Payload:   b,
		CreatedAt: now,
	}
	_, err = db.sql.ExecContext(ctx, `INSERT INTO changes(change_id, rec_id, txn_id, type, owner, payload_json, created_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RecID, c.TxnID, c.Type, c.Owner, string(b), now.UnixMilli())
	if err != nil {
		return Change{}, err
	}
	return c, nil
}

// Changes returns the change log of recID (all records when recID <= 0) in
// append order. limit == 0 means "all".
func (db *DB) Changes(ctx context.Context, recID int, limit int) ([]Change, error) {
	q := `SELECT change_id, rec_id, txn_id, type, owner, payload_json, created_at_unixms FROM changes`
	var args []any
	if recID > 0 {
		q += ` WHERE rec_id = ?`
		args = append(args, recID)
	}
	q += ` ORDER BY change_id ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Change{}
	for rows.Next() {
		var (
			c         Change
			payload   string
			createdMs int64
		)
		if err := rows.Scan(&c.ID, &c.RecID, &c.TxnID, &c.Type, &c.Owner, &payload, &createdMs); err != nil {
			return nil, err
		}
		c.Payload = json.RawMessage(strings.TrimSpace(payload))
		if len(c.Payload) == 0 {
			c.Payload = json.RawMessage("null")
		}
		c.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// WriteChangesJSONL writes changes one JSON object per line.
func WriteChangesJSONL(path string, cs []Change) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, c := range cs {
		if err := enc.Encode(c); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// ReadChangesJSONL reads a file written by WriteChangesJSONL.
func ReadChangesJSONL(path string) ([]Change, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []Change{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var c Change
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("parse changes jsonl: %w", err)
		}
		out = append(out, c)
	}
	return out, sc.Err()
}
