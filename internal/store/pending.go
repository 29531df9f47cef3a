package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/larder/internal/model"
)

// PendingStore persists the offline change log.
type PendingStore struct {
	db *sql.DB
}

func NewPendingStore(db *sql.DB) *PendingStore {
	return &PendingStore{db: db}
}

// Append stores the changes in one transaction and returns them with their
// sequence numbers filled in. Either all are stored or none.
func (s *PendingStore) Append(ctx context.Context, pcs ...model.PendingChange) ([]model.PendingChange, error) {
	payloads := make([][]byte, len(pcs))
	for i, pc := range pcs {
		if pc.Change == nil {
			return nil, fmt.Errorf("append pending change: missing change")
		}
		if err := pc.Change.Validate(); err != nil {
			return nil, fmt.Errorf("append pending change: %w", err)
		}
		payload, err := model.EncodeChange(pc.Change)
		if err != nil {
			return nil, err
		}
		payloads[i] = payload
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin append pending changes", err)
	}
	defer tx.Rollback()

	out := make([]model.PendingChange, len(pcs))
	for i, pc := range pcs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO pending_changes (kind, entity_id, action, payload, queued_at) VALUES (?, ?, ?, ?, ?)`,
			string(pc.Change.Kind()), pc.Change.TargetID(), string(pc.Change.Action()), payloads[i], pc.QueuedAt,
		)
		if err != nil {
			return nil, classify("append pending change", err)
		}
		if pc.Seq, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("pending change id: %w", err)
		}
		out[i] = pc
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit pending changes", err)
	}
	return out, nil
}

// List returns every queued change ordered by queue time, then sequence.
func (s *PendingStore) List(ctx context.Context) ([]model.PendingChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, kind, payload, queued_at FROM pending_changes ORDER BY queued_at ASC, seq ASC`)
	if err != nil {
		return nil, classify("list pending changes", err)
	}
	defer rows.Close()

	var out []model.PendingChange
	for rows.Next() {
		var pc model.PendingChange
		var kind string
		var payload []byte
		if err := rows.Scan(&pc.Seq, &kind, &payload, &pc.QueuedAt); err != nil {
			return nil, fmt.Errorf("scan pending change: %w", err)
		}
		pc.Change, err = model.DecodeChange(model.Kind(kind), payload)
		if err != nil {
			return nil, fmt.Errorf("pending change %d: %w", pc.Seq, err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// DeleteSeqs removes the given entries in one transaction.
func (s *PendingStore) DeleteSeqs(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin delete pending changes", err)
	}
	defer tx.Rollback()

	for _, seq := range seqs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_changes WHERE seq = ?`, seq); err != nil {
			return classify("delete pending change", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit delete pending changes", err)
	}
	return nil
}

// MaxQueuedAt returns the largest queue timestamp, or 0 for an empty log.
func (s *PendingStore) MaxQueuedAt(ctx context.Context) (int64, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(queued_at) FROM pending_changes`).Scan(&latest); err != nil {
		return 0, classify("max pending queued_at", err)
	}
	return latest.Int64, nil
}

func (s *PendingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_changes`).Scan(&n); err != nil {
		return 0, classify("count pending changes", err)
	}
	return n, nil
}

// Clear empties the log.
func (s *PendingStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_changes`); err != nil {
		return classify("clear pending changes", err)
	}
	return nil
}
