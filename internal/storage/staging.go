package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/shopspring/decimal"
)

// CreateSession persists an upload's records under a new session id, in
// their given order.
func (s *SQLiteStorage) CreateSession(ctx context.Context, sessionID string, meta model.SessionMeta, records []model.StagedRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}
	if err := validateStagedRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM staging_sessions WHERE session_id = ?`, sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", common.ErrDuplicateSession, sessionID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO staging_sessions (session_id, institution, card_label, invoice_month, source_filename)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, meta.Institution, nullString(meta.CardLabel), meta.InvoiceMonth, nullString(meta.SourceFilename))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := insertStagedRecordsTx(ctx, tx, sessionID, records); err != nil {
		return err
	}

	return tx.Commit()
}

// GetSession returns a session's records ordered by date ascending, staged
// position breaking ties. Absent or expired sessions are not found.
func (s *SQLiteStorage) GetSession(ctx context.Context, sessionID string) ([]model.StagedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	// Also serves as the liveness check; the meta query must complete
	// before the record cursor opens because the pool holds one connection.
	meta, err := s.GetSessionMeta(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, position, external_id, date, description, amount,
		       source_type, category_group, category_subgroup, expense_type,
		       classification_origin, flow_bucket, duplicate_status,
		       duplicate_similarity, duplicate_of
		FROM staging_records
		WHERE session_id = ?
		ORDER BY date ASC, position ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query staged records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.StagedRecord
	for rows.Next() {
		r, scanErr := scanStagedRecord(rows, meta)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate staged records: %w", err)
	}

	return records, nil
}

// GetSessionMeta returns the upload-level metadata of a live session.
func (s *SQLiteStorage) GetSessionMeta(ctx context.Context, sessionID string) (*model.SessionMeta, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var meta model.SessionMeta
	var cardLabel, sourceFilename sql.NullString
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT institution, card_label, invoice_month, source_filename, created_at
		FROM staging_sessions WHERE session_id = ?`, sessionID).
		Scan(&meta.Institution, &cardLabel, &meta.InvoiceMonth, &sourceFilename, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", common.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	if s.expired(createdAt) {
		return nil, fmt.Errorf("%w: %s (expired)", common.ErrSessionNotFound, sessionID)
	}

	meta.CardLabel = cardLabel.String
	meta.SourceFilename = sourceFilename.String
	return &meta, nil
}

// ReplaceSession atomically overwrites all records of a session. Used after
// the classification and duplicate-detection passes annotate the batch.
func (s *SQLiteStorage) ReplaceSession(ctx context.Context, sessionID string, records []model.StagedRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}
	if err := validateStagedRecords(records); err != nil {
		return err
	}

	if err := s.checkSessionLive(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM staging_records WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear staged records: %w", err)
	}

	if err := insertStagedRecordsTx(ctx, tx, sessionID, records); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteSession removes a session and its records. Idempotent.
func (s *SQLiteStorage) DeleteSession(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}
	return deleteSessionTx(ctx, s.db, sessionID)
}

// DeleteSession removes a session within the commit transaction.
func (t *sqliteTx) DeleteSession(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return deleteSessionTx(ctx, t.tx, sessionID)
}

// PurgeExpiredSessions deletes sessions older than ttl.
func (s *SQLiteStorage) PurgeExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if ttl <= 0 {
		ttl = s.sessionTTL
	}

	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM staging_sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	return n, nil
}

func deleteSessionTx(ctx context.Context, q queryer, sessionID string) error {
	// staging_records rows go with the session via ON DELETE CASCADE
	if _, err := q.ExecContext(ctx,
		`DELETE FROM staging_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) checkSessionLive(ctx context.Context, sessionID string) error {
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM staging_sessions WHERE session_id = ?`, sessionID).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", common.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if s.expired(createdAt) {
		return fmt.Errorf("%w: %s (expired)", common.ErrSessionNotFound, sessionID)
	}
	return nil
}

func (s *SQLiteStorage) expired(createdAt time.Time) bool {
	return time.Since(createdAt) > s.sessionTTL
}

func insertStagedRecordsTx(ctx context.Context, tx *sql.Tx, sessionID string, records []model.StagedRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO staging_records (
			session_id, position, external_id, date, description, amount,
			source_type, category_group, category_subgroup, expense_type,
			classification_origin, flow_bucket, duplicate_status,
			duplicate_similarity, duplicate_of
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		if r.ExternalID == "" {
			r.ExternalID = r.GenerateExternalID()
		}
		status := r.DuplicateStatus
		if status == "" {
			status = model.DuplicateUnknown
		}
		var dupOf any
		if r.DuplicateOf != nil {
			dupOf = *r.DuplicateOf
		}

		_, err = stmt.ExecContext(ctx,
			sessionID,
			i,
			r.ExternalID,
			r.Date.UTC(),
			r.Description,
			r.Amount.String(),
			nullString(r.SourceType),
			nullString(r.Group),
			nullString(r.Subgroup),
			nullString(r.ExpenseType),
			nullString(string(r.ClassificationOrigin)),
			nullString(string(r.FlowBucket)),
			string(status),
			r.DuplicateSimilarity,
			dupOf,
		)
		if err != nil {
			return fmt.Errorf("failed to insert staged record %d: %w", i, err)
		}
	}

	return nil
}

func scanStagedRecord(rows *sql.Rows, meta *model.SessionMeta) (model.StagedRecord, error) {
	var r model.StagedRecord
	var amount string
	var sourceType, group, subgroup, expenseType, origin, bucket sql.NullString
	var status string
	var dupOf sql.NullInt64

	err := rows.Scan(&r.ID, &r.SessionID, &r.Position, &r.ExternalID, &r.Date,
		&r.Description, &amount, &sourceType, &group, &subgroup, &expenseType,
		&origin, &bucket, &status, &r.DuplicateSimilarity, &dupOf)
	if err != nil {
		return r, fmt.Errorf("failed to scan staged record: %w", err)
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return r, fmt.Errorf("failed to parse staged amount %q: %w", amount, err)
	}
	r.Amount = amt
	r.SourceType = sourceType.String
	r.Group = group.String
	r.Subgroup = subgroup.String
	r.ExpenseType = expenseType.String
	r.ClassificationOrigin = model.ClassificationOrigin(origin.String)
	r.FlowBucket = model.FlowBucket(bucket.String)
	r.DuplicateStatus = model.DuplicateStatus(status)
	if dupOf.Valid {
		v := dupOf.Int64
		r.DuplicateOf = &v
	}
	if meta != nil {
		r.Institution = meta.Institution
		r.CardLabel = meta.CardLabel
		r.InvoiceMonth = meta.InvoiceMonth
	}

	return r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
