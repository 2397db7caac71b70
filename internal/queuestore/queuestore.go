package queuestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"uk.co.dudmesh.herald/internal/model"
)

// queuestore is the sqlite-backed queue store adapter. The sqlite rowid is
// the record's row token; all claim/resolve transitions are single
// conditional UPDATEs so concurrent actors observing the same row race
// through the database, not through process memory.
type queuestore struct {
	db *sqlx.DB
}

const recordColumns = `rowid as row_token, post_id, channel_target, approver_id,
	text, media_type, media_ref, cta_label, cta_url, status, claim_token,
	created_at, updated_at`

func Open(path string) (*queuestore, error) {
	db, err := sqlx.Connect("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &queuestore{db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return store, nil
}

func (s *queuestore) createTables() error {
	_, err := s.db.Exec(`create table if not exists posts(
		post_id        text not null,
		channel_target text not null,
		approver_id    text not null,
		text           text not null,
		media_type     text not null default '',
		media_ref      text not null default '',
		cta_label      text not null default '',
		cta_url        text not null default '',
		status         text not null default 'pending',
		claim_token    text not null default '',
		created_at     datetime not null,
		updated_at     datetime null
	)`)
	return err
}

func (s *queuestore) Close() error {
	return s.db.Close()
}

func (s *queuestore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListCandidates returns every record in insertion order with its current
// status.
func (s *queuestore) ListCandidates(ctx context.Context) ([]model.PostRecord, error) {
	records := []model.PostRecord{}
	err := s.db.SelectContext(ctx, &records,
		`select `+recordColumns+` from posts order by rowid`)
	if err != nil {
		return nil, storeError("listing candidates", err)
	}
	return records, nil
}

// Read re-reads a single record by row token.
func (s *queuestore) Read(ctx context.Context, rowToken int64) (*model.PostRecord, error) {
	record := &model.PostRecord{}
	err := s.db.GetContext(ctx, record,
		`select `+recordColumns+` from posts where rowid = ?`, rowToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrorRecordNotFound
		}
		return nil, storeError("reading record", err)
	}
	return record, nil
}

// Claim atomically moves a pending record to claimed and stamps it with the
// claim token. Returns false when another actor already claimed the row.
func (s *queuestore) Claim(ctx context.Context, rowToken int64, claimToken string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update posts set status = ?, claim_token = ?, updated_at = ?
			where rowid = ? and status = ?`,
		model.PostStatusClaimed, claimToken, time.Now().UTC(),
		rowToken, model.PostStatusPending)
	if err != nil {
		return false, storeError("claiming record", err)
	}
	return affectedOne(res)
}

// Resolve conditionally moves a claimed or awaiting-approval record to the
// given status. Returns false when the record was already resolved, which is
// how duplicate or replayed decisions lose.
func (s *queuestore) Resolve(ctx context.Context, rowToken int64, to model.PostStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update posts set status = ?, updated_at = ?
			where rowid = ? and status in (?, ?)`,
		to, time.Now().UTC(), rowToken,
		model.PostStatusClaimed, model.PostStatusAwaitingApproval)
	if err != nil {
		return false, storeError("resolving record", err)
	}
	return affectedOne(res)
}

// Release rolls a claimed record back to pending after a transient send
// failure so the next poll cycle retries it.
func (s *queuestore) Release(ctx context.Context, rowToken int64) error {
	_, err := s.db.ExecContext(ctx,
		`update posts set status = ?, claim_token = '', updated_at = ?
			where rowid = ? and status = ?`,
		model.PostStatusPending, time.Now().UTC(),
		rowToken, model.PostStatusClaimed)
	if err != nil {
		return storeError("releasing record", err)
	}
	return nil
}

// UpdateStatus writes a status unconditionally. Used for the transitions the
// engine has already won: awaiting_approval after a successful send, and the
// terminal published/failed writes.
func (s *queuestore) UpdateStatus(ctx context.Context, rowToken int64, status model.PostStatus) error {
	_, err := s.db.ExecContext(ctx,
		`update posts set status = ?, updated_at = ? where rowid = ?`,
		status, time.Now().UTC(), rowToken)
	if err != nil {
		return storeError("updating status", err)
	}
	return nil
}

// Append inserts a new record at the end of the queue and fills in its row
// token. Producer-side entry point; the workflow engine never inserts.
func (s *queuestore) Append(ctx context.Context, record *model.PostRecord) error {
	if record.Status == "" {
		record.Status = model.PostStatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.NamedExecContext(ctx, `insert into posts
		(post_id, channel_target, approver_id, text, media_type, media_ref,
			cta_label, cta_url, status, claim_token, created_at)
		values(:post_id, :channel_target, :approver_id, :text, :media_type,
			:media_ref, :cta_label, :cta_url, :status, :claim_token, :created_at)`,
		record)
	if err != nil {
		return storeError("appending record", err)
	}

	rowToken, err := res.LastInsertId()
	if err != nil {
		return storeError("reading inserted row token", err)
	}
	record.RowToken = rowToken

	return nil
}

func affectedOne(res sql.Result) (bool, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return false, storeError("getting rows affected", err)
	}
	return rows == 1, nil
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(model.ErrorStoreUnavailable, err))
}
