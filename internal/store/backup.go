package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/renex/internal/model"
)

// BackupStore records encrypted export uploads.
type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const backupColumns = `id, filename, s3_key, size_bytes, subscribers, status, error_message, started_at, completed_at, created_at, updated_at`

func (s *BackupStore) Create(filename, s3Key string) (*model.Backup, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backups (filename, s3_key, status, started_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		filename, s3Key, model.BackupStatusPending, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.Backup{
		ID:        id,
		Filename:  filename,
		S3Key:     s3Key,
		Status:    model.BackupStatusPending,
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackup(row rowScanner) (*model.Backup, error) {
	b := &model.Backup{}
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(&b.ID, &b.Filename, &b.S3Key, &b.SizeBytes, &b.Subscribers, &b.Status, &errMsg, &startedAt, &completedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if startedAt.Valid {
		b.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return b, nil
}

func (s *BackupStore) GetByID(id int64) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRow(`SELECT `+backupColumns+` FROM backups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	return b, nil
}

func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(`SELECT `+backupColumns+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) UpdateStatus(id int64, status model.BackupStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errPtr, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update backup status: %w", err)
	}
	return nil
}

// UpdateCompleted marks a backup uploaded with its sealed size and record count.
func (s *BackupStore) UpdateCompleted(id, sizeBytes int64, subscribers int) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, subscribers = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, subscribers, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update backup completed: %w", err)
	}
	return nil
}

// DeleteOlderThan deletes backups created before the given time and returns
// their S3 keys.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT s3_key FROM backups WHERE created_at < ?`, before)
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM backups WHERE created_at < ?`, before); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}
