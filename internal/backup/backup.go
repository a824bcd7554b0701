// Package backup uploads encrypted snapshots of the subscriber list to
// S3-compatible storage, on demand or on a cron schedule.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/renex/internal/model"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrNotConfigured = errors.New("backup not configured: S3 credentials or passphrase missing")
	ErrNotFound      = errors.New("backup not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Exporter produces the JSON snapshot to back up.
type Exporter interface {
	Export() string
}

// Records tracks uploaded backups.
type Records interface {
	Create(filename, s3Key string) (*model.Backup, error)
	GetByID(id int64) (*model.Backup, error)
	List(limit int) ([]model.Backup, error)
	UpdateStatus(id int64, status model.BackupStatus, errorMsg string) error
	UpdateCompleted(id, sizeBytes int64, subscribers int) error
	DeleteOlderThan(before time.Time) ([]string, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Config struct {
	S3         S3Config
	Passphrase string
	// Schedule is a standard five-field cron expression, evaluated in UTC.
	Schedule      string
	RetentionDays int
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// Manager manages encrypted backups to S3-compatible storage.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status

	source  Exporter
	records Records
	client  s3Client
	logger  *slog.Logger
	now     func() time.Time

	cron *cron.Cron
}

func NewManager(cfg Config, source Exporter, records Records, logger *slog.Logger) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:     cfg,
		source:  source,
		records: records,
		logger:  logger.With("component", "backup"),
		now:     time.Now,
		status:  Status{State: StateDisabled},
	}

	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured reports whether backups can run.
func (m *Manager) Configured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start schedules backups followed by retention cleanup. It is a no-op when
// the manager is disabled or has no schedule.
func (m *Manager) Start(ctx context.Context) error {
	if !m.Configured() || m.cfg.Schedule == "" {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(m.cfg.Schedule, func() {
		if _, err := m.RunNow(ctx); err != nil {
			m.logger.Error("scheduled backup failed", "error", err)
		}
		if err := m.Cleanup(ctx); err != nil {
			m.logger.Error("backup cleanup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", m.cfg.Schedule, err)
	}

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	c.Start()
	m.logger.Info("backup scheduled", "schedule", m.cfg.Schedule)
	return nil
}

// Stop waits for a running backup to finish and stops the schedule.
func (m *Manager) Stop() {
	m.mu.RLock()
	c := m.cron
	m.mu.RUnlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) fail(id int64, err error) {
	if id != 0 {
		if uerr := m.records.UpdateStatus(id, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "id", id, "error", uerr)
		}
	}
	m.setStatus(Status{State: StateError, Error: err.Error()})
}

// RunNow encrypts the current export and uploads it.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	now := m.now().UTC()
	filename := fmt.Sprintf("subscribers-%s-%s.json.enc", now.Format("2006-01-02T150405Z"), uuid.NewString()[:8])
	s3Key := fmt.Sprintf("subscribers/%s/%s", now.Format("2006/01"), filename)

	record, err := m.records.Create(filename, s3Key)
	if err != nil {
		m.fail(0, err)
		return nil, fmt.Errorf("create backup record: %w", err)
	}
	if err := m.records.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		m.logger.Warn("mark backup uploading", "id", record.ID, "error", err)
	}

	export := m.source.Export()
	sealed, err := Encrypt([]byte(export), passphrase)
	if err != nil {
		m.fail(record.ID, err)
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		m.fail(record.ID, err)
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	if err := m.records.UpdateCompleted(record.ID, int64(len(sealed)), countRecords(export)); err != nil {
		m.logger.Warn("mark backup completed", "id", record.ID, "error", err)
	}

	done := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &done})
	m.logger.Info("backup uploaded", "id", record.ID, "key", s3Key, "bytes", len(sealed))

	return m.records.GetByID(record.ID)
}

// List returns the most recent backups.
func (m *Manager) List(limit int) ([]model.Backup, error) {
	return m.records.List(limit)
}

// Fetch downloads and decrypts a backup, returning the JSON export it holds.
func (m *Manager) Fetch(ctx context.Context, id int64) ([]byte, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}

	record, err := m.records.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, ErrNotFound
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return Decrypt(sealed, passphrase)
}

// Cleanup deletes backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	retention := m.cfg.RetentionDays
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := m.now().UTC().AddDate(0, 0, -retention)
	keys, err := m.records.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete s3 object", "key", key, "error", err)
		}
	}
	return nil
}

// countRecords returns the length of the JSON array in export, or 0 when it
// is not an array.
func countRecords(export string) int {
	var records []json.RawMessage
	if err := json.Unmarshal([]byte(export), &records); err != nil {
		return 0
	}
	return len(records)
}
