package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shark/core/events"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ErrNotFound is returned when no entry matches the requested id.
var ErrNotFound = errors.New("journal: entry not found")

// Entry is one persisted lending action.
type Entry struct {
	ID         string `gorm:"primaryKey;size:36"`
	Action     string `gorm:"size:32;index"`
	Sender     string `gorm:"size:128;index"`
	Funds      string
	Outcome    string `gorm:"size:32;index"`
	Error      string
	Attributes string
	Messages   string
	LockIDs    string
	At         time.Time `gorm:"index"`
	DurationMS int64
	CreatedAt  time.Time
}

// TableName pins the table name independent of the struct name.
func (Entry) TableName() string { return "lending_actions" }

// AttributeMap decodes the stored response attributes.
func (e Entry) AttributeMap() (map[string]string, error) {
	out := map[string]string{}
	if e.Attributes == "" {
		return out, nil
	}
	var attrs []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return nil, err
	}
	for _, attr := range attrs {
		if _, ok := out[attr.Key]; !ok {
			out[attr.Key] = attr.Value
		}
	}
	return out, nil
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Sender  string
	Action  string
	Outcome string
	Since   time.Time
	Limit   int
}

// Journal persists lending actions to SQLite. It implements events.Emitter so
// it can be attached to the executor's event fanout.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string, log *slog.Logger) (*Journal, error) {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		return nil, fmt.Errorf("journal: path required")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	return New(db, log)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: db required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, logger: log}, nil
}

// Emit implements events.Emitter. Events other than lending actions are
// ignored; write failures are logged and never surface to the executor.
func (j *Journal) Emit(ev events.Event) {
	action, ok := ev.(events.LendingAction)
	if !ok {
		return
	}
	if err := j.Record(context.Background(), action); err != nil {
		j.logger.Error("journal write failed", "id", action.ID, "action", action.Action, "error", err)
	}
}

// Record stores action. Recording the same id twice is a no-op.
func (j *Journal) Record(ctx context.Context, action events.LendingAction) error {
	entry, err := toEntry(action)
	if err != nil {
		return err
	}
	var existing int64
	if err := j.db.WithContext(ctx).Model(&Entry{}).Where("id = ?", entry.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	return j.db.WithContext(ctx).Create(&entry).Error
}

// Get returns the entry recorded under id.
func (j *Journal) Get(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	err := j.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the most recent entries matching filter, newest first.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	query := j.db.WithContext(ctx).Model(&Entry{})
	if filter.Sender != "" {
		query = query.Where("sender = ?", filter.Sender)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if !filter.Since.IsZero() {
		query = query.Where("at >= ?", filter.Since.UTC())
	}
	var entries []Entry
	if err := query.Order("at DESC").Order("id").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toEntry(action events.LendingAction) (Entry, error) {
	if strings.TrimSpace(action.ID) == "" {
		return Entry{}, fmt.Errorf("journal: action id required")
	}
	attrs, err := json.Marshal(action.Attributes)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode attributes: %w", err)
	}
	msgs, err := json.Marshal(action.Messages)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode messages: %w", err)
	}
	return Entry{
		ID:         action.ID,
		Action:     action.Action,
		Sender:     action.Sender,
		Funds:      action.Funds.String(),
		Outcome:    action.Outcome,
		Error:      action.Error,
		Attributes: string(attrs),
		Messages:   string(msgs),
		LockIDs:    strings.Join(action.LockIDs, ","),
		At:         action.At.UTC(),
		DurationMS: action.Duration.Milliseconds(),
	}, nil
}
