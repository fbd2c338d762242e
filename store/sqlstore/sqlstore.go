// Package sqlstore keeps both tagcache tables in a SQL database through gorm.
// The tag table carries plain column indexes on tag and cache_key, which is
// all Scan needs.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/unkn0wn-root/tagcache/store"
)

type entryModel struct {
	ID           string   `gorm:"primaryKey;size:768"`
	Data         string   `gorm:"type:text;not null"`
	LastModified int64    `gorm:"not null"`
	Tags         []string `gorm:"serializer:json"`
}

func (entryModel) TableName() string { return "tagcache_entries" }

type tagModel struct {
	ID       string `gorm:"primaryKey;size:1024"`
	CacheKey string `gorm:"index;size:768;not null"`
	Tag      string `gorm:"index;size:255;not null"`
}

func (tagModel) TableName() string { return "tagcache_tag_rows" }

var columns = map[store.Attribute]string{
	store.AttrTag:      "tag",
	store.AttrCacheKey: "cache_key",
}

type Config struct {
	Dialect string // "sqlite", "postgres" or "mysql"
	DSN     string
	// SkipMigrate leaves schema management to the caller.
	SkipMigrate bool
}

// Store is a gorm-backed store.Store.
type Store struct {
	db      *gorm.DB
	entries *entries
	tags    *tags
}

var _ store.Store = (*Store)(nil)

// Open connects with the configured dialect and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dial gorm.Dialector
	switch strings.ToLower(cfg.Dialect) {
	case "sqlite", "sqlite3":
		dial = sqlite.Open(cfg.DSN)
	case "postgres", "postgresql":
		dial = postgres.Open(cfg.DSN)
	case "mysql":
		dial = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", cfg.Dialect)
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, store.Unavailable("open", err)
	}
	if strings.Contains(cfg.DSN, ":memory:") {
		// every sqlite connection to :memory: is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, !cfg.SkipMigrate)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, migrate bool) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	if migrate {
		if err := db.AutoMigrate(&entryModel{}, &tagModel{}); err != nil {
			return nil, fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	s := &Store{db: db}
	s.entries = &entries{db: db}
	s.tags = &tags{db: db}
	return s, nil
}

func (s *Store) Entries() store.EntryTable { return s.entries }
func (s *Store) Tags() store.TagTable      { return s.tags }

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type entries struct{ db *gorm.DB }

func (e *entries) Get(ctx context.Context, key string) (store.Record, bool, error) {
	var m entryModel
	err := e.db.WithContext(ctx).Where("id = ?", key).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, store.Unavailable("get", err)
	}
	return store.Record{ID: m.ID, Data: m.Data, LastModified: m.LastModified, Tags: m.Tags}, true, nil
}

func (e *entries) Put(ctx context.Context, rec store.Record) error {
	m := entryModel{ID: rec.ID, Data: rec.Data, LastModified: rec.LastModified, Tags: rec.Tags}
	err := e.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	return store.Unavailable("put", err)
}

func (e *entries) Delete(ctx context.Context, key string) error {
	return store.Unavailable("delete", e.db.WithContext(ctx).Delete(&entryModel{}, "id = ?", key).Error)
}

func (e *entries) Close(context.Context) error { return nil }

type tags struct{ db *gorm.DB }

func (t *tags) Put(ctx context.Context, row store.TagRow) error {
	m := tagModel{ID: row.ID, CacheKey: row.CacheKey, Tag: row.Tag}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
	return store.Unavailable("put tag", err)
}

func (t *tags) Delete(ctx context.Context, id string) error {
	return store.Unavailable("delete tag", t.db.WithContext(ctx).Delete(&tagModel{}, "id = ?", id).Error)
}

// Scan loads matching rows before yielding so callers can delete while
// iterating without holding a cursor open on the same connection.
func (t *tags) Scan(ctx context.Context, attr store.Attribute, value string) iter.Seq2[store.TagRow, error] {
	col, ok := columns[attr]
	if !ok {
		return store.ScanErr(errors.New("sqlstore: unknown attribute " + string(attr)))
	}
	var ms []tagModel
	if err := t.db.WithContext(ctx).Where(col+" = ?", value).Find(&ms).Error; err != nil {
		return store.ScanErr(store.Unavailable("scan", err))
	}
	return func(yield func(store.TagRow, error) bool) {
		for _, m := range ms {
			if !yield(store.TagRow{ID: m.ID, CacheKey: m.CacheKey, Tag: m.Tag}, nil) {
				return
			}
		}
	}
}

func (t *tags) Close(context.Context) error { return nil }
