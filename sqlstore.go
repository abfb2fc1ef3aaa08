package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Document is one stored leaf: a JSON value keyed by its full path.
type Document struct {
	Path      string         `gorm:"primaryKey;size:256"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

func OpenDB(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Document{})
}

// SQLStore is the durable DocumentStore: one documents table in SQLite.
// Subscribe fan-out is in-process; a single server process owns the file.
type SQLStore struct {
	db       *gorm.DB
	notifier *storeNotifier
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, notifier: newStoreNotifier()}
}

func (s *SQLStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	raw, err := s.read(ctx, path)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (s *SQLStore) Set(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSubtree(tx, path); err != nil {
			return err
		}
		return tx.Create(&Document{Path: path, Value: raw}).Error
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.notifier.notify(path, s.snapshot)
	return nil
}

func (s *SQLStore) Update(ctx context.Context, path string, fields map[string]any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc := map[string]any{}
		var row Document
		if err := tx.First(&row, "path = ?", path).Error; err == nil {
			if err := json.Unmarshal(row.Value, &doc); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		for k, v := range fields {
			doc[k] = v
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if err := tx.Where("path = ?", path).Delete(&Document{}).Error; err != nil {
			return err
		}
		return tx.Create(&Document{Path: path, Value: raw}).Error
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	s.notifier.notify(path, s.snapshot)
	return nil
}

func (s *SQLStore) Subscribe(path string, fn func(raw json.RawMessage)) func() {
	id := s.notifier.add(path, fn)
	fn(s.snapshot(path))
	return func() { s.notifier.remove(id) }
}

func (s *SQLStore) snapshot(path string) json.RawMessage {
	raw, err := s.read(context.Background(), path)
	if err != nil {
		return nil
	}
	return raw
}

func (s *SQLStore) read(ctx context.Context, path string) (json.RawMessage, error) {
	var row Document
	err := s.db.WithContext(ctx).First(&row, "path = ?", path).Error
	if err == nil {
		return json.RawMessage(row.Value), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	var rows []Document
	if err := s.db.WithContext(ctx).
		Where(`path LIKE ? ESCAPE '\'`, escapeLike(path)+"/%").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return assembleSubtree(path, func(visit func(string, json.RawMessage)) {
		for _, r := range rows {
			visit(r.Path, json.RawMessage(r.Value))
		}
	}), nil
}

func deleteSubtree(tx *gorm.DB, path string) error {
	return tx.
		Where(`path = ? OR path LIKE ? ESCAPE '\'`, path, escapeLike(path)+"/%").
		Delete(&Document{}).Error
}

// escapeLike guards path segments against LIKE metacharacters; paths are
// caller-controlled ids, so % and _ can legitimately appear.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
