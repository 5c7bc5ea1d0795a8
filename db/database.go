package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"modsync/mcversion"
)

// Store is the record store consumed by the catalog parser and the
// sync engine. It wraps a single gorm connection; sqlite serialises
// concurrent writes, so per-key update ordering is preserved without a
// global lock in the callers.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		),
	}

	gdb, err := gorm.Open(gormlite.Open(path), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := gdb.AutoMigrate(&Mod{}, &ModTag{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return &Store{db: gdb}, nil
}

// GetOrCreate upserts a record by its natural key. When a record with
// the same (version, loader, identifier) already exists it is returned
// unchanged, making re-ingestion of an identical catalog idempotent.
func (s *Store) GetOrCreate(mod *Mod) (*Mod, bool, error) {
	var existing Mod
	err := s.db.Preload("Tags").
		Where("minecraft_version = ? AND loader = ? AND unique_identifier = ?",
			mod.MinecraftVersion, mod.Loader, mod.UniqueIdentifier).
		First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to query mod record: %w", err)
	}

	if err := s.createWithTags(mod); err != nil {
		return nil, false, err
	}
	return mod, true, nil
}

// createWithTags reuses existing tag rows so the unique tag-name
// constraint holds across records.
func (s *Store) createWithTags(mod *Mod) error {
	tags := mod.Tags
	mod.Tags = nil

	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := range tags {
			if err := tx.Where("name = ?", tags[i].Name).FirstOrCreate(&tags[i], ModTag{Name: tags[i].Name}).Error; err != nil {
				return fmt.Errorf("failed to upsert tag %q: %w", tags[i].Name, err)
			}
		}
		mod.Tags = tags
		if err := tx.Create(mod).Error; err != nil {
			return fmt.Errorf("failed to create mod record: %w", err)
		}
		return nil
	})
}

// Transaction runs fn against a transactional view of the store,
// rolling every write back when fn errors. The parser uses it so a
// failed ingestion is never partially applied.
func (s *Store) Transaction(fn func(*Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Update persists the given column changes on an existing record.
func (s *Store) Update(mod *Mod, fields map[string]any) error {
	if err := s.db.Model(mod).Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update mod record: %w", err)
	}
	return nil
}

// Enabled returns the non-disabled detailed mods declared for the
// selected game version and loader. Simple mods carry no source, so
// the engine never sees them.
func (s *Store) Enabled(minecraftVersion string, loader mcversion.Loader) ([]Mod, error) {
	var mods []Mod
	err := s.db.Preload("Tags").
		Where("minecraft_version = ? AND loader = ? AND disabled = ? AND kind IN ?",
			minecraftVersion, loader, false, []Kind{KindCustom, KindAPI}).
		Find(&mods).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled mods: %w", err)
	}
	return mods, nil
}

// All returns every catalog record.
func (s *Store) All() ([]Mod, error) {
	var mods []Mod
	if err := s.db.Preload("Tags").Find(&mods).Error; err != nil {
		return nil, fmt.Errorf("failed to list mods: %w", err)
	}
	return mods, nil
}

// CountByKind returns how many records of the given kind exist.
func (s *Store) CountByKind(kind Kind) (int64, error) {
	var count int64
	if err := s.db.Model(&Mod{}).Where("kind = ?", kind).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count mods: %w", err)
	}
	return count, nil
}

// Count returns the total number of catalog records.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&Mod{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count mods: %w", err)
	}
	return count, nil
}
