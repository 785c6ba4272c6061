package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusfound/board-service/internal/config"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func init() {
	registrykv.Register(registrykv.Plugin{
		Name:   "sql",
		Loader: load,
	})
}

// pair is the single-table KV schema.
type pair struct {
	K string `gorm:"primaryKey;size:512"`
	V []byte `gorm:"not null"`
}

func (pair) TableName() string { return "kv_pairs" }

func load(ctx context.Context) (registrykv.Store, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.KVURL == "" {
		return nil, fmt.Errorf("sql kv: BOARD_SERVICE_KV_URL is required")
	}
	return Open(ctx, cfg.KVURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
}

// Open connects to the database named by url. postgres:// and postgresql://
// URLs use the postgres driver; anything else is treated as a sqlite path.
func Open(_ context.Context, url string, maxOpen, maxIdle int) (registrykv.Store, error) {
	var dialector gorm.Dialector
	isPostgres := strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
	if isPostgres {
		dialector = postgres.Open(url)
	} else {
		dialector = sqlite.Open(url)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("sql kv: connect failed: %w", err)
	}
	if err := db.AutoMigrate(&pair{}); err != nil {
		return nil, fmt.Errorf("sql kv: migrate failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql kv: underlying db: %w", err)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	return &sqlStore{db: db, isPostgres: isPostgres}, nil
}

type sqlStore struct {
	db         *gorm.DB
	isPostgres bool
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte) error {
	row := pair{K: key, V: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&row).Error
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row pair
	err := s.db.WithContext(ctx).First(&row, "k = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, registrykv.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.V, nil
}

func (s *sqlStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var rows []pair
	err := s.db.WithContext(ctx).
		Where("k LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	values := make([][]byte, len(rows))
	for i, row := range rows {
		values[i] = row.V
	}
	return values, nil
}

// Swap runs the read-modify-write in a transaction. On postgres the row is
// locked FOR UPDATE so concurrent swaps serialize; sqlite serializes writers
// on its own.
func (s *sqlStore) Swap(ctx context.Context, key string, fn registrykv.SwapFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if s.isPostgres {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var row pair
		found := true
		err := query.First(&row, "k = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			return err
		}
		var current []byte
		if found {
			current = row.V
		}
		next, err := fn(current, found)
		if err != nil {
			return err
		}
		updated := pair{K: key, V: next}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "k"}},
			DoUpdates: clause.AssignmentColumns([]string{"v"}),
		}).Create(&updated).Error
	})
}

func (s *sqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// escapeLike escapes LIKE metacharacters so the prefix matches literally.
func escapeLike(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}
