package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ Ledger = (*Postgres)(nil)

// ProviderCall is the gorm model for one ledger row.
type ProviderCall struct {
	ID         string    `gorm:"primaryKey;type:uuid"`
	Endpoint   string    `gorm:"index;not null"`
	Key        string    `gorm:"column:cache_key;not null"`
	Outcome    string    `gorm:"not null"`
	DurationMS int64     `gorm:"not null"`
	At         time.Time `gorm:"column:called_at;index;not null"`
}

func (ProviderCall) TableName() string { return "provider_calls" }

// Postgres stores the ledger in PostgreSQL through gorm.
type Postgres struct {
	DB *gorm.DB
}

// OpenPostgres connects and migrates the provider_calls table.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&ProviderCall{}); err != nil {
		return nil, fmt.Errorf("auto-migrate provider_calls: %w", err)
	}
	return &Postgres{DB: db}, nil
}

// EnsureDatabase creates database name through the admin connection adminDSN
// when it does not exist yet.
func EnsureDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, r Record) error {
	row := ProviderCall{
		ID:         r.ID,
		Endpoint:   r.Endpoint,
		Key:        r.Key,
		Outcome:    r.Outcome,
		DurationMS: r.Duration.Milliseconds(),
		At:         r.At,
	}
	return p.DB.WithContext(ctx).Create(&row).Error
}

func (p *Postgres) Count(ctx context.Context, from, to time.Time) (map[string]int, error) {
	var rows []struct {
		Endpoint string
		N        int
	}
	err := p.DB.WithContext(ctx).
		Model(&ProviderCall{}).
		Select("endpoint, COUNT(*) AS n").
		Where("called_at >= ? AND called_at < ?", from, to).
		Group("endpoint").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Endpoint] = r.N
	}
	return out, nil
}

func (p *Postgres) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
