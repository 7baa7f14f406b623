package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upFetchOutcomes, downFetchOutcomes)
}

// FetchOutcome is one row per artifact attempt or skipped resource.
type FetchOutcome struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	RunID      uuid.UUID         `gorm:"type:uuid;not null;index"`
	Pipeline   string            `gorm:"type:text;not null;index"`
	Resource   string            `gorm:"type:text;not null;index"`
	Filename   string            `gorm:"type:text"`
	Path       string            `gorm:"type:text"`
	Status     string            `gorm:"type:text;not null"`
	StatusCode int               `gorm:"type:integer"`
	Error      string            `gorm:"type:text"`
	Size       int64             `gorm:"type:bigint"`
	SHA256     string            `gorm:"column:sha256;type:text"`
	Meta       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func openGorm(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upFetchOutcomes(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).AutoMigrate(&FetchOutcome{})
}

func downFetchOutcomes(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openGorm(tx)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).Migrator().DropTable(&FetchOutcome{})
}
