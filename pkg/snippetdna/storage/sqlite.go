//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/SnippetDNA/pkg/models"
	"github.com/himanishpuri/SnippetDNA/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "snippetdna.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when no reference has the requested id.
var ErrNotFound = errors.New("reference not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Reference struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Label       string `gorm:"index:idx_label" json:"label"`
	SampleRate  int    `json:"sample_rate"`
	SampleCount int    `json:"sample_count"`
	PCM         []byte `json:"-"`
	CreatedAt   time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("SNIPPET_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := utils.MakeParentDir(dbPath); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Reference{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// AddReference stores s16le mono pcm recorded at sampleRate and returns the new id.
func (c *DBClient) AddReference(label string, sampleRate int, pcm []byte) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	ref := Reference{
		ID:          uuid.NewString(),
		Label:       label,
		SampleRate:  sampleRate,
		SampleCount: len(pcm) / 2,
		PCM:         pcm,
	}
	if err := c.DB.Create(&ref).Error; err != nil {
		return "", fmt.Errorf("creating reference: %w", err)
	}
	return ref.ID, nil
}

func (c *DBClient) GetReference(id string) (*models.Reference, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var ref Reference
	if err := c.DB.Where("id = ?", id).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("querying reference: %w", err)
	}
	out := toModel(ref)
	return &out, nil
}

// ListReferences returns reference metadata in insertion order, without PCM.
func (c *DBClient) ListReferences() ([]models.Reference, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Reference
	err := c.DB.Select("id", "label", "sample_rate", "sample_count", "created_at").
		Order("created_at, rowid").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	return toModels(rows), nil
}

// LoadReferences is ListReferences including the PCM payloads.
func (c *DBClient) LoadReferences() ([]models.Reference, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Reference
	if err := c.DB.Order("created_at, rowid").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading references: %w", err)
	}
	return toModels(rows), nil
}

func (c *DBClient) DeleteReference(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", id).Delete(&Reference{})
	if res.Error != nil {
		return fmt.Errorf("deleting reference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func toModel(r Reference) models.Reference {
	return models.Reference{
		ID:          r.ID,
		Label:       r.Label,
		SampleRate:  r.SampleRate,
		SampleCount: r.SampleCount,
		PCM:         r.PCM,
		CreatedAt:   r.CreatedAt,
	}
}

func toModels(rows []Reference) []models.Reference {
	out := make([]models.Reference, len(rows))
	for i, r := range rows {
		out[i] = toModel(r)
	}
	return out
}
