package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ironsheep/image-release-tools/internal/transform"
)

// MySQLConfig holds connection settings for OpenMySQL.
type MySQLConfig struct {
	Host     string `yaml:"host" koanf:"host"`
	Port     int    `yaml:"port" koanf:"port"`
	User     string `yaml:"user" koanf:"user"`
	Password string `yaml:"password" koanf:"password"`
	DBName   string `yaml:"dbname" koanf:"dbname"`
	Charset  string `yaml:"charset" koanf:"charset"`
}

// DSN renders the go-sql-driver connection string.
func (c MySQLConfig) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, port, c.DBName, charset)
}

// TransformationRow is the table layout of a transformation instance.
type TransformationRow struct {
	ID          string   `gorm:"type:varchar(64);primaryKey"`
	Kind        string   `gorm:"type:varchar(40);not null"`
	ParamsJSON  string   `gorm:"type:text"`
	Enabled     bool     `gorm:"not null"`
	SortOrder   int      `gorm:"not null;default:0"`
	IsDualValue bool     `gorm:"not null;default:false"`
	UserValue   *float64 `gorm:"default:null"`
	AutoValue   *float64 `gorm:"default:null"`
	VersionTag  string   `gorm:"type:varchar(100);not null;index"`
	Status      string   `gorm:"type:varchar(20);not null;index"`
	ReleaseID   string   `gorm:"type:varchar(64);index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TransformationRow) TableName() string { return "transformations" }

// ReleaseRow is the table layout of a release record.
type ReleaseRow struct {
	ID           string     `gorm:"type:varchar(64);primaryKey"`
	Name         string     `gorm:"type:varchar(200);not null"`
	VersionTag   string     `gorm:"type:varchar(100);index"`
	Status       string     `gorm:"type:varchar(30);not null;index"`
	DatasetsJSON string     `gorm:"type:text"`
	ExportFormat string     `gorm:"type:varchar(20)"`
	TaskType     string     `gorm:"type:varchar(30)"`
	StatsJSON    string     `gorm:"type:longtext"`
	FailedCount  int        `gorm:"not null;default:0"`
	ArchivePath  string     `gorm:"type:varchar(500)"`
	ErrorMessage string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"index"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
	CompletedAt  *time.Time `gorm:"default:null"`
}

func (ReleaseRow) TableName() string { return "releases" }

// GormStore is a Store backed by a gorm database.
type GormStore struct {
	db *gorm.DB
}

// OpenMySQL connects to MySQL and migrates the schema.
func OpenMySQL(cfg MySQLConfig) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps db and runs AutoMigrate.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&TransformationRow{}, &ReleaseRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Transformations(ctx context.Context, versionTag string) ([]transform.Instance, error) {
	var rows []TransformationRow
	err := s.db.WithContext(ctx).
		Where("version_tag = ?", versionTag).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transformations: %w", err)
	}
	out := make([]transform.Instance, 0, len(rows))
	for _, r := range rows {
		in, err := r.instance()
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (s *GormStore) SaveTransformations(ctx context.Context, instances []transform.Instance) error {
	if len(instances) == 0 {
		return nil
	}
	rows := make([]TransformationRow, 0, len(instances))
	for _, in := range instances {
		r, err := transformationRow(in)
		if err != nil {
			return err
		}
		rows = append(rows, r)
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to save transformations: %w", err)
	}
	return nil
}

func (s *GormStore) MarkTransformationsCompleted(ctx context.Context, ids []string, releaseID string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&TransformationRow{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     string(transform.StatusCompleted),
				"release_id": releaseID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark transformations: %w", res.Error)
		}
		if res.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("marked %d of %d transformations: %w", res.RowsAffected, len(ids), ErrNotFound)
		}
		return nil
	})
}

func (s *GormStore) SaveRelease(ctx context.Context, rec *ReleaseRecord) error {
	row, err := releaseRow(rec)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save release %s: %w", rec.ID, err)
	}
	return nil
}

func (s *GormStore) Release(ctx context.Context, id string) (*ReleaseRecord, error) {
	var row ReleaseRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("release %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load release %s: %w", id, err)
	}
	return row.record()
}

func (s *GormStore) Releases(ctx context.Context) ([]ReleaseRecord, error) {
	var rows []ReleaseRow
	if err := s.db.WithContext(ctx).Order("created_at DESC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	out := make([]ReleaseRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func transformationRow(in transform.Instance) (TransformationRow, error) {
	if in.ID == "" {
		return TransformationRow{}, fmt.Errorf("transformation instance without id")
	}
	params := "{}"
	if len(in.Params) > 0 {
		data, err := json.Marshal(in.Params)
		if err != nil {
			return TransformationRow{}, fmt.Errorf("transformation %s: %w", in.ID, err)
		}
		params = string(data)
	}
	status := in.Status
	if status == "" {
		status = transform.StatusPending
	}
	return TransformationRow{
		ID:          in.ID,
		Kind:        string(in.Kind),
		ParamsJSON:  params,
		Enabled:     in.Enabled,
		SortOrder:   in.Order,
		IsDualValue: in.IsDualValue,
		UserValue:   in.UserValue,
		AutoValue:   in.AutoValue,
		VersionTag:  in.VersionTag,
		Status:      string(status),
		ReleaseID:   in.ReleaseID,
	}, nil
}

func (r TransformationRow) instance() (transform.Instance, error) {
	var params map[string]interface{}
	if r.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(r.ParamsJSON), &params); err != nil {
			return transform.Instance{}, fmt.Errorf("transformation %s: bad params: %w", r.ID, err)
		}
	}
	if len(params) == 0 {
		params = nil
	}
	return transform.Instance{
		ID:          r.ID,
		Kind:        transform.Kind(r.Kind),
		Params:      params,
		Enabled:     r.Enabled,
		Order:       r.SortOrder,
		IsDualValue: r.IsDualValue,
		UserValue:   r.UserValue,
		AutoValue:   r.AutoValue,
		VersionTag:  r.VersionTag,
		Status:      transform.Status(r.Status),
		ReleaseID:   r.ReleaseID,
	}, nil
}

func releaseRow(rec *ReleaseRecord) (ReleaseRow, error) {
	if rec == nil || rec.ID == "" {
		return ReleaseRow{}, fmt.Errorf("release record without id")
	}
	datasets, err := json.Marshal(rec.DatasetsUsed)
	if err != nil {
		return ReleaseRow{}, err
	}
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return ReleaseRow{}, err
	}
	return ReleaseRow{
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt,
		Name:         rec.Name,
		VersionTag:   rec.VersionTag,
		Status:       rec.Status,
		DatasetsJSON: string(datasets),
		ExportFormat: rec.ExportFormat,
		TaskType:     rec.TaskType,
		StatsJSON:    string(stats),
		FailedCount:  rec.FailedCount,
		ArchivePath:  rec.ArchivePath,
		ErrorMessage: rec.ErrorMessage,
		CompletedAt:  rec.CompletedAt,
	}, nil
}

func (r ReleaseRow) record() (*ReleaseRecord, error) {
	rec := &ReleaseRecord{
		ID:           r.ID,
		Name:         r.Name,
		VersionTag:   r.VersionTag,
		Status:       r.Status,
		ExportFormat: r.ExportFormat,
		TaskType:     r.TaskType,
		FailedCount:  r.FailedCount,
		ArchivePath:  r.ArchivePath,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		CompletedAt:  r.CompletedAt,
	}
	if r.DatasetsJSON != "" {
		if err := json.Unmarshal([]byte(r.DatasetsJSON), &rec.DatasetsUsed); err != nil {
			return nil, fmt.Errorf("release %s: bad datasets: %w", r.ID, err)
		}
	}
	if r.StatsJSON != "" {
		if err := json.Unmarshal([]byte(r.StatsJSON), &rec.Stats); err != nil {
			return nil, fmt.Errorf("release %s: bad stats: %w", r.ID, err)
		}
	}
	return rec, nil
}
