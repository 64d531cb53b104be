package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mockbird/mockbird/pkg/capture"
	"github.com/mockbird/mockbird/pkg/project"
)

// Gorm is the PostgreSQL-backed Store.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to PostgreSQL with the given DSN and migrates
// the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an existing gorm handle and migrates the schema.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&projectRow{}, &endpointRow{}, &captureRow{}); err != nil {
		return nil, fmt.Errorf("cannot migrate schema: %w", err)
	}
	return &Gorm{db: db}, nil
}

type projectRow struct {
	ID          uuid.UUID `gorm:"primaryKey;type:uuid"`
	UserID      string    `gorm:"index;type:varchar(64)"`
	Subdomain   string    `gorm:"uniqueIndex;type:varchar(63)"`
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (projectRow) TableName() string { return "projects" }

type endpointRow struct {
	ID              uuid.UUID `gorm:"primaryKey;type:uuid"`
	ProjectID       uuid.UUID `gorm:"index;type:uuid"`
	Subdomain       string    `gorm:"index;type:varchar(63)"`
	UserID          string    `gorm:"index;type:varchar(64)"`
	RequestMethod   string    `gorm:"type:varchar(7)"`
	RequestPath     string    `gorm:"type:varchar(255)"`
	ResponseCode    int
	ResponseBody    string
	ResponseHeaders string
	ResponseDelayMs int
	Description     string
	RequestCount    uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (endpointRow) TableName() string { return "endpoints" }

type captureRow struct {
	ID              string    `gorm:"primaryKey;type:varchar(26)"`
	ProjectID       uuid.UUID `gorm:"index;type:uuid"`
	EndpointID      uuid.UUID `gorm:"index;type:uuid"`
	UserID          string    `gorm:"index;type:varchar(64)"`
	RequestMethod   string    `gorm:"type:varchar(7)"`
	RequestURL      string    `gorm:"type:varchar(2048)"`
	RequestHeaders  string
	RequestBody     string
	ResponseCode    int
	ResponseBody    string
	ResponseHeaders string
	ResponseDelayMs int
	IPAddress       string `gorm:"type:varchar(45)"`
	CreatedAt       time.Time
}

func (captureRow) TableName() string { return "captures" }

// ProjectBySubdomain implements EndpointSource.
func (s *Gorm) ProjectBySubdomain(ctx context.Context, subdomain string) (*project.Project, error) {
	var row projectRow
	err := s.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load project for subdomain %q: %w", subdomain, err)
	}
	return row.toDomain(), nil
}

// EndpointsBySubdomain implements EndpointSource.
func (s *Gorm) EndpointsBySubdomain(ctx context.Context, subdomain string) ([]*project.Endpoint, error) {
	var rows []endpointRow
	err := s.db.WithContext(ctx).
		Where("subdomain = ?", subdomain).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("cannot load endpoints for subdomain %q: %w", subdomain, err)
	}

	endpoints := make([]*project.Endpoint, len(rows))
	for i := range rows {
		endpoints[i] = rows[i].toDomain()
	}
	return endpoints, nil
}

// IncrementRequestCount implements EndpointCounter.
func (s *Gorm) IncrementRequestCount(ctx context.Context, endpointID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Model(&endpointRow{}).
		Where("id = ?", endpointID).
		UpdateColumn("request_count", gorm.Expr("request_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("cannot increment request count for endpoint %s: %w", endpointID, err)
	}
	return nil
}

// InsertCapture implements capture.Store.
func (s *Gorm) InsertCapture(ctx context.Context, c *capture.Capture) error {
	if err := s.db.WithContext(ctx).Create(captureRowFrom(c)).Error; err != nil {
		return fmt.Errorf("cannot insert capture %s: %w", c.ID, err)
	}
	return nil
}

// ListCaptures implements CaptureStore.
func (s *Gorm) ListCaptures(ctx context.Context, endpointID uuid.UUID, limit int, beforeID string) ([]*capture.Capture, error) {
	query := s.db.WithContext(ctx).Where("endpoint_id = ?", endpointID)
	if beforeID != "" {
		query = query.Where("id < ?", beforeID)
	}

	var rows []captureRow
	if err := query.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cannot list captures for endpoint %s: %w", endpointID, err)
	}

	captures := make([]*capture.Capture, len(rows))
	for i := range rows {
		captures[i] = rows[i].toDomain()
	}
	return captures, nil
}

// GetCapture implements CaptureStore.
func (s *Gorm) GetCapture(ctx context.Context, id string) (*capture.Capture, error) {
	var row captureRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load capture %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// DeleteCapture implements CaptureStore.
func (s *Gorm) DeleteCapture(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&captureRow{})
	if result.Error != nil {
		return fmt.Errorf("cannot delete capture %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCapturesByEndpoint implements CaptureStore.
func (s *Gorm) DeleteCapturesByEndpoint(ctx context.Context, endpointID uuid.UUID) error {
	err := s.db.WithContext(ctx).Where("endpoint_id = ?", endpointID).Delete(&captureRow{}).Error
	if err != nil {
		return fmt.Errorf("cannot delete captures for endpoint %s: %w", endpointID, err)
	}
	return nil
}

// DeleteCapturesByProject implements CaptureStore.
func (s *Gorm) DeleteCapturesByProject(ctx context.Context, projectID uuid.UUID) error {
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&captureRow{}).Error
	if err != nil {
		return fmt.Errorf("cannot delete captures for project %s: %w", projectID, err)
	}
	return nil
}

// ProjectTraffic implements CaptureStore.
func (s *Gorm) ProjectTraffic(ctx context.Context, projectID uuid.UUID) ([]*TrafficPoint, error) {
	return s.traffic(ctx, "project_id = ?", projectID)
}

// EndpointTraffic implements CaptureStore.
func (s *Gorm) EndpointTraffic(ctx context.Context, endpointID uuid.UUID) ([]*TrafficPoint, error) {
	return s.traffic(ctx, "endpoint_id = ?", endpointID)
}

func (s *Gorm) traffic(ctx context.Context, where string, id uuid.UUID) ([]*TrafficPoint, error) {
	var raw []*TrafficPoint
	err := s.db.WithContext(ctx).Model(&captureRow{}).
		Select("date_trunc('day', created_at) AS timestamp, COUNT(*) AS count").
		Where(where, id).
		Where("created_at >= ?", dayStart(time.Now().UTC().AddDate(0, 0, -(TrafficWindowDays-1)))).
		Group("timestamp").
		Find(&raw).Error
	if err != nil {
		return nil, fmt.Errorf("cannot load traffic series: %w", err)
	}
	return normalizeTraffic(raw, time.Now()), nil
}

func (r *projectRow) toDomain() *project.Project {
	return &project.Project{
		ID:          r.ID,
		UserID:      r.UserID,
		Subdomain:   r.Subdomain,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *endpointRow) toDomain() *project.Endpoint {
	return &project.Endpoint{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		Subdomain:       r.Subdomain,
		UserID:          r.UserID,
		RequestMethod:   r.RequestMethod,
		RequestPath:     r.RequestPath,
		ResponseCode:    r.ResponseCode,
		ResponseBody:    r.ResponseBody,
		ResponseHeaders: r.ResponseHeaders,
		ResponseDelayMs: r.ResponseDelayMs,
		Description:     r.Description,
		RequestCount:    r.RequestCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (r *captureRow) toDomain() *capture.Capture {
	return &capture.Capture{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		EndpointID:      r.EndpointID,
		UserID:          r.UserID,
		RequestMethod:   r.RequestMethod,
		RequestURL:      r.RequestURL,
		RequestHeaders:  r.RequestHeaders,
		RequestBody:     r.RequestBody,
		ResponseCode:    r.ResponseCode,
		ResponseBody:    r.ResponseBody,
		ResponseHeaders: r.ResponseHeaders,
		ResponseDelayMs: r.ResponseDelayMs,
		IPAddress:       r.IPAddress,
		CreatedAt:       r.CreatedAt,
	}
}

func captureRowFrom(c *capture.Capture) *captureRow {
	return &captureRow{
		ID:              c.ID,
		ProjectID:       c.ProjectID,
		EndpointID:      c.EndpointID,
		UserID:          c.UserID,
		RequestMethod:   c.RequestMethod,
		RequestURL:      c.RequestURL,
		RequestHeaders:  c.RequestHeaders,
		RequestBody:     c.RequestBody,
		ResponseCode:    c.ResponseCode,
		ResponseBody:    c.ResponseBody,
		ResponseHeaders: c.ResponseHeaders,
		ResponseDelayMs: c.ResponseDelayMs,
		IPAddress:       c.IPAddress,
		CreatedAt:       c.CreatedAt,
	}
}
