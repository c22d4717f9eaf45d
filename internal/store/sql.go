package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/skynow/internal/alerts"
	"github.com/i474232898/skynow/internal/weather"
)

// Supported SQL drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// recordRow is the persisted shape of a weather.Record.
type recordRow struct {
	ID          uint   `gorm:"primaryKey"`
	City        string `gorm:"size:128;not null"`
	CityKey     string `gorm:"size:128;not null;index:idx_weather_city_time,priority:1"`
	Temperature float64
	Humidity    float64
	Pressure    float64
	Description string `gorm:"size:255"`
	WindSpeed   float64
	PM25        *float64
	ObservedAt  time.Time `gorm:"not null;index:idx_weather_city_time,priority:2"`
	CreatedAt   time.Time
}

func (recordRow) TableName() string {
	return "weather_data"
}

type alertRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	City        string `gorm:"size:128;not null"`
	CityKey     string `gorm:"size:128;not null;index"`
	Type        string `gorm:"size:32;not null"`
	Message     string `gorm:"size:512"`
	Temperature float64
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (alertRow) TableName() string {
	return "alerts"
}

// SQLStore is an append-only record store backed by gorm.
type SQLStore struct {
	db *gorm.DB
}

// Open connects to the database for driver and migrates the schema.
func Open(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm connection and migrates the schema.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&recordRow{}, &alertRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Save inserts rec as a new row.
func (s *SQLStore) Save(ctx context.Context, rec weather.Record) error {
	row := recordRow{
		City:        rec.City,
		CityKey:     weather.CityKey(rec.City),
		Temperature: rec.Temperature,
		Humidity:    rec.Humidity,
		Pressure:    rec.Pressure,
		Description: rec.Description,
		WindSpeed:   rec.WindSpeed,
		PM25:        rec.PM25,
		ObservedAt:  rec.Timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save weather record: %w", err)
	}
	return nil
}

// FindLatest returns the newest record for city.
func (s *SQLStore) FindLatest(ctx context.Context, city string) (weather.Record, bool, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Where("city_key = ?", weather.CityKey(city)).
		Order("observed_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return weather.Record{}, false, fmt.Errorf("find latest weather record: %w", err)
	}
	if len(rows) == 0 {
		return weather.Record{}, false, nil
	}
	return rows[0].toRecord(), true, nil
}

// FindInRange returns records with from <= observed_at < to, oldest first.
func (s *SQLStore) FindInRange(ctx context.Context, city string, from, to time.Time) ([]weather.Record, error) {
	var rows []recordRow
	err := s.db.WithContext(ctx).
		Where("city_key = ? AND observed_at >= ? AND observed_at < ?", weather.CityKey(city), from.UTC(), to.UTC()).
		Order("observed_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find weather records in range: %w", err)
	}

	records := make([]weather.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

// SaveAlert inserts a.
func (s *SQLStore) SaveAlert(ctx context.Context, a alerts.Alert) error {
	row := alertRow{
		ID:          a.ID,
		City:        a.City,
		CityKey:     weather.CityKey(a.City),
		Type:        a.Type,
		Message:     a.Message,
		Temperature: a.Temperature,
		CreatedAt:   a.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

// Alerts lists alerts for city, newest first. An empty city lists all.
func (s *SQLStore) Alerts(ctx context.Context, city string) ([]alerts.Alert, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if key := weather.CityKey(city); key != "" {
		q = q.Where("city_key = ?", key)
	}

	var rows []alertRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	result := make([]alerts.Alert, 0, len(rows))
	for _, row := range rows {
		result = append(result, alerts.Alert{
			ID:          row.ID,
			City:        row.City,
			Type:        row.Type,
			Message:     row.Message,
			Temperature: row.Temperature,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return result, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r recordRow) toRecord() weather.Record {
	return weather.Record{
		City:        r.City,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Pressure:    r.Pressure,
		Description: r.Description,
		WindSpeed:   r.WindSpeed,
		PM25:        r.PM25,
		Timestamp:   r.ObservedAt.UTC(),
	}
}
