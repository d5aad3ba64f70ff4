package db

import (
	"fmt"
	"time"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

// Options contains the configuration for the database connection
type Options struct {
	URI    string
	Logger *zap.Logger

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func (o *Options) validate() error {
	if len(o.URI) == 0 {
		return fmt.Errorf("empty URI is invalid")
	}
	if o.Logger == nil {
		return fmt.Errorf("nil Logger is invalid")
	}
	if o.MaxIdleConns == 0 {
		o.MaxIdleConns = 1
	}
	if o.MaxOpenConns == 0 {
		o.MaxOpenConns = 20
	}
	if o.ConnMaxLifetime == 0 {
		o.ConnMaxLifetime = time.Hour
	}
	return nil
}

// NewLogger returns a gorm logger backed by zap that does not report ErrRecordNotFound
func NewLogger(logger *zap.Logger) gormlogger.Interface {
	l := zapgorm2.New(logger)
	l.LogLevel = gormlogger.Warn
	l.SlowThreshold = time.Second
	l.IgnoreRecordNotFoundError = true
	l.SetAsDefault()
	return l
}

// New returns an instance for interacting with the PostgreSQL database
func New(option Options) (*gorm.DB, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(option.URI), &gorm.Config{
		Logger: NewLogger(option.Logger),
	})
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to database")
	}
	pool, err := db.DB()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get the connection pool")
	}
	pool.SetMaxIdleConns(option.MaxIdleConns)
	pool.SetMaxOpenConns(option.MaxOpenConns)
	pool.SetConnMaxLifetime(option.ConnMaxLifetime)
	return db, nil
}
