package db

import (
	"fmt"
	"time"

	"github.com/NasaVasa/pricewatch/internal/config"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type gormZapWriter struct {
	logger *zap.Logger
}

func (w gormZapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBPath)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	pool := PoolConfig{
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
	if cfg.DBDriver == "sqlite" {
		pool.MaxOpenConns = 1
	}
	return OpenDialector(dialector, pool, log)
}

// OpenSQLite opens a SQLite database at path with a single connection, which
// also makes ":memory:" databases usable.
func OpenSQLite(path string, log *zap.Logger) (*gorm.DB, error) {
	return OpenDialector(sqlite.Open(path), PoolConfig{MaxIdleConns: 1, MaxOpenConns: 1}, log)
}

func OpenDialector(dialector gorm.Dialector, pool PoolConfig, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		gormZapWriter{logger: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&alertModel{}, &conversationModel{}); err != nil {
		return nil, err
	}

	return db, nil
}
