package cliutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	if strings.HasPrefix(dburl, "sqlite://") {
		sqliteSuffix := dburl[len("sqlite://"):]
		// if this isn't ":memory:", ensure that directory exists (eg, if db
		// file is being initialized)
		if !strings.Contains(sqliteSuffix, ":?") {
			os.MkdirAll(filepath.Dir(sqliteSuffix), os.ModePerm)
		}
		dial = sqlite.Open(sqliteSuffix)
		openConns = 1
		isSqlite = true
	} else if strings.HasPrefix(dburl, "sqlite=") {
		sqliteSuffix := dburl[len("sqlite="):]
		if !strings.Contains(sqliteSuffix, ":?") {
			os.MkdirAll(filepath.Dir(sqliteSuffix), os.ModePerm)
		}
		dial = sqlite.Open(sqliteSuffix)
		openConns = 1
		isSqlite = true
	} else if strings.HasPrefix(dburl, "postgresql://") || strings.HasPrefix(dburl, "postgres://") {
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	} else if strings.HasPrefix(dburl, "postgres=") {
		dsn := dburl[len("postgres="):]
		dial = postgres.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported or unrecognized DATABASE_URL scheme")
	}

	gormLogger := slogGorm.New()

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxIdleConns(80)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		// Set pragmas for sqlite
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}

// SetupSlog configures the process-wide default logger. Level and format
// fall back to WARDEN_LOG_LEVEL and WARDEN_LOG_FMT when empty.
func SetupSlog(logLevel, logFormat string) (*slog.Logger, error) {
	var hopts slog.HandlerOptions
	hopts.Level = slog.LevelInfo
	hopts.AddSource = true

	if logLevel == "" {
		logLevel = os.Getenv("WARDEN_LOG_LEVEL")
	}
	switch strings.ToLower(logLevel) {
	case "", "info":
		hopts.Level = slog.LevelInfo
	case "debug":
		hopts.Level = slog.LevelDebug
	case "warn":
		hopts.Level = slog.LevelWarn
	case "error":
		hopts.Level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %#v", logLevel)
	}

	if logFormat == "" {
		logFormat = os.Getenv("WARDEN_LOG_FMT")
	}
	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stdout, &hopts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &hopts)
	default:
		return nil, fmt.Errorf("invalid log format: %#v", logFormat)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
