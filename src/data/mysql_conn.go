package data

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stake-plus/hermes/src/types"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectTimeout = 5 * time.Second
	socketTimeout  = 45 * time.Second
)

// Dial opens a gorm DB for driver ("mysql" or "sqlite"), pings it within
// ctx and migrates the report schema.
func Dial(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(dsn))
	case "mysql", "":
		dialector = mysql.Open(mysqlDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	gormLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
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
	if driver == "sqlite" {
		// one writer keeps sqlite from reporting "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&types.Report{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func mysqlDSN(dsn string) string {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}
	// matched rather than changed rows, so idempotent cluster writes still report a hit
	dsn = ensureParam(dsn, "clientFoundRows", "true")
	dsn = ensureParam(dsn, "timeout", connectTimeout.String())
	dsn = ensureParam(dsn, "readTimeout", socketTimeout.String())
	dsn = ensureParam(dsn, "writeTimeout", socketTimeout.String())
	return dsn
}

func sqliteDSN(dsn string) string {
	return ensureParam(dsn, "_busy_timeout", fmt.Sprint(connectTimeout.Milliseconds()))
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}
