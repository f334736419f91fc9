package db

import (
	"database/sql"
	"fmt"
	stdlog "log"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type DatabaseConnection struct {
	db      *gorm.DB
	sqlDb   *sql.DB
	dialect string
	now     func() time.Time
}

var (
	connection     *DatabaseConnection
	connectionOnce sync.Once
)

// Connection returns the process wide database connection, opening it on first use
func Connection() *DatabaseConnection {
	connectionOnce.Do(func() {
		connection = InitDb()
	})
	return connection
}

// DialectorFromConfig builds the gorm dialector selected by db.type
func DialectorFromConfig() (gorm.Dialector, error) {
	dbType := viper.GetString("db.type")
	if dbType == "" {
		dbType = "sqlite"
	}
	switch dbType {
	case "sqlite":
		path := viper.GetString("db.sqlite.path")
		if path == "" {
			path = "consentscan.db"
		}
		return sqlite.Open(path), nil
	case "postgres":
		dsn := viper.GetString("db.postgres.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("db.postgres.dsn is not set")
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown database type %q", dbType)
	}
}

func InitDb() *DatabaseConnection {
	dialector, err := DialectorFromConfig()
	if err != nil {
		log.Error().Err(err).Msg("Invalid database configuration")
		os.Exit(1)
	}
	conn, err := NewDatabaseConnection(dialector)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		os.Exit(1)
	}
	return conn
}

// NewDatabaseConnection opens the database, runs migrations and applies pool settings
func NewDatabaseConnection(dialector gorm.Dialector) (*DatabaseConnection, error) {
	newLogger := logger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&ScanJob{}, &ScanReport{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying database connection: %w", err)
	}

	dialect := db.Dialector.Name()
	if dialect == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(viper.GetInt("db.max_idle_conns"))
		sqlDB.SetMaxOpenConns(viper.GetInt("db.max_open_conns"))
		sqlDB.SetConnMaxLifetime(viper.GetDuration("db.conn_max_lifetime"))
	}

	return &DatabaseConnection{
		db:      db,
		sqlDb:   sqlDB,
		dialect: dialect,
		now:     defaultClock,
	}, nil
}

func defaultClock() time.Time {
	return time.Now()
}

// SetClock overrides the time source used for job timestamps
func (d *DatabaseConnection) SetClock(now func() time.Time) {
	d.now = now
}

// Now returns the current time in UTC truncated to microseconds, the precision
// both postgres and sqlite keep, so ordering by stored timestamps is stable.
func (d *DatabaseConnection) Now() time.Time {
	return d.now().UTC().Truncate(time.Microsecond)
}

// IsPostgres reports whether the connection uses the postgres dialect
func (d *DatabaseConnection) IsPostgres() bool {
	return d.dialect == "postgres"
}

// Ping checks the database is reachable
func (d *DatabaseConnection) Ping() error {
	return d.sqlDb.Ping()
}

func (d *DatabaseConnection) Close() error {
	return d.sqlDb.Close()
}
