package config

import (
	"fmt"
	"os"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvConfigPrefix is the prefix of every environment variable read by Load.
const EnvConfigPrefix = "CMDB"

// Store backends.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config holds the runtime settings of the CMDB server.
type Config struct {
	ListenAddr string `default:":8080" split_words:"true"`
	LogLevel   string `default:"info" split_words:"true"`
	Store      string `default:"memory"`

	// MySQL connection. MySQLDSN wins over the individual fields when set.
	MySQLDSN  string `envconfig:"MYSQL_DSN"`
	MySQLHost string `envconfig:"MYSQL_HOST" default:"127.0.0.1"`
	MySQLPort string `envconfig:"MYSQL_PORT" default:"3306"`
	MySQLUser string `envconfig:"MYSQL_USER" default:"root"`
	MySQLPass string `envconfig:"MYSQL_PASS"`
	MySQLDB   string `envconfig:"MYSQL_DB" default:"bgp_cmdb"`

	// Journal database file; empty keeps the journal in memory.
	JournalPath string `split_words:"true"`

	MetricsEnabled bool `default:"true" split_words:"true"`

	// HTTPS is enabled when both are set.
	TLSCert string `envconfig:"TLS_CERT"`
	TLSKey  string `envconfig:"TLS_KEY"`
}

// Load reads an optional .env file from the working directory, then the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := envconfig.Process(EnvConfigPrefix, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreMySQL:
	default:
		return fmt.Errorf("%s_STORE: unknown store %q (want %s or %s)", EnvConfigPrefix, c.Store, StoreMemory, StoreMySQL)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("%s_TLS_CERT and %s_TLS_KEY must be set together", EnvConfigPrefix, EnvConfigPrefix)
	}
	return nil
}

// TLSEnabled reports whether the API is served over HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// DSN returns the MySQL data source name.
func (c *Config) DSN() string {
	if c.MySQLDSN != "" {
		return c.MySQLDSN
	}
	mc := mysqldrv.NewConfig()
	mc.User = c.MySQLUser
	mc.Passwd = c.MySQLPass
	mc.Net = "tcp"
	mc.Addr = c.MySQLHost + ":" + c.MySQLPort
	mc.DBName = c.MySQLDB
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
