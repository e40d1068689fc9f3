package orm

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Type        string `mapstructure:"type" validate:"oneof=mysql postgres sqlite"`
	DSN         string `mapstructure:"dsn" validate:"required"` // 连接字符串
	MaxIdle     int    `mapstructure:"max_idle"`                // 最大空闲连接
	MaxOpen     int    `mapstructure:"max_open"`                // 最大打开连接
	MaxLifetime int    `mapstructure:"max_lifetime"`            // 连接存活秒数
	LogSQL      bool   `mapstructure:"log_sql"`                 // 开发环境打印 SQL
}

func dialector(c *Config) (gorm.Dialector, error) {
	switch c.Type {
	case "", "mysql":
		return mysql.Open(c.DSN), nil
	case "postgres":
		return postgres.Open(c.DSN), nil
	case "sqlite":
		return sqlite.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported db type %q", c.Type)
	}
}

// New 按 Type 初始化 GORM，并设置连接池
func New(c *Config) (*gorm.DB, error) {
	d, err := dialector(c)
	if err != nil {
		return nil, err
	}
	mode := logger.Warn
	if c.LogSQL {
		mode = logger.Info
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(mode)})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdle)
	}
	if c.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpen)
	}
	// sqlite 内存库连接一断数据就没了
	if c.Type == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	}
	if c.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(c.MaxLifetime) * time.Second)
	}
	return db, nil
}

// MustNew 启动阶段用，连不上直接 panic
func MustNew(c *Config) *gorm.DB {
	db, err := New(c)
	if err != nil {
		panic("failed to connect database: " + err.Error())
	}
	return db
}
