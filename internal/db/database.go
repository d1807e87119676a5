/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db opens the gorm database behind the command-set history.
// db 包打开命令集历史记录使用的 gorm 数据库。
package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/seatunnel/launcher/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// DatabaseType 数据库类型常量
const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypeMySQL    = "mysql"
	DatabaseTypePostgres = "postgres"
)

// Pool settings for the networked databases. stctl is a short-lived CLI,
// so a handful of connections is plenty.
// 网络数据库的连接池设置。stctl 是短生命周期的命令行工具，少量连接即可。
const (
	maxIdleConns    = 2
	maxOpenConns    = 4
	connMaxLifetime = 5 * time.Minute
)

// ErrDisabled is returned by Open when history is switched off
// ErrDisabled 在历史记录被禁用时由 Open 返回
var ErrDisabled = errors.New("db: history database is disabled")

// Open connects to the database described by cfg. sqlitePath is used when
// the type is sqlite; the directory is created if needed.
// Open 根据 cfg 连接数据库。类型为 sqlite 时使用 sqlitePath，必要时创建目录。
func Open(cfg config.HistoryConfig, sqlitePath string, log *zap.Logger) (*gorm.DB, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	dbType := cfg.Type
	if dbType == "" {
		dbType = DatabaseTypeSQLite
	}

	var (
		dialector gorm.Dialector
		err       error
	)
	switch dbType {
	case DatabaseTypeSQLite:
		dialector, err = sqliteDialector(sqlitePath)
	case DatabaseTypeMySQL:
		dialector = mysql.Open(mysqlDSN(cfg))
	case DatabaseTypePostgres:
		dialector = postgres.Open(postgresDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database type %q, supported: sqlite, mysql, postgres", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init %s driver: %w", dbType, err)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger(cfg.LogLevel, log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dbType, err)
	}

	// 注入 OpenTelemetry 追踪
	if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Warn("Failed to install database tracing plugin", zap.Error(err))
	}

	if dbType != DatabaseTypeSQLite {
		if err := configurePool(gdb); err != nil {
			Close(gdb)
			return nil, err
		}
	}

	log.Debug("History database opened", zap.String("type", dbType))
	return gdb, nil
}

// Close releases the underlying connections; a nil db is ignored
// Close 释放底层连接；nil 会被忽略
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying connection: %w", err)
	}
	return sqlDB.Close()
}

func sqliteDialector(path string) (gorm.Dialector, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}
	return sqlite.Open(path), nil
}

func mysqlDSN(cfg config.HistoryConfig) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
}

func postgresDSN(cfg config.HistoryConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)
}

func configurePool(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return nil
}

// gormLogger routes gorm's records through zap so that nothing reaches stdout
// gormLogger 通过 zap 输出 gorm 日志，避免写入 stdout
func gormLogger(level string, log *zap.Logger) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	default:
		logLevel = logger.Silent
	}

	return logger.New(zap.NewStdLog(log), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})
}
