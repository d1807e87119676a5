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

// Package logger builds the zap loggers used by stctl.
// logger 包构建 stctl 使用的 zap 日志记录器。
//
// Console records go to stderr so that stdout stays clean for
// machine-readable package output. An optional rotated file sink is
// provided by lumberjack.
// 控制台日志输出到 stderr，使 stdout 保持干净以便输出机器可读的包信息。
// 可选的轮转文件输出由 lumberjack 提供。
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Verbosity selects the console log level independently of the file sink
// Verbosity 独立于文件输出选择控制台日志级别
type Verbosity int

const (
	// VerbosityNormal uses log.level / VerbosityNormal 使用 log.level
	VerbosityNormal Verbosity = iota
	// VerbosityQuiet only shows warnings and errors / VerbosityQuiet 只显示警告和错误
	VerbosityQuiet
	// VerbosityDebug shows everything / VerbosityDebug 显示所有日志
	VerbosityDebug
)

// New creates a logger writing to stderr and, when configured, to a rotated file
// New 创建写入 stderr 的日志记录器，配置后同时写入轮转文件
func New(cfg config.LogConfig, verbosity Verbosity) (*zap.Logger, error) {
	return NewWithWriter(cfg, verbosity, os.Stderr)
}

// NewWithWriter is New with an explicit console writer
// NewWithWriter 与 New 相同，但显式指定控制台输出
func NewWithWriter(cfg config.LogConfig, verbosity Verbosity, console io.Writer) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	consoleLevel := level
	switch verbosity {
	case VerbosityQuiet:
		consoleLevel = zapcore.WarnLevel
	case VerbosityDebug:
		consoleLevel = zapcore.DebugLevel
		level = zapcore.DebugLevel
	}

	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderCfg), zapcore.AddSync(console), consoleLevel),
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(fileEncoder(cfg.Format), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Ctx returns a logger that attaches the trace id of the span in ctx to each
// record at or above the level of l, and mirrors the record onto the span
// Ctx 返回一个日志记录器：对不低于 l 级别的记录附加 ctx 中 span 的 trace id，并将记录同步为 span 事件
func Ctx(ctx context.Context, l *zap.Logger) otelzap.LoggerWithCtx {
	return otelzap.New(l,
		otelzap.WithTraceIDField(true),
		otelzap.WithMinLevel(l.Level()),
	).Ctx(ctx)
}

func fileEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

func parseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
