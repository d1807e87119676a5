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

// Package config provides configuration management for the stctl launcher.
// config 包提供 stctl 启动器的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables (STCTL_*) / 环境变量（STCTL_*）
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig indicates the configuration is not internally consistent
// ErrInvalidConfig 表示配置内部不一致
var ErrInvalidConfig = errors.New("invalid configuration")

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath      = "/etc/stctl/config.yaml"
	EnvPrefix              = "STCTL"
	DefaultServerHome      = "/opt/seatunnel"
	DefaultRuntimeDir      = "/var/run/stctl"
	DefaultHTTPPort        = 8080
	DefaultStartTimeout    = 300 * time.Second
	DefaultStopTimeout     = 60 * time.Second
	DefaultDrainAttempts   = 10
	DefaultPollInterval    = time.Second
	DefaultPollMaxInterval = 60 * time.Second
	DefaultStopPause       = time.Second
	DefaultKillConfirm     = 5 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultLogMaxSize      = 100 // MB
	DefaultLogMaxBackups   = 3
	DefaultLogMaxAge       = 7 // days
	DefaultServiceName     = "stctl"
)

// Server adapter names
// 服务器适配器名称
const (
	AdapterSeaTunnel = "seatunnel"
	AdapterCommand   = "command"
)

// Config represents the launcher configuration
// Config 表示启动器配置
type Config struct {
	// Server describes the supervised server / 被监管的服务器
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Runtime holds the persistent launcher state location / 启动器持久状态位置
	Runtime RuntimeConfig `mapstructure:"runtime" yaml:"runtime"`

	// Launcher holds timeouts and retry bounds / 超时和重试上限
	Launcher LauncherConfig `mapstructure:"launcher" yaml:"launcher"`

	// Marketplace configures the local package broker / 本地包代理配置
	Marketplace MarketplaceConfig `mapstructure:"marketplace" yaml:"marketplace"`

	// History configures the command-set history store / 命令集历史存储配置
	History HistoryConfig `mapstructure:"history" yaml:"history"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Telemetry configuration / 遥测配置
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// ServerConfig contains settings of the supervised server
// ServerConfig 包含被监管服务器的设置
type ServerConfig struct {
	// Home is the server installation directory
	// Home 是服务器安装目录
	Home string `mapstructure:"home" yaml:"home"`

	// Adapter selects how the server is started and stopped: seatunnel or command
	// Adapter 选择服务器的启停方式：seatunnel 或 command
	Adapter string `mapstructure:"adapter" yaml:"adapter"`

	// HTTPPort is the port of the server REST API, also checked before start
	// HTTPPort 是服务器 REST API 端口，启动前也会检查
	HTTPPort int `mapstructure:"http_port" yaml:"http_port"`

	// HealthURL overrides the status base URL (default http://127.0.0.1:<http_port>)
	// HealthURL 覆盖状态检查基础 URL
	HealthURL string `mapstructure:"health_url" yaml:"health_url"`

	// Java is the java executable; JAVA_HOME is used when empty
	// Java 是 java 可执行文件；为空时使用 JAVA_HOME
	Java string `mapstructure:"java" yaml:"java"`

	// JVMOptions are extra JVM options
	// JVMOptions 是额外的 JVM 选项
	JVMOptions []string `mapstructure:"jvm_options" yaml:"jvm_options"`

	// StartCommand is the argv used by the command adapter
	// StartCommand 是 command 适配器使用的启动参数
	StartCommand []string `mapstructure:"start_command" yaml:"start_command"`

	// StopCommand is the graceful stop argv used by the command adapter
	// StopCommand 是 command 适配器使用的优雅停止参数
	StopCommand []string `mapstructure:"stop_command" yaml:"stop_command"`

	// Signature identifies the running server in the process table
	// Signature 用于在进程表中识别运行中的服务器
	Signature string `mapstructure:"signature" yaml:"signature"`
}

// RuntimeConfig contains the runtime directory settings
// RuntimeConfig 包含运行时目录设置
type RuntimeConfig struct {
	// Dir holds the PID file, the pending-install marker and the package cache
	// Dir 存放 PID 文件、待安装标记和包缓存
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LauncherConfig contains start/stop timing settings
// LauncherConfig 包含启动/停止时间设置
type LauncherConfig struct {
	StartTimeout    time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
	StopTimeout     time.Duration `mapstructure:"stop_timeout" yaml:"stop_timeout"`
	DrainAttempts   int           `mapstructure:"drain_attempts" yaml:"drain_attempts"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollMaxInterval time.Duration `mapstructure:"poll_max_interval" yaml:"poll_max_interval"`
	StopPause       time.Duration `mapstructure:"stop_pause" yaml:"stop_pause"`
	KillConfirm     time.Duration `mapstructure:"kill_confirm" yaml:"kill_confirm"`
	Strict          bool          `mapstructure:"strict" yaml:"strict"`
}

// MarketplaceConfig contains package broker settings
// MarketplaceConfig 包含包代理设置
type MarketplaceConfig struct {
	// CacheDir is the local package cache (default <runtime.dir>/packages)
	// CacheDir 是本地包缓存目录
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// DownloadTimeout bounds one package download
	// DownloadTimeout 限制单个包下载的时间
	DownloadTimeout time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
}

// HistoryConfig contains the command-set history database settings
// HistoryConfig 包含命令集历史数据库设置
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Type       string `mapstructure:"type" yaml:"type"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
	Database   string `mapstructure:"database" yaml:"database"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level" yaml:"level"`

	// Format is console or json
	// Format 是 console 或 json
	Format string `mapstructure:"format" yaml:"format"`

	// FilePath enables the rotated file sink when set
	// FilePath 设置后启用轮转文件输出
	FilePath string `mapstructure:"file_path" yaml:"file_path"`

	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings
// TelemetryConfig 包含 OpenTelemetry 设置
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithPriority(configPath, nil)
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := newViper()

	// Set config file path / 设置配置文件路径
	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "_CONFIG_PATH")
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)

	// Read config file / 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env apply
		// 文件不存在时使用默认值和环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Apply command line arguments (highest priority)
	// 应用命令行参数（最高优先级）
	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	return unmarshal(v)
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server defaults / 服务器默认值
	v.SetDefault("server.home", DefaultServerHome)
	v.SetDefault("server.adapter", AdapterSeaTunnel)
	v.SetDefault("server.http_port", DefaultHTTPPort)
	v.SetDefault("server.health_url", "")
	v.SetDefault("server.java", "")
	v.SetDefault("server.jvm_options", []string{})
	v.SetDefault("server.start_command", []string{})
	v.SetDefault("server.stop_command", []string{})
	v.SetDefault("server.signature", "")

	v.SetDefault("runtime.dir", DefaultRuntimeDir)

	// Launcher defaults / 启动器默认值
	v.SetDefault("launcher.start_timeout", DefaultStartTimeout)
	v.SetDefault("launcher.stop_timeout", DefaultStopTimeout)
	v.SetDefault("launcher.drain_attempts", DefaultDrainAttempts)
	v.SetDefault("launcher.poll_interval", DefaultPollInterval)
	v.SetDefault("launcher.poll_max_interval", DefaultPollMaxInterval)
	v.SetDefault("launcher.stop_pause", DefaultStopPause)
	v.SetDefault("launcher.kill_confirm", DefaultKillConfirm)
	v.SetDefault("launcher.strict", true)

	v.SetDefault("marketplace.cache_dir", "")
	v.SetDefault("marketplace.download_timeout", DefaultDownloadTimeout)

	// History defaults / 历史记录默认值
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.type", "sqlite")
	v.SetDefault("history.sqlite_path", "")
	v.SetDefault("history.log_level", "silent")

	// Log defaults / 日志默认值
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)
	v.SetDefault("log.compress", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", DefaultServiceName)
}

// Validate checks that the configuration is internally consistent
// Validate 检查配置内部是否一致
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Home) == "" {
		return fmt.Errorf("%w: server.home is required", ErrInvalidConfig)
	}

	switch c.Server.Adapter {
	case AdapterSeaTunnel:
	case AdapterCommand:
		if len(c.Server.StartCommand) == 0 {
			return fmt.Errorf("%w: server.start_command is required by the command adapter", ErrInvalidConfig)
		}
		if c.Server.Signature == "" {
			return fmt.Errorf("%w: server.signature is required by the command adapter", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown server.adapter %q (must be seatunnel or command)", ErrInvalidConfig, c.Server.Adapter)
	}

	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("%w: server.http_port %d out of range", ErrInvalidConfig, c.Server.HTTPPort)
	}

	if strings.TrimSpace(c.Runtime.Dir) == "" {
		return fmt.Errorf("%w: runtime.dir is required", ErrInvalidConfig)
	}

	// Validate timings / 验证时间设置
	if c.Launcher.StartTimeout <= 0 {
		return fmt.Errorf("%w: launcher.start_timeout must be positive", ErrInvalidConfig)
	}
	if c.Launcher.StopTimeout <= 0 {
		return fmt.Errorf("%w: launcher.stop_timeout must be positive", ErrInvalidConfig)
	}
	if c.Launcher.DrainAttempts < 1 {
		return fmt.Errorf("%w: launcher.drain_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Launcher.PollInterval <= 0 || c.Launcher.PollMaxInterval < c.Launcher.PollInterval {
		return fmt.Errorf("%w: launcher.poll_interval must be positive and not exceed poll_max_interval", ErrInvalidConfig)
	}
	if c.Launcher.StopPause < 0 || c.Launcher.KillConfirm < 0 {
		return fmt.Errorf("%w: launcher.stop_pause and kill_confirm must not be negative", ErrInvalidConfig)
	}

	// Validate log level / 验证日志级别
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug, info, warn, or error)", ErrInvalidConfig, c.Log.Level)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("%w: invalid log format: %s (must be console or json)", ErrInvalidConfig, c.Log.Format)
	}

	if c.History.Enabled {
		switch c.History.Type {
		case "sqlite", "mysql", "postgres":
		default:
			return fmt.Errorf("%w: unsupported history.type %q", ErrInvalidConfig, c.History.Type)
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: telemetry.endpoint is required when telemetry is enabled", ErrInvalidConfig)
	}

	return nil
}

// PidFilePath returns the PID file location
// PidFilePath 返回 PID 文件位置
func (c *Config) PidFilePath() string {
	return filepath.Join(c.Runtime.Dir, "stctl.pid")
}

// PendingMarkerPath returns the pending-install marker location
// PendingMarkerPath 返回待安装标记文件位置
func (c *Config) PendingMarkerPath() string {
	return filepath.Join(c.Runtime.Dir, "installAfterRestart.json")
}

// PackageCacheDir returns the local package cache directory
// PackageCacheDir 返回本地包缓存目录
func (c *Config) PackageCacheDir() string {
	if c.Marketplace.CacheDir != "" {
		return c.Marketplace.CacheDir
	}
	return filepath.Join(c.Runtime.Dir, "packages")
}

// ConnectorsDir returns the directory packages are installed into
// ConnectorsDir 返回包安装目录
func (c *Config) ConnectorsDir() string {
	return filepath.Join(c.Server.Home, "connectors")
}

// LogDir returns the server console log directory
// LogDir 返回服务器控制台日志目录
func (c *Config) LogDir() string {
	return filepath.Join(c.Server.Home, "logs")
}

// HistorySQLitePath returns the sqlite history file
// HistorySQLitePath 返回 sqlite 历史文件
func (c *Config) HistorySQLitePath() string {
	if c.History.SQLitePath != "" {
		return c.History.SQLitePath
	}
	return filepath.Join(c.Runtime.Dir, "history.db")
}

// StatusBaseURL returns the base URL of the server status endpoints
// StatusBaseURL 返回服务器状态端点的基础 URL
func (c *Config) StatusBaseURL() string {
	if c.Server.HealthURL != "" {
		return strings.TrimRight(c.Server.HealthURL, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Server.HTTPPort)
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server.Home: %s, Server.Adapter: %s, Runtime.Dir: %s, StartTimeout: %v, StopTimeout: %v, Log.Level: %s}",
		c.Server.Home,
		c.Server.Adapter,
		c.Runtime.Dir,
		c.Launcher.StartTimeout,
		c.Launcher.StopTimeout,
		c.Log.Level,
	)
}
