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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/db"
	"github.com/seatunnel/launcher/internal/db/migrator"
	"github.com/seatunnel/launcher/internal/history"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/logger"
	"github.com/seatunnel/launcher/internal/marketplace"
	"github.com/seatunnel/launcher/internal/otel_trace"
	"github.com/seatunnel/launcher/internal/process"
	"github.com/seatunnel/launcher/internal/serverconf"
	"github.com/seatunnel/launcher/internal/status"
	"github.com/seatunnel/launcher/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cliFlags holds every flag value; commands register the ones they use
// cliFlags 保存所有标志值；各命令只注册自己使用的标志
type cliFlags struct {
	configFile string
	quiet      bool
	debug      bool

	startTimeout  time.Duration
	stopTimeout   time.Duration
	lenient       bool
	strict        bool
	ignoreMissing bool

	noDeps bool
	xml    bool
	json   bool
	limit  int
}

// app owns the long-lived collaborators of one stctl invocation
// app 持有一次 stctl 调用中的长生命周期组件
type app struct {
	flags  cliFlags
	stdout io.Writer
	stderr io.Writer

	cfg *config.Config
	log *zap.Logger

	// Built on first use / 首次使用时构建
	historyDB   *gorm.DB
	history     *history.Repository
	broker      *marketplace.FSBroker
	coordinator *marketplace.Coordinator
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, log: zap.NewNop()}
}

// setup loads the configuration and builds the logger and tracer
// setup 加载配置并构建日志记录器和追踪器
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.flags.lenient && a.flags.strict {
		return fmt.Errorf("%w: --lenient and --strict are mutually exclusive", launcher.ErrInvalidArgument)
	}
	cfg, err := config.LoadWithPriority(a.flags.configFile, a.overrides(cmd))
	if err != nil {
		return fmt.Errorf("%w: %v", launcher.ErrNotConfigured, err)
	}
	a.cfg = cfg

	verbosity := logger.VerbosityNormal
	switch {
	case a.flags.debug:
		verbosity = logger.VerbosityDebug
	case a.flags.quiet:
		verbosity = logger.VerbosityQuiet
	}
	log, err := logger.New(cfg.Log, verbosity)
	if err != nil {
		return fmt.Errorf("%w: %v", launcher.ErrNotConfigured, err)
	}
	a.log = log.With(zap.String("command", cmd.Name()))

	otel_trace.Init(cmd.Context(), cfg.Telemetry, a.log)
	a.log.Debug("Configuration loaded", zap.String("config", a.flags.configFile), zap.String("runtime_dir", cfg.Runtime.Dir))
	return nil
}

// overrides maps the flags that were set to configuration keys
// overrides 将已设置的标志映射到配置键
func (a *app) overrides(cmd *cobra.Command) map[string]interface{} {
	out := map[string]interface{}{}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("start-timeout") {
		out["launcher.start_timeout"] = a.flags.startTimeout
	}
	if changed("stop-timeout") {
		out["launcher.stop_timeout"] = a.flags.stopTimeout
	}
	if changed("lenient") && a.flags.lenient {
		out["launcher.strict"] = false
	}
	if changed("strict") && a.flags.strict {
		out["launcher.strict"] = true
	}
	return out
}

// close releases what was opened, in reverse order
// close 按相反顺序释放已打开的资源
func (a *app) close() {
	if err := db.Close(a.historyDB); err != nil {
		a.log.Warn("Failed to close history database", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	otel_trace.Shutdown(ctx)
	_ = a.log.Sync()
}

// historyRepo opens the history store. A disabled store returns (nil, nil).
// historyRepo 打开历史存储；禁用时返回 (nil, nil)。
func (a *app) historyRepo(ctx context.Context) (*history.Repository, error) {
	if a.history != nil {
		return a.history, nil
	}
	gdb, err := db.Open(a.cfg.History, a.cfg.HistorySQLitePath(), a.log)
	if errors.Is(err, db.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := migrator.Migrate(ctx, gdb, a.log); err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	a.historyDB = gdb
	a.history = history.NewRepository(gdb)
	return a.history, nil
}

// packageCoordinator builds the broker and coordinator. History is best
// effort: a store that cannot be opened is logged and skipped.
// packageCoordinator 构建代理和协调器。历史记录尽力而为：无法打开时记录日志并跳过。
func (a *app) packageCoordinator(ctx context.Context) (*marketplace.Coordinator, error) {
	if a.coordinator != nil {
		return a.coordinator, nil
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	marker := store.NewPendingMarker(a.cfg.PendingMarkerPath())
	a.broker = marketplace.NewFSBroker(a.cfg.PackageCacheDir(), a.cfg.ConnectorsDir(), marker,
		marketplace.FSBrokerOptions{DownloadTimeout: a.cfg.Marketplace.DownloadTimeout}, a.log)

	var recorder marketplace.Recorder
	repo, err := a.historyRepo(ctx)
	switch {
	case err != nil:
		a.log.Warn("Package history unavailable", zap.Error(err))
	case repo != nil:
		recorder = repo
	}

	a.coordinator = marketplace.NewCoordinator(a.broker, marker, recorder, a.log)
	return a.coordinator, nil
}

// newLauncher wires the launcher for the configured adapter
// newLauncher 为配置的适配器组装启动器
func (a *app) newLauncher(ctx context.Context) (*launcher.Launcher, error) {
	adapter, err := launcher.NewAdapter(a.cfg)
	if err != nil {
		return nil, err
	}

	genOpts := serverconf.Options{}
	if adapter.Name() == config.AdapterSeaTunnel {
		genOpts = serverconf.SeaTunnelOptions(a.cfg.Server.HTTPPort)
	}
	generator := serverconf.New(a.cfg.Server.Home, genOpts)
	if err := generator.Reload(); err != nil {
		return nil, err
	}

	coordinator, err := a.packageCoordinator(ctx)
	if err != nil {
		return nil, err
	}

	opts := launcher.OptionsFromConfig(a.cfg.Launcher)
	opts.Quiet = a.flags.quiet
	opts.Debug = a.flags.debug
	opts.IgnoreMissing = a.flags.ignoreMissing

	return launcher.New(launcher.Deps{
		Config:      a.cfg,
		Adapter:     adapter,
		Generator:   generator,
		Coordinator: coordinator,
		Supervisor:  process.NewSupervisor(),
		Status:      status.NewClient(a.cfg.StatusBaseURL(), status.Options{}, a.log),
		PidFile:     store.NewPidFile(a.cfg.PidFilePath()),
		Logger:      a.log,
		Progress:    a.stderr,
		Stdout:      a.stdout,
		Stderr:      a.stderr,
	}, opts), nil
}

// outputFormat resolves --xml and --json
// outputFormat 解析 --xml 和 --json
func (a *app) outputFormat() (string, error) {
	switch {
	case a.flags.xml && a.flags.json:
		return "", fmt.Errorf("%w: %v", launcher.ErrInvalidArgument, errBothFormats)
	case a.flags.xml:
		return marketplace.FormatXML, nil
	case a.flags.json:
		return marketplace.FormatJSON, nil
	default:
		return marketplace.FormatText, nil
	}
}
