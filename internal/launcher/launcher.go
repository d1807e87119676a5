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

// Package launcher starts, stops and watches the supervised server.
// launcher 包负责启动、停止和监控被监管的服务器。
//
// A start drains pending package installs first, refuses to run a second
// instance, checks the HTTP port, spawns the server and, in wait mode,
// follows it until it is ready, has failed or has run out of time.
// 启动时先处理待安装的包，拒绝运行第二个实例，检查 HTTP 端口，然后启动服务器；
// 在等待模式下持续跟踪直到就绪、失败或超时。
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/logger"
	"github.com/seatunnel/launcher/internal/marketplace"
	"github.com/seatunnel/launcher/internal/otel_trace"
	"github.com/seatunnel/launcher/internal/process"
	"github.com/seatunnel/launcher/internal/readiness"
	"github.com/seatunnel/launcher/internal/serverconf"
	"github.com/seatunnel/launcher/internal/shutdown"
	"github.com/seatunnel/launcher/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// statusTailLines is how much console output Status shows for an unreachable server
const statusTailLines = 20

// StartMode selects whether Start follows the server until it is ready
// StartMode 选择 Start 是否跟踪服务器直到就绪
type StartMode int

const (
	// Background returns as soon as the process is spawned
	// Background 在进程启动后立即返回
	Background StartMode = iota
	// Wait polls readiness before returning
	// Wait 在返回前轮询就绪状态
	Wait
)

// Generator is the server configuration generator
// Generator 是服务器配置生成器
type Generator interface {
	VerifyInstallation() error
	Property(key string) (string, bool)
	Reload() error
}

// PendingResumer replays an interrupted package transaction
// PendingResumer 重放中断的包事务
type PendingResumer interface {
	Pending() bool
	Resume(ctx context.Context, opts marketplace.Options) (*marketplace.Outcome, error)
}

// Deps are the collaborators of a Launcher
// Deps 是 Launcher 的协作者
type Deps struct {
	Config      *config.Config
	Adapter     ServerAdapter
	Generator   Generator
	Coordinator PendingResumer
	Supervisor  process.Supervisor
	Status      readiness.StatusClient
	PidFile     *store.PidFile
	Logger      *zap.Logger

	// Progress receives poll and stop markers / Progress 接收轮询和停止进度标记
	Progress io.Writer
	// Stdout and Stderr are attached to the server in console mode
	// Stdout 和 Stderr 在控制台模式下连接到服务器
	Stdout io.Writer
	Stderr io.Writer
}

// Options carries the per-invocation settings
// Options 携带每次调用的设置
type Options struct {
	Quiet         bool
	Debug         bool
	Strict        bool
	IgnoreMissing bool

	StartTimeout    time.Duration
	StopTimeout     time.Duration
	DrainAttempts   int
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	StopPause       time.Duration
	KillConfirm     time.Duration
}

// OptionsFromConfig copies the launcher section of the configuration
// OptionsFromConfig 复制配置中的 launcher 部分
func OptionsFromConfig(cfg config.LauncherConfig) Options {
	return Options{
		Strict:          cfg.Strict,
		StartTimeout:    cfg.StartTimeout,
		StopTimeout:     cfg.StopTimeout,
		DrainAttempts:   cfg.DrainAttempts,
		PollInterval:    cfg.PollInterval,
		PollMaxInterval: cfg.PollMaxInterval,
		StopPause:       cfg.StopPause,
		KillConfirm:     cfg.KillConfirm,
	}
}

// StartResult describes a started server
// StartResult 描述已启动的服务器
type StartResult struct {
	PID     int
	Command string
	LogFile string
	// Readiness is nil in background mode / 后台模式下为 nil
	Readiness *readiness.Result
}

// StatusReport is the answer of Status
// StatusReport 是 Status 的结果
type StatusReport struct {
	Running   bool     `json:"running"`
	PID       int      `json:"pid,omitempty"`
	Reachable bool     `json:"reachable"`
	Started   bool     `json:"started"`
	Healthy   bool     `json:"healthy"`
	Summary   string   `json:"summary,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// Launcher orchestrates the server lifecycle
// Launcher 编排服务器生命周期
type Launcher struct {
	deps Deps
	opts Options
	log  *zap.Logger

	// replaced in tests / 测试中替换
	portFree func(port int) bool
	notify   signalNotifier
}

// New creates a Launcher
// New 创建 Launcher
func New(deps Deps, opts Options) *Launcher {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = config.DefaultStartTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = config.DefaultStopTimeout
	}
	if opts.DrainAttempts <= 0 {
		opts.DrainAttempts = config.DefaultDrainAttempts
	}
	if deps.Progress == nil {
		deps.Progress = os.Stderr
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Launcher{
		deps:     deps,
		opts:     opts,
		log:      deps.Logger,
		portFree: portAvailable,
		notify:   osSignals{},
	}
}

// Start brings the server up
// Start 启动服务器
func (l *Launcher) Start(ctx context.Context, mode StartMode) (*StartResult, error) {
	ctx, span := otel_trace.Start(ctx, "launcher.start")
	defer span.End()
	span.SetAttributes(
		attribute.String("launcher.adapter", l.deps.Adapter.Name()),
		attribute.Bool("launcher.wait", mode == Wait),
	)

	result, err := l.start(ctx, mode)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (l *Launcher) start(ctx context.Context, mode StartMode) (*StartResult, error) {
	if err := l.prepare(ctx); err != nil {
		return nil, err
	}

	cmd, err := l.deps.Adapter.StartCommand(l.deps.Config)
	if err != nil {
		return nil, err
	}
	l.trace(cmd)

	handle, err := l.deps.Supervisor.Spawn(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	log := logger.Ctx(ctx, l.log)
	log.Info("Server process spawned",
		zap.Int("pid", handle.PID),
		zap.String("adapter", l.deps.Adapter.Name()),
		zap.String("log_file", cmd.LogFile))
	l.writePid(handle.PID)

	result := &StartResult{PID: handle.PID, Command: cmd.String(), LogFile: cmd.LogFile}
	if mode == Background {
		return result, nil
	}

	poller := readiness.NewPoller(l.deps.Status, readiness.Options{
		Interval:    l.opts.PollInterval,
		MaxInterval: l.opts.PollMaxInterval,
		Progress:    l.deps.Progress,
		Quiet:       l.opts.Quiet,
	}, l.log)
	res, err := poller.Wait(ctx, handle, l.opts.StartTimeout)
	result.Readiness = res
	if err != nil {
		return result, err
	}

	switch res.State {
	case readiness.Failed:
		l.removePid()
		return result, fmt.Errorf("%w: process exited during startup:\n%s", ErrStartFailed, res.Summary)
	case readiness.TimedOut:
		return result, fmt.Errorf("%w: not ready after %s, process %d is still running", ErrStartTimeout, l.opts.StartTimeout, handle.PID)
	}

	if !res.Healthy {
		if l.opts.Strict {
			log.Error("Server started with failed components, stopping it",
				zap.Strings("failed", res.FailedComponents))
			if _, stopErr := l.Stop(ctx); stopErr != nil {
				log.Error("Failed to stop partially started server", zap.Error(stopErr))
			}
			return result, fmt.Errorf("%w: failed components: %s", ErrStartFailed, strings.Join(res.FailedComponents, ", "))
		}
		log.Warn("Server started with failed components",
			zap.Strings("failed", res.FailedComponents), zap.String("summary", res.Summary))
	}

	log.Info("Server is ready", zap.Int("pid", handle.PID), zap.Duration("elapsed", res.Elapsed))
	return result, nil
}

// prepare runs the checks shared by start and console
// prepare 执行 start 和 console 共用的检查
func (l *Launcher) prepare(ctx context.Context) error {
	if err := l.deps.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	if err := l.deps.Generator.VerifyInstallation(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	if err := l.drain(ctx); err != nil {
		return err
	}

	pid, running, err := l.findRunning(ctx)
	if err != nil {
		return fmt.Errorf("failed to look for a running server: %w", err)
	}
	if running {
		return fmt.Errorf("%w: PID %d", ErrAlreadyRunning, pid)
	}

	port := l.serverPort()
	if port > 0 && !l.portFree(port) {
		if l.opts.Strict {
			return fmt.Errorf("%w: %w: %d", ErrNotConfigured, ErrPortInUse, port)
		}
		return fmt.Errorf("%w: %d", ErrPortInUse, port)
	}
	return nil
}

// drain applies pending package installs, at most DrainAttempts times
// drain 处理待安装的包，最多尝试 DrainAttempts 次
func (l *Launcher) drain(ctx context.Context) error {
	for attempt := 0; l.deps.Coordinator.Pending(); attempt++ {
		if attempt >= l.opts.DrainAttempts {
			return fmt.Errorf("%w: pending package installs still outstanding after %d attempts", ErrNotConfigured, attempt)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		log := logger.Ctx(ctx, l.log)
		log.Info("Applying pending package installs", zap.Int("attempt", attempt+1))
		if _, err := l.deps.Coordinator.Resume(ctx, marketplace.Options{IgnoreMissing: l.opts.IgnoreMissing}); err != nil {
			log.Warn("Pending package installs failed", zap.Int("attempt", attempt+1), zap.Error(err))
		}
		if err := l.deps.Generator.Reload(); err != nil {
			return fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
	}
	return nil
}

// Stop brings the server down and removes the PID file once it is gone
// Stop 停止服务器，进程结束后删除 PID 文件
func (l *Launcher) Stop(ctx context.Context) (*shutdown.Result, error) {
	res, err := l.controller().Stop(ctx, l.opts.StopTimeout)
	if err != nil {
		return res, err
	}
	log := logger.Ctx(ctx, l.log)
	switch res.State {
	case shutdown.NotRunning:
		log.Info("Server is not running")
	default:
		log.Info("Server stopped", zap.Int("pid", res.PID), zap.Stringer("state", res.State), zap.Duration("elapsed", res.Elapsed))
	}
	l.removePid()
	return res, nil
}

// Restart stops then starts the server; a failed stop aborts the restart
// Restart 先停止再启动服务器；停止失败时中止重启
func (l *Launcher) Restart(ctx context.Context, mode StartMode) (*StartResult, error) {
	if _, err := l.Stop(ctx); err != nil {
		return nil, fmt.Errorf("restart aborted: %w", err)
	}
	return l.Start(ctx, mode)
}

// Status reports whether the server runs and what its REST API says
// Status 报告服务器是否运行以及其 REST API 的状态
func (l *Launcher) Status(ctx context.Context) (*StatusReport, error) {
	pid, running, err := l.findRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look for a running server: %w", err)
	}
	if !running {
		return &StatusReport{}, ErrNotRunning
	}

	report := &StatusReport{Running: true, PID: pid}
	if !l.deps.Status.Reachable(ctx) {
		report.Summary = "health endpoint unreachable"
		if tail := l.consoleTail(pid); tail != "" {
			report.Summary += ", last console output:\n" + tail
		}
		return report, nil
	}
	report.Reachable = true

	st, err := l.deps.Status.Started(ctx)
	if err != nil {
		report.Summary = err.Error()
		return report, nil
	}
	report.Started = st.Started
	report.Healthy = st.Healthy
	report.Summary = st.Summary
	report.Failed = st.Failed
	return report, nil
}

// findRunning checks the PID file first, then the process table
// findRunning 先检查 PID 文件，再检查进程表
func (l *Launcher) findRunning(ctx context.Context) (int, bool, error) {
	pid, ok, err := l.deps.PidFile.Read()
	switch {
	case errors.Is(err, store.ErrCorruptPidFile):
		l.log.Warn("Removing corrupt PID file", zap.String("path", l.deps.PidFile.Path()), zap.Error(err))
		l.removePid()
	case err != nil:
		return 0, false, err
	case ok && l.deps.Supervisor.IsAlive(pid):
		return pid, true, nil
	case ok:
		l.log.Debug("Removing stale PID file", zap.Int("pid", pid))
		l.removePid()
	}
	return l.deps.Supervisor.FindPID(ctx, l.deps.Adapter.Signature())
}

// controller builds the shutdown controller for the configured adapter
// controller 为配置的适配器构建停止控制器
func (l *Launcher) controller() *shutdown.Controller {
	var helper shutdown.StopHelper
	cmd, err := l.deps.Adapter.StopCommand(l.deps.Config)
	switch {
	case err != nil:
		l.log.Warn("Stop command unavailable, signalling the process instead", zap.Error(err))
		helper = process.NewSignalHelper(l.deps.Supervisor, l.findRunning)
	case cmd == nil:
		helper = process.NewSignalHelper(l.deps.Supervisor, l.findRunning)
	default:
		helper = process.NewCommandHelper(cmd, l.log)
	}

	return shutdown.NewController(l.deps.Supervisor, shutdown.FinderFunc(l.findRunning), helper, shutdown.Options{
		Pause:       l.opts.StopPause,
		KillConfirm: l.opts.KillConfirm,
		Progress:    l.deps.Progress,
		Quiet:       l.opts.Quiet,
	}, l.log)
}

// serverPort reads seatunnel.engine.http.port, falling back to server.http_port
// serverPort 读取 seatunnel.engine.http.port，缺省时使用 server.http_port
func (l *Launcher) serverPort() int {
	if v, ok := l.deps.Generator.Property(serverconf.PropertyHTTPPort); ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && port > 0 {
			return port
		}
		l.log.Warn("Ignoring invalid server port property", zap.String("value", v))
	}
	return l.deps.Config.Server.HTTPPort
}

// consoleTail returns the end of the console log of a running server, or ""
// consoleTail 返回运行中服务器控制台日志的末尾，无法读取时返回空串
func (l *Launcher) consoleTail(pid int) string {
	cmd, err := l.deps.Adapter.StartCommand(l.deps.Config)
	if err != nil || cmd.LogFile == "" {
		return ""
	}
	out, err := process.Adopt(l.deps.Supervisor, pid, cmd.LogFile).Output(statusTailLines)
	if err != nil {
		l.log.Debug("Console log unavailable", zap.String("path", cmd.LogFile), zap.Error(err))
		return ""
	}
	return strings.TrimRight(out, "\n")
}

func (l *Launcher) writePid(pid int) {
	if err := l.deps.PidFile.Write(pid); err != nil {
		l.log.Warn("Failed to write PID file", zap.String("path", l.deps.PidFile.Path()), zap.Error(err))
	}
}

func (l *Launcher) removePid() {
	if err := l.deps.PidFile.Remove(); err != nil {
		l.log.Warn("Failed to remove PID file", zap.String("path", l.deps.PidFile.Path()), zap.Error(err))
	}
}

// trace echoes the command line in debug mode
// trace 在调试模式下回显命令行
func (l *Launcher) trace(cmd *process.Command) {
	if l.opts.Debug {
		fmt.Fprintf(l.deps.Stderr, "+ %s\n", cmd)
	}
}

// portAvailable tries to listen on the port
// portAvailable 尝试监听端口
func portAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
