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

// Package shutdown stops the supervised server, escalating from a graceful
// stop helper to a forced kill once the deadline passes.
// shutdown 包停止被监管的服务器：先使用优雅停止辅助程序，截止时间过后升级为强制终止。
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/seatunnel/launcher/internal/otel_trace"
	"github.com/seatunnel/launcher/internal/process"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Default stop timing
// 默认停止时间
const (
	DefaultPause       = time.Second
	DefaultKillConfirm = 5 * time.Second
	DefaultMaxWait     = 60 * time.Second

	killPollInterval = 100 * time.Millisecond
)

// ErrKillFailed indicates the process survived the forced kill
// ErrKillFailed 表示进程在强制终止后仍然存活
var ErrKillFailed = errors.New("process is still alive after kill")

// State is the shutdown state of the server
// State 是服务器的停止状态
type State int

const (
	Running State = iota
	StopRequested
	StoppedGracefully
	Killed
	StopTimedOutNoProcess
	NotRunning
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case StopRequested:
		return "STOP_REQUESTED"
	case StoppedGracefully:
		return "STOPPED_GRACEFULLY"
	case Killed:
		return "KILLED"
	case StopTimedOutNoProcess:
		return "STOP_TIMED_OUT_NO_PROCESS"
	case NotRunning:
		return "NOT_RUNNING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// StopHelper runs one graceful stop attempt
// StopHelper 执行一次优雅停止尝试
type StopHelper interface {
	Stop(ctx context.Context) error
}

// ProcessFinder locates the running server
// ProcessFinder 定位运行中的服务器
type ProcessFinder interface {
	FindPID(ctx context.Context) (pid int, found bool, err error)
}

// FinderFunc adapts a function to ProcessFinder
// FinderFunc 将函数适配为 ProcessFinder
type FinderFunc func(ctx context.Context) (int, bool, error)

// FindPID calls f
func (f FinderFunc) FindPID(ctx context.Context) (int, bool, error) {
	return f(ctx)
}

// Options configures a Controller
// Options 配置 Controller
type Options struct {
	Pause       time.Duration
	KillConfirm time.Duration
	Progress    io.Writer
	Quiet       bool
}

// Result is the outcome of Stop
// Result 是 Stop 的结果
type Result struct {
	State    State
	PID      int
	Attempts int
	Elapsed  time.Duration
}

// Controller stops the server
// Controller 停止服务器
type Controller struct {
	sup    process.Supervisor
	finder ProcessFinder
	helper StopHelper
	opts   Options
	logger *zap.Logger
}

// NewController creates a Controller
// NewController 创建 Controller
func NewController(sup process.Supervisor, finder ProcessFinder, helper StopHelper, opts Options, logger *zap.Logger) *Controller {
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	if opts.KillConfirm <= 0 {
		opts.KillConfirm = DefaultKillConfirm
	}
	return &Controller{sup: sup, finder: finder, helper: helper, opts: opts, logger: logger}
}

// Stop brings the server down within maxWait, then kills it.
// Stopping a server that is not running is a no-op that never kills.
// Stop 在 maxWait 内停止服务器，超时后强制终止。停止未运行的服务器是空操作，不会触发终止。
func (c *Controller) Stop(ctx context.Context, maxWait time.Duration) (*Result, error) {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	ctx, span := otel_trace.Start(ctx, "launcher.stop")
	defer span.End()

	start := time.Now()
	pid, found, err := c.finder.FindPID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to locate server process: %w", err)
	}
	if !found || !c.sup.IsAlive(pid) {
		c.logger.Info("Server is not running")
		return &Result{State: NotRunning}, nil
	}

	result := &Result{State: StopRequested, PID: pid}
	span.SetAttributes(attribute.Int("process.pid", pid))
	c.logger.Info("Stopping server", zap.Int("pid", pid), zap.Duration("timeout", maxWait))

	deadline := start.Add(maxWait)
	defer c.endProgress()

	for c.sup.IsAlive(pid) && time.Now().Before(deadline) {
		result.Attempts++
		helperCtx, cancel := context.WithDeadline(ctx, deadline)
		if err := c.helper.Stop(helperCtx); err != nil {
			c.logger.Warn("Stop helper failed", zap.Int("attempt", result.Attempts), zap.Error(err))
		}
		cancel()

		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}

		c.progress()
		pause := c.opts.Pause
		if remaining := time.Until(deadline); remaining < pause {
			pause = remaining
		}
		if err := sleepContext(ctx, pause); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
	}

	if !c.sup.IsAlive(pid) {
		result.Elapsed = time.Since(start)
		if time.Now().Before(deadline) {
			result.State = StoppedGracefully
		} else {
			// The deadline passed but there is nothing left to kill
			// 截止时间已过，但已没有需要终止的进程
			result.State = StopTimedOutNoProcess
		}
		c.logger.Info("Server stopped", zap.Int("pid", pid), zap.Stringer("state", result.State))
		span.SetAttributes(attribute.String("shutdown.state", result.State.String()))
		return result, nil
	}

	return c.kill(ctx, result, start)
}

// kill sends exactly one forced kill and confirms the process is gone
// kill 只发送一次强制终止并确认进程已退出
func (c *Controller) kill(ctx context.Context, result *Result, start time.Time) (*Result, error) {
	pid := result.PID
	c.logger.Warn("Server did not stop in time, killing it", zap.Int("pid", pid))

	if err := c.sup.Kill(pid); err != nil {
		if errors.Is(err, process.ErrProcessNotFound) {
			result.State = StopTimedOutNoProcess
			result.Elapsed = time.Since(start)
			return result, nil
		}
		c.logger.Error("Kill failed", zap.Int("pid", pid), zap.Error(err))
	}

	confirmDeadline := time.Now().Add(c.opts.KillConfirm)
	for {
		if !c.sup.IsAlive(pid) {
			result.State = Killed
			result.Elapsed = time.Since(start)
			c.logger.Info("Server killed", zap.Int("pid", pid))
			return result, nil
		}
		if !time.Now().Before(confirmDeadline) {
			break
		}
		if err := sleepContext(ctx, killPollInterval); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
	}

	result.Elapsed = time.Since(start)
	return result, fmt.Errorf("%w: PID %d", ErrKillFailed, pid)
}

func (c *Controller) progress() {
	if c.opts.Quiet || c.opts.Progress == nil {
		return
	}
	fmt.Fprint(c.opts.Progress, ".")
}

func (c *Controller) endProgress() {
	if c.opts.Quiet || c.opts.Progress == nil {
		return
	}
	fmt.Fprintln(c.opts.Progress)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
