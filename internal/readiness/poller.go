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

// Package readiness waits for a freshly spawned server to finish starting.
// readiness 包等待新启动的服务器完成启动。
//
// The poller distinguishes three outcomes:
// 轮询器区分三种结果：
// - Ready: the application reported itself started / 应用报告已启动
// - Failed: the OS process exited first / 操作系统进程先退出
// - TimedOut: the deadline passed with the process still alive / 截止时间已过但进程仍存活
package readiness

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/seatunnel/launcher/internal/logger"
	"github.com/seatunnel/launcher/internal/otel_trace"
	"github.com/seatunnel/launcher/internal/process"
	"github.com/seatunnel/launcher/internal/status"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Default poll timing
// 默认轮询时间
const (
	DefaultInterval    = time.Second
	DefaultMaxInterval = 60 * time.Second
	DefaultMaxWait     = 300 * time.Second

	// growEvery is the number of polls between interval increases
	// growEvery 是间隔增长之间的轮询次数
	growEvery = 10

	// NoLogsSummary is reported when the console log cannot be read
	// NoLogsSummary 在无法读取控制台日志时报告
	NoLogsSummary = "check server logs"
)

// State is the readiness state of a spawned server
// State 是已启动服务器的就绪状态
type State int

const (
	NotStarted State = iota
	ProcessSpawned
	HealthEndpointUnreachable
	Starting
	Ready
	Failed
	TimedOut
)

var stateNames = map[State]string{
	NotStarted:                "NOT_STARTED",
	ProcessSpawned:            "PROCESS_SPAWNED",
	HealthEndpointUnreachable: "HEALTH_ENDPOINT_UNREACHABLE",
	Starting:                  "STARTING",
	Ready:                     "READY",
	Failed:                    "FAILED",
	TimedOut:                  "TIMED_OUT",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// Terminal reports whether the poller stops in this state
// Terminal 报告轮询器是否在此状态停止
func (s State) Terminal() bool {
	return s == Ready || s == Failed || s == TimedOut
}

// StatusClient is the view of the server REST API the poller needs
// StatusClient 是轮询器所需的服务器 REST API 视图
type StatusClient interface {
	Reachable(ctx context.Context) bool
	Started(ctx context.Context) (status.Report, error)
}

// ProcessProbe observes the spawned OS process
// ProcessProbe 观察已启动的操作系统进程
type ProcessProbe interface {
	Alive() bool
	Output(lines int) (string, error)
}

// Options configures a Poller
// Options 配置 Poller
type Options struct {
	Interval    time.Duration
	MaxInterval time.Duration
	// Progress receives one dot per poll unless Quiet is set
	// Progress 每次轮询接收一个点，除非设置了 Quiet
	Progress io.Writer
	Quiet    bool
}

// Result is the outcome of Wait
// Result 是 Wait 的结果
type Result struct {
	State            State
	Elapsed          time.Duration
	Summary          string
	Healthy          bool
	FailedComponents []string
	Transitions      []State
}

// Poller waits for readiness
// Poller 等待就绪
type Poller struct {
	client StatusClient
	opts   Options
	logger *zap.Logger
}

// NewPoller creates a Poller
// NewPoller 创建 Poller
func NewPoller(client StatusClient, opts Options, logger *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxInterval < opts.Interval {
		opts.MaxInterval = DefaultMaxInterval
		if opts.MaxInterval < opts.Interval {
			opts.MaxInterval = opts.Interval
		}
	}
	return &Poller{client: client, opts: opts, logger: logger}
}

// Wait blocks until proc is ready, has died, or maxWait has elapsed.
// A cancelled ctx returns the last observed state together with ctx.Err().
// Wait 阻塞直到 proc 就绪、退出或超过 maxWait。ctx 取消时返回最后观察到的状态及 ctx.Err()。
func (p *Poller) Wait(ctx context.Context, proc ProcessProbe, maxWait time.Duration) (*Result, error) {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	ctx, span := otel_trace.Start(ctx, "readiness.wait")
	defer span.End()

	start := time.Now()
	deadline := start.Add(maxWait)
	result := &Result{State: NotStarted}
	p.transition(ctx, result, ProcessSpawned)

	interval := p.opts.Interval
	defer p.endProgress()

	for iteration := 1; ; iteration++ {
		if !proc.Alive() {
			p.transition(ctx, result, Failed)
			result.Summary = failureSummary(proc)
			break
		}

		if p.probe(ctx, result, deadline) {
			break
		}

		if !time.Now().Before(deadline) {
			p.transition(ctx, result, TimedOut)
			result.Summary = fmt.Sprintf("server did not become ready within %s", maxWait)
			break
		}

		p.progress()

		sleep := interval
		if remaining := time.Until(deadline); remaining < sleep {
			sleep = remaining
		}
		if err := sleepContext(ctx, sleep); err != nil {
			result.Elapsed = time.Since(start)
			span.SetAttributes(attribute.String("readiness.state", result.State.String()))
			return result, err
		}

		interval = p.nextInterval(interval, iteration)
	}

	result.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.String("readiness.state", result.State.String()),
		attribute.Int64("readiness.elapsed_ms", result.Elapsed.Milliseconds()),
	)
	return result, nil
}

// probe runs one health and status check, returning true once Ready
// probe 执行一次健康和状态检查，就绪时返回 true
func (p *Poller) probe(ctx context.Context, result *Result, deadline time.Time) bool {
	budget := time.Until(deadline)
	if budget < p.opts.Interval {
		budget = p.opts.Interval
	}
	probeCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if !p.client.Reachable(probeCtx) {
		p.transition(ctx, result, HealthEndpointUnreachable)
		return false
	}
	p.transition(ctx, result, Starting)

	report, err := p.client.Started(probeCtx)
	if err != nil {
		p.logger.Debug("Status poll failed", zap.Error(err))
		return false
	}
	if report.Summary != "" {
		result.Summary = report.Summary
	}
	if !report.Started {
		return false
	}

	result.Healthy = report.Healthy && len(report.Failed) == 0
	result.FailedComponents = report.Failed
	p.transition(ctx, result, Ready)
	return true
}

// nextInterval grows the sleep by one base interval every growEvery polls
// nextInterval 每 growEvery 次轮询将睡眠时间增加一个基础间隔
func (p *Poller) nextInterval(interval time.Duration, iteration int) time.Duration {
	if iteration%growEvery != 0 {
		return interval
	}
	interval += p.opts.Interval
	if interval > p.opts.MaxInterval {
		interval = p.opts.MaxInterval
	}
	return interval
}

// transition records a state change; the log record carries the trace of ctx
// transition 记录状态变化；日志记录携带 ctx 的追踪信息
func (p *Poller) transition(ctx context.Context, result *Result, next State) {
	if result.State == next {
		return
	}
	logger.Ctx(ctx, p.logger).Debug("Readiness state changed",
		zap.Stringer("from", result.State),
		zap.Stringer("to", next))
	result.State = next
	result.Transitions = append(result.Transitions, next)
}

func (p *Poller) progress() {
	if p.opts.Quiet || p.opts.Progress == nil {
		return
	}
	fmt.Fprint(p.opts.Progress, ".")
}

func (p *Poller) endProgress() {
	if p.opts.Quiet || p.opts.Progress == nil {
		return
	}
	fmt.Fprintln(p.opts.Progress)
}

// failureSummary returns the tail of the console log of a dead process
// failureSummary 返回已退出进程控制台日志的尾部
func failureSummary(proc ProcessProbe) string {
	out, err := proc.Output(process.DefaultTailLines)
	if err != nil || strings.TrimSpace(out) == "" {
		return NoLogsSummary
	}
	return out
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
