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

package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/seatunnel/launcher/internal/logger"
	"github.com/seatunnel/launcher/internal/otel_trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ErrTransactionFailed indicates at least one command of a transaction failed.
// The command set of the Outcome describes which.
// ErrTransactionFailed 表示事务中至少一条命令失败，具体见 Outcome 的命令集。
var ErrTransactionFailed = errors.New("package transaction failed")

// Outcome is the merged result of one coordinator operation
// Outcome 是一次协调器操作的合并结果
type Outcome struct {
	Success    bool
	CommandSet *CommandSet
}

// Coordinator orders package operations and guarantees that an interrupted
// transaction is resumed before anything new is attempted
// Coordinator 负责包操作的排序，并保证在尝试新操作之前先恢复中断的事务
type Coordinator struct {
	broker  Broker
	marker  PendingChecker
	history Recorder
	logger  *zap.Logger
}

// NewCoordinator creates a Coordinator; history may be nil
// NewCoordinator 创建 Coordinator；history 可以为 nil
func NewCoordinator(broker Broker, marker PendingChecker, history Recorder, logger *zap.Logger) *Coordinator {
	return &Coordinator{broker: broker, marker: marker, history: history, logger: logger}
}

// Pending reports whether an interrupted transaction is waiting
// Pending 报告是否有中断的事务在等待
func (c *Coordinator) Pending() bool {
	return c.marker.Exists()
}

// Apply validates req, resumes any pending transaction, then applies req
// Apply 校验 req，恢复待处理的事务，然后应用 req
func (c *Coordinator) Apply(ctx context.Context, req *Request, opts Options) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel_trace.Start(ctx, "marketplace.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("marketplace.request", req.String()),
		attribute.Bool("marketplace.nodeps", opts.NoDeps),
	)

	if outcome, err := c.resumeFirst(ctx, opts); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}

	var sets []*CommandSet
	succeeded := true
	if opts.NoDeps {
		for _, step := range req.sets() {
			if len(step.names) == 0 {
				continue
			}
			ok, cs := c.direct(ctx, step.op, step.names, opts)
			succeeded = succeeded && ok
			sets = append(sets, cs)
		}
	} else if !req.Empty() {
		ok, cs := c.broker.Request(ctx, req, opts)
		succeeded = ok
		sets = append(sets, cs)
	}

	outcome := c.finish(ctx, "request", succeeded, sets...)
	if !outcome.Success {
		span.SetStatus(codes.Error, "transaction failed")
		return outcome, ErrTransactionFailed
	}
	return outcome, nil
}

// Resume replays a pending transaction, if any
// Resume 重放待处理的事务（如果有）
func (c *Coordinator) Resume(ctx context.Context, opts Options) (*Outcome, error) {
	if !c.marker.Exists() {
		return &Outcome{Success: true, CommandSet: Merge(OpResume)}, nil
	}

	c.logger.Info("Resuming interrupted package transaction", zap.String("marker", c.marker.Path()))
	ok, cs := c.broker.ExecutePending(ctx, opts)
	outcome := c.finish(ctx, OpResume, ok, cs)
	if !outcome.Success {
		return outcome, c.pendingError()
	}
	return outcome, nil
}

// Set makes the installed packages equal to wanted
// Set 使已安装的包等于 wanted
func (c *Coordinator) Set(ctx context.Context, wanted []string, opts Options) (*Outcome, error) {
	if outcome, err := c.resumeFirst(ctx, opts); err != nil {
		return outcome, err
	}
	installed, err := c.broker.ListInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}
	return c.Apply(ctx, SetRequest(wanted, installed), opts)
}

// Reset uninstalls every installed package
// Reset 卸载所有已安装的包
func (c *Coordinator) Reset(ctx context.Context, opts Options) (*Outcome, error) {
	return c.whole(ctx, "reset", opts, c.broker.Reset)
}

// Purge resets and then empties the package cache
// Purge 重置后清空包缓存
func (c *Coordinator) Purge(ctx context.Context, opts Options) (*Outcome, error) {
	return c.whole(ctx, "purge", opts, c.broker.Purge)
}

// Add caches packages / Add 缓存包
func (c *Coordinator) Add(ctx context.Context, names []string, opts Options) (*Outcome, error) {
	return c.Apply(ctx, NewRequest(names, nil, nil, nil), opts)
}

// Install activates cached packages / Install 激活已缓存的包
func (c *Coordinator) Install(ctx context.Context, names []string, opts Options) (*Outcome, error) {
	return c.Apply(ctx, NewRequest(nil, names, nil, nil), opts)
}

// Uninstall deactivates packages / Uninstall 停用包
func (c *Coordinator) Uninstall(ctx context.Context, names []string, opts Options) (*Outcome, error) {
	return c.Apply(ctx, NewRequest(nil, nil, names, nil), opts)
}

// Remove drops packages from the cache / Remove 从缓存中删除包
func (c *Coordinator) Remove(ctx context.Context, names []string, opts Options) (*Outcome, error) {
	return c.Apply(ctx, NewRequest(nil, nil, nil, names), opts)
}

func (c *Coordinator) whole(ctx context.Context, action string, opts Options, op func(context.Context, Options) (bool, *CommandSet)) (*Outcome, error) {
	if outcome, err := c.resumeFirst(ctx, opts); err != nil {
		return outcome, err
	}
	ok, cs := op(ctx, opts)
	outcome := c.finish(ctx, action, ok, cs)
	if !outcome.Success {
		return outcome, ErrTransactionFailed
	}
	return outcome, nil
}

// resumeFirst runs a pending transaction before anything new
// resumeFirst 在任何新操作之前执行待处理的事务
func (c *Coordinator) resumeFirst(ctx context.Context, opts Options) (*Outcome, error) {
	if !c.marker.Exists() {
		return nil, nil
	}
	outcome, err := c.Resume(ctx, opts)
	if err != nil {
		return outcome, err
	}
	return nil, nil
}

func (c *Coordinator) direct(ctx context.Context, op string, names []string, opts Options) (bool, *CommandSet) {
	switch op {
	case OpUninstall:
		return c.broker.Uninstall(ctx, names, opts)
	case OpRemove:
		return c.broker.Remove(ctx, names, opts)
	case OpAdd:
		return c.broker.Add(ctx, names, opts)
	default:
		return c.broker.Install(ctx, names, opts)
	}
}

// finish merges, logs and records the command sets. The outcome fails when
// the broker reported failure, even if no single command did.
// finish 合并、记录日志并保存命令集。代理报告失败时，即使没有单条命令失败，结果也为失败。
func (c *Coordinator) finish(ctx context.Context, action string, brokerOK bool, sets ...*CommandSet) *Outcome {
	merged := Merge(action, sets...)
	outcome := &Outcome{Success: brokerOK && merged.Success(), CommandSet: merged}

	log := logger.Ctx(ctx, c.logger)
	if outcome.Success {
		log.Info("Package transaction finished",
			zap.String("action", action), zap.Int("commands", len(merged.Commands)))
	} else {
		log.Warn("Package transaction failed",
			zap.String("action", action), zap.Bool("broker_ok", brokerOK), zap.Int("failed", len(merged.Failed())))
	}

	if c.history != nil && len(merged.Commands) > 0 {
		if err := c.history.Record(ctx, merged); err != nil {
			log.Warn("Failed to record command set", zap.String("id", merged.ID), zap.Error(err))
		}
	}
	return outcome
}

func (c *Coordinator) pendingError() error {
	return fmt.Errorf("%w: retry the command, or restore or discard %s; use --ignore-missing to skip packages that no longer exist",
		ErrPendingActions, c.marker.Path())
}
