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

package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// helperWaitDelay bounds how long output pipes are drained after ctx ends
const helperWaitDelay = time.Second

// CommandHelper runs a short-lived stop command and waits for it
// CommandHelper 运行一个短时停止命令并等待其结束
type CommandHelper struct {
	cmd    *Command
	logger *zap.Logger
}

// NewCommandHelper creates a CommandHelper
// NewCommandHelper 创建 CommandHelper
func NewCommandHelper(cmd *Command, logger *zap.Logger) *CommandHelper {
	return &CommandHelper{cmd: cmd, logger: logger}
}

// Stop runs the helper once; ctx bounds how long it may take
// Stop 运行一次辅助命令；ctx 限制其运行时间
func (h *CommandHelper) Stop(ctx context.Context) error {
	if h.cmd == nil || h.cmd.Path == "" {
		return ErrEmptyCommand
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, h.cmd.Path, h.cmd.Args...)
	cmd.Dir = h.cmd.Dir
	cmd.Env = append(os.Environ(), h.cmd.Env...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = helperWaitDelay

	h.logger.Debug("Running stop helper", zap.String("command", h.cmd.String()))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("stop helper interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("stop helper %s failed: %w: %s", h.cmd, err, strings.TrimSpace(out.String()))
	}
	return nil
}

// SignalHelper asks the process to exit through the supervisor.
// It is used when the server has no dedicated stop command.
// SignalHelper 通过 supervisor 请求进程退出，用于服务器没有专用停止命令的情况。
type SignalHelper struct {
	sup Supervisor
	pid func(ctx context.Context) (int, bool, error)
}

// NewSignalHelper creates a SignalHelper; pid resolves the current target
// NewSignalHelper 创建 SignalHelper；pid 用于解析当前目标进程
func NewSignalHelper(sup Supervisor, pid func(ctx context.Context) (int, bool, error)) *SignalHelper {
	return &SignalHelper{sup: sup, pid: pid}
}

// Stop sends one termination request
// Stop 发送一次终止请求
func (h *SignalHelper) Stop(ctx context.Context) error {
	pid, found, err := h.pid(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return h.sup.Terminate(pid)
}
