//go:build !windows
// +build !windows

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
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// unixSupervisor manages processes with signals and the ps table
// unixSupervisor 使用信号和 ps 进程表管理进程
type unixSupervisor struct{}

// NewSupervisor returns the Supervisor for this platform
// NewSupervisor 返回当前平台的 Supervisor
func NewSupervisor() Supervisor {
	return &unixSupervisor{}
}

// FindPID scans `ps` output, falling back to pgrep
// FindPID 扫描 `ps` 输出，失败时回退到 pgrep
func (s *unixSupervisor) FindPID(ctx context.Context, signature string) (int, bool, error) {
	if signature == "" {
		return 0, false, nil
	}
	self := os.Getpid()

	output, err := exec.CommandContext(ctx, "ps", "-eo", "pid=,args=").Output()
	if err == nil {
		pid, found := parseProcessTable(string(output), signature, self)
		return pid, found, nil
	}

	// If ps fails, try pgrep as fallback / 如果 ps 失败，尝试 pgrep 作为备用
	output, err = exec.CommandContext(ctx, "pgrep", "-f", signature).Output()
	if err != nil {
		// pgrep exits 1 when nothing matches / pgrep 无匹配时退出码为 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return 0, false, nil
		}
		return 0, false, err
	}
	pid, found := parsePIDList(string(output), self)
	return pid, found, nil
}

// IsAlive checks a process with signal 0
// IsAlive 使用信号 0 检查进程
func (s *unixSupervisor) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so we need to send signal 0 to check
	// 在 Unix 上，FindProcess 总是成功，所以我们需要发送信号 0 来检查
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Terminate sends SIGTERM
// Terminate 发送 SIGTERM
func (s *unixSupervisor) Terminate(pid int) error {
	return sendSignal(pid, syscall.SIGTERM)
}

// Kill sends SIGKILL to the process and, when it leads one, its process group
// Kill 向进程发送 SIGKILL；若其为进程组组长，同时发送给进程组
func (s *unixSupervisor) Kill(pid int) error {
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err == nil {
			return nil
		}
	}
	return sendSignal(pid, syscall.SIGKILL)
}

// Spawn starts cmd in its own process group
// Spawn 在独立的进程组中启动 cmd
func (s *unixSupervisor) Spawn(ctx context.Context, desc *Command) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The server must outlive this invocation, so ctx is not bound to it
	// 服务器进程需要比本次调用存活更久，因此不绑定 ctx
	cmd, logFile, err := desc.build()
	if err != nil {
		return nil, err
	}
	setProcGroupAttr(cmd)
	return start(cmd, logFile, desc, s.IsAlive)
}

// sendSignal sends a signal to a process
// sendSignal 向进程发送信号
func sendSignal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return ErrProcessNotFound
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return ErrProcessNotFound
		}
		return err
	}
	return nil
}
