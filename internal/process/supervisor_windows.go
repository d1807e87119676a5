//go:build windows
// +build windows

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
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// windowsSupervisor manages processes with wmic, tasklist and taskkill
// windowsSupervisor 使用 wmic、tasklist 和 taskkill 管理进程
type windowsSupervisor struct{}

// NewSupervisor returns the Supervisor for this platform
// NewSupervisor 返回当前平台的 Supervisor
func NewSupervisor() Supervisor {
	return &windowsSupervisor{}
}

func (s *windowsSupervisor) FindPID(ctx context.Context, signature string) (int, bool, error) {
	if signature == "" {
		return 0, false, nil
	}
	filter := fmt.Sprintf("CommandLine like '%%%s%%'", strings.ReplaceAll(signature, "'", "''"))
	output, err := exec.CommandContext(ctx, "wmic", "process", "where", filter, "get", "ProcessId").Output()
	if err != nil {
		return 0, false, err
	}
	pid, found := parsePIDList(string(output), os.Getpid())
	return pid, found, nil
}

func (s *windowsSupervisor) IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Use tasklist command to check if process exists
	// 使用 tasklist 命令检查进程是否存在
	output, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(output), strconv.Itoa(pid))
}

// Terminate asks taskkill for a polite close
// Terminate 请求 taskkill 正常关闭进程
func (s *windowsSupervisor) Terminate(pid int) error {
	if pid <= 0 {
		return ErrProcessNotFound
	}
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T").Run()
}

// Kill ends the process tree
// Kill 结束进程树
func (s *windowsSupervisor) Kill(pid int) error {
	if pid <= 0 {
		return ErrProcessNotFound
	}
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil {
		// On Windows, we can only kill the process
		// 在 Windows 上，我们只能终止进程
		proc, findErr := os.FindProcess(pid)
		if findErr != nil {
			return ErrProcessNotFound
		}
		return proc.Kill()
	}
	return nil
}

func (s *windowsSupervisor) Spawn(ctx context.Context, desc *Command) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd, logFile, err := desc.build()
	if err != nil {
		return nil, err
	}
	setProcGroupAttr(cmd)
	return start(cmd, logFile, desc, s.IsAlive)
}
