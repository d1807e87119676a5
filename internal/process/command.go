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
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Command describes how to run a server or helper process
// Command 描述如何运行服务器或辅助进程
type Command struct {
	// Path is the executable / 可执行文件
	Path string
	// Args excludes the executable / 参数不包括可执行文件本身
	Args []string
	// Dir is the working directory / 工作目录
	Dir string
	// Env is appended to the launcher's environment / 追加到启动器的环境变量
	Env []string
	// LogFile captures stdout and stderr of a background process
	// LogFile 捕获后台进程的 stdout 和 stderr
	LogFile string
	// Stdout and Stderr attach a foreground process; they win over LogFile
	// Stdout 和 Stderr 用于前台进程；优先于 LogFile
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs
// String 渲染用于日志的命令行
func (c *Command) String() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// build turns the description into an exec.Cmd without starting it
// build 将描述转换为 exec.Cmd 但不启动
func (c *Command) build() (*exec.Cmd, *os.File, error) {
	if c == nil || c.Path == "" {
		return nil, nil, ErrEmptyCommand
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	var logFile *os.File
	switch {
	case c.Stdout != nil || c.Stderr != nil:
		cmd.Stdout = c.Stdout
		cmd.Stderr = c.Stderr
	case c.LogFile != "":
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		logFile = f
	}
	return cmd, logFile, nil
}

// Handle is a process spawned by, or adopted into, the launcher
// Handle 是由启动器生成或接管的进程
type Handle struct {
	PID     int
	Args    []string
	Dir     string
	LogFile string

	probe func(pid int) bool

	done    chan struct{}
	mu      sync.Mutex
	waitErr error
}

// Adopt wraps an already running process found through the supervisor
// Adopt 包装通过 supervisor 找到的已运行进程
func Adopt(sup Supervisor, pid int, logFile string) *Handle {
	return &Handle{PID: pid, LogFile: logFile, probe: sup.IsAlive}
}

// start launches cmd and reaps it in the background
// start 启动 cmd 并在后台回收
func start(cmd *exec.Cmd, logFile *os.File, desc *Command, probe func(int) bool) (*Handle, error) {
	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, desc, err)
	}

	h := &Handle{
		PID:     cmd.Process.Pid,
		Args:    append([]string{desc.Path}, desc.Args...),
		Dir:     desc.Dir,
		LogFile: desc.LogFile,
		probe:   probe,
		done:    make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		if logFile != nil {
			logFile.Close()
		}
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

// Alive asks whether the process is still running
// Alive 询问进程是否仍在运行
func (h *Handle) Alive() bool {
	if h.done != nil {
		select {
		case <-h.done:
			return false
		default:
			return true
		}
	}
	if h.probe == nil {
		return false
	}
	return h.probe(h.PID)
}

// Wait blocks until a spawned process exits or ctx is done.
// Adopted processes are polled once per second.
// Wait 阻塞直到生成的进程退出或 ctx 结束。接管的进程每秒轮询一次。
func (h *Handle) Wait(ctx context.Context) error {
	if h.done == nil {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for h.Alive() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.waitErr
	}
}

// Output returns the last lines of the captured console log
// Output 返回捕获的控制台日志的最后若干行
func (h *Handle) Output(lines int) (string, error) {
	if h.LogFile == "" {
		return "", fmt.Errorf("no console log captured for PID %d", h.PID)
	}
	return TailFile(h.LogFile, lines)
}
