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

package launcher

import (
	"errors"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/marketplace"
	"github.com/seatunnel/launcher/internal/serverconf"
)

// Launcher errors. Each maps to one exit code through ExitCodeFor.
// 启动器错误，每个错误通过 ExitCodeFor 对应一个退出码。
var (
	// ErrInvalidArgument indicates bad or excess command arguments
	// ErrInvalidArgument 表示参数错误或多余
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotConfigured indicates the configuration is invalid or pending
	// installs could not be drained
	// ErrNotConfigured 表示配置无效或待安装的包无法处理完
	ErrNotConfigured = errors.New("server is not configured")

	// ErrNotInstalled indicates the server installation is missing or broken
	// ErrNotInstalled 表示服务器安装缺失或损坏
	ErrNotInstalled = errors.New("server is not installed")

	// ErrAlreadyRunning indicates another server instance holds the runtime
	// ErrAlreadyRunning 表示已有另一个服务器实例在运行
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrNotRunning indicates no server process was found
	// ErrNotRunning 表示未找到服务器进程
	ErrNotRunning = errors.New("server is not running")

	// ErrPortInUse indicates the server HTTP port is already bound
	// ErrPortInUse 表示服务器 HTTP 端口已被占用
	ErrPortInUse = errors.New("server port is already in use")

	// ErrSpawn indicates the server process could not be started
	// ErrSpawn 表示服务器进程无法启动
	ErrSpawn = errors.New("failed to spawn server")

	// ErrStartFailed indicates the server exited or reported failed components
	// while starting
	// ErrStartFailed 表示服务器在启动过程中退出或报告组件失败
	ErrStartFailed = errors.New("server failed to start")

	// ErrStartTimeout indicates the server did not become ready in time; the
	// process is left running
	// ErrStartTimeout 表示服务器未在规定时间内就绪；进程保持运行
	ErrStartTimeout = errors.New("server did not start in time")

	// ErrServerExited indicates a console-mode server exited with an error
	// ErrServerExited 表示控制台模式下服务器异常退出
	ErrServerExited = errors.New("server exited")
)

// ExitCode is the process exit status of stctl
// ExitCode 是 stctl 的进程退出码
type ExitCode int

const (
	ExitOK            ExitCode = 0
	ExitError         ExitCode = 1
	ExitInvalid       ExitCode = 2
	ExitNotRunning    ExitCode = 3
	ExitNotInstalled  ExitCode = 5
	ExitNotConfigured ExitCode = 6
	ExitCannotExecute ExitCode = 126
)

// exitClasses is checked in order; the first match wins
var exitClasses = []struct {
	code ExitCode
	errs []error
}{
	{ExitCannotExecute, []error{ErrAlreadyRunning}},
	{ExitInvalid, []error{ErrInvalidArgument, marketplace.ErrConflictingRequest, marketplace.ErrInvalidArgument}},
	{ExitNotInstalled, []error{ErrNotInstalled, serverconf.ErrNotInstalled}},
	{ExitNotConfigured, []error{ErrNotConfigured, config.ErrInvalidConfig, serverconf.ErrBadConfig, marketplace.ErrPendingActions}},
	{ExitNotRunning, []error{ErrNotRunning}},
}

// ExitCodeFor maps an error returned by a command to the exit status
// ExitCodeFor 将命令返回的错误映射为退出码
func ExitCodeFor(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	for _, class := range exitClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return class.code
			}
		}
	}
	return ExitError
}
