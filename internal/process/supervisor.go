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

// Package process spawns, finds and kills the supervised server process.
// process 包负责生成、查找和终止被监管的服务器进程。
//
// The OS specific parts live behind the Supervisor interface, with one
// implementation per platform selected by build tags.
// 操作系统相关部分隐藏在 Supervisor 接口之后，每个平台一个实现，由构建标签选择。
package process

import (
	"context"
	"errors"
)

var (
	// ErrProcessNotFound indicates the process was not found
	// ErrProcessNotFound 表示进程未找到
	ErrProcessNotFound = errors.New("process not found")

	// ErrSpawnFailed indicates the process could not be started
	// ErrSpawnFailed 表示进程无法启动
	ErrSpawnFailed = errors.New("process failed to spawn")

	// ErrEmptyCommand indicates a command without an executable
	// ErrEmptyCommand 表示命令缺少可执行文件
	ErrEmptyCommand = errors.New("command has no executable")
)

// Supervisor is the operating system process manager
// Supervisor 是操作系统进程管理器
type Supervisor interface {
	// FindPID looks up a running process whose command line contains signature.
	// found is false, with a nil error, when nothing matches.
	// FindPID 查找命令行包含 signature 的运行中进程。没有匹配时 found 为 false 且 error 为 nil。
	FindPID(ctx context.Context, signature string) (pid int, found bool, err error)

	// IsAlive reports whether pid is a live process
	// IsAlive 报告 pid 是否为存活进程
	IsAlive(pid int) bool

	// Terminate asks the process to exit
	// Terminate 请求进程退出
	Terminate(pid int) error

	// Kill forcibly ends the process
	// Kill 强制结束进程
	Kill(pid int) error

	// Spawn starts cmd detached from the launcher's process group
	// Spawn 在独立于启动器进程组的情况下启动 cmd
	Spawn(ctx context.Context, cmd *Command) (*Handle, error)
}
