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

import "context"

// Options modifies how a transaction is carried out
// Options 修改事务的执行方式
type Options struct {
	// NoDeps issues the direct operations one by one instead of a combined request
	// NoDeps 逐个执行直接操作，而不是一个组合请求
	NoDeps bool

	// IgnoreMissing turns unknown packages into skipped commands
	// IgnoreMissing 将未知包变为跳过的命令
	IgnoreMissing bool
}

// Broker applies package operations to a package store. Every call returns
// the command set that describes what happened, failed parts included.
// Broker 将包操作应用到包存储。每次调用都返回描述执行情况的命令集，包括失败部分。
type Broker interface {
	ExecutePending(ctx context.Context, opts Options) (bool, *CommandSet)
	Add(ctx context.Context, names []string, opts Options) (bool, *CommandSet)
	Install(ctx context.Context, names []string, opts Options) (bool, *CommandSet)
	Uninstall(ctx context.Context, names []string, opts Options) (bool, *CommandSet)
	Remove(ctx context.Context, names []string, opts Options) (bool, *CommandSet)
	Request(ctx context.Context, req *Request, opts Options) (bool, *CommandSet)
	ListInstalled(ctx context.Context) ([]string, error)
	Reset(ctx context.Context, opts Options) (bool, *CommandSet)
	Purge(ctx context.Context, opts Options) (bool, *CommandSet)
}

// PendingChecker reports whether an interrupted transaction is waiting
// PendingChecker 报告是否有中断的事务在等待
type PendingChecker interface {
	Exists() bool
	Path() string
}

// Recorder persists finished command sets
// Recorder 持久化已完成的命令集
type Recorder interface {
	Record(ctx context.Context, cs *CommandSet) error
}
