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

// Package marketplace sequences connector package transactions: add,
// install, uninstall and remove, with crash recovery through the pending
// install marker.
// marketplace 包负责编排连接器包事务：添加、安装、卸载和删除，并通过待安装标记实现崩溃恢复。
package marketplace

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrConflictingRequest indicates a package named in more than one set
	// ErrConflictingRequest 表示同一个包出现在多个集合中
	ErrConflictingRequest = errors.New("conflicting package request")

	// ErrInvalidArgument indicates a malformed package token
	// ErrInvalidArgument 表示格式错误的包参数
	ErrInvalidArgument = errors.New("invalid package argument")

	// ErrPendingActions indicates an interrupted transaction could not be resumed
	// ErrPendingActions 表示中断的事务无法恢复
	ErrPendingActions = errors.New("pending package actions could not be completed")

	// ErrPackageNotFound indicates a name that resolves to no package
	// ErrPackageNotFound 表示名称无法解析到任何包
	ErrPackageNotFound = errors.New("package not found")

	// ErrPackageInstalled indicates a remove of a package that is still installed
	// ErrPackageInstalled 表示试图删除仍已安装的包
	ErrPackageInstalled = errors.New("package is still installed")
)

// Request is a package transaction. A name appears in at most one set.
// Request 是一个包事务，每个名称最多出现在一个集合中。
type Request struct {
	Add       []string `json:"add,omitempty"`
	Install   []string `json:"install,omitempty"`
	Uninstall []string `json:"uninstall,omitempty"`
	Remove    []string `json:"remove,omitempty"`
}

// NewRequest builds a request from explicit lists, collapsing duplicates
// within each set and keeping first-seen order
// NewRequest 使用显式列表构建请求，合并每个集合内的重复项并保持首次出现的顺序
func NewRequest(add, install, uninstall, remove []string) *Request {
	return &Request{
		Add:       dedupe(add),
		Install:   dedupe(install),
		Uninstall: dedupe(uninstall),
		Remove:    dedupe(remove),
	}
}

// ParseCompound parses mp-request tokens: "+name" installs, "-name"
// uninstalls and a bare "name" adds. A "--" prefix is rejected.
// ParseCompound 解析 mp-request 参数："+name" 安装，"-name" 卸载，纯 "name" 添加。
func ParseCompound(tokens []string) (*Request, error) {
	var add, install, uninstall []string
	for _, raw := range tokens {
		token := strings.TrimSpace(raw)
		switch {
		case token == "", token == "+", token == "-":
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, raw)
		case strings.HasPrefix(token, "--"):
			return nil, fmt.Errorf("%w: %q looks like a flag, flags go before the package tokens", ErrInvalidArgument, raw)
		case strings.HasPrefix(token, "+"):
			install = append(install, strings.TrimPrefix(token, "+"))
		case strings.HasPrefix(token, "-"):
			uninstall = append(uninstall, strings.TrimPrefix(token, "-"))
		default:
			add = append(add, token)
		}
	}
	return NewRequest(add, install, uninstall, nil), nil
}

// SetRequest computes the request that makes installed equal to wanted.
// Names in both lists are left alone.
// SetRequest 计算使已安装集合等于 wanted 的请求，两者都有的名称保持不变。
func SetRequest(wanted, installed []string) *Request {
	have := make(map[string]bool, len(installed))
	for _, name := range installed {
		have[name] = true
	}
	want := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		want[name] = true
	}

	var install, uninstall []string
	for _, name := range wanted {
		if !have[name] {
			install = append(install, name)
		}
	}
	for _, name := range installed {
		if !want[name] {
			uninstall = append(uninstall, name)
		}
	}
	return NewRequest(nil, install, uninstall, nil)
}

// Validate rejects a request that names a package in two sets
// Validate 拒绝在两个集合中都出现同一包的请求
func (r *Request) Validate() error {
	seen := make(map[string]string)
	var conflicts []string
	for _, set := range r.sets() {
		for _, name := range set.names {
			if name == "" {
				return fmt.Errorf("%w: empty package name in %s", ErrInvalidArgument, set.op)
			}
			if prev, ok := seen[name]; ok && prev != set.op {
				conflicts = append(conflicts, fmt.Sprintf("%s (%s and %s)", name, prev, set.op))
				continue
			}
			seen[name] = set.op
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("%w: %s", ErrConflictingRequest, strings.Join(conflicts, ", "))
	}
	return nil
}

// Empty reports whether the request does nothing
// Empty 报告请求是否为空
func (r *Request) Empty() bool {
	return r == nil || len(r.Add)+len(r.Install)+len(r.Uninstall)+len(r.Remove) == 0
}

// String renders the request in compound form
// String 以复合形式渲染请求
func (r *Request) String() string {
	if r == nil {
		return ""
	}
	var parts []string
	parts = append(parts, r.Add...)
	for _, n := range r.Install {
		parts = append(parts, "+"+n)
	}
	for _, n := range r.Uninstall {
		parts = append(parts, "-"+n)
	}
	for _, n := range r.Remove {
		parts = append(parts, "remove:"+n)
	}
	return strings.Join(parts, " ")
}

type namedSet struct {
	op    string
	names []string
}

// sets lists the request in application order
// sets 按应用顺序列出请求
func (r *Request) sets() []namedSet {
	return []namedSet{
		{op: OpUninstall, names: r.Uninstall},
		{op: OpRemove, names: r.Remove},
		{op: OpAdd, names: r.Add},
		{op: OpInstall, names: r.Install},
	}
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
