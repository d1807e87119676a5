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

package history

import "errors"

// Error definitions for the history store
// 历史存储的错误定义
var (
	// ErrCommandSetIDEmpty indicates the command set has no ID
	// ErrCommandSetIDEmpty 表示命令集没有 ID
	ErrCommandSetIDEmpty = errors.New("history: command set ID cannot be empty")

	// ErrCommandSetDuplicate indicates the command set was already recorded
	// ErrCommandSetDuplicate 表示命令集已被记录
	ErrCommandSetDuplicate = errors.New("history: command set already recorded")

	// ErrEntryNotFound indicates no entry matches
	// ErrEntryNotFound 表示没有匹配的记录
	ErrEntryNotFound = errors.New("history: entry not found")
)
