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

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoPendingInstall indicates the marker does not exist
// ErrNoPendingInstall 表示待安装标记不存在
var ErrNoPendingInstall = errors.New("store: no pending install")

// PendingMarker is the "install after restart" file. It is written before a
// package transaction touches the package store and discarded only once the
// transaction has completed.
// PendingMarker 是"重启后安装"文件。包事务修改包存储前写入，事务完成后才删除。
type PendingMarker struct {
	path string
}

// NewPendingMarker creates a PendingMarker at path
// NewPendingMarker 在 path 创建 PendingMarker
func NewPendingMarker(path string) *PendingMarker {
	return &PendingMarker{path: path}
}

// Path returns the marker location
// Path 返回标记文件位置
func (m *PendingMarker) Path() string {
	return m.path
}

// Exists reports whether a transaction is pending
// Exists 报告是否有待处理的事务
func (m *PendingMarker) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Save records the in-flight request as JSON
// Save 以 JSON 记录进行中的请求
func (m *PendingMarker) Save(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pending install: %w", err)
	}
	return writeAtomic(m.path, data)
}

// Load decodes the recorded request into v
// Load 将记录的请求解码到 v
func (m *PendingMarker) Load(v interface{}) error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoPendingInstall
		}
		return fmt.Errorf("read pending install %s: %w", m.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode pending install %s: %w", m.path, err)
	}
	return nil
}

// Discard removes the marker; a missing marker is not an error
// Discard 删除标记；标记不存在不是错误
func (m *PendingMarker) Discard() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard pending install: %w", err)
	}
	return nil
}
