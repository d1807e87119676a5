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

// Package store persists the launcher's crash-recovery state: the PID of the
// supervised server and the pending-install marker.
// store 包持久化启动器的崩溃恢复状态：被监管服务器的 PID 和待安装标记。
//
// Neither file is trusted blindly. A PID read back from disk must be checked
// against the OS before use; the marker's existence alone means a package
// transaction did not complete.
// 两个文件都不会被盲目信任：从磁盘读取的 PID 使用前必须经操作系统验证；
// 标记文件的存在本身即表示包事务未完成。
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrCorruptPidFile indicates the PID file does not hold a positive integer
// ErrCorruptPidFile 表示 PID 文件内容不是正整数
var ErrCorruptPidFile = errors.New("store: PID file is corrupt")

// PidFile is the on-disk PID record
// PidFile 是磁盘上的 PID 记录
type PidFile struct {
	path string
}

// NewPidFile creates a PidFile at path
// NewPidFile 在 path 创建 PidFile
func NewPidFile(path string) *PidFile {
	return &PidFile{path: path}
}

// Path returns the file location
// Path 返回文件位置
func (p *PidFile) Path() string {
	return p.path
}

// Read returns the recorded PID. found is false when no record exists.
// Read 返回记录的 PID。没有记录时 found 为 false。
func (p *PidFile) Read() (pid int, found bool, err error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read PID file %s: %w", p.path, err)
	}

	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false, fmt.Errorf("%w: %s", ErrCorruptPidFile, p.path)
	}
	return pid, true, nil
}

// Write records pid, replacing any stale record
// Write 记录 pid，替换任何过期记录
func (p *PidFile) Write(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID %d", pid)
	}
	return writeAtomic(p.path, []byte(strconv.Itoa(pid)+"\n"))
}

// Remove deletes the record; a missing file is not an error
// Remove 删除记录；文件不存在不是错误
func (p *PidFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// writeAtomic writes data next to path and renames it into place
// writeAtomic 在 path 旁写入数据后重命名到目标位置
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
