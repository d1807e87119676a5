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
	"strconv"
	"strings"
)

// parseProcessTable scans "pid args" lines and returns the first PID whose
// arguments contain signature, skipping the launcher itself.
// parseProcessTable 扫描 "pid args" 行，返回参数包含 signature 的第一个 PID，跳过启动器自身。
func parseProcessTable(output, signature string, self int) (int, bool) {
	if signature == "" {
		return 0, false
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || pid <= 0 || pid == self {
			continue
		}
		args := strings.TrimSpace(fields[1])
		if !strings.Contains(args, signature) {
			continue
		}
		// grep and pgrep show up with the signature on their own command line
		// grep 和 pgrep 自身命令行也包含 signature
		if strings.HasPrefix(args, "grep ") || strings.HasPrefix(args, "pgrep ") {
			continue
		}
		return pid, true
	}
	return 0, false
}

// parsePIDList returns the first positive PID of a one-PID-per-line listing
// parsePIDList 返回每行一个 PID 列表中的第一个正数 PID
func parsePIDList(output string, self int) (int, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "ProcessId" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err == nil && pid > 0 && pid != self {
			return pid, true
		}
	}
	return 0, false
}
