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

package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const redacted = "******"

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Redacted returns a copy safe for printing, with secrets masked
// Redacted 返回一个可安全打印的副本，敏感信息已屏蔽
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.History.Password != "" {
		cp.History.Password = redacted
	}
	return &cp
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}

	// Compare Server / 比较 Server
	if c.Server.Home != other.Server.Home ||
		c.Server.Adapter != other.Server.Adapter ||
		c.Server.HTTPPort != other.Server.HTTPPort ||
		c.Server.HealthURL != other.Server.HealthURL ||
		c.Server.Java != other.Server.Java ||
		c.Server.Signature != other.Server.Signature {
		return false
	}
	if !equalStrings(c.Server.JVMOptions, other.Server.JVMOptions) ||
		!equalStrings(c.Server.StartCommand, other.Server.StartCommand) ||
		!equalStrings(c.Server.StopCommand, other.Server.StopCommand) {
		return false
	}

	if c.Runtime != other.Runtime ||
		c.Launcher != other.Launcher ||
		c.Marketplace != other.Marketplace ||
		c.History != other.History ||
		c.Log != other.Log ||
		c.Telemetry != other.Telemetry {
		return false
	}

	return true
}

// equalStrings treats nil and empty slices as equal
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
