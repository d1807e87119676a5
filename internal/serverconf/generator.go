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

// Package serverconf 读取被监管服务器的配置并校验其安装目录。
package serverconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// SeaTunnel 配置文件和属性
const (
	SeaTunnelConfigFile = "config/seatunnel.yaml"
	HazelcastConfigFile = "config/hazelcast.yaml"
	Log4j2ConfigFile    = "config/log4j2.properties"

	PropertyHTTPPort = "seatunnel.engine.http.port"
)

var (
	// ErrNotInstalled 安装目录缺失或不完整
	ErrNotInstalled = errors.New("server installation is missing or incomplete")

	// ErrBadConfig 服务器配置文件无法解析
	ErrBadConfig = errors.New("server configuration cannot be parsed")
)

// Options 配置 Generator
type Options struct {
	// ConfigFile 相对于 home 的 YAML 配置文件，为空表示没有配置文件
	ConfigFile string

	// RequiredPaths 相对于 home 必须存在的文件或目录
	RequiredPaths []string

	// Defaults 配置文件中没有的属性的默认值
	Defaults map[string]string
}

// Generator 是默认的配置生成器：读取 seatunnel.yaml 并展平成点分属性
type Generator struct {
	home string
	opts Options

	mu    sync.RWMutex
	props map[string]string
}

// New 创建 Generator，首次 Reload 之前只有默认值可用
func New(home string, opts Options) *Generator {
	g := &Generator{home: home, opts: opts, props: map[string]string{}}
	for k, v := range opts.Defaults {
		g.props[k] = v
	}
	return g
}

// SeaTunnelOptions 返回 SeaTunnel 安装的默认选项
func SeaTunnelOptions(httpPort int) Options {
	return Options{
		ConfigFile:    SeaTunnelConfigFile,
		RequiredPaths: []string{"bin", "lib", SeaTunnelConfigFile},
		Defaults:      map[string]string{PropertyHTTPPort: strconv.Itoa(httpPort)},
	}
}

// Home 返回安装目录
func (g *Generator) Home() string {
	return g.home
}

// VerifyInstallation 检查安装目录及必需文件
func (g *Generator) VerifyInstallation() error {
	info, err := os.Stat(g.home)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotInstalled, g.home, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNotInstalled, g.home)
	}

	var missing []string
	for _, rel := range g.opts.RequiredPaths {
		if _, err := os.Stat(filepath.Join(g.home, rel)); err != nil {
			missing = append(missing, rel)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v under %s", ErrNotInstalled, missing, g.home)
	}
	return nil
}

// Property 查找点分属性，例如 seatunnel.engine.http.port
func (g *Generator) Property(key string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.props[key]
	return v, ok
}

// Keys 返回所有已知属性，已排序
func (g *Generator) Keys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.props))
	for k := range g.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload 重新读取配置文件。包安装会改变 connectors 目录，因此每次安装后都需要重新加载
func (g *Generator) Reload() error {
	props := make(map[string]string, len(g.opts.Defaults))
	for k, v := range g.opts.Defaults {
		props[k] = v
	}

	if g.opts.ConfigFile != "" {
		path := filepath.Join(g.home, g.opts.ConfigFile)
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// 文件是否必需由 VerifyInstallation 判断
		case err != nil:
			return fmt.Errorf("failed to read %s: %w", path, err)
		default:
			var root map[string]interface{}
			if err := yaml.Unmarshal(data, &root); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrBadConfig, path, err)
			}
			flatten("", root, props)
		}
	}

	g.mu.Lock()
	g.props = props
	g.mu.Unlock()
	return nil
}

// flatten 将嵌套的 YAML 映射展平成点分键
func flatten(prefix string, node interface{}, out map[string]string) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, child := range v {
			flatten(join(prefix, k), child, out)
		}
	case []interface{}:
		for i, child := range v {
			flatten(join(prefix, strconv.Itoa(i)), child, out)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
