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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/process"
	"github.com/seatunnel/launcher/internal/serverconf"
)

// SeaTunnel server layout
// SeaTunnel 服务器目录布局
const (
	SeaTunnelMainClass  = "org.apache.seatunnel.core.starter.seatunnel.SeaTunnelServer"
	SeaTunnelStopScript = "bin/stop-seatunnel-cluster.sh"
	seaTunnelConsoleLog = "seatunnel-engine-server.out"
	commandConsoleLog   = "server.out"
)

// ServerAdapter knows how a particular server is started, stopped and found
// ServerAdapter 描述特定服务器如何启动、停止和查找
type ServerAdapter interface {
	Name() string
	// Signature is matched against process command lines
	// Signature 用于匹配进程命令行
	Signature() string
	StartCommand(cfg *config.Config) (*process.Command, error)
	// StopCommand returns nil when the server has no stop helper; the
	// launcher then signals the process directly
	// StopCommand 在服务器没有停止辅助程序时返回 nil，此时启动器直接向进程发送信号
	StopCommand(cfg *config.Config) (*process.Command, error)
}

// NewAdapter selects the adapter named by server.adapter
// NewAdapter 根据 server.adapter 选择适配器
func NewAdapter(cfg *config.Config) (ServerAdapter, error) {
	switch cfg.Server.Adapter {
	case "", config.AdapterSeaTunnel:
		return NewSeaTunnelAdapter(cfg.Server.Signature), nil
	case config.AdapterCommand:
		return NewCommandAdapter(cfg.Server), nil
	default:
		return nil, fmt.Errorf("%w: unknown server adapter %q", ErrNotConfigured, cfg.Server.Adapter)
	}
}

// SeaTunnelAdapter runs the SeaTunnel engine server JVM directly
// SeaTunnelAdapter 直接运行 SeaTunnel 引擎服务器 JVM
type SeaTunnelAdapter struct {
	signature string
	lookPath  func(file string) (string, error)
	getenv    func(key string) string
}

// NewSeaTunnelAdapter creates the adapter; an empty signature means the main class
// NewSeaTunnelAdapter 创建适配器；signature 为空时使用主类名
func NewSeaTunnelAdapter(signature string) *SeaTunnelAdapter {
	if signature == "" {
		signature = SeaTunnelMainClass
	}
	return &SeaTunnelAdapter{signature: signature, lookPath: exec.LookPath, getenv: os.Getenv}
}

func (a *SeaTunnelAdapter) Name() string      { return config.AdapterSeaTunnel }
func (a *SeaTunnelAdapter) Signature() string { return a.signature }

// StartCommand builds the java command line: JVM options, the config
// locations, the classpath lib/* and connectors/*, then the main class
// StartCommand 构建 java 命令行：JVM 选项、配置路径、lib/* 与 connectors/* 类路径以及主类
func (a *SeaTunnelAdapter) StartCommand(cfg *config.Config) (*process.Command, error) {
	java, err := a.java(cfg.Server.Java)
	if err != nil {
		return nil, err
	}

	home := cfg.Server.Home
	classpath := filepath.Join(home, "lib", "*") + string(os.PathListSeparator) + filepath.Join(cfg.ConnectorsDir(), "*")

	args := make([]string, 0, len(cfg.Server.JVMOptions)+7)
	args = append(args, cfg.Server.JVMOptions...)
	args = append(args,
		"-Dseatunnel.config="+filepath.Join(home, serverconf.SeaTunnelConfigFile),
		"-Dseatunnel.logs.path="+cfg.LogDir(),
		"-Dhazelcast.config="+filepath.Join(home, serverconf.HazelcastConfigFile),
		"-Dlog4j2.configurationFile="+filepath.Join(home, serverconf.Log4j2ConfigFile),
		"-cp", classpath,
		SeaTunnelMainClass,
	)

	return &process.Command{
		Path:    java,
		Args:    args,
		Dir:     home,
		Env:     []string{"SEATUNNEL_HOME=" + home},
		LogFile: filepath.Join(cfg.LogDir(), seaTunnelConsoleLog),
	}, nil
}

// StopCommand runs bin/stop-seatunnel-cluster.sh when it exists
// StopCommand 在 bin/stop-seatunnel-cluster.sh 存在时运行它
func (a *SeaTunnelAdapter) StopCommand(cfg *config.Config) (*process.Command, error) {
	if runtime.GOOS == "windows" {
		return nil, nil
	}
	script := filepath.Join(cfg.Server.Home, SeaTunnelStopScript)
	if _, err := os.Stat(script); err != nil {
		return nil, nil
	}
	return &process.Command{
		Path: "/bin/bash",
		Args: []string{script},
		Dir:  cfg.Server.Home,
		Env:  []string{"SEATUNNEL_HOME=" + cfg.Server.Home},
	}, nil
}

// java resolves the executable: explicit setting, then JAVA_HOME, then PATH
// java 解析可执行文件：显式配置优先，其次 JAVA_HOME，最后 PATH
func (a *SeaTunnelAdapter) java(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}
	if home := a.getenv("JAVA_HOME"); home != "" {
		return filepath.Join(home, "bin", name), nil
	}
	path, err := a.lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: java not found, set JAVA_HOME or server.java", ErrNotInstalled)
	}
	return path, nil
}

// CommandAdapter runs a configured argv, for the stub server and non-JVM servers
// CommandAdapter 运行配置的命令参数，用于桩服务器和非 JVM 服务器
type CommandAdapter struct {
	signature string
}

// NewCommandAdapter creates the adapter. Without server.signature the base
// name of the executable is matched.
// NewCommandAdapter 创建适配器。未配置 server.signature 时匹配可执行文件名。
func NewCommandAdapter(server config.ServerConfig) *CommandAdapter {
	signature := server.Signature
	if signature == "" && len(server.StartCommand) > 0 {
		signature = filepath.Base(server.StartCommand[0])
	}
	return &CommandAdapter{signature: signature}
}

func (a *CommandAdapter) Name() string      { return config.AdapterCommand }
func (a *CommandAdapter) Signature() string { return a.signature }

// StartCommand returns server.start_command
// StartCommand 返回 server.start_command
func (a *CommandAdapter) StartCommand(cfg *config.Config) (*process.Command, error) {
	argv := cfg.Server.StartCommand
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: server.start_command is empty", ErrNotConfigured)
	}
	return &process.Command{
		Path:    argv[0],
		Args:    append([]string(nil), argv[1:]...),
		Dir:     cfg.Server.Home,
		LogFile: filepath.Join(cfg.Runtime.Dir, commandConsoleLog),
	}, nil
}

// StopCommand returns server.stop_command, or nil when none is configured
// StopCommand 返回 server.stop_command，未配置时返回 nil
func (a *CommandAdapter) StopCommand(cfg *config.Config) (*process.Command, error) {
	argv := cfg.Server.StopCommand
	if len(argv) == 0 {
		return nil, nil
	}
	return &process.Command{
		Path: argv[0],
		Args: append([]string(nil), argv[1:]...),
		Dir:  cfg.Server.Home,
	}, nil
}
