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

// Package main is the entry point of stctl, the SeaTunnel server launcher.
// main 包是 stctl（SeaTunnel 服务器启动器）的入口点。
//
// stctl starts, stops and inspects one SeaTunnel engine server per runtime
// directory and manages the connector packages installed into it.
// stctl 为每个运行时目录启动、停止和检查一个 SeaTunnel 引擎服务器，并管理安装到其中的连接器包。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/spf13/cobra"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(int(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)))
}

// run executes one command line and returns the exit status
// run 执行一条命令行并返回退出码
func run(ctx context.Context, args []string, stdout, stderr io.Writer) launcher.ExitCode {
	a := newApp(stdout, stderr)
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return launcher.ExitCodeFor(err)
	}
	return launcher.ExitOK
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "stctl",
		Short: "SeaTunnel server launcher and connector package controller",
		Long: `stctl controls a SeaTunnel engine server on this node.
stctl 控制本节点上的 SeaTunnel 引擎服务器。

- start, stop and restart the server, in the background or in the foreground
- wait for the REST API to report the node as started
- add, install, uninstall and remove connector packages as one transaction`,
		Args:              noArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", launcher.ErrInvalidArgument, err)
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&a.flags.configFile, "config", "c", "", "config file path (default: /etc/stctl/config.yaml)")
	flags.BoolVarP(&a.flags.quiet, "quiet", "q", false, "no progress output, warnings and errors only")
	flags.BoolVarP(&a.flags.debug, "debug", "d", false, "debug logging and command tracing")

	root.AddCommand(serverCommands(a)...)
	root.AddCommand(packageCommands(a)...)
	root.AddCommand(showconfCmd(a), versionCmd())
	return root
}

// showconfCmd prints the effective configuration
// showconfCmd 打印生效的配置
func showconfCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "showconf",
		Short: "Print the effective configuration / 打印生效的配置",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.Redacted().ToYAML()
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information / 打印版本信息",
		Args:  noArgs,
		// No configuration is needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stctl\n")
			fmt.Fprintf(out, "  Version:    %s\n", Version)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

// noArgs rejects positional arguments with an invalid-argument error
// noArgs 以参数错误拒绝位置参数
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		if !cmd.HasParent() {
			return fmt.Errorf("%w: unknown command %q", launcher.ErrInvalidArgument, args[0])
		}
		return fmt.Errorf("%w: %s takes no arguments, got %q", launcher.ErrInvalidArgument, cmd.Name(), args)
	}
	return nil
}

// minArgs requires at least n positional arguments
// minArgs 要求至少 n 个位置参数
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s needs at least %d argument(s)", launcher.ErrInvalidArgument, cmd.Name(), n)
		}
		return nil
	}
}

var errBothFormats = errors.New("--xml and --json are mutually exclusive")
