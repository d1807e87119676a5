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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/shutdown"
	"github.com/spf13/cobra"
)

// serverCommands builds start, startbg, stop, restart, restartbg, console and status
// serverCommands 构建服务器生命周期命令
func serverCommands(a *app) []*cobra.Command {
	start := &cobra.Command{
		Use:   "start",
		Short: "Start the server and wait until it is ready / 启动服务器并等待就绪",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStart(cmd, launcher.Wait, false)
		},
	}
	startbg := &cobra.Command{
		Use:   "startbg",
		Short: "Start the server without waiting / 启动服务器，不等待就绪",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStart(cmd, launcher.Background, false)
		},
	}
	restart := &cobra.Command{
		Use:   "restart",
		Short: "Stop, then start the server and wait / 停止后重新启动服务器并等待就绪",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStart(cmd, launcher.Wait, true)
		},
	}
	restartbg := &cobra.Command{
		Use:   "restartbg",
		Short: "Stop, then start the server without waiting / 停止后重新启动服务器，不等待",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStart(cmd, launcher.Background, true)
		},
	}
	console := &cobra.Command{
		Use:   "console",
		Short: "Run the server in the foreground / 在前台运行服务器",
		Args:  noArgs,
		RunE:  a.runConsole,
	}
	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the server / 停止服务器",
		Args:  noArgs,
		RunE:  a.runStop,
	}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the server runs and is started / 显示服务器运行和启动状态",
		Args:  noArgs,
		RunE:  a.runStatus,
	}

	for _, c := range []*cobra.Command{start, startbg, restart, restartbg, console} {
		c.Flags().DurationVar(&a.flags.startTimeout, "start-timeout", 0, "override launcher.start_timeout")
		c.Flags().BoolVar(&a.flags.ignoreMissing, "ignore-missing", false, "skip unknown packages while applying pending installs")
	}
	for _, c := range []*cobra.Command{start, restart, console} {
		c.Flags().BoolVar(&a.flags.lenient, "lenient", false, "accept a start with failed components")
		c.Flags().BoolVar(&a.flags.strict, "strict", false, "fail a start with failed components (default)")
	}
	for _, c := range []*cobra.Command{stop, restart, restartbg, console} {
		c.Flags().DurationVar(&a.flags.stopTimeout, "stop-timeout", 0, "override launcher.stop_timeout")
	}
	statusCmd.Flags().BoolVar(&a.flags.json, "json", false, "print the status as JSON")

	return []*cobra.Command{start, startbg, stop, restart, restartbg, console, statusCmd}
}

func (a *app) runStart(cmd *cobra.Command, mode launcher.StartMode, restart bool) error {
	l, err := a.newLauncher(cmd.Context())
	if err != nil {
		return err
	}

	var res *launcher.StartResult
	if restart {
		res, err = l.Restart(cmd.Context(), mode)
	} else {
		res, err = l.Start(cmd.Context(), mode)
	}
	if err != nil {
		return err
	}

	if !a.flags.quiet {
		if mode == launcher.Background {
			fmt.Fprintf(a.stdout, "Server started in the background (PID %d), console log %s\n", res.PID, res.LogFile)
		} else {
			fmt.Fprintf(a.stdout, "Server is ready (PID %d) after %s\n", res.PID, res.Readiness.Elapsed.Round(time.Millisecond))
		}
	}
	return nil
}

func (a *app) runConsole(cmd *cobra.Command, args []string) error {
	l, err := a.newLauncher(cmd.Context())
	if err != nil {
		return err
	}
	return l.Console(cmd.Context())
}

func (a *app) runStop(cmd *cobra.Command, args []string) error {
	l, err := a.newLauncher(cmd.Context())
	if err != nil {
		return err
	}
	res, err := l.Stop(cmd.Context())
	if err != nil {
		return err
	}
	if a.flags.quiet {
		return nil
	}
	switch res.State {
	case shutdown.NotRunning:
		fmt.Fprintln(a.stdout, "Server is not running")
	case shutdown.Killed:
		fmt.Fprintf(a.stdout, "Server (PID %d) did not stop in time and was killed\n", res.PID)
	default:
		fmt.Fprintf(a.stdout, "Server (PID %d) stopped\n", res.PID)
	}
	return nil
}

func (a *app) runStatus(cmd *cobra.Command, args []string) error {
	l, err := a.newLauncher(cmd.Context())
	if err != nil {
		return err
	}
	report, err := l.Status(cmd.Context())
	if err != nil && !errors.Is(err, launcher.ErrNotRunning) {
		return err
	}

	if a.flags.json {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
		return err
	}

	if !report.Running {
		fmt.Fprintln(a.stdout, "Server is not running")
		return err
	}
	fmt.Fprintf(a.stdout, "Server is running (PID %d)\n", report.PID)
	switch {
	case !report.Reachable:
		fmt.Fprintf(a.stdout, "  REST API: %s\n", report.Summary)
	case report.Started:
		fmt.Fprintf(a.stdout, "  Started:  yes, healthy=%v\n", report.Healthy)
	default:
		fmt.Fprintln(a.stdout, "  Started:  no")
	}
	if report.Summary != "" && report.Reachable {
		fmt.Fprintf(a.stdout, "  Summary:  %s\n", report.Summary)
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(a.stdout, "  Failed:   %s\n", strings.Join(report.Failed, ", "))
	}
	return nil
}
