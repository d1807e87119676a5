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
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/seatunnel/launcher/internal/history"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/marketplace"
	"github.com/spf13/cobra"
)

// packageOp is one coordinator call
type packageOp func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error)

// packageCommands builds the mp-* commands
// packageCommands 构建 mp-* 命令
func packageCommands(a *app) []*cobra.Command {
	defs := []struct {
		use   string
		short string
		args  cobra.PositionalArgs
		op    packageOp
	}{
		{"mp-add SOURCE...", "Add packages to the cache from a path or URL / 从路径或 URL 添加包到缓存", minArgs(1),
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				return c.Add(ctx, args, opts)
			}},
		{"mp-install NAME...", "Install cached packages / 安装已缓存的包", minArgs(1),
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				return c.Install(ctx, args, opts)
			}},
		{"mp-uninstall NAME...", "Uninstall packages, keeping them cached / 卸载包，保留缓存", minArgs(1),
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				return c.Uninstall(ctx, args, opts)
			}},
		{"mp-remove NAME...", "Remove uninstalled packages from the cache / 从缓存中删除未安装的包", minArgs(1),
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				return c.Remove(ctx, args, opts)
			}},
		{"mp-request [+|-]NAME...", "Apply a combined request: NAME adds, +NAME installs, -NAME uninstalls / 应用组合请求", minArgs(1),
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				req, err := marketplace.ParseCompound(args)
				if err != nil {
					return nil, err
				}
				return c.Apply(ctx, req, opts)
			}},
		{"mp-set [NAME...]", "Make the installed packages exactly NAME... / 使已安装的包恰好为 NAME...", cobra.ArbitraryArgs,
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				return c.Set(ctx, args, opts)
			}},
		{"mp-reset", "Uninstall every package / 卸载所有包", noArgs,
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				return c.Reset(ctx, opts)
			}},
		{"mp-purge", "Uninstall every package and empty the cache / 卸载所有包并清空缓存", noArgs,
			func(ctx context.Context, c *marketplace.Coordinator, args []string, opts marketplace.Options) (*marketplace.Outcome, error) {
				return c.Purge(ctx, opts)
			}},
	}

	cmds := make([]*cobra.Command, 0, len(defs)+2)
	for _, def := range defs {
		op := def.op
		c := &cobra.Command{
			Use:   def.use,
			Short: def.short,
			Args:  def.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runPackageOp(cmd, args, op)
			},
		}
		c.Flags().BoolVar(&a.flags.noDeps, "nodeps", false, "issue direct operations instead of one combined request")
		c.Flags().BoolVar(&a.flags.ignoreMissing, "ignore-missing", false, "skip unknown packages instead of failing")
		c.Flags().BoolVar(&a.flags.xml, "xml", false, "print the command set as XML")
		c.Flags().BoolVar(&a.flags.json, "json", false, "print the command set as JSON")
		cmds = append(cmds, c)
	}

	// -NAME tokens are not flags once the first package token is seen, so
	// flags go first and a leading -NAME needs "--" in front of it
	// 出现第一个包参数后 -NAME 不再被解析为标志；标志需放在前面，开头的 -NAME 需要在前面加 "--"
	for _, c := range cmds {
		if c.Name() == "mp-request" {
			c.Flags().SetInterspersed(false)
		}
	}

	list := &cobra.Command{
		Use:   "mp-list",
		Short: "List installed and cached packages / 列出已安装和已缓存的包",
		Args:  noArgs,
		RunE:  a.runPackageList,
	}
	list.Flags().BoolVar(&a.flags.json, "json", false, "print the packages as JSON")

	hist := &cobra.Command{
		Use:   "mp-history",
		Short: "Show recent package transactions / 显示最近的包事务",
		Args:  noArgs,
		RunE:  a.runPackageHistory,
	}
	hist.Flags().IntVar(&a.flags.limit, "limit", history.DefaultListLimit, "number of transactions to show")
	hist.Flags().BoolVar(&a.flags.json, "json", false, "print the transactions as JSON")

	return append(cmds, list, hist)
}

// runPackageOp prints the command set in every case, so a partially
// applied transaction is always visible
// runPackageOp 在任何情况下都输出命令集，使部分应用的事务始终可见
func (a *app) runPackageOp(cmd *cobra.Command, args []string, op packageOp) error {
	format, err := a.outputFormat()
	if err != nil {
		return err
	}
	coordinator, err := a.packageCoordinator(cmd.Context())
	if err != nil {
		return err
	}

	outcome, opErr := op(cmd.Context(), coordinator, args, marketplace.Options{
		NoDeps:        a.flags.noDeps,
		IgnoreMissing: a.flags.ignoreMissing,
	})
	if outcome != nil && outcome.CommandSet != nil {
		if err := outcome.CommandSet.Render(a.stdout, format); err != nil {
			return err
		}
	}
	return opErr
}

type packageList struct {
	Installed []marketplace.Package `json:"installed"`
	Cached    []marketplace.Package `json:"cached"`
}

func (a *app) runPackageList(cmd *cobra.Command, args []string) error {
	if _, err := a.packageCoordinator(cmd.Context()); err != nil {
		return err
	}
	installed, err := a.broker.Installed(cmd.Context())
	if err != nil {
		return err
	}
	cached, err := a.broker.Cached(cmd.Context())
	if err != nil {
		return err
	}

	if a.flags.json {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(packageList{Installed: installed, Cached: cached})
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tNAME\tVERSION\tSIZE\tPATH")
	for _, group := range []struct {
		state string
		pkgs  []marketplace.Package
	}{{"installed", installed}, {"cached", cached}} {
		for _, p := range group.pkgs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", group.state, p.Name, p.Version, p.Size, p.Path)
		}
	}
	return w.Flush()
}

func (a *app) runPackageHistory(cmd *cobra.Command, args []string) error {
	if a.flags.limit < 1 {
		return fmt.Errorf("%w: --limit must be positive", launcher.ErrInvalidArgument)
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	repo, err := a.historyRepo(cmd.Context())
	if err != nil {
		return err
	}
	if repo == nil {
		return fmt.Errorf("%w: package history is disabled (history.enabled)", launcher.ErrNotConfigured)
	}

	entries, err := repo.List(cmd.Context(), a.flags.limit)
	if err != nil {
		return err
	}

	if a.flags.json {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTION\tRESULT\tCOMMANDS\tFAILED\tFINISHED")
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.CommandSetID, e.Action, result, e.Total, e.Failed, e.FinishedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
