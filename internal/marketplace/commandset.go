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

package marketplace

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
)

// Package operations
// 包操作
const (
	OpAdd       = "add"
	OpInstall   = "install"
	OpUninstall = "uninstall"
	OpRemove    = "remove"
	OpResume    = "resume"
)

// Output formats for Render
// Render 的输出格式
const (
	FormatText = "text"
	FormatXML  = "xml"
	FormatJSON = "json"
)

// PackageCommand is one operation on one package
// PackageCommand 是对单个包的一次操作
type PackageCommand struct {
	Operation string `json:"operation" xml:"operation,attr"`
	Package   string `json:"package" xml:"package,attr"`
	Version   string `json:"version,omitempty" xml:"version,attr,omitempty"`
	Success   bool   `json:"success" xml:"success,attr"`
	Skipped   bool   `json:"skipped,omitempty" xml:"skipped,attr,omitempty"`
	Message   string `json:"message,omitempty" xml:",chardata"`
}

// CommandSet is the broker's account of a transaction, including the parts
// that failed
// CommandSet 是代理对事务的记录，包括失败的部分
type CommandSet struct {
	XMLName    xml.Name         `json:"-" xml:"commandset"`
	ID         string           `json:"id" xml:"id,attr"`
	Action     string           `json:"action" xml:"action,attr"`
	StartedAt  time.Time        `json:"started_at" xml:"started,attr"`
	FinishedAt time.Time        `json:"finished_at" xml:"finished,attr"`
	Commands   []PackageCommand `json:"commands" xml:"command"`
}

// NewCommandSet starts a command set for action
// NewCommandSet 为 action 创建命令集
func NewCommandSet(action string) *CommandSet {
	return &CommandSet{
		ID:        uuid.New().String(),
		Action:    action,
		StartedAt: time.Now(),
	}
}

// Record appends a command
// Record 追加一条命令
func (cs *CommandSet) Record(cmd PackageCommand) {
	cs.Commands = append(cs.Commands, cmd)
}

// Finish stamps the end time and returns the overall success
// Finish 记录结束时间并返回整体是否成功
func (cs *CommandSet) Finish() bool {
	cs.FinishedAt = time.Now()
	return cs.Success()
}

// Success reports whether no command failed
// Success 报告是否没有命令失败
func (cs *CommandSet) Success() bool {
	if cs == nil {
		return true
	}
	for _, cmd := range cs.Commands {
		if !cmd.Success {
			return false
		}
	}
	return true
}

// Failed returns the failed commands
// Failed 返回失败的命令
func (cs *CommandSet) Failed() []PackageCommand {
	var failed []PackageCommand
	for _, cmd := range cs.Commands {
		if !cmd.Success {
			failed = append(failed, cmd)
		}
	}
	return failed
}

// Merge combines several command sets under one action, in order
// Merge 按顺序将多个命令集合并到一个 action 下
func Merge(action string, sets ...*CommandSet) *CommandSet {
	merged := NewCommandSet(action)
	first := true
	for _, cs := range sets {
		if cs == nil {
			continue
		}
		if first || cs.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = cs.StartedAt
		}
		if cs.FinishedAt.After(merged.FinishedAt) {
			merged.FinishedAt = cs.FinishedAt
		}
		first = false
		merged.Commands = append(merged.Commands, cs.Commands...)
	}
	if merged.FinishedAt.IsZero() {
		merged.FinishedAt = time.Now()
	}
	return merged
}

// Render writes the command set as text, xml or json
// Render 以 text、xml 或 json 格式输出命令集
func (cs *CommandSet) Render(w io.Writer, format string) error {
	switch format {
	case FormatXML:
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		if err := enc.Encode(cs); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cs)
	case FormatText, "":
		return cs.renderText(w)
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidArgument, format)
	}
}

func (cs *CommandSet) renderText(w io.Writer) error {
	if len(cs.Commands) == 0 {
		_, err := fmt.Fprintf(w, "%s: nothing to do\n", cs.Action)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tPACKAGE\tVERSION\tRESULT\tMESSAGE")
	for _, cmd := range cs.Commands {
		result := "ok"
		switch {
		case cmd.Skipped:
			result = "skipped"
		case !cmd.Success:
			result = "FAILED"
		}
		version := cmd.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", cmd.Operation, cmd.Package, version, result, oneLine(cmd.Message))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	status := "succeeded"
	if !cs.Success() {
		status = fmt.Sprintf("failed (%d of %d commands)", len(cs.Failed()), len(cs.Commands))
	}
	_, err := fmt.Fprintf(w, "%s %s\n", cs.Action, status)
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
