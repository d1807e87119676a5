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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/seatunnel/launcher/internal/history"
	"github.com/seatunnel/launcher/internal/launcher"
	"github.com/seatunnel/launcher/internal/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	t          *testing.T
	configPath string
	home       string
	runtimeDir string
}

// newCLIEnv writes a config using the command adapter with a signature no
// real process carries
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		t:          t,
		configPath: filepath.Join(dir, "stctl.yaml"),
		home:       filepath.Join(dir, "server"),
		runtimeDir: filepath.Join(dir, "run"),
	}
	require.NoError(t, os.MkdirAll(env.home, 0755))

	signature := "stctl-cli-" + strconv.Itoa(os.Getpid())
	content := fmt.Sprintf(`server:
  home: %q
  adapter: command
  start_command: [%q]
  signature: %q
runtime:
  dir: %q
history:
  enabled: true
  type: sqlite
log:
  level: error
`, env.home, filepath.Join(dir, "no-such-server"), signature, env.runtimeDir)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0644))
	return env
}

func (e *cliEnv) run(args ...string) (launcher.ExitCode, string, string) {
	e.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-c", e.configPath, "-q"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (e *cliEnv) writeJar(name string) string {
	e.t.Helper()
	path := filepath.Join(e.t.TempDir(), name)
	require.NoError(e.t, os.WriteFile(path, []byte("PK fake jar"), 0644))
	return path
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	code := run(context.Background(), []string{"version"}, &stdout, &bytes.Buffer{})
	assert.Equal(t, launcher.ExitOK, code)
	assert.Contains(t, stdout.String(), "Version:    dev")
}

func TestInvalidArguments(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"launch"}},
		{"excess arguments", []string{"status", "now"}},
		{"unknown flag", []string{"stop", "--force"}},
		{"missing package names", []string{"mp-install"}},
		{"both output formats", []string{"mp-reset", "--xml", "--json"}},
		{"lenient and strict", []string{"start", "--lenient", "--strict"}},
		{"conflicting request", []string{"mp-request", "kafka", "+kafka"}},
		{"malformed token", []string{"mp-request", "+"}},
		{"flag after package tokens", []string{"mp-request", "kafka", "--nodeps"}},
		{"non-positive limit", []string{"mp-history", "--limit", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := env.run(tt.args...)
			assert.Equal(t, launcher.ExitInvalid, code, stderr)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestStatusAndStopWithoutServer(t *testing.T) {
	env := newCLIEnv(t)

	code, stdout, _ := env.run("status")
	assert.Equal(t, launcher.ExitNotRunning, code)
	assert.Contains(t, stdout, "not running")

	code, stdout, _ = env.run("status", "--json")
	assert.Equal(t, launcher.ExitNotRunning, code)
	var report launcher.StatusReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.False(t, report.Running)

	code, _, stderr := env.run("stop")
	assert.Equal(t, launcher.ExitOK, code, stderr)
}

func TestStartNotInstalled(t *testing.T) {
	env := newCLIEnv(t)
	missing := filepath.Join(t.TempDir(), "absent")
	override := fmt.Sprintf("server:\n  home: %q\n  adapter: seatunnel\nruntime:\n  dir: %q\n", missing, env.runtimeDir)
	require.NoError(t, os.WriteFile(env.configPath, []byte(override), 0644))

	code, _, stderr := env.run("start", "--start-timeout", "1s")
	assert.Equal(t, launcher.ExitNotInstalled, code, stderr)
}

func TestStartNotConfigured(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("STCTL_SERVER_ADAPTER", "tomcat")

	code, _, stderr := env.run("startbg")
	assert.Equal(t, launcher.ExitNotConfigured, code, stderr)
}

func TestShowconfRedactsSecrets(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("STCTL_HISTORY_PASSWORD", "s3cret")

	code, stdout, _ := env.run("showconf")
	require.Equal(t, launcher.ExitOK, code)
	assert.Contains(t, stdout, "home: "+env.home)
	assert.Contains(t, stdout, "******")
	assert.NotContains(t, stdout, "s3cret")
}

func TestPackageLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	jar := env.writeJar("connector-kafka-2.3.8.jar")

	code, stdout, stderr := env.run("mp-add", jar, "--json")
	require.Equal(t, launcher.ExitOK, code, stderr)
	var added marketplace.CommandSet
	require.NoError(t, json.Unmarshal([]byte(stdout), &added))
	require.Len(t, added.Commands, 1)
	assert.Equal(t, "kafka", added.Commands[0].Package)
	assert.True(t, added.Commands[0].Success)

	code, stdout, stderr = env.run("mp-install", "kafka")
	require.Equal(t, launcher.ExitOK, code, stderr)
	assert.Contains(t, stdout, "kafka")
	assert.FileExists(t, filepath.Join(env.home, "connectors", "connector-kafka-2.3.8.jar"))

	code, stdout, _ = env.run("mp-list", "--json")
	require.Equal(t, launcher.ExitOK, code)
	var list packageList
	require.NoError(t, json.Unmarshal([]byte(stdout), &list))
	require.Len(t, list.Installed, 1)
	assert.Equal(t, "2.3.8", list.Installed[0].Version)
	assert.Len(t, list.Cached, 1)

	code, stdout, _ = env.run("mp-install", "jdbc")
	assert.Equal(t, launcher.ExitError, code)
	assert.Contains(t, stdout, "FAILED", "a failed transaction still prints its command set")

	code, stdout, _ = env.run("mp-history", "--json")
	require.Equal(t, launcher.ExitOK, code)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 3)
	assert.False(t, entries[0].Success, "newest first")
	assert.True(t, entries[2].Success)

	code, stdout, _ = env.run("mp-history", "--limit", "1")
	require.Equal(t, launcher.ExitOK, code)
	assert.Contains(t, stdout, "failed")

	code, stdout, stderr = env.run("mp-request", "--", "-kafka")
	require.Equal(t, launcher.ExitOK, code, stderr)
	assert.Contains(t, stdout, "uninstall")
	assert.NoFileExists(t, filepath.Join(env.home, "connectors", "connector-kafka-2.3.8.jar"))

	code, _, stderr = env.run("mp-install", "kafka")
	require.Equal(t, launcher.ExitOK, code, stderr)

	code, stdout, stderr = env.run("mp-set", "--xml")
	require.Equal(t, launcher.ExitOK, code, stderr)
	assert.Contains(t, stdout, "<commandset")
	assert.NoFileExists(t, filepath.Join(env.home, "connectors", "connector-kafka-2.3.8.jar"))

	code, _, stderr = env.run("mp-purge")
	require.Equal(t, launcher.ExitOK, code, stderr)
	code, stdout, _ = env.run("mp-list")
	require.Equal(t, launcher.ExitOK, code)
	assert.NotContains(t, stdout, "kafka")
}

func TestPackageHistoryDisabled(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("STCTL_HISTORY_ENABLED", "false")

	code, _, stderr := env.run("mp-history")
	assert.Equal(t, launcher.ExitNotConfigured, code, stderr)
}
