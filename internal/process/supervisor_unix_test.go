//go:build !windows

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
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSpawnCapturesOutputAndExits(t *testing.T) {
	sup := NewSupervisor()
	logFile := filepath.Join(t.TempDir(), "logs", "console.log")

	h, err := sup.Spawn(context.Background(), &Command{
		Path:    "/bin/sh",
		Args:    []string{"-c", "echo booting; echo failed to bind >&2; exit 3"},
		LogFile: logFile,
	})
	require.NoError(t, err)
	assert.Positive(t, h.PID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, h.Wait(ctx))
	assert.False(t, h.Alive())

	out, err := h.Output(10)
	require.NoError(t, err)
	assert.Contains(t, out, "booting")
	assert.Contains(t, out, "failed to bind")
}

func TestSpawnFindAndKill(t *testing.T) {
	sup := NewSupervisor()
	marker := "stctl-test-" + strconv.Itoa(os.Getpid())

	h, err := sup.Spawn(context.Background(), &Command{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 30; true", marker},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Kill(h.PID) })

	assert.True(t, h.Alive())
	assert.True(t, sup.IsAlive(h.PID))

	pid, found, err := sup.FindPID(context.Background(), marker)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, h.PID, pid)

	require.NoError(t, sup.Kill(h.PID))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.Wait(ctx)
	assert.False(t, h.Alive())
	assert.False(t, sup.IsAlive(h.PID))
}

func TestFindPIDNoMatch(t *testing.T) {
	pid, found, err := NewSupervisor().FindPID(context.Background(), "no-such-process-signature-42")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, pid)
}

func TestSpawnRejectsEmptyCommand(t *testing.T) {
	_, err := NewSupervisor().Spawn(context.Background(), &Command{})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestSpawnMissingExecutable(t *testing.T) {
	_, err := NewSupervisor().Spawn(context.Background(), &Command{Path: "/nonexistent/server"})
	assert.ErrorIs(t, err, ErrSpawnFailed)
}

func TestIsAliveInvalidPID(t *testing.T) {
	sup := NewSupervisor()
	assert.False(t, sup.IsAlive(0))
	assert.False(t, sup.IsAlive(-1))
	assert.ErrorIs(t, sup.Terminate(0), ErrProcessNotFound)
}

func TestCommandHelper(t *testing.T) {
	log := zap.NewNop()

	ok := NewCommandHelper(&Command{Path: "/bin/sh", Args: []string{"-c", "exit 0"}}, log)
	assert.NoError(t, ok.Stop(context.Background()))

	failing := NewCommandHelper(&Command{Path: "/bin/sh", Args: []string{"-c", "echo no cluster; exit 1"}}, log)
	err := failing.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cluster")

	slow := NewCommandHelper(&Command{Path: "/bin/sh", Args: []string{"-c", "exec sleep 30"}}, log)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.Error(t, slow.Stop(ctx))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSignalHelper(t *testing.T) {
	sup := NewSupervisor()
	h, err := sup.Spawn(context.Background(), &Command{Path: "/bin/sh", Args: []string{"-c", "exec sleep 30"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Kill(h.PID) })

	helper := NewSignalHelper(sup, func(context.Context) (int, bool, error) { return h.PID, true, nil })
	require.NoError(t, helper.Stop(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.Wait(ctx)
	assert.False(t, h.Alive())

	gone := NewSignalHelper(sup, func(context.Context) (int, bool, error) { return 0, false, nil })
	assert.NoError(t, gone.Stop(context.Background()))
}
