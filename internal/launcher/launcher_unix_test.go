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

//go:build !windows

package launcher

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/process"
	"github.com/seatunnel/launcher/internal/readiness"
	"github.com/seatunnel/launcher/internal/serverconf"
	"github.com/seatunnel/launcher/internal/shutdown"
	"github.com/seatunnel/launcher/internal/status"
	"github.com/seatunnel/launcher/internal/store"
	"github.com/seatunnel/launcher/internal/stub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// trapLoop exits on SIGTERM without leaving a child behind
const trapLoop = `trap "exit 0" TERM; while :; do sleep 0.1; done`

func realLauncher(t *testing.T, statusURL string, argv []string) (*Launcher, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	cfg.Server.Adapter = config.AdapterCommand
	cfg.Server.StartCommand = argv
	cfg.Server.Signature = argv[len(argv)-1]

	adapter, err := NewAdapter(cfg)
	require.NoError(t, err)

	resumer := new(mockResumer)
	resumer.On("Pending").Return(false)

	l := New(Deps{
		Config:      cfg,
		Adapter:     adapter,
		Generator:   serverconf.New(cfg.Server.Home, serverconf.Options{}),
		Coordinator: resumer,
		Supervisor:  process.NewSupervisor(),
		Status:      status.NewClient(statusURL, status.Options{Timeout: time.Second}, zap.NewNop()),
		PidFile:     store.NewPidFile(cfg.PidFilePath()),
		Logger:      zap.NewNop(),
		Progress:    &bytes.Buffer{},
		Stdout:      &bytes.Buffer{},
		Stderr:      &bytes.Buffer{},
	}, Options{
		Quiet:           true,
		Strict:          true,
		StartTimeout:    10 * time.Second,
		StopTimeout:     5 * time.Second,
		DrainAttempts:   1,
		PollInterval:    50 * time.Millisecond,
		PollMaxInterval: 100 * time.Millisecond,
		StopPause:       100 * time.Millisecond,
		KillConfirm:     time.Second,
	})
	l.portFree = func(int) bool { return true }
	return l, cfg
}

func TestLifecycleWithRealProcess(t *testing.T) {
	srv := stub.New(stub.Options{ReadyAfter: 200 * time.Millisecond}, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	marker := "stctl-e2e-" + strconv.Itoa(os.Getpid())
	l, cfg := realLauncher(t, ts.URL, []string{"/bin/sh", "-c", trapLoop, marker})
	sup := l.deps.Supervisor
	ctx := context.Background()

	res, err := l.Start(ctx, Wait)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Kill(res.PID) })
	assert.Equal(t, readiness.Ready, res.Readiness.State)
	assert.True(t, res.Readiness.Healthy)

	_, err = l.Start(ctx, Background)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	report, err := l.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.PID, report.PID)
	assert.True(t, report.Started)

	stopped, err := l.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, shutdown.StoppedGracefully, stopped.State)
	assert.False(t, sup.IsAlive(res.PID))

	_, statErr := os.Stat(cfg.PidFilePath())
	assert.True(t, os.IsNotExist(statErr))

	_, err = l.Status(ctx)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStartReportsEarlyExit(t *testing.T) {
	ts := httptest.NewServer(stub.New(stub.Options{}, zap.NewNop()).Router())
	defer ts.Close()

	marker := "stctl-exit-" + strconv.Itoa(os.Getpid())
	l, cfg := realLauncher(t, ts.URL, []string{"/bin/sh", "-c", "echo cannot bind port >&2; exit 1", marker})

	_, err := l.Start(context.Background(), Wait)
	assert.ErrorIs(t, err, ErrStartFailed)
	assert.Contains(t, err.Error(), "cannot bind port")

	data, readErr := os.ReadFile(filepath.Join(cfg.Runtime.Dir, commandConsoleLog))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "cannot bind port")
}

func TestConsoleReportsServerFailure(t *testing.T) {
	marker := "stctl-console-" + strconv.Itoa(os.Getpid())
	l, _ := realLauncher(t, "http://127.0.0.1:1", []string{"/bin/sh", "-c", "echo hello; exit 3", marker})
	l.notify = newFakeNotifier()

	err := l.Console(context.Background())
	assert.ErrorIs(t, err, ErrServerExited)
	assert.Contains(t, l.deps.Stdout.(*bytes.Buffer).String(), "hello")
}
