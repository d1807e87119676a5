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

package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/seatunnel/launcher/internal/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStopRealProcess(t *testing.T) {
	sup := process.NewSupervisor()

	// The shell ignores SIGTERM, so only the kill ends it
	// 该 shell 忽略 SIGTERM，只有强制终止才能结束它
	h, err := sup.Spawn(context.Background(), &process.Command{
		Path: "/bin/sh",
		Args: []string{"-c", "trap '' TERM; while true; do sleep 1; done"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Kill(h.PID) })

	finder := FinderFunc(func(context.Context) (int, bool, error) { return h.PID, h.Alive(), nil })
	helper := process.NewSignalHelper(sup, finder)

	ctrl := NewController(sup, finder, helper, Options{Pause: 100 * time.Millisecond, KillConfirm: 2 * time.Second}, zap.NewNop())
	result, err := ctrl.Stop(context.Background(), 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Killed, result.State)
	assert.False(t, h.Alive())
}

func TestStopRealProcessGracefully(t *testing.T) {
	sup := process.NewSupervisor()
	h, err := sup.Spawn(context.Background(), &process.Command{Path: "/bin/sh", Args: []string{"-c", "exec sleep 30"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Kill(h.PID) })

	finder := FinderFunc(func(context.Context) (int, bool, error) { return h.PID, h.Alive(), nil })
	ctrl := NewController(sup, finder, process.NewSignalHelper(sup, finder), Options{Pause: 100 * time.Millisecond}, zap.NewNop())

	result, err := ctrl.Stop(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StoppedGracefully, result.State)
}
