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

package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/seatunnel/launcher/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func TestNewConsoleLevels(t *testing.T) {
	tests := []struct {
		name      string
		verbosity Verbosity
		wantInfo  bool
		wantDebug bool
	}{
		{name: "normal", verbosity: VerbosityNormal, wantInfo: true},
		{name: "quiet", verbosity: VerbosityQuiet},
		{name: "debug", verbosity: VerbosityDebug, wantInfo: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log, err := NewWithWriter(config.LogConfig{Level: "info"}, tt.verbosity, &buf)
			require.NoError(t, err)

			log.Debug("debug-line")
			log.Info("info-line")
			log.Warn("warn-line")
			_ = log.Sync()

			out := buf.String()
			assert.Contains(t, out, "warn-line")
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info-line")))
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug-line")))
		})
	}
}

func TestNewFileSink(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "stctl.log")
	var console bytes.Buffer

	log, err := NewWithWriter(config.LogConfig{
		Level:      "info",
		Format:     "json",
		FilePath:   logFile,
		MaxSize:    1,
		MaxBackups: 1,
	}, VerbosityQuiet, &console)
	require.NoError(t, err)

	log.Info("server started", zap.Int("pid", 4242))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"server started"`)
	assert.Contains(t, string(data), `"pid":4242`)
	assert.NotContains(t, console.String(), "server started")
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := NewWithWriter(config.LogConfig{Level: "loud"}, VerbosityNormal, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "info"}, VerbosityNormal, &buf)
	require.NoError(t, err)

	Ctx(context.Background(), log).Info("traced record")
	_ = log.Sync()
	assert.Contains(t, buf.String(), "traced record")
}

func TestCtxAttachesTraceID(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "info"}, VerbosityNormal, &buf)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("stctl").Start(context.Background(), "launcher.start")
	defer span.End()

	Ctx(ctx, log).Info("Server process spawned", zap.Int("pid", 4242))
	_ = log.Sync()

	assert.Contains(t, buf.String(), "Server process spawned")
	assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())
}
