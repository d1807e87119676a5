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

// Package main runs the stub engine server: a process that answers the
// SeaTunnel REST endpoints used by stctl, for local rehearsals of start and
// stop through the command adapter.
// main 包运行桩引擎服务器：一个响应 stctl 所用 SeaTunnel REST 接口的进程，
// 用于通过 command 适配器在本地演练启动和停止。
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/seatunnel/launcher/internal/config"
	"github.com/seatunnel/launcher/internal/logger"
	"github.com/seatunnel/launcher/internal/otel_trace"
	"github.com/seatunnel/launcher/internal/stub"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownGrace = 5 * time.Second

type stubFlags struct {
	port       int
	readyAfter time.Duration
	unhealthy  []string
	version    string
	logLevel   string
	otlp       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f stubFlags
	cmd := &cobra.Command{
		Use:          "stubserver",
		Short:        "Stub SeaTunnel engine server / 桩 SeaTunnel 引擎服务器",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(config.LogConfig{Level: f.logLevel}, logger.VerbosityNormal)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			otel_trace.Init(ctx, config.TelemetryConfig{
				Enabled:     f.otlp != "",
				Endpoint:    f.otlp,
				Insecure:    true,
				ServiceName: "stubserver",
			}, log)
			defer otel_trace.Shutdown(context.Background())

			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", f.port))
			if err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)
			srv := stub.New(stub.Options{
				ReadyAfter: f.readyAfter,
				Unhealthy:  f.unhealthy,
				Version:    f.version,
			}, log)
			return serve(ctx, ln, srv, log)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.port, "port", config.DefaultHTTPPort, "REST API port")
	flags.DurationVar(&f.readyAfter, "ready-after", 0, "answer /overview with 503 for this long")
	flags.StringSliceVar(&f.unhealthy, "unhealthy", nil, "components to report as failed once started")
	flags.StringVar(&f.version, "version", "", "projectVersion to report")
	flags.StringVar(&f.logLevel, "log-level", "info", "log level")
	flags.StringVar(&f.otlp, "otlp-endpoint", "", "export traces to this OTLP gRPC endpoint")
	return cmd
}

// serve runs the router on ln until ctx is done or POST /shutdown arrives
// serve 在 ln 上运行路由，直到 ctx 结束或收到 POST /shutdown
func serve(ctx context.Context, ln net.Listener, srv *stub.Server, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	srv.OnShutdown(cancel)

	httpSrv := &http.Server{Handler: srv.Router(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()
	log.Info("Stub server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Stub server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
