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

// Package stub is a stand-in for the engine REST API. It lets the launcher
// rehearse start, readiness and stop without a JVM.
// stub 包模拟引擎 REST API，使启动器无需 JVM 即可演练启动、就绪和停止。
package stub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Options configures the stub server
// Options 配置桩服务器
type Options struct {
	// ReadyAfter is how long /overview keeps answering 503
	// ReadyAfter 是 /overview 持续返回 503 的时长
	ReadyAfter time.Duration

	// Unhealthy lists components reported as failed once started
	// Unhealthy 列出启动后报告为失败的组件
	Unhealthy []string

	// Version is reported as projectVersion
	// Version 作为 projectVersion 返回
	Version string

	// ServiceName names the otelgin spans
	// ServiceName 用于命名 otelgin span
	ServiceName string
}

// Server holds the stub state
// Server 保存桩服务器状态
type Server struct {
	opts    Options
	logger  *zap.Logger
	started time.Time
	now     func() time.Time

	mu         sync.Mutex
	onShutdown func()
	shutdown   bool
}

// New creates a stub Server; the readiness clock starts now
// New 创建桩服务器；就绪计时从现在开始
func New(opts Options, logger *zap.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "2.3.8-stub"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "stubserver"
	}
	return &Server{opts: opts, logger: logger, started: time.Now(), now: time.Now}
}

// OnShutdown registers the callback for POST /shutdown
// OnShutdown 注册 POST /shutdown 的回调
func (s *Server) OnShutdown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = fn
}

// Ready reports whether the start-up delay has passed
// Ready 报告启动延迟是否已过
func (s *Server) Ready() bool {
	return s.now().Sub(s.started) >= s.opts.ReadyAfter
}

// Router builds the gin engine
// Router 构建 gin 引擎
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.opts.ServiceName), s.loggerMiddleware())

	r.GET("/health", s.health)
	r.GET("/overview", s.overview)
	r.GET("/status", s.overview)
	r.POST("/shutdown", s.requestShutdown)
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (s *Server) overview(c *gin.Context) {
	if !s.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"started": false,
			"summary": "node is joining the cluster",
		})
		return
	}

	healthy := len(s.opts.Unhealthy) == 0
	summary := "all services started"
	if !healthy {
		summary = "some services failed to start"
	}
	c.JSON(http.StatusOK, gin.H{
		"started":        true,
		"healthy":        healthy,
		"summary":        summary,
		"failed":         s.opts.Unhealthy,
		"projectVersion": s.opts.Version,
		"runningJobs":    "0",
	})
}

func (s *Server) requestShutdown(c *gin.Context) {
	s.mu.Lock()
	fn := s.onShutdown
	already := s.shutdown
	s.shutdown = true
	s.mu.Unlock()

	c.JSON(http.StatusAccepted, gin.H{"status": "STOPPING"})
	if fn != nil && !already {
		go fn()
	}
}

// loggerMiddleware writes one debug record per request
// loggerMiddleware 为每个请求写一条调试日志
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
