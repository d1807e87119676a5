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

// Package status talks to the REST API of the supervised server.
// status 包与被监管服务器的 REST API 通信。
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultHealthPath answers as soon as the HTTP listener is up
	// DefaultHealthPath 在 HTTP 监听启动后即可响应
	DefaultHealthPath = "/health"

	// DefaultStatusPath is the engine overview, served once the node has joined
	// DefaultStatusPath 是引擎概览，节点加入集群后提供
	DefaultStatusPath = "/overview"

	// DefaultRequestTimeout bounds a single probe
	// DefaultRequestTimeout 限制单次探测时间
	DefaultRequestTimeout = 5 * time.Second
)

// ErrUnexpectedStatus indicates the server answered with an unusable response
// ErrUnexpectedStatus 表示服务器返回了不可用的响应
var ErrUnexpectedStatus = errors.New("unexpected status response")

// Report is the server's view of its own startup
// Report 是服务器对自身启动情况的描述
type Report struct {
	Started bool     `json:"started"`
	Healthy bool     `json:"healthy"`
	Summary string   `json:"summary,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

// payload mirrors Report with optional fields. The engine overview carries
// none of them; answering 200 there means started and healthy.
type payload struct {
	Started *bool    `json:"started"`
	Healthy *bool    `json:"healthy"`
	Summary string   `json:"summary"`
	Failed  []string `json:"failed"`

	ProjectVersion string `json:"projectVersion"`
	RunningJobs    string `json:"runningJobs"`
}

// Options configures a Client
// Options 配置 Client
type Options struct {
	HealthPath string
	StatusPath string
	Timeout    time.Duration
}

// Client is the status client
// Client 是状态客户端
type Client struct {
	baseURL    string
	opts       Options
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client for baseURL (for example http://127.0.0.1:8080)
// NewClient 为 baseURL 创建 Client
func NewClient(baseURL string, opts Options, logger *zap.Logger) *Client {
	if opts.HealthPath == "" {
		opts.HealthPath = DefaultHealthPath
	}
	if opts.StatusPath == "" {
		opts.StatusPath = DefaultStatusPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the server address
// BaseURL 返回服务器地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Reachable reports whether the server answers HTTP at all.
// Any status code counts; only transport failures do not.
// Reachable 报告服务器是否响应 HTTP。任何状态码都算，只有传输失败不算。
func (c *Client) Reachable(ctx context.Context) bool {
	resp, err := c.get(ctx, c.opts.HealthPath)
	if err != nil {
		c.logger.Debug("Health endpoint unreachable", zap.String("url", c.baseURL+c.opts.HealthPath), zap.Error(err))
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}

// Started asks whether the application has fully started
// Started 询问应用是否已完全启动
func (c *Client) Started(ctx context.Context) (Report, error) {
	resp, err := c.get(ctx, c.opts.StatusPath)
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Report{}, fmt.Errorf("failed to read status response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusNotFound:
		// Still booting / 仍在启动
		report := Report{}
		if len(body) > 0 {
			var p payload
			if json.Unmarshal(body, &p) == nil {
				report.Summary = p.Summary
				report.Failed = p.Failed
			}
		}
		return report, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Report{}, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, c.opts.StatusPath, resp.StatusCode)
	}

	var p payload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			return Report{}, fmt.Errorf("%w: %v", ErrUnexpectedStatus, err)
		}
	}

	report := Report{Started: true, Healthy: true, Summary: p.Summary, Failed: p.Failed}
	if p.Started != nil {
		report.Started = *p.Started
	}
	if p.Healthy != nil {
		report.Healthy = *p.Healthy
	}
	if len(report.Failed) > 0 {
		report.Healthy = false
	}
	if report.Summary == "" && p.ProjectVersion != "" {
		report.Summary = fmt.Sprintf("SeaTunnel %s, running jobs: %s", p.ProjectVersion, p.RunningJobs)
	}
	return report, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}
