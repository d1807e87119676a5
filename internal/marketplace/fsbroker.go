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
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/seatunnel/launcher/internal/store"
	"go.uber.org/zap"
)

// DefaultDownloadTimeout bounds one package download
// DefaultDownloadTimeout 限制单个包下载的时间
const DefaultDownloadTimeout = 5 * time.Minute

// FSBroker is the default broker: a local package cache plus the server's
// connectors directory
// FSBroker 是默认代理：本地包缓存加上服务器的 connectors 目录
type FSBroker struct {
	cacheDir      string
	connectorsDir string
	marker        *store.PendingMarker
	httpClient    *http.Client
	logger        *zap.Logger
}

// FSBrokerOptions configures an FSBroker
// FSBrokerOptions 配置 FSBroker
type FSBrokerOptions struct {
	DownloadTimeout time.Duration
}

// NewFSBroker creates an FSBroker
// NewFSBroker 创建 FSBroker
func NewFSBroker(cacheDir, connectorsDir string, marker *store.PendingMarker, opts FSBrokerOptions, logger *zap.Logger) *FSBroker {
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = DefaultDownloadTimeout
	}
	return &FSBroker{
		cacheDir:      cacheDir,
		connectorsDir: connectorsDir,
		marker:        marker,
		httpClient:    &http.Client{Timeout: opts.DownloadTimeout},
		logger:        logger,
	}
}

// CacheDir returns the package cache / CacheDir 返回包缓存目录
func (b *FSBroker) CacheDir() string { return b.cacheDir }

// ConnectorsDir returns the install target / ConnectorsDir 返回安装目标目录
func (b *FSBroker) ConnectorsDir() string { return b.connectorsDir }

// Cached lists the cached packages
// Cached 列出已缓存的包
func (b *FSBroker) Cached(ctx context.Context) ([]Package, error) {
	return scanPackages(b.cacheDir)
}

// Installed lists the installed packages
// Installed 列出已安装的包
func (b *FSBroker) Installed(ctx context.Context) ([]Package, error) {
	return scanPackages(b.connectorsDir)
}

// ListInstalled returns the names of the installed packages
// ListInstalled 返回已安装包的名称
func (b *FSBroker) ListInstalled(ctx context.Context) ([]string, error) {
	pkgs, err := b.Installed(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	seen := map[string]bool{}
	for _, p := range pkgs {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	return names, nil
}

// Add puts packages into the cache from a local path, an http(s) URL, or,
// for a name already cached, does nothing
// Add 从本地路径或 http(s) URL 将包放入缓存；对已缓存的名称不做任何操作
func (b *FSBroker) Add(ctx context.Context, sources []string, opts Options) (bool, *CommandSet) {
	cs := NewCommandSet(OpAdd)
	for _, src := range sources {
		cs.Record(b.add(ctx, src, opts))
	}
	return cs.Finish(), cs
}

// Install copies the newest cached version of each package into connectors
// Install 将每个包的最新缓存版本复制到 connectors
func (b *FSBroker) Install(ctx context.Context, names []string, opts Options) (bool, *CommandSet) {
	cs := NewCommandSet(OpInstall)
	for _, name := range names {
		cs.Record(b.install(name, opts))
	}
	return cs.Finish(), cs
}

// Uninstall deletes packages from connectors
// Uninstall 从 connectors 删除包
func (b *FSBroker) Uninstall(ctx context.Context, names []string, opts Options) (bool, *CommandSet) {
	cs := NewCommandSet(OpUninstall)
	for _, name := range names {
		cs.Record(b.uninstall(name, opts))
	}
	return cs.Finish(), cs
}

// Remove deletes packages from the cache; installed packages are refused
// Remove 从缓存删除包；拒绝删除已安装的包
func (b *FSBroker) Remove(ctx context.Context, names []string, opts Options) (bool, *CommandSet) {
	cs := NewCommandSet(OpRemove)
	for _, name := range names {
		cs.Record(b.remove(name, opts))
	}
	return cs.Finish(), cs
}

// Request applies a combined transaction. Every name is resolved before
// anything changes; the pending marker covers the window in which the
// package store is being modified.
// Request 执行组合事务。修改前先解析所有名称；待安装标记覆盖包存储被修改的时间窗口。
func (b *FSBroker) Request(ctx context.Context, req *Request, opts Options) (bool, *CommandSet) {
	return b.request(ctx, req, opts, false)
}

// request is Request; with replay set, uninstalls and removes whose package
// is already gone count as applied
// request 即 Request；replay 为 true 时，包已不存在的卸载和删除视为已执行
func (b *FSBroker) request(ctx context.Context, req *Request, opts Options, replay bool) (bool, *CommandSet) {
	cs := NewCommandSet("request")

	resolved, early := b.resolve(req, opts, replay)
	for _, cmd := range early {
		cs.Record(cmd)
	}
	if !cs.Success() {
		// Nothing has been touched / 尚未修改任何内容
		return cs.Finish(), cs
	}
	if resolved.Empty() {
		// A replay whose steps were all applied before the interruption
		// 中断前所有步骤都已执行的重放
		if replay {
			if err := b.marker.Discard(); err != nil {
				cs.Record(PackageCommand{Operation: OpResume, Message: fmt.Sprintf("failed to discard pending marker: %v", err)})
			}
		}
		return cs.Finish(), cs
	}

	if err := b.marker.Save(resolved); err != nil {
		cs.Record(PackageCommand{Operation: "request", Success: false, Message: fmt.Sprintf("failed to save pending marker: %v", err)})
		return cs.Finish(), cs
	}
	b.logger.Debug("Pending install marker saved", zap.String("path", b.marker.Path()), zap.String("request", resolved.String()))

	b.apply(ctx, resolved, opts, cs)

	if cs.Finish() {
		if err := b.marker.Discard(); err != nil {
			b.logger.Warn("Failed to discard pending marker", zap.Error(err))
		}
		return true, cs
	}
	return false, cs
}

// ExecutePending replays the transaction recorded in the pending marker
// ExecutePending 重放待安装标记中记录的事务
func (b *FSBroker) ExecutePending(ctx context.Context, opts Options) (bool, *CommandSet) {
	cs := NewCommandSet(OpResume)
	if !b.marker.Exists() {
		return cs.Finish(), cs
	}

	var req Request
	err := b.marker.Load(&req)
	if err == nil && req.Empty() {
		err = errors.New("pending marker holds no packages")
	}
	if err != nil {
		if opts.IgnoreMissing {
			b.logger.Warn("Discarding unreadable pending marker", zap.String("path", b.marker.Path()), zap.Error(err))
			if discardErr := b.marker.Discard(); discardErr != nil {
				cs.Record(PackageCommand{Operation: OpResume, Message: discardErr.Error()})
				return cs.Finish(), cs
			}
			cs.Record(PackageCommand{Operation: OpResume, Success: true, Skipped: true, Message: err.Error()})
			return cs.Finish(), cs
		}
		cs.Record(PackageCommand{Operation: OpResume, Message: err.Error()})
		return cs.Finish(), cs
	}

	// Already applied steps are idempotent, so the whole request is replayed
	// 已执行的步骤是幂等的，因此重放整个请求
	replayOpts := opts
	replayOpts.NoDeps = false
	ok, replayed := b.request(ctx, &req, replayOpts, true)
	replayed.Action = OpResume
	return ok, replayed
}

// Reset uninstalls every installed package
// Reset 卸载所有已安装的包
func (b *FSBroker) Reset(ctx context.Context, opts Options) (bool, *CommandSet) {
	names, err := b.ListInstalled(ctx)
	if err != nil {
		cs := NewCommandSet("reset")
		cs.Record(PackageCommand{Operation: OpUninstall, Message: err.Error()})
		return cs.Finish(), cs
	}
	ok, cs := b.Uninstall(ctx, names, opts)
	cs.Action = "reset"
	return ok, cs
}

// Purge resets and then removes every cached package
// Purge 重置后删除所有缓存的包
func (b *FSBroker) Purge(ctx context.Context, opts Options) (bool, *CommandSet) {
	_, reset := b.Reset(ctx, opts)
	cs := Merge("purge", reset)
	if !reset.Success() {
		return cs.Finish(), cs
	}

	cached, err := b.Cached(ctx)
	if err != nil {
		cs.Record(PackageCommand{Operation: OpRemove, Message: err.Error()})
		return cs.Finish(), cs
	}
	seen := map[string]bool{}
	for _, p := range cached {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		cs.Record(b.remove(p.Name, opts))
	}
	return cs.Finish(), cs
}

// resolve checks every name of req against the package store. It returns
// the request to apply and the commands settled during resolution.
// resolve 根据包存储检查 req 中的每个名称，返回要执行的请求以及无法解析的名称对应的命令。
func (b *FSBroker) resolve(req *Request, opts Options, replay bool) (*Request, []PackageCommand) {
	cached, errCache := b.Cached(context.Background())
	installed, errInstalled := b.Installed(context.Background())
	if err := errors.Join(errCache, errInstalled); err != nil {
		return nil, []PackageCommand{{Operation: "request", Message: err.Error()}}
	}

	out := &Request{}
	var early []PackageCommand
	applied := func(op, name string) {
		early = append(early, PackageCommand{Operation: op, Package: name, Success: true, Message: "already applied"})
	}
	missing := func(op, name string, cause error) {
		cmd := PackageCommand{Operation: op, Package: name, Message: cause.Error()}
		if opts.IgnoreMissing && errors.Is(cause, ErrPackageNotFound) {
			cmd.Success = true
			cmd.Skipped = true
		}
		early = append(early, cmd)
	}

	for _, name := range req.Uninstall {
		if len(versionsOf(installed, name)) == 0 {
			if replay {
				applied(OpUninstall, name)
				continue
			}
			missing(OpUninstall, name, fmt.Errorf("%w: %s is not installed", ErrPackageNotFound, name))
			continue
		}
		out.Uninstall = append(out.Uninstall, name)
	}

	for _, name := range req.Remove {
		if len(versionsOf(cached, name)) == 0 {
			if replay {
				applied(OpRemove, name)
				continue
			}
			missing(OpRemove, name, fmt.Errorf("%w: %s is not cached", ErrPackageNotFound, name))
			continue
		}
		if len(versionsOf(installed, name)) > 0 {
			missing(OpRemove, name, fmt.Errorf("%w: uninstall %s first", ErrPackageInstalled, name))
			continue
		}
		out.Remove = append(out.Remove, name)
	}

	adding := map[string]bool{}
	for _, src := range req.Add {
		name, err := b.sourceName(src, cached)
		if err != nil {
			missing(OpAdd, src, err)
			continue
		}
		adding[name] = true
		out.Add = append(out.Add, src)
	}

	for _, name := range req.Install {
		if _, ok := latest(cached, name); !ok && !adding[name] {
			missing(OpInstall, name, fmt.Errorf("%w: %s is not cached, add it first", ErrPackageNotFound, name))
			continue
		}
		out.Install = append(out.Install, name)
	}

	return out, early
}

// apply runs uninstall, remove, add and install in that order
// apply 按卸载、删除、添加、安装的顺序执行
func (b *FSBroker) apply(ctx context.Context, req *Request, opts Options, cs *CommandSet) {
	for _, name := range req.Uninstall {
		cs.Record(b.uninstall(name, opts))
	}
	for _, name := range req.Remove {
		cs.Record(b.remove(name, opts))
	}
	for _, src := range req.Add {
		cs.Record(b.add(ctx, src, opts))
	}
	for _, name := range req.Install {
		cs.Record(b.install(name, opts))
	}
}

// sourceName works out the package name an add source will produce
// sourceName 计算添加来源将产生的包名
func (b *FSBroker) sourceName(src string, cached []Package) (string, error) {
	if isURL(src) {
		u, err := url.Parse(src)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		name, _, ok := parseConnectorFileName(path.Base(u.Path))
		if !ok {
			return "", fmt.Errorf("%w: %s is not a connector jar URL", ErrInvalidArgument, src)
		}
		return name, nil
	}
	if info, err := os.Stat(src); err == nil && !info.IsDir() {
		name, _, ok := parseConnectorFileName(filepath.Base(src))
		if !ok {
			return "", fmt.Errorf("%w: %s is not named connector-<name>-<version>.jar", ErrInvalidArgument, src)
		}
		return name, nil
	}
	if _, ok := latest(cached, src); ok {
		return src, nil
	}
	return "", fmt.Errorf("%w: %s is neither a file, a URL nor a cached package", ErrPackageNotFound, src)
}

func (b *FSBroker) add(ctx context.Context, src string, opts Options) PackageCommand {
	cmd := PackageCommand{Operation: OpAdd, Package: src}

	switch {
	case isURL(src):
		pkg, err := b.download(ctx, src)
		if err != nil {
			cmd.Message = err.Error()
			return cmd
		}
		cmd.Package, cmd.Version, cmd.Success = pkg.Name, pkg.Version, true
		cmd.Message = "downloaded from " + src
		return cmd
	case fileExists(src):
		name, version, ok := parseConnectorFileName(filepath.Base(src))
		if !ok {
			cmd.Message = fmt.Sprintf("%s is not named connector-<name>-<version>.jar", src)
			return cmd
		}
		if err := copyFile(src, filepath.Join(b.cacheDir, filepath.Base(src))); err != nil {
			cmd.Message = fmt.Sprintf("failed to copy into cache: %v", err)
			return cmd
		}
		cmd.Package, cmd.Version, cmd.Success = name, version, true
		cmd.Message = "copied from " + src
		return cmd
	}

	cached, err := b.Cached(ctx)
	if err != nil {
		cmd.Message = err.Error()
		return cmd
	}
	if pkg, ok := latest(cached, src); ok {
		cmd.Version, cmd.Success = pkg.Version, true
		cmd.Message = "already cached"
		return cmd
	}
	cmd.Message = fmt.Sprintf("%v: %s", ErrPackageNotFound, src)
	if opts.IgnoreMissing {
		cmd.Success, cmd.Skipped = true, true
	}
	return cmd
}

func (b *FSBroker) install(name string, opts Options) PackageCommand {
	cmd := PackageCommand{Operation: OpInstall, Package: name}

	cached, err := b.Cached(context.Background())
	if err != nil {
		cmd.Message = err.Error()
		return cmd
	}
	pkg, ok := latest(cached, name)
	if !ok {
		cmd.Message = fmt.Sprintf("%v: %s is not cached", ErrPackageNotFound, name)
		if opts.IgnoreMissing {
			cmd.Success, cmd.Skipped = true, true
		}
		return cmd
	}
	cmd.Version = pkg.Version

	installed, err := b.Installed(context.Background())
	if err != nil {
		cmd.Message = err.Error()
		return cmd
	}
	target := filepath.Join(b.connectorsDir, pkg.FileName())
	for _, old := range versionsOf(installed, name) {
		if old.Path == target {
			continue
		}
		if err := os.Remove(old.Path); err != nil && !os.IsNotExist(err) {
			cmd.Message = fmt.Sprintf("failed to replace %s: %v", filepath.Base(old.Path), err)
			return cmd
		}
	}

	if err := os.MkdirAll(b.connectorsDir, 0755); err != nil {
		cmd.Message = fmt.Sprintf("failed to create connectors directory: %v", err)
		return cmd
	}
	if err := copyFile(pkg.Path, target); err != nil {
		cmd.Message = fmt.Sprintf("failed to install: %v", err)
		return cmd
	}
	cmd.Success = true
	cmd.Message = "installed to " + target
	return cmd
}

func (b *FSBroker) uninstall(name string, opts Options) PackageCommand {
	cmd := PackageCommand{Operation: OpUninstall, Package: name}

	installed, err := b.Installed(context.Background())
	if err != nil {
		cmd.Message = err.Error()
		return cmd
	}
	versions := versionsOf(installed, name)
	if len(versions) == 0 {
		cmd.Message = fmt.Sprintf("%v: %s is not installed", ErrPackageNotFound, name)
		if opts.IgnoreMissing {
			cmd.Success, cmd.Skipped = true, true
		}
		return cmd
	}
	for _, p := range versions {
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			cmd.Message = fmt.Sprintf("failed to remove connector: %v", err)
			return cmd
		}
		cmd.Version = p.Version
	}
	cmd.Success = true
	return cmd
}

func (b *FSBroker) remove(name string, opts Options) PackageCommand {
	cmd := PackageCommand{Operation: OpRemove, Package: name}

	installed, err := b.Installed(context.Background())
	if err != nil {
		cmd.Message = err.Error()
		return cmd
	}
	if len(versionsOf(installed, name)) > 0 {
		cmd.Message = fmt.Sprintf("%v: uninstall %s first", ErrPackageInstalled, name)
		return cmd
	}

	cached, err := b.Cached(context.Background())
	if err != nil {
		cmd.Message = err.Error()
		return cmd
	}
	versions := versionsOf(cached, name)
	if len(versions) == 0 {
		cmd.Message = fmt.Sprintf("%v: %s is not cached", ErrPackageNotFound, name)
		if opts.IgnoreMissing {
			cmd.Success, cmd.Skipped = true, true
		}
		return cmd
	}
	for _, p := range versions {
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			cmd.Message = fmt.Sprintf("failed to remove cached package: %v", err)
			return cmd
		}
	}
	cmd.Success = true
	return cmd
}

// download fetches a connector jar into the cache
// download 将连接器 jar 下载到缓存
func (b *FSBroker) download(ctx context.Context, rawURL string) (Package, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Package{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	fileName := path.Base(u.Path)
	name, version, ok := parseConnectorFileName(fileName)
	if !ok {
		return Package{}, fmt.Errorf("%w: %s is not a connector jar URL", ErrInvalidArgument, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Package{}, err
	}
	b.logger.Info("Downloading package", zap.String("url", rawURL))
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Package{}, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Package{}, fmt.Errorf("download failed: %s returned %d", rawURL, resp.StatusCode)
	}

	dst := filepath.Join(b.cacheDir, fileName)
	if err := writeFile(dst, resp.Body); err != nil {
		return Package{}, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return Package{Name: name, Version: version, Path: dst}, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
