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

package launcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// signalNotifier registers the console shutdown hook
// signalNotifier 注册控制台关闭钩子
type signalNotifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osSignals struct{}

func (osSignals) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
func (osSignals) Stop(c chan<- os.Signal)                     { signal.Stop(c) }

// Console runs the server in the foreground with its output attached.
// SIGINT and SIGTERM stop it through the shutdown controller; when the
// server exits by itself the hook is removed before returning.
// Console 在前台运行服务器并连接其输出。SIGINT 和 SIGTERM 通过停止控制器停止服务器；
// 服务器自行退出时，返回前会先移除钩子。
func (l *Launcher) Console(ctx context.Context) error {
	if err := l.prepare(ctx); err != nil {
		return err
	}

	cmd, err := l.deps.Adapter.StartCommand(l.deps.Config)
	if err != nil {
		return err
	}
	cmd.LogFile = ""
	cmd.Stdout = l.deps.Stdout
	cmd.Stderr = l.deps.Stderr
	l.trace(cmd)

	handle, err := l.deps.Supervisor.Spawn(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	l.log.Info("Server running in console mode", zap.Int("pid", handle.PID))
	l.writePid(handle.PID)
	defer l.removePid()

	signals := make(chan os.Signal, 1)
	l.notify.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer l.notify.Stop(signals)

	waitCtx, cancelWait := context.WithCancel(context.Background())
	defer cancelWait()

	exited := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(exited)
		return handle.Wait(waitCtx)
	})

	select {
	case <-exited:
		l.notify.Stop(signals)
		if err := g.Wait(); err != nil {
			return fmt.Errorf("%w: %v", ErrServerExited, err)
		}
		l.log.Info("Server exited")
		return nil
	case sig := <-signals:
		l.log.Info("Received signal, stopping server", zap.String("signal", sig.String()))
	case <-ctx.Done():
		l.log.Info("Console cancelled, stopping server")
	}

	// The hook owns its own deadline; the caller's context may be gone
	// 钩子使用自己的截止时间；调用方的 context 可能已结束
	if _, err := l.controller().Stop(context.Background(), l.opts.StopTimeout); err != nil {
		cancelWait()
		_ = g.Wait()
		return err
	}
	// The exit status of a stopped server is expected to be non-zero
	// 被停止的服务器退出码非零属于预期
	_ = g.Wait()
	return nil
}
