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

package stub

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOverviewBecomesReady(t *testing.T) {
	srv := New(Options{ReadyAfter: 2 * time.Second}, zap.NewNop())
	clock := srv.started
	srv.now = func() time.Time { return clock }
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/overview", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	clock = clock.Add(2 * time.Second)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/overview", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"started":true`)
	assert.Contains(t, w.Body.String(), `"healthy":true`)
}

func TestOverviewUnhealthy(t *testing.T) {
	srv := New(Options{Unhealthy: []string{"jdbc-source"}}, zap.NewNop())

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy":false`)
	assert.Contains(t, w.Body.String(), "jdbc-source")
}

func TestShutdownRunsCallbackOnce(t *testing.T) {
	srv := New(Options{}, zap.NewNop())
	var calls atomic.Int32
	done := make(chan struct{}, 2)
	srv.OnShutdown(func() {
		calls.Add(1)
		done <- struct{}{}
	})
	router := srv.Router()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/shutdown", nil))
		assert.Equal(t, http.StatusAccepted, w.Code)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback not called")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
