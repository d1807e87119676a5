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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConnectorFileName(t *testing.T) {
	tests := []struct {
		file    string
		name    string
		version string
		ok      bool
	}{
		{file: "connector-jdbc-2.3.10.jar", name: "jdbc", version: "2.3.10", ok: true},
		{file: "connector-cdc-mysql-2.3.7.jar", name: "cdc-mysql", version: "2.3.7", ok: true},
		{file: "connector-file-s3-2.3.7-SNAPSHOT.jar", name: "file-s3", version: "2.3.7-SNAPSHOT", ok: true},
		{file: "connector-fake.jar", name: "fake", ok: true},
		{file: "kafka.jar"},
		{file: "connector-jdbc-2.3.10.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			name, version, ok := parseConnectorFileName(tt.file)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.version, version)
			if ok {
				assert.Equal(t, tt.file, connectorFileName(name, version))
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	assert.Positive(t, compareVersions("2.3.10", "2.3.9"))
	assert.Negative(t, compareVersions("2.3.7-SNAPSHOT", "2.3.7"))
	assert.Negative(t, compareVersions("", "1.0"))
	assert.Negative(t, compareVersions("nightly", "2.3.7"))
	assert.Zero(t, compareVersions("2.3.7", "2.3.7"))
}

func TestLatest(t *testing.T) {
	pkgs := []Package{
		{Name: "jdbc", Version: "2.3.9"},
		{Name: "jdbc", Version: "2.3.10"},
		{Name: "kafka", Version: "2.3.11"},
	}
	best, ok := latest(pkgs, "jdbc")
	assert.True(t, ok)
	assert.Equal(t, "2.3.10", best.Version)

	_, ok = latest(pkgs, "redis")
	assert.False(t, ok)
	assert.Len(t, versionsOf(pkgs, "jdbc"), 2)
}
