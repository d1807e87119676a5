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

package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	var b strings.Builder
	for i := 1; i <= 150; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))

	out, err := TailFile(path, DefaultTailLines)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, DefaultTailLines)
	assert.Equal(t, "line 51", lines[0])
	assert.Equal(t, "line 150", lines[len(lines)-1])

	out, err = TailFile(path, 2)
	require.NoError(t, err)
	assert.Equal(t, "line 149\nline 150", out)
}

func TestTailFileShortAndMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	require.NoError(t, os.WriteFile(path, []byte("only\n"), 0644))

	out, err := TailFile(path, 10)
	require.NoError(t, err)
	assert.Equal(t, "only", out)

	_, err = TailFile(filepath.Join(t.TempDir(), "missing.log"), 10)
	assert.Error(t, err)
}

func TestParseProcessTable(t *testing.T) {
	const sig = "org.apache.seatunnel.core.starter.seatunnel.SeaTunnelServer"
	table := strings.Join([]string{
		"    1 /sbin/init",
		"  200 grep " + sig,
		"  300 /usr/bin/java -cp /opt/st/lib/* " + sig,
		"  400 /usr/bin/java -cp /opt/other/lib/* " + sig,
		"bogus line",
	}, "\n")

	pid, found := parseProcessTable(table, sig, 1)
	assert.True(t, found)
	assert.Equal(t, 300, pid)

	// The launcher never matches itself / 启动器不会匹配自身
	pid, found = parseProcessTable(table, sig, 300)
	assert.True(t, found)
	assert.Equal(t, 400, pid)

	_, found = parseProcessTable(table, "stubserver", 1)
	assert.False(t, found)

	_, found = parseProcessTable(table, "", 1)
	assert.False(t, found)
}

func TestParsePIDList(t *testing.T) {
	pid, found := parsePIDList("ProcessId\r\n\r\n 812 \r\n 900\r\n", 0)
	assert.True(t, found)
	assert.Equal(t, 812, pid)

	pid, found = parsePIDList("812\n900\n", 812)
	assert.True(t, found)
	assert.Equal(t, 900, pid)

	_, found = parsePIDList("\n", 0)
	assert.False(t, found)
}

func TestCommandString(t *testing.T) {
	cmd := &Command{Path: "/bin/java", Args: []string{"-Xmx1g", "Main"}}
	assert.Equal(t, "/bin/java -Xmx1g Main", cmd.String())

	var nilCmd *Command
	assert.Empty(t, nilCmd.String())
}
