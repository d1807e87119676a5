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
	"sort"
	"testing"

	"pgregory.net/rapid"
)

var packageName = rapid.StringMatching(`[a-z][a-z0-9]{0,6}(-[a-z0-9]{1,4})?`)

// Property: every compound token lands in exactly the set its prefix names,
// in order, without duplicates.
// 属性：每个复合参数都按前缀进入对应集合，保持顺序且无重复。
func TestProperty_ParseCompoundPartitions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(t, "n")
		var tokens, wantAdd, wantInstall, wantUninstall []string
		for i := 0; i < n; i++ {
			name := packageName.Draw(t, "name")
			switch rapid.IntRange(0, 2).Draw(t, "kind") {
			case 0:
				tokens = append(tokens, name)
				wantAdd = appendUnique(wantAdd, name)
			case 1:
				tokens = append(tokens, "+"+name)
				wantInstall = appendUnique(wantInstall, name)
			default:
				tokens = append(tokens, "-"+name)
				wantUninstall = appendUnique(wantUninstall, name)
			}
		}

		req, err := ParseCompound(tokens)
		if err != nil {
			t.Fatalf("ParseCompound(%q): %v", tokens, err)
		}
		if !equal(req.Add, wantAdd) || !equal(req.Install, wantInstall) || !equal(req.Uninstall, wantUninstall) {
			t.Fatalf("ParseCompound(%q) = %+v", tokens, req)
		}
		if len(req.Remove) != 0 {
			t.Fatalf("compound form never removes, got %v", req.Remove)
		}
	})
}

// Property: applying SetRequest(wanted, installed) to installed yields wanted,
// and the request never conflicts.
// 属性：将 SetRequest(wanted, installed) 应用于 installed 得到 wanted，且请求不会冲突。
func TestProperty_SetRequestConverges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		wanted := dedupe(rapid.SliceOfN(packageName, 0, 8).Draw(t, "wanted"))
		installed := dedupe(rapid.SliceOfN(packageName, 0, 8).Draw(t, "installed"))

		req := SetRequest(wanted, installed)
		if err := req.Validate(); err != nil {
			t.Fatalf("SetRequest produced a conflicting request: %v", err)
		}

		result := map[string]bool{}
		for _, name := range installed {
			result[name] = true
		}
		for _, name := range req.Uninstall {
			delete(result, name)
		}
		for _, name := range req.Install {
			result[name] = true
		}

		got := make([]string, 0, len(result))
		for name := range result {
			got = append(got, name)
		}
		want := append([]string(nil), wanted...)
		sort.Strings(got)
		sort.Strings(want)
		if !equal(got, want) {
			t.Fatalf("installed %v + %v = %v, want %v", installed, req, got, want)
		}
	})
}

func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
