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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// connectorPattern matches connector-{name}-{version}.jar; the version starts
// at the first dash followed by a digit
// connectorPattern 匹配 connector-{name}-{version}.jar；版本从第一个后跟数字的破折号开始
var connectorPattern = regexp.MustCompile(`^connector-(.+?)(?:-(\d[0-9A-Za-z.\-+]*))?\.jar$`)

// Package is a connector jar on disk
// Package 是磁盘上的连接器 jar
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
}

// FileName returns the canonical file name
// FileName 返回规范文件名
func (p Package) FileName() string {
	return connectorFileName(p.Name, p.Version)
}

func connectorFileName(name, version string) string {
	if version == "" {
		return fmt.Sprintf("connector-%s.jar", name)
	}
	return fmt.Sprintf("connector-%s-%s.jar", name, version)
}

// parseConnectorFileName parses plugin name and version from a connector file name
// parseConnectorFileName 从连接器文件名解析插件名称和版本
func parseConnectorFileName(filename string) (name, version string, ok bool) {
	m := connectorPattern.FindStringSubmatch(filename)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// scanPackages lists the connector jars of dir; a missing dir is empty
// scanPackages 列出 dir 中的连接器 jar；目录不存在视为空
func scanPackages(dir string) ([]Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var pkgs []Package
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseConnectorFileName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		pkgs = append(pkgs, Package{
			Name:    name,
			Version: version,
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
		})
	}
	sort.Slice(pkgs, func(i, j int) bool {
		if pkgs[i].Name != pkgs[j].Name {
			return pkgs[i].Name < pkgs[j].Name
		}
		return compareVersions(pkgs[i].Version, pkgs[j].Version) < 0
	})
	return pkgs, nil
}

// latest returns the highest version of name among pkgs
// latest 返回 pkgs 中 name 的最高版本
func latest(pkgs []Package, name string) (Package, bool) {
	var best Package
	found := false
	for _, p := range pkgs {
		if p.Name != name {
			continue
		}
		if !found || compareVersions(p.Version, best.Version) > 0 {
			best = p
			found = true
		}
	}
	return best, found
}

// versionsOf returns every package named name
// versionsOf 返回所有名为 name 的包
func versionsOf(pkgs []Package, name string) []Package {
	var out []Package
	for _, p := range pkgs {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// compareVersions orders versions by semver; non-semver versions sort
// before valid ones and among themselves lexically
// compareVersions 按 semver 排序版本；非 semver 版本排在有效版本之前，相互之间按字典序
func compareVersions(a, b string) int {
	va, vb := canonical(a), canonical(b)
	validA, validB := semver.IsValid(va), semver.IsValid(vb)
	switch {
	case validA && validB:
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case validA:
		return 1
	case validB:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

func canonical(version string) string {
	if version == "" {
		return ""
	}
	// SNAPSHOT builds are pre-releases / SNAPSHOT 版本视为预发布版本
	version = strings.Replace(version, "-SNAPSHOT", "-snapshot", 1)
	return "v" + version
}

// copyFile copies src to dst through a temp file and rename
// copyFile 通过临时文件和重命名将 src 复制到 dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()
	return writeFile(dst, srcFile)
}

// writeFile streams r into dst atomically
// writeFile 原子地将 r 写入 dst
func writeFile(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
