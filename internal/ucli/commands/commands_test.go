// Copyright 2026 UFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run invokes rootCmd with args against a fresh mount directory and
// returns its combined stdout.
func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"-C", dir}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestCLI_InitCreatesImage(t *testing.T) {
	dir := t.TempDir()
	out := run(t, dir, "init")
	assert.Contains(t, out, "ufs_index")
}

func TestCLI_MkdirTouchLs(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "mkarea", "overlay")
	run(t, dir, "mkdir", "docs")
	run(t, dir, "touch", "docs", "readme.md")
	run(t, dir, "map", "1", "2")

	out := run(t, dir, "ls", "docs", "BASE", "1")
	assert.Contains(t, out, "storage=")
}

func TestCLI_RmdirRejectsNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "mkdir", "docs")
	run(t, dir, "touch", "docs", "readme.md")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"-C", dir, "rmdir", "docs"})
	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestCLI_InfoReportsUsage(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "mkdir", "docs")

	out := run(t, dir, "info")
	assert.Contains(t, out, "files\t1/")
}

func TestCLI_ProbePrintsMappedState(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "mkarea", "overlay")
	run(t, dir, "mkdir", "docs")

	out := run(t, dir, "probe", "1", "1")
	assert.True(t, strings.Contains(out, "not mapped"))

	run(t, dir, "map", "1", "1")
	out = run(t, dir, "probe", "1", "1")
	assert.True(t, strings.Contains(out, "mapped"))
}
