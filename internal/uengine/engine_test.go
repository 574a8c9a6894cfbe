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

package uengine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufs/internal/uheader"
	"ufs/internal/ustatus"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img")
	e, err := Create(path, uheader.SizeRequest{NumFiles: 32, NumAreas: 16, NumNodes: 64, NumStrBytes: 1024})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Destroy() })
	return e
}

func TestEngine_AddGetDirectory(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	id, err := e.AddDirectory("docs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	got, err := e.GetDirectory("docs")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestEngine_AddDirectoryRejectsDuplicateName(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	_, err := e.AddDirectory("docs")
	require.NoError(t, err)

	_, err = e.AddDirectory("docs")
	assert.Equal(t, ustatus.AlreadyExists, ustatus.CodeOf(err))
}

func TestEngine_AddDirectoryRejectsInvalidName(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	_, err := e.AddDirectory("")
	assert.Equal(t, ustatus.BadCall, ustatus.CodeOf(err))

	_, err = e.AddDirectory("a/b")
	assert.Equal(t, ustatus.BadCall, ustatus.CodeOf(err))
}

func TestEngine_RemoveDirectoryRequiresEmpty(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	_, err = e.AddFile(dir, "readme.md")
	require.NoError(t, err)

	err = e.RemoveDirectory(dir)
	assert.Equal(t, ustatus.DirectoryIsNotEmpty, ustatus.CodeOf(err))

	id, err := e.GetFile(dir, "readme.md")
	require.NoError(t, err)
	require.NoError(t, e.RemoveFile(id))
	require.NoError(t, e.RemoveDirectory(dir))

	_, err = e.GetDirectory("docs")
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))
}

func TestEngine_AddFileRejectsDuplicateNameWithinDirectory(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	_, err = e.AddFile(dir, "readme.md")
	require.NoError(t, err)

	_, err = e.AddFile(dir, "readme.md")
	assert.Equal(t, ustatus.AlreadyExists, ustatus.CodeOf(err))
}

func TestEngine_AddFileAllowsSameNameInDifferentDirectories(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	d1, err := e.AddDirectory("a")
	require.NoError(t, err)
	d2, err := e.AddDirectory("b")
	require.NoError(t, err)

	_, err = e.AddFile(d1, "readme.md")
	require.NoError(t, err)
	_, err = e.AddFile(d2, "readme.md")
	require.NoError(t, err)
}

func TestEngine_RemoveFileRejectsDirectoryID(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)

	err = e.RemoveFile(dir)
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))
}

func TestEngine_AddAreaRejectsBaseName(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	_, err := e.AddArea("BASE")
	assert.Equal(t, ustatus.AlreadyExists, ustatus.CodeOf(err))
}

func TestEngine_RemoveAreaRejectsBase(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	err := e.RemoveArea(BaseArea)
	assert.Equal(t, ustatus.BadCall, ustatus.CodeOf(err))
}

func TestEngine_AddMappingIsASet(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	area, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)

	require.NoError(t, e.AddMapping(area, file))
	err = e.AddMapping(area, file)
	assert.Equal(t, ustatus.MappingAlreadyExists, ustatus.CodeOf(err))

	assert.NoError(t, e.ProbeMapping(area, file))
}

func TestEngine_ProbeMappingReportsAbsence(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	area, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)

	err = e.ProbeMapping(area, file)
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))
}

func TestEngine_RemoveAreaCascadesMappings(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	area, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)
	require.NoError(t, e.AddMapping(area, file))

	require.NoError(t, e.RemoveArea(area))

	_, err = e.GetArea("overlay")
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))

	// The next area reuses the freed slot and must not inherit the
	// removed area's mappings.
	reused, err := e.AddArea("overlay2")
	require.NoError(t, err)
	require.Equal(t, area, reused)
	err = e.ProbeMapping(reused, file)
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))
}

func TestEngine_RemoveFileCascadesMappings(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	area, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)
	require.NoError(t, e.AddMapping(area, file))

	require.NoError(t, e.RemoveFile(file))

	err = e.ProbeMapping(area, file)
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))
}

func TestEngine_ResolveStorageInViewShadowsOnBase(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	overlay, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)
	require.NoError(t, e.AddMapping(overlay, file))

	area, err := e.ResolveStorageInView(View{BaseArea, overlay}, file)
	require.NoError(t, err)
	assert.Equal(t, BaseArea, area)

	area, err = e.ResolveStorageInView(View{overlay, BaseArea}, file)
	require.NoError(t, err)
	assert.Equal(t, overlay, area)
}

func TestEngine_ResolveStorageInViewFallsThroughToCannotResolve(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	overlay, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)

	_, err = e.ResolveStorageInView(View{overlay}, file)
	assert.Equal(t, ustatus.CannotResolveStorage, ustatus.CodeOf(err))
}

func TestEngine_ValidateViewRejectsDuplicatesAndInvalidAreas(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	overlay, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)

	_, err = e.ResolveStorageInView(View{overlay, overlay}, file)
	assert.Equal(t, ustatus.ViewContainsDuplicates, ustatus.CodeOf(err))

	_, err = e.ResolveStorageInView(View{999}, file)
	assert.Equal(t, ustatus.InvalidAreaInView, ustatus.CodeOf(err))
}

func TestEngine_IterateDirInViewSkipsUnresolved(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	overlay, err := e.AddArea("overlay")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	visible, err := e.AddFile(dir, "visible.md")
	require.NoError(t, err)
	hidden, err := e.AddFile(dir, "hidden.md")
	require.NoError(t, err)
	_ = hidden
	require.NoError(t, e.AddMapping(overlay, visible))

	var storages []int64
	err = e.IterateDirInView(View{overlay}, dir, func(storage, cursor, total int64, _ any) error {
		storages = append(storages, storage)
		assert.EqualValues(t, len(storages)-1, cursor)
		assert.EqualValues(t, 1, total)
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{visible}, storages)
}

func TestEngine_CollapseFoldsEarlierMappingsIntoLast(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	lower, err := e.AddArea("lower")
	require.NoError(t, err)
	upper, err := e.AddArea("upper")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)
	require.NoError(t, e.AddMapping(lower, file))

	require.NoError(t, e.Collapse(View{lower, upper}))

	err = e.ProbeMapping(lower, file)
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))
	assert.NoError(t, e.ProbeMapping(upper, file))
}

func TestEngine_CollapseIntoBaseJustDropsMappings(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	lower, err := e.AddArea("lower")
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	file, err := e.AddFile(dir, "readme.md")
	require.NoError(t, err)
	require.NoError(t, e.AddMapping(lower, file))

	require.NoError(t, e.Collapse(View{lower, BaseArea}))

	err = e.ProbeMapping(lower, file)
	assert.Equal(t, ustatus.DoesNotExist, ustatus.CodeOf(err))

	area, err := e.ResolveStorageInView(View{BaseArea}, file)
	require.NoError(t, err)
	assert.Equal(t, BaseArea, area)
}

func TestEngine_StatsReflectsUsage(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	_, err := e.AddDirectory("docs")
	require.NoError(t, err)
	_, err = e.AddArea("overlay")
	require.NoError(t, err)

	stats := e.Stats()
	assert.EqualValues(t, 1, stats["files"].Used)
	assert.EqualValues(t, 32, stats["files"].Capacity)
	assert.EqualValues(t, 1, stats["areas"].Used)
	assert.EqualValues(t, 16, stats["areas"].Capacity)
}

func TestEngine_RootsSurviveReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "img")

	e, err := Create(path, uheader.SizeRequest{NumFiles: 16, NumAreas: 8, NumNodes: 32, NumStrBytes: 512})
	require.NoError(t, err)
	dir, err := e.AddDirectory("docs")
	require.NoError(t, err)
	_, err = e.AddFile(dir, "readme.md")
	require.NoError(t, err)
	area, err := e.AddArea("overlay")
	require.NoError(t, err)
	require.NoError(t, e.AddMapping(area, dir))
	require.NoError(t, e.Destroy())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Destroy()

	gotDir, err := reopened.GetDirectory("docs")
	require.NoError(t, err)
	assert.Equal(t, dir, gotDir)

	gotFile, err := reopened.GetFile(gotDir, "readme.md")
	require.NoError(t, err)
	assert.NotZero(t, gotFile)

	gotArea, err := reopened.GetArea("overlay")
	require.NoError(t, err)
	assert.NoError(t, reopened.ProbeMapping(gotArea, dir))
}
