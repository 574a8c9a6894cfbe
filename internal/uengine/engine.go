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

// Package uengine implements the UFS semantic engine: the union-mount
// algebra described by the source spec, laid out entirely over the
// four tables uheader/utable expose and indexed with utree. It is the
// only package that understands what a "directory", "area", or
// "mapping" means; everything below it just moves typed bytes.
package uengine

import (
	"os"
	"strings"
	"unsafe"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ufs/internal/common"
	"ufs/internal/uheader"
	"ufs/internal/uimage"
	"ufs/internal/ustatus"
	"ufs/internal/utable"
	"ufs/internal/utree"
)

// BaseArea is the reserved pseudo-area id referring to the external
// base filesystem. It never occupies a slot in the Area table.
const BaseArea int64 = 0

// baseName is reserved: AddArea rejects it as already taken by BASE.
const baseName = "BASE"

// ViewMaxSize bounds the number of entries a View may carry. The
// source spec leaves the exact figure to the implementer; this is
// sized generously for the number of areas a single union mount is
// expected to stack in practice.
const ViewMaxSize = 32

// viewTerminator lets a caller end a View early without trimming the
// backing slice, mirroring the source's sentinel-terminated C arrays.
const viewTerminator int64 = -1

// rootsAnchorID is the fixed, permanently-owned Node-table slot that
// anchors every index the engine maintains: it is never handed out by
// Table.Alloc and is (re)initialized once per image's lifetime.
const rootsAnchorID int64 = 0

// View is an ordered list of area ids (possibly including BaseArea),
// as consumed by ResolveStorageInView, IterateDirInView, and Collapse.
type View []int64

// Truncate returns the portion of v up to (excluding) the first
// occurrence of the sentinel terminator, or v unchanged if none is
// present.
func (v View) Truncate() View {
	for i, a := range v {
		if a == viewTerminator {
			return v[:i]
		}
	}
	return v
}

// DirIterator is invoked once per distinct visible entry of a
// directory by IterateDirInView. Returning a non-nil error halts
// iteration and propagates that error to the caller.
type DirIterator func(storage, cursor, total int64, userData any) error

// Engine is a live handle onto a UFS image: the four tables plus the
// indices built over them.
type Engine struct {
	img   *uimage.Image
	files *utable.Table[uheader.FileSlot, *uheader.FileSlot]
	areas *utable.Table[uheader.AreaSlot, *uheader.AreaSlot]
	nodes Nodes
	arena *utable.StringArena

	dirNames     *utree.Tree
	areaNames    *utree.Tree
	dirContents  *Relation
	areaMappings *Relation

	runID string
}

// Init opens the image at path if one already exists, or creates a
// fresh one sized by req otherwise — "opens or initializes the
// backing image" per the source spec's Init contract.
func Init(path string, req uheader.SizeRequest) (*Engine, error) {
	if _, err := os.Stat(path); err == nil {
		return Open(path)
	}
	return Create(path, req)
}

// Open mounts an existing image.
func Open(path string) (*Engine, error) {
	img, err := uimage.Open(path)
	if err != nil {
		return nil, err
	}
	e, err := fromImage(img)
	if err != nil {
		_ = img.Close()
		return nil, err
	}
	return e, nil
}

// Create lays out and mounts a brand-new image at path.
func Create(path string, req uheader.SizeRequest) (*Engine, error) {
	img, err := uheader.Init(path, req)
	if err != nil {
		return nil, err
	}
	e, err := fromImage(img)
	if err != nil {
		_ = img.Close()
		return nil, err
	}
	return e, nil
}

func fromImage(img *uimage.Image) (*Engine, error) {
	if _, err := uheader.Validate(img); err != nil {
		return nil, err
	}

	var fileElem uheader.FileSlot
	var areaElem uheader.AreaSlot
	var nodeElem uheader.NodeSlot

	files := utable.New[uheader.FileSlot, *uheader.FileSlot](uheader.TableRegion(img, uheader.TypeFile, unsafe.Sizeof(fileElem)))
	areas := utable.New[uheader.AreaSlot, *uheader.AreaSlot](uheader.TableRegion(img, uheader.TypeArea, unsafe.Sizeof(areaElem)))
	nodes := utable.New[uheader.NodeSlot, *uheader.NodeSlot](uheader.TableRegion(img, uheader.TypeNode, unsafe.Sizeof(nodeElem)))
	arena := utable.NewArena(uheader.TableRegion(img, uheader.TypeString, 1))

	e := &Engine{
		img:   img,
		files: files,
		areas: areas,
		nodes: nodes,
		arena: arena,
		runID: uuid.NewString(),
	}

	if err := e.ensureRootsAnchor(); err != nil {
		return nil, err
	}

	e.dirNames = utree.New(nodes, e.fileNameCompare, 1)
	e.areaNames = utree.New(nodes, e.areaNameCompare, 1)
	e.dirContents = NewRelation(nodes, e.fileNameCompare, e.getDirContentsRoot, e.setDirContentsRoot)
	e.areaMappings = NewRelation(nodes, utree.IntCompare, e.getAreaMappingsRoot, e.setAreaMappingsRoot)

	log.Debugf("[uengine] mounted %s (run_id=%s)", img.Path(), e.runID)
	ustatus.Set(ustatus.NoError)
	return e, nil
}

// Destroy syncs and unmaps the engine's image. Safe to call on nil.
func (e *Engine) Destroy() error {
	if e == nil {
		return nil
	}
	if _, err := e.img.Sync(); err != nil {
		log.Errorf("[uengine] sync failed on destroy (run_id=%s): %v", e.runID, err)
		return err
	}
	return e.img.Close()
}

// Sync flushes the image to disk without tearing the engine down.
func (e *Engine) Sync() error {
	_, err := e.img.Sync()
	return err
}

// Path returns the backing image's path.
func (e *Engine) Path() string {
	return e.img.Path()
}

// TableStats reports one table's fixed capacity and how many of its
// slots are currently owned.
type TableStats struct {
	Capacity int64
	Used     int64
}

// Stats reports capacity/used for the Files, Areas and Nodes tables;
// the string arena is not included. Has no equivalent in the original;
// added so cmd/ufsctl's info command has something to report.
func (e *Engine) Stats() map[string]TableStats {
	return map[string]TableStats{
		"files": {Capacity: e.files.Len(), Used: e.files.Used()},
		"areas": {Capacity: e.areas.Len(), Used: e.areas.Used()},
		"nodes": {Capacity: e.nodes.Len(), Used: e.nodes.Used()},
	}
}

func (e *Engine) ensureRootsAnchor() error {
	n, err := e.nodes.Raw(rootsAnchorID)
	if err != nil {
		return err
	}
	if n.IsOwned() {
		return nil
	}
	n.SetOwned(true)
	n.Left, n.Right = -1, -1
	n.Keys[0], n.Keys[1] = -1, -1
	n.KeyCount = 2
	ustatus.Set(ustatus.NoError)
	return nil
}

func (e *Engine) dirNameRoot() int64         { n, _ := e.nodes.Raw(rootsAnchorID); return n.Left }
func (e *Engine) setDirNameRoot(v int64)     { n, _ := e.nodes.Raw(rootsAnchorID); n.Left = v }
func (e *Engine) areaNameRoot() int64        { n, _ := e.nodes.Raw(rootsAnchorID); return n.Right }
func (e *Engine) setAreaNameRoot(v int64)    { n, _ := e.nodes.Raw(rootsAnchorID); n.Right = v }
func (e *Engine) getDirContentsRoot() int64  { n, _ := e.nodes.Raw(rootsAnchorID); return n.Keys[0] }
func (e *Engine) setDirContentsRoot(v int64) { n, _ := e.nodes.Raw(rootsAnchorID); n.Keys[0] = v }
func (e *Engine) getAreaMappingsRoot() int64 { n, _ := e.nodes.Raw(rootsAnchorID); return n.Keys[1] }
func (e *Engine) setAreaMappingsRoot(v int64) {
	n, _ := e.nodes.Raw(rootsAnchorID)
	n.Keys[1] = v
}

// --- id conversions -------------------------------------------------
//
// Every public Id is 1 + the underlying table slot index, per the
// source spec's Allocate contract (§4.3). Internally this package
// works with table ids (0-based, as utable.Table hands them out) and
// converts at the boundary.

func toPublicID(tableID int64) int64 { return tableID + 1 }
func toTableID(publicID int64) int64 { return publicID - 1 }

func fail(code ustatus.Code) (int64, error) {
	return int64(code), ustatus.New(ustatus.Set(code))
}

func idErr(err error) (int64, error) {
	return int64(ustatus.CodeOf(err)), err
}

// --- name lookups -----------------------------------------------------

func (e *Engine) fileNameAt(tableID int64) string {
	slot, err := e.files.Get(tableID)
	if err != nil {
		return ""
	}
	return e.arena.Lookup(slot.NameOffset)
}

func (e *Engine) fileNameCompare(a, b utree.Key) int {
	return strings.Compare(e.fileNameAt(a.A), e.fileNameAt(b.A))
}

func (e *Engine) areaNameAt(tableID int64) string {
	slot, err := e.areas.Get(tableID)
	if err != nil {
		return ""
	}
	return e.arena.Lookup(slot.NameOffset)
}

func (e *Engine) areaNameCompare(a, b utree.Key) int {
	return strings.Compare(e.areaNameAt(a.A), e.areaNameAt(b.A))
}

func byName(name string, nameAt func(int64) string) func(utree.Key) int {
	return func(k utree.Key) int { return strings.Compare(name, nameAt(k.A)) }
}

// --- entity slots -----------------------------------------------------

// directorySlot resolves a public directory id to its table id and
// slot, rejecting file ids and dead/out-of-range ids alike with
// DoesNotExist.
func (e *Engine) directorySlot(id int64) (int64, *uheader.FileSlot, error) {
	if id <= 0 {
		return -1, nil, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	tid := toTableID(id)
	slot, err := e.files.Get(tid)
	if err != nil {
		return -1, nil, err
	}
	if !slot.IsDirectory() {
		return -1, nil, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	ustatus.Set(ustatus.NoError)
	return tid, slot, nil
}

// storageSlot resolves a public storage id (a file or a directory —
// both live in the File table) to its table id.
func (e *Engine) storageSlot(id int64) (int64, error) {
	if id <= 0 {
		return -1, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	tid := toTableID(id)
	if _, err := e.files.Get(tid); err != nil {
		return -1, err
	}
	ustatus.Set(ustatus.NoError)
	return tid, nil
}

// areaSlot resolves a public, non-BASE area id to its table id.
func (e *Engine) areaSlot(id int64) (int64, error) {
	if id <= 0 {
		return -1, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	tid := toTableID(id)
	if _, err := e.areas.Get(tid); err != nil {
		return -1, err
	}
	ustatus.Set(ustatus.NoError)
	return tid, nil
}

// --- directories --------------------------------------------------------

// AddDirectory creates a new, empty directory named name.
func (e *Engine) AddDirectory(name string) (int64, error) {
	if !common.IsValidName(name) {
		return fail(ustatus.BadCall)
	}
	if _, err := e.dirNames.FindBy(e.dirNameRoot(), byName(name, e.fileNameAt)); err == nil {
		return fail(ustatus.AlreadyExists)
	} else if ustatus.CodeOf(err) != ustatus.DoesNotExist {
		return idErr(err)
	}

	tableID, slot, err := e.files.Alloc()
	if err != nil {
		return idErr(err)
	}
	off, err := e.arena.Intern(name)
	if err != nil {
		_ = e.files.Free(tableID)
		return idErr(err)
	}
	slot.NameOffset = off
	slot.SetDirectory(true)

	newRoot, err := e.dirNames.Insert(e.dirNameRoot(), utree.Key{A: tableID})
	if err != nil {
		_ = e.files.Free(tableID)
		return idErr(err)
	}
	e.setDirNameRoot(newRoot)

	log.Debugf("[uengine] AddDirectory(%q) -> %d (run_id=%s)", name, toPublicID(tableID), e.runID)
	ustatus.Set(ustatus.NoError)
	return toPublicID(tableID), nil
}

// GetDirectory looks a directory up by name.
func (e *Engine) GetDirectory(name string) (int64, error) {
	if name == "" {
		return fail(ustatus.BadCall)
	}
	nodeID, err := e.dirNames.FindBy(e.dirNameRoot(), byName(name, e.fileNameAt))
	if err != nil {
		return idErr(err)
	}
	n, err := e.nodes.Get(nodeID)
	if err != nil {
		return idErr(err)
	}
	ustatus.Set(ustatus.NoError)
	return toPublicID(n.Keys[0]), nil
}

// RemoveDirectory deletes directory id. Fails with
// DirectoryIsNotEmpty if any file is still attached to it.
func (e *Engine) RemoveDirectory(id int64) error {
	tableID, _, err := e.directorySlot(id)
	if err != nil {
		return err
	}

	members, err := e.dirContents.Members(tableID)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		return ustatus.New(ustatus.Set(ustatus.DirectoryIsNotEmpty))
	}

	if err := e.removeFromAllMappings(tableID); err != nil {
		return err
	}

	newRoot, err := e.dirNames.Remove(e.dirNameRoot(), utree.Key{A: tableID})
	if err != nil {
		return err
	}
	e.setDirNameRoot(newRoot)

	if err := e.files.Free(tableID); err != nil {
		return err
	}
	log.Debugf("[uengine] RemoveDirectory(%d) (run_id=%s)", id, e.runID)
	ustatus.Set(ustatus.NoError)
	return nil
}

// --- files ---------------------------------------------------------------

// AddFile attaches a new file named name to directory.
func (e *Engine) AddFile(directory int64, name string) (int64, error) {
	if !common.IsValidName(name) {
		return fail(ustatus.BadCall)
	}
	dirTableID, _, err := e.directorySlot(directory)
	if err != nil {
		return idErr(err)
	}

	if _, err := e.dirContents.FindMemberBy(dirTableID, byName(name, e.fileNameAt)); err == nil {
		return fail(ustatus.AlreadyExists)
	} else if ustatus.CodeOf(err) != ustatus.DoesNotExist {
		return idErr(err)
	}

	tableID, slot, err := e.files.Alloc()
	if err != nil {
		return idErr(err)
	}
	off, err := e.arena.Intern(name)
	if err != nil {
		_ = e.files.Free(tableID)
		return idErr(err)
	}
	slot.NameOffset = off
	slot.ParentID = directory

	if err := e.dirContents.Add(dirTableID, tableID); err != nil {
		_ = e.files.Free(tableID)
		return idErr(err)
	}

	log.Debugf("[uengine] AddFile(dir=%d, %q) -> %d (run_id=%s)", directory, name, toPublicID(tableID), e.runID)
	ustatus.Set(ustatus.NoError)
	return toPublicID(tableID), nil
}

// GetFile looks up the file named name within directory.
func (e *Engine) GetFile(directory int64, name string) (int64, error) {
	if name == "" {
		return fail(ustatus.BadCall)
	}
	dirTableID, _, err := e.directorySlot(directory)
	if err != nil {
		return idErr(err)
	}
	id, err := e.dirContents.FindMemberBy(dirTableID, byName(name, e.fileNameAt))
	if err != nil {
		return idErr(err)
	}
	ustatus.Set(ustatus.NoError)
	return toPublicID(id), nil
}

// RemoveFile detaches and frees file id: it leaves its directory's
// membership set and every mapping set it was a storage of.
func (e *Engine) RemoveFile(id int64) error {
	if id <= 0 {
		return ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	tableID := toTableID(id)
	slot, err := e.files.Get(tableID)
	if err != nil {
		return err
	}
	if slot.IsDirectory() {
		return ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}

	parentTableID := toTableID(slot.ParentID)
	if err := e.dirContents.Remove(parentTableID, tableID); err != nil {
		return err
	}
	if err := e.removeFromAllMappings(tableID); err != nil {
		return err
	}
	if err := e.files.Free(tableID); err != nil {
		return err
	}
	log.Debugf("[uengine] RemoveFile(%d) (run_id=%s)", id, e.runID)
	ustatus.Set(ustatus.NoError)
	return nil
}

// removeFromAllMappings drops storageTableID out of every area's
// mapping set. Areas are few relative to files in the expected scale
// (§5), so a linear scan over anchors is acceptable here rather than
// maintaining a reverse storage->areas index.
func (e *Engine) removeFromAllMappings(storageTableID int64) error {
	owners, err := e.areaMappings.Owners()
	if err != nil {
		return err
	}
	for _, owner := range owners {
		ok, err := e.areaMappings.Contains(owner, storageTableID)
		if err != nil {
			return err
		}
		if ok {
			if err := e.areaMappings.Remove(owner, storageTableID); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- areas -----------------------------------------------------------------

// AddArea creates a new, empty area named name. "BASE" is reserved.
func (e *Engine) AddArea(name string) (int64, error) {
	if !common.IsValidName(name) {
		return fail(ustatus.BadCall)
	}
	if name == baseName {
		return fail(ustatus.AlreadyExists)
	}
	if _, err := e.areaNames.FindBy(e.areaNameRoot(), byName(name, e.areaNameAt)); err == nil {
		return fail(ustatus.AlreadyExists)
	} else if ustatus.CodeOf(err) != ustatus.DoesNotExist {
		return idErr(err)
	}

	tableID, slot, err := e.areas.Alloc()
	if err != nil {
		return idErr(err)
	}
	off, err := e.arena.Intern(name)
	if err != nil {
		_ = e.areas.Free(tableID)
		return idErr(err)
	}
	slot.NameOffset = off

	newRoot, err := e.areaNames.Insert(e.areaNameRoot(), utree.Key{A: tableID})
	if err != nil {
		_ = e.areas.Free(tableID)
		return idErr(err)
	}
	e.setAreaNameRoot(newRoot)

	log.Debugf("[uengine] AddArea(%q) -> %d (run_id=%s)", name, toPublicID(tableID), e.runID)
	ustatus.Set(ustatus.NoError)
	return toPublicID(tableID), nil
}

// GetArea looks an area up by name.
func (e *Engine) GetArea(name string) (int64, error) {
	if name == "" {
		return fail(ustatus.BadCall)
	}
	nodeID, err := e.areaNames.FindBy(e.areaNameRoot(), byName(name, e.areaNameAt))
	if err != nil {
		return idErr(err)
	}
	n, err := e.nodes.Get(nodeID)
	if err != nil {
		return idErr(err)
	}
	ustatus.Set(ustatus.NoError)
	return toPublicID(n.Keys[0]), nil
}

// RemoveArea deletes area id and every mapping it participates in.
// BASE may not be removed.
func (e *Engine) RemoveArea(id int64) error {
	if id == BaseArea {
		return ustatus.New(ustatus.Set(ustatus.BadCall))
	}
	tableID, err := e.areaSlot(id)
	if err != nil {
		return err
	}

	storages, err := e.areaMappings.Members(tableID)
	if err != nil {
		return err
	}
	for _, s := range storages {
		if err := e.areaMappings.Remove(tableID, s); err != nil {
			return err
		}
	}

	newRoot, err := e.areaNames.Remove(e.areaNameRoot(), utree.Key{A: tableID})
	if err != nil {
		return err
	}
	e.setAreaNameRoot(newRoot)

	if err := e.areas.Free(tableID); err != nil {
		return err
	}
	log.Debugf("[uengine] RemoveArea(%d) (run_id=%s)", id, e.runID)
	ustatus.Set(ustatus.NoError)
	return nil
}

// --- mappings --------------------------------------------------------------

// AddMapping records that area projects storage. area must be a live,
// non-BASE area; storage must be a live file or directory.
func (e *Engine) AddMapping(area, storage int64) error {
	if area <= 0 {
		return ustatus.New(ustatus.Set(ustatus.BadCall))
	}
	areaTableID, err := e.areaSlot(area)
	if err != nil {
		return err
	}
	storageTableID, err := e.storageSlot(storage)
	if err != nil {
		return err
	}

	if ok, err := e.areaMappings.Contains(areaTableID, storageTableID); err != nil {
		return err
	} else if ok {
		return ustatus.New(ustatus.Set(ustatus.MappingAlreadyExists))
	}

	if err := e.areaMappings.Add(areaTableID, storageTableID); err != nil {
		return err
	}
	log.Debugf("[uengine] AddMapping(%d, %d) (run_id=%s)", area, storage, e.runID)
	ustatus.Set(ustatus.NoError)
	return nil
}

// ProbeMapping reports, via the status word and return error, whether
// (area, storage) is currently mapped.
func (e *Engine) ProbeMapping(area, storage int64) error {
	areaTableID, err := e.areaSlot(area)
	if err != nil {
		return err
	}
	storageTableID, err := e.storageSlot(storage)
	if err != nil {
		return err
	}
	ok, err := e.areaMappings.Contains(areaTableID, storageTableID)
	if err != nil {
		return err
	}
	if !ok {
		return ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}
	ustatus.Set(ustatus.NoError)
	return nil
}

// --- view resolution ---------------------------------------------------

// validateView truncates at the sentinel, then rejects a too-long
// view, a duplicate entry, or an entry that is neither BASE nor a
// live area.
func (e *Engine) validateView(view View) (View, error) {
	v := view.Truncate()
	if len(v) > ViewMaxSize {
		return nil, ustatus.New(ustatus.Set(ustatus.BadCall))
	}

	seen := make(map[int64]bool, len(v))
	for _, a := range v {
		if seen[a] {
			return nil, ustatus.New(ustatus.Set(ustatus.ViewContainsDuplicates))
		}
		seen[a] = true

		if a == BaseArea {
			continue
		}
		if a < 0 {
			return nil, ustatus.New(ustatus.Set(ustatus.InvalidAreaInView))
		}
		if _, err := e.areas.Get(toTableID(a)); err != nil {
			return nil, ustatus.New(ustatus.Set(ustatus.InvalidAreaInView))
		}
	}

	ustatus.Set(ustatus.NoError)
	return v, nil
}

// ResolveStorageInView walks view in order and returns the area that
// projects storage: BaseArea the instant BASE is encountered (it
// shadows everything behind it), the first area whose explicit
// mapping set contains storage, or — if no area in the view maps
// storage explicitly and BASE never appears — CannotResolveStorage.
func (e *Engine) ResolveStorageInView(view View, storage int64) (int64, error) {
	if storage <= 0 {
		return fail(ustatus.BadCall)
	}
	v, err := e.validateView(view)
	if err != nil {
		return idErr(err)
	}
	return e.resolveStorage(v, storage)
}

// resolveStorage is ResolveStorageInView without the view-validation
// pass, for callers (IterateDirInView, Collapse) that already hold a
// validated view.
func (e *Engine) resolveStorage(view View, storagePublic int64) (int64, error) {
	storageTableID, err := e.storageSlot(storagePublic)
	if err != nil {
		return idErr(err)
	}

	for _, a := range view {
		if a == BaseArea {
			ustatus.Set(ustatus.NoError)
			return BaseArea, nil
		}
		ok, err := e.areaMappings.Contains(toTableID(a), storageTableID)
		if err != nil {
			return idErr(err)
		}
		if ok {
			ustatus.Set(ustatus.NoError)
			return a, nil
		}
	}

	return fail(ustatus.CannotResolveStorage)
}

// IterateDirInView computes the set of files attached to directory
// that resolve to some area under view — explicitly mapped, or
// implicitly via BASE — deduplicates by name, and invokes iterator
// once per distinct entry in unspecified order. Iteration halts the
// instant iterator returns a non-nil error, and that error propagates.
func (e *Engine) IterateDirInView(view View, directory int64, iterator DirIterator, userData any) error {
	v, err := e.validateView(view)
	if err != nil {
		return err
	}
	dirTableID, _, err := e.directorySlot(directory)
	if err != nil {
		return err
	}

	members, err := e.dirContents.Members(dirTableID)
	if err != nil {
		return err
	}

	seenNames := make(map[string]bool, len(members))
	var resolved []int64
	for _, m := range members {
		name := e.fileNameAt(m)
		if seenNames[name] {
			continue
		}
		storagePublic := toPublicID(m)
		if _, rerr := e.resolveStorage(v, storagePublic); rerr != nil {
			if ustatus.CodeOf(rerr) == ustatus.CannotResolveStorage {
				continue
			}
			return rerr
		}
		seenNames[name] = true
		resolved = append(resolved, storagePublic)
	}

	total := int64(len(resolved))
	for i, storage := range resolved {
		if err := iterator(storage, int64(i), total, userData); err != nil {
			return err
		}
	}
	ustatus.Set(ustatus.NoError)
	return nil
}

// Collapse folds every mapping held by the non-last areas of view
// into view's last area: for each earlier area A_k and each storage s
// it maps, s becomes mapped by the last area instead (unless the last
// area is BASE, in which case removing the explicit mapping is enough
// — resolution falls through to BASE via the implicit rule — the
// actual projection onto the real filesystem is the out-of-scope
// mount wrapper's job). Ends with a Sync, as the source spec requires.
func (e *Engine) Collapse(view View) error {
	v, err := e.validateView(view)
	if err != nil {
		return err
	}
	if len(v) == 0 {
		return ustatus.New(ustatus.Set(ustatus.BadCall))
	}
	last := v[len(v)-1]

	for _, k := range v[:len(v)-1] {
		if k == BaseArea {
			continue
		}
		kTableID, err := e.areaSlot(k)
		if err != nil {
			return err
		}

		storages, err := e.areaMappings.Members(kTableID)
		if err != nil {
			return err
		}
		for _, sTableID := range storages {
			if last != BaseArea {
				storagePublic := toPublicID(sTableID)
				if aerr := e.AddMapping(last, storagePublic); aerr != nil && ustatus.CodeOf(aerr) != ustatus.MappingAlreadyExists {
					return aerr
				}
			}
			if err := e.areaMappings.Remove(kTableID, sTableID); err != nil {
				return err
			}
		}
	}

	if err := e.Sync(); err != nil {
		return err
	}
	log.Debugf("[uengine] Collapse(%v) -> %d (run_id=%s)", v, last, e.runID)
	ustatus.Set(ustatus.NoError)
	return nil
}
