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
	"ufs/internal/uheader"
	"ufs/internal/ustatus"
	"ufs/internal/utable"
	"ufs/internal/utree"
)

// Nodes is the Node table every Relation and name index is built on.
type Nodes = *utable.Table[uheader.NodeSlot, *uheader.NodeSlot]

// Relation is a set of (owner, member) pairs stored over the shared
// Node table: one tree of "anchor" nodes keyed by owner id, each
// anchor holding the root of that owner's own member subtree in its
// second key slot. This is the single abstraction the source spec's
// design notes (§9) suggest in place of ad-hoc per-relationship trees
// — directory contents and area mapping sets are both just Relations,
// differing only in their member comparator.
//
// The root of the anchor tree is not kept in memory: getRoot/setRoot
// read and write it through the engine's on-image roots-anchor node,
// so the relation survives a process restart along with everything
// else the image holds.
type Relation struct {
	nodes     Nodes
	anchors   *utree.Tree
	memberCmp utree.Comparator
	getRoot   func() int64
	setRoot   func(int64)
}

// NewRelation builds a Relation over nodes, ordering each owner's
// members by memberCmp. getRoot/setRoot persist the anchor tree's
// root.
func NewRelation(nodes Nodes, memberCmp utree.Comparator, getRoot func() int64, setRoot func(int64)) *Relation {
	return &Relation{
		nodes:     nodes,
		anchors:   utree.New(nodes, ownerCompare, 2),
		memberCmp: memberCmp,
		getRoot:   getRoot,
		setRoot:   setRoot,
	}
}

// ownerCompare orders anchor nodes by their owner id alone (Keys[0]);
// Keys[1] on an anchor node is not a second key component but a
// payload cell holding that owner's member-subtree root.
func ownerCompare(a, b utree.Key) int {
	return utree.IntCompare(utree.Key{A: a.A}, utree.Key{A: b.A})
}

func (r *Relation) memberTree() *utree.Tree {
	return utree.New(r.nodes, r.memberCmp, 1)
}

func (r *Relation) anchor(owner int64) (*uheader.NodeSlot, error) {
	id, err := r.anchors.Find(r.getRoot(), utree.Key{A: owner})
	if err != nil {
		return nil, err
	}
	return r.nodes.Get(id)
}

func (r *Relation) ensureAnchor(owner int64) (*uheader.NodeSlot, error) {
	if a, err := r.anchor(owner); err == nil {
		return a, nil
	} else if ustatus.CodeOf(err) != ustatus.DoesNotExist {
		return nil, err
	}

	newRoot, err := r.anchors.Insert(r.getRoot(), utree.Key{A: owner, B: -1})
	if err != nil {
		return nil, err
	}
	r.setRoot(newRoot)
	return r.anchor(owner)
}

// Add inserts (owner, member). Fails with AlreadyExists if the pair
// is already present.
func (r *Relation) Add(owner, member int64) error {
	a, err := r.ensureAnchor(owner)
	if err != nil {
		return err
	}
	newRoot, err := r.memberTree().Insert(a.Keys[1], utree.Key{A: member})
	if err != nil {
		return err
	}
	a.Keys[1] = newRoot
	ustatus.Set(ustatus.NoError)
	return nil
}

// Remove deletes (owner, member). Fails with DoesNotExist if the pair
// is absent, including when owner has no anchor at all.
func (r *Relation) Remove(owner, member int64) error {
	a, err := r.anchor(owner)
	if err != nil {
		return err
	}
	newRoot, err := r.memberTree().Remove(a.Keys[1], utree.Key{A: member})
	if err != nil {
		return err
	}
	a.Keys[1] = newRoot
	ustatus.Set(ustatus.NoError)
	return nil
}

// Contains reports whether (owner, member) is present.
func (r *Relation) Contains(owner, member int64) (bool, error) {
	a, err := r.anchor(owner)
	if err != nil {
		if ustatus.CodeOf(err) == ustatus.DoesNotExist {
			return false, nil
		}
		return false, err
	}
	return r.memberTree().Contains(a.Keys[1], utree.Key{A: member})
}

// Members lists every member of owner in member-comparator order. An
// owner with no anchor yet (never had a member added) yields an empty
// slice rather than an error.
func (r *Relation) Members(owner int64) ([]int64, error) {
	a, err := r.anchor(owner)
	if err != nil {
		if ustatus.CodeOf(err) == ustatus.DoesNotExist {
			return nil, nil
		}
		return nil, err
	}
	var out []int64
	err = r.memberTree().InOrder(a.Keys[1], func(k utree.Key) bool {
		out = append(out, k.A)
		return true
	})
	return out, err
}

// Owners lists every owner that currently has an anchor (i.e. has, or
// has ever had, at least one member added).
func (r *Relation) Owners() ([]int64, error) {
	var out []int64
	err := r.anchors.InOrder(r.getRoot(), func(k utree.Key) bool {
		out = append(out, k.A)
		return true
	})
	return out, err
}

// FindMemberBy searches owner's member subtree using pred instead of
// a literal id, the way Tree.FindBy does — used to look a file up by
// name within a directory before any id for that name exists.
func (r *Relation) FindMemberBy(owner int64, pred func(utree.Key) int) (int64, error) {
	a, err := r.anchor(owner)
	if err != nil {
		return -1, err
	}
	nodeID, err := r.memberTree().FindBy(a.Keys[1], pred)
	if err != nil {
		return -1, err
	}
	n, err := r.nodes.Get(nodeID)
	if err != nil {
		return -1, err
	}
	return n.Keys[0], nil
}
