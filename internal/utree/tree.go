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

// Package utree is an unbalanced binary search tree over the Node
// table, addressed entirely by slot id rather than pointers so it can
// live inside a memory-mapped image. Every tree shares the same Node
// table; what distinguishes one logical tree from another is only its
// root id and its Comparator, both of which the caller supplies and
// persists (see engine.go's roots anchor).
//
// Traversal and deletion are iterative, using an explicit slice as a
// stack, the same style used upstream for walking deeply-cascaded
// mount chains without recursion.
package utree

import (
	"ufs/internal/uheader"
	"ufs/internal/ustatus"
	"ufs/internal/utable"
)

// Key is the comparison key stored in a Node slot. B is unused by
// single-key (name-ordered) trees.
type Key struct {
	A, B int64
}

// Comparator orders two keys: negative if a < b, zero if equal,
// positive if a > b.
type Comparator func(a, b Key) int

// Nodes is the Node table type every Tree operates over.
type Nodes = *utable.Table[uheader.NodeSlot, *uheader.NodeSlot]

// Tree is a BST view over a shared Node table.
type Tree struct {
	nodes    Nodes
	cmp      Comparator
	keyCount uint8
}

// New builds a Tree backed by nodes, ordered by cmp. keyCount (1 or 2)
// is stamped onto every node this Tree allocates, so a reader of the
// raw table can tell a name-index node from a composite-relation node.
func New(nodes Nodes, cmp Comparator, keyCount uint8) *Tree {
	return &Tree{nodes: nodes, cmp: cmp, keyCount: keyCount}
}

func (t *Tree) keyOf(n *uheader.NodeSlot) Key {
	return Key{A: n.Keys[0], B: n.Keys[1]}
}

// Insert adds key under root, returning the (possibly new) root.
// Fails with AlreadyExists if an equal key is already present, or
// OutOfMemory if the Node table has no free slot.
func (t *Tree) Insert(root int64, key Key) (int64, error) {
	if root < 0 {
		id, err := t.newLeaf(key)
		if err != nil {
			return -1, err
		}
		ustatus.Set(ustatus.NoError)
		return id, nil
	}

	cur := root
	for {
		node, err := t.nodes.Get(cur)
		if err != nil {
			return -1, err
		}
		c := t.cmp(key, t.keyOf(node))
		switch {
		case c == 0:
			return root, ustatus.New(ustatus.Set(ustatus.AlreadyExists))
		case c < 0:
			if node.Left < 0 {
				id, err := t.newLeaf(key)
				if err != nil {
					return -1, err
				}
				node.Left = id
				ustatus.Set(ustatus.NoError)
				return root, nil
			}
			cur = node.Left
		default:
			if node.Right < 0 {
				id, err := t.newLeaf(key)
				if err != nil {
					return -1, err
				}
				node.Right = id
				ustatus.Set(ustatus.NoError)
				return root, nil
			}
			cur = node.Right
		}
	}
}

func (t *Tree) newLeaf(key Key) (int64, error) {
	id, node, err := t.nodes.Alloc()
	if err != nil {
		return -1, err
	}
	node.Left = -1
	node.Right = -1
	node.Keys[0] = key.A
	node.Keys[1] = key.B
	node.KeyCount = t.keyCount
	return id, nil
}

// Find returns the slot id of the node matching key, or DoesNotExist.
func (t *Tree) Find(root int64, key Key) (int64, error) {
	return t.FindBy(root, func(k Key) int { return t.cmp(key, k) })
}

// FindBy walks the tree like Find, but compares against pred instead
// of a literal Key. pred(k) must use the same sign convention a
// Comparator would for (target, k): negative if the sought target is
// less than k, zero on a match, positive if greater. This lets a
// caller search by a derived quantity — e.g. a name not yet
// associated with any id — without fabricating a synthetic Key.
func (t *Tree) FindBy(root int64, pred func(Key) int) (int64, error) {
	cur := root
	for cur >= 0 {
		node, err := t.nodes.Get(cur)
		if err != nil {
			return -1, err
		}
		c := pred(t.keyOf(node))
		switch {
		case c == 0:
			ustatus.Set(ustatus.NoError)
			return cur, nil
		case c < 0:
			cur = node.Left
		default:
			cur = node.Right
		}
	}
	return -1, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
}

// Contains reports whether key is present under root.
func (t *Tree) Contains(root int64, key Key) (bool, error) {
	_, err := t.Find(root, key)
	if err != nil {
		if ustatus.CodeOf(err) == ustatus.DoesNotExist {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type ancestor struct {
	id       int64
	wasLeft  bool
}

// Remove deletes key from under root, returning the (possibly new)
// root. Fails with DoesNotExist if key is not present.
func (t *Tree) Remove(root int64, key Key) (int64, error) {
	var path []ancestor
	cur := root
	for cur >= 0 {
		node, err := t.nodes.Get(cur)
		if err != nil {
			return -1, err
		}
		c := t.cmp(key, t.keyOf(node))
		if c == 0 {
			break
		}
		if c < 0 {
			path = append(path, ancestor{cur, true})
			cur = node.Left
		} else {
			path = append(path, ancestor{cur, false})
			cur = node.Right
		}
	}
	if cur < 0 {
		return root, ustatus.New(ustatus.Set(ustatus.DoesNotExist))
	}

	node, err := t.nodes.Get(cur)
	if err != nil {
		return -1, err
	}

	if node.Left >= 0 && node.Right >= 0 {
		// splice in the in-order successor's key, then remove that
		// successor node (which has no left child) from its own spot.
		succParent := cur
		succID := node.Right
		succ, err := t.nodes.Get(succID)
		if err != nil {
			return -1, err
		}
		succIsLeftChild := false
		for succ.Left >= 0 {
			succParent = succID
			succID = succ.Left
			succ, err = t.nodes.Get(succID)
			if err != nil {
				return -1, err
			}
			succIsLeftChild = true
		}

		node.Keys[0], node.Keys[1] = succ.Keys[0], succ.Keys[1]

		if succParent == cur {
			node.Right = succ.Right
		} else if succIsLeftChild {
			sp, err := t.nodes.Get(succParent)
			if err != nil {
				return -1, err
			}
			sp.Left = succ.Right
		} else {
			sp, err := t.nodes.Get(succParent)
			if err != nil {
				return -1, err
			}
			sp.Right = succ.Right
		}

		if err := t.nodes.Free(succID); err != nil {
			return -1, err
		}
		ustatus.Set(ustatus.NoError)
		return root, nil
	}

	var replacement int64 = -1
	if node.Left >= 0 {
		replacement = node.Left
	} else if node.Right >= 0 {
		replacement = node.Right
	}

	if err := t.nodes.Free(cur); err != nil {
		return -1, err
	}

	if len(path) == 0 {
		ustatus.Set(ustatus.NoError)
		return replacement, nil
	}

	parent := path[len(path)-1]
	p, err := t.nodes.Get(parent.id)
	if err != nil {
		return -1, err
	}
	if parent.wasLeft {
		p.Left = replacement
	} else {
		p.Right = replacement
	}

	ustatus.Set(ustatus.NoError)
	return root, nil
}

// InOrder walks every key under root in ascending order, invoking
// visit for each. Traversal stops early if visit returns false.
func (t *Tree) InOrder(root int64, visit func(Key) bool) error {
	var stack []int64
	cur := root
	for cur >= 0 || len(stack) > 0 {
		for cur >= 0 {
			stack = append(stack, cur)
			node, err := t.nodes.Get(cur)
			if err != nil {
				return err
			}
			cur = node.Left
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, err := t.nodes.Get(top)
		if err != nil {
			return err
		}
		if !visit(t.keyOf(node)) {
			return nil
		}
		cur = node.Right
	}
	return nil
}

// IntCompare orders two Keys purely by (A, B) as plain integers. It
// orders the area mapping sets; relation anchor trees compare A alone
// through it. Directory membership is ordered by name instead.
func IntCompare(a, b Key) int {
	switch {
	case a.A != b.A:
		if a.A < b.A {
			return -1
		}
		return 1
	case a.B != b.B:
		if a.B < b.B {
			return -1
		}
		return 1
	default:
		return 0
	}
}
