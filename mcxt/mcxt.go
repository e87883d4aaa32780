// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package mcxt implements lifetime scopes ("memory
// contexts") for values whose validity must end
// at a well-defined point, such as per-tuple
// temporaries and aggregate transition states.
//
// Go memory is garbage collected, so a Context
// does not free anything itself; it tracks the
// objects it owns, invalidates them on Reset,
// and runs registered callbacks.
package mcxt

import (
	"fmt"
	"sync/atomic"
)

// Owned is implemented by objects whose
// lifetime is bound to a Context.
type Owned interface {
	// Release is called when the owning
	// context is reset or deleted.
	Release()
}

// Context is a node in a tree of lifetimes.
// Resetting a context resets all of its
// children.
type Context struct {
	name      string
	parent    *Context
	children  []*Context
	owned     []Owned
	callbacks []func()
	resets    uint64
	deleted   bool
}

var generation atomic.Uint64

// New creates a context as a child of parent.
// A nil parent creates a root context.
func New(parent *Context, name string) *Context {
	c := &Context{name: name}
	if parent != nil {
		c.parent = parent
		parent.children = append(parent.children, c)
	}
	return c
}

// Name returns the name given to New.
func (c *Context) Name() string { return c.name }

// Parent returns the parent context or nil.
func (c *Context) Parent() *Context { return c.parent }

// Generation returns a counter that changes
// every time c is reset.
func (c *Context) Generation() uint64 { return c.resets }

// Own attaches o to c.
func (c *Context) Own(o Owned) {
	c.owned = append(c.owned, o)
}

// Disown detaches o from c without releasing it.
// It reports whether o was owned by c.
func (c *Context) Disown(o Owned) bool {
	for i := range c.owned {
		if c.owned[i] == o {
			c.owned = append(c.owned[:i], c.owned[i+1:]...)
			return true
		}
	}
	return false
}

// Owns reports whether o is attached to c.
func (c *Context) Owns(o Owned) bool {
	for i := range c.owned {
		if c.owned[i] == o {
			return true
		}
	}
	return false
}

// Transfer moves o from its current owner
// (if any) to dst.
func Transfer(o Owned, from, dst *Context) {
	if from == dst {
		return
	}
	if from != nil {
		from.Disown(o)
	}
	dst.Own(o)
}

// RegisterResetCallback arranges for fn to be
// called the next time c is reset or deleted.
// Callbacks run in reverse registration order.
func (c *Context) RegisterResetCallback(fn func()) {
	c.callbacks = append(c.callbacks, fn)
}

// Reset releases everything owned by c and its
// descendants and runs pending callbacks.
// Child contexts are deleted.
func (c *Context) Reset() {
	for _, child := range c.children {
		child.delete()
	}
	c.children = c.children[:0]
	c.release()
	c.resets = generation.Add(1)
}

// Delete resets c and detaches it from its parent.
func (c *Context) Delete() {
	if c.deleted {
		return
	}
	if p := c.parent; p != nil {
		for i := range p.children {
			if p.children[i] == c {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	c.delete()
}

func (c *Context) delete() {
	for _, child := range c.children {
		child.delete()
	}
	c.children = nil
	c.release()
	c.deleted = true
}

func (c *Context) release() {
	for i := len(c.callbacks) - 1; i >= 0; i-- {
		c.callbacks[i]()
	}
	c.callbacks = c.callbacks[:0]
	for _, o := range c.owned {
		o.Release()
	}
	c.owned = c.owned[:0]
}

// IsDescendant reports whether c is anc or
// lives below it.
func (c *Context) IsDescendant(anc *Context) bool {
	for p := c; p != nil; p = p.parent {
		if p == anc {
			return true
		}
	}
	return false
}

func (c *Context) String() string {
	if c == nil {
		return "<nil context>"
	}
	return fmt.Sprintf("%s(%d owned, %d children)", c.name, len(c.owned), len(c.children))
}
