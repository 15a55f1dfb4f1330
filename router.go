// router.go: ordered routing tree with per-extension handler ownership
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"github.com/google/uuid"
)

// Handler is a registered callback with its trigger and ownership tag.
//
// Owner is a back-reference identifying the extension key that registered
// the handler. It exists purely so the unloader can find the handler again;
// it never implies any lifetime control over the extension itself.
type Handler struct {
	ID       string
	Owner    string
	Filter   Filter
	Callback HandlerFunc
}

// Router is a node of the routing tree: an ordered list of handlers plus an
// ordered list of child routers.
//
// The tree itself is pure data and carries no locking. The Host serializes
// all mutation behind its tree lock; update dispatch takes the read side.
// A detached router (not yet included in the tree) may be populated freely
// by the extension that owns it.
type Router struct {
	name     string
	owner    string
	handlers []Handler
	children []*Router
}

// NewRouter creates a detached routing node.
func NewRouter(name string) *Router {
	return &Router{name: name}
}

// Name returns the router's display name.
func (r *Router) Name() string { return r.name }

// Owner returns the extension key that owns this router, or "" for
// host-owned nodes such as the root.
func (r *Router) Owner() string { return r.owner }

// On appends a handler without an ownership tag. The tag is stamped when the
// router is included into the tree through a Scope.
func (r *Router) On(f Filter, cb HandlerFunc) string {
	return r.attach("", f, cb)
}

// attach appends a handler tagged with the given owner and returns its ID.
func (r *Router) attach(owner string, f Filter, cb HandlerFunc) string {
	h := Handler{
		ID:       uuid.NewString(),
		Owner:    owner,
		Filter:   f,
		Callback: cb,
	}
	r.handlers = append(r.handlers, h)
	return h.ID
}

// include appends a child router.
func (r *Router) include(child *Router) {
	r.children = append(r.children, child)
}

// stampOwner tags the router and every untagged handler in its subtree with
// the given extension key, returning the IDs of the handlers it tagged.
func (r *Router) stampOwner(owner string) []string {
	var ids []string
	r.owner = owner
	for i := range r.handlers {
		if r.handlers[i].Owner == "" {
			r.handlers[i].Owner = owner
			ids = append(ids, r.handlers[i].ID)
		}
	}
	for _, child := range r.children {
		ids = append(ids, child.stampOwner(owner)...)
	}
	return ids
}

// removeOwned removes every handler owned by key in this subtree. A child
// router owned outright by key is detached in one step instead of being
// filtered element by element. Returns the number of handlers removed,
// counting those inside detached subtrees.
func (r *Router) removeOwned(key string) int {
	removed := 0

	filtered := r.handlers[:0]
	for _, h := range r.handlers {
		if h.Owner == key {
			removed++
			continue
		}
		filtered = append(filtered, h)
	}
	r.handlers = filtered

	kept := r.children[:0]
	for _, child := range r.children {
		if child.owner == key {
			removed += child.countHandlers()
			continue
		}
		removed += child.removeOwned(key)
		kept = append(kept, child)
	}
	r.children = kept

	return removed
}

// countHandlers returns the number of handlers in this subtree.
func (r *Router) countHandlers() int {
	n := len(r.handlers)
	for _, child := range r.children {
		n += child.countHandlers()
	}
	return n
}

// countOwned returns the number of handlers owned by key in this subtree.
func (r *Router) countOwned(key string) int {
	n := 0
	for _, h := range r.handlers {
		if h.Owner == key {
			n++
		}
	}
	for _, child := range r.children {
		n += child.countOwned(key)
	}
	return n
}

// match finds the first handler whose filter accepts the update: handlers of
// this node in registration order first, then children in inclusion order.
func (r *Router) match(upd *Update) (HandlerFunc, bool) {
	for _, h := range r.handlers {
		if h.Filter != nil && h.Filter(upd) {
			return h.Callback, true
		}
	}
	for _, child := range r.children {
		if cb, ok := child.match(upd); ok {
			return cb, true
		}
	}
	return nil, false
}

// Handlers returns a copy of this node's handler list.
func (r *Router) Handlers() []Handler {
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Children returns a copy of this node's child list.
func (r *Router) Children() []*Router {
	out := make([]*Router, len(r.children))
	copy(out, r.children)
	return out
}

// Walk visits every node of the subtree depth-first, parent before children.
func (r *Router) Walk(visit func(node *Router)) {
	visit(r)
	for _, child := range r.children {
		child.Walk(visit)
	}
}

// Fingerprint summarizes the subtree's structure as an ordered list of
// (router name, handler ID) pairs. Two trees with equal fingerprints hold
// the same handlers in the same positions.
func (r *Router) Fingerprint() []string {
	var out []string
	r.Walk(func(node *Router) {
		for _, h := range node.handlers {
			out = append(out, node.name+"/"+h.ID)
		}
	})
	return out
}
