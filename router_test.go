// router_test.go: routing tree ownership and ordering tests
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, upd *Update) error { return nil }

func TestRouterAttachPreservesOrder(t *testing.T) {
	r := NewRouter("root")
	id1 := r.attach("a", Any(), noopHandler)
	id2 := r.attach("b", Any(), noopHandler)
	id3 := r.attach("a", Any(), noopHandler)

	handlers := r.Handlers()
	require.Len(t, handlers, 3)
	assert.Equal(t, []string{id1, id2, id3},
		[]string{handlers[0].ID, handlers[1].ID, handlers[2].ID})
}

func TestRouterMatchFirstWins(t *testing.T) {
	r := NewRouter("root")
	called := ""
	r.attach("a", Command("ping"), func(ctx context.Context, upd *Update) error {
		called = "first"
		return nil
	})
	r.attach("b", Command("ping"), func(ctx context.Context, upd *Update) error {
		called = "second"
		return nil
	})

	upd := &Update{Message: &Message{Text: "/ping"}}
	cb, ok := r.match(upd)
	require.True(t, ok)
	require.NoError(t, cb(context.Background(), upd))
	assert.Equal(t, "first", called)
}

func TestRouterMatchParentBeforeChildren(t *testing.T) {
	r := NewRouter("root")
	child := NewRouter("child")
	child.On(Any(), func(ctx context.Context, upd *Update) error { return nil })
	r.include(child)

	order := ""
	r.attach("a", Any(), func(ctx context.Context, upd *Update) error {
		order = "parent"
		return nil
	})

	cb, ok := r.match(&Update{})
	require.True(t, ok)
	require.NoError(t, cb(context.Background(), &Update{}))
	assert.Equal(t, "parent", order)
}

func TestRouterStampOwnerTagsUntaggedOnly(t *testing.T) {
	r := NewRouter("sub")
	r.On(Any(), noopHandler)
	r.attach("other", Any(), noopHandler)

	nested := NewRouter("nested")
	nested.On(Any(), noopHandler)
	r.include(nested)

	ids := r.stampOwner("mine")
	assert.Len(t, ids, 2)
	assert.Equal(t, "mine", r.Owner())
	assert.Equal(t, "mine", nested.Owner())

	handlers := r.Handlers()
	assert.Equal(t, "mine", handlers[0].Owner)
	assert.Equal(t, "other", handlers[1].Owner)
}

func TestRouterRemoveOwnedFiltersInPlace(t *testing.T) {
	r := NewRouter("root")
	r.attach("a", Any(), noopHandler)
	keep := r.attach("b", Any(), noopHandler)
	r.attach("a", Any(), noopHandler)

	removed := r.removeOwned("a")
	assert.Equal(t, 2, removed)

	handlers := r.Handlers()
	require.Len(t, handlers, 1)
	assert.Equal(t, keep, handlers[0].ID)
}

func TestRouterRemoveOwnedDetachesWholeSubtree(t *testing.T) {
	root := NewRouter("root")

	sub := NewRouter("sub")
	sub.On(Any(), noopHandler)
	sub.On(Any(), noopHandler)
	sub.stampOwner("mine")
	root.include(sub)

	other := NewRouter("other")
	other.On(Any(), noopHandler)
	other.stampOwner("theirs")
	root.include(other)

	removed := root.removeOwned("mine")
	assert.Equal(t, 2, removed)

	children := root.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "other", children[0].Name())
	assert.Equal(t, 1, root.countHandlers())
}

func TestRouterRemoveOwnedRecursesSharedChild(t *testing.T) {
	root := NewRouter("root")

	// Shared child: owned by "theirs" but holding one handler tagged "mine".
	shared := NewRouter("shared")
	shared.attach("theirs", Any(), noopHandler)
	shared.attach("mine", Any(), noopHandler)
	shared.owner = "theirs"
	root.include(shared)

	removed := root.removeOwned("mine")
	assert.Equal(t, 1, removed)

	children := root.Children()
	require.Len(t, children, 1)
	assert.Equal(t, 1, children[0].countHandlers())
	assert.Equal(t, 0, root.countOwned("mine"))
}

func TestRouterFingerprintEquality(t *testing.T) {
	build := func() *Router {
		r := NewRouter("root")
		r.handlers = append(r.handlers, Handler{ID: "h1"})
		child := NewRouter("child")
		child.handlers = append(child.handlers, Handler{ID: "h2"})
		r.include(child)
		return r
	}

	assert.Equal(t, build().Fingerprint(), build().Fingerprint())

	reordered := NewRouter("root")
	child := NewRouter("child")
	child.handlers = append(child.handlers, Handler{ID: "h2"})
	reordered.include(child)
	reordered.handlers = append(reordered.handlers, Handler{ID: "h1"})
	assert.Equal(t, build().Fingerprint(), reordered.Fingerprint(),
		"fingerprint walks parent handlers before children regardless of insertion order")
}

func TestCommandFilterVariants(t *testing.T) {
	f := Command("status")

	assert.True(t, f(&Update{Message: &Message{Text: "/status"}}))
	assert.True(t, f(&Update{Message: &Message{Text: "/status@somebot extra"}}))
	assert.False(t, f(&Update{Message: &Message{Text: "/statuses"}}))
	assert.False(t, f(&Update{Message: &Message{Text: "status"}}))
	assert.False(t, f(&Update{}))
	assert.False(t, f(nil))
}
