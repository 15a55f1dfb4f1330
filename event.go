// event.go: Telegram update model and handler trigger filters
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"context"
	"strings"
)

// User identifies the sender of a message.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Message is the subset of the Bot API message object the host routes on.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	ThreadID  int64  `json:"message_thread_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Update is a single incoming event dispatched through the routing tree.
type Update struct {
	ID      int64    `json:"update_id"`
	Message *Message `json:"message,omitempty"`
}

// HandlerFunc is the callback attached to a routing node.
type HandlerFunc func(ctx context.Context, upd *Update) error

// Filter decides whether a handler fires for an update.
type Filter func(upd *Update) bool

// Any matches every update.
func Any() Filter {
	return func(*Update) bool { return true }
}

// Command matches a "/name" message, with or without a "@botname" suffix.
func Command(name string) Filter {
	return func(upd *Update) bool {
		if upd == nil || upd.Message == nil {
			return false
		}
		text := strings.TrimSpace(upd.Message.Text)
		if !strings.HasPrefix(text, "/") {
			return false
		}
		first := strings.Fields(text)[0]
		cmd := strings.TrimPrefix(first, "/")
		if at := strings.IndexByte(cmd, '@'); at >= 0 {
			cmd = cmd[:at]
		}
		return cmd == name
	}
}

// TextContains matches messages whose text contains the given substring.
func TextContains(sub string) Filter {
	return func(upd *Update) bool {
		return upd != nil && upd.Message != nil && strings.Contains(upd.Message.Text, sub)
	}
}
