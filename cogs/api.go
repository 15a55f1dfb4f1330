// api.go: user-facing commands and the HTTP status surface
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package cogs

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/gin-gonic/gin"

	mailbot "github.com/stormy-rpg/telegram-mail-bot"
)

func init() {
	mailbot.RegisterBuilder("api", newAPIUnit)
}

func newAPIUnit() (*mailbot.Unit, error) {
	cog := &apiCog{startedAt: timecache.CachedTime()}
	return &mailbot.Unit{
		Setup:    cog.setup,
		Teardown: cog.teardown,
	}, nil
}

// apiCog answers the basic liveness questions: /start and /ping over
// Telegram, GET /uptime over HTTP.
type apiCog struct {
	startedAt time.Time
}

func (c *apiCog) setup(s *mailbot.Scope) error {
	s.OnCommand("start", c.onStart)
	s.OnCommand("ping", c.onPing)

	// HTTP routes are additive: gin cannot unregister them, so a reload
	// re-registering the same path would panic. Guard with a lookup.
	if engine := s.HTTP(); engine != nil {
		if !hasRoute(engine, http.MethodGet, "/api/uptime") {
			engine.GET("/api/uptime", c.uptimeHandler(s))
		}
	}

	s.SetState(c)
	return nil
}

func (c *apiCog) teardown(s *mailbot.Scope) error {
	s.Logger().Debug("API cog shutting down", "uptime", time.Since(c.startedAt))
	return nil
}

func (c *apiCog) onStart(ctx context.Context, upd *mailbot.Update) error {
	return c.reply(ctx, upd, "Mail forwarder bot is running. Try /ping or /mail_status.")
}

func (c *apiCog) onPing(ctx context.Context, upd *mailbot.Update) error {
	return c.reply(ctx, upd, fmt.Sprintf("pong (up %s)", time.Since(c.startedAt).Round(time.Second)))
}

func (c *apiCog) reply(ctx context.Context, upd *mailbot.Update, text string) error {
	m := mailbot.MessengerFromContext(ctx)
	if m == nil || upd.Message == nil {
		return nil
	}
	_, err := m.SendMessage(ctx, mailbot.OutgoingMessage{
		ChatID:   upd.Message.Chat.ID,
		ThreadID: upd.Message.ThreadID,
		Text:     text,
	})
	return err
}

func (c *apiCog) uptimeHandler(s *mailbot.Scope) gin.HandlerFunc {
	version := s.Host().Config().Version
	return func(gc *gin.Context) {
		gc.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version,
			"uptime":  time.Since(c.startedAt).String(),
		})
	}
}

// hasRoute reports whether the engine already serves method+path.
func hasRoute(engine *gin.Engine, method, path string) bool {
	for _, route := range engine.Routes() {
		if route.Method == method && route.Path == path {
			return true
		}
	}
	return false
}
