// mail_forwarder.go: POP3 mailbox polling forwarded into a Telegram topic
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package cogs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/emersion/go-message"
	"github.com/knadh/go-pop3"
	"github.com/robfig/cron/v3"

	mailbot "github.com/stormy-rpg/telegram-mail-bot"
)

func init() {
	mailbot.RegisterBuilder("mail_forwarder", newMailForwarderUnit)
}

func newMailForwarderUnit() (*mailbot.Unit, error) {
	f := &mailForwarder{seen: make(map[string]struct{})}
	return &mailbot.Unit{
		Setup:    f.setup,
		Teardown: f.teardown,
	}, nil
}

// mailConn is the slice of a POP3 session the forwarder uses. pop3.Conn
// satisfies it; tests substitute a fake.
type mailConn interface {
	Uidl(msgID int) ([]pop3.MessageID, error)
	Retr(msgID int) (*message.Entity, error)
	Quit() error
}

// connFactory dials and authenticates one POP3 session per poll.
type connFactory func() (mailConn, error)

const bodyPreviewLimit = 1024

// mailForwarder polls a POP3 mailbox on a schedule and forwards every unseen
// message into the configured Telegram group topic. Messages are tracked by
// UIDL, so the mailbox itself is never mutated and re-polling is idempotent
// within the life of the loaded extension.
type mailForwarder struct {
	cfg       mailbot.MailConfig
	messenger mailbot.Messenger
	logger    mailbot.Logger
	connect   connFactory

	jobID cron.EntryID

	mu        sync.Mutex
	seen      map[string]struct{}
	lastCheck time.Time
	lastError error
	forwarded int
}

func (f *mailForwarder) setup(s *mailbot.Scope) error {
	f.cfg = s.Host().Config().Mail
	f.messenger = s.Messenger()
	f.logger = s.Logger()
	if f.connect == nil {
		f.connect = f.dial
	}

	s.OnCommand("mail_status", f.onStatus)
	s.OnCommand("mail_check", f.onCheck)

	if !f.cfg.Enabled {
		f.logger.Info("Mail forwarding is disabled, commands only")
		s.SetState(f)
		return nil
	}

	id, err := s.Schedule(fmt.Sprintf("@every %s", f.cfg.CheckInterval), f.poll)
	if err != nil {
		return err
	}
	f.jobID = id

	s.SetState(f)
	f.logger.Info("Mail forwarding is active",
		"host", f.cfg.Host, "interval", f.cfg.CheckInterval, "group_id", f.cfg.GroupID)
	return nil
}

func (f *mailForwarder) teardown(s *mailbot.Scope) error {
	if f.jobID != 0 {
		s.RemoveJob(f.jobID)
	}
	return nil
}

// dial opens and authenticates a real POP3 session from the config.
func (f *mailForwarder) dial() (mailConn, error) {
	client := pop3.New(pop3.Opt{
		Host:       f.cfg.Host,
		Port:       f.cfg.Port,
		TLSEnabled: f.cfg.TLS,
	})
	conn, err := client.NewConn()
	if err != nil {
		return nil, mailbot.NewMailFetchError("connection failed", err)
	}
	if err := conn.Auth(f.cfg.Username, os.Getenv(f.cfg.PasswordEnv)); err != nil {
		conn.Quit()
		return nil, mailbot.NewMailFetchError("authentication failed", err)
	}
	return conn, nil
}

// poll runs one mailbox check from the scheduler.
func (f *mailForwarder) poll() {
	n, err := f.checkOnce(context.Background())

	f.mu.Lock()
	f.lastCheck = timecache.CachedTime()
	f.lastError = err
	f.forwarded += n
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("Mailbox check failed", "error", err)
		return
	}
	if n > 0 {
		f.logger.Info("Forwarded new mail", "count", n)
	}
}

// checkOnce fetches unseen messages and forwards them, returning how many
// were delivered. Partial progress counts: a failure mid-batch reports the
// messages already forwarded alongside the error.
func (f *mailForwarder) checkOnce(ctx context.Context) (int, error) {
	conn, err := f.connect()
	if err != nil {
		return 0, err
	}
	defer conn.Quit()

	ids, err := conn.Uidl(0)
	if err != nil {
		return 0, mailbot.NewMailFetchError("UIDL failed", err)
	}

	forwarded := 0
	for _, id := range ids {
		if f.alreadySeen(id.UID) {
			continue
		}
		entity, err := conn.Retr(id.ID)
		if err != nil {
			return forwarded, mailbot.NewMailFetchError(fmt.Sprintf("RETR %d failed", id.ID), err)
		}
		if err := f.forward(ctx, entity); err != nil {
			return forwarded, err
		}
		f.markSeen(id.UID)
		forwarded++
	}
	return forwarded, nil
}

func (f *mailForwarder) alreadySeen(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[uid]
	return ok
}

func (f *mailForwarder) markSeen(uid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[uid] = struct{}{}
}

// forward renders one mail message into the group topic.
func (f *mailForwarder) forward(ctx context.Context, entity *message.Entity) error {
	from := entity.Header.Get("From")
	subject := entity.Header.Get("Subject")
	preview, attachments := extractContent(entity)

	var b strings.Builder
	fmt.Fprintf(&b, "New mail\nFrom: %s\nSubject: %s", from, subject)
	if preview != "" {
		b.WriteString("\n\n")
		b.WriteString(preview)
	}
	if len(attachments) > 0 {
		fmt.Fprintf(&b, "\n\nAttachments: %s", strings.Join(attachments, ", "))
	}

	_, err := f.messenger.SendMessage(ctx, mailbot.OutgoingMessage{
		ChatID:   f.cfg.GroupID,
		ThreadID: f.cfg.ThreadID,
		Text:     b.String(),
	})
	return err
}

// extractContent pulls a body preview and the attachment filenames out of a
// message. For multipart mail the first text part becomes the preview;
// simple mail uses the body directly.
func extractContent(entity *message.Entity) (string, []string) {
	mr := entity.MultipartReader()
	if mr == nil {
		return readPreview(entity.Body), nil
	}

	preview := ""
	var attachments []string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		disp, params, _ := part.Header.ContentDisposition()
		if disp == "attachment" {
			if name := sanitizeFilename(params["filename"]); name != "" {
				attachments = append(attachments, name)
			}
			continue
		}
		if preview == "" {
			if ct, _, err := part.Header.ContentType(); err == nil && strings.HasPrefix(ct, "text/") {
				preview = readPreview(part.Body)
			}
		}
	}
	return preview, attachments
}

func readPreview(r io.Reader) string {
	if r == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r, bodyPreviewLimit))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// sanitizeFilename strips path separators and control characters so a
// crafted attachment name cannot smuggle markup or paths into the chat.
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

func (f *mailForwarder) onStatus(ctx context.Context, upd *mailbot.Update) error {
	f.mu.Lock()
	lastCheck, lastErr, forwarded := f.lastCheck, f.lastError, f.forwarded
	f.mu.Unlock()

	var b strings.Builder
	if f.cfg.Enabled {
		fmt.Fprintf(&b, "Mail forwarding: enabled (%s, every %s)\n", f.cfg.Host, f.cfg.CheckInterval)
	} else {
		b.WriteString("Mail forwarding: disabled\n")
	}
	if lastCheck.IsZero() {
		b.WriteString("Last check: never\n")
	} else {
		fmt.Fprintf(&b, "Last check: %s\n", lastCheck.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "Forwarded: %d", forwarded)
	if lastErr != nil {
		fmt.Fprintf(&b, "\nLast error: %v", lastErr)
	}
	return f.reply(ctx, upd, b.String())
}

func (f *mailForwarder) onCheck(ctx context.Context, upd *mailbot.Update) error {
	if !f.cfg.Enabled {
		return f.reply(ctx, upd, "Mail forwarding is disabled.")
	}

	n, err := f.checkOnce(ctx)

	f.mu.Lock()
	f.lastCheck = timecache.CachedTime()
	f.lastError = err
	f.forwarded += n
	f.mu.Unlock()

	if err != nil {
		return f.reply(ctx, upd, fmt.Sprintf("Mail check failed: %v", err))
	}
	return f.reply(ctx, upd, fmt.Sprintf("Mail check done, %d new message(s).", n))
}

func (f *mailForwarder) reply(ctx context.Context, upd *mailbot.Update, text string) error {
	m := mailbot.MessengerFromContext(ctx)
	if m == nil {
		m = f.messenger
	}
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
