// telegram.go: Bot API transport and the long-polling update loop
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Messenger is the outbound message transport handed to extensions. The real
// implementation is BotClient; tests substitute a recorder.
type Messenger interface {
	SendMessage(ctx context.Context, msg OutgoingMessage) (*Message, error)
}

// OutgoingMessage is a message to be delivered to a chat, optionally into a
// forum topic thread.
type OutgoingMessage struct {
	ChatID    int64  `json:"chat_id"`
	ThreadID  int64  `json:"message_thread_id,omitempty"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type messengerContextKey struct{}

// ContextWithMessenger stores a messenger in the context. Dispatch does this
// for every update so handlers can reply without holding a host reference.
func ContextWithMessenger(ctx context.Context, m Messenger) context.Context {
	return context.WithValue(ctx, messengerContextKey{}, m)
}

// MessengerFromContext extracts the messenger from ctx, or nil.
func MessengerFromContext(ctx context.Context) Messenger {
	m, _ := ctx.Value(messengerContextKey{}).(Messenger)
	return m
}

// BotClient talks to the Telegram Bot API over HTTPS.
type BotClient struct {
	token   string
	baseURL string
	http    *http.Client
	logger  Logger
}

// BotOption customizes a BotClient.
type BotOption func(*BotClient)

// WithBaseURL overrides the API endpoint; tests point it at a local server.
func WithBaseURL(base string) BotOption {
	return func(c *BotClient) { c.baseURL = base }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) BotOption {
	return func(c *BotClient) { c.http = hc }
}

// WithBotLogger sets the client logger.
func WithBotLogger(logger Logger) BotOption {
	return func(c *BotClient) { c.logger = logger }
}

// NewBotClient creates a Bot API client for the given token.
func NewBotClient(token string, opts ...BotOption) *BotClient {
	c := &BotClient{
		token:   token,
		baseURL: "https://api.telegram.org",
		http:    &http.Client{Timeout: 65 * time.Second},
		logger:  DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the Bot API envelope every method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// call performs one Bot API method call and decodes the result envelope.
func (c *BotClient) call(ctx context.Context, method string, payload any, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return NewTelegramAPIError(method, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return NewTelegramAPIError(method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return NewTelegramAPIError(method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return NewTelegramAPIError(method, err)
	}
	if !envelope.OK {
		return NewTelegramAPIError(method,
			fmt.Errorf("api error %d: %s", envelope.ErrorCode, envelope.Description))
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return NewTelegramAPIError(method, err)
		}
	}
	return nil
}

// GetMe returns the bot's own user record; used at startup to verify the token.
func (c *BotClient) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// SendMessage delivers a message to a chat.
func (c *BotClient) SendMessage(ctx context.Context, msg OutgoingMessage) (*Message, error) {
	var sent Message
	if err := c.call(ctx, "sendMessage", msg, &sent); err != nil {
		return nil, err
	}
	return &sent, nil
}

// GetUpdates long-polls for updates past the given offset.
func (c *BotClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(int(timeout.Seconds())))

	var updates []Update
	endpoint := "getUpdates?" + params.Encode()
	if err := c.call(ctx, endpoint, nil, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// Poller feeds updates from the Bot API into the host's routing tree.
type Poller struct {
	client  *BotClient
	host    *Host
	logger  Logger
	timeout time.Duration
}

// NewPoller creates a long-polling update loop over the client.
func NewPoller(client *BotClient, host *Host) *Poller {
	return &Poller{
		client:  client,
		host:    host,
		logger:  host.Logger(),
		timeout: 60 * time.Second,
	}
}

// Run polls until the context is cancelled. Transport errors back off and
// retry; handler errors are logged per update and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("Update polling failed, backing off", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for i := range updates {
			upd := &updates[i]
			offset = upd.ID + 1

			handled, err := p.host.Dispatch(ctx, upd)
			if err != nil {
				p.logger.Error("Update handler failed", "update_id", upd.ID, "error", err)
				continue
			}
			if !handled {
				p.logger.Debug("Update matched no handler", "update_id", upd.ID)
			}
		}
	}
}
