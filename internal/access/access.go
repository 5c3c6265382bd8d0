// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package access restricts the bot to an allow-list of Telegram users.
package access

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/bot"
	"github.com/pdiddy/article-bot/internal/metrics"
)

// ErrEmptyAllowList is returned by NewGuard when no user is allowed.
var ErrEmptyAllowList = errors.New("allow-list is empty: set access.allowed_users or ALLOWED_USERS")

// Guard admits events whose sender is on the allow-list.
type Guard struct {
	usernames map[string]bool
	ids       map[int64]bool
	replies   bot.Transport
	log       *zap.Logger
}

// NewGuard builds a Guard from entries that are usernames, with or without
// a leading "@", or numeric user ids. Denials are answered through replies.
func NewGuard(allowed []string, replies bot.Transport, log *zap.Logger) (*Guard, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Guard{
		usernames: make(map[string]bool),
		ids:       make(map[int64]bool),
		replies:   replies,
		log:       log.With(zap.String("component", "access")),
	}
	for _, entry := range allowed {
		entry = strings.TrimPrefix(strings.TrimSpace(entry), "@")
		if entry == "" {
			continue
		}
		if id, err := strconv.ParseInt(entry, 10, 64); err == nil {
			g.ids[id] = true
			continue
		}
		g.usernames[strings.ToLower(entry)] = true
	}
	if len(g.usernames) == 0 && len(g.ids) == 0 {
		return nil, ErrEmptyAllowList
	}
	return g, nil
}

// ParseList splits a comma or whitespace separated allow-list.
func ParseList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
}

// Allowed reports whether sender is on the allow-list.
func (g *Guard) Allowed(sender bot.Sender) bool {
	if sender.ID != 0 && g.ids[sender.ID] {
		return true
	}
	return sender.Username != "" && g.usernames[strings.ToLower(sender.Username)]
}

// Wrap returns a handler that answers denied senders with a single fixed
// reply and never calls next for them.
func (g *Guard) Wrap(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, ev bot.Event) error {
		if g.Allowed(ev.Sender) {
			return next(ctx, ev)
		}
		kind := ev.Kind()
		if kind == bot.KindIgnored {
			return nil
		}
		g.log.Info("access denied",
			zap.Int64("user_id", ev.Sender.ID),
			zap.String("username", ev.Sender.Username),
			zap.String("kind", kind.String()))
		metrics.TurnsTotal.WithLabelValues(kind.String(), metrics.OutcomeDenied).Inc()
		return g.replies.Send(ctx, ev.Session, bot.Plain(bot.MsgAccessDenied))
	}
}

// Middleware adapts Wrap to bot.Middleware.
func (g *Guard) Middleware() bot.Middleware {
	return g.Wrap
}
