// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telegram connects the bot to the Telegram Bot API through long
// polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pdiddy/article-bot/internal/bot"
	"github.com/pdiddy/article-bot/internal/logging"
	"github.com/pdiddy/article-bot/internal/markup"
	"github.com/pdiddy/article-bot/pkg/types"
)

const (
	defaultPollTimeout = 30
	defaultMaxDownload = 20 << 20
)

// ErrFileTooLarge is returned by Download when a file exceeds the limit.
var ErrFileTooLarge = errors.New("file exceeds the download limit")

// botAPI is the part of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Adapter receives updates and implements bot.Transport.
type Adapter struct {
	api         botAPI
	http        *http.Client
	pollTimeout int
	maxDownload int64
	log         *zap.Logger

	wg sync.WaitGroup
}

// New authenticates with the bot token and returns an Adapter.
func New(cfg types.TelegramConfig, log *zap.Logger) (*Adapter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := tgbotapi.SetLogger(logging.TelegramLogger{Log: log.Named("tgbotapi")}); err != nil {
		return nil, fmt.Errorf("setting telegram logger: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	log.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	return newAdapter(api, cfg, log), nil
}

func newAdapter(api botAPI, cfg types.TelegramConfig, log *zap.Logger) *Adapter {
	a := &Adapter{
		api:         api,
		http:        &http.Client{Timeout: 60 * time.Second},
		pollTimeout: cfg.PollTimeout,
		maxDownload: cfg.MaxDownloadBytes,
		log:         log.With(zap.String("component", "telegram")),
	}
	if a.pollTimeout <= 0 {
		a.pollTimeout = defaultPollTimeout
	}
	if a.maxDownload <= 0 {
		a.maxDownload = defaultMaxDownload
	}
	return a
}

// Run polls for updates and dispatches each message to handle on its own
// goroutine until ctx is cancelled. It waits for in-flight handlers before
// returning.
func (a *Adapter) Run(ctx context.Context, handle bot.HandlerFunc) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = a.pollTimeout
	updates := a.api.GetUpdatesChan(cfg)
	a.log.Info("polling for updates", zap.Int("timeout", a.pollTimeout))

	defer a.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			// Drain so the library's polling goroutine can exit.
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				a.log.Info("updates channel closed")
				return nil
			}
			ev, ok := toEvent(update)
			if !ok {
				continue
			}
			a.log.Debug("inbound received",
				zap.Int64("chat_id", ev.Session),
				zap.Int64("user_id", ev.Sender.ID),
				zap.String("username", ev.Sender.Username),
				zap.String("kind", ev.Kind().String()))

			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				if err := handle(ctx, ev); err != nil {
					a.log.Error("handle inbound failed", zap.Int64("chat_id", ev.Session), zap.Error(err))
				}
			}()
		}
	}
}

// toEvent converts an update into a bot event. Updates without a message
// are skipped.
func toEvent(update tgbotapi.Update) (bot.Event, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return bot.Event{}, false
	}

	ev := bot.Event{
		Session:   msg.Chat.ID,
		MessageID: msg.MessageID,
	}
	if msg.From != nil {
		ev.Sender = bot.Sender{ID: msg.From.ID, Username: msg.From.UserName}
	}

	switch {
	case msg.IsCommand():
		ev.Command = msg.Command()
		ev.Text = msg.CommandArguments()
	case msg.Document != nil:
		ev.Document = &bot.Document{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     int64(msg.Document.FileSize),
		}
		ev.Text = strings.TrimSpace(msg.Caption)
	default:
		ev.Text = msg.Text
	}
	return ev, true
}

// Send delivers a reply. A MarkdownV2 reply rejected by Telegram's parser
// is resent once as plain text.
func (a *Adapter) Send(ctx context.Context, session int64, r bot.Reply) error {
	text := markup.Truncate(markup.Sanitize(r.Text), markup.MaxMessageLength)
	msg := tgbotapi.NewMessage(session, text)
	if r.Format == bot.FormatMarkdownV2 {
		msg.ParseMode = tgbotapi.ModeMarkdownV2
	}

	err := a.send(ctx, msg)
	if err != nil && r.Format == bot.FormatMarkdownV2 && isParseError(err) {
		a.log.Warn("markdown rejected, resending as plain text", zap.Int64("chat_id", session), zap.Error(err))
		msg.Text = markup.UnescapeMarkdownV2(text)
		msg.ParseMode = ""
		err = a.send(ctx, msg)
	}
	return err
}

// send retries once when Telegram answers 429 with a retry delay.
func (a *Adapter) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	_, err := a.api.Send(msg)
	if wait := retryAfter(err); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		_, err = a.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("sending message to chat %d: %w", msg.ChatID, err)
	}
	return nil
}

// Typing shows the "typing" chat action.
func (a *Adapter) Typing(_ context.Context, session int64) error {
	_, err := a.api.Request(tgbotapi.NewChatAction(session, tgbotapi.ChatTyping))
	return err
}

// Download fetches an uploaded file. The returned reader fails with
// ErrFileTooLarge once more than the configured limit has been read.
func (a *Adapter) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := a.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving telegram file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}
	if resp.ContentLength > a.maxDownload {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, resp.ContentLength, a.maxDownload)
	}
	return &limitedBody{rc: resp.Body, left: a.maxDownload}, nil
}

type limitedBody struct {
	rc   io.ReadCloser
	left int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.left < 0 {
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.rc.Read(p)
	l.left -= int64(n)
	if l.left < 0 {
		return n, ErrFileTooLarge
	}
	return n, err
}

func (l *limitedBody) Close() error { return l.rc.Close() }

func apiError(err error) (tgbotapi.Error, bool) {
	var p *tgbotapi.Error
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	var v tgbotapi.Error
	if errors.As(err, &v) {
		return v, true
	}
	return tgbotapi.Error{}, false
}

func retryAfter(err error) time.Duration {
	if apiErr, ok := apiError(err); ok && apiErr.Code == http.StatusTooManyRequests && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}

func isParseError(err error) bool {
	apiErr, ok := apiError(err)
	return ok && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "can't parse entities")
}
