// Package notify delivers operator alerts over Telegram. Delivery is
// asynchronous and best-effort: a full queue drops the alert rather
// than blocking the publish pipeline.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"shoutbox/internal/store"
	logx "shoutbox/pkg/logx"
)

// Config points alerts at one chat (optionally a forum thread).
type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
}

// Service sends alerts. A nil Service is valid and drops everything.
type Service struct {
	bot *tele.Bot
	cfg Config
	log logx.Logger

	limiter *rate.Limiter
	queue   chan string
	wg      sync.WaitGroup
	stop    chan struct{}
	once    sync.Once
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	s := &Service{
		bot:     bot,
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		queue:   make(chan string, 32),
		stop:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Close drains nothing; queued alerts not yet sent are dropped.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// PublishFailed alerts the operator about a terminal publish failure.
func (s *Service) PublishFailed(_ context.Context, post *store.Post, detail string) {
	if s == nil {
		return
	}
	msg := fmt.Sprintf("Post #%d failed to publish\n%s", post.PostNumber, detail)
	select {
	case s.queue <- msg:
	default:
		s.log.Warn("alert dropped, queue full",
			logx.Int("post_number", post.PostNumber))
	}
}

func (s *Service) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := s.limiter.Wait(ctx)
			cancel()
			if err != nil {
				continue
			}
			_, err = s.bot.Send(tele.ChatID(s.cfg.ChatID), msg, &tele.SendOptions{
				ThreadID:              s.cfg.ThreadID,
				DisableWebPagePreview: true,
			})
			if err != nil {
				s.log.Warn("alert send failed", logx.Err(err))
			}
		}
	}
}
