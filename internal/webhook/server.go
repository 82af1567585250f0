// Package webhook is the HTTP side of the bot: it receives GitHub
// event deliveries, validates their signatures against the per-project
// secret and relays formatted notifications into chat.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"devrelay/internal/aliases"
	"devrelay/internal/config"
	"devrelay/internal/github"
	"devrelay/internal/logger"
	"devrelay/internal/metrics"
	"devrelay/internal/middleware"
	"devrelay/internal/routing"
	"devrelay/internal/stream"
)

// Notifier delivers one chat line to one room. Satisfied by the chat
// client; tests substitute a recorder.
type Notifier interface {
	Send(room, text string)
}

// DedupStore suppresses replayed deliveries. SeenDelivery only reads;
// MarkDelivery is called after a successful relay, so a delivery
// rejected as malformed stays eligible for redelivery. Satisfied by
// the redis store; nil disables deduplication.
type DedupStore interface {
	SeenDelivery(ctx context.Context, id string) (bool, error)
	MarkDelivery(ctx context.Context, id string) error
}

type Server struct {
	cfg      *config.Config
	store    *routing.Store
	aliases  *aliases.Table
	notifier Notifier
	dedup    DedupStore
	gh       *github.Client
	hub      *stream.Hub
}

// NewServer wires the webhook surface. dedup, gh and hub may be nil;
// the corresponding features are then disabled.
func NewServer(cfg *config.Config, store *routing.Store, tbl *aliases.Table, notifier Notifier, dedup DedupStore, gh *github.Client, hub *stream.Hub) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		aliases:  tbl,
		notifier: notifier,
		dedup:    dedup,
		gh:       gh,
		hub:      hub,
	}
}

func (s *Server) app() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: s.cfg.AppName,
	})

	middleware.Register(app, s.cfg)
	metrics.Register(app, s.cfg.AppName, s.cfg.MetricsPath)

	if s.hub != nil {
		s.hub.Register(app)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/github/webhook", s.handleGitHub)

	return app
}

// Run serves the webhook endpoint until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	app := s.app()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	logger.Log.Info("webhook server starting", zap.String("addr", addr))

	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("webhook: listen: %w", err)
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down webhook server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Log.Error("failed to shutdown gracefully", zap.Error(err))
		return fmt.Errorf("webhook: shutdown: %w", err)
	}

	logger.Log.Info("webhook server exited gracefully")
	return nil
}

func (s *Server) handleGitHub(c *fiber.Ctx) error {
	event := c.Get("X-GitHub-Event")
	if event == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing X-GitHub-Event header"})
	}
	if event == "ping" {
		return c.JSON(fiber.Map{"msg": "pong"})
	}

	body := c.Body()

	// The project name decides which secret signs the delivery, so it
	// is peeked before signature verification.
	var peek struct {
		Repository struct {
			Name string `json:"name"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(body, &peek); err != nil || peek.Repository.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payload carries no repository name"})
	}
	ref := s.store.Resolve(peek.Repository.Name)

	if !VerifySignature(ref.Secret, body, c.Get("X-Hub-Signature-256")) {
		logger.Log.Warn("rejected webhook delivery with bad signature",
			zap.String("project", peek.Repository.Name),
			zap.String("event", event))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "signature mismatch"})
	}

	delivery := c.Get("X-GitHub-Delivery")
	if s.dedup != nil && delivery != "" {
		seen, err := s.dedup.SeenDelivery(c.Context(), delivery)
		if err != nil {
			logger.Log.Error("delivery dedup check failed", zap.Error(err))
		} else if seen {
			logger.Log.Info("skipping replayed delivery",
				zap.String("delivery", delivery), zap.String("event", event))
			return c.JSON(fiber.Map{"msg": "duplicate delivery"})
		}
	}

	note, err := s.format(c.Context(), event, body)
	if err != nil {
		logger.Log.Warn("undeliverable webhook payload",
			zap.String("event", event), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if note == nil {
		// Recognized event, uninteresting action.
		return c.JSON(fiber.Map{"msg": "ignored"})
	}

	s.deliver(ref, *note)
	if s.dedup != nil && delivery != "" {
		if err := s.dedup.MarkDelivery(c.Context(), delivery); err != nil {
			logger.Log.Error("failed to record delivery", zap.Error(err))
		}
	}
	return c.JSON(fiber.Map{"msg": "delivered"})
}

// format decodes and renders one event payload. A nil Notification
// with nil error means the event or action is deliberately ignored.
func (s *Server) format(ctx context.Context, event string, body []byte) (*Notification, error) {
	switch event {
	case "push":
		var ev PushEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		note := FormatPush(s.aliases, &ev)
		s.enrichForcedPush(ctx, &ev, &note)
		return &note, nil
	case "pull_request":
		var ev PullRequestEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		switch ev.Action {
		case "opened", "closed", "reopened":
			note := FormatPullRequest(s.aliases, &ev)
			return &note, nil
		}
		return nil, nil
	case "issues":
		var ev IssuesEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		switch ev.Action {
		case "opened", "closed":
			note := FormatIssues(s.aliases, &ev)
			return &note, nil
		}
		return nil, nil
	case "issue_comment":
		var ev IssueCommentEvent
		if err := decode(body, &ev); err != nil {
			return nil, err
		}
		if ev.Action == "created" {
			note := FormatIssueComment(s.aliases, &ev)
			return &note, nil
		}
		return nil, nil
	}
	return nil, nil
}

// enrichForcedPush appends the rewritten range's commits to a
// force-push notification. GitHub omits them from the payload; the API
// client recovers them when one is configured.
func (s *Server) enrichForcedPush(ctx context.Context, ev *PushEvent, note *Notification) {
	if s.gh == nil || !ev.Forced || len(ev.Commits) > 0 {
		return
	}
	owner := ev.Repository.Owner.Login
	if owner == "" {
		owner = ev.Repository.Owner.Name
	}
	if owner == "" || ev.Before == "" || ev.After == "" {
		return
	}
	commits, err := s.gh.CompareCommits(ctx, owner, ev.Repository.Name, ev.Before, ev.After)
	if err != nil {
		logger.Log.Warn("failed to expand force-push range", zap.Error(err))
		return
	}
	for _, commit := range commits {
		note.Full += fmt.Sprintf("\n%s %s: %s",
			shortSHA(commit.SHA), s.aliases.Get(commit.Author), firstLine(commit.Message))
	}
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (s *Server) deliver(ref routing.Ref, note Notification) {
	for _, room := range ref.Rooms {
		s.notifier.Send(room, note.Full)
	}
	for _, room := range ref.SimpleRooms {
		s.notifier.Send(room, note.Simple)
	}
	if s.hub != nil {
		s.hub.Broadcast(note)
	}
	logger.Log.Info("relayed notification",
		zap.String("project", note.Project),
		zap.String("event", note.Event),
		zap.Int("rooms", len(ref.Rooms)),
		zap.Int("simple_rooms", len(ref.SimpleRooms)))
}
