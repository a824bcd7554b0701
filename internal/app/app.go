// Package app wires the configured components together for the server and
// the admin CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/renex/internal/backup"
	"github.com/dukerupert/renex/internal/brevo"
	"github.com/dukerupert/renex/internal/config"
	"github.com/dukerupert/renex/internal/database"
	"github.com/dukerupert/renex/internal/email"
	"github.com/dukerupert/renex/internal/events"
	"github.com/dukerupert/renex/internal/model"
	"github.com/dukerupert/renex/internal/newsletter"
	"github.com/dukerupert/renex/internal/push"
	"github.com/dukerupert/renex/internal/store"
	"github.com/dukerupert/renex/internal/subscription"
	ws "github.com/dukerupert/renex/internal/websocket"
)

type App struct {
	Config config.Config
	Logger *slog.Logger
	DB     *sql.DB

	Subscribers *store.SubscriberStore
	PushStore   *store.PushStore
	CacheStore  *store.CacheStore

	Brevo      *brevo.Client
	Events     *events.Publisher
	Hub        *ws.Hub
	Manager    *subscription.Manager
	Push       *push.Service
	Notifier   *push.Notifier
	Backups    *backup.Manager
	Newsletter *newsletter.Sender
}

// New opens the database and builds every component from cfg.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pub, err := events.Connect(events.Config{
		URL:           cfg.NATS.URL,
		Token:         cfg.NATS.Token,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Events:     pub,
		PushStore:  store.NewPushStore(db),
		CacheStore: store.NewCacheStore(db),
		Hub:        ws.NewHub(logger.With("component", "websocket")),
	}
	a.Subscribers = store.NewSubscriberStore(store.NewKVStore(db), logger.With("component", "subscribers"))

	renderer := email.NewRenderer(cfg.BaseURL)
	a.Brevo = brevo.NewClient(brevo.Config{
		APIKey:      cfg.Brevo.APIKey,
		BaseURL:     cfg.Brevo.APIURL,
		ListID:      cfg.Brevo.ListID,
		SenderName:  cfg.Brevo.SenderName,
		SenderEmail: cfg.Brevo.SenderEmail,
		SiteURL:     cfg.BaseURL,
	}, brevo.WithRenderer(renderer), brevo.WithLogger(logger.With("component", "brevo")))

	a.Manager = subscription.NewManager(a.Subscribers, a.Brevo, logger,
		subscription.WithListener(a.Hub.OnSubscriberChange),
		subscription.WithListener(pub.OnSubscriberChange),
	)

	a.Push = push.NewService(push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:         cfg.Push.Subject,
	})
	a.Notifier = push.NewNotifier(a.Push, a.PushStore, logger)

	a.Backups = backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Passphrase:    cfg.Backup.Passphrase,
		Schedule:      cfg.Backup.Schedule,
		RetentionDays: cfg.Backup.RetentionDays,
	}, a.Subscribers, store.NewBackupStore(db), logger)

	a.Newsletter = newsletter.NewSender(a.Brevo, a.Subscribers, renderer, logger)

	if !a.Brevo.Configured() {
		logger.Warn("brevo api key not configured, subscriptions are stored locally only")
	}
	return a, nil
}

// ArticleReport is the combined outcome of announcing one article.
type ArticleReport struct {
	Email newsletter.Report `json:"email"`
	Push  push.Report       `json:"push"`
}

// AnnounceArticle emails every subscriber, notifies push subscribers and
// publishes the article event. Email failure does not stop the other channels.
func (a *App) AnnounceArticle(ctx context.Context, article model.Article) (ArticleReport, error) {
	if err := newsletter.ValidateArticle(article); err != nil {
		return ArticleReport{}, err
	}

	var report ArticleReport
	var err error

	report.Email, err = a.Newsletter.SendArticle(ctx, article)
	if err != nil {
		a.Logger.Warn("email article notification", "error", err)
	}

	pushReport, perr := a.Notifier.NotifyArticle(ctx, article)
	if perr != nil {
		a.Logger.Warn("push article notification", "error", perr)
	}
	report.Push = pushReport

	if perr := a.Events.PublishArticle(article); perr != nil {
		a.Logger.Warn("publish article event", "error", perr)
	}
	return report, err
}

func (a *App) Close() {
	if err := a.Events.Close(); err != nil {
		a.Logger.Warn("close events", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("close database", "error", err)
	}
}
