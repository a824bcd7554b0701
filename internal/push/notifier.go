package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/renex/internal/model"
)

// SubscriptionStore lists and prunes browser subscriptions.
type SubscriptionStore interface {
	List() ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Report summarizes one fan-out.
type Report struct {
	Sent    int `json:"sent"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// Notifier fans a payload out to every stored subscription, removing the
// ones the push service reports as gone.
type Notifier struct {
	service *Service
	store   SubscriptionStore
	logger  *slog.Logger
}

func NewNotifier(svc *Service, store SubscriptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		service: svc,
		store:   store,
		logger:  logger.With("component", "push"),
	}
}

func (n *Notifier) Broadcast(ctx context.Context, payload Payload) (Report, error) {
	var report Report
	if !n.service.Configured() {
		return report, nil
	}

	subs, err := n.store.List()
	if err != nil {
		return report, err
	}

	for i := range subs {
		sub := &subs[i]
		err := n.service.Send(ctx, sub, payload)
		switch {
		case err == nil:
			report.Sent++
		case errors.Is(err, ErrExpired):
			report.Expired++
			if err := n.store.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "id", sub.ID, "error", err)
			}
		default:
			report.Failed++
			n.logger.Warn("send push", "id", sub.ID, "error", err)
		}
	}

	n.logger.Info("push broadcast", "tag", payload.Tag, "sent", report.Sent, "expired", report.Expired, "failed", report.Failed)
	return report, nil
}

// NotifyArticle announces a new article to every push subscriber.
func (n *Notifier) NotifyArticle(ctx context.Context, article model.Article) (Report, error) {
	return n.Broadcast(ctx, ArticlePayload(article))
}

func ArticlePayload(article model.Article) Payload {
	body := article.Summary()
	if body == "" {
		body = "A new article is available on Renewable Energy Nexus."
	}
	return Payload{
		Title: "New Article: " + article.Title,
		Body:  body,
		URL:   article.URL,
		Tag:   "article",
		Image: article.Image,
	}
}
