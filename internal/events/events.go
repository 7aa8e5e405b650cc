// Package events publishes domain events (reactions, comments, signups)
// to a RabbitMQ topic exchange. Without a broker URL a no-op publisher is used.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"inkpress/internal/metrics"
)

// Event type names, used as routing keys.
const (
	ArticleLiked          = "article.liked"
	ArticleDisliked       = "article.disliked"
	ArticleLikeRemoved    = "article.like_removed"
	ArticleDislikeRemoved = "article.dislike_removed"
	CommentLiked          = "comment.liked"
	CommentDisliked       = "comment.disliked"
	CommentLikeRemoved    = "comment.like_removed"
	CommentDislikeRemoved = "comment.dislike_removed"
	CommentCreated        = "comment.created"
	ArticleCreated        = "article.created"
	UserRegistered        = "user.registered"
)

// Event is the JSON message body.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	ActorID    uuid.UUID      `json:"actorId"`
	TargetType string         `json:"targetType,omitempty"`
	TargetID   uuid.UUID      `json:"targetId"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// New builds an event with a fresh ID and timestamp.
func New(eventType string, actorID uuid.UUID, targetType string, targetID uuid.UUID, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   targetID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// dialTries bounds how often Connect dials before giving up.
const dialTries = 5

// amqpPublisher is the part of *amqp.Channel that Publish needs.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// link is one live broker connection. lost fires when either the
// connection or its channel closes.
type link struct {
	ch    amqpPublisher
	lost  <-chan *amqp.Error
	close func() error
}

// dialFunc opens a link, retrying according to opts.
type dialFunc func(ctx context.Context, opts ...backoff.RetryOption) (*link, error)

// Rabbit publishes events as persistent JSON messages on a topic exchange.
// A lost connection is redialed in the background until Close.
type Rabbit struct {
	exchange string
	dial     dialFunc

	mu   sync.RWMutex
	link *link

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Connect dials RabbitMQ with backoff, opens a channel and declares a
// durable topic exchange.
func Connect(ctx context.Context, url, exchange string) (*Rabbit, error) {
	dial := func(ctx context.Context, opts ...backoff.RetryOption) (*link, error) {
		return dialLink(ctx, url, exchange, opts...)
	}
	l, err := dial(ctx, backoff.WithMaxTries(dialTries))
	if err != nil {
		return nil, err
	}
	slog.Info("rabbitmq connected", "exchange", exchange)
	return newRabbit(exchange, l, dial), nil
}

func newRabbit(exchange string, l *link, dial dialFunc) *Rabbit {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Rabbit{
		exchange: exchange,
		dial:     dial,
		link:     l,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.watch(l)
	return r
}

func dialLink(ctx context.Context, url, exchange string, opts ...backoff.RetryOption) (*link, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	opts = append([]backoff.RetryOption{backoff.WithBackOff(bo)}, opts...)
	conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("rabbitmq not ready", "error", err)
		}
		return conn, err
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq declare exchange: %w", err)
	}

	lost := make(chan *amqp.Error, 2)
	forward := func(c chan *amqp.Error) {
		if err, ok := <-c; ok {
			lost <- err
		} else {
			lost <- nil
		}
	}
	go forward(conn.NotifyClose(make(chan *amqp.Error, 1)))
	go forward(ch.NotifyClose(make(chan *amqp.Error, 1)))

	return &link{ch: ch, lost: lost, close: conn.Close}, nil
}

// watch redials whenever the current link is lost. It returns once Close
// cancels r.ctx.
func (r *Rabbit) watch(l *link) {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case reason := <-l.lost:
			if r.ctx.Err() != nil {
				return
			}
			slog.Warn("rabbitmq connection lost", "reason", reason)
			_ = l.close()

			next, err := r.dial(r.ctx, backoff.WithMaxElapsedTime(0))
			if err != nil {
				return
			}
			r.mu.Lock()
			r.link = next
			r.mu.Unlock()
			l = next
			metrics.Reconnects.WithLabelValues("rabbitmq").Inc()
			slog.Info("rabbitmq reconnected", "exchange", r.exchange)
		}
	}
}

// Publish sends ev with its type as routing key.
func (r *Rabbit) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	r.mu.RLock()
	ch := r.link.ch
	r.mu.RUnlock()

	err = ch.PublishWithContext(ctx, r.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		metrics.Events.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	metrics.Events.WithLabelValues(ev.Type, "ok").Inc()
	return nil
}

// Close stops reconnecting and closes the current connection.
func (r *Rabbit) Close() error {
	r.cancel()
	<-r.done
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.link.close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
