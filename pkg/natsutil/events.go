/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:generate mockgen -destination=mock_publisher.go -package=natsutil github.com/carverauto/camradar/pkg/natsutil Publisher

// Package natsutil connects to NATS and publishes station events as
// CloudEvents on JetStream.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

const (
	cloudEventsSpecVersion = "1.0"
	eventTypePrefix        = "com.carverauto.camradar."
	contentTypeJSON        = "application/json"
)

// Publisher is the JetStream publish surface the event publisher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher publishes station events as CloudEvents.
type EventPublisher struct {
	pub    Publisher
	prefix string
	source string
	log    logger.Logger
	clock  clock.Clock
}

// NewEventPublisher publishes to subjects below prefix, stamping events with
// source.
func NewEventPublisher(pub Publisher, prefix, source string, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		source: source,
		log:    log,
		clock:  clock.Real(),
	}
}

// Subject returns the subject an event type is published on.
func (p *EventPublisher) Subject(eventType models.EventType) string {
	return p.prefix + "." + string(eventType)
}

// Emit wraps data in a CloudEvent and publishes it.
func (p *EventPublisher) Emit(ctx context.Context, eventType models.EventType, data any) error {
	now := p.clock.Now().UTC()

	event := models.CloudEvent{
		SpecVersion:     cloudEventsSpecVersion,
		ID:              uuid.New().String(),
		Source:          p.source,
		Type:            eventTypePrefix + string(eventType),
		DataContentType: contentTypeJSON,
		Subject:         p.Subject(eventType),
		Time:            &now,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	ack, err := p.pub.Publish(ctx, event.Subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.log.Debug().
		Str("event_id", event.ID).
		Str("subject", event.Subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}

// Connect dials NATS with optional mTLS and connection handlers that log
// through log.
func Connect(url string, tlsCfg *models.NATSTLSConfig, name string, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name(name)}

	if tlsCfg != nil {
		conf, err := TLSConfig(tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(conf))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Warn().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")

	return nc, nil
}

// ConnectWithEventPublisher creates a NATS connection with JetStream, makes
// sure the events stream captures the configured prefix and returns an
// EventPublisher.
func ConnectWithEventPublisher(
	ctx context.Context, cfg models.EventsConfig, source string, log logger.Logger, opts ...nats.Option,
) (*EventPublisher, *nats.Conn, error) {
	nc, err := Connect(cfg.NATSURL, cfg.TLS, source, log, opts...)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := CreateEventPublisher(ctx, nc, cfg, source, log)
	if err != nil {
		nc.Close()

		return nil, nil, err
	}

	return publisher, nc, nil
}

// CreateEventPublisher creates an EventPublisher for an existing connection.
func CreateEventPublisher(
	ctx context.Context, nc *nats.Conn, cfg models.EventsConfig, source string, log logger.Logger,
) (*EventPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")

	if err := ensureStream(ctx, js, cfg.StreamName, prefix+".>", log); err != nil {
		return nil, err
	}

	return NewEventPublisher(js, prefix, source, log), nil
}

// streamManager is the subset of jetstream.JetStream used to manage streams.
type streamManager interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

func ensureStream(ctx context.Context, js streamManager, name, subject string, log logger.Logger) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		if _, err := js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
			MaxAge:   24 * time.Hour,
		}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		log.Info().Str("stream", name).Str("subject", subject).Msg("Created NATS JetStream stream")

		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stream %s: %w", name, err)
	}

	subjects := ensureSubjectList(append([]string(nil), info.Config.Subjects...), subject)
	if len(subjects) == len(info.Config.Subjects) {
		return nil
	}

	updated := info.Config
	updated.Subjects = subjects

	if _, err := js.UpdateStream(ctx, updated); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, name, err)
	}

	log.Info().Str("stream", name).Strs("subjects", subjects).Msg("Updated NATS JetStream stream subjects")

	return nil
}

// ensureSubjectList appends subject unless an existing entry already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, existing := range subjects {
		if matchesSubject(existing, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern, which may use the * and >
// wildcards, covers subject. A trailing > in subject must be matched by a >
// in pattern.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return i < len(st)
		}

		if i >= len(st) {
			return false
		}

		if st[i] == ">" {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
