// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"

	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/transport"
)

// registerPushTopics subscribes to the profile's push topics. A
// failed registration is logged and skipped rather than failing the
// connect; the daemon ready heartbeat and explicit refreshes cover
// for a lost topic.
func (p *Provider) registerPushTopics(ctx context.Context, conn transport.Connection) {
	registered := 0
	for _, uri := range p.profile.Subscriptions {
		uri := uri
		err := conn.Subscribe(ctx, uri, func(payload json.RawMessage) {
			p.routePush(uri, payload)
		})
		if err != nil {
			p.logger.Warn("push subscription failed", "uri", uri, "error", err)
			continue
		}
		registered++
	}
	if registered < len(p.profile.Subscriptions) {
		p.logger.Warn("session running with partial push coverage",
			"registered", registered, "wanted", len(p.profile.Subscriptions))
	}
}

// routePush dispatches one push notification. Change signals trigger
// a pull of the affected category; state payloads are applied
// directly.
func (p *Provider) routePush(uri string, payload json.RawMessage) {
	ctx := context.Background()
	switch uri {
	case schema.URIDaemonReady:
		p.mu.Lock()
		first := !p.daemonReady
		p.daemonReady = true
		p.mu.Unlock()
		if first {
			p.logger.Debug("daemon ready")
			if err := p.RefreshNodes(ctx); err != nil {
				p.logger.Debug("node refresh after daemon ready", "error", err)
			}
		}
	case schema.URIDiscoveryReady:
		p.mu.Lock()
		first := !p.discoveryReady
		p.discoveryReady = true
		p.mu.Unlock()
		if first {
			p.logger.Debug("discovery ready")
			if err := p.RefreshProviders(ctx); err != nil {
				p.logger.Debug("provider refresh after discovery ready", "error", err)
			}
		}
	case schema.URIProviderList:
		var descriptors []schema.ProviderDescriptor
		if err := json.Unmarshal(payload, &descriptors); err != nil {
			p.logger.Warn("bad provider list payload", "error", err)
			return
		}
		p.updateProviderList(descriptors)
	case schema.URINodesChanged:
		if err := p.RefreshNodes(ctx); err != nil {
			p.logger.Debug("node refresh after change signal", "error", err)
		}
	case schema.URILaunchChanged:
		if err := p.RefreshLaunches(ctx); err != nil {
			p.logger.Debug("launch refresh after change signal", "error", err)
		}
	case schema.URIScreenList:
		var mappings []schema.ScreensMapping
		if err := json.Unmarshal(payload, &mappings); err != nil {
			p.logger.Warn("bad screen list payload", "error", err)
			return
		}
		if p.applyScreens(mappings) {
			p.emit(Event{Kind: EventScreensChanged})
		}
	case schema.URIWarnings:
		var groups []schema.SystemWarningGroup
		if err := json.Unmarshal(payload, &groups); err != nil {
			p.logger.Warn("bad warnings payload", "error", err)
			return
		}
		if p.applyWarnings(groups) {
			p.emit(Event{Kind: EventWarningsChanged})
		}
	case schema.URIDiagnostics:
		var arr schema.DiagnosticArray
		if err := json.Unmarshal(payload, &arr); err != nil {
			p.logger.Warn("bad diagnostics payload", "error", err)
			return
		}
		if p.applyDiagnostics(arr) {
			p.emit(Event{Kind: EventDiagnosticsChanged})
		}
	case schema.URIPathChanged:
		var detail struct {
			Path string `json:"path"`
		}
		_ = json.Unmarshal(payload, &detail)
		p.emit(Event{Kind: EventPathChanged, Path: detail.Path})
	default:
		p.logger.Debug("unhandled push", "uri", uri)
	}
}

// echoStream fans one topic's echo events out to local listeners.
type echoStream struct {
	topic        string
	started      bool          // remote echo subscription in place
	startPending chan struct{} // non-nil while a remote start is in flight
	startErr     error         // outcome of the last start, set before startPending closes
	nextID       int
	listeners    map[int]chan schema.SubscriberEvent
}

func (s *echoStream) closeAll() {
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
}

// StartSubscriber asks the daemon to echo a topic and wires the event
// stream into this session. Starting an already-started topic is a
// no-op; the remote subscription exists at most once per topic, and a
// start racing another start for the same topic waits for its outcome
// instead of issuing a second remote call.
func (p *Provider) StartSubscriber(ctx context.Context, sub schema.SubscriberNode) error {
	topic := sub.Topic
	p.mu.Lock()
	stream := p.echo[topic]
	if stream == nil {
		stream = &echoStream{topic: topic, listeners: make(map[int]chan schema.SubscriberEvent)}
		p.echo[topic] = stream
	}
	if stream.started {
		p.mu.Unlock()
		return nil
	}
	if pending := stream.startPending; pending != nil {
		p.mu.Unlock()
		select {
		case <-pending:
			p.mu.Lock()
			err := stream.startErr
			p.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	pending := make(chan struct{})
	stream.startPending = pending
	p.mu.Unlock()

	err := p.startSubscriberRemote(ctx, sub)

	p.mu.Lock()
	stream.startPending = nil
	stream.startErr = err
	if err == nil {
		stream.started = true
	}
	p.mu.Unlock()
	close(pending)
	return err
}

func (p *Provider) startSubscriberRemote(ctx context.Context, sub schema.SubscriberNode) error {
	topic := sub.Topic
	key := schema.URISubscriberStart + ":" + topic
	if _, err := p.callKeyed(ctx, schema.URISubscriberStart, key, sub, true); err != nil {
		if IsAlreadyInProgress(err) {
			return nil
		}
		return err
	}

	conn, err := p.connection()
	if err != nil {
		return err
	}
	eventURI := schema.SubscriberEventURI(topic)
	return conn.Subscribe(ctx, eventURI, func(payload json.RawMessage) {
		var ev schema.SubscriberEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			p.logger.Warn("bad subscriber event", "topic", topic, "error", err)
			return
		}
		p.deliverEcho(topic, ev)
	})
}

func (p *Provider) deliverEcho(topic string, ev schema.SubscriberEvent) {
	p.mu.Lock()
	stream := p.echo[topic]
	var chans []chan schema.SubscriberEvent
	if stream != nil {
		for _, ch := range stream.listeners {
			chans = append(chans, ch)
		}
	}
	p.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
			p.logger.Debug("echo event dropped", "topic", topic)
		}
	}
}

// SubscribeTopic attaches a listener to a topic's echo stream.
// Attaching does not issue a remote call; without a prior
// StartSubscriber the channel stays silent until one happens.
func (p *Provider) SubscribeTopic(topic string) (<-chan schema.SubscriberEvent, func()) {
	p.mu.Lock()
	stream := p.echo[topic]
	if stream == nil {
		stream = &echoStream{topic: topic, listeners: make(map[int]chan schema.SubscriberEvent)}
		p.echo[topic] = stream
	}
	id := stream.nextID
	stream.nextID++
	ch := make(chan schema.SubscriberEvent, eventBuffer)
	stream.listeners[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if s := p.echo[topic]; s != nil {
			if c, ok := s.listeners[id]; ok {
				delete(s.listeners, id)
				close(c)
			}
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// StopSubscriber ends the daemon-side echo of a topic and closes
// every local listener.
func (p *Provider) StopSubscriber(ctx context.Context, topic string) error {
	args := map[string]string{"topic": topic}
	_, err := p.call(ctx, schema.URISubscriberStop, args, false)

	p.mu.Lock()
	if stream, ok := p.echo[topic]; ok {
		stream.closeAll()
		delete(p.echo, topic)
	}
	p.mu.Unlock()
	return err
}
