// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetmas/fleetmas/lib/cache"
	"github.com/fleetmas/fleetmas/lib/clock"
	"github.com/fleetmas/fleetmas/lib/config"
	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/transport"
)

// PeerFactory builds a session for a daemon reported by discovery.
// The returned session must not be connected yet.
type PeerFactory func(desc schema.ProviderDescriptor) *Provider

// Config describes one daemon endpoint and the collaborators the
// session runs on. Host, Port and Dial are required; everything else
// has a sensible zero value.
type Config struct {
	Host            string
	Port            int
	UseTLS          bool
	ProtocolVersion string

	// Dial opens the wire transport. Required.
	Dial transport.DialFunc

	// Settings supplies call budgets and node filtering. Nil means
	// config.Default().
	Settings *config.Settings

	// Profile selects push subscriptions and sync coverage. Nil means
	// DefaultProfile().
	Profile *SessionProfile

	// PeerFactory builds sessions for daemons found via discovery.
	// Nil means a factory deriving from this Config with
	// ReducedProfile.
	PeerFactory PeerFactory

	// Cache, when set, persists a model snapshot per endpoint so a
	// restarted frontend shows the last known state before the first
	// connect.
	Cache *cache.Store

	Clock  clock.Clock
	Logger *slog.Logger
}

// Provider is one session to one daemon endpoint.
type Provider struct {
	cfg     Config
	id      string // host:port, the session id
	logger  *slog.Logger
	clk     clock.Clock
	profile *SessionProfile

	callAttempts  int
	retryDelay    time.Duration
	exclusiveWait time.Duration
	ignoreNodes   []string
	showRemote    bool

	mu          sync.Mutex
	state       ConnectionState
	stateDetail string
	conn        transport.Connection
	closed      chan struct{}
	closedFlag  bool
	inflight    map[string]*inflightCall
	echo        map[string]*echoStream

	model     *model
	peers     map[string]*Provider
	name      string
	hostnames map[string]struct{}
	masterURI string

	daemonReady    bool
	discoveryReady bool
	skew           time.Duration
	version        schema.DaemonVersion
	systemInfo     schema.SystemInformation
	systemEnv      schema.SystemEnvironment
	warnings       []schema.SystemWarningGroup

	subsMu sync.Mutex
	subs   map[*eventSub]struct{}
}

// New builds a session for cfg. The session starts in StateUnknown;
// call Init to connect. When a cache store is configured the last
// persisted snapshot is loaded so the model is populated, with every
// node marked unknown, before the first connect.
func New(cfg Config) (*Provider, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("provider: host and port are required")
	}
	if cfg.Dial == nil {
		return nil, fmt.Errorf("provider: dial function is required")
	}
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	profile := cfg.Profile
	if profile == nil {
		profile = DefaultProfile()
	}

	p := &Provider{
		cfg:           cfg,
		id:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		clk:           clk,
		profile:       profile,
		callAttempts:  settings.Session.CallAttempts,
		retryDelay:    settings.Session.RetryDelay.Std(),
		exclusiveWait: settings.Session.ExclusiveWait.Std(),
		ignoreNodes:   settings.Nodes.Ignore,
		showRemote:    settings.Nodes.ShowRemote,
		inflight:      make(map[string]*inflightCall),
		echo:          make(map[string]*echoStream),
		model:         newModel(),
		peers:         make(map[string]*Provider),
		hostnames:     map[string]struct{}{cfg.Host: {}},
		subs:          make(map[*eventSub]struct{}),
	}
	p.logger = logger.With("endpoint", p.id)
	if p.callAttempts < 1 {
		p.callAttempts = 1
	}
	if cfg.PeerFactory == nil {
		p.cfg.PeerFactory = p.defaultPeerFactory
	}
	if cfg.Cache != nil {
		p.loadSnapshot()
	}
	return p, nil
}

// ID returns the session identifier, host:port.
func (p *Provider) ID() string { return p.id }

// Name returns the daemon's self-reported name, falling back to the
// configured host until discovery supplied one.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.name != "" {
		return p.name
	}
	return p.cfg.Host
}

// Hostnames returns every name and address known to refer to this
// endpoint's host.
func (p *Provider) Hostnames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.hostnames))
	for h := range p.hostnames {
		out = append(out, h)
	}
	return out
}

// Init dials the endpoint, registers push subscriptions and runs the
// initial state pull. On success the session is StateConnected; on
// failure it is StateErrored and Reconnect may be called later.
func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	if p.state.usable() || p.state == StateConnecting {
		p.mu.Unlock()
		return fmt.Errorf("provider: %s already %s", p.id, p.state)
	}
	p.mu.Unlock()

	// A failed connect can leave a transport open with push
	// subscriptions registered; drop it before dialing anew, or the
	// daemon keeps routing pushes into the abandoned connection.
	p.teardown()

	p.mu.Lock()
	p.closed = make(chan struct{})
	p.closedFlag = false
	conn := p.cfg.Dial(p.cfg.Host, p.cfg.Port, p.cfg.UseTLS)
	p.conn = conn
	p.mu.Unlock()

	p.setState(StateConnecting, "")
	if err := conn.Open(ctx); err != nil {
		p.setState(StateErrored, err.Error())
		return fmt.Errorf("provider: dial %s: %w", p.id, err)
	}
	p.setState(StateTransportConnected, "")

	p.registerPushTopics(ctx, conn)
	p.setState(StateSessionRegistered, "")

	if err := p.initialSync(ctx); err != nil {
		p.setState(StateErrored, err.Error())
		return err
	}
	p.setState(StateConnected, "")
	p.saveSnapshot()
	return nil
}

// Reconnect tears down whatever is left of a failed or closed
// connection and dials again.
func (p *Provider) Reconnect(ctx context.Context) error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state.usable() || state == StateConnecting {
		p.setState(StateErrored, "reconnecting")
	}
	return p.Init(ctx)
}

// Close shuts the session down. In-flight calls are released with
// ErrConnectionClosed, push subscriptions are dropped and every event
// subscriber channel is closed. The persisted snapshot, if any, is
// left in place for the next start.
func (p *Provider) Close() error {
	err := p.teardown()
	p.setState(StateClosed, "")
	p.closeSubscribers()
	return err
}

// teardown closes the transport and wakes every waiter without
// touching the state machine or event subscribers.
func (p *Provider) teardown() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	if !p.closedFlag && p.closed != nil {
		p.closedFlag = true
		close(p.closed)
	}
	for name, entry := range p.inflight {
		entry.release()
		delete(p.inflight, name)
	}
	for topic, stream := range p.echo {
		stream.closeAll()
		delete(p.echo, topic)
	}
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.CloseSubscriptions(); err != nil {
		p.logger.Debug("closing push subscriptions", "error", err)
	}
	return conn.Close()
}

// closedChan returns the channel closed on teardown, or nil when the
// session was never initialised.
func (p *Provider) closedChan() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Provider) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closedFlag
}

// connection returns the live transport or ErrNotConnected.
func (p *Provider) connection() (transport.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || !p.state.usable() {
		return nil, ErrNotConnected
	}
	return p.conn, nil
}

// defaultPeerFactory derives a reduced-profile session from this
// session's own configuration.
func (p *Provider) defaultPeerFactory(desc schema.ProviderDescriptor) *Provider {
	cfg := p.cfg
	cfg.Host = desc.Host
	cfg.Port = desc.Port
	cfg.Profile = ReducedProfile()
	cfg.PeerFactory = nil
	peer, err := New(cfg)
	if err != nil {
		p.logger.Warn("building peer session", "peer_host", desc.Host, "peer_port", desc.Port, "error", err)
		return nil
	}
	return peer
}

// Peers returns the sessions created for daemons found via discovery,
// keyed by host:port.
func (p *Provider) Peers() map[string]*Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]*Provider, len(p.peers))
	for k, v := range p.peers {
		out[k] = v
	}
	return out
}

// Nodes returns a snapshot of the merged node model, sorted by name.
func (p *Provider) Nodes() []Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model.snapshot()
}

// Node returns the node with the given fully qualified name.
func (p *Provider) Node(name string) (Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.model.byName[name]
	if !ok {
		return Node{}, false
	}
	c := *n
	return c, true
}

// Launches returns the loaded launch files by path.
func (p *Provider) Launches() map[string]schema.LaunchContent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]schema.LaunchContent, len(p.model.launches))
	for k, v := range p.model.launches {
		out[k] = v
	}
	return out
}

// Warnings returns the current daemon warning groups.
func (p *Provider) Warnings() []schema.SystemWarningGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]schema.SystemWarningGroup(nil), p.warnings...)
}

// Version returns the daemon version reported during sync.
func (p *Provider) Version() schema.DaemonVersion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// SystemInformation returns the host facts reported during sync.
func (p *Provider) SystemInformation() schema.SystemInformation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.systemInfo
}

// SystemEnvironment returns the daemon process environment reported
// during sync.
func (p *Provider) SystemEnvironment() schema.SystemEnvironment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.systemEnv
}

// ClockSkew returns the current estimate of remote minus local clock.
func (p *Provider) ClockSkew() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skew
}

// HasDaemon reports whether the daemon signalled process management
// readiness.
func (p *Provider) HasDaemon() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.daemonReady
}

// HasDiscovery reports whether the daemon signalled discovery
// readiness.
func (p *Provider) HasDiscovery() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discoveryReady
}
