// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/transport"
)

func isRemoteError(err error) bool {
	var remote *transport.RemoteError
	return errors.As(err, &remote)
}

// LoadLaunch loads a launch file on the daemon. The call is exclusive
// per path: a second load of the same file while one is running fails
// fast instead of doubling up. On success the launch list is
// refreshed.
func (p *Provider) LoadLaunch(ctx context.Context, req schema.LaunchLoadRequest) (schema.LaunchLoadReply, error) {
	return p.launchOp(ctx, schema.URILaunchLoad, req.Path, req)
}

// ReloadLaunch re-reads an already-loaded launch file.
func (p *Provider) ReloadLaunch(ctx context.Context, req schema.LaunchLoadRequest) (schema.LaunchLoadReply, error) {
	return p.launchOp(ctx, schema.URILaunchReload, req.Path, req)
}

// UnloadLaunch removes a loaded launch file.
func (p *Provider) UnloadLaunch(ctx context.Context, path string) (schema.LaunchLoadReply, error) {
	args := map[string]string{"path": path}
	return p.launchOp(ctx, schema.URILaunchUnload, path, args)
}

func (p *Provider) launchOp(ctx context.Context, uri, path string, args any) (schema.LaunchLoadReply, error) {
	var reply schema.LaunchLoadReply
	key := uri + ":" + path
	raw, err := p.callKeyed(ctx, uri, key, args, true)
	if err != nil {
		return reply, err
	}
	if err := decodeReply(raw, &reply); err != nil {
		return reply, err
	}
	if err := p.RefreshLaunches(ctx); err != nil {
		p.logger.Warn("launch refresh after "+uri, "error", err)
	}
	return reply, nil
}

// StartNode starts a node declared by a loaded launch file. Exclusive
// per node so a double-click cannot spawn twice.
func (p *Provider) StartNode(ctx context.Context, name string) error {
	args := map[string]string{"name": name}
	key := schema.URILaunchStartNode + ":" + name
	_, err := p.callKeyed(ctx, schema.URILaunchStartNode, key, args, true)
	return err
}

// StopNode stops a running node. A daemon report that the node is not
// running is expected noise after a crash or a race with a manual
// stop, so it is logged quietly and still returned.
func (p *Provider) StopNode(ctx context.Context, name string) error {
	args := map[string]string{"name": name}
	key := schema.URINodesStopNode + ":" + name
	_, err := p.callKeyed(ctx, schema.URINodesStopNode, key, args, true)
	if isRemoteError(err) {
		p.logger.Debug("stop node refused by daemon", "node", name, "error", err)
	}
	return err
}

// RestartNode stops a node and starts it again. A stop refusal for a
// node that already exited does not abort the restart.
func (p *Provider) RestartNode(ctx context.Context, name string) error {
	if err := p.StopNode(ctx, name); err != nil && !isRemoteError(err) {
		return err
	}
	return p.StartNode(ctx, name)
}

// Parameters lists the live parameters of the given nodes. An empty
// node list asks for every parameter the daemon knows.
func (p *Provider) Parameters(ctx context.Context, nodes []string) ([]schema.ParameterRecord, error) {
	args := map[string]any{"nodes": nodes}
	var params []schema.ParameterRecord
	if err := p.callInto(ctx, schema.URIParametersGetList, args, false, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// SetParameter writes one parameter on the daemon.
func (p *Provider) SetParameter(ctx context.Context, param schema.ParameterRecord) error {
	_, err := p.call(ctx, schema.URIParametersSet, param, false)
	return err
}

// DeleteParameter removes one parameter on the daemon.
func (p *Provider) DeleteParameter(ctx context.Context, name string) error {
	args := map[string]string{"name": name}
	_, err := p.call(ctx, schema.URIParametersDelete, args, false)
	return err
}

// Loggers returns the logger configuration of a node.
func (p *Provider) Loggers(ctx context.Context, node string) ([]schema.LoggerConfig, error) {
	args := map[string]string{"name": node}
	var loggers []schema.LoggerConfig
	if err := p.callInto(ctx, schema.URINodesGetLoggers, args, false, &loggers); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if n := p.model.byName[node]; n != nil {
		n.Loggers = loggers
	}
	p.mu.Unlock()
	return loggers, nil
}

// SetLoggerLevel changes one logger of a node.
func (p *Provider) SetLoggerLevel(ctx context.Context, node string, cfg schema.LoggerConfig) error {
	args := map[string]any{"name": node, "logger": cfg.Name, "level": cfg.Level}
	_, err := p.call(ctx, schema.URINodesSetLoggerLevel, args, false)
	return err
}

// PublishMessage publishes one message on a topic through the daemon.
func (p *Provider) PublishMessage(ctx context.Context, topic, msgType string, payload map[string]any) error {
	args := map[string]any{"topic_name": topic, "msg_type": msgType, "data": payload}
	_, err := p.call(ctx, schema.URILaunchPublishMessage, args, false)
	return err
}

// CallService invokes a service through the daemon and returns the
// decoded response.
func (p *Provider) CallService(ctx context.Context, service, srvType string, request map[string]any) (map[string]any, error) {
	args := map[string]any{"service_name": service, "srv_type": srvType, "data": request}
	var response map[string]any
	if err := p.callInto(ctx, schema.URILaunchCallService, args, false, &response); err != nil {
		return nil, err
	}
	return response, nil
}

// LogPaths returns the log file locations for the given nodes on the
// daemon host.
func (p *Provider) LogPaths(ctx context.Context, nodes []string) ([]schema.LogPathItem, error) {
	args := map[string]any{"nodes": nodes}
	var items []schema.LogPathItem
	if err := p.callInto(ctx, schema.URIPathGetLogPaths, args, false, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ClearLogPaths deletes the log files of the given nodes on the
// daemon host.
func (p *Provider) ClearLogPaths(ctx context.Context, nodes []string) error {
	args := map[string]any{"nodes": nodes}
	_, err := p.call(ctx, schema.URIPathClearLogPaths, args, false)
	return err
}

// KillScreen kills the terminal screen session of a node, taking the
// process with it.
func (p *Provider) KillScreen(ctx context.Context, node string) error {
	args := map[string]string{"name": node}
	_, err := p.call(ctx, schema.URIScreenKillNode, args, false)
	return err
}

// ShutdownDaemon asks the daemon process to exit. The session will
// observe the transport dropping afterwards.
func (p *Provider) ShutdownDaemon(ctx context.Context) error {
	_, err := p.call(ctx, schema.URIProviderShutdown, nil, true)
	return err
}

// PullWarnings fetches the current warning groups on demand, outside
// the push stream.
func (p *Provider) PullWarnings(ctx context.Context) ([]schema.SystemWarningGroup, error) {
	var groups []schema.SystemWarningGroup
	if err := p.callInto(ctx, schema.URIProviderGetWarnings, nil, false, &groups); err != nil {
		return nil, err
	}
	if p.applyWarnings(groups) {
		p.emit(Event{Kind: EventWarningsChanged})
	}
	return groups, nil
}

func decodeReply(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("provider: decoding reply: %w", err)
	}
	return nil
}
