// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fleetmas/fleetmas/lib/schema"
)

// initialSync pulls every state category the profile enables. The
// node pull is the one mandatory step; failures in the auxiliary
// pulls are logged and tolerated so a daemon with a degraded
// subsystem still yields a usable session.
func (p *Provider) initialSync(ctx context.Context) error {
	if p.profile.SyncSystem {
		if err := p.refreshDaemonVersion(ctx); err != nil {
			p.logger.Warn("pulling daemon version", "error", err)
		}
		if err := p.refreshSystemInfo(ctx); err != nil {
			p.logger.Debug("pulling system information", "error", err)
		}
		if err := p.UpdateTimestamp(ctx); err != nil {
			p.logger.Debug("measuring clock skew", "error", err)
		}
	}
	if p.profile.SyncNodes {
		if err := p.RefreshNodes(ctx); err != nil {
			return err
		}
	}
	if p.profile.SyncLaunches {
		if err := p.RefreshLaunches(ctx); err != nil {
			p.logger.Warn("pulling launch list", "error", err)
		}
	}
	if p.profile.SyncScreens {
		if err := p.RefreshScreens(ctx); err != nil {
			p.logger.Debug("pulling screen list", "error", err)
		}
	}
	if p.profile.SyncProviders {
		if err := p.RefreshProviders(ctx); err != nil {
			p.logger.Warn("pulling provider list", "error", err)
		}
	}
	return nil
}

// RefreshNodes pulls the current node list and merges it into the
// model.
func (p *Provider) RefreshNodes(ctx context.Context) error {
	var records []schema.NodeRecord
	if err := p.callInto(ctx, schema.URINodesGetList, nil, false, &records); err != nil {
		return err
	}
	if p.mergeNodeList(records) {
		p.emit(Event{Kind: EventNodesChanged})
		p.saveSnapshot()
	}
	return nil
}

// mergeNodeList reconciles the daemon's running node report with the
// model. Running records and launch declarations collapse into one
// node per qualified name; the stable id assigned at first sight is
// kept for the node's whole lifetime. Reports the model changed.
func (p *Provider) mergeNodeList(records []schema.NodeRecord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.model
	changed := false
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if rec.Name == "" || p.ignored(rec.Name) {
			continue
		}
		if !p.showRemote && p.isRemoteLocked(rec) {
			continue
		}

		node := m.byDaemonID[rec.ID]
		if node == nil {
			node = m.byName[rec.Name]
		}
		if node == nil {
			node = &Node{
				ID:       stableNodeID(p.id, rec.ID),
				DaemonID: rec.ID,
				Name:     rec.Name,
			}
			m.insert(node)
			changed = true
		} else if node.DaemonID != rec.ID {
			// Same name under a new daemon id: the process was
			// restarted or the declared node came up. The stable id
			// stays; only the daemon index moves.
			if node.DaemonID != "" {
				delete(m.byDaemonID, node.DaemonID)
			}
			node.DaemonID = rec.ID
			m.byDaemonID[rec.ID] = node
			changed = true
		}
		if node.Name != rec.Name {
			// Same daemon id under a new name. The stable id stays;
			// the name index follows the record.
			if m.byName[node.Name] == node {
				delete(m.byName, node.Name)
			}
			node.Name = rec.Name
			m.byName[rec.Name] = node
			changed = true
		}
		seen[node.ID] = struct{}{}

		status := p.inferStatusLocked(rec)
		if node.Status != status || node.PID != rec.PID ||
			node.NodeAPIURI != rec.NodeAPIURI || node.MasterURI != rec.MasterURI ||
			node.Location != rec.Location {
			changed = true
		}
		node.Status = status
		node.PID = rec.PID
		node.Namespace = schema.Namespace(rec.Name)
		node.NodeAPIURI = rec.NodeAPIURI
		node.MasterURI = rec.MasterURI
		node.Location = rec.Location
		node.SystemNode = rec.SystemNode
		node.Publishers = rec.Publishers
		node.Subscribers = rec.Subscribers
		node.Services = rec.Services
		if len(rec.Screens) > 0 {
			node.Screens = rec.Screens
		}
	}

	// Walk nodes the report no longer covers. Declared-only nodes
	// stay until their launch file is unloaded; formerly running
	// nodes with a launch association fall back to inactive, the rest
	// leave the model.
	for id, node := range m.nodes {
		if _, ok := seen[id]; ok {
			continue
		}
		if node.DaemonID == "" {
			continue
		}
		if len(node.LaunchPaths) > 0 {
			if node.Status != schema.StatusInactive || node.PID != 0 {
				node.Status = schema.StatusInactive
				node.PID = 0
				node.Screens = nil
				changed = true
			}
			continue
		}
		m.remove(node)
		changed = true
	}
	return changed
}

func (p *Provider) ignored(name string) bool {
	base := schema.BaseName(name)
	for _, pat := range p.ignoreNodes {
		if pat == name || pat == base {
			return true
		}
		if strings.HasSuffix(pat, "*") && strings.HasPrefix(name, strings.TrimSuffix(pat, "*")) {
			return true
		}
	}
	return false
}

// isRemoteLocked reports whether a record belongs to a different
// runtime master than this session's daemon.
func (p *Provider) isRemoteLocked(rec schema.NodeRecord) bool {
	if rec.MasterURI == "" || p.masterURI == "" {
		return false
	}
	return hostOf(rec.MasterURI) != hostOf(p.masterURI)
}

// inferStatusLocked decides liveness for a record. A reported pid
// means the process is monitored and running. Without one, a node
// whose API lives on this daemon's own host should have been
// monitored, so it is dead; a node on another host is merely not
// monitored from here.
func (p *Provider) inferStatusLocked(rec schema.NodeRecord) schema.NodeStatus {
	if rec.PID > 0 {
		return schema.StatusRunning
	}
	if rec.Status == schema.StatusInactive {
		return schema.StatusInactive
	}
	apiHost := hostOf(rec.NodeAPIURI)
	if apiHost == "" {
		return schema.StatusUnknown
	}
	if _, local := p.hostnames[apiHost]; local {
		return schema.StatusDead
	}
	if ref := hostOf(rec.MasterURI); ref != "" && ref == apiHost {
		return schema.StatusDead
	}
	return schema.StatusNotMonitored
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Hostname()
	}
	host := raw
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	return host
}

// RefreshLaunches pulls the loaded launch files and reconciles the
// declared nodes into the model.
func (p *Provider) RefreshLaunches(ctx context.Context) error {
	var launches []schema.LaunchContent
	if err := p.callInto(ctx, schema.URILaunchGetList, nil, false, &launches); err != nil {
		return err
	}
	if p.mergeLaunchList(launches) {
		p.emit(Event{Kind: EventLaunchesChanged})
		p.emit(Event{Kind: EventNodesChanged})
		p.saveSnapshot()
	}
	return nil
}

// mergeLaunchList is the authority for launch declarations: it
// rebuilds every node's launch path set, creates inactive placeholder
// nodes for declared names without a running process and drops
// placeholders whose launch file was unloaded. Composable container
// members get a group tag coloured per container.
func (p *Provider) mergeLaunchList(launches []schema.LaunchContent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.model
	changed := false

	newLaunches := make(map[string]schema.LaunchContent, len(launches))
	paths := make(map[*Node]map[string]struct{})
	params := make(map[*Node]map[string]schema.ParameterRecord)
	groups := make(map[*Node]*GroupTag)

	for _, lc := range launches {
		newLaunches[lc.Path] = lc
		for _, ln := range lc.Nodes {
			name := ln.UniqueName
			if name == "" || p.ignored(name) {
				continue
			}
			node := m.byName[name]
			if node == nil {
				node = &Node{
					ID:     stableNodeID(p.id, "launch:"+name),
					Name:   name,
					Status: schema.StatusInactive,
				}
				node.Namespace = schema.Namespace(name)
				m.insert(node)
				changed = true
			}
			set := paths[node]
			if set == nil {
				set = make(map[string]struct{})
				paths[node] = set
			}
			set[lc.Path] = struct{}{}
			// Launch-level parameters attach to the node whose name
			// prefixes the parameter name.
			for _, pr := range lc.Parameters {
				if pr.Name != name && !strings.HasPrefix(pr.Name, name+"/") {
					continue
				}
				pm := params[node]
				if pm == nil {
					pm = make(map[string]schema.ParameterRecord)
					params[node] = pm
				}
				pm[pr.Name] = pr
			}
			if ln.ComposableContainer != "" {
				color := m.colorFor(ln.ComposableContainer)
				groups[node] = &GroupTag{Container: ln.ComposableContainer, Color: color}
				if container := m.byName[ln.ComposableContainer]; container != nil {
					groups[container] = &GroupTag{Container: ln.ComposableContainer, Color: color}
				}
			}
		}
	}

	if len(m.launches) != len(newLaunches) {
		changed = true
	} else {
		for path, lc := range newLaunches {
			old, ok := m.launches[path]
			if !ok || len(old.Nodes) != len(lc.Nodes) || len(old.Args) != len(lc.Args) {
				changed = true
				break
			}
		}
	}
	m.launches = newLaunches

	for _, node := range m.nodes {
		var next []string
		for path := range paths[node] {
			next = append(next, path)
		}
		sort.Strings(next)
		if !equalStrings(node.LaunchPaths, next) {
			node.LaunchPaths = next
			changed = true
		}
		if pm := params[node]; pm != nil {
			node.Parameters = pm
		} else if node.Parameters != nil {
			// The refreshed launch set no longer declares parameters
			// for this node.
			node.Parameters = nil
			changed = true
		}
		if g := groups[node]; g != nil {
			if node.Group == nil || *node.Group != *g {
				node.Group = g
				changed = true
			}
		} else if node.Group != nil {
			node.Group = nil
			changed = true
		}
		// Placeholders without a surviving declaration are gone.
		if node.DaemonID == "" && len(node.LaunchPaths) == 0 {
			m.remove(node)
			changed = true
		}
	}
	return changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RefreshScreens pulls the screen session mapping.
func (p *Provider) RefreshScreens(ctx context.Context) error {
	var mappings []schema.ScreensMapping
	if err := p.callInto(ctx, schema.URIScreenGetList, nil, false, &mappings); err != nil {
		return err
	}
	if p.applyScreens(mappings) {
		p.emit(Event{Kind: EventScreensChanged})
	}
	return nil
}

func (p *Provider) applyScreens(mappings []schema.ScreensMapping) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.model
	changed := false
	next := make(map[string][]string, len(mappings))
	for _, sm := range mappings {
		next[sm.Name] = sm.Screens
		if node := m.byName[sm.Name]; node != nil {
			if !equalStrings(node.Screens, sm.Screens) {
				node.Screens = sm.Screens
				changed = true
			}
		}
	}
	for name, node := range m.byName {
		if _, ok := next[name]; !ok && len(node.Screens) > 0 {
			node.Screens = nil
			changed = true
		}
	}
	if len(next) != len(m.screens) {
		changed = true
	}
	m.screens = next
	return changed
}

// applyDiagnostics appends new diagnostic records to their nodes.
// Records for names the model does not know are skipped; an update
// identical to a node's newest record is suppressed so noisy
// aggregators do not grow the history.
func (p *Provider) applyDiagnostics(arr schema.DiagnosticArray) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	changed := false
	for _, st := range arr.Status {
		node := p.model.byName[st.Name]
		if node == nil {
			continue
		}
		if n := len(node.Diagnostics); n > 0 {
			last := node.Diagnostics[n-1]
			if last.Level == st.Level && last.Message == st.Message && len(last.Values) == len(st.Values) {
				continue
			}
		}
		node.Diagnostics = append(node.Diagnostics, st)
		node.DiagnosticLevel = st.Level
		changed = true
	}
	return changed
}

// applyWarnings replaces the warning groups when they actually
// differ. Group equality ignores message order within a group.
func (p *Provider) applyWarnings(groups []schema.SystemWarningGroup) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(groups) == len(p.warnings) {
		same := true
		for i := range groups {
			if !groups[i].Equal(p.warnings[i]) {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}
	p.warnings = groups
	return true
}

func (p *Provider) refreshDaemonVersion(ctx context.Context) error {
	var v schema.DaemonVersion
	if err := p.callInto(ctx, schema.URIDaemonVersion, nil, false, &v); err != nil {
		return err
	}
	p.mu.Lock()
	p.version = v
	p.mu.Unlock()
	return nil
}

func (p *Provider) refreshSystemInfo(ctx context.Context) error {
	var info schema.SystemInformation
	if err := p.callInto(ctx, schema.URIProviderSystemInfo, nil, false, &info); err != nil {
		return err
	}
	var env schema.SystemEnvironment
	if err := p.callInto(ctx, schema.URIProviderSystemEnv, nil, false, &env); err != nil {
		return err
	}
	p.mu.Lock()
	p.systemInfo = info
	p.systemEnv = env
	p.mu.Unlock()
	return nil
}

// UpdateTimestamp measures the offset between the daemon's clock and
// the local one with a single request and response pair. The remote
// timestamp is compared against the local send and receive times; the
// estimate is negative when the remote clock runs behind.
func (p *Provider) UpdateTimestamp(ctx context.Context) error {
	t0 := p.clk.Now()
	var reply schema.Timestamp
	args := map[string]any{"timestamp": float64(t0.UnixNano()) / 1e6}
	if err := p.callInto(ctx, schema.URIProviderGetTimestamp, args, false, &reply); err != nil {
		return err
	}
	t1 := p.clk.Now()

	t0ms := float64(t0.UnixNano()) / 1e6
	t1ms := float64(t1.UnixNano()) / 1e6
	trms := reply.Timestamp

	sign := 1.0
	if trms < t0ms {
		sign = -1.0
	}
	abs := func(f float64) float64 {
		if f < 0 {
			return -f
		}
		return f
	}
	estMs := sign * (abs(trms-t0ms) + abs(t1ms-trms) - (t1ms - t0ms)) / 2
	skew := time.Duration(estMs * float64(time.Millisecond))

	p.mu.Lock()
	p.skew = skew
	p.mu.Unlock()
	p.emit(Event{Kind: EventDelayUpdated, Skew: skew})
	return nil
}
