// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Remote call URIs registered by the daemon's servicers.
const (
	URIDaemonVersion = "ros.daemon.get_version"

	URINodesGetList        = "ros.nodes.get_list"
	URINodesStopNode       = "ros.nodes.stop_node"
	URINodesGetLoggers     = "ros.nodes.get_loggers"
	URINodesSetLoggerLevel = "ros.nodes.set_logger_level"

	URILaunchLoad           = "ros.launch.load"
	URILaunchReload         = "ros.launch.reload"
	URILaunchUnload         = "ros.launch.unload"
	URILaunchGetList        = "ros.launch.get_list"
	URILaunchStartNode      = "ros.launch.start_node"
	URILaunchPublishMessage = "ros.launch.publish_message"
	URILaunchCallService    = "ros.launch.call_service"

	URIParametersGetList = "ros.parameters.get_list"
	URIParametersSet     = "ros.parameters.set_parameter"
	URIParametersDelete  = "ros.parameters.delete_parameter"

	URIScreenGetList  = "ros.screen.get_list"
	URIScreenKillNode = "ros.screen.kill_node"

	URIPathGetLogPaths   = "ros.path.get_log_paths"
	URIPathClearLogPaths = "ros.path.clear_log_paths"

	URIProviderGetList      = "ros.provider.get_list"
	URIProviderGetTimestamp = "ros.provider.get_timestamp"
	URIProviderSystemInfo   = "ros.provider.get_system_info"
	URIProviderSystemEnv    = "ros.provider.get_system_env"
	URIProviderGetWarnings  = "ros.provider.get_warnings"
	URIProviderShutdown     = "ros.provider.shutdown"

	URISubscriberStart = "ros.subscriber.start"
	URISubscriberStop  = "ros.subscriber.stop"
)

// Push-notification URIs the daemon publishes on.
const (
	URIDaemonReady    = "ros.daemon.ready"
	URIDiscoveryReady = "ros.discovery.ready"
	URIProviderList   = "ros.provider.list"
	URILaunchChanged  = "ros.launch.changed"
	URINodesChanged   = "ros.nodes.changed"
	URIPathChanged    = "ros.path.changed"
	URIScreenList     = "ros.screen.list"
	URIWarnings       = "ros.provider.warnings"
	URIDiagnostics    = "ros.provider.diagnostics"

	// URISubscriberEventPrefix prefixes the per-topic echo streams:
	// echoing "/chatter" delivers on "ros.subscriber.event./chatter".
	URISubscriberEventPrefix = "ros.subscriber.event."
)

// SubscriberEventURI returns the push URI carrying echo events for a
// topic.
func SubscriberEventURI(topic string) string {
	return URISubscriberEventPrefix + topic
}
