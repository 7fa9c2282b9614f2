// Package events publishes provisioning events to external sinks.
//
// Every publisher implements interfaces.EventPublisher and sends the event
// as a JSON document:
//
//	{"type":"device.auto_registered","deviceId":"0004f2ac2ba0","time":"2024-05-01T12:00:00Z"}
//
// MQTTPublisher publishes to <prefix>/<type>, NATSPublisher to the subject
// <prefix>.<type> and InfluxPublisher writes points of the
// provisioning_events measurement tagged by type and device. Multi fans out
// to several publishers and Nop discards everything.
//
// Publishing is best effort: callers log errors and never fail a request
// because an event could not be delivered.
package events
