// Package api implements the HTTP REST API and WebSocket server for
// Signage Core.
//
// This package provides:
//   - REST endpoints for displays, views, content slots and slot options
//   - Slot reconciliation via PUT /views/{id}/slots
//   - Display sessions: a client identifier is exchanged for a JWT
//   - WebSocket hub pushing change notifications to displays
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Change notifications
//
// The Hub is a signage.EventSink. A display's websocket starts subscribed
// to views.changed, which is delivered only to connections of the display
// that owns the changed view. display.* events go to any connection that
// subscribes to them.
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional. Without them the API, reconciliation and
// websocket push keep working.
package api
