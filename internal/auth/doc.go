// Package auth issues display session tokens and tracks which displays are
// online.
//
// A display exchanges its client identifier for a short-lived HS256 JWT
// (POST /api/v1/auth/display). The token authorises its websocket
// connection and scopes the views.changed notifications it receives to its
// own display ID.
//
// Presence combines two signals: open websocket connections, and
// heartbeats published by displays over MQTT.
package auth
