// Package mqtt connects Signage Core to an MQTT broker.
//
// The broker is optional. When enabled, the service uses it to:
//   - publish change notifications (display.*, views.changed) under
//     <prefix>/events/ for systems that are not websocket clients
//   - receive display heartbeats on <prefix>/display/<id>/presence,
//     which feed the presence tracker
//   - announce itself on the retained <prefix>/system/status topic, with a
//     last will so subscribers see an unexpected disconnect
//
// paho.mqtt.golang handles reconnection with backoff between the
// configured delays. Subscriptions are replayed after each reconnect.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := signage.NewMQTTSink(client, client.Topics().Events())
package mqtt
