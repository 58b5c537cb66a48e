//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// These tests need a broker at 127.0.0.1:1883:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func TestIntegration_PresenceRoundtrip(t *testing.T) {
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	topics := client.Topics()
	err = client.Subscribe(topics.AllDisplayPresence(), 1, func(topic string, _ []byte) error {
		id, _ := topics.DisplayIDFromPresence(topic)
		received <- id
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topics.AllDisplayPresence()) {
		t.Error("subscription not tracked")
	}

	if err := client.Publish(topics.DisplayPresence("dsp-int"), []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case id := <-received:
		if id != "dsp-int" {
			t.Errorf("display id = %q, want dsp-int", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for heartbeat")
	}

	if err := client.Unsubscribe(topics.AllDisplayPresence()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999
	if _, err := Connect(cfg); err == nil {
		t.Fatal("Connect() should fail against a closed port")
	}
}
