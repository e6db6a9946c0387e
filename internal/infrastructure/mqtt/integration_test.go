//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-presence-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestIntegration_AdvertRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-presence-int-roundtrip"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var (
		mu       sync.Mutex
		gotTopic string
		gotBody  string
	)
	received := make(chan struct{}, 1)

	err = client.Subscribe(Topics{}.AllAdverts(), 1, func(topic string, payload []byte) error {
		mu.Lock()
		gotTopic, gotBody = topic, string(payload)
		mu.Unlock()
		received <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.AllAdverts()) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	body := `{"id":"e3:ed:26:c7:83:c4","rssi":-61,"manufacturerdata":"4c001219"}`
	if err := client.Publish(Topics{}.Adverts("int-test"), []byte(body), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for advert")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotTopic != "graylogic/presence/adverts/int-test" || gotBody != body {
		t.Errorf("received (%q, %q)", gotTopic, gotBody)
	}

	if err := client.Unsubscribe(Topics{}.AllAdverts()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}
