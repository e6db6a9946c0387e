// Package mqtt provides MQTT client connectivity for Gray Logic Presence.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing of retained device state and presence events
//   - The advertisement feed subscription (wildcard topics)
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	graylogic/presence/adverts/{gateway}        scanner gateways → service
//	graylogic/presence/device/{address}/state   retained per-device state
//	graylogic/presence/event/{kind}             acquired, lost, reacquired, cleared
//	graylogic/presence/status                   retained online/offline (LWT)
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Supply credentials through PRESENCE_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllAdverts(), 1,
//	    func(topic string, payload []byte) error {
//	        return ingestor.HandleMessage(payload)
//	    })
package mqtt
