// Package mqtt provides MQTT client connectivity for the tsuryphone adapter.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The adapter uses MQTT as its platform integration surface: device state
// and availability are published retained, and action commands arrive on a
// per-device command topic.
//
//	tsuryphone adapter ↔ MQTT Broker ↔ home automation platform
//
// # Security Considerations
//
//   - TLS is recommended for non-local deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to commands for one device
//	err = client.Subscribe(mqtt.Topics{}.DeviceCommand("hallway-phone"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish state
//	topic := mqtt.Topics{}.DeviceState("hallway-phone")
//	client.PublishRetained(topic, stateJSON)
package mqtt
