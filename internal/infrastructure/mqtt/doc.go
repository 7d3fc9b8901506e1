// Package mqtt provides MQTT client connectivity for ParamBridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Topic builders for the parameter wire protocol
//
// # Architecture
//
// ParamBridge exposes its parameter registry over a single topic prefix.
// Clients publish commands (set/get/list/save) under the prefix and the
// node answers on the status topics:
//
//	Remote client ↔ MQTT Broker ↔ ParamBridge node
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	topics := mqtt.Topics{Prefix: cfg.Registry.Prefix}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	for _, filter := range topics.CommandFilters() {
//	    err = client.Subscribe(filter, 1, func(topic string, payload []byte) error {
//	        registry.HandleCommand(topic, string(payload))
//	        return nil
//	    })
//	}
package mqtt
