// Package mqtt connects the daemon to an MQTT broker.
//
// The daemon mirrors its remapped control namespace onto the broker:
// element values and descriptors go out as retained messages so new
// subscribers see current state immediately, a non-retained event
// stream carries changes as they happen, and inbound set topics let
// automations write control values without speaking the HTTP API. The
// whole surface is optional (mqtt.enabled) and rooted at a configurable
// base topic (mqtt.base_topic); Topics builds every topic string from
// that root.
//
// The client keeps itself alive. Reconnection is automatic with
// exponential backoff, subscriptions are replayed on every reconnect,
// and a Last Will flips the system status topic to offline if the
// daemon dies without disconnecting cleanly.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Accept element writes from the broker.
//	client.Subscribe(client.Topics().AllElementSets(), 1,
//	    func(topic string, payload []byte) error {
//	        numid, ok := client.Topics().ParseElementSet(topic)
//	        ...
//	    })
//
//	// Mirror an element value.
//	client.PublishRetained(client.Topics().ElementValue(42), []byte(`{"values":[80,80]}`))
//
// Inbound set topics bypass API authentication; when untrusted clients
// can reach the broker, restrict them with broker ACLs. TLS is a config
// switch (mqtt.broker.tls); anonymous access is for local development
// only.
package mqtt
