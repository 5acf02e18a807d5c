// Package mqtt provides MQTT client connectivity for the vehicle core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained state snapshots and command results
//   - The command subscription, restored after reconnects
//   - Last Will and Testament (LWT) on the vehicle status topic
//   - Connection health monitoring
//
// # Topics
//
// Every topic lives under vehicle/{vehicle_id}/:
//
//	state    retained JSON snapshot, published on every update
//	command  inbound {action, parameters}
//	result   results of commands received on the command topic
//	status   online/offline presence, LWT
//
// # Usage
//
//	topics := mqtt.Topics{VehicleID: cfg.Vehicle.ID}
//	client, err := mqtt.Connect(cfg.MQTT, topics, mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeCommands(func(_ string, payload []byte) error {
//	    return handle(payload)
//	})
//	...
//	err = client.PublishState(store.Snapshot())
package mqtt
