// Package feed turns raw BLE advertisement messages into registry
// observations.
//
// Three sources deliver messages in the same JSON gateway format:
//
//   - MQTTSource subscribes to an MQTT topic fed by BLE-to-MQTT gateways.
//   - SerialSource reads newline-delimited JSON from a USB scanner.
//   - CommandSource runs a local scanner helper under process.Manager and
//     reads one message per stdout line.
//
// Each hands each message to an Ingestor, which decodes, classifies and
// observes it. Malformed or unclassified messages are counted and dropped;
// a bad message is never reported as an error to its producer.
//
// Message format:
//
//	{"id": "e3:ed:26:c7:83:c4", "rssi": -61, "manufacturerdata": "4c0012199a",
//	 "name": "AirTag", "servicedatauuid": "0xfd6f"}
//
// "mac" is accepted for "id", "mfg" for "manufacturerdata" and "uuid" for
// "servicedatauuid".
package feed
