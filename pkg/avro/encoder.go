package avro

import (
	"github.com/riferrei/srclient"
)

// Encode encodes a Go record into the Confluent-wire-format Avro message
// under the topic's value subject, leveraging the shared helper for schema
// lookup and codec caching.
func Encode(
	client *srclient.SchemaRegistryClient,
	topic string,
	record map[string]any,
) ([]byte, error) {
	return encodeWire(client, topic+"-value", record)
}
