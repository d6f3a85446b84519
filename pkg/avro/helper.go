package avro

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hamba/avro/v2"
	"github.com/riferrei/srclient"
	"golang.org/x/sync/singleflight"
)

// Confluent wire format: magic byte (1) + schema ID (4)
const confluentWireFormatHeaderSize = 5

// schemaEntry holds the parsed schema and its schema ID.
type schemaEntry struct {
	schemaID int
	schema   avro.Schema
}

var (
	// Cache parsed schemas by subject
	schemaCacheBySubject sync.Map // map[string]schemaEntry
	// Prevent duplicate schema fetches
	singleFlight singleflight.Group
)

// getSchemaForSubject fetches and caches the latest schema for a subject.
func getSchemaForSubject(client *srclient.SchemaRegistryClient, subject string) (int, avro.Schema, error) {
	// Fast path: check cache
	if v, ok := schemaCacheBySubject.Load(subject); ok {
		se := v.(schemaEntry)
		return se.schemaID, se.schema, nil
	}
	// Singleflight to prevent duplicate fetches
	val, err, _ := singleFlight.Do(subject, func() (interface{}, error) {
		schemaMeta, err := client.GetLatestSchema(subject)
		if err != nil {
			return nil, fmt.Errorf("fetch schema %s: %w", subject, err)
		}
		schema, err := avro.Parse(schemaMeta.Schema())
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", subject, err)
		}
		se := schemaEntry{schemaID: schemaMeta.ID(), schema: schema}
		schemaCacheBySubject.Store(subject, se)
		return se, nil
	})
	if err != nil {
		return 0, nil, err
	}
	se := val.(schemaEntry)
	return se.schemaID, se.schema, nil
}

// encodeWire encodes a native record into a Confluent-wire payload.
func encodeWire(client *srclient.SchemaRegistryClient, subject string, native map[string]any) ([]byte, error) {
	schemaID, schema, err := getSchemaForSubject(client, subject)
	if err != nil {
		return nil, fmt.Errorf("get schema for %s: %w", subject, err)
	}
	binaryData, err := avro.Marshal(schema, native)
	if err != nil {
		return nil, fmt.Errorf("marshal for %s: %w", subject, err)
	}
	if schemaID < 0 || schemaID > 0xFFFFFFFF { // Ensure schema ID fits in uint32
		return nil, fmt.Errorf("schema ID %d out of uint32 range", schemaID)
	}
	out := make([]byte, confluentWireFormatHeaderSize+len(binaryData))
	out[0] = 0
	binary.BigEndian.PutUint32(out[1:confluentWireFormatHeaderSize], uint32(schemaID))
	copy(out[confluentWireFormatHeaderSize:], binaryData)
	return out, nil
}
