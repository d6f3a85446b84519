package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/riferrei/srclient"
	"github.com/segmentio/kafka-go"

	"github.com/siqueiraa/WhiskFlow/pkg/avro"
	"github.com/siqueiraa/WhiskFlow/pkg/config"
)

const (
	batchTimeoutMillis = 100 // Batch timeout in milliseconds
	keyBufCapacity     = 20  // Buffer capacity for hashed keys
	decimalBase        = 10  // Base for decimal number conversion
)

// Kafka publishes events to one topic, encoding JSON or Confluent Avro.
type Kafka struct {
	writer       *kafka.Writer
	topic        string
	keyField     string
	useAvro      bool
	schemaClient *srclient.SchemaRegistryClient
}

// NewKafka creates the Kafka event sink.
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeoutMillis * time.Millisecond,
		// RequiredAcks is an int, so cast the constant.
		RequiredAcks: int(kafka.RequireAll),
	})

	var client *srclient.SchemaRegistryClient
	if cfg.UseAvro {
		client = srclient.CreateSchemaRegistryClient(cfg.SchemaRegistry)
	}

	return &Kafka{
		writer:       w,
		topic:        cfg.Topic,
		keyField:     cfg.KeyField,
		useAvro:      cfg.UseAvro,
		schemaClient: client,
	}, nil
}

// Emit sends a single event, keyed by the xxhash64 of the configured key
// field so activations for the same identifier land on one partition.
func (k *Kafka) Emit(ctx context.Context, event map[string]any) error {
	var (
		payload []byte
		err     error
	)

	if k.useAvro {
		payload, err = avro.Encode(k.schemaClient, k.topic, event)
		if err != nil {
			return fmt.Errorf("avro encode failed: %w", err)
		}
	} else {
		payload, err = jsonFast.Marshal(event)
		if err != nil {
			return fmt.Errorf("json marshal failed: %w", err)
		}
	}

	msg := kafka.Message{
		Topic: k.topic,
		Key:   k.keyFor(event),
		Value: payload,
		Time:  time.Now(),
	}
	return k.writer.WriteMessages(ctx, msg)
}

// keyFor hashes the key field's value into a decimal-encoded xxhash64.
// Events without the field get a nil key and round-robin placement.
func (k *Kafka) keyFor(event map[string]any) []byte {
	if k.keyField == "" {
		return nil
	}
	raw, ok := event[k.keyField]
	if !ok || raw == nil {
		return nil
	}

	h := xxhash.New()
	fmt.Fprint(h, raw)
	return strconv.AppendUint(make([]byte, 0, keyBufCapacity), h.Sum64(), decimalBase)
}

// Close shuts down the writer cleanly.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
