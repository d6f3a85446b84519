package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// KafkaConfig configures the Kafka event sink.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	KeyField       string   `yaml:"keyField"` // record field hashed into the message key
	SchemaRegistry string   `yaml:"schemaRegistry"`
	UseAvro        bool     `yaml:"useAvro"`
}

// S3Config configures the S3 archive sink.
type S3Config struct {
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	AccessKey     string        `yaml:"accessKey"`
	SecretKey     string        `yaml:"secretKey"`
	Endpoint      string        `yaml:"endpoint"`
	Prefix        string        `yaml:"prefix"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	MaxBatch      int           `yaml:"maxBatch"`
}

// SinkConfig selects and configures the event sink.
type SinkConfig struct {
	Type  string      `yaml:"type"` // stdout | kafka | s3
	Kafka KafkaConfig `yaml:"kafka"`
	S3    S3Config    `yaml:"s3"`
}

// JournalConfig configures the optional local event journal.
type JournalConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	TTL     time.Duration `yaml:"ttl"`
}

type AppConfig struct {
	// PollersDir holds one YAML definition per poller.
	PollersDir string `yaml:"pollers"`

	// Timeout bounds each transport call.
	Timeout time.Duration `yaml:"timeout"`

	// StatsInterval is how often per-poller stats are logged.
	StatsInterval time.Duration `yaml:"statsInterval"`

	Sink    SinkConfig    `yaml:"sink"`
	Journal JournalConfig `yaml:"journal"`
}

// Load reads and parses a YAML config file into an AppConfig struct.
// It will terminate the program if the file is not found or invalid.
func Load(path string) AppConfig {
	cfg := AppConfig{
		PollersDir:    "pollers",
		Timeout:       30 * time.Second,
		StatsInterval: 60 * time.Second,
		Sink:          SinkConfig{Type: "stdout"},
		Journal: JournalConfig{
			Path: "data/journal",
			TTL:  24 * time.Hour,
		},
	}
	cfg.Sink.S3.FlushInterval = 30 * time.Second
	cfg.Sink.S3.MaxBatch = 5000

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("Config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("Error parsing config file: %v", err)
	}

	return cfg
}

// Validate checks sink and journal settings. Called before any scheduling
// begins; a failure here prevents startup.
func Validate(cfg *AppConfig) error {
	switch cfg.Sink.Type {
	case "stdout":
	case "kafka":
		if len(cfg.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka sink requires brokers")
		}
		if cfg.Sink.Kafka.Topic == "" {
			return fmt.Errorf("kafka sink requires a topic")
		}
		if cfg.Sink.Kafka.UseAvro && cfg.Sink.Kafka.SchemaRegistry == "" {
			return fmt.Errorf("schema registry is required when using Avro")
		}
	case "s3":
		if cfg.Sink.S3.Bucket == "" {
			return fmt.Errorf("s3 sink requires a bucket")
		}
		if cfg.Sink.S3.Region == "" {
			return fmt.Errorf("s3 sink requires a region")
		}
	default:
		return fmt.Errorf("unknown sink type %q", cfg.Sink.Type)
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal requires a path")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
