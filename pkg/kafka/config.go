package kafka

import (
	"os"
	"strings"

	"github.com/hashicorp-forge/searchdispatch/internal/config"
)

const (
	// DefaultBroker is the Redpanda address used by local development setups.
	DefaultBroker = "localhost:19092"

	// DefaultTopic receives command events when no topic is configured.
	DefaultTopic = "searchdispatch.command-events"
)

// GetBrokers returns the Kafka/Redpanda broker addresses.
// It checks environment variables first, then falls back to config, then default.
func GetBrokers(cfg *config.Events) []string {
	if brokers := os.Getenv("SEARCHDISPATCH_BROKERS"); brokers != "" {
		return strings.Split(brokers, ",")
	}

	if cfg != nil && len(cfg.Brokers) > 0 {
		return cfg.Brokers
	}

	return []string{DefaultBroker}
}

// GetCommandEventTopic returns the command event topic name.
// It checks environment variables first, then falls back to config, then default.
func GetCommandEventTopic(cfg *config.Events) string {
	if topic := os.Getenv("SEARCHDISPATCH_EVENTS_TOPIC"); topic != "" {
		return topic
	}

	if cfg != nil && cfg.Topic != "" {
		return cfg.Topic
	}

	return DefaultTopic
}
