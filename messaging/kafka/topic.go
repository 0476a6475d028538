package kafka

import (
	"fmt"
	"strconv"
)

// Retention defaults applied to every provisioned topic.
const (
	DefaultCleanupPolicy     = "compact"
	DefaultCompressionType   = "lz4"
	DefaultDeleteRetentionMs = 100
	DefaultFileDeleteDelayMs = 100
)

// RetentionPolicy is the topic-level config sent with every creation request.
type RetentionPolicy struct {
	CleanupPolicy     string `mapstructure:"cleanup_policy"`
	CompressionType   string `mapstructure:"compression_type"`
	DeleteRetentionMs int64  `mapstructure:"delete_retention_ms"`
	FileDeleteDelayMs int64  `mapstructure:"file_delete_delay_ms"`
}

// DefaultRetentionPolicy returns compact cleanup with lz4 and short delete windows.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		CleanupPolicy:     DefaultCleanupPolicy,
		CompressionType:   DefaultCompressionType,
		DeleteRetentionMs: DefaultDeleteRetentionMs,
		FileDeleteDelayMs: DefaultFileDeleteDelayMs,
	}
}

func (r *RetentionPolicy) applyDefaults() {
	d := DefaultRetentionPolicy()
	if r.CleanupPolicy == "" {
		r.CleanupPolicy = d.CleanupPolicy
	}
	if r.CompressionType == "" {
		r.CompressionType = d.CompressionType
	}
	if r.DeleteRetentionMs <= 0 {
		r.DeleteRetentionMs = d.DeleteRetentionMs
	}
	if r.FileDeleteDelayMs <= 0 {
		r.FileDeleteDelayMs = d.FileDeleteDelayMs
	}
}

// Configs renders the policy as broker topic configs.
func (r RetentionPolicy) Configs() map[string]string {
	return map[string]string{
		"cleanup.policy":       r.CleanupPolicy,
		"compression.type":     r.CompressionType,
		"delete.retention.ms":  strconv.FormatInt(r.DeleteRetentionMs, 10),
		"file.delete.delay.ms": strconv.FormatInt(r.FileDeleteDelayMs, 10),
	}
}

// TopicSpec describes a stream to provision. Name is the unique key.
type TopicSpec struct {
	Name          string          `mapstructure:"name"`
	NumPartitions int             `mapstructure:"partitions"`
	NumReplicas   int             `mapstructure:"replicas"`
	Retention     RetentionPolicy `mapstructure:"retention"`
}

// NewTopicSpec returns a spec for name with one partition, one replica and the default retention policy.
func NewTopicSpec(name string) TopicSpec {
	return TopicSpec{
		Name:          name,
		NumPartitions: 1,
		NumReplicas:   1,
		Retention:     DefaultRetentionPolicy(),
	}
}

// ApplyDefaults fills zero partitions, replicas and retention fields.
func (s *TopicSpec) ApplyDefaults() {
	if s.NumPartitions == 0 {
		s.NumPartitions = 1
	}
	if s.NumReplicas == 0 {
		s.NumReplicas = 1
	}
	s.Retention.applyDefaults()
}

// Validate checks the name and the partition/replica counts.
func (s TopicSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty topic name", ErrInvalidTopicSpec)
	}
	if s.NumPartitions < 1 {
		return fmt.Errorf("%w: topic %s: partitions must be >= 1, got %d", ErrInvalidTopicSpec, s.Name, s.NumPartitions)
	}
	if s.NumReplicas < 1 {
		return fmt.Errorf("%w: topic %s: replicas must be >= 1, got %d", ErrInvalidTopicSpec, s.Name, s.NumReplicas)
	}
	return nil
}
