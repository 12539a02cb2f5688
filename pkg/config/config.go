// Package config loads the pipeline settings: defaults, then an optional YAML
// file, then .env files, then IMAGEPIPE_* environment variables. Binaries
// apply their command line flags last.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/in4it/imagepipe/pkg/api"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Region      string         `yaml:"region"`
	LogConfig   string         `yaml:"logConfig"`
	Transport   string         `yaml:"transport"`
	MetricsAddr string         `yaml:"metricsAddr"`
	MaxReceives int            `yaml:"maxReceives"`
	Storage     StorageConfig  `yaml:"storage"`
	Queues      QueueConfig    `yaml:"queues"`
	Pools       PoolsConfig    `yaml:"pools"`
	Mail        MailConfig     `yaml:"mail"`
	Metadata    MetadataConfig `yaml:"metadata"`
	Archive     ArchiveConfig  `yaml:"archive"`
}

type StorageConfig struct {
	Type  string `yaml:"type"`
	Table string `yaml:"table"`
	Path  string `yaml:"path"`
}

type QueueConfig struct {
	Catalog    string `yaml:"catalog"`
	Mailer     string `yaml:"mailer"`
	Metadata   string `yaml:"metadata"`
	DeadLetter string `yaml:"deadLetter"`
	// MetadataTopicArn is where publish-metadata sends edits.
	MetadataTopicArn string `yaml:"metadataTopicArn"`
}

type PoolsConfig struct {
	Catalog  PoolConfig `yaml:"catalog"`
	Mailer   PoolConfig `yaml:"mailer"`
	Metadata PoolConfig `yaml:"metadata"`
}

type PoolConfig struct {
	Workers   int           `yaml:"workers"`
	BatchSize int           `yaml:"batchSize"`
	WaitTime  time.Duration `yaml:"waitTime"`
	Timeout   time.Duration `yaml:"timeout"`
}

type MailConfig struct {
	Provider   string   `yaml:"provider"`
	Region     string   `yaml:"region"`
	SenderName string   `yaml:"senderName"`
	From       string   `yaml:"from"`
	To         []string `yaml:"to"`
}

type MetadataConfig struct {
	Whitelist  []string `yaml:"whitelist"`
	AutoCreate bool     `yaml:"autoCreate"`
}

type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

func Default() Config {
	return Config{
		Region:      "eu-west-1",
		LogConfig:   "<root>=INFO",
		Transport:   "sqs",
		MaxReceives: 3,
		Storage: StorageConfig{
			Type:  "dynamodb",
			Table: "Images",
		},
		Queues: QueueConfig{
			Catalog:    "img-created-queue",
			Mailer:     "mailer-queue",
			Metadata:   "metadata-queue",
			DeadLetter: "deadLetterQueue",
		},
		Pools: PoolsConfig{
			Catalog:  PoolConfig{Workers: 2, BatchSize: 5, WaitTime: 10 * time.Second, Timeout: 15 * time.Second},
			Mailer:   PoolConfig{Workers: 2, BatchSize: 5, WaitTime: 10 * time.Second, Timeout: 3 * time.Second},
			Metadata: PoolConfig{Workers: 1, BatchSize: 10, WaitTime: 10 * time.Second, Timeout: 15 * time.Second},
		},
		Mail: MailConfig{
			Provider:   "ses",
			SenderName: "The Photo Album",
		},
		Metadata: MetadataConfig{
			Whitelist: []string{"Caption", "Date", "Photographer"},
		},
		Archive: ArchiveConfig{
			Prefix: "dead-letters",
		},
	}
}

// Load builds the configuration. path may be empty; missing env files are
// ignored.
func Load(path string, envFiles ...string) (Config, error) {
	config := Default()
	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(contents, &config); err != nil {
			return config, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config, fmt.Errorf("load %s: %w", file, err)
		}
	}
	if err := config.applyEnv(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		name   string
		target *string
	}{
		{"IMAGEPIPE_REGION", &c.Region},
		{"IMAGEPIPE_LOG", &c.LogConfig},
		{"IMAGEPIPE_TRANSPORT", &c.Transport},
		{"IMAGEPIPE_METRICS_ADDR", &c.MetricsAddr},
		{"IMAGEPIPE_STORAGE", &c.Storage.Type},
		{"TABLE_NAME", &c.Storage.Table},
		{"IMAGEPIPE_TABLE", &c.Storage.Table},
		{"IMAGEPIPE_STORAGE_PATH", &c.Storage.Path},
		{"IMAGEPIPE_CATALOG_QUEUE", &c.Queues.Catalog},
		{"IMAGEPIPE_MAILER_QUEUE", &c.Queues.Mailer},
		{"IMAGEPIPE_METADATA_QUEUE", &c.Queues.Metadata},
		{"IMAGEPIPE_DEAD_LETTER_QUEUE", &c.Queues.DeadLetter},
		{"IMAGEPIPE_METADATA_TOPIC_ARN", &c.Queues.MetadataTopicArn},
		{"IMAGEPIPE_MAIL_PROVIDER", &c.Mail.Provider},
		{"SES_REGION", &c.Mail.Region},
		{"SES_EMAIL_FROM", &c.Mail.From},
		{"IMAGEPIPE_ARCHIVE_BUCKET", &c.Archive.Bucket},
		{"IMAGEPIPE_ARCHIVE_PREFIX", &c.Archive.Prefix},
	}
	// later entries win
	for _, s := range strs {
		if v := os.Getenv(s.name); v != "" {
			*s.target = v
		}
	}
	if v := os.Getenv("SES_EMAIL_TO"); v != "" {
		c.Mail.To = splitList(v)
	}
	if v := os.Getenv("IMAGEPIPE_METADATA_WHITELIST"); v != "" {
		c.Metadata.Whitelist = splitList(v)
	}
	if v := os.Getenv("IMAGEPIPE_METADATA_AUTO_CREATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("IMAGEPIPE_METADATA_AUTO_CREATE: %w", err)
		}
		c.Metadata.AutoCreate = b
	}
	if v := os.Getenv("IMAGEPIPE_MAX_RECEIVES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMAGEPIPE_MAX_RECEIVES: %w", err)
		}
		c.MaxReceives = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// MailRegion falls back to the pipeline region.
func (c Config) MailRegion() string {
	if c.Mail.Region != "" {
		return c.Mail.Region
	}
	return c.Region
}

func (c Config) Validate() error {
	var problems []string
	switch c.Storage.Type {
	case "dynamodb":
		if c.Storage.Table == "" {
			problems = append(problems, "storage.table is required for dynamodb")
		}
	case "local":
		if c.Storage.Path == "" {
			problems = append(problems, "storage.path is required for local storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage type %q", c.Storage.Type))
	}
	switch c.Transport {
	case "sqs":
		if c.Queues.Catalog == "" || c.Queues.Mailer == "" || c.Queues.Metadata == "" {
			problems = append(problems, "queues.catalog, queues.mailer and queues.metadata are required for sqs")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown transport %q", c.Transport))
	}
	switch c.Mail.Provider {
	case "ses":
		if c.Mail.From == "" || len(c.Mail.To) == 0 {
			problems = append(problems, "mail.from and mail.to (SES_EMAIL_FROM, SES_EMAIL_TO) are required for ses")
		}
	case "log":
	default:
		problems = append(problems, fmt.Sprintf("unknown mail provider %q", c.Mail.Provider))
	}
	for _, name := range c.Metadata.Whitelist {
		if !api.IsImageAttribute(name) {
			problems = append(problems, fmt.Sprintf("metadata.whitelist: %q is not one of %v", name, api.DefaultWhitelist().Names()))
		}
	}
	if c.MaxReceives <= 0 {
		problems = append(problems, "maxReceives must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
