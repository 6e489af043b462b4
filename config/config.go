package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	RigCheck RigCheckConfig `yaml:"rigcheck"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	InspectionCompletedTopic string `yaml:"inspection_completed_topic_name"`
	DefectResolvedTopic      string `yaml:"defect_resolved_topic_name"`
	LowStockAlertTopic       string `yaml:"lowstock_alert_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TrackerConfig selects and configures the issue-tracker backend. Kind is
// "github", "postgres" or "fake"; the latter keeps everything in memory
// for local runs.
type TrackerConfig struct {
	Kind       string `yaml:"kind"`
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	Owner      string `yaml:"owner"`
	Repo       string `yaml:"repo"`
	AdminToken string `yaml:"admin_token"`
}

type RigCheckConfig struct {
	HTTPAddr           string   `yaml:"http_addr"`
	WorkerHTTPAddr     string   `yaml:"worker_http_addr"`
	KafkaConsumerGroup string   `yaml:"kafka_consumer_group"`
	Roster             []string `yaml:"roster"`

	DefectLabel   string `yaml:"defect_label"`
	LogLabel      string `yaml:"inspection_log_label"`
	ResolvedLabel string `yaml:"resolved_label"`
	DamagedLabel  string `yaml:"damaged_label"`

	ListPageSize          int `yaml:"list_page_size"`
	SubmitConcurrency     int `yaml:"submit_concurrency"`
	SubmitLockTTLSeconds  int `yaml:"submit_lock_ttl_seconds"`
	LowStockWindowDays    int `yaml:"lowstock_window_days"`
	LowStockMinOccurrence int `yaml:"lowstock_min_occurrences"`

	StockScanCron          string `yaml:"stock_scan_cron"`
	StockScanRatePerMinute int    `yaml:"stock_scan_rate_per_minute"`

	ChecklistPath string `yaml:"checklist_path"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
