// Package config loads elicit settings from elicit.yml, a .env file and the
// process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPITimeout   = 30 * time.Second
	DefaultAIStoryLimit = 70
	DefaultConcurrency  = 1
	DefaultListenAddr   = ":8080"
	DefaultDataDir      = ".elicit"
	DefaultNATSSubject  = "elicit.progress"
	DefaultInterval     = time.Hour
)

// Config holds every elicit setting.
type Config struct {
	API          APIConfig         `yaml:"api"`
	AIStoryLimit int               `yaml:"aiStoryLimit,omitempty"`
	Concurrency  int               `yaml:"concurrency,omitempty"`
	DataDir      string            `yaml:"dataDir,omitempty"`
	GraphPath    string            `yaml:"graphPath,omitempty"`
	ListenAddr   string            `yaml:"listenAddr,omitempty"`
	NATS         NATSConfig        `yaml:"nats"`
	ObjectStore  ObjectStoreConfig `yaml:"objectStore"`
	Schedule     ScheduleConfig    `yaml:"schedule"`
}

// APIConfig locates the multisource backend service.
type APIConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// NATSConfig enables progress fan-out when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"`
}

// ObjectStoreConfig enables artifact upload when Endpoint is set.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	UseSSL    bool   `yaml:"useSSL,omitempty"`
}

// ScheduleConfig lists projects started periodically by `elicit serve`.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Projects []string      `yaml:"projects,omitempty"`
	Pipeline string        `yaml:"pipeline,omitempty"`
}

// Load reads elicit.yml or elicit.yaml from dir, then .env from dir, then
// applies environment overrides and defaults. A missing file is not an
// error.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	for _, name := range []string{"elicit.yml", "elicit.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		break
	}

	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.API.Endpoint = envString(c.API.Endpoint, "ELICIT_API_ENDPOINT", "VITE_MULTISOURCE_SERVICE_API_ENDPOINT")
	c.DataDir = envString(c.DataDir, "ELICIT_DATA_DIR")
	c.GraphPath = envString(c.GraphPath, "ELICIT_GRAPH_PATH")
	c.ListenAddr = envString(c.ListenAddr, "ELICIT_LISTEN_ADDR")
	c.NATS.URL = envString(c.NATS.URL, "ELICIT_NATS_URL")
	c.NATS.Subject = envString(c.NATS.Subject, "ELICIT_NATS_SUBJECT")
	c.ObjectStore.Endpoint = envString(c.ObjectStore.Endpoint, "ELICIT_S3_ENDPOINT")
	c.ObjectStore.AccessKey = envString(c.ObjectStore.AccessKey, "ELICIT_S3_ACCESS_KEY")
	c.ObjectStore.SecretKey = envString(c.ObjectStore.SecretKey, "ELICIT_S3_SECRET_KEY")
	c.ObjectStore.Bucket = envString(c.ObjectStore.Bucket, "ELICIT_S3_BUCKET")

	var err error
	if c.API.Timeout, err = envDuration(c.API.Timeout, "ELICIT_API_TIMEOUT"); err != nil {
		return err
	}
	if c.AIStoryLimit, err = envInt(c.AIStoryLimit, "ELICIT_AI_STORY_LIMIT", "VITE_AI_STORY_GENERATION_LIMIT"); err != nil {
		return err
	}
	if c.Concurrency, err = envInt(c.Concurrency, "ELICIT_CONCURRENCY"); err != nil {
		return err
	}
	if c.ObjectStore.UseSSL, err = envBool(c.ObjectStore.UseSSL, "ELICIT_S3_USE_SSL"); err != nil {
		return err
	}
	if c.Schedule.Interval, err = envDuration(c.Schedule.Interval, "ELICIT_SCHEDULE_INTERVAL"); err != nil {
		return err
	}
	if v := envString("", "ELICIT_SCHEDULE_PROJECTS"); v != "" {
		c.Schedule.Projects = splitList(v)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.API.Timeout <= 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.AIStoryLimit <= 0 {
		c.AIStoryLimit = DefaultAIStoryLimit
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.GraphPath == "" {
		c.GraphPath = filepath.Join(c.DataDir, "graph")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = DefaultNATSSubject
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = DefaultInterval
	}
	if c.Schedule.Pipeline == "" {
		c.Schedule.Pipeline = "ai"
	}
}

// DatabasePath is the SQLite file holding run history and the blacklist.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "elicit.db")
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.API.Endpoint == "" {
		errs = append(errs, errors.New("api endpoint is required (ELICIT_API_ENDPOINT)"))
	} else if !strings.HasPrefix(c.API.Endpoint, "http://") && !strings.HasPrefix(c.API.Endpoint, "https://") {
		errs = append(errs, fmt.Errorf("api endpoint %q must be an http(s) URL", c.API.Endpoint))
	}
	if c.Concurrency > 64 {
		errs = append(errs, fmt.Errorf("concurrency %d exceeds 64", c.Concurrency))
	}
	if c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket == "" {
		errs = append(errs, errors.New("objectStore.bucket is required when an endpoint is set"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// envString returns the first set variable among keys, else def.
func envString(def string, keys ...string) string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return v
		}
	}
	return def
}

func envInt(def int, keys ...string) (int, error) {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("config: parse %s: %w", k, err)
			}
			return n, nil
		}
	}
	return def, nil
}

func envDuration(def time.Duration, key string) (time.Duration, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("config: parse %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}

func envBool(def bool, key string) (bool, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			return true, nil
		case "0", "false", "no":
			return false, nil
		}
		return false, fmt.Errorf("config: parse %s: invalid boolean %q", key, v)
	}
	return def, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
