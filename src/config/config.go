package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/zvdy/clustermeta/src/models"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig      `yaml:"server"`
	Yarn    []YarnClusterConf `yaml:"yarn"`
	Spark   SparkConfig       `yaml:"spark"`
	Refresh RefreshConfig     `yaml:"refresh"`
	Cache   CacheConfig       `yaml:"cache"`
	Logging LoggingConfig     `yaml:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// YarnClusterConf represents one YARN cluster
type YarnClusterConf struct {
	ResourceManager  []string `yaml:"resource_manager"`
	JobHistoryServer string   `yaml:"job_history_server"`
}

// SparkConfig lists the spark history servers
type SparkConfig struct {
	SparkHistoryServer []string `yaml:"spark_history_server"`
}

// RefreshConfig controls how and when JobHistory server configuration is refreshed
type RefreshConfig struct {
	Cron        string        `yaml:"cron"`
	RunOnStart  bool          `yaml:"run_on_start"`
	Concurrency int           `yaml:"concurrency"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	ConfPath    string        `yaml:"conf_path"`
	Scheme      string        `yaml:"scheme"` // marker identifying an absolute path
}

// CacheConfig selects and configures the store that receives published paths
type CacheConfig struct {
	Backend  string         `yaml:"backend"` // memory, badger or postgres
	Keys     KeysConfig     `yaml:"keys"`
	Badger   BadgerConfig   `yaml:"badger"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// KeysConfig names the cache keys written on every refresh
type KeysConfig struct {
	SparkHistoryServers                string `yaml:"spark_history_servers"`
	YarnClusters                       string `yaml:"yarn_clusters"`
	ResourceManagerToJobHistory        string `yaml:"rm_jhs_map"`
	RemoteLogDirPrefix                 string `yaml:"remote_log_dir_prefix"`
	MapreduceDoneDirPrefix             string `yaml:"mapreduce_done_dir_prefix"`
	MapreduceIntermediateDoneDirPrefix string `yaml:"mapreduce_intermediate_done_dir_prefix"`
}

// BadgerConfig configures the embedded badger backend
type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// PostgresConfig configures the postgres backend
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	Table           string        `yaml:"table"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// LoadConfig loads configuration from file or environment variables
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	// Load from file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the config file
		expandedData := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnvVars expands ${VAR} or $VAR patterns in the input string
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)
	return re.ReplaceAllStringFunc(input, func(match string) string {
		var varName string
		if match[1] == '{' {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		// Return original if not found
		return match
	})
}

// defaultConfig returns default configuration
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Yarn:  []YarnClusterConf{},
		Spark: SparkConfig{SparkHistoryServer: []string{}},
		Refresh: RefreshConfig{
			Cron:        "@every 5m",
			RunOnStart:  true,
			Concurrency: 8,
			HTTPTimeout: 10 * time.Second,
			ConfPath:    "/conf",
			Scheme:      "://",
		},
		Cache: CacheConfig{
			Backend: "memory",
			Keys: KeysConfig{
				SparkHistoryServers:                "cluster:spark-history-servers",
				YarnClusters:                       "cluster:yarn-clusters",
				ResourceManagerToJobHistory:        "cluster:rm-jhs-map",
				RemoteLogDirPrefix:                 "cluster:jhs-remote-log-dir:",
				MapreduceDoneDirPrefix:             "cluster:jhs-mapreduce-done-dir:",
				MapreduceIntermediateDoneDirPrefix: "cluster:jhs-mapreduce-intermediate-done-dir:",
			},
			Badger: BadgerConfig{
				Dir: "./data/badger",
			},
			Postgres: PostgresConfig{
				Table:           "cluster_meta",
				MaxConnections:  5,
				MinConnections:  1,
				ConnMaxLifetime: time.Hour,
				ConnMaxIdleTime: 30 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// overrideFromEnv overrides configuration with environment variables
func (c *Config) overrideFromEnv() {
	// Server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// Logging configuration
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	// Refresh configuration
	if spec := os.Getenv("REFRESH_CRON"); spec != "" {
		c.Refresh.Cron = spec
	}
	c.Refresh.Concurrency = getEnvInt("REFRESH_CONCURRENCY", c.Refresh.Concurrency)

	// Cache configuration
	c.Cache.Backend = getEnv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Postgres.DSN = getEnv("POSTGRES_DSN", c.Cache.Postgres.DSN)
}

// Validate validates the configuration and reports every problem found
func (c *Config) Validate() error {
	var result error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		result = multierror.Append(result, fmt.Errorf("invalid log level: %s", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("invalid log format: %s", c.Logging.Format))
	}

	if c.Refresh.Concurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("refresh concurrency must be positive: %d", c.Refresh.Concurrency))
	}
	if c.Refresh.Scheme == "" {
		result = multierror.Append(result, fmt.Errorf("refresh scheme marker is required"))
	}
	if c.Refresh.ConfPath == "" {
		result = multierror.Append(result, fmt.Errorf("refresh conf path is required"))
	}

	for i, cluster := range c.Yarn {
		if len(cluster.ResourceManager) == 0 {
			result = multierror.Append(result, fmt.Errorf("yarn cluster %d: at least one resource manager is required", i))
		}
	}

	switch c.Cache.Backend {
	case "memory":
	case "badger":
		if c.Cache.Badger.Dir == "" && !c.Cache.Badger.InMemory {
			result = multierror.Append(result, fmt.Errorf("badger cache: dir is required unless in_memory is set"))
		}
	case "postgres":
		if c.Cache.Postgres.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("postgres cache: dsn is required"))
		}
		if c.Cache.Postgres.Table == "" {
			result = multierror.Append(result, fmt.Errorf("postgres cache: table is required"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown cache backend: %s", c.Cache.Backend))
	}

	return result
}

// Registry builds the cluster registry described by the configuration
func (c *Config) Registry() *models.Registry {
	clusters := make([]models.ClusterEntry, 0, len(c.Yarn))
	for _, y := range c.Yarn {
		clusters = append(clusters, models.ClusterEntry{
			ResourceManagers: y.ResourceManager,
			JobHistoryServer: y.JobHistoryServer,
		})
	}
	return models.NewRegistry(clusters, c.Spark.SparkHistoryServer)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
