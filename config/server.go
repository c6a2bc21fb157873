package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

// ServerConfig covers the HTTP server and the index worker. Values come
// from the environment; an optional YAML file named by CONFIG_FILE
// overrides them for deployments that ship a config map.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	LogLevel       string `yaml:"logLevel"`
	IndexerBaseURL string `yaml:"indexerBaseUrl"`
	// StateBackend picks where records and idempotency tokens live:
	// "redis" shares state across instances, "memory" is single-process.
	StateBackend string       `yaml:"stateBackend"`
	Worker       WorkerConfig `yaml:"worker"`
}

type WorkerConfig struct {
	Concurrency int            `yaml:"concurrency"`
	Queues      map[string]int `yaml:"queues"`
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadDotenv()

		serverConfig = &ServerConfig{
			Addr:           getenvDefault("SERVER_ADDR", ":8080"),
			LogLevel:       getenvDefault("LOG_LEVEL", "info"),
			IndexerBaseURL: getenvDefault("INDEXER_BASE_URL", "http://localhost:9200"),
			StateBackend:   getenvDefault("STATE_BACKEND", "redis"),
			Worker: WorkerConfig{
				Concurrency: getenvInt("WORKER_CONCURRENCY", 10),
				Queues: map[string]int{
					"critical": 6,
					"default":  3,
					"low":      1,
				},
			},
		}

		if path := os.Getenv("CONFIG_FILE"); path != "" {
			if err := applyConfigFile(path, serverConfig); err != nil {
				panic(fmt.Sprintf("failed to load config file %s: %v", path, err))
			}
		}
	})
	return serverConfig
}

func applyConfigFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
