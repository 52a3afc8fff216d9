// internal/workers/data-access/fetch-agent-pool/config.go
package fetchagentpool

import "time"

type Config struct {
	Timeout  time.Duration
	PoolSize int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  15 * time.Second,
		PoolSize: 50,
	}
}
