// internal/workers/routing/route-lead/config.go
package routelead

import "time"

type Config struct {
	// Timeout bounds the whole job, pool seeding included.
	Timeout time.Duration

	// ReserveTimeout bounds the reservation walk down the ranking.
	// When it expires mid-walk the job fails as a whole, it never
	// reports the pool exhausted.
	ReserveTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		ReserveTimeout: 5 * time.Second,
	}
}
