package config

import "time"

type Config struct {
	BatchSize              int
	BatchDelay             time.Duration
	CitationReadMultiplier int
	SocialReadMultiplier   int
	WebsocketPingInterval  time.Duration
}

func NewConfig() *Config {
	return &Config{
		BatchSize:              5,
		BatchDelay:             2 * time.Second,
		CitationReadMultiplier: 15,
		SocialReadMultiplier:   5,
		WebsocketPingInterval:  30 * time.Second,
	}
}
