package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Mode: "debug"},
		AI:     AIConfig{Provider: "openai"},
		Worker: WorkerConfig{Queue: "memory"},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret in release", func(c *Config) { c.Server.Mode = "release"; c.JWT.Secret = "short" }, "JWT secret is too short"},
		{"long secret in release", func(c *Config) { c.Server.Mode = "release"; c.JWT.Secret = strings.Repeat("x", 32) }, ""},
		{"gemini", func(c *Config) { c.AI.Provider = "gemini" }, ""},
		{"unknown provider", func(c *Config) { c.AI.Provider = "llama" }, "unsupported ai provider"},
		{"redis queue without redis", func(c *Config) { c.Worker.Queue = "redis" }, "requires redis.enabled"},
		{"redis queue", func(c *Config) { c.Worker.Queue = "redis"; c.Redis.Enabled = true }, ""},
		{"unknown queue", func(c *Config) { c.Worker.Queue = "kafka" }, "unsupported worker queue"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := c.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestAITimeoutDefault(t *testing.T) {
	if got := (AIConfig{}).Timeout(); got.Minutes() != 2 {
		t.Fatalf("default timeout = %v", got)
	}
	if got := (AIConfig{TimeoutSeconds: 30}).Timeout(); got.Seconds() != 30 {
		t.Fatalf("timeout = %v", got)
	}
}
