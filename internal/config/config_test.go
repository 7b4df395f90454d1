package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *APIConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 20
  write_timeout: 20
  idle_timeout: 180
  allowed_origins:
    - "https://app.example.com"
database:
  host: localhost
  port: 5432
  read_host: replica
  user: testuser
  password: testpass
  dbname: testdb
  max_open_conns: 40
  conn_max_lifetime: "1h"
auth:
  jwt_public_key: "test-public-key"
  api_keys:
    - "key1"
    - "key2"
nats:
  url: "nats://localhost:4222"
  stream_name: "TEST_REWARDS"
rewards:
  enforce_total_supply: true
  max_distribution_batch: 200
  transactions_page_size: 100
  claim_retry_max_elapsed: "500ms"
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 20, cfg.Server.ReadTimeout)
				assert.Equal(t, 180, cfg.Server.IdleTimeout)
				assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, "replica", cfg.Database.ReadHost)
				assert.Equal(t, 40, cfg.Database.MaxOpenConns)
				assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
				assert.Equal(t, "test-public-key", cfg.Auth.JWTPublicKey)
				assert.Len(t, cfg.Auth.APIKeys, 2)
				assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
				assert.Equal(t, "TEST_REWARDS", cfg.NATS.StreamName)
				assert.True(t, cfg.Rewards.EnforceTotalSupply)
				assert.Equal(t, 200, cfg.Rewards.MaxDistributionBatch)
				assert.Equal(t, 100, cfg.Rewards.TransactionsPageSize)
				assert.Equal(t, 500*time.Millisecond, cfg.Rewards.ClaimRetryMaxElapsed)
			},
		},
		{
			name:       "missing config file - should work with env vars",
			configFile: "",
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.False(t, cfg.Debug)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Empty(t, cfg.NATS.URL)
				assert.False(t, cfg.Rewards.EnforceTotalSupply)
				assert.Equal(t, 1000, cfg.Rewards.MaxDistributionBatch)
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
  user: testuser
  password: testpass
  dbname: testdb
`,
			validate: func(t *testing.T, cfg *APIConfig) {
				assert.Equal(t, 10, cfg.Server.ReadTimeout)
				assert.Equal(t, 10, cfg.Server.WriteTimeout)
				assert.Equal(t, 120, cfg.Server.IdleTimeout)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, "REWARD_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, 10, cfg.NATS.MaxReconnects)
				assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
				assert.Equal(t, 1000, cfg.Rewards.MaxDistributionBatch)
				assert.Equal(t, 500, cfg.Rewards.TransactionsPageSize)
				assert.Equal(t, 2*time.Second, cfg.Rewards.ClaimRetryMaxElapsed)
			},
		},
		{
			name: "non-positive distribution batch",
			configFile: `
rewards:
  max_distribution_batch: 0
`,
			expectError: true,
		},
		{
			name:        "malformed yaml",
			configFile:  "server: [",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var configFile string
			if tt.configFile != "" {
				tmpDir := t.TempDir()
				configFile = filepath.Join(tmpDir, "config.yaml")
				err := os.WriteFile(configFile, []byte(tt.configFile), 0600)
				require.NoError(t, err)
			}

			cfg, err := LoadAPIConfig(configFile, t.TempDir())

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			tt.validate(t, cfg)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "complete config",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "testpass",
				DBName:   "testdb",
				SSLMode:  "require",
			},
			expected: "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require",
		},
		{
			name: "with special characters in password",
			config: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "testuser",
				Password: "p@ssw0rd!",
				DBName:   "testdb",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=testuser password=p@ssw0rd! dbname=testdb sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestDatabaseConfig_ReadDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "primary",
		Port:     5432,
		ReadHost: "replica",
		User:     "user",
		Password: "pass",
		DBName:   "rewards",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=replica port=5432 user=user password=pass dbname=rewards sslmode=disable", cfg.ReadDSN())

	cfg.ReadPort = 6432
	assert.Equal(t, "host=replica port=6432 user=user password=pass dbname=rewards sslmode=disable", cfg.ReadDSN())
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()

	envDir := filepath.Join(tmpDir, "env")
	require.NoError(t, os.MkdirAll(envDir, 0750))

	// godotenv.Overload sets real process variables; t.Setenv restores them afterwards
	envVars := map[string]string{
		"FF_REWARDS_DEBUG":                          "true",
		"FF_REWARDS_DATABASE_HOST":                  "env-host",
		"FF_REWARDS_DATABASE_PORT":                  "3306",
		"FF_REWARDS_DATABASE_DBNAME":                "env-db",
		"FF_REWARDS_REWARDS_ENFORCE_TOTAL_SUPPLY":   "true",
		"FF_REWARDS_REWARDS_MAX_DISTRIBUTION_BATCH": "25",
	}
	envContent := ""
	for key, value := range envVars {
		t.Setenv(key, "")
		envContent += key + "=" + value + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte(envContent), 0600))

	// Config file values are overridden by the .env file
	configPath := filepath.Join(tmpDir, "config.yaml")
	configFile := `
debug: false
database:
  host: file-host
  port: 5432
  dbname: file-db
rewards:
  max_distribution_batch: 50
`
	require.NoError(t, os.WriteFile(configPath, []byte(configFile), 0600))

	cfg, err := LoadAPIConfig(configPath, envDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "env-db", cfg.Database.DBName)
	assert.True(t, cfg.Rewards.EnforceTotalSupply)
	assert.Equal(t, 25, cfg.Rewards.MaxDistributionBatch)
}
