package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("", env(map[string]string{
		"GOOGLE_API_KEY":        "key-1",
		"GOOGLE_CLIENT_ID":      "client-1",
		"GOOGLE_CALENDAR_ID":    "team@group.calendar.google.com",
		"STORE_DRIVER":          "sqlite",
		"SYNC_LOOKAHEAD_MONTHS": "3",
		"MAINTENANCE_WORKERS":   "2",
		"USER_ID":               "u1",
	}), Config{})
	require.NoError(t, err)

	assert.Equal(t, "key-1", config.GoogleAPIKey)
	assert.Equal(t, "client-1", config.GoogleClientID)
	assert.Equal(t, "team@group.calendar.google.com", config.CalendarID)
	assert.Equal(t, DriverSQLite, config.StoreDriver)
	assert.Equal(t, DefaultSQLiteStorePath, config.StorePath)
	assert.Equal(t, 3, config.SyncLookaheadMonths)
	assert.Equal(t, 2, config.MaintenanceWorkers)
	assert.Equal(t, "u1", config.UserID)
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("", env(nil), Config{})
	require.NoError(t, err)

	assert.Equal(t, DefaultCalendarID, config.CalendarID)
	assert.Equal(t, DriverMemory, config.StoreDriver)
	assert.Equal(t, DefaultMemoryStorePath, config.StorePath)
	assert.Equal(t, 1, config.SyncLookaheadMonths)
	assert.Equal(t, "none", config.SendUpdates)
	assert.Equal(t, DefaultMaintenanceWorkers, config.MaintenanceWorkers)
	assert.Equal(t, DefaultListenAddr, config.ListenAddr)
	assert.Empty(t, config.TokenPath)
}

func TestLoadConfig_ProcessEnvironment(t *testing.T) {
	t.Setenv("TOKEN_PATH", "/tmp/token.json")
	config, err := LoadConfig("", nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/token.json", config.TokenPath)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"calendar_id": "file-calendar",
		"token_path": "/file/token.json",
		"store_path": "/file/data",
		"user_id": "file-user"
	}`)

	config, err := LoadConfig(path, env(map[string]string{
		"GOOGLE_CALENDAR_ID": "env-calendar",
		"TOKEN_PATH":         "/env/token.json",
	}), Config{CalendarID: "flag-calendar"})
	require.NoError(t, err)

	assert.Equal(t, "flag-calendar", config.CalendarID, "flags beat env")
	assert.Equal(t, "/env/token.json", config.TokenPath, "env beats file")
	assert.Equal(t, "/file/data", config.StorePath, "file beats defaults")
	assert.Equal(t, "file-user", config.UserID)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
store_driver: sqlite
store_path: /var/lib/crm/crm.db
sync_lookahead_months: 2
send_updates: all
`)

	config, err := LoadConfig(path, env(nil), Config{})
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, config.StoreDriver)
	assert.Equal(t, "/var/lib/crm/crm.db", config.StorePath)
	assert.Equal(t, 2, config.SyncLookaheadMonths)
	assert.Equal(t, "all", config.SendUpdates)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"send updates", map[string]string{"SEND_UPDATES": "sometimes"}},
		{"lookahead not a number", map[string]string{"SYNC_LOOKAHEAD_MONTHS": "one"}},
		{"negative lookahead", map[string]string{"SYNC_LOOKAHEAD_MONTHS": "-1"}},
		{"negative workers", map[string]string{"MAINTENANCE_WORKERS": "-4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig("", env(tt.env), Config{})
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"), env(nil), Config{})
	assert.Error(t, err)
}

func TestLoadGoogleCredentials_Installed(t *testing.T) {
	credsPath := writeFile(t, "credentials.json", `{
		"installed": {
			"client_id": "test-client-id",
			"client_secret": "test-client-secret"
		}
	}`)

	clientID, clientSecret, err := LoadGoogleCredentials(credsPath)
	require.NoError(t, err)
	assert.Equal(t, "test-client-id", clientID)
	assert.Equal(t, "test-client-secret", clientSecret)
}

func TestLoadGoogleCredentials_Web(t *testing.T) {
	credsPath := writeFile(t, "credentials.json", `{
		"web": {
			"client_id": "web-client-id",
			"client_secret": "web-client-secret"
		}
	}`)

	clientID, clientSecret, err := LoadGoogleCredentials(credsPath)
	require.NoError(t, err)
	assert.Equal(t, "web-client-id", clientID)
	assert.Equal(t, "web-client-secret", clientSecret)
}

func TestLoadGoogleCredentials_Empty(t *testing.T) {
	credsPath := writeFile(t, "credentials.json", `{}`)
	_, _, err := LoadGoogleCredentials(credsPath)
	assert.Error(t, err)
}

func TestConfig_OAuthClient(t *testing.T) {
	c := &Config{GoogleClientID: "direct", GoogleClientSecret: "s"}
	id, secret, err := c.OAuthClient()
	require.NoError(t, err)
	assert.Equal(t, "direct", id)
	assert.Equal(t, "s", secret)

	c = &Config{GoogleCredentialsPath: writeFile(t, "credentials.json", `{"installed":{"client_id":"file","client_secret":"fs"}}`)}
	id, _, err = c.OAuthClient()
	require.NoError(t, err)
	assert.Equal(t, "file", id)

	_, _, err = (&Config{}).OAuthClient()
	assert.ErrorIs(t, err, ErrNoCredentials)
}
