package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

const twoAccounts = `
[[tokens]]
name = "main"
api_key = "key-main-abcdef"

[[tokens]]
name = "alt"
api_key = "key-alt-123456"
cookie = "session=xyz"
`

func TestAccountsCommand_ListsWithoutSecrets(t *testing.T) {
	// Given a config file with two accounts
	path := writeConfig(t, twoAccounts)

	// When listing accounts
	out, _, err := execute(t, context.Background(), "accounts", "--config", path)

	// Then both accounts are listed with redacted keys
	require.NoError(t, err)
	assert.Contains(t, out, "2 account(s), API https://rugplay.com/api")
	assert.Contains(t, out, "main (api_key=****cdef, cookie=false)")
	assert.Contains(t, out, "alt (api_key=****3456, cookie=true)")
	assert.NotContains(t, out, "key-main-abcdef")
	assert.NotContains(t, out, "session=xyz")
}

func TestAccountsCommand_FlagOverridesEnvironment(t *testing.T) {
	path := writeConfig(t, twoAccounts)
	t.Setenv("COLLECTOR_BASE_URL", "http://env.example")

	out, _, err := execute(t, context.Background(), "accounts", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "API http://env.example")

	out, _, err = execute(t, context.Background(), "accounts", "--config", path, "--base-url", "http://flag.example")
	require.NoError(t, err)
	assert.Contains(t, out, "API http://flag.example")
}

func TestRootCommand_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		args    []string
		wantErr string
	}{
		{
			name:    "no accounts",
			config:  `log_level = "info"`,
			wantErr: "configuration validation failed",
		},
		{
			name:    "bad log level flag",
			config:  twoAccounts,
			args:    []string{"--log-level", "loud"},
			wantErr: "log_level",
		},
		{
			name:    "bad timeout flag",
			config:  twoAccounts,
			args:    []string{"--http-timeout", "1h"},
			wantErr: "http_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.config)
			args := append([]string{"--config", path}, tt.args...)

			_, _, err := execute(t, context.Background(), args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, context.Background(), "--config", filepath.Join(t.TempDir(), "missing.toml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestRootCommand_RejectsArguments(t *testing.T) {
	_, _, err := execute(t, context.Background(), "extra")
	assert.Error(t, err)
}

func TestHistoryCommand_RequiresJournal(t *testing.T) {
	path := writeConfig(t, twoAccounts)

	_, _, err := execute(t, context.Background(), "history", "--config", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no journal configured")
}

func TestHistoryCommand_EmptyJournal(t *testing.T) {
	path := writeConfig(t, twoAccounts)
	db := filepath.Join(t.TempDir(), "journal.db")

	out, _, err := execute(t, context.Background(), "history", "--config", path, "--journal", db)

	require.NoError(t, err)
	assert.Contains(t, out, "no claim events recorded")
}

// rewardServer always allows claiming and schedules the next window an hour out
func rewardServer(t *testing.T, claims *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rewards/claim" || r.Header.Get("Authorization") != "Bearer key-main-abcdef" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `{"canClaim":true,"timeRemaining":0,"rewardAmount":100,"loginStreak":4}`)
		case http.MethodPost:
			n := claims.Add(1)
			next := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, `{"success":true,"rewardAmount":100,"newBalance":%d,"loginStreak":4,"nextClaimTime":%q}`,
				1000+100*n, next)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRootCommand_ClaimsUntilShutdown(t *testing.T) {
	// Given an API that always allows a claim
	var claims atomic.Int32
	server := rewardServer(t, &claims)
	path := writeConfig(t, fmt.Sprintf(`
base_url = %q

[[tokens]]
name = "main"
api_key = "key-main-abcdef"
`, server.URL+"/api"))
	db := filepath.Join(t.TempDir(), "journal.db")

	// When the collector runs until the context ends
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, logs, err := execute(t, ctx, "--config", path, "--journal", db, "--log-format", "json")

	// Then it claims once, waits for the next window and exits cleanly
	require.NoError(t, err)
	assert.Equal(t, int32(1), claims.Load())
	assert.Contains(t, logs, `"msg":"collector starting"`)
	assert.Contains(t, logs, `"msg":"claimed reward"`)
	assert.Contains(t, logs, `"new_balance":"$1100.00"`)
	assert.Contains(t, logs, `"msg":"shutting down"`)

	// And the claim is in the journal
	out, _, err := execute(t, context.Background(), "history", "--config", path, "--journal", db)
	require.NoError(t, err)
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "claimed $100.00  balance $1100.00  streak 4")

	out, _, err = execute(t, context.Background(), "history", "--config", path, "--journal", db, "--summary")
	require.NoError(t, err)
	assert.Contains(t, out, "claims 1  failures 0  rewards $100.00")
}

func TestRootCommand_AuthFailuresAreJournaled(t *testing.T) {
	var claims atomic.Int32
	server := rewardServer(t, &claims)
	path := writeConfig(t, fmt.Sprintf(`
base_url = %q

[[tokens]]
name = "revoked"
api_key = "wrong-key"
`, server.URL+"/api"))
	db := filepath.Join(t.TempDir(), "journal.db")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, logs, err := execute(t, ctx, "--config", path, "--journal", db, "--log-format", "json")

	require.NoError(t, err)
	assert.Zero(t, claims.Load())
	assert.Contains(t, logs, `"kind":"auth"`)
	assert.Contains(t, logs, `"msg":"backing off"`)

	out, _, err := execute(t, context.Background(), "history", "--config", path, "--journal", db, "-a", "revoked")
	require.NoError(t, err)
	assert.Contains(t, out, "failed  auth during checking_eligibility  retry in 1m")
}
