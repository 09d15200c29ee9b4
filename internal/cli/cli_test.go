package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-order-bot/internal/config"
	"github.com/tbourn/go-order-bot/internal/repo"
	"github.com/tbourn/go-order-bot/internal/store"
	"github.com/tbourn/go-order-bot/internal/telegram"
)

const spreadsheetID = "lunch"

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "orderbot", cmd.Use)
	assert.Contains(t, cmd.Long, "lunch orders")

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"serve"}, {"broadcast"}, {"migrate"}, {"catalog", "import"}, {"catalog", "show"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	bc, _, err := cmd.Find([]string{"broadcast"})
	require.NoError(t, err)
	force := bc.Flags().Lookup("force")
	require.NotNil(t, force)
	assert.Equal(t, "false", force.DefValue)
}

// sqliteEnv points the store at a fresh SQLite file and returns its path.
func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.db")
	creds, err := json.Marshal(repo.Credentials{Driver: repo.DriverSQLite, DSN: path})
	require.NoError(t, err)
	t.Setenv("SPREADSHEET_ID", spreadsheetID)
	t.Setenv("STORE_CREDS_JSON", string(creds))
	t.Setenv("WEBHOOK_URL", "")
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInvalidConfigIsCommandError(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "")
	t.Setenv("STORE_CREDS_JSON", "")
	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEnvFileIsLoaded(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "bot.env")
	creds := `{"driver":"memory"}`
	require.NoError(t, os.WriteFile(envPath, []byte("SPREADSHEET_ID=from-file\nSTORE_CREDS_JSON='"+creds+"'\n"), 0o600))
	os.Unsetenv("SPREADSHEET_ID")
	os.Unsetenv("STORE_CREDS_JSON")
	t.Cleanup(func() {
		os.Unsetenv("SPREADSHEET_ID")
		os.Unsetenv("STORE_CREDS_JSON")
	})

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--env-file", envPath, "migrate"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "ok  "+store.IdentityTable)
}

func TestMigrate(t *testing.T) {
	sqliteEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok  Orders Menu1")
	assert.Contains(t, out, "ok  "+store.IdentityTable)

	// Idempotent.
	_, err = execute(t, "migrate")
	require.NoError(t, err)
}

const menuYAML = `menus:
  - category: Menu 1
    items:
      - {name: Soup, price: "120.00"}
      - {name: Bread, price: "15,50"}
  - category: Menu 3
    items:
      - {name: Pie, price: "45"}
`

func TestCatalogImportAndShow(t *testing.T) {
	sqliteEnv(t)
	file := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(file, []byte(menuYAML), 0o600))

	out, err := execute(t, "catalog", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 3 items")

	out, err = execute(t, "catalog", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Menu 1\n  Soup - 120.00\n  Bread - 15.50\n")
	assert.Contains(t, out, "Menu 2\nMenu 3\n  Pie - 45.00\n")
}

func TestCatalogImportErrors(t *testing.T) {
	sqliteEnv(t)

	_, err := execute(t, "catalog", "import", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("menus:\n  - category: Menu 9\n"), 0o600))
	_, err = execute(t, "catalog", "import", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, "catalog", "import")
	require.Error(t, err, "file argument is required")
}

type fakeAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) MakeRequest(string, tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func withFakeBot(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	prev := newBotAPI
	newBotAPI = func(config.TelegramConfig) (telegram.API, error) { return api, nil }
	t.Cleanup(func() { newBotAPI = prev })
	return api
}

func seedIdentities(t *testing.T, path string, ids ...int64) {
	t.Helper()
	db, err := repo.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	st := store.New(repo.NewSpreadsheet(db, spreadsheetID))
	for _, id := range ids {
		_, err := st.AppendIfAbsent(context.Background(), id)
		require.NoError(t, err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestBroadcast(t *testing.T) {
	path := sqliteEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BROADCAST_TEXT", "lunch time")
	seedIdentities(t, path, 7, 8)
	api := withFakeBot(t)

	out, err := execute(t, "broadcast", "--force")
	require.NoError(t, err)
	assert.Equal(t, "sent 2, failed 0\n", out)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sent, 2)
	assert.Equal(t, int64(7), api.sent[0].ChatID)
	assert.Equal(t, "lunch time", api.sent[1].Text)
}

func TestBroadcast_EveryDayAllowed(t *testing.T) {
	path := sqliteEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BROADCAST_DAYS", "mon,tue,wed,thu,fri,sat,sun")
	seedIdentities(t, path, 7)
	withFakeBot(t)

	out, err := execute(t, "broadcast")
	require.NoError(t, err)
	assert.Equal(t, "sent 1, failed 0\n", out)
}

func TestBroadcast_RequiresToken(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "")
	withFakeBot(t)

	_, err := execute(t, "broadcast", "--force")
	require.ErrorIs(t, err, config.ErrMissingToken)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(io.EOF))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", io.EOF)))
	assert.Equal(t, "x: EOF", WrapExitError(ExitFailure, "x", io.EOF).Error())
	assert.Equal(t, "y", NewExitError(ExitFailure, "y").Error())
}
