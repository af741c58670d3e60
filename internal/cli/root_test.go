package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-terminal/internal/kvstore"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
	"pos-terminal/internal/queue"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pos", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, path := range [][]string{{"serve"}, {"queue", "list"}, {"sync"}, {"events"}, {"kitchen"}} {
		t.Run(fmt.Sprint(path), func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "config.yaml", cfg.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"queue", "list", "--format", "yaml"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad"))))

	err := WrapExitError(ExitFailure, "sync failed", errors.New("timeout"))
	assert.Equal(t, "sync failed: timeout", err.Error())
}

// writeTerminal creates a config pointing at a SQLite queue holding n orders
func writeTerminal(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "pos.db")

	kv, err := kvstore.OpenSQLite(dbPath)
	require.NoError(t, err)
	q, err := queue.Open(context.Background(), kv, logger.Discard(), queue.Options{})
	require.NoError(t, err)

	at := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		_, err := q.Enqueue(models.Order{
			LocalID:   fmt.Sprintf("local-%d", i),
			Number:    models.GenerateOrderNumber(at, i),
			CreatedAt: at,
			Total:     decimal.RequireFromString("1234.5"),
		})
		require.NoError(t, err)
	}
	if n > 0 {
		require.NoError(t, q.MarkFailed("local-1", models.NewValidationError("failed to create order", errors.New("check constraint"))))
	}
	require.NoError(t, q.Close(context.Background()))
	require.NoError(t, kv.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("queue:\n  path: %s\nrabbitmq:\n  enabled: false\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath
}

func TestQueueList_Text(t *testing.T) {
	cfgPath := writeTerminal(t, 2)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"queue", "list", "--config", cfgPath})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "ORD_20260309_001")
	assert.Contains(t, text, "REVIEW")
	assert.Contains(t, text, "PHP 1")
	assert.Contains(t, text, "234.50")
	assert.Contains(t, text, "2 pending")
}

func TestQueueList_JSON(t *testing.T) {
	cfgPath := writeTerminal(t, 1)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"queue", "list", "--config", cfgPath, "--format", "json"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   []queueRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].NeedsReview)
	assert.Equal(t, models.KindValidation, resp.Data[0].ErrorKind)
}

func TestQueueList_MissingStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("queue:\n  path: "+filepath.Join(dir, "missing.db")+"\n"), 0o600))

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"queue", "list", "--config", cfgPath})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSync_EmptyQueue(t *testing.T) {
	cfgPath := writeTerminal(t, 0)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"sync", "--config", cfgPath})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Nothing to sync.")
}

func TestEvents_RequiresRabbitMQ(t *testing.T) {
	cfgPath := writeTerminal(t, 0)

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"events", "--config", cfgPath})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestKitchen_RejectsUnknownStation(t *testing.T) {
	cfgPath := writeTerminal(t, 0)
	body, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfgPath, bytes.Replace(body, []byte("enabled: false"), []byte("enabled: true"), 1), 0o600))

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"kitchen", "--config", cfgPath, "--station", "grill"})
	cmd.SetOut(&bytes.Buffer{})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
