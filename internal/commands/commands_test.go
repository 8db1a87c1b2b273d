package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack-dev/fintrack/internal/api"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/importlog"
	"github.com/fintrack-dev/fintrack/internal/ledger"
	"github.com/fintrack-dev/fintrack/internal/model"
)

const statement = "Date,Amount,Description\n" +
	"2025-01-03,-4.00,GITHUB\n" +
	"bad,-1.00,BROKEN\n" +
	"2025-01-15,3500.00,ACME\n"

func runFintrack(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func initWorkspace(t *testing.T) string {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	_, err := runFintrack(t, "init", dir)
	require.NoError(t, err)
	return dir
}

func writeStatement(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(statement), 0o644))
}

func ledgerRows(t *testing.T, dir string) int {
	t.Helper()
	txns, err := ledger.NewStore(filepath.Join(dir, "ledger")).ReadMonth(2025, 1)
	require.NoError(t, err)
	return len(txns)
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runFintrack(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized fintrack workspace")

	for _, d := range []string{"import", filepath.Join("import", "processed"), "ledger", "logs"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	assert.FileExists(t, filepath.Join(dir, "import", ".gitkeep"))

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ".env")
}

func TestInit_RefusesExisting(t *testing.T) {
	dir := initWorkspace(t)
	_, err := runFintrack(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")
}

func TestImport_File(t *testing.T) {
	dir := initWorkspace(t)
	file := filepath.Join(t.TempDir(), "jan.csv")
	writeStatement(t, file)

	out, err := runFintrack(t, "import", file, "--repo", dir, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "jan.csv: 3 rows, 1 failed to parse")
	assert.Contains(t, out, "row 1: unparseable date")
	assert.Contains(t, out, "imported 2, duplicates 0, failed 1")
	assert.Equal(t, 2, ledgerRows(t, dir))

	// Re-importing the same statement only finds duplicates.
	out, err = runFintrack(t, "import", file, "--repo", dir, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 0, duplicates 2, failed 1")
	assert.Equal(t, 2, ledgerRows(t, dir))

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, 2, entries[1].Duplicates)
}

func TestImport_Select(t *testing.T) {
	dir := initWorkspace(t)
	file := filepath.Join(t.TempDir(), "jan.csv")
	writeStatement(t, file)

	out, err := runFintrack(t, "import", file, "--repo", dir, "--user", "alice", "--select", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1, duplicates 0, failed 0")
	assert.Equal(t, 1, ledgerRows(t, dir))
}

func TestImport_SelectNeedsFile(t *testing.T) {
	dir := initWorkspace(t)
	_, err := runFintrack(t, "import", "--repo", dir, "--user", "alice", "--select", "0")
	assert.ErrorContains(t, err, "--select requires a file")
}

func TestImport_DryRun(t *testing.T) {
	dir := initWorkspace(t)
	writeStatement(t, filepath.Join(dir, "import", "jan.csv"))

	out, err := runFintrack(t, "import", "--repo", dir, "--user", "alice", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "dry run: nothing committed")
	assert.Equal(t, 0, ledgerRows(t, dir))
	assert.FileExists(t, filepath.Join(dir, "import", "jan.csv"))

	entries, err := importlog.Read(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImport_Inbox(t *testing.T) {
	dir := initWorkspace(t)
	writeStatement(t, filepath.Join(dir, "import", "jan.csv"))

	out, err := runFintrack(t, "import", "--repo", dir, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2")
	assert.NoFileExists(t, filepath.Join(dir, "import", "jan.csv"))
	assert.FileExists(t, filepath.Join(dir, "import", "processed", "jan.csv"))

	out, err = runFintrack(t, "import", "--repo", dir, "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "No statements")
}

func TestImport_Preset(t *testing.T) {
	dir := initWorkspace(t)
	file := filepath.Join(t.TempDir(), "chase.csv")
	require.NoError(t, os.WriteFile(file, []byte(
		"Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"+
			"DEBIT,01/03/2025,GITHUB,-4.00,ACH_DEBIT,100.00,\n"), 0o644))

	out, err := runFintrack(t, "import", file, "--repo", dir, "--user", "alice", "--preset", "chase")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1")

	_, err = runFintrack(t, "import", file, "--repo", dir, "--user", "alice", "--preset", "nope")
	assert.ErrorContains(t, err, `unknown preset "nope"`)
}

func TestImport_ConfigPreset(t *testing.T) {
	dir := initWorkspace(t)
	cfgPath := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Presets = map[string]model.Mapping{
		"mybank": {Date: "When", Amount: "Value", Description: "What"},
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	file := filepath.Join(t.TempDir(), "mybank.csv")
	require.NoError(t, os.WriteFile(file, []byte("When,Value,What\n2025-01-09,-3,TEA\n"), 0o644))

	out, err := runFintrack(t, "import", file, "--repo", dir, "--user", "alice", "--preset", "MyBank")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1")
}

func TestImport_RequiresUser(t *testing.T) {
	dir := initWorkspace(t)
	_, err := runFintrack(t, "import", "--repo", dir)
	assert.Error(t, err)
}

func TestImport_NoConfigUsesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	file := filepath.Join(dir, "jan.csv")
	writeStatement(t, file)

	_, err := runFintrack(t, "import", file, "--repo", dir, "--user", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, ledgerRows(t, dir))
}

func TestNewApp_ServesAPI(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir := initWorkspace(t)
	cfg, err := loadConfig(filepath.Join(dir, config.FileName))
	require.NoError(t, err)

	a, err := newApp(context.Background(), dir, cfg, zerolog.Nop(), appOptions{ttl: cfg.Staging.TTL, commitLog: true})
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(api.NewServer(a.service, api.Options{Presets: a.presets, Logger: zerolog.Nop()}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: mongo\n"), 0o644))

	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "unknown storage.driver")
}

func TestPresetRegistry_Conflict(t *testing.T) {
	cfg := config.Default()
	cfg.Presets = map[string]model.Mapping{"Chase": {Date: "Date"}}
	_, err := presetRegistry(cfg)
	assert.ErrorContains(t, err, "already defined")
}
