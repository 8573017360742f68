package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobcore "kittycore/internal/blob/core"
	"kittycore/internal/config"
	blobmemory "kittycore/internal/infra/blob/memory"
	"kittycore/internal/infra/persistence/memory"
	"kittycore/pkg/domain"
)

type harness struct {
	store    *memory.Store
	blobs    *blobmemory.Store
	config   string
	storeErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		store:  memory.NewStore(),
		blobs:  blobmemory.New(),
		config: filepath.Join(t.TempDir(), "kittycore.yaml"),
	}
}

func (h *harness) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	a := newApp(&stdout, &stderr)
	a.openStore = func(context.Context, config.Storage) (domain.PersistentStore, error) {
		if h.storeErr != nil {
			return nil, h.storeErr
		}
		return h.store, nil
	}
	a.openArchive = func(context.Context, config.Archive) (blobcore.Store, error) {
		return h.blobs, nil
	}
	root := a.rootCommand()
	root.SetArgs(append([]string{"--config", h.config}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCreateAndShow(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("create", "--caller", "alice", "--seed", "53")
	require.NoError(t, err)

	genome := domain.DeriveKey(domain.Entropy{Seed: []byte("S")}, "alice")
	assert.Equal(t, "id=0 genome="+genome.String()+" owner=alice\n", out)

	out, _, err = h.run("show", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "owner=alice")
}

func TestBreedAndStats(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("create", "--caller", "alice", "--index", "0")
	require.NoError(t, err)
	_, _, err = h.run("create", "--caller", "alice", "--index", "1")
	require.NoError(t, err)

	out, _, err := h.run("breed", "--caller", "bob", "--index", "2", "--sequence", "4", "0", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "id=2 ")
	assert.Contains(t, out, "owner=bob")

	out, _, err = h.run("stats", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "total=3\n")
	assert.Contains(t, out, "owner=alice owned=2\n")
	assert.Contains(t, out, "  id=1 genome=")

	out, _, err = h.run("stats")
	require.NoError(t, err)
	assert.Equal(t, "total=3\n", out)
}

func TestBreedMissingParent(t *testing.T) {
	h := newHarness(t)
	_, stderr, err := h.run("breed", "--caller", "bob", "0", "0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, stderr, "transition rejected")
	assert.Equal(t, uint32(0), h.store.ExportState().TotalCount)
}

func TestArgumentValidation(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("create")
	require.Error(t, err, "caller is required")

	_, _, err = h.run("breed", "--caller", "bob", "x", "0")
	require.ErrorContains(t, err, "invalid creature id")

	_, _, err = h.run("show", "-1")
	require.Error(t, err)

	_, _, err = h.run("create", "--caller", "alice", "--seed", "zz")
	require.ErrorContains(t, err, "invalid seed")
}

func TestArchiveAndRestore(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("create", "--caller", "alice")
	require.NoError(t, err)

	out, _, err := h.run("archive")
	require.NoError(t, err)
	assert.Contains(t, out, "archived snapshots/0000000001.json")
	want := h.store.ExportState()

	_, _, err = h.run("create", "--caller", "bob", "--index", "1")
	require.NoError(t, err)

	out, _, err = h.run("restore")
	require.NoError(t, err)
	assert.Equal(t, "restored snapshots/0000000001.json\n", out)
	assert.Equal(t, want, h.store.ExportState())
}

func TestConfigFileDrivesLogging(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.config, []byte("log:\n  level: debug\n  format: json\nseed: \"0x53\"\n"), 0o600))

	out, stderr, err := h.run("create", "--caller", "alice")
	require.NoError(t, err)
	genome := domain.DeriveKey(domain.Entropy{Seed: []byte("S")}, "alice")
	assert.Contains(t, out, genome.String())
	assert.Contains(t, stderr, `"msg":"transition committed"`)
	assert.Contains(t, stderr, `"msg":"audit"`)
}

func TestStoreOpenFailure(t *testing.T) {
	h := newHarness(t)
	h.storeErr = errors.New("unreachable")
	_, _, err := h.run("stats")
	require.ErrorContains(t, err, "open sqlite store: unreachable")
}

// writeDiskConfig points the default sqlite store and fs archive into dir.
func writeDiskConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "kittycore.yaml")
	body := fmt.Sprintf("storage:\n  sqlite_path: %q\narchive:\n  dir: %q\n%s",
		filepath.Join(dir, "registry.db"), filepath.Join(dir, "archive"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// runProcess executes one command with the production store and archive openers,
// the way separate kittyctl invocations would.
func runProcess(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newApp(&stdout, &stderr).rootCommand()
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func TestArchiveAndRestoreAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	cfg := writeDiskConfig(t, dir, "")

	_, err := runProcess(t, cfg, "create", "--caller", "alice")
	require.NoError(t, err)
	out, err := runProcess(t, cfg, "archive")
	require.NoError(t, err)
	assert.Contains(t, out, "archived snapshots/0000000001.json")

	_, err = runProcess(t, cfg, "create", "--caller", "bob", "--index", "1")
	require.NoError(t, err)
	out, err = runProcess(t, cfg, "stats")
	require.NoError(t, err)
	assert.Equal(t, "total=2\n", out)

	out, err = runProcess(t, cfg, "restore")
	require.NoError(t, err)
	assert.Equal(t, "restored snapshots/0000000001.json\n", out)

	out, err = runProcess(t, cfg, "stats", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "total=1\n")
	assert.Contains(t, out, "owner=alice owned=1\n")
	_, err = runProcess(t, cfg, "show", "1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = os.Stat(filepath.Join(dir, "archive", "snapshots", "0000000001.json"))
	require.NoError(t, err)
}

func TestMetricsFileWrittenOnExit(t *testing.T) {
	dir := t.TempDir()
	metrics := filepath.Join(dir, "kittycore.prom")
	cfg := writeDiskConfig(t, dir, fmt.Sprintf("telemetry:\n  metrics_file: %q\n", metrics))

	_, err := runProcess(t, cfg, "create", "--caller", "alice")
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `kittycore_operations_total{operation="create_creature",status="success"} 1`)
	assert.Contains(t, string(data), "kittycore_creatures_total 1")
}

func TestTracingEndpointIsOptIn(t *testing.T) {
	dir := t.TempDir()
	// unroutable collector, spans are dropped on shutdown without failing the command
	cfg := writeDiskConfig(t, dir, "telemetry:\n  otel_endpoint: \"http://192.0.2.1:4318\"\n")
	out, err := runProcess(t, cfg, "stats")
	require.NoError(t, err)
	assert.Equal(t, "total=0\n", out)
}
