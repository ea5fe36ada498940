package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/models"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), common.GetVersion()))
	assert.Contains(t, out.String(), "build:")
}

func TestRefreshCommand_MissingConfigIsConfigError(t *testing.T) {
	for _, name := range []string{
		"ALPHA_VANTAGE_API_KEY", "ETFM_ALPHAVANTAGE_API_KEY",
		"ETFM_STORAGE_URL", "SUPABASE_URL",
		"ETFM_STORAGE_PASSWORD", "SUPABASE_SERVICE_ROLE_KEY",
		"ETFM_PROVIDER",
	} {
		t.Setenv(name, "")
	}
	path := filepath.Join(t.TempDir(), "etfmomentum.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9999\n"), 0644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"refresh", "--config", path})
	err := cmd.Execute()

	var cfgErr *common.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Missing, "storage.url")
}

func TestWriteSummary(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeSummary(&out, &models.RefreshSummary{RunID: "r1", NoneDue: true}))
	assert.Contains(t, out.String(), `"run_id": "r1"`)
	assert.Contains(t, out.String(), `"none_due": true`)
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "refresh", "version"})
}
