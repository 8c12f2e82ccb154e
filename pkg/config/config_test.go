package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("RRB_ALLOCATOR", string(AllocatorLocalProcess))
	defer os.Unsetenv("RRB_ALLOCATOR")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "/rrm/v1", cfg.URIPrefix)
	assert.Equal(t, AllocatorLocalProcess, cfg.Allocator)
	assert.Equal(t, 100*time.Second, cfg.SweepInterval)
}

func TestLoad_UnknownAllocatorRejected(t *testing.T) {
	os.Setenv("RRB_ALLOCATOR", "bogus")
	defer os.Unsetenv("RRB_ALLOCATOR")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown allocator kind")
}

func TestLoad_SSHRequiresEntryHosts(t *testing.T) {
	os.Setenv("RRB_ALLOCATOR", string(AllocatorSSH))
	defer os.Unsetenv("RRB_ALLOCATOR")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry host")
}

func TestLoad_UnicoreRequiresRegistryURL(t *testing.T) {
	os.Setenv("RRB_ALLOCATOR", string(AllocatorUNICORE))
	defer os.Unsetenv("RRB_ALLOCATOR")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry url")
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	os.Setenv("RRB_ALLOCATOR", string(AllocatorLocalProcess))
	os.Setenv("RRB_LISTEN_ADDR", ":9999")
	defer os.Unsetenv("RRB_ALLOCATOR")
	defer os.Unsetenv("RRB_LISTEN_ADDR")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
}
