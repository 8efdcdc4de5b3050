package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exhibit.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func tomlConfig(keyPEM string) string {
	return fmt.Sprintf("service_address = \"127.0.0.1\"\nservice_port = \"9000\"\nlog_level = \"debug\"\nnew_presentation_signing_key = '''%s'''\n", keyPEM)
}

func TestLoadConfigFromFile(t *testing.T) {
	keyPEM := testKeyPEM(t)
	path := writeConfigFile(t, tomlConfig(keyPEM))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.ServiceAddress)
	assert.Equal(t, "9000", cfg.ServicePort)
	assert.Equal(t, "debug", cfg.LogLevel)

	key, err := cfg.CreateKey()
	require.NoError(t, err)
	assert.NotNil(t, key)
}

func TestLoadConfigDefaults(t *testing.T) {
	keyPEM := testKeyPEM(t)
	path := writeConfigFile(t,
		fmt.Sprintf("new_presentation_signing_key = '''%s'''\n", keyPEM))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.ServiceAddress)
	assert.Equal(t, "8080", cfg.ServicePort)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFromEnvBlob(t *testing.T) {
	keyPEM := testKeyPEM(t)
	blob := base64.StdEncoding.EncodeToString([]byte(tomlConfig(keyPEM)))
	t.Setenv(EnvConfig, blob)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServicePort)
}

func TestPortEnvOverride(t *testing.T) {
	keyPEM := testKeyPEM(t)
	path := writeConfigFile(t, tomlConfig(keyPEM))
	t.Setenv(EnvPort, "12345")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "12345", cfg.ServicePort)
}

func TestLoadConfigMissingSigningKey(t *testing.T) {
	path := writeConfigFile(t, "service_port = \"9000\"\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "new_presentation_signing_key")
}

func TestLoadConfigUnparseableSigningKey(t *testing.T) {
	path := writeConfigFile(t, "new_presentation_signing_key = \"not a pem\"\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigFromWorkingDirectory(t *testing.T) {
	keyPEM := testKeyPEM(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(tomlConfig(keyPEM)), 0o600))
	t.Chdir(dir)
	t.Setenv(EnvConfig, "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ServicePort)
}

func TestLoadConfigNoSource(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfig, "")
	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultConfigFile)
}

func TestLoadConfigBadEnvBlob(t *testing.T) {
	t.Setenv(EnvConfig, "%%% not base64 %%%")
	_, err := LoadConfig("")
	assert.Error(t, err)
}
