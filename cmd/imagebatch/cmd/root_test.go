package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/imagebatch/internal/config"
)

func TestExecute(t *testing.T) {
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestCLIFlagsDefaults(t *testing.T) {
	assert.Equal(t, "", cfgFile)
	assert.Equal(t, "", logLevel)
	assert.Equal(t, "", logFormat)
	assert.Equal(t, "", storePath)
	assert.Equal(t, 0, progressInterval)
}

func TestGetCLIOverrides(t *testing.T) {
	origLevel, origFormat, origPath, origRoot, origInterval := logLevel, logFormat, storePath, imageRoot, progressInterval
	defer func() {
		logLevel, logFormat, storePath, imageRoot, progressInterval = origLevel, origFormat, origPath, origRoot, origInterval
	}()

	logLevel = "debug"
	logFormat = "json"
	storePath = "/data/images.db"
	imageRoot = "/data/images"
	progressInterval = 250

	assert.Equal(t, config.Overrides{
		LogLevel:           "debug",
		LogFormat:          "json",
		StorePath:          "/data/images.db",
		ImageRoot:          "/data/images",
		ProgressIntervalMs: 250,
	}, GetCLIOverrides())
}

func TestLoadConfig_DefaultsNeedDatabase(t *testing.T) {
	origCfg, origPath := cfgFile, storePath
	defer func() { cfgFile, storePath = origCfg, origPath }()

	cfgFile = ""
	storePath = ""
	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.path")

	storePath = "/tmp/images.db"
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/images.db", cfg.Store.Path)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	origCfg := cfgFile
	defer func() { cfgFile = origCfg }()

	cfgFile = "/nonexistent/imagebatch.yaml"
	_, err := loadConfig()
	assert.ErrorContains(t, err, "failed to load config")
}

func TestVersionCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	versionCmd.SetOut(buf)
	defer versionCmd.SetOut(nil)

	runVersion(versionCmd, nil)
	assert.True(t, strings.HasPrefix(buf.String(), "imagebatch version "+Version))
	assert.Contains(t, buf.String(), "Go version:")
}

func TestRootCommandRegistersOperations(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"dates", "dark", "guid", "episodes", "delete", "validate", "version"} {
		assert.True(t, names[want], want)
	}
}
