package global

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tj/assert"
)

const validConf = `
version: 1.0.0
mode: debug
host: localhost
port: 8080
scheme: http
keyserver:
  baseUrl: https://keys.example.com
  dialect: full
  preferBinary: true
  receiptPath: /var/lib/keywatch/receipt
sync:
  minIntervalMinutes: 90
  detector: platform
  autoResume: true
`

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	err := LoadConfig(writeConf(t, validConf))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "https://keys.example.com", Conf.Server.BaseURL)
	assert.Equal(t, "full", Conf.Server.Dialect)
	assert.True(t, Conf.Server.PreferBinary)
	assert.Equal(t, 90*time.Minute, Conf.Sync.MinInterval())
	assert.Equal(t, "platform", Conf.Sync.Detector)
	assert.True(t, Conf.Sync.AutoResume)
}

func TestLoadConfigRejectsUnknownDialect(t *testing.T) {
	conf := `
keyserver:
  baseUrl: https://keys.example.com
  dialect: soap
`
	err := LoadConfig(writeConf(t, conf))
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	err := LoadConfig("/nonexistent/conf.yaml")
	assert.Error(t, err)
}

func TestSyncConfigDefaults(t *testing.T) {
	var s SyncConfig
	assert.Equal(t, time.Hour, s.MinInterval())
	assert.Equal(t, 30*time.Second, s.Timeout())
	assert.Equal(t, 100, s.PageSize())
}
