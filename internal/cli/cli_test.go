package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSalons = `
salons:
  - id: s1
    name: Downtown
    timezone: UTC
    closed_weekdays: [0]
    template:
      open_time: "09:00"
      close_time: "12:00"
      interval_minutes: 60
`

func writeTestConfig(t *testing.T) (configPath, salonsPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	salonsPath = filepath.Join(dir, "salons.yaml")

	cfg := "database:\n  path: " + filepath.Join(dir, "salonbook.db") + "\n" +
		"logging:\n  level: error\n" +
		"exports:\n  path: " + filepath.Join(dir, "exports") + "\n" +
		"api:\n  auth:\n    jwt_secret: s3cret\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))
	require.NoError(t, os.WriteFile(salonsPath, []byte(testSalons), 0o600))
	return configPath, salonsPath, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot("1.2.3")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "salonctl 1.2.3\n", out)
}

func TestSeedAndSlots(t *testing.T) {
	configPath, salonsPath, _ := writeTestConfig(t)

	out, err := execute(t, "--config", configPath, "seed", "--file", salonsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 1 salons")

	out, err = execute(t, "--config", configPath, "slots", "--salon", "s1", "--date", "2030-03-04")
	require.NoError(t, err)
	assert.Contains(t, out, "09:00")
	assert.Contains(t, out, "11:00")
	assert.NotContains(t, out, "12:00")
	assert.Equal(t, 3, strings.Count(out, "free"))

	out, err = execute(t, "--config", configPath, "slots", "--salon", "s1", "--date", "2030-03-03")
	require.NoError(t, err)
	assert.Contains(t, out, "closed (weekly day off)")

	_, err = execute(t, "--config", configPath, "slots", "--salon", "s1", "--date", "tomorrow")
	assert.Error(t, err)

	_, err = execute(t, "--config", configPath, "slots", "--salon", "missing", "--date", "2030-03-04")
	assert.Error(t, err)
}

func TestExportAndBackup(t *testing.T) {
	configPath, salonsPath, dir := writeTestConfig(t)
	_, err := execute(t, "--config", configPath, "seed", "--file", salonsPath)
	require.NoError(t, err)

	out, err := execute(t, "--config", configPath, "export", "--salon", "s1", "--from", "2030-03-04", "--to", "2030-03-08")
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(dir, "exports", "s1_2030-03-04_to_2030-03-08.xlsx"), path)
	assert.FileExists(t, path)

	backupDir := filepath.Join(dir, "backups")
	out, err = execute(t, "--config", configPath, "backup", "--dir", backupDir)
	require.NoError(t, err)
	assert.FileExists(t, strings.TrimSpace(out))

	out, err = execute(t, "--config", configPath, "failed-syncs")
	require.NoError(t, err)
	assert.Contains(t, out, "APPOINTMENT")
}

func TestToken(t *testing.T) {
	configPath, _, _ := writeTestConfig(t)

	out, err := execute(t, "--config", configPath, "token", "--id", "m1", "--role", "manager", "--salons", "s1,s2")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", claims["sub"])
	assert.Equal(t, "manager", claims["role"])

	_, err = execute(t, "--config", configPath, "token", "--id", "m1", "--role", "owner")
	assert.Error(t, err)
}

func TestJournalRequiresGoogleConfig(t *testing.T) {
	configPath, _, _ := writeTestConfig(t)

	_, err := execute(t, "--config", configPath, "journal", "check")
	assert.ErrorIs(t, err, errJournalNotConfigured)

	_, err = execute(t, "--config", configPath, "journal", "rebuild", "--salon", "s1", "--from", "2030-03-04", "--to", "2030-03-10")
	assert.ErrorIs(t, err, errJournalNotConfigured)

	_, err = execute(t, "--config", configPath, "journal", "rebuild", "--salon", "s1", "--from", "2030-03-10", "--to", "2030-03-04")
	assert.ErrorContains(t, err, "before --from")
}
