package punchcli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{logger: zap.NewNop()}
	root := c.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{{"bogus"}, {"process"}, {"process", "a.xlsx", "b.xlsx"}, {"setup", "extra"}} {
		_, err := run(t, args...)
		assert.ErrorIs(t, err, ErrUsage, "%v", args)
	}
	assert.ErrorIs(t, Execute([]string{"bogus"}), ErrUsage)
}

func TestSetupWritesEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	out, err := run(t, "setup", "--env-file", path, "--auth-username", "payroll", "--auth-password", "a-long-enough-password")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "payroll", values["AUTH_USERNAME"])
	assert.Equal(t, "a-long-enough-password", values["AUTH_PASSWORD"])
	assert.Equal(t, ":8080", values["API_ADDR"])

	_, err = run(t, "setup", "--env-file", path)
	assert.Error(t, err, "existing file needs --force")

	_, err = run(t, "setup", "--env-file", path, "--force")
	require.NoError(t, err)
	values, err = godotenv.Read(path)
	require.NoError(t, err)
	assert.NotContains(t, values, "AUTH_USERNAME")
}

func TestSetupRejectsBadAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	_, err := run(t, "setup", "--env-file", path, "--auth-username", "payroll", "--auth-password", "short")
	assert.Error(t, err)
	_, err = run(t, "setup", "--env-file", path, "--auth-username", "payroll")
	assert.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestProcessWritesAnnotatedWorkbook(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "march.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"出勤日期", "實際上班時間", "實際下班時間", "假勤起始時間", "應出勤時數(時:分)", "早退(分鐘)"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"2024/01/05", "08:55", "17:00", nil, "07:00", 0}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"總計"}))
	require.NoError(t, f.SaveAs(input))
	require.NoError(t, f.Close())

	outDir := filepath.Join(dir, "out")
	out, err := run(t, "process", input, "--out", outDir, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "rows=1 friday=1 changed=1 late=0 early=1 missing=0")

	output := filepath.Join(outDir, "邏輯處理_march.xlsx")
	require.FileExists(t, output)
	result, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer result.Close()
	v, err := result.GetCellValue("考勤處理結果", "F2")
	require.NoError(t, err)
	assert.Equal(t, "60", v)
}

func TestProcessMissingFile(t *testing.T) {
	_, err := run(t, "process", filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "punchaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_ttl: -1s\n"), 0o600))
	_, err := run(t, "serve", "--config", path, "--env-file", filepath.Join(t.TempDir(), "none.env"))
	assert.ErrorContains(t, err, "session ttl")
}
