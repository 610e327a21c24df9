package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// useSQLite points the configuration at a fresh database file.
func useSQLite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BOOKKEEPING_DATABASE_DRIVER", "sqlite")
	t.Setenv("BOOKKEEPING_DATABASE_PATH", filepath.Join(dir, "bookkeeping.db"))
	t.Setenv("BOOKKEEPING_LOG_LEVEL", "error")
	return dir
}

const exportCSV = "supplier,branch,date,invoiceNumber,total,paid\n" +
	"PT Maju Jaya,Kuripan,2024-01-17,INV-1,\"Rp 1.000.000,00\",lunas\n" +
	"CV Sinar Abadi,Gatot,17/01/2024,INV-2,165.522,belum\n" +
	"PT Maju Jaya,Cempaka,2024-01-18,INV-3,5648956278,belum\n" +
	"PT Maju Jaya,Cempaka,2024-01-18,INV-1,10,belum\n"

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(exportCSV), 0o600))
	return path
}

func TestNormalizeCommand(t *testing.T) {
	out, err := execute(t, "normalize", "Rp 56.489.562,78", "165.522")
	require.NoError(t, err)
	assert.Contains(t, out, "56489562.78\tRp 56.489.562,78")
	assert.Contains(t, out, "165522.00\tRp 165.522,00")

	out, err = execute(t, "normalize", "500000", "abc")
	require.Error(t, err)
	assert.Contains(t, out, "500000.00")
	assert.Contains(t, out, `"abc"`+"\terror:")
	assert.Contains(t, err.Error(), "1 of 2")
}

func TestNormalizeCommand_RequiresArgs(t *testing.T) {
	_, err := execute(t, "normalize")
	assert.Error(t, err)
}

func TestImportThenStats(t *testing.T) {
	dir := useSQLite(t)
	csvPath := writeCSV(t, dir)

	out, err := execute(t, "import", csvPath, "--dry-run")
	require.NoError(t, err)
	var dry struct {
		Imported int  `json:"imported"`
		Skipped  int  `json:"skipped"`
		DryRun   bool `json:"dryRun"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &dry))
	assert.True(t, dry.DryRun)

	out, err = execute(t, "import", csvPath)
	require.NoError(t, err)
	var res struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
		Failed   int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)

	out, err = execute(t, "stats", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "invoices:    3")
	assert.Contains(t, out, "paid:        1")
	assert.Contains(t, out, "Rp 5.650.121.800,00")

	out, err = execute(t, "stats", "reconcile")
	require.NoError(t, err)
	var report struct {
		Drift    json.RawMessage `json:"drift"`
		Repaired bool            `json:"repaired"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.Drift)
	assert.False(t, report.Repaired)
}

func TestRepairLargeTotals(t *testing.T) {
	dir := useSQLite(t)
	_, err := execute(t, "import", writeCSV(t, dir))
	require.NoError(t, err)

	out, err := execute(t, "repair", "large-totals", "--dry-run")
	require.NoError(t, err)
	var preview struct {
		DryRun  bool `json:"dryRun"`
		Changes []struct {
			InvoiceNumber string `json:"invoiceNumber"`
			Before        string `json:"before"`
			After         string `json:"after"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &preview))
	assert.True(t, preview.DryRun)
	require.Len(t, preview.Changes, 1)
	assert.Equal(t, "INV-3", preview.Changes[0].InvoiceNumber)
	assert.Equal(t, "5648956278.00", preview.Changes[0].Before)
	assert.Equal(t, "56489562.78", preview.Changes[0].After)

	_, err = execute(t, "repair", "large-totals")
	require.NoError(t, err)

	out, err = execute(t, "stats", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Rp 57.655.084,78")

	out, err = execute(t, "repair", "overflow", "--precision", "10")
	require.NoError(t, err)
	var overflow struct {
		Limit    string            `json:"limit"`
		Invoices []json.RawMessage `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &overflow))
	assert.Equal(t, "99999999.99", overflow.Limit)
	assert.Empty(t, overflow.Invoices)
}

func TestRepairLargeTotals_BadThreshold(t *testing.T) {
	useSQLite(t)
	_, err := execute(t, "repair", "large-totals", "--threshold", "lots")
	assert.Error(t, err)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	useSQLite(t)
	_, err := execute(t, "migrate", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
