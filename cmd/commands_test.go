package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/config"
	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
)

func TestRunReconcile(t *testing.T) {
	in := strings.NewReader(`[
		{"lender_name": "Fundbox", "amount": "250", "detected_dates": ["2025-03-03", "2025-03-04", "2025-03-05"]},
		{"lender_name": "FUNDBOX", "amount": "250", "detected_dates": ["2025-03-06"]},
		{"lender_name": "Kapitus", "amount": "1200", "detected_dates": ["2025-02-01", "2025-03-01"]}
	]`)
	var out bytes.Buffer
	require.NoError(t, runReconcile(in, &out, []string{"2025-02", "2025-03"}))

	var positions []model.ReconciledPosition
	require.NoError(t, json.Unmarshal(out.Bytes(), &positions))
	require.Len(t, positions, 2)

	assert.Equal(t, model.FrequencyDaily, positions[0].Frequency)
	assert.Len(t, positions[0].DetectedDates, 4)
	assert.Equal(t, "2025-03", positions[0].StatementMonth)

	assert.Equal(t, "Kapitus", positions[1].LenderName)
	assert.Equal(t, model.FrequencyMonthly, positions[1].Frequency)
	assert.Equal(t, "2025-02", positions[1].StatementMonth)
}

func TestRunReconcile_InvalidJSON(t *testing.T) {
	err := runReconcile(strings.NewReader("{"), &bytes.Buffer{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode candidates")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "march.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	files, err := loadFiles([]string{path}, intake.CategoryStatements)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "march.pdf", files[0].Name)
	assert.Equal(t, "application/pdf", files[0].MimeType)
	assert.Equal(t, intake.CategoryStatements, files[0].Category)

	_, err = loadFiles([]string{filepath.Join(dir, "missing.pdf")}, intake.CategoryApplication)
	assert.Error(t, err)
}

func TestReadLenders(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "lenders.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`lenders:
  - lender_type: mca
    name: Acme Capital
    max_advance: 250000
`), 0o600))
	csvPath := filepath.Join(dir, "lenders.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("lender_type,name,max_advance\nmca,Beta Funding,100000\nbogus,Nope,1\n"), 0o600))

	ctx := context.Background()
	ls, skipped, err := readLenders(ctx, yamlPath)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, "Acme Capital", ls[0].Base().Name)
	assert.Empty(t, skipped)

	ls, skipped, err = readLenders(ctx, csvPath)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, lender.TypeMCA, ls[0].Type())
	assert.Len(t, skipped, 1)

	_, _, err = readLenders(ctx, filepath.Join(dir, "lenders.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported lender file")
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "cli.db")
	return c
}

func TestOpenStoreAndSyncDirectory(t *testing.T) {
	cfg = sqliteConfig(t)
	dir := t.TempDir()
	cfg.Lenders.Directory = filepath.Join(dir, "lenders.yaml")
	require.NoError(t, os.WriteFile(cfg.Lenders.Directory, []byte(`lenders:
  - lender_type: sba
    name: Gamma Bank
    max_loan_amount: 500000
`), 0o600))

	ctx := context.Background()
	st, err := openStore(ctx, "lenders")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	syncDirectory(ctx, st)
	ls, err := st.ListLenders(ctx)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	assert.Equal(t, "Gamma Bank", ls[0].Base().Name)

	// Missing file is ignored.
	cfg.Lenders.Directory = filepath.Join(dir, "absent.yaml")
	syncDirectory(ctx, st)
}

func TestOpenStore_InvalidConfig(t *testing.T) {
	cfg = &config.Config{}
	cfg.Store.Driver = "mysql"
	_, err := openStore(context.Background(), "deals")
	require.Error(t, err)
}

func TestInitPublisher_Disabled(t *testing.T) {
	cfg = &config.Config{}
	pub, closeFn, err := initPublisher(context.Background())
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	closeFn()
	assert.NotNil(t, pub)
	assert.Nil(t, initBoard())
}

func TestFormatDealsList(t *testing.T) {
	amt := decimal.RequireFromString("125000")
	deals := []model.Deal{
		{ID: "deal-1", BusinessName: "Acme Bakery", Status: model.DealStatusNew, LoanType: model.LoanTypeMCA, DesiredLoanAmount: &amt, CreatedAt: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
		{ID: "deal-2", BusinessName: "A Very Long Business Name That Keeps Going", Status: model.DealStatusFunded},
	}
	var buf bytes.Buffer
	formatDealsList(&buf, deals)
	out := buf.String()
	assert.Contains(t, out, "BUSINESS")
	assert.Contains(t, out, "$125,000.00")
	assert.Contains(t, out, "2025-03-01 09:30")
	assert.Contains(t, out, "A Very Long Business Name T...")
}

func TestFormatMatches(t *testing.T) {
	var buf bytes.Buffer
	formatMatches(&buf, []model.LenderMatch{{
		ID: "0123456789", LenderName: "Alpha", Score: 88, SubmissionStatus: model.SubmissionNotSubmitted, Reasoning: "strong deposits",
	}})
	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.Contains(t, out, "88")
	assert.Contains(t, out, "not_submitted")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "-", money(nil))
	d := decimal.RequireFromString("1234.5")
	assert.Equal(t, "$1,234.50", money(&d))
}
