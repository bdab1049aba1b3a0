package intake

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/coerce"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
)

func sequentialIDs(t *testing.T) {
	t.Helper()
	n := 0
	orig := newID
	newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	t.Cleanup(func() { newID = orig })
}

func TestMapRecords_ForeignKeys(t *testing.T) {
	sequentialIDs(t)

	ext := &Extraction{
		Deal: DealCandidate{
			BusinessName:    "Acme Bakery LLC",
			AvgMonthlySales: coerce.Number{Value: coerce.Decimal("$42,500.00")},
			LoanType:        "Merchant Cash Advance",
			IsFranchise:     true,
		},
		Owners: []OwnerCandidate{{FirstName: "Jane", LastName: "Doe", SSN: "123-45-6789", Email: "jane@acme.test"}},
		Statements: []StatementCandidate{
			{BankName: "Chase", StatementMonth: "2025-01", NSFCount: coerce.Number{Value: coerce.Decimal("2")}},
			{BankName: "Chase", StatementMonth: "2025-02"},
		},
		FolderRef: "acme-1",
		Documents: []StoredObject{{Name: "a.pdf", Ref: "local://acme-1/a.pdf"}},
		Warnings:  []string{"EIN unreadable"},
	}
	positions := []model.ReconciledPosition{{
		LenderName:     "Fundbox",
		Amount:         decimal.RequireFromString("500"),
		Frequency:      model.FrequencyWeekly,
		StatementMonth: "2025-02",
		DetectedDates:  []string{"2025-02-03", "2025-02-10"},
	}}

	agg, warnings := MapRecords(ext, positions)
	require.NotNil(t, agg)
	assert.Empty(t, warnings)

	assert.Equal(t, "id-1", agg.Deal.ID)
	assert.Equal(t, model.DealStatusNew, agg.Deal.Status)
	assert.Equal(t, model.LoanTypeMCA, agg.Deal.LoanType)
	assert.True(t, agg.Deal.IsFranchise)
	require.NotNil(t, agg.Deal.AvgMonthlySales)
	assert.Equal(t, "42500", agg.Deal.AvgMonthlySales.String())
	assert.Nil(t, agg.Deal.DesiredLoanAmount)
	assert.Equal(t, []string{"local://acme-1/a.pdf"}, agg.Deal.DocumentRefs)

	require.Len(t, agg.Owners, 1)
	assert.Equal(t, "id-1", agg.Owners[0].DealID)
	assert.Equal(t, 1, agg.Owners[0].OwnerNumber)
	assert.Nil(t, agg.Owners[0].SSN)
	assert.Equal(t, "Unknown", agg.Owners[0].Address.City)
	require.NotNil(t, agg.Owners[0].Email)
	assert.Nil(t, agg.Owners[0].Phone)

	require.Len(t, agg.Statements, 2)
	assert.Equal(t, 2, agg.Statements[0].NSFCount)
	assert.Nil(t, agg.Statements[1].TotalCredits)

	require.Len(t, agg.Positions, 1)
	assert.Equal(t, agg.Statements[1].ID, agg.Positions[0].StatementID)
	assert.Equal(t, "id-1", agg.Positions[0].DealID)
}

func TestMapRecords_OwnersRequireName(t *testing.T) {
	ext := &Extraction{Owners: []OwnerCandidate{
		{Title: "CEO", Email: "nobody@acme.test"},
		{LastName: "Smith"},
		{FirstName: "Ann"},
		{FirstName: "Third", LastName: "Owner"},
	}}

	agg, warnings := MapRecords(ext, nil)
	require.Len(t, agg.Owners, 2)
	assert.Equal(t, "Unknown", agg.Owners[0].FirstName)
	assert.Equal(t, "Smith", agg.Owners[0].LastName)
	assert.Equal(t, 1, agg.Owners[0].OwnerNumber)
	assert.Equal(t, "Ann", agg.Owners[1].FirstName)
	assert.Equal(t, 2, agg.Owners[1].OwnerNumber)

	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "missing name")
	assert.Contains(t, warnings[1], "Third Owner")
}

func TestMapRecords_DuplicateStatementMonthKeepsFirst(t *testing.T) {
	ext := &Extraction{Statements: []StatementCandidate{
		{BankName: "Chase", StatementMonth: "2025-01"},
		{BankName: "Wells", StatementMonth: "2025-01-31"},
	}}

	agg, warnings := MapRecords(ext, nil)
	require.Len(t, agg.Statements, 1)
	assert.Equal(t, "Chase", agg.Statements[0].BankName)
	assert.Len(t, warnings, 1)
}

func TestMapRecords_UndatedStatementsKeepFirst(t *testing.T) {
	ext := &Extraction{
		Deal: DealCandidate{BusinessName: "Acme Bakery"},
		Statements: []StatementCandidate{
			{BankName: "Chase"},
			{BankName: "Chase", StatementMonth: "  "},
			{BankName: "Chase", StatementMonth: "2025-02"},
		},
	}

	agg, warnings := MapRecords(ext, nil)
	require.Len(t, agg.Statements, 2)
	assert.Equal(t, "", agg.Statements[0].StatementMonth)
	assert.Equal(t, "2025-02", agg.Statements[1].StatementMonth)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "without a month ignored")

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.CreateDealAggregate(ctx, agg))
	got, err := st.GetDealAggregate(ctx, agg.Deal.ID)
	require.NoError(t, err)
	assert.Len(t, got.Statements, 2)
}

func TestMapRecords_PositionWithoutStatement(t *testing.T) {
	positions := []model.ReconciledPosition{{LenderName: "OnDeck", Amount: decimal.NewFromInt(250), Frequency: model.FrequencyDaily}}

	agg, warnings := MapRecords(&Extraction{}, positions)
	assert.Empty(t, agg.Positions)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "OnDeck 250")
}

func TestMapRecords_BlankBusinessName(t *testing.T) {
	agg, _ := MapRecords(&Extraction{Deal: DealCandidate{BusinessName: "   "}}, nil)
	assert.Equal(t, "Unknown", agg.Deal.BusinessName)
}

func TestParseLoanType(t *testing.T) {
	tests := []struct {
		in   string
		want model.LoanType
	}{
		{"mca", model.LoanTypeMCA},
		{"Merchant Cash Advance", model.LoanTypeMCA},
		{"Line of Credit", model.LoanTypeBusinessLineOfCredit},
		{"SBA 7a", model.LoanTypeSBA},
		{"term-loan", model.LoanTypeTermLoan},
		{"Equipment", model.LoanTypeEquipmentFinancing},
		{"crypto", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLoanType(tt.in), tt.in)
	}
}

func TestNormalizeMonth(t *testing.T) {
	assert.Equal(t, "2025-03", normalizeMonth("2025-03"))
	assert.Equal(t, "2025-03", normalizeMonth("03/15/2025"))
	assert.Equal(t, "March", normalizeMonth(" March "))
	assert.Equal(t, "", normalizeMonth(""))
}
