package intake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	other := File{Name: "notes.txt", Category: "misc"}
	app, stmts := Split([]File{janFile, appFile, other, febFile})
	assert.Equal(t, []File{appFile}, app)
	assert.Equal(t, []File{janFile, febFile}, stmts)
}

func TestMergeWarnings(t *testing.T) {
	got := MergeWarnings(
		[]string{"a", " b ", ""},
		nil,
		[]string{"b", "c", "a"},
	)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Nil(t, MergeWarnings())
}

func TestSectionConfidence(t *testing.T) {
	assert.Equal(t, 0.0, SectionConfidence(nil))
	assert.Equal(t, 0.4, SectionConfidence(map[string]float64{"overall": 0.4, "ein": 1}))
	assert.InDelta(t, 0.5, SectionConfidence(map[string]float64{"ein": 0.2, "name": 0.8}), 1e-9)
}

func TestApplicationResult_LenientDecode(t *testing.T) {
	raw := `{
		"deal": {"business_name": "Acme", "avg_monthly_sales": "$12,000", "desired_loan_amount": null, "is_franchise": "yes"},
		"owners": [{"first_name": "Jane", "ownership_pct": "60%"}],
		"confidence": {"overall": 0.8},
		"warnings": []
	}`
	var res ApplicationResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))

	require.NotNil(t, res.Deal.AvgMonthlySales.Value)
	assert.Equal(t, "12000", res.Deal.AvgMonthlySales.Value.String())
	assert.Nil(t, res.Deal.DesiredLoanAmount.Value)
	assert.True(t, bool(res.Deal.IsFranchise))
	assert.True(t, res.Owners[0].HasName())
	require.NotNil(t, res.Owners[0].OwnershipPct.Value)
	assert.Equal(t, "60", res.Owners[0].OwnershipPct.Value.String())
}
