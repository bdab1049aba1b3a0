package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDealStatus_Rank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, DealStatusNew.Rank())
	assert.Equal(t, 5, DealStatusFunded.Rank())
	assert.Equal(t, 6, DealStatusDeclined.Rank())
	assert.Equal(t, -1, DealStatus("archived").Rank())
	assert.True(t, DealStatusUnderwriting.Valid())
	assert.False(t, DealStatus("").Valid())
}

func TestLoanType_Valid(t *testing.T) {
	t.Parallel()

	for _, lt := range LoanTypes {
		assert.True(t, lt.Valid(), string(lt))
	}
	assert.False(t, LoanType("payday").Valid())
}

func TestDealFields_MergeAndApply(t *testing.T) {
	t.Parallel()

	name1, name2 := "Old Name", "New Name"
	city := "Austin"
	amt := decimal.NewFromInt(50000)
	franchise := true
	lt := LoanTypeSBA

	merged := DealFields{BusinessName: &name1, City: &city}.
		Merge(DealFields{BusinessName: &name2, DesiredLoanAmount: &amt}).
		Merge(DealFields{IsFranchise: &franchise, LoanType: &lt})

	d := Deal{BusinessName: "Original", Address: Address{City: "Dallas", State: "TX"}}
	merged.Apply(&d)

	assert.Equal(t, "New Name", d.BusinessName)
	assert.Equal(t, "Austin", d.Address.City)
	assert.Equal(t, "TX", d.Address.State)
	assert.True(t, d.IsFranchise)
	assert.Equal(t, LoanTypeSBA, d.LoanType)
	assert.True(t, d.DesiredLoanAmount.Equal(amt))
}

func TestDealFields_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, DealFields{}.IsEmpty())
	s := "x"
	assert.False(t, DealFields{EIN: &s}.IsEmpty())
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FrequencyWeekly, ParseFrequency("bi-weekly"))
	assert.Equal(t, FrequencyDaily, ParseFrequency("Daily"))
	assert.Equal(t, FrequencyMonthly, ParseFrequency("monthly"))
	assert.Equal(t, Frequency(""), ParseFrequency("quarterly"))
}

func TestOwner_FullName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ada Lovelace", Owner{FirstName: "Ada", LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada", Owner{FirstName: "Ada"}.FullName())
	assert.Equal(t, "Lovelace", Owner{LastName: "Lovelace"}.FullName())
}

func TestSubmissionStatus_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, SubmissionNotSubmitted.Valid())
	assert.True(t, SubmissionFunded.Valid())
	assert.False(t, SubmissionStatus("maybe").Valid())
}
