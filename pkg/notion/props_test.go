package notion

import (
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
)

func TestPropertyBuilders(t *testing.T) {
	title := Title("Acme Bakery")
	assert.Equal(t, notionapi.PropertyTypeTitle, title.Type)
	assert.Equal(t, "Acme Bakery", PlainText(title.Title))

	text := Text("deal-1")
	assert.Equal(t, "deal-1", PlainText(text.RichText))

	assert.Equal(t, "underwriting", Select("underwriting").Select.Name)
	assert.InDelta(t, 75000.0, Number(75000).Number, 1e-9)
}

func TestPageValues(t *testing.T) {
	page := notionapi.Page{
		Properties: notionapi.Properties{
			"Name":    &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: "Acme "}, {PlainText: "Bakery"}}},
			"Deal ID": &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "deal-1"}}},
			"Status":  &notionapi.SelectProperty{Select: notionapi.Option{Name: "funded"}},
			"Stage":   &notionapi.StatusProperty{Status: notionapi.Status{Name: "Done"}},
			"Amount":  &notionapi.NumberProperty{Number: 10},
		},
	}

	assert.Equal(t, "Acme Bakery", TextValue(page, "Name"))
	assert.Equal(t, "deal-1", TextValue(page, "Deal ID"))
	assert.Equal(t, "funded", SelectValue(page, "Status"))
	assert.Equal(t, "Done", SelectValue(page, "Stage"))
	assert.Empty(t, TextValue(page, "Amount"))
	assert.Empty(t, SelectValue(page, "Missing"))
}
