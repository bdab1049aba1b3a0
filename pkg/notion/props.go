package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// Title builds a title property.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type:  notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

// Text builds a rich_text property.
func Text(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}},
	}
}

// Select builds a select property.
func Select(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: name},
	}
}

// Number builds a number property.
func Number(v float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: v}
}

// PlainText concatenates the plain text of rich text blocks. Blocks built
// locally carry their content in Text rather than PlainText.
func PlainText(rts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range rts {
		switch {
		case rt.PlainText != "":
			sb.WriteString(rt.PlainText)
		case rt.Text != nil:
			sb.WriteString(rt.Text.Content)
		}
	}
	return sb.String()
}

// TextValue reads a title or rich_text property of p.
func TextValue(p notionapi.Page, name string) string {
	switch prop := p.Properties[name].(type) {
	case *notionapi.TitleProperty:
		return PlainText(prop.Title)
	case *notionapi.RichTextProperty:
		return PlainText(prop.RichText)
	case notionapi.TitleProperty:
		return PlainText(prop.Title)
	case notionapi.RichTextProperty:
		return PlainText(prop.RichText)
	}
	return ""
}

// SelectValue reads a select or status property of p.
func SelectValue(p notionapi.Page, name string) string {
	switch prop := p.Properties[name].(type) {
	case *notionapi.SelectProperty:
		return prop.Select.Name
	case *notionapi.StatusProperty:
		return prop.Status.Name
	case notionapi.SelectProperty:
		return prop.Select.Name
	case notionapi.StatusProperty:
		return prop.Status.Name
	}
	return ""
}
