package notion

import (
	"context"
	"iter"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Pages yields every page matching query, following cursors until the
// database reports no more results. Iteration stops after the first error.
// query is copied; its StartCursor is ignored.
func Pages(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) iter.Seq2[notionapi.Page, error] {
	return func(yield func(notionapi.Page, error) bool) {
		var req notionapi.DatabaseQueryRequest
		if query != nil {
			req = *query
		}
		req.StartCursor = ""

		for {
			resp, err := c.QueryDatabase(ctx, dbID, &req)
			if err != nil {
				yield(notionapi.Page{}, err)
				return
			}
			for _, p := range resp.Results {
				if !yield(p, nil) {
					return
				}
			}
			if !resp.HasMore || resp.NextCursor == "" {
				return
			}
			req.StartCursor = resp.NextCursor
		}
	}
}

// QueryAll collects Pages into a slice.
func QueryAll(ctx context.Context, c Client, dbID string, query *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	for p, err := range Pages(ctx, c, dbID, query) {
		if err != nil {
			return nil, eris.Wrapf(err, "notion: query %s", dbID)
		}
		all = append(all, p)
	}
	return all, nil
}

// QueryLinkedPages returns the board cards whose idProperty is set.
func QueryLinkedPages(ctx context.Context, c Client, dbID, idProperty string) ([]notionapi.Page, error) {
	return QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: idProperty,
			RichText: &notionapi.TextFilterCondition{IsNotEmpty: true},
		},
	})
}
