// Package tracker mirrors deals to a Notion board: one card per deal,
// created on intake and updated when the deal changes. Brokers may also move
// cards on the board; Pull copies those status changes back.
package tracker

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/notion"
)

// Board property names.
const (
	PropName     = "Name"
	PropDealID   = "Deal ID"
	PropStatus   = "Status"
	PropAmount   = "Amount"
	PropLoanType = "Loan Type"
)

// Board syncs deals to one Notion database.
type Board struct {
	client notion.Client
	dbID   string
}

// NewBoard creates a Board for the given database.
func NewBoard(client notion.Client, dbID string) *Board {
	return &Board{client: client, dbID: dbID}
}

func properties(d *model.Deal) notionapi.Properties {
	name := d.BusinessName
	if name == "" {
		name = "Unknown"
	}
	props := notionapi.Properties{
		PropName:   notion.Title(name),
		PropDealID: notion.Text(d.ID),
		PropStatus: notion.Select(string(d.Status)),
	}
	if d.DesiredLoanAmount != nil {
		amt, _ := d.DesiredLoanAmount.Float64()
		props[PropAmount] = notion.Number(amt)
	}
	if d.LoanType != "" {
		props[PropLoanType] = notion.Select(string(d.LoanType))
	}
	return props
}

// SyncDeal creates the deal's card when it has no TrackerRef and updates
// it otherwise. It returns the card's page id.
func (b *Board) SyncDeal(ctx context.Context, d *model.Deal) (string, error) {
	if d.TrackerRef != "" {
		if _, err := b.client.UpdatePage(ctx, d.TrackerRef, &notionapi.PageUpdateRequest{
			Properties: properties(d),
		}); err != nil {
			return "", eris.Wrapf(err, "tracker: update card for deal %s", d.ID)
		}
		return d.TrackerRef, nil
	}

	page, err := b.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(b.dbID),
		},
		Properties: properties(d),
	})
	if err != nil {
		return "", eris.Wrapf(err, "tracker: create card for deal %s", d.ID)
	}
	return string(page.ID), nil
}

// StatusStore is the persistence used by Pull.
type StatusStore interface {
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
	UpdateDealStatus(ctx context.Context, id string, status model.DealStatus) error
	SetTrackerRef(ctx context.Context, id, ref string) error
}

// Change is one status copied from the board.
type Change struct {
	DealID string           `json:"deal_id"`
	From   model.DealStatus `json:"from"`
	To     model.DealStatus `json:"to"`
}

// Pull reads every linked card and applies board statuses that differ from
// the stored deal. Cards with an unknown status or a deleted deal are
// skipped and logged.
func (b *Board) Pull(ctx context.Context, st StatusStore) ([]Change, error) {
	pages, err := notion.QueryLinkedPages(ctx, b.client, b.dbID, PropDealID)
	if err != nil {
		return nil, eris.Wrap(err, "tracker: pull")
	}

	var changes []Change
	for _, p := range pages {
		dealID := notion.TextValue(p, PropDealID)
		status := model.DealStatus(notion.SelectValue(p, PropStatus))
		log := zap.L().With(zap.String("deal_id", dealID), zap.String("page_id", string(p.ID)))

		if !status.Valid() {
			log.Warn("tracker: card has unknown status", zap.String("status", string(status)))
			continue
		}
		d, err := st.GetDeal(ctx, dealID)
		if err != nil {
			log.Warn("tracker: card references missing deal", zap.Error(err))
			continue
		}
		if d.TrackerRef == "" {
			if err := st.SetTrackerRef(ctx, d.ID, string(p.ID)); err != nil {
				return changes, eris.Wrapf(err, "tracker: link deal %s", d.ID)
			}
		}
		if d.Status == status {
			continue
		}
		if err := st.UpdateDealStatus(ctx, d.ID, status); err != nil {
			return changes, eris.Wrapf(err, "tracker: apply status for deal %s", d.ID)
		}
		log.Info("tracker: status pulled from board",
			zap.String("from", string(d.Status)),
			zap.String("to", string(status)),
		)
		changes = append(changes, Change{DealID: d.ID, From: d.Status, To: status})
	}
	return changes, nil
}

// Notify syncs d and stores a new card reference. Failures are logged and
// never returned.
func Notify(ctx context.Context, b *Board, st StatusStore, d *model.Deal) {
	if b == nil || d == nil {
		return
	}
	ref, err := b.SyncDeal(ctx, d)
	if err != nil {
		zap.L().Warn("tracker: sync failed", zap.String("deal_id", d.ID), zap.Error(err))
		return
	}
	if ref != d.TrackerRef {
		d.TrackerRef = ref
		if err := st.SetTrackerRef(ctx, d.ID, ref); err != nil {
			zap.L().Warn("tracker: save card ref failed", zap.String("deal_id", d.ID), zap.Error(err))
		}
	}
}
