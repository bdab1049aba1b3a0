package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/analytics"
	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/internal/tracker"
)

func (s *Server) listDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DealFilter{
		Status:   model.DealStatus(q.Get("status")),
		LoanType: model.LoanType(q.Get("loan_type")),
		Query:    strings.TrimSpace(q.Get("q")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		badRequest(w, "unknown status "+strconv.Quote(string(filter.Status)))
		return
	}
	if filter.LoanType != "" && !filter.LoanType.Valid() {
		badRequest(w, "unknown loan_type "+strconv.Quote(string(filter.LoanType)))
		return
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		badRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		badRequest(w, "offset must be a non-negative integer")
		return
	}

	deals, err := s.deps.Store.ListDeals(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if deals == nil {
		deals = []model.Deal{}
	}
	writeJSON(w, http.StatusOK, deals)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// getDeal writes pending edits first so the response reflects them.
func (s *Server) getDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.edits.Flush(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	agg, err := s.deps.Store.GetDealAggregate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// editDeal queues a field edit. Rapid edits of the same deal are merged
// and written once the deal has been quiet for the debounce period.
func (s *Server) editDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var fields model.DealFields
	if err := decodeJSON(r, &fields); err != nil {
		badRequest(w, err.Error())
		return
	}
	if fields.IsEmpty() {
		badRequest(w, "no fields to update")
		return
	}
	if fields.LoanType != nil && *fields.LoanType != "" && !fields.LoanType.Valid() {
		badRequest(w, "unknown loan_type "+strconv.Quote(string(*fields.LoanType)))
		return
	}
	if _, err := s.deps.Store.GetDeal(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.edits.Trigger(id, fields); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "deal_id": id})
}

// flushEdit persists merged edits for one deal.
func (s *Server) flushEdit(ctx context.Context, id string, fields model.DealFields) error {
	d, err := s.deps.Store.UpdateDealFields(ctx, id, fields)
	if err != nil {
		return eris.Wrapf(err, "api: save edits for deal %s", id)
	}
	events.PublishLogged(ctx, s.deps.Publisher, events.New(events.DealUpdated, id, d))
	tracker.Notify(ctx, s.deps.Board, s.deps.Store, d)
	return nil
}

func (s *Server) setDealStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Status model.DealStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	if !body.Status.Valid() {
		badRequest(w, "unknown status "+strconv.Quote(string(body.Status)))
		return
	}
	if err := s.edits.Flush(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := s.deps.Store.UpdateDealStatus(ctx, id, body.Status); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.deps.Store.GetDeal(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events.PublishLogged(ctx, s.deps.Publisher, events.New(events.DealStatusChanged, id, map[string]any{"status": d.Status}))
	tracker.Notify(ctx, s.deps.Board, s.deps.Store, d)
	writeJSON(w, http.StatusOK, d)
}

// deleteDeal removes a deal and its child rows. Pending edits are written
// first so a failed delete loses nothing.
func (s *Server) deleteDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.edits.Flush(r.Context(), id); err != nil && !eris.Is(err, store.ErrNotFound) {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Store.DeleteDeal(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upsertOwner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 {
		badRequest(w, "owner number must be a positive integer")
		return
	}
	var owner model.Owner
	if err := decodeJSON(r, &owner); err != nil {
		badRequest(w, err.Error())
		return
	}
	if _, err := s.deps.Store.GetDeal(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	owner.DealID = id
	owner.OwnerNumber = n
	owner.SSN = nil
	if owner.ID == "" {
		owner.ID = uuid.NewString()
	}
	if err := s.deps.Store.UpsertOwner(r.Context(), &owner); err != nil {
		writeError(w, r, err)
		return
	}
	events.PublishLogged(r.Context(), s.deps.Publisher, events.New(events.DealUpdated, id, map[string]any{"owner": owner}))
	writeJSON(w, http.StatusOK, owner)
}

func (s *Server) listLenders(w http.ResponseWriter, r *http.Request) {
	ls, err := s.deps.Store.ListLenders(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ls == nil {
		ls = []lender.Lender{}
	}
	writeJSON(w, http.StatusOK, lender.List(ls))
}

// analyticsPage is the page size used to read every deal.
const analyticsPage = 500

func (s *Server) fundingAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var deals []model.Deal
	for offset := 0; ; offset += analyticsPage {
		page, err := s.deps.Store.ListDeals(ctx, store.DealFilter{Limit: analyticsPage, Offset: offset})
		if err != nil {
			writeError(w, r, err)
			return
		}
		deals = append(deals, page...)
		if len(page) < analyticsPage {
			break
		}
	}
	positions, err := s.deps.Store.ListPositions(ctx, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics.Funding{
		Summary: analytics.Summarize(deals),
		Lenders: analytics.PositionLoad(positions),
	})
}
