package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/reconcile"
	"github.com/sells-group/dealdesk/internal/remote"
)

// formFields maps multipart field names to document categories.
var formFields = map[string]intake.Category{
	"application": intake.CategoryApplication,
	"statements":  intake.CategoryStatements,
	"statement":   intake.CategoryStatements,
}

// submitIntake accepts a multipart upload and runs the full intake. The
// stage list is returned on success and on failure.
func (s *Server) submitIntake(w http.ResponseWriter, r *http.Request) {
	if s.deps.Intake == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "intake is not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	files, err := readFiles(r.MultipartForm)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if len(files) == 0 {
		badRequest(w, "no files uploaded; use the application and statements fields")
		return
	}

	sub, err := s.deps.Intake.Submit(r.Context(), intake.Request{
		Files:     files,
		FolderRef: strings.TrimSpace(r.FormValue("folder")),
	})
	if err != nil {
		body := map[string]any{
			"error":     remote.Describe(err),
			"stages":    []model.StageResult{},
			"transient": remote.IsTransient(err),
		}
		if sub != nil {
			if sub.Stages != nil {
				body["stages"] = sub.Stages
			}
			if sub.Failed != "" {
				body["failed"] = sub.Failed
			}
		}
		writeJSON(w, http.StatusBadGateway, body)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func readFiles(form *multipart.Form) ([]intake.File, error) {
	var files []intake.File
	for _, field := range []string{"application", "statements", "statement"} {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, eris.Wrapf(err, "open %s", fh.Filename)
			}
			data, err := io.ReadAll(f)
			f.Close() //nolint:errcheck
			if err != nil {
				return nil, eris.Wrapf(err, "read %s", fh.Filename)
			}
			files = append(files, intake.File{
				Name:     fh.Filename,
				MimeType: fh.Header.Get("Content-Type"),
				Category: formFields[field],
				Data:     data,
			})
		}
	}
	return files, nil
}

// reconcileRequest is the body of POST /reconcile.
type reconcileRequest struct {
	Candidates      []model.PositionCandidate `json:"candidates"`
	StatementMonths []string                  `json:"statement_months,omitempty"`
}

// reconcile merges position candidates and, when statement months are
// given, files each position under one of them.
func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	positions := reconcile.Reconcile(req.Candidates)
	if len(req.StatementMonths) > 0 {
		for i := range positions {
			if idx := reconcile.AssignStatement(positions[i], req.StatementMonths); idx >= 0 {
				positions[i].StatementMonth = req.StatementMonths[idx]
			}
		}
	}
	if positions == nil {
		positions = []model.ReconciledPosition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}
