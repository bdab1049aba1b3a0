package intake

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/remote"
)

// DefaultFolderName names the storage folder when no business name could
// be extracted.
const DefaultFolderName = "New Deal"

var (
	// ErrNoFiles is returned when an intake run has nothing to upload.
	ErrNoFiles = eris.New("intake: no files provided")
	// ErrTooFewStatements is returned when a configured statement minimum
	// is not met.
	ErrTooFewStatements = eris.New("intake: not enough bank statements")
)

// Options tunes the orchestrator.
type Options struct {
	// ExtractName enables the business-name pre-extraction call.
	ExtractName bool
	// DefaultFolder replaces DefaultFolderName when set.
	DefaultFolder string
	// MinStatements requires at least this many statement files. Zero
	// disables the check.
	MinStatements int
}

// Orchestrator uploads and parses intake documents. It performs no
// database writes.
type Orchestrator struct {
	uploader Uploader
	parser   Parser
	opts     Options
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(uploader Uploader, parser Parser, opts Options) *Orchestrator {
	if opts.DefaultFolder == "" {
		opts.DefaultFolder = DefaultFolderName
	}
	return &Orchestrator{uploader: uploader, parser: parser, opts: opts}
}

// Extract runs the upload and both parse calls and assembles the in-memory
// deal. Any remote failure aborts the run; the returned error carries the
// remote diagnostics and the failed stage is reported to obs.
func (o *Orchestrator) Extract(ctx context.Context, req Request, obs StageObserver) (*Extraction, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	appFiles, stmtFiles := Split(req.Files)
	if o.opts.MinStatements > 0 && len(stmtFiles) < o.opts.MinStatements {
		return nil, eris.Wrapf(ErrTooFewStatements, "got %d, need %d", len(stmtFiles), o.opts.MinStatements)
	}

	log := zap.L().With(
		zap.Int("application_files", len(appFiles)),
		zap.Int("statement_files", len(stmtFiles)),
	)

	// Upload.
	obs.StageStarted(model.StageUpload)
	folderName := o.folderName(ctx, req, appFiles)
	upload, err := o.uploader.Upload(ctx, UploadRequest{
		FolderRef:   req.FolderRef,
		FolderName:  folderName,
		Files:       req.Files,
		SkipParsing: true,
	})
	if err != nil {
		obs.StageFinished(model.StageUpload, model.StageStatusError, remote.Describe(err))
		return nil, eris.Wrap(err, "intake: upload documents")
	}
	obs.StageFinished(model.StageUpload, model.StageStatusSuccess, folderDetail(upload))
	log.Info("intake: documents uploaded",
		zap.String("folder_ref", upload.FolderRef),
		zap.Int("objects", len(upload.Objects)),
	)

	// Parse application and statements concurrently.
	var (
		app  *ApplicationResult
		stmt *StatementsResult
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := runStage(gCtx, obs, model.StageParseApplication, len(appFiles), func(ctx context.Context) (*ApplicationResult, error) {
			return o.parser.ParseApplication(ctx, appFiles)
		})
		if err != nil {
			return eris.Wrap(err, "intake: parse application")
		}
		app = res
		return nil
	})
	g.Go(func() error {
		res, err := runStage(gCtx, obs, model.StageParseStatements, len(stmtFiles), func(ctx context.Context) (*StatementsResult, error) {
			return o.parser.ParseStatements(ctx, stmtFiles)
		})
		if err != nil {
			return eris.Wrap(err, "intake: parse statements")
		}
		stmt = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if app == nil {
		app = &ApplicationResult{}
	}
	if stmt == nil {
		stmt = &StatementsResult{}
	}

	ext := &Extraction{
		Deal:       app.Deal,
		Owners:     app.Owners,
		Statements: stmt.Statements,
		Positions:  stmt.Positions,
		Confidence: map[string]float64{},
		Warnings:   MergeWarnings(upload.Warnings, app.Warnings, stmt.Warnings),
		FolderRef:  upload.FolderRef,
		Documents:  upload.Objects,
	}
	if len(appFiles) > 0 {
		ext.Confidence["application"] = SectionConfidence(app.Confidence)
	}
	if len(stmtFiles) > 0 {
		ext.Confidence["statements"] = SectionConfidence(stmt.Confidence)
	}
	ext.Usage.Add(app.Usage)
	ext.Usage.Add(stmt.Usage)
	if rec, ok := obs.(usageRecorder); ok {
		rec.SetUsage(model.StageParseApplication, app.Usage)
		rec.SetUsage(model.StageParseStatements, stmt.Usage)
	}

	log.Info("intake: extraction complete",
		zap.Int("owners", len(ext.Owners)),
		zap.Int("statements", len(ext.Statements)),
		zap.Int("position_candidates", len(ext.Positions)),
		zap.Int("warnings", len(ext.Warnings)),
		zap.Int64("input_tokens", ext.Usage.InputTokens),
		zap.Int64("output_tokens", ext.Usage.OutputTokens),
	)
	return ext, nil
}

// folderName extracts the business name from the first application file.
// Failures fall back to the default folder name.
func (o *Orchestrator) folderName(ctx context.Context, req Request, appFiles []File) string {
	if req.FolderRef != "" || !o.opts.ExtractName || len(appFiles) == 0 {
		return o.opts.DefaultFolder
	}
	name, err := o.parser.ExtractBusinessName(ctx, appFiles[0])
	if err != nil {
		zap.L().Warn("intake: business name extraction failed",
			zap.String("file", appFiles[0].Name),
			zap.String("detail", remote.Describe(err)),
		)
		return o.opts.DefaultFolder
	}
	if name == nil || strings.TrimSpace(*name) == "" {
		return o.opts.DefaultFolder
	}
	return strings.TrimSpace(*name)
}

// runStage reports one parse stage. A stage with no input files succeeds
// immediately without calling fn.
func runStage[T any](ctx context.Context, obs StageObserver, name string, files int, fn func(context.Context) (*T, error)) (*T, error) {
	obs.StageStarted(name)
	if files == 0 {
		obs.StageFinished(name, model.StageStatusSuccess, "skipped: no files")
		return nil, nil
	}
	res, err := fn(ctx)
	if err != nil {
		detail := remote.Describe(err)
		if ctx.Err() != nil && eris.Is(err, context.Canceled) {
			detail = "canceled: " + detail
		}
		obs.StageFinished(name, model.StageStatusError, detail)
		return nil, err
	}
	obs.StageFinished(name, model.StageStatusSuccess, "")
	return res, nil
}

func folderDetail(res *UploadResult) string {
	if res.FolderRef == "" {
		return ""
	}
	return "folder " + res.FolderRef
}
