package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/docparse"
	"github.com/sells-group/dealdesk/internal/docstore"
	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/intake"
	"github.com/sells-group/dealdesk/internal/lender"
	"github.com/sells-group/dealdesk/internal/match"
	"github.com/sells-group/dealdesk/internal/ocr"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/internal/tracker"
	anthropicpkg "github.com/sells-group/dealdesk/pkg/anthropic"
	"github.com/sells-group/dealdesk/pkg/notion"
)

// openStore validates the config for mode, opens the configured store and
// applies the schema. Callers should defer st.Close().
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dealdesk.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPublisher connects the realtime event channel. Without redis.addr
// events are dropped. The returned close func is never nil.
func initPublisher(ctx context.Context) (events.Publisher, func(), error) {
	if cfg.Redis.Addr == "" {
		zap.L().Debug("redis.addr not set, realtime events disabled")
		return events.Nop{}, func() {}, nil
	}
	rdb, err := events.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	pub := events.NewRedisPublisher(rdb, cfg.Redis.Channel)
	zap.L().Info("realtime events enabled", zap.String("channel", pub.Channel()))
	return pub, func() { _ = rdb.Close() }, nil
}

// initBoard returns the deal board, or nil when Notion is not configured.
func initBoard() *tracker.Board {
	if !cfg.Notion.Enabled() {
		zap.L().Debug("notion not configured, deal board sync disabled")
		return nil
	}
	return tracker.NewBoard(notion.NewClient(cfg.Notion.Token), cfg.Notion.DealDB)
}

func initClaude() anthropicpkg.Client {
	return anthropicpkg.NewRateLimited(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.RateLimit, 1)
}

// initIntake builds the intake service: document store, OCR, parser and
// orchestrator.
func initIntake(ctx context.Context, st store.Store, pub events.Publisher, board *tracker.Board, claude anthropicpkg.Client) (*intake.Service, error) {
	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		return nil, err
	}
	uploader, err := docstore.New(ctx, cfg.Docstore)
	if err != nil {
		return nil, err
	}
	parser := docparse.New(claude, extractor, docparse.Options{
		NameModel:  cfg.Anthropic.HaikuModel,
		ParseModel: cfg.Anthropic.SonnetModel,
		MaxTokens:  cfg.Anthropic.MaxTokens,
	})
	orch := intake.NewOrchestrator(uploader, parser, intake.Options{
		ExtractName:   cfg.Intake.ExtractName,
		DefaultFolder: cfg.Intake.DefaultFolder,
		MinStatements: cfg.Intake.MinStatements,
	})

	var syncer intake.DealSyncer
	if board != nil {
		syncer = board
	}
	return intake.NewService(orch, st, pub, syncer), nil
}

func initMatcher(st store.Store, pub events.Publisher, claude anthropicpkg.Client) *match.Service {
	m := match.NewMatcher(claude, match.Options{
		Model:     cfg.Anthropic.SonnetModel,
		MaxTokens: cfg.Anthropic.MaxTokens,
	})
	return match.NewService(m, st, pub)
}

// readLenders loads a lender file by extension: YAML directory, XLSX or
// CSV spreadsheet. Spreadsheet rows that cannot be read are returned as
// skipped.
func readLenders(ctx context.Context, path string) ([]lender.Lender, []string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ls, err := lender.LoadYAML(path)
		return ls, nil, err
	case ".xlsx":
		res, err := lender.ImportXLSX(path)
		if err != nil {
			return nil, nil, err
		}
		return res.Lenders, res.Skipped, nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck
		res, err := lender.ImportCSV(ctx, f)
		if err != nil {
			return nil, nil, err
		}
		return res.Lenders, res.Skipped, nil
	default:
		return nil, nil, eris.Errorf("unsupported lender file %s (want .yaml, .xlsx or .csv)", path)
	}
}

// syncDirectory upserts the configured lender directory when the file
// exists.
func syncDirectory(ctx context.Context, st store.Store) {
	path := cfg.Lenders.Directory
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		zap.L().Debug("lender directory not found, skipping sync", zap.String("path", path))
		return
	}
	ls, skipped, err := readLenders(ctx, path)
	if err != nil {
		zap.L().Warn("lender directory not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	n, err := st.UpsertLenders(ctx, ls)
	if err != nil {
		zap.L().Warn("lender directory not saved", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Info("lender directory synced",
		zap.String("path", path),
		zap.Int("lenders", n),
		zap.Int("skipped", len(skipped)),
	)
}
