package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/intake"
)

// Local stores documents under a root directory.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at root.
func NewLocal(root string) *Local {
	if root == "" {
		root = "documents"
	}
	return &Local{root: root}
}

// Upload writes every non-empty file into one folder. Refs are paths
// relative to the root.
func (l *Local) Upload(ctx context.Context, req intake.UploadRequest) (*intake.UploadResult, error) {
	folder := folderFor(req)
	if !filepath.IsLocal(filepath.FromSlash(folder)) {
		return nil, eris.Errorf("docstore: invalid folder ref %q", req.FolderRef)
	}
	dir := filepath.Join(l.root, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, eris.Wrapf(err, "docstore: create folder %s", folder)
	}

	entries, warnings := prepare(req.Files)
	res := &intake.UploadResult{FolderRef: folder, Warnings: warnings}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "docstore: upload cancelled")
		}
		// Existing files in a reused folder are never overwritten.
		name, err := freeName(dir, e.name)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(dir, name), e.file.Data, 0o640); err != nil {
			return nil, eris.Wrapf(err, "docstore: write %s", name)
		}
		res.Objects = append(res.Objects, intake.StoredObject{
			Name:     name,
			Ref:      folder + "/" + name,
			Category: e.file.Category,
			Size:     len(e.file.Data),
		})
	}

	zap.L().Debug("docstore: uploaded to local folder",
		zap.String("folder", folder),
		zap.Int("files", len(res.Objects)),
	)
	return res, nil
}

func freeName(dir, name string) (string, error) {
	candidate := name
	ext := filepath.Ext(name)
	for i := 2; ; i++ {
		_, err := os.Stat(filepath.Join(dir, candidate))
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", eris.Wrapf(err, "docstore: stat %s", candidate)
		}
		candidate = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), i, ext)
	}
}
