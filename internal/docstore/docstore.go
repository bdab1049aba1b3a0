// Package docstore persists intake documents. Local writes to a directory
// tree; S3 writes to a bucket. Both implement intake.Uploader.
package docstore

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/dealdesk/internal/config"
	"github.com/sells-group/dealdesk/internal/intake"
)

// New builds the uploader selected by cfg.Driver.
func New(ctx context.Context, cfg config.DocstoreConfig) (intake.Uploader, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		return NewLocal(cfg.Root), nil
	case "s3":
		return NewS3FromConfig(ctx, cfg)
	default:
		return nil, eris.Errorf("docstore: unknown driver %q", cfg.Driver)
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug lowercases s, drops accents and collapses everything that is not a
// letter or digit into single hyphens.
func Slug(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	return s
}

// folderFor returns the folder to write into: the existing ref when given,
// otherwise a fresh slug-plus-suffix name.
func folderFor(req intake.UploadRequest) string {
	if ref := strings.Trim(req.FolderRef, "/"); ref != "" {
		return ref
	}
	slug := Slug(req.FolderName)
	if slug == "" {
		slug = "deal"
	}
	return slug + "-" + uuid.NewString()[:8]
}

// entry is a file ready to be written under a unique name.
type entry struct {
	name string
	file intake.File
}

// prepare drops empty files and makes names unique within one upload.
func prepare(files []intake.File) ([]entry, []string) {
	var (
		out      []entry
		warnings []string
		used     = make(map[string]bool)
	)
	for _, f := range files {
		name := cleanName(f.Name)
		if len(f.Data) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s skipped: empty file", name))
			continue
		}
		unique := name
		for i := 2; used[strings.ToLower(unique)]; i++ {
			ext := path.Ext(name)
			unique = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), i, ext)
		}
		if unique != name {
			warnings = append(warnings, fmt.Sprintf("%s renamed to %s", name, unique))
		}
		used[strings.ToLower(unique)] = true
		out = append(out, entry{name: unique, file: f})
	}
	return out, warnings
}

// cleanName keeps only the base name of an uploaded file.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
