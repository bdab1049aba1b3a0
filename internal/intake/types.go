// Package intake drives the deal intake workflow: upload the documents,
// parse the application and the bank statements, reconcile the detected
// funding positions and persist the resulting deal.
package intake

import (
	"context"
	"strings"

	"github.com/sells-group/dealdesk/internal/coerce"
	"github.com/sells-group/dealdesk/internal/model"
)

// Category separates application forms from bank statements.
type Category string

const (
	CategoryApplication Category = "application"
	CategoryStatements  Category = "statements"
)

// File is one uploaded document.
type File struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mime_type"`
	Category Category `json:"category"`
	Data     []byte   `json:"-"`
}

// UploadRequest is a single batch upload of every intake file.
type UploadRequest struct {
	// FolderRef reuses an existing storage folder when set.
	FolderRef string
	// FolderName seeds the name of a new folder.
	FolderName string
	Files      []File
	// SkipParsing asks the storage service not to run its own document
	// analysis; parsing is done by the Parser.
	SkipParsing bool
}

// StoredObject references one uploaded file.
type StoredObject struct {
	Name     string   `json:"name"`
	Ref      string   `json:"ref"`
	Category Category `json:"category"`
	Size     int      `json:"size"`
}

// UploadResult is returned by Uploader.Upload.
type UploadResult struct {
	FolderRef string         `json:"folder_ref"`
	Objects   []StoredObject `json:"objects"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// Uploader stores intake documents.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// DealCandidate holds the business fields read from an application.
type DealCandidate struct {
	BusinessName        string        `json:"business_name"`
	DBA                 string        `json:"dba"`
	EIN                 string        `json:"ein"`
	Street              string        `json:"street"`
	City                string        `json:"city"`
	State               string        `json:"state"`
	Zip                 string        `json:"zip"`
	BusinessType        string        `json:"business_type"`
	BusinessStartDate   string        `json:"business_start_date"`
	IsFranchise         coerce.Flag   `json:"is_franchise"`
	IsSeasonal          coerce.Flag   `json:"is_seasonal"`
	AvgMonthlySales     coerce.Number `json:"avg_monthly_sales"`
	AvgMonthlyCardSales coerce.Number `json:"avg_monthly_card_sales"`
	DesiredLoanAmount   coerce.Number `json:"desired_loan_amount"`
	LoanType            string        `json:"loan_type"`
}

// OwnerCandidate holds one principal read from an application. SSN is
// accepted here and dropped by MapRecords.
type OwnerCandidate struct {
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Title         string        `json:"title"`
	Street        string        `json:"street"`
	City          string        `json:"city"`
	State         string        `json:"state"`
	Zip           string        `json:"zip"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	OwnershipPct  coerce.Number `json:"ownership_pct"`
	LicenseNumber string        `json:"license_number"`
	DateOfBirth   string        `json:"date_of_birth"`
	SSN           string        `json:"ssn"`
}

// HasName reports whether the owner has a first or last name.
func (o OwnerCandidate) HasName() bool {
	return strings.TrimSpace(o.FirstName) != "" || strings.TrimSpace(o.LastName) != ""
}

// StatementCandidate holds one monthly statement summary.
type StatementCandidate struct {
	BankName        string        `json:"bank_name"`
	StatementMonth  string        `json:"statement_month"`
	TotalCredits    coerce.Number `json:"total_credits"`
	TotalDebits     coerce.Number `json:"total_debits"`
	NSFCount        coerce.Number `json:"nsf_count"`
	NegativeDays    coerce.Number `json:"negative_days"`
	AvgDailyBalance coerce.Number `json:"avg_daily_balance"`
	DepositCount    coerce.Number `json:"deposit_count"`
}

// ApplicationResult is the output of Parser.ParseApplication.
type ApplicationResult struct {
	Deal       DealCandidate      `json:"deal"`
	Owners     []OwnerCandidate   `json:"owners"`
	Confidence map[string]float64 `json:"confidence"`
	Warnings   []string           `json:"warnings"`
	Usage      model.TokenUsage   `json:"-"`
}

// StatementsResult is the output of Parser.ParseStatements.
type StatementsResult struct {
	Statements []StatementCandidate      `json:"statements"`
	Positions  []model.PositionCandidate `json:"positions"`
	Confidence map[string]float64        `json:"confidence"`
	Warnings   []string                  `json:"warnings"`
	Usage      model.TokenUsage          `json:"-"`
}

// Parser is the document analysis boundary. Implementations are opaque to
// the workflow.
type Parser interface {
	// ExtractBusinessName returns a best-guess business name, or nil.
	ExtractBusinessName(ctx context.Context, f File) (*string, error)
	ParseApplication(ctx context.Context, files []File) (*ApplicationResult, error)
	ParseStatements(ctx context.Context, files []File) (*StatementsResult, error)
}

// Extraction is the in-memory deal assembled before any database write.
type Extraction struct {
	Deal       DealCandidate             `json:"deal"`
	Owners     []OwnerCandidate          `json:"owners"`
	Statements []StatementCandidate      `json:"statements"`
	Positions  []model.PositionCandidate `json:"positions"`
	Confidence map[string]float64        `json:"confidence"`
	Warnings   []string                  `json:"warnings"`
	FolderRef  string                    `json:"folder_ref"`
	Documents  []StoredObject            `json:"documents"`
	Usage      model.TokenUsage          `json:"token_usage"`
}

// Request is the input of one intake run.
type Request struct {
	Files     []File
	FolderRef string
}

// Split partitions files by category, preserving order.
func Split(files []File) (application, statements []File) {
	for _, f := range files {
		switch f.Category {
		case CategoryApplication:
			application = append(application, f)
		case CategoryStatements:
			statements = append(statements, f)
		}
	}
	return application, statements
}

// MergeWarnings concatenates warning lists, dropping blanks and exact
// duplicates while keeping first-seen order.
func MergeWarnings(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, w := range l {
			w = strings.TrimSpace(w)
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// SectionConfidence reduces a per-field confidence map to one score: the
// "overall" entry when present, otherwise the mean. Empty maps score 0.
func SectionConfidence(m map[string]float64) float64 {
	if v, ok := m["overall"]; ok {
		return v
	}
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}
