// Package csvimport creates jobs from a spreadsheet export.
package csvimport

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/bewerbungs-agent/internal/models"
)

// Row is one job line of the import file.
type Row struct {
	Company      string `mapstructure:"company"`
	Role         string `mapstructure:"role"`
	Description  string `mapstructure:"description"`
	Requirements string `mapstructure:"requirements"`
	Location     string `mapstructure:"location"`
	Compensation string `mapstructure:"compensation"`
	URL          string `mapstructure:"url"`
}

// aliases maps accepted header names, English and German, to Row keys.
var aliases = map[string]string{
	"company":        "company",
	"firma":          "company",
	"unternehmen":    "company",
	"arbeitgeber":    "company",
	"employer":       "company",
	"role":           "role",
	"title":          "role",
	"position":       "role",
	"stelle":         "role",
	"jobtitel":       "role",
	"job_title":      "role",
	"description":    "description",
	"beschreibung":   "description",
	"requirements":   "requirements",
	"anforderungen":  "requirements",
	"skills":         "requirements",
	"location":       "location",
	"standort":       "location",
	"ort":            "location",
	"compensation":   "compensation",
	"salary":         "compensation",
	"gehalt":         "compensation",
	"url":            "url",
	"link":           "url",
	"stellenanzeige": "url",
}

// RowError reports a record that could not be imported. Rows are counted
// from 1 with the header as row 1.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Parse reads jobs from r. The first line is the header; comma and
// semicolon separated files are accepted. Invalid rows are skipped and
// reported together in the returned error.
func Parse(r io.Reader) ([]models.Job, error) {
	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var (
		jobs []models.Job
		errs error
		row  = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			errs = multierr.Append(errs, &RowError{Row: row, Err: err})
			continue
		}
		if blank(record) {
			continue
		}

		job, err := decodeRow(columns, record)
		if err != nil {
			errs = multierr.Append(errs, &RowError{Row: row, Err: err})
			continue
		}
		jobs = append(jobs, *job)
	}

	return jobs, errs
}

func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	first := string(peek)
	if idx := strings.IndexByte(first, '\n'); idx >= 0 {
		first = first[:idx]
	}
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

func mapHeader(header []string) (map[int]string, error) {
	columns := make(map[int]string, len(header))
	seen := make(map[string]bool)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		field, ok := aliases[key]
		if !ok {
			continue
		}
		if seen[field] {
			return nil, fmt.Errorf("csv header maps column %q to %s twice", name, field)
		}
		seen[field] = true
		columns[i] = field
	}

	var missing []string
	for _, required := range []string{"company", "role"} {
		if !seen[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header lacks required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func decodeRow(columns map[int]string, record []string) (*models.Job, error) {
	values := make(map[string]string, len(columns))
	for i, field := range columns {
		if i < len(record) {
			values[field] = strings.TrimSpace(record[i])
		}
	}

	var row Row
	if err := mapstructure.Decode(values, &row); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}

	var err error
	if row.Company == "" {
		err = multierr.Append(err, errors.New("company is required"))
	}
	if row.Role == "" {
		err = multierr.Append(err, errors.New("role is required"))
	}
	if err != nil {
		return nil, err
	}

	return &models.Job{
		Source:       models.SourceBulkImport,
		Company:      row.Company,
		Role:         row.Role,
		Description:  row.Description,
		Requirements: row.Requirements,
		Location:     row.Location,
		Compensation: row.Compensation,
		URL:          row.URL,
	}, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type JobStore interface {
	CreateJob(ctx context.Context, j *models.Job) error
}

// Result summarizes an import run.
type Result struct {
	Created []string `json:"created"`
	Failed  int      `json:"failed"`
}

type Importer struct {
	store  JobStore
	logger *zap.Logger
}

func NewImporter(store JobStore, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{store: store, logger: log}
}

// Import parses r and stores every valid job. Row and store errors are
// returned together; valid rows are stored regardless.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	jobs, parseErr := Parse(r)
	var rowErr *RowError
	if parseErr != nil && !errors.As(parseErr, &rowErr) {
		return nil, parseErr
	}

	res := &Result{Failed: len(multierr.Errors(parseErr))}
	errs := parseErr
	for idx := range jobs {
		job := jobs[idx]
		if err := i.store.CreateJob(ctx, &job); err != nil {
			res.Failed++
			errs = multierr.Append(errs, fmt.Errorf("store job %s at %s: %w", job.Role, job.Company, err))
			continue
		}
		res.Created = append(res.Created, job.ID)
		i.logger.Debug("imported job",
			zap.String("job_id", job.ID),
			zap.String("company", job.Company),
			zap.String("role", job.Role),
		)
	}

	i.logger.Info("csv import finished", zap.Int("created", len(res.Created)), zap.Int("failed", res.Failed))
	return res, errs
}
