package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/youth-governance-backend/internal/logger"
	"github.com/ignatzorin/youth-governance-backend/internal/metrics"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/validation"
)

// MaxImportRows caps a single import request.
const MaxImportRows = 1000

// ImportRepository is the storage ImportService depends on.
type ImportRepository interface {
	ImportPending(ctx context.Context, source string, rows []repository.ImportRow, audit *models.ActivityLog) (int, error)
	ExistingExternalRefs(ctx context.Context, refs []string) (map[string]struct{}, error)
}

// FlatRow is one externally collected registration with flat field names,
// as Zapier and spreadsheet exports send them.
type FlatRow map[string]any

// ImportRowError reports a rejected row by its position in the request.
type ImportRowError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ImportResult summarizes one import request.
type ImportResult struct {
	Accepted   int              `json:"accepted"`
	Duplicates int              `json:"duplicates"`
	Invalid    []ImportRowError `json:"invalid"`
	// BatchID is the activity log subject of the insert, set when rows were stored.
	BatchID *uuid.UUID `json:"batch_id,omitempty"`
}

// ImportService bulk-loads externally collected registrations as pending
// submissions for later review.
type ImportService struct {
	repo    ImportRepository
	cache   Cache
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewImportService(repo ImportRepository, cache Cache, m *metrics.Metrics) *ImportService {
	return &ImportService{repo: repo, cache: cache, metrics: m, now: time.Now}
}

// DecodeRows accepts a single JSON object or an array of objects.
func DecodeRows(body []byte) ([]FlatRow, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, apperror.Validation("request body is empty")
	}

	// Numbers stay json.Number so large record ids keep every digit.
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var rows []FlatRow
	if body[0] == '[' {
		if err := dec.Decode(&rows); err != nil {
			return nil, apperror.Validation("body must be a JSON object or an array of objects")
		}
	} else {
		var row FlatRow
		if err := dec.Decode(&row); err != nil {
			return nil, apperror.Validation("body must be a JSON object or an array of objects")
		}
		rows = []FlatRow{row}
	}
	if dec.More() {
		return nil, apperror.Validation("body must be a single JSON value")
	}

	if len(rows) == 0 {
		return nil, apperror.Validation("no rows to import")
	}
	if len(rows) > MaxImportRows {
		return nil, apperror.Validation("at most %d rows per request", MaxImportRows)
	}
	return rows, nil
}

// Import validates rows and inserts the valid, unseen ones as pending
// submissions of source. Rows sharing an external reference with a stored
// or earlier row count as duplicates.
func (s *ImportService) Import(ctx context.Context, actor Actor, source string, rows []FlatRow) (*ImportResult, error) {
	if source != models.SourceZapier && source != models.SourceImport {
		return nil, apperror.Validation("invalid import source %q", source)
	}
	if len(rows) > MaxImportRows {
		return nil, apperror.Validation("at most %d rows per request", MaxImportRows)
	}

	result := &ImportResult{Invalid: []ImportRowError{}}
	now := s.now()

	type candidate struct {
		ref *string
		raw json.RawMessage
	}
	candidates := make([]candidate, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		payload, ref, err := row.toPayload()
		if err == nil && ref == nil && source == models.SourceZapier {
			err = fmt.Errorf("id is required")
		}
		if err == nil {
			validation.NormalizeProfilePayload(payload)
			err = validation.ValidateProfilePayload(payload, now)
		}
		if err != nil {
			result.Invalid = append(result.Invalid, ImportRowError{Index: i, Error: err.Error()})
			continue
		}

		if ref != nil {
			if _, dup := seen[*ref]; dup {
				result.Duplicates++
				continue
			}
			seen[*ref] = struct{}{}
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			result.Invalid = append(result.Invalid, ImportRowError{Index: i, Error: "could not encode row"})
			continue
		}
		candidates = append(candidates, candidate{ref: ref, raw: raw})
	}

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	existing, err := s.repo.ExistingExternalRefs(ctx, refs)
	if err != nil {
		return nil, mapRepoError(err)
	}

	toInsert := make([]repository.ImportRow, 0, len(candidates))
	for _, c := range candidates {
		if c.ref != nil {
			if _, found := existing[*c.ref]; found {
				result.Duplicates++
				continue
			}
		}
		toInsert = append(toInsert, repository.ImportRow{ExternalRef: c.ref, Payload: c.raw})
	}

	if len(toInsert) > 0 {
		batchID := uuid.New()
		inserted, err := s.repo.ImportPending(ctx, source, toInsert,
			actor.audit(models.ActionImport, models.SubjectImportBatch, batchID))
		if err != nil {
			return nil, mapRepoError(err)
		}
		result.Accepted = inserted
		if inserted > 0 {
			result.BatchID = &batchID
		}
		// Rows stored concurrently since the lookup were skipped by the insert.
		result.Duplicates += len(toInsert) - inserted
	}

	s.metrics.AddImportedRows(source, "accepted", result.Accepted)
	s.metrics.AddImportedRows(source, "duplicate", result.Duplicates)
	s.metrics.AddImportedRows(source, "invalid", len(result.Invalid))
	if result.Accepted > 0 {
		invalidateDashboards(ctx, s.cache)
	}

	logger.WithFields(logrus.Fields{
		"source":     source,
		"received":   len(rows),
		"accepted":   result.Accepted,
		"duplicates": result.Duplicates,
		"invalid":    len(result.Invalid),
	}).Info("youth profiles imported")
	return result, nil
}

// toPayload maps the flat field names onto the three form sections.
func (r FlatRow) toPayload() (*models.YouthProfilePayload, *string, error) {
	p := &models.YouthProfilePayload{}

	p.Personal.FirstName = r.str("first_name")
	p.Personal.MiddleName = r.optStr("middle_name")
	p.Personal.LastName = r.str("last_name")
	p.Personal.Suffix = r.optStr("suffix")
	p.Personal.Sex = r.str("sex")
	p.Personal.CivilStatus = r.optStr("civil_status")
	p.Personal.Barangay = r.optStr("barangay")
	p.Personal.Address = r.optStr("address")
	p.Personal.Email = r.optStr("email")
	p.Personal.ContactNumber = r.optStr("contact_number")

	if b := r.str("birthdate"); b != "" {
		d, err := models.ParseDate(b)
		if err != nil {
			return nil, nil, err
		}
		p.Personal.Birthdate = d
	}

	p.Family.FatherName = r.optStr("father_name")
	p.Family.MotherName = r.optStr("mother_name")
	p.Family.GuardianName = r.optStr("guardian_name")
	p.Family.HouseholdIncome = r.optStr("household_income")
	size, err := r.optInt("household_size")
	if err != nil {
		return nil, nil, err
	}
	p.Family.HouseholdSize = size

	p.Engagement.YouthClassification = r.str("youth_classification")
	p.Engagement.EducationLevel = r.optStr("education_level")
	p.Engagement.WorkStatus = r.optStr("work_status")
	p.Engagement.RegisteredVoter = r.boolean("registered_voter")
	p.Engagement.AttendedAssembly = r.boolean("attended_assembly")
	p.Engagement.Interests = r.list("interests")
	p.Engagement.Organizations = r.list("organizations")

	ref := r.optStr("id")
	if ref == nil {
		ref = r.optStr("external_ref")
	}
	return p, ref, nil
}

func (r FlatRow) str(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func (r FlatRow) optStr(key string) *string {
	s := r.str(key)
	if s == "" {
		return nil
	}
	return &s
}

func (r FlatRow) optInt(key string) (*int, error) {
	s := r.str(key)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s must be a whole number", key)
	}
	return &n, nil
}

func (r FlatRow) boolean(key string) bool {
	switch strings.ToLower(r.str(key)) {
	case "true", "yes", "y", "1", "oo":
		return true
	}
	return false
}

// list accepts a JSON array or a comma separated string.
func (r FlatRow) list(key string) []string {
	var out []string
	switch v := r[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = strings.Split(v, ",")
	}
	return out
}
