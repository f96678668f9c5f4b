package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PendingYouthProfile is an intake row awaiting review. Its payload holds the
// whole registration form until approval materializes it.
type PendingYouthProfile struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Source          string          `db:"source" json:"source"`
	ExternalRef     *string         `db:"external_ref" json:"external_ref,omitempty"`
	Status          string          `db:"status" json:"status"`
	Payload         json.RawMessage `db:"payload" json:"payload"`
	SubmittedAt     *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedBy      *uuid.UUID      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	YouthProfileID  *uuid.UUID      `db:"youth_profile_id" json:"youth_profile_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// DecodePayload unmarshals the stored registration form.
func (p *PendingYouthProfile) DecodePayload() (*YouthProfilePayload, error) {
	var payload YouthProfilePayload
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode youth profile payload: %w", err)
	}
	return &payload, nil
}

// YouthProfilePayload is the registration form split into its three sections.
type YouthProfilePayload struct {
	Personal   PersonalInformation `json:"personal"`
	Family     FamilyInformation   `json:"family"`
	Engagement EngagementData      `json:"engagement"`
}

// PersonalInformation is the personal section of an approved profile.
type PersonalInformation struct {
	YouthProfileID uuid.UUID `db:"youth_profile_id" json:"-"`
	FirstName      string    `db:"first_name" json:"first_name"`
	MiddleName     *string   `db:"middle_name" json:"middle_name,omitempty"`
	LastName       string    `db:"last_name" json:"last_name"`
	Suffix         *string   `db:"suffix" json:"suffix,omitempty"`
	Sex            string    `db:"sex" json:"sex"`
	Birthdate      Date      `db:"birthdate" json:"birthdate"`
	CivilStatus    *string   `db:"civil_status" json:"civil_status,omitempty"`
	Barangay       *string   `db:"barangay" json:"barangay,omitempty"`
	Address        *string   `db:"address" json:"address,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	ContactNumber  *string   `db:"contact_number" json:"contact_number,omitempty"`
}

// FamilyInformation is the household section of an approved profile.
type FamilyInformation struct {
	YouthProfileID  uuid.UUID `db:"youth_profile_id" json:"-"`
	FatherName      *string   `db:"father_name" json:"father_name,omitempty"`
	MotherName      *string   `db:"mother_name" json:"mother_name,omitempty"`
	GuardianName    *string   `db:"guardian_name" json:"guardian_name,omitempty"`
	HouseholdSize   *int      `db:"household_size" json:"household_size,omitempty"`
	HouseholdIncome *string   `db:"household_income" json:"household_income,omitempty"`
}

// EngagementData is the civic participation section of an approved profile.
// Interests hold committee slugs and drive program announcements.
type EngagementData struct {
	YouthProfileID      uuid.UUID      `db:"youth_profile_id" json:"-"`
	YouthClassification string         `db:"youth_classification" json:"youth_classification"`
	EducationLevel      *string        `db:"education_level" json:"education_level,omitempty"`
	WorkStatus          *string        `db:"work_status" json:"work_status,omitempty"`
	RegisteredVoter     bool           `db:"registered_voter" json:"registered_voter"`
	AttendedAssembly    bool           `db:"attended_assembly" json:"attended_assembly"`
	Interests           pq.StringArray `db:"interests" json:"interests"`
	Organizations       pq.StringArray `db:"organizations" json:"organizations"`
}

// YouthProfileRecord is the canonical approved record with its child rows.
type YouthProfileRecord struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	PendingProfileID uuid.UUID           `db:"pending_profile_id" json:"pending_profile_id"`
	UserID           *uuid.UUID          `db:"user_id" json:"user_id,omitempty"`
	ApprovedBy       uuid.UUID           `db:"approved_by" json:"approved_by"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	Personal         PersonalInformation `db:"-" json:"personal"`
	Family           FamilyInformation   `db:"-" json:"family"`
	Engagement       EngagementData      `db:"-" json:"engagement"`
}

// YouthProfileSummary is a list row of approved records.
type YouthProfileSummary struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	UserID              *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FirstName           string     `db:"first_name" json:"first_name"`
	LastName            string     `db:"last_name" json:"last_name"`
	Sex                 string     `db:"sex" json:"sex"`
	Birthdate           Date       `db:"birthdate" json:"birthdate"`
	Barangay            *string    `db:"barangay" json:"barangay,omitempty"`
	YouthClassification string     `db:"youth_classification" json:"youth_classification"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}
