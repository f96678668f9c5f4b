package models

import (
	"time"

	"github.com/google/uuid"
)

// Proposal is a community development proposal submitted by a youth member.
type Proposal struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	SubmitterID         uuid.UUID  `db:"submitter_id" json:"submitter_id"`
	CommitteeID         *uuid.UUID `db:"committee_id" json:"committee_id,omitempty"`
	Category            string     `db:"category" json:"category"`
	Title               string     `db:"title" json:"title"`
	Description         string     `db:"description" json:"description"`
	Objectives          *string    `db:"objectives" json:"objectives,omitempty"`
	Beneficiaries       *string    `db:"beneficiaries" json:"beneficiaries,omitempty"`
	Location            *string    `db:"location" json:"location,omitempty"`
	ImplementationStart *Date      `db:"implementation_start" json:"implementation_start,omitempty"`
	ImplementationEnd   *Date      `db:"implementation_end" json:"implementation_end,omitempty"`
	EstimatedBudget     float64    `db:"estimated_budget" json:"estimated_budget"`
	ApprovedBudget      *float64   `db:"approved_budget" json:"approved_budget,omitempty"`
	Status              string     `db:"status" json:"status"`
	SubmittedAt         *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ReviewedBy          *uuid.UUID `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason     *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Remarks             *string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// IsEditable reports whether the submitter may still change the proposal.
func (p *Proposal) IsEditable() bool {
	return p.Status == StatusDraft || p.Status == StatusRejected
}

// ProposalAttachment is a supporting document stored in attachment storage.
type ProposalAttachment struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ProposalID       uuid.UUID `db:"proposal_id" json:"proposal_id"`
	FilePath         string    `db:"file_path" json:"-"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	FileSize         int64     `db:"file_size" json:"file_size"`
	UploadedBy       uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
