package models

// Roles.
const (
	RoleYouth = "youth"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Review statuses shared by proposals and pending youth profiles.
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Sources of a pending youth profile.
const (
	SourcePortal = "portal"
	SourceZapier = "zapier"
	SourceImport = "import"
)

// Subject types recorded in the activity log.
const (
	SubjectProposal       = "proposal"
	SubjectPendingProfile = "pending_youth_profile"
	SubjectUser           = "user"
	SubjectCommittee      = "committee"
	SubjectAttachment     = "proposal_attachment"
	SubjectImportBatch    = "import_batch"
)

// Activity log actions.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionImport  = "import"
)

// Notification events.
const (
	EventProposalSubmitted = "proposal.submitted"
	EventProposalApproved  = "proposal.approved"
	EventProposalRejected  = "proposal.rejected"
	EventProgramAnnounced  = "program.announced"
	EventProfileSubmitted  = "youth_profile.submitted"
	EventProfileApproved   = "youth_profile.approved"
	EventProfileRejected   = "youth_profile.rejected"
)

// Youth classifications used by the Katipunan ng Kabataan profiling form.
const (
	ClassificationInSchool     = "in_school"
	ClassificationOutOfSchool  = "out_of_school"
	ClassificationWorking      = "working_youth"
	ClassificationSpecialNeeds = "youth_with_specific_needs"
	ClassificationUnemployed   = "unemployed"
)

// Sex values accepted on profiles.
const (
	SexMale   = "male"
	SexFemale = "female"
)

// ValidRoles lists every account role.
var ValidRoles = map[string]struct{}{
	RoleYouth: {},
	RoleStaff: {},
	RoleAdmin: {},
}

// ValidSources lists every pending profile source.
var ValidSources = map[string]struct{}{
	SourcePortal: {},
	SourceZapier: {},
	SourceImport: {},
}

// ValidClassifications lists every youth classification.
var ValidClassifications = map[string]struct{}{
	ClassificationInSchool:     {},
	ClassificationOutOfSchool:  {},
	ClassificationWorking:      {},
	ClassificationSpecialNeeds: {},
	ClassificationUnemployed:   {},
}

// ValidSexes lists accepted sex values.
var ValidSexes = map[string]struct{}{
	SexMale:   {},
	SexFemale: {},
}
