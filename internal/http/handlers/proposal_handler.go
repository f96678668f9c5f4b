package handlers

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers/common"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// ProposalHandler serves proposals, their review and their attachments.
type ProposalHandler struct {
	proposals      *service.ProposalService
	maxUploadBytes int64
}

func NewProposalHandler(proposals *service.ProposalService, maxUploadMB int64) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, maxUploadBytes: maxUploadMB << 20}
}

type proposalRequest struct {
	CommitteeID         *uuid.UUID   `json:"committee_id"`
	Category            string       `json:"category"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	Objectives          *string      `json:"objectives"`
	Beneficiaries       *string      `json:"beneficiaries"`
	Location            *string      `json:"location"`
	ImplementationStart *models.Date `json:"implementation_start"`
	ImplementationEnd   *models.Date `json:"implementation_end"`
	EstimatedBudget     float64      `json:"estimated_budget"`
}

func (r proposalRequest) input() service.ProposalInput {
	return service.ProposalInput{
		CommitteeID:         r.CommitteeID,
		Category:            r.Category,
		Title:               r.Title,
		Description:         r.Description,
		Objectives:          r.Objectives,
		Beneficiaries:       r.Beneficiaries,
		Location:            r.Location,
		ImplementationStart: r.ImplementationStart,
		ImplementationEnd:   r.ImplementationEnd,
		EstimatedBudget:     r.EstimatedBudget,
	}
}

// CreateProposal handles POST /proposals.
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	var req proposalRequest
	if !common.BindJSON(c, &req) {
		return
	}

	p, err := h.proposals.CreateProposal(c.Request.Context(), actor, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// ListProposals handles GET /proposals.
func (h *ProposalHandler) ListProposals(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	in := service.ProposalListInput{
		Status: c.Query("status"),
		Search: c.Query("q"),
	}
	in.Limit, in.Offset = common.GetPagination(c)

	var err error
	if in.CommitteeID, err = optionalUUIDQuery(c, "committee_id"); err != nil {
		common.RespondBadRequest(c, "committee_id must be a valid UUID")
		return
	}
	if in.SubmitterID, err = optionalUUIDQuery(c, "submitter_id"); err != nil {
		common.RespondBadRequest(c, "submitter_id must be a valid UUID")
		return
	}
	if in.From, err = optionalDateQuery(c, "from"); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if in.To, err = optionalDateQuery(c, "to"); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.proposals.ListProposals(c.Request.Context(), actor, in)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProposal handles GET /proposals/:id.
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.proposals.GetProposal(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// UpdateProposal handles PUT /proposals/:id.
func (h *ProposalHandler) UpdateProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req proposalRequest
	if !common.BindJSON(c, &req) {
		return
	}

	p, err := h.proposals.UpdateProposal(c.Request.Context(), actor, id, req.input())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// DeleteProposal handles DELETE /proposals/:id.
func (h *ProposalHandler) DeleteProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.proposals.DeleteProposal(c.Request.Context(), actor, id); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SubmitProposal handles POST /proposals/:id/submit.
func (h *ProposalHandler) SubmitProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.proposals.SubmitProposal(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// ApproveProposal handles POST /admin/proposals/:id/approve. An empty body
// approves the estimated budget.
func (h *ProposalHandler) ApproveProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		ApprovedBudget *float64 `json:"approved_budget"`
		Remarks        *string  `json:"remarks"`
	}
	if c.Request.ContentLength != 0 && !common.BindJSON(c, &req) {
		return
	}

	p, err := h.proposals.ApproveProposal(c.Request.Context(), actor, id, service.ReviewInput{
		ApprovedBudget: req.ApprovedBudget,
		Remarks:        req.Remarks,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// RejectProposal handles POST /admin/proposals/:id/reject.
func (h *ProposalHandler) RejectProposal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Reason  string  `json:"reason"`
		Remarks *string `json:"remarks"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	p, err := h.proposals.RejectProposal(c.Request.Context(), actor, id, service.ReviewInput{
		Reason:  req.Reason,
		Remarks: req.Remarks,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// UploadAttachment handles POST /proposals/:id/attachments (multipart, field
// "file").
func (h *ProposalHandler) UploadAttachment(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	// Multipart framing gets a little room on top of the file limit.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "field file is required and must not exceed "+strconv.FormatInt(h.maxUploadBytes>>20, 10)+" MB")
		return
	}
	if file.Size == 0 {
		common.RespondBadRequest(c, "file must not be empty")
		return
	}
	if file.Size > h.maxUploadBytes {
		common.RespondBadRequest(c, "file must not exceed "+strconv.FormatInt(h.maxUploadBytes>>20, 10)+" MB")
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondBadRequest(c, "cannot read uploaded file")
		return
	}
	defer src.Close()

	a, err := h.proposals.AddAttachment(c.Request.Context(), actor, id, file.Filename, src)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, a)
}

// ListAttachments handles GET /proposals/:id/attachments.
func (h *ProposalHandler) ListAttachments(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.proposals.ListAttachments(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if list == nil {
		list = []models.ProposalAttachment{}
	}

	c.JSON(http.StatusOK, list)
}

// DownloadAttachment handles GET /proposals/:id/attachments/:attachmentId.
func (h *ProposalHandler) DownloadAttachment(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := common.UUIDParam(c, "attachmentId")
	if !ok {
		return
	}

	a, rc, err := h.proposals.OpenAttachment(c.Request.Context(), actor, id, attachmentID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.OriginalFilename})
	c.DataFromReader(http.StatusOK, a.FileSize, a.MimeType, rc, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
	})
}

// DeleteAttachment handles DELETE /proposals/:id/attachments/:attachmentId.
func (h *ProposalHandler) DeleteAttachment(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := common.UUIDParam(c, "attachmentId")
	if !ok {
		return
	}

	if err := h.proposals.DeleteAttachment(c.Request.Context(), actor, id, attachmentID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func optionalUUIDQuery(c *gin.Context, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d.Time, nil
}
