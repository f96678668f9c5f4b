package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers/common"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// YouthProfileHandler serves youth registrations and approved records.
type YouthProfileHandler struct {
	profiles *service.YouthProfileService
}

func NewYouthProfileHandler(profiles *service.YouthProfileService) *YouthProfileHandler {
	return &YouthProfileHandler{profiles: profiles}
}

// SaveDraft handles PUT /youth-profiles/draft.
func (h *YouthProfileHandler) SaveDraft(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	var payload models.YouthProfilePayload
	if !common.BindJSON(c, &payload) {
		return
	}

	draft, err := h.profiles.SaveDraft(c.Request.Context(), actor, payload)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

// GetDraft handles GET /youth-profiles/draft.
func (h *YouthProfileHandler) GetDraft(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	draft, err := h.profiles.GetDraft(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

// Submit handles POST /youth-profiles/:id/submit.
func (h *YouthProfileHandler) Submit(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	submitted, err := h.profiles.SubmitProfile(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, submitted)
}

// GetMine handles GET /youth-profiles/me.
func (h *YouthProfileHandler) GetMine(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	mine, err := h.profiles.GetMine(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, mine)
}

// ListPending handles GET /admin/youth-profiles/pending.
func (h *YouthProfileHandler) ListPending(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	f := repository.PendingProfileFilter{
		Status: c.Query("status"),
		Source: c.Query("source"),
		Search: c.Query("q"),
	}
	f.Limit, f.Offset = common.GetPagination(c)

	page, err := h.profiles.ListPendingProfiles(c.Request.Context(), actor, f)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetPending handles GET /admin/youth-profiles/pending/:id.
func (h *YouthProfileHandler) GetPending(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.profiles.GetPendingProfile(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// Approve handles POST /admin/youth-profiles/pending/:id/approve and answers
// with the materialized record.
func (h *YouthProfileHandler) Approve(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	record, err := h.profiles.ApproveProfile(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Reject handles POST /admin/youth-profiles/pending/:id/reject.
func (h *YouthProfileHandler) Reject(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	rejected, err := h.profiles.RejectProfile(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, rejected)
}

// ListRecords handles GET /admin/youth-profiles/records.
func (h *YouthProfileHandler) ListRecords(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	f := repository.ProfileRecordFilter{
		Classification: c.Query("classification"),
		Sex:            c.Query("sex"),
		Barangay:       c.Query("barangay"),
		Search:         c.Query("q"),
	}
	f.Limit, f.Offset = common.GetPagination(c)

	page, err := h.profiles.ListProfileRecords(c.Request.Context(), actor, f)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetRecord handles GET /admin/youth-profiles/records/:id.
func (h *YouthProfileHandler) GetRecord(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	record, err := h.profiles.GetProfileRecord(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
