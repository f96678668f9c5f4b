package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers/common"
	"github.com/ignatzorin/youth-governance-backend/internal/repository"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// ActivityHandler serves the audit trail.
type ActivityHandler struct {
	activity *service.ActivityService
}

func NewActivityHandler(activity *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// ListActivity handles GET /admin/activity-logs.
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	f := repository.ActivityLogFilter{
		SubjectType: c.Query("subject_type"),
		Action:      c.Query("action"),
	}
	f.Limit, f.Offset = common.GetPagination(c)

	var err error
	if f.SubjectID, err = optionalUUIDQuery(c, "subject_id"); err != nil {
		common.RespondBadRequest(c, "subject_id must be a valid UUID")
		return
	}
	if f.ActorID, err = optionalUUIDQuery(c, "actor_id"); err != nil {
		common.RespondBadRequest(c, "actor_id must be a valid UUID")
		return
	}

	page, err := h.activity.ListActivity(c.Request.Context(), actor, f)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// SubjectHistory handles GET /admin/activity-logs/:subjectType/:subjectId.
func (h *ActivityHandler) SubjectHistory(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	subjectID, err := uuid.Parse(c.Param("subjectId"))
	if err != nil {
		common.RespondBadRequest(c, "subjectId must be a valid UUID")
		return
	}

	limit, offset := common.GetPagination(c)
	page, err := h.activity.SubjectHistory(c.Request.Context(), actor, c.Param("subjectType"), subjectID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
