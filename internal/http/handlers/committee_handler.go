package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers/common"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// CommitteeHandler serves the SK committees.
type CommitteeHandler struct {
	committees *service.CommitteeService
}

func NewCommitteeHandler(committees *service.CommitteeService) *CommitteeHandler {
	return &CommitteeHandler{committees: committees}
}

type committeeRequest struct {
	Slug        string  `json:"slug"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// ListCommittees handles GET /committees.
func (h *CommitteeHandler) ListCommittees(c *gin.Context) {
	list, err := h.committees.ListCommittees(c.Request.Context())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateCommittee handles POST /admin/committees.
func (h *CommitteeHandler) CreateCommittee(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	var req committeeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	committee, err := h.committees.CreateCommittee(c.Request.Context(), actor, service.CommitteeInput{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, committee)
}

// UpdateCommittee handles PUT /admin/committees/:id. The slug cannot change.
func (h *CommitteeHandler) UpdateCommittee(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req committeeRequest
	if !common.BindJSON(c, &req) {
		return
	}

	committee, err := h.committees.UpdateCommittee(c.Request.Context(), actor, id, service.CommitteeInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, committee)
}
