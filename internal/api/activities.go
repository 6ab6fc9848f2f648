package api

import (
	"net/http"

	"github.com/celerix-dev/celerix-crm/internal/dashboard"
	"github.com/celerix-dev/celerix-crm/internal/policy"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/gin-gonic/gin"
)

// activityView is an activity with the display name of the client it references.
type activityView struct {
	schema.Activity
	ClientName string `json:"clientName"`
}

func (h *Handler) ListActivities(c *gin.Context) {
	visible := dashboard.NewestFirst(policy.VisibleActivities(identity(c), h.App.CRM.ListActivities()))

	out := make([]activityView, 0, len(visible))
	for _, a := range visible {
		out = append(out, activityView{Activity: a, ClientName: h.App.CRM.ClientName(a)})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateActivity(c *gin.Context) {
	if !policy.CanManageActivities(identity(c).Role) {
		forbidden(c)
		return
	}

	var fields schema.ActivityFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if fields.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	a, err := h.App.CRM.AddActivity(c.Request.Context(), fields)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// modifiable resolves :id to an activity the caller may change, writing the
// rejection itself when there is none.
func (h *Handler) modifiable(c *gin.Context) (schema.Activity, bool) {
	a, ok := h.App.CRM.Activity(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return schema.Activity{}, false
	}
	if !policy.CanModifyActivity(identity(c), a) {
		forbidden(c)
		return schema.Activity{}, false
	}
	return a, true
}

func (h *Handler) UpdateActivity(c *gin.Context) {
	a, ok := h.modifiable(c)
	if !ok {
		return
	}

	var patch schema.ActivityPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.App.CRM.UpdateActivity(c.Request.Context(), a.ID, patch); err != nil {
		h.writeError(c, err)
		return
	}

	updated, _ := h.App.CRM.Activity(a.ID)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteActivity(c *gin.Context) {
	a, ok := h.modifiable(c)
	if !ok {
		return
	}
	if err := h.App.CRM.DeleteActivity(c.Request.Context(), a.ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) GetDashboard(c *gin.Context) {
	id := identity(c)
	c.JSON(http.StatusOK, dashboard.Summarize(
		policy.VisibleClients(id, h.App.CRM.ListClients()),
		policy.VisibleActivities(id, h.App.CRM.ListActivities()),
		h.now(),
	))
}
