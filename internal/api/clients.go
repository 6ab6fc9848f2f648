package api

import (
	"fmt"
	"net/http"

	"github.com/celerix-dev/celerix-crm/internal/csvio"
	"github.com/celerix-dev/celerix-crm/internal/dashboard"
	"github.com/celerix-dev/celerix-crm/internal/policy"
	"github.com/celerix-dev/celerix-crm/pkg/schema"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) ListClients(c *gin.Context) {
	visible := policy.VisibleClients(identity(c), h.App.CRM.ListClients())
	c.JSON(http.StatusOK, dashboard.FilterClients(visible, dashboard.ClientFilter{
		Search: c.Query("search"),
		Tag:    c.Query("tag"),
	}))
}

func (h *Handler) ListTags(c *gin.Context) {
	c.JSON(http.StatusOK, dashboard.Tags(policy.VisibleClients(identity(c), h.App.CRM.ListClients())))
}

func (h *Handler) GetClient(c *gin.Context) {
	client, ok := h.App.CRM.Client(c.Param("id"))
	if !ok || !policy.CanSeeClient(identity(c), client) {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"client":     client,
		"activities": policy.VisibleActivities(identity(c), h.App.CRM.ActivitiesForClient(client.ID)),
	})
}

func (h *Handler) CreateClient(c *gin.Context) {
	if !policy.CanManageClients(identity(c).Role) {
		forbidden(c)
		return
	}

	var fields schema.ClientFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if fields.Name == "" || fields.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email are required"})
		return
	}

	client, err := h.App.CRM.AddClient(c.Request.Context(), fields)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) UpdateClient(c *gin.Context) {
	id := c.Param("id")
	client, ok := h.App.CRM.Client(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	if !policy.CanModifyClient(identity(c), client) {
		forbidden(c)
		return
	}

	var patch schema.ClientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.App.CRM.UpdateClient(c.Request.Context(), id, patch); err != nil {
		h.writeError(c, err)
		return
	}

	updated, _ := h.App.CRM.Client(id)
	c.JSON(http.StatusOK, updated)
}

// DeleteClient leaves activities that reference the client in place.
func (h *Handler) DeleteClient(c *gin.Context) {
	if !policy.CanDeleteClients(identity(c).Role) {
		forbidden(c)
		return
	}
	if err := h.App.CRM.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) ExportClients(c *gin.Context) {
	visible := policy.VisibleClients(identity(c), h.App.CRM.ListClients())

	filename := fmt.Sprintf("clients-%s.csv", h.now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	if err := csvio.Export(c.Writer, visible); err != nil {
		h.log().Error("csv export failed", zap.Error(err))
	}
}

// ImportClients adds every valid row of a CSV body as a new client owned by the caller.
// Rows without a name or email are skipped and listed in the response.
// Rows are added one at a time; a failure stops the import and reports how far it got.
func (h *Handler) ImportClients(c *gin.Context) {
	if !policy.CanManageClients(identity(c).Role) {
		forbidden(c)
		return
	}

	res, err := csvio.Import(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imported := 0
	for _, fields := range res.Clients {
		if _, err := h.App.CRM.AddClient(c.Request.Context(), fields); err != nil {
			h.log().Warn("import stopped", zap.Int("imported", imported), zap.Error(err))
			h.writeError(c, err)
			return
		}
		imported++
	}
	if len(res.Skipped) > 0 {
		h.log().Info("import skipped rows", zap.Int("skipped", len(res.Skipped)))
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": res.Skipped})
}
