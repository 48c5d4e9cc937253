package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bomstudio/internal/intake"
	"bomstudio/internal/logging"
	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

type clientRequest struct {
	Name     string          `json:"name" binding:"required"`
	Email    string          `json:"email" binding:"required"`
	Package  store.Package   `json:"package"`
	BrandKit json.RawMessage `json:"brand_kit"`
}

type projectRequest struct {
	ClientID string              `json:"client_id" binding:"required"`
	Name     string              `json:"name" binding:"required"`
	Status   store.ProjectStatus `json:"status"`
}

type videoRequest struct {
	ProjectID string        `json:"project_id" binding:"required"`
	Title     string        `json:"title" binding:"required"`
	Script    *store.Script `json:"script"`
}

// reviewRequest is the legacy single-endpoint approve body. A missing
// approved flag means approve.
type reviewRequest struct {
	Approved *bool   `json:"approved"`
	Note     *string `json:"note"`
}

type noteRequest struct {
	Note *string `json:"note"`
}

type usageResponse struct {
	Records    []*store.UsageRecord `json:"records"`
	TotalCents int                  `json:"total_cents"`
}

func page(c *gin.Context) (store.Page, error) {
	var p store.Page
	for name, dst := range map[string]*int{"skip": &p.Offset, "limit": &p.Limit} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, services.Wrap(services.ErrValidation, "api", "parse query", name+" must be a non-negative integer", nil)
		}
		*dst = n
	}
	return p.Normalize(), nil
}

// Clients

func (h *handlers) listClients(c *gin.Context) {
	p, err := page(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	clients, err := h.store.FindClients(c.Request.Context(), store.ClientFilter{Package: store.Package(c.Query("package")), Page: p})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(clients))
}

func (h *handlers) createClient(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	client := &store.Client{Name: req.Name, Email: req.Email, Package: req.Package, BrandKit: req.BrandKit}
	if err := h.store.CreateClient(c.Request.Context(), client); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *handlers) getClient(c *gin.Context) {
	client, err := h.store.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *handlers) updateClient(c *gin.Context) {
	var patch store.ClientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, err)
		return
	}
	client, err := h.store.UpdateClient(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *handlers) deleteClient(c *gin.Context) {
	if err := h.store.DeleteClient(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Projects

func (h *handlers) listProjects(c *gin.Context) {
	p, err := page(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := store.ProjectFilter{
		ClientID: c.Query("client_id"),
		Status:   store.ProjectStatus(c.Query("status")),
		Page:     p,
	}
	projects, err := h.store.FindProjects(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(projects))
}

func (h *handlers) createProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	project := &store.Project{ClientID: req.ClientID, Name: req.Name, Status: req.Status}
	if err := h.store.CreateProject(c.Request.Context(), project); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *handlers) getProject(c *gin.Context) {
	project, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *handlers) updateProject(c *gin.Context) {
	var patch store.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, err)
		return
	}
	project, err := h.store.UpdateProject(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *handlers) deleteProject(c *gin.Context) {
	if err := h.store.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Videos

func (h *handlers) listVideos(c *gin.Context) {
	p, err := page(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := store.VideoFilter{
		ProjectID: c.Query("project_id"),
		ClientID:  c.Query("client_id"),
		Page:      p,
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := store.ParseVideoStatus(raw)
		if !ok {
			h.fail(c, services.Wrap(services.ErrValidation, "api", "parse query", "unknown video status "+raw, nil))
			return
		}
		filter.Status = status
	}
	videos, err := h.store.FindVideos(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(videos))
}

func (h *handlers) createVideo(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if _, err := h.store.GetProject(c.Request.Context(), req.ProjectID); err != nil {
		h.fail(c, err)
		return
	}
	v := &store.Video{ProjectID: req.ProjectID, Title: req.Title, Script: req.Script}
	if err := h.store.CreateVideo(c.Request.Context(), v); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *handlers) getVideo(c *gin.Context) {
	v, err := h.store.GetVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) updateVideo(c *gin.Context) {
	var patch store.VideoPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.badRequest(c, err)
		return
	}
	v, err := h.store.UpdateVideo(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) deleteVideo(c *gin.Context) {
	if err := h.store.DeleteVideo(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listAssets(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.store.GetVideo(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	assets, err := h.store.ListAssets(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(assets))
}

func (h *handlers) getAsset(c *gin.Context) {
	asset, err := h.store.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

// Review actions

func (h *handlers) submitVideo(c *gin.Context) {
	caller := strings.TrimSpace(c.GetHeader(ClientIDHeader))
	if caller == "" {
		h.fail(c, services.Wrap(services.ErrValidation, "api", "submit video", ClientIDHeader+" header required", nil))
		return
	}
	v, err := h.videos.Submit(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) approveVideo(c *gin.Context) {
	var req reviewRequest
	if err := bindOptional(c, &req); err != nil {
		h.badRequest(c, err)
		return
	}
	approved := req.Approved == nil || *req.Approved
	v, err := h.videos.Review(c.Request.Context(), c.Param("id"), approved, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) rejectVideo(c *gin.Context) {
	var req noteRequest
	if err := bindOptional(c, &req); err != nil {
		h.badRequest(c, err)
		return
	}
	v, err := h.videos.Reject(c.Request.Context(), c.Param("id"), req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) deliverVideo(c *gin.Context) {
	v, err := h.videos.Deliver(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) retryVideo(c *gin.Context) {
	if h.pipeline == nil {
		h.fail(c, services.Wrap(services.ErrConfiguration, "api", "retry video", "pipeline not configured", nil))
		return
	}
	v, err := h.pipeline.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, v)
}

// Usage

func (h *handlers) listUsage(c *gin.Context) {
	p, err := page(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := store.UsageFilter{
		ProjectID: c.Query("project_id"),
		Provider:  c.Query("provider"),
		Page:      p,
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.fail(c, services.Wrap(services.ErrValidation, "api", "parse query", "since must be RFC3339", nil))
			return
		}
		filter.Since = since
	}
	ctx := c.Request.Context()
	records, err := h.store.ListUsage(ctx, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	total, err := h.store.SumUsage(ctx, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, usageResponse{Records: nonNil(records), TotalCents: total})
}

// Webhooks

func (h *handlers) tallyWebhook(c *gin.Context) {
	if h.intake == nil {
		h.fail(c, services.Wrap(services.ErrConfiguration, "api", "tally webhook", "intake not configured", nil))
		return
	}
	var sub intake.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.badRequest(c, err)
		return
	}
	resp, err := h.intake.Handle(c.Request.Context(), sub)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) stripeWebhook(c *gin.Context) {
	var body struct {
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	h.logger.Info("stripe webhook received",
		logging.String(logging.FieldEventType, "stripe_webhook"),
		logging.String("stripe_event", body.Type),
	)
	c.JSON(http.StatusOK, gin.H{"status": "received", "event_type": body.Type})
}

func (h *handlers) n8nWebhook(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}
	event, _ := body["event"].(string)
	h.logger.Info("n8n webhook received",
		logging.String(logging.FieldEventType, "n8n_webhook"),
		logging.String("n8n_event", event),
	)
	c.JSON(http.StatusOK, gin.H{"status": "received", "event": event})
}

// bindOptional decodes a JSON body when one was sent. An empty body, chunked
// or not, leaves dst untouched.
func bindOptional(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 || c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
