package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
	"github.com/sajib-dev/fixmate/backend/internal/middleware"
	"github.com/sajib-dev/fixmate/backend/internal/models"
)

const maxJobImageBytes = 8 << 20

// JobHandler handles job-posting HTTP requests
type JobHandler struct {
	coordinator *engine.SyncCoordinator
	blobs       engine.BlobStore
}

// NewJobHandler creates a new JobHandler. blobs may be nil when no storage
// bucket is configured; image uploads are then rejected.
func NewJobHandler(coordinator *engine.SyncCoordinator, blobs engine.BlobStore) *JobHandler {
	return &JobHandler{coordinator: coordinator, blobs: blobs}
}

// RegisterJobRoutes registers job routes
func (h *JobHandler) RegisterJobRoutes(g *echo.Group) {
	g.POST("/jobs", h.PostJob)
	g.GET("/jobs", h.GetJobs)
	g.GET("/jobs/:id", h.GetJob)
}

// PostJob creates a job posting. Accepts multipart form data with an
// optional image part; the image is uploaded to the blob store first and
// only its URL is stored on the job.
func (h *JobHandler) PostJob(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	req := models.PostJobRequest{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Location:    c.FormValue("location"),
	}
	if budget := c.FormValue("budget"); budget != "" {
		req.Budget, err = strconv.ParseFloat(budget, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid budget")
		}
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		HomeownerID: uid,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Budget:      req.Budget,
	}

	if file, err := c.FormFile("image"); err == nil {
		if h.blobs == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Image uploads are not configured")
		}
		if file.Size > maxJobImageBytes {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Image too large")
		}
		src, err := file.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read image")
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Could not read image")
		}
		path := fmt.Sprintf("jobs/%s%s", job.ID, filepath.Ext(file.Filename))
		url, err := h.blobs.Upload(c.Request().Context(), data, path)
		if err != nil {
			return httpError(err)
		}
		job.ImageURL = url
	}

	notification, err := h.coordinator.PostJob(c.Request().Context(), job)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    echo.Map{"job": job, "notification": notification},
	})
}

// GetJobs returns all job postings, newest first
func (h *JobHandler) GetJobs(c echo.Context) error {
	if _, err := middleware.CurrentUserID(c); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"jobs": h.coordinator.Jobs()}})
}

// GetJob returns a single job posting
func (h *JobHandler) GetJob(c echo.Context) error {
	if _, err := middleware.CurrentUserID(c); err != nil {
		return httpError(err)
	}
	job, err := h.coordinator.Job(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, job)
}
