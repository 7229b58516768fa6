package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
	"github.com/sajib-dev/fixmate/backend/internal/middleware"
	"github.com/sajib-dev/fixmate/backend/internal/models"
)

// BidHandler handles bid-related HTTP requests
type BidHandler struct {
	coordinator *engine.SyncCoordinator
}

// NewBidHandler creates a new BidHandler
func NewBidHandler(coordinator *engine.SyncCoordinator) *BidHandler {
	return &BidHandler{coordinator: coordinator}
}

// RegisterBidRoutes registers bid routes
func (h *BidHandler) RegisterBidRoutes(g *echo.Group) {
	g.POST("/jobs/:job_id/bids", h.SubmitBid)
	g.GET("/jobs/:job_id/bids", h.GetBidsForJob)
	g.GET("/bids", h.GetMyBids)
	g.GET("/bids/:id", h.GetBid)
	g.PUT("/bids/:id/status", h.TransitionBid)
	g.PUT("/bids/:id/review", h.ReviewBid)
}

// SubmitBid handles a contractor submitting a bid on a job
func (h *BidHandler) SubmitBid(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	var req models.SubmitBidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	req.JobID = c.Param("job_id")
	if err := c.Validate(&req); err != nil {
		return err
	}

	job, err := h.coordinator.Job(req.JobID)
	if err != nil {
		return httpError(err)
	}
	if job.HomeownerID == uid {
		return echo.NewHTTPError(http.StatusForbidden, "Cannot bid on your own job")
	}

	bid := &models.Bid{
		JobID:        req.JobID,
		ContractorID: uid,
		HomeownerID:  job.HomeownerID,
		Price:        req.Price,
		Description:  req.Description,
		Number:       req.Number,
	}
	if err := h.coordinator.Bids().SubmitBid(c.Request().Context(), bid); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, bid)
}

// GetBidsForJob returns all bids on a job. Only the job's homeowner sees
// the full list; contractors see just their own bids.
func (h *BidHandler) GetBidsForJob(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	jobID := c.Param("job_id")

	job, err := h.coordinator.Job(jobID)
	if err != nil {
		return httpError(err)
	}

	bids := h.coordinator.Bids().BidsForJob(jobID)
	if job.HomeownerID != uid {
		var own []models.Bid
		for _, bid := range bids {
			if bid.ContractorID == uid {
				own = append(own, bid)
			}
		}
		bids = own
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"bids": bids}})
}

// GetMyBids returns every bid the authenticated user participates in
func (h *BidHandler) GetMyBids(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	bids := h.coordinator.Bids().BidsForUser(uid)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"bids": bids}})
}

// GetBid returns a single bid, visible only to its two parties
func (h *BidHandler) GetBid(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	bid, err := h.coordinator.Bids().Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if bid.ContractorID != uid && bid.HomeownerID != uid {
		return echo.NewHTTPError(http.StatusForbidden, "Not a party to this bid")
	}
	return c.JSON(http.StatusOK, bid)
}

// TransitionBid moves a bid through its lifecycle: the homeowner accepts or
// declines a pending bid, the contractor marks an accepted bid completed
func (h *BidHandler) TransitionBid(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	var req models.TransitionBidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bidID := c.Param("id")
	if err := h.coordinator.Bids().Transition(c.Request().Context(), bidID, req.Status, uid); err != nil {
		return httpError(err)
	}
	bid, err := h.coordinator.Bids().Get(bidID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, bid)
}

// ReviewBid stores the homeowner's review on a completed bid
func (h *BidHandler) ReviewBid(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	var req models.ReviewBidRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bidID := c.Param("id")
	if err := h.coordinator.Bids().ReviewBid(c.Request().Context(), bidID, req.Review, uid); err != nil {
		return httpError(err)
	}
	bid, err := h.coordinator.Bids().Get(bidID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, bid)
}
