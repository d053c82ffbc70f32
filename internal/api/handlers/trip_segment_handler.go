// server/internal/api/handlers/trip_segment_handler.go
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"container-inspection-api-server/internal/api/middleware"
	"container-inspection-api-server/internal/events"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"
	"container-inspection-api-server/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type TripSegmentHandler struct {
	Segments repository.TripSegmentRepository
	Events   events.Publisher
	Hub      Notifier
	Log      zerolog.Logger
}

type CreateTripSegmentRequest struct {
	ContainerNumber string `json:"containerNumber" binding:"required"`
	ContainerSize   string `json:"containerSize"`
	ContainerType   string `json:"containerType"`
}

// CreateTripSegment starts an inspection on the container number screen.
func (h *TripSegmentHandler) CreateTripSegment(c *gin.Context) {
	var req CreateTripSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	containerNumber := normalizeContainer(req.ContainerNumber)
	if containerNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "containerNumber is required"})
		return
	}

	t := &models.TripSegment{
		ContainerNumber: containerNumber,
		ContainerSize:   strings.TrimSpace(req.ContainerSize),
		ContainerType:   strings.TrimSpace(req.ContainerType),
		Status:          models.TripStatusInProgress,
		CurrentStep:     string(workflow.First()),
		CreatedBy:       c.GetString(middleware.KeyUserID),
	}
	if err := h.Segments.Create(c.Request.Context(), t); err != nil {
		respondError(c, err, "Failed to create trip segment")
		return
	}

	h.Log.Info().Str("tripSegment", t.TripSegmentNumber).Str("container", t.ContainerNumber).Msg("trip segment created")
	c.JSON(http.StatusCreated, t)
}

func (h *TripSegmentHandler) ListTripSegments(c *gin.Context) {
	f := repository.TripSegmentFilter{
		Status:    c.Query("status"),
		Container: normalizeContainer(c.Query("container")),
		CreatedBy: c.Query("createdBy"),
		Limit:     defaultListLimit,
	}
	var err error
	if v := c.Query("year"); v != "" {
		if f.Year, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "year must be a number"})
			return
		}
	}
	if v := c.Query("hasDamage"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hasDamage must be true or false"})
			return
		}
		f.HasDamage = &b
	}
	if v := c.Query("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		if f.Limit > maxListLimit {
			f.Limit = maxListLimit
		}
	}
	if v := c.Query("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be zero or more"})
			return
		}
	}

	items, total, err := h.Segments.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "Failed to list trip segments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": f.Limit, "offset": f.Offset})
}

func (h *TripSegmentHandler) GetTripSegment(c *gin.Context) {
	t, err := h.Segments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve trip segment")
		return
	}
	c.JSON(http.StatusOK, t)
}

type UpdateTripSegmentRequest struct {
	ContainerNumber *string         `json:"containerNumber"`
	ContainerSize   *string         `json:"containerSize"`
	ContainerType   *string         `json:"containerType"`
	TruckNumber     *string         `json:"truckNumber"`
	TrailerNumber   *string         `json:"trailerNumber"`
	ChassisNumber   *string         `json:"chassisNumber"`
	SealNumber      *string         `json:"sealNumber"`
	LoadStatus      *string         `json:"loadStatus"`
	YardStatus      *string         `json:"yardStatus"`
	Billing         *models.Billing `json:"billing"`
}

var (
	loadStatuses = map[string]bool{models.LoadStatusLoaded: true, models.LoadStatusEmpty: true}
	yardStatuses = map[string]bool{models.YardStatusInYard: true, models.YardStatusInGate: true, models.YardStatusOutGate: true}
)

// UpdateTripSegment applies a partial update. Billing needs its own permission.
func (h *TripSegmentHandler) UpdateTripSegment(c *gin.Context) {
	var req UpdateTripSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Billing != nil && !middleware.HasPermission(c, models.PermBillingWrite) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Missing permission " + models.PermBillingWrite})
		return
	}
	if req.LoadStatus != nil && !loadStatuses[*req.LoadStatus] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loadStatus"})
		return
	}
	if req.YardStatus != nil && !yardStatuses[*req.YardStatus] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid yardStatus"})
		return
	}
	if req.ContainerNumber != nil {
		n := normalizeContainer(*req.ContainerNumber)
		if n == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "containerNumber cannot be empty"})
			return
		}
		req.ContainerNumber = &n
	}

	t, err := h.Segments.Update(c.Request.Context(), c.Param("id"), repository.TripSegmentUpdate{
		ContainerNumber: req.ContainerNumber,
		ContainerSize:   req.ContainerSize,
		ContainerType:   req.ContainerType,
		TruckNumber:     req.TruckNumber,
		TrailerNumber:   req.TrailerNumber,
		ChassisNumber:   req.ChassisNumber,
		SealNumber:      req.SealNumber,
		LoadStatus:      req.LoadStatus,
		YardStatus:      req.YardStatus,
		Billing:         req.Billing,
	})
	if err != nil {
		respondError(c, err, "Failed to update trip segment")
		return
	}
	c.JSON(http.StatusOK, t)
}

type SetStepRequest struct {
	Step string `json:"step" binding:"required"`
}

// SetStep persists wizard navigation. Only moves the wizard itself could make
// are accepted; completion goes through driver details.
func (h *TripSegmentHandler) SetStep(c *gin.Context) {
	var req SetStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := workflow.Parse(req.Step)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	t, err := h.Segments.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve trip segment")
		return
	}
	if t.Status == models.TripStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Trip segment is already completed"})
		return
	}
	if to == workflow.StepCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Submit driver details to complete the trip segment"})
		return
	}

	from := workflow.Step(t.CurrentStep)
	if from == "" {
		from = workflow.First()
	}
	if err := workflow.Validate(from, to, workflow.DamageStatus(t.DamageStatus().Locations)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "currentStep": from})
		return
	}

	t, err = h.Segments.SetStep(c.Request.Context(), id, string(to))
	if err != nil {
		respondError(c, err, "Failed to save step")
		return
	}
	current, total := workflow.Progress(to)
	c.JSON(http.StatusOK, gin.H{"tripSegment": t, "progress": gin.H{"current": current, "total": total}})
}

func (h *TripSegmentHandler) GetDamageStatus(c *gin.Context) {
	t, err := h.Segments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve trip segment")
		return
	}
	c.JSON(http.StatusOK, t.DamageStatus())
}

type UpdateDamageStatusRequest struct {
	TripSegmentID string `json:"tripSegmentId" binding:"required"`
	Location      string `json:"location" binding:"required"`
	HasDamage     *bool  `json:"hasDamage" binding:"required"`
	Notes         string `json:"notes"`
}

// UpdateDamageStatus records the answer to "is this side damaged?".
func (h *TripSegmentHandler) UpdateDamageStatus(c *gin.Context) {
	var req UpdateDamageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loc, ok := parseLocation(req.Location)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown damage location " + req.Location})
		return
	}

	userID := c.GetString(middleware.KeyUserID)
	t, err := h.Segments.SetDamage(c.Request.Context(), req.TripSegmentID, loc, *req.HasDamage, strings.TrimSpace(req.Notes), userID)
	if err != nil {
		respondError(c, err, "Failed to update damage status")
		return
	}

	notifyDamage(c.Request.Context(), h.Hub, h.Events, h.Log, t, loc, userID)
	c.JSON(http.StatusOK, t.DamageStatus())
}

type DriverDetailsRequest struct {
	Name          string `json:"name" binding:"required"`
	LicenseNumber string `json:"licenseNumber" binding:"required"`
	Phone         string `json:"phone"`
	Company       string `json:"company"`
	TruckNumber   string `json:"truckNumber"`
	TrailerNumber string `json:"trailerNumber"`
}

// SubmitDriverDetails is the last wizard screen; it closes the trip segment.
func (h *TripSegmentHandler) SubmitDriverDetails(c *gin.Context) {
	var req DriverDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	driver := models.DriverDetails{
		Name:          strings.TrimSpace(req.Name),
		LicenseNumber: strings.ToUpper(strings.TrimSpace(req.LicenseNumber)),
		Phone:         strings.TrimSpace(req.Phone),
		Company:       strings.TrimSpace(req.Company),
	}
	t, err := h.Segments.Complete(c.Request.Context(), c.Param("id"), driver,
		strings.ToUpper(strings.TrimSpace(req.TruckNumber)),
		strings.ToUpper(strings.TrimSpace(req.TrailerNumber)),
		time.Now().UTC())
	if err != nil {
		respondError(c, err, "Failed to complete trip segment")
		return
	}

	userID := c.GetString(middleware.KeyUserID)
	if h.Events != nil {
		ctx := context.WithoutCancel(c.Request.Context())
		if err := h.Events.Publish(ctx, events.KeyTripSegmentCompleted, events.NewTripSegmentCompleted(t, userID)); err != nil {
			h.Log.Error().Err(err).Str("tripSegment", t.TripSegmentNumber).Msg("failed to publish completion event")
		}
	}

	h.Log.Info().Str("tripSegment", t.TripSegmentNumber).Bool("hasDamage", t.HasDamage).Msg("trip segment completed")
	c.JSON(http.StatusOK, t)
}

// notifyDamage pushes the new damage status to the segment creator's devices
// and publishes a damage event. Failures are logged only.
func notifyDamage(ctx context.Context, hub Notifier, pub events.Publisher, log zerolog.Logger, t *models.TripSegment, loc models.DamageLocation, by string) {
	if hub != nil && t.CreatedBy != "" {
		msg := gin.H{"event": "damage_status", "tripSegmentId": t.ID.Hex(), "status": t.DamageStatus()}
		if err := hub.SendJSON(t.CreatedBy, msg); err != nil {
			log.Warn().Err(err).Str("user", t.CreatedBy).Msg("failed to push damage status")
		}
	}
	if pub != nil {
		if err := pub.Publish(context.WithoutCancel(ctx), events.KeyTripSegmentDamage, events.NewDamageReported(t, loc, by)); err != nil {
			log.Error().Err(err).Str("tripSegment", t.TripSegmentNumber).Msg("failed to publish damage event")
		}
	}
}

// parseLocation accepts a side ("front-wall") or its wizard step ("front_wall",
// "damage_front_wall").
func parseLocation(s string) (models.DamageLocation, bool) {
	s = strings.TrimSpace(s)
	if loc := models.DamageLocation(s); models.IsDamageLocation(loc) {
		return loc, true
	}
	if st, err := workflow.Parse(s); err == nil {
		return st.Side()
	}
	return "", false
}

func normalizeContainer(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
