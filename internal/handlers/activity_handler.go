package handlers

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/solvect/activityfeed/internal/models"
	"github.com/solvect/activityfeed/internal/render"
	"github.com/solvect/activityfeed/internal/repositories"
	"gorm.io/gorm"
)

// ActivityHandler handles activity feed HTTP requests
type ActivityHandler struct {
	activityRepository repositories.ActivityRepository
	userRepository     repositories.UserRepository
	postRepository     repositories.PostRepository // nil when no post store is configured
	renderer           *render.Renderer
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activityRepo repositories.ActivityRepository, userRepo repositories.UserRepository, postRepo repositories.PostRepository, renderer *render.Renderer) *ActivityHandler {
	return &ActivityHandler{
		activityRepository: activityRepo,
		userRepository:     userRepo,
		postRepository:     postRepo,
		renderer:           renderer,
	}
}

// RegisterActivityRoutes registers activity routes
func (h *ActivityHandler) RegisterActivityRoutes(g *echo.Group) {
	g.GET("/activities", h.GetFeed)
	g.POST("/activities", h.CreateActivity)
	g.GET("/activities/:id", h.GetActivity)
	g.GET("/activities/:id/html", h.GetActivityHTML)
	g.PUT("/activities/:id", h.UpdateActivity)
	g.DELETE("/activities/:id", h.DeleteActivity)
	g.GET("/objects/:type/:object_id/activities", h.GetObjectActivities)
}

// EnrichedActivity includes the creator's compact profile
type EnrichedActivity struct {
	models.Activity
	CreatedUser models.UserCompact `json:"created_user"`
}

func (h *ActivityHandler) enrichActivities(activities []models.Activity) []EnrichedActivity {
	enriched := make([]EnrichedActivity, len(activities))
	userCache := make(map[uint]models.UserCompact)

	for i, a := range activities {
		enriched[i] = EnrichedActivity{Activity: a}
		if creator, ok := userCache[a.CreatedUserID]; ok {
			enriched[i].CreatedUser = creator
		} else {
			user, err := h.userRepository.GetUserByID(a.CreatedUserID)
			if err == nil {
				compact := user.ToCompact()
				userCache[a.CreatedUserID] = compact
				enriched[i].CreatedUser = compact
			}
		}
	}
	return enriched
}

func parsePaging(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 15
	}
	return page, limit
}

// parseFilter reads the source ("as") and action ("aa") query params
func parseFilter(c echo.Context) repositories.Filter {
	return repositories.Filter{
		Source: c.QueryParam("as"),
		Action: c.QueryParam("aa"),
	}
}

func pagingMeta(page, limit int, total int64) echo.Map {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      total,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}

// GetFeed returns the paginated feed for the authenticated viewer
func (h *ActivityHandler) GetFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, limit := parsePaging(c)
	activities, total, err := h.activityRepository.ForUser(currentUserID, parseFilter(c), page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"activities": h.enrichActivities(activities),
		},
		"meta": pagingMeta(page, limit, total),
	})
}

// GetObjectActivities returns the paginated activities about one object
func (h *ActivityHandler) GetObjectActivities(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	aboutType := c.Param("type")
	aboutID := c.Param("object_id")

	page, limit := parsePaging(c)
	activities, total, err := h.activityRepository.ForObject(aboutType, aboutID, currentUserID, parseFilter(c), page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"activities": h.enrichActivities(activities),
		},
		"meta": pagingMeta(page, limit, total),
	})
}

// CreateActivity creates a new top-level activity
func (h *ActivityHandler) CreateActivity(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	activity := &models.Activity{
		CreatedUserID: currentUserID,
		Text:          req.Text,
		AboutType:     req.AboutType,
		AboutID:       req.AboutID,
		Source:        models.SourceUser,
		Action:        req.Action,
		Privacy:       req.Privacy,
	}

	if err := h.activityRepository.Add(activity, nil); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Keep the denormalized share counter on the post in sync
	if activity.Action == models.ActionShared && activity.AboutType == "post" && h.postRepository != nil {
		go h.postRepository.IncrementSharesCount(context.Background(), activity.AboutID)
	}

	return c.JSON(http.StatusCreated, activity)
}

// GetActivity returns a single activity, enforcing visibility
func (h *ActivityHandler) GetActivity(c echo.Context) error {
	activity, err := h.loadVisibleActivity(c)
	if err != nil {
		return err
	}
	enriched := h.enrichActivities([]models.Activity{*activity})
	return c.JSON(http.StatusOK, enriched[0])
}

// GetActivityHTML returns the rendered list-item fragment for one activity.
// Query params: replies (default true), ref, tz (IANA name), next
// (surrounding page URL for the comment form redirect).
func (h *ActivityHandler) GetActivityHTML(c echo.Context) error {
	activity, err := h.loadVisibleActivity(c)
	if err != nil {
		return err
	}

	params := render.ItemParams{
		Activity:      activity,
		BaseURL:       c.QueryParam("next"),
		ShowReference: c.QueryParam("ref") == "true",
		ShowReplies:   c.QueryParam("replies") != "false",
		Users:         render.NewUserCache(h.userRepository.GetUserByID),
	}

	if currentUserID := getUserIDFromContext(c); currentUserID != 0 {
		if viewer, err := h.userRepository.GetUserByID(currentUserID); err == nil {
			params.Viewer = viewer
		}
	}

	if tz := c.QueryParam("tz"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			params.Timezone = loc
		}
	}

	if params.ShowReplies {
		replies, err := h.activityRepository.Replies(activity.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		params.Replies = replies
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderItem(c.Request().Context(), &buf, params); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTML(http.StatusOK, buf.String())
}

// UpdateActivity edits the activity text; only the creator may edit
func (h *ActivityHandler) UpdateActivity(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	activityID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid activity ID")
	}

	var req models.UpdateActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	activity, err := h.activityRepository.GetByID(uint(activityID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if activity.CreatedUserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to edit this activity")
	}

	if err := h.activityRepository.UpdateText(activity.ID, req.Text); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	activity.Text = req.Text
	return c.JSON(http.StatusOK, activity)
}

// DeleteActivity deletes an activity and its replies; only the creator may
// delete
func (h *ActivityHandler) DeleteActivity(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	activityID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid activity ID")
	}

	activity, err := h.activityRepository.GetByID(uint(activityID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if activity.CreatedUserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this activity")
	}

	if err := h.activityRepository.Delete(activity.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if activity.Action == models.ActionShared && activity.AboutType == "post" && h.postRepository != nil {
		go h.postRepository.DecrementSharesCount(context.Background(), activity.AboutID)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ActivityHandler) loadVisibleActivity(c echo.Context) (*models.Activity, error) {
	activityID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid activity ID")
	}

	activity, err := h.activityRepository.GetByID(uint(activityID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Activity not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	visible, err := h.activityRepository.VisibleTo(activity, getUserIDFromContext(c))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !visible {
		// 404 rather than 403 so private activity IDs are not probeable
		return nil, echo.NewHTTPError(http.StatusNotFound, "Activity not found")
	}
	return activity, nil
}
