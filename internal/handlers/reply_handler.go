package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/solvect/activityfeed/internal/models"
	"github.com/solvect/activityfeed/internal/repositories"
	"gorm.io/gorm"
)

// ReplyHandler handles the comment flow: form submission, reply listing and
// reply deletion
type ReplyHandler struct {
	activityRepository repositories.ActivityRepository
	userRepository     repositories.UserRepository
}

// NewReplyHandler creates a new ReplyHandler
func NewReplyHandler(activityRepo repositories.ActivityRepository, userRepo repositories.UserRepository) *ReplyHandler {
	return &ReplyHandler{
		activityRepository: activityRepo,
		userRepository:     userRepo,
	}
}

// RegisterReplyRoutes registers reply routes
func (h *ReplyHandler) RegisterReplyRoutes(g *echo.Group) {
	g.POST("/activities/comment", h.SubmitComment)
	g.GET("/activities/:id/replies", h.GetReplies)
	g.DELETE("/activities/:id/replies/:reply_id", h.DeleteReply)
}

// SubmitComment handles the comment form post. Fields: next (redirect
// target), pid (parent activity), action, text. Unauthenticated or empty
// submissions are rejected without persisting anything; a parent the viewer
// cannot see yields 404.
func (h *ReplyHandler) SubmitComment(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var form models.CommentForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form payload")
	}
	form.Text = strings.TrimSpace(form.Text)

	validate := validator.New()
	if err := validate.Struct(form); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success": false,
			"errors":  echo.Map{"text": "Comment text is required"},
		})
	}

	parent, err := h.activityRepository.GetByID(form.ParentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	visible, err := h.activityRepository.VisibleTo(parent, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !visible {
		// 404 rather than 403 so private activity IDs are not probeable
		return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
	}

	reply, err := h.activityRepository.AddReply(parent.ID, currentUserID, form.Text)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
		}
		if errors.Is(err, repositories.ErrParentIsReply) {
			return echo.NewHTTPError(http.StatusBadRequest, "Cannot reply to a reply")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if form.Next != "" {
		return c.Redirect(http.StatusSeeOther, form.Next)
	}
	return c.JSON(http.StatusCreated, reply)
}

// GetReplies returns the flat reply list for an activity
func (h *ReplyHandler) GetReplies(c echo.Context) error {
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

	visible, err := h.activityRepository.VisibleTo(activity, getUserIDFromContext(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !visible {
		return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
	}

	replies, err := h.activityRepository.Replies(activity.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"replies": replies},
	})
}

// DeleteReply deletes a reply; only its creator may delete it
func (h *ReplyHandler) DeleteReply(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	replyID, err := strconv.ParseUint(c.Param("reply_id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid reply ID")
	}

	reply, err := h.activityRepository.GetByID(uint(replyID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Reply not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if !reply.IsReply() {
		return echo.NewHTTPError(http.StatusBadRequest, "Activity is not a reply")
	}
	if reply.CreatedUserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this reply")
	}

	if err := h.activityRepository.DeleteReply(reply.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
