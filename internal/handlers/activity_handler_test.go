package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/solvect/activityfeed/internal/middleware"
	"github.com/solvect/activityfeed/internal/models"
	"github.com/solvect/activityfeed/internal/render"
	"github.com/solvect/activityfeed/internal/repositories"
	"gorm.io/gorm"
)

type testServer struct {
	echo       *echo.Echo
	db         *gorm.DB
	activities repositories.ActivityRepository
	users      repositories.UserRepository
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("JWT_SECRET", "supersecretjwtkey")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Activity{}, &models.ActivityTarget{}))

	userRepo := repositories.NewPostgresUserRepository(db)
	activityRepo := repositories.NewPostgresActivityRepository(db)

	renderer, err := render.New(render.Options{URLPrefix: "/api/v1"})
	require.NoError(t, err)
	renderer.Register("user", render.UserResolver(userRepo))

	e := echo.New()
	api := e.Group("/api/v1")
	api.Use(middleware.OptionalJWTAuthMiddleware())

	NewActivityHandler(activityRepo, userRepo, nil, renderer).RegisterActivityRoutes(api)
	NewReplyHandler(activityRepo, userRepo).RegisterReplyRoutes(api)

	return &testServer{echo: e, db: db, activities: activityRepo, users: userRepo}
}

func seedActivity(t *testing.T, s *testServer, creator *models.User, privacy string) *models.Activity {
	t.Helper()
	a := &models.Activity{
		CreatedUserID: creator.ID,
		Action:        models.ActionCreated,
		Privacy:       privacy,
	}
	require.NoError(t, s.activities.Add(a, nil))
	return a
}

func formatUint(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func createTestUser(t *testing.T, s *testServer, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, s.users.CreateUser(user))
	return user
}

func authToken(t *testing.T, user *models.User) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("supersecretjwtkey"))
	require.NoError(t, err)
	return signed
}

func doJSON(s *testServer, method, path, token string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func doForm(s *testServer, path, token string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func countActivities(t *testing.T, s *testServer) int64 {
	t.Helper()
	var count int64
	require.NoError(t, s.db.Model(&models.Activity{}).Count(&count).Error)
	return count
}

func TestCreateActivity(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")

	rec := doJSON(s, http.MethodPost, "/api/v1/activities", authToken(t, alice),
		`{"action":"created","about_type":"user","about_id":"1","privacy":"public"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, alice.ID, created.CreatedUserID)
	assert.Equal(t, models.SourceUser, created.Source)
	assert.EqualValues(t, 1, countActivities(t, s))
}

func TestCreateActivityUnauthenticated(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(s, http.MethodPost, "/api/v1/activities", "", `{"action":"created"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, 0, countActivities(t, s))
}

func TestCreateActivityRejectsUnknownAction(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")

	rec := doJSON(s, http.MethodPost, "/api/v1/activities", authToken(t, alice),
		`{"action":"exploded"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 0, countActivities(t, s))
}

func TestSubmitCommentUnauthenticated(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	parent := seedActivity(t, s, alice, models.PrivacyPublic)

	rec := doForm(s, "/api/v1/activities/comment", "", url.Values{
		"pid":  {formatUint(parent.ID)},
		"text": {"drive-by comment"},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, 1, countActivities(t, s))

	got, err := s.activities.GetByID(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReplyCount)
}

func TestSubmitCommentEmptyText(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	parent := seedActivity(t, s, alice, models.PrivacyPublic)

	rec := doForm(s, "/api/v1/activities/comment", authToken(t, alice), url.Values{
		"pid":  {formatUint(parent.ID)},
		"text": {"   "},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 1, countActivities(t, s))
}

func TestSubmitCommentRedirects(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")
	parent := seedActivity(t, s, alice, models.PrivacyPublic)

	rec := doForm(s, "/api/v1/activities/comment", authToken(t, bob), url.Values{
		"next":   {"/posts/42"},
		"pid":    {formatUint(parent.ID)},
		"action": {"commented"},
		"text":   {"well said"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/posts/42", rec.Header().Get(echo.HeaderLocation))

	got, err := s.activities.GetByID(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReplyCount)

	replies, err := s.activities.Replies(parent.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "well said", replies[0].Text)
	assert.Equal(t, bob.ID, replies[0].CreatedUserID)
}

func TestSubmitCommentWithoutNextReturnsJSON(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	parent := seedActivity(t, s, alice, models.PrivacyPublic)

	rec := doForm(s, "/api/v1/activities/comment", authToken(t, alice), url.Values{
		"pid":  {formatUint(parent.ID)},
		"text": {"self reply"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var reply models.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)
}

func TestSubmitCommentOnInvisibleActivity(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	mallory := createTestUser(t, s, "mallory")
	private := seedActivity(t, s, alice, models.PrivacyPrivate)

	rec := doForm(s, "/api/v1/activities/comment", authToken(t, mallory), url.Values{
		"pid":  {formatUint(private.ID)},
		"text": {"can you see me"},
	})

	// same 404 a direct GET yields, so private IDs stay unguessable
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.EqualValues(t, 1, countActivities(t, s))

	got, err := s.activities.GetByID(private.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReplyCount)

	// the creator can still comment on their own private activity
	rec = doForm(s, "/api/v1/activities/comment", authToken(t, alice), url.Values{
		"pid":  {formatUint(private.ID)},
		"text": {"note to self"},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSubmitCommentToReplyRejected(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	parent := seedActivity(t, s, alice, models.PrivacyPublic)

	reply, err := s.activities.AddReply(parent.ID, alice.ID, "first")
	require.NoError(t, err)

	rec := doForm(s, "/api/v1/activities/comment", authToken(t, alice), url.Values{
		"pid":  {formatUint(reply.ID)},
		"text": {"nested"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetActivityVisibility(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	private := seedActivity(t, s, alice, models.PrivacyPrivate)

	// anonymous viewers get 404, not 403
	rec := doJSON(s, http.MethodGet, "/api/v1/activities/"+formatUint(private.ID), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/activities/"+formatUint(private.ID), authToken(t, alice), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetFeed(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	for i := 0; i < 3; i++ {
		seedActivity(t, s, alice, models.PrivacyPublic)
	}

	rec := doJSON(s, http.MethodGet, "/api/v1/activities?page=1&limit=2", authToken(t, alice), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Activities []EnrichedActivity `json:"activities"`
		} `json:"data"`
		Meta struct {
			CurrentPage int   `json:"currentPage"`
			TotalPages  int   `json:"totalPages"`
			TotalItems  int64 `json:"totalItems"`
			HasNextPage bool  `json:"hasNextPage"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Len(t, resp.Data.Activities, 2)
	assert.Equal(t, 1, resp.Meta.CurrentPage)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	assert.EqualValues(t, 3, resp.Meta.TotalItems)
	assert.True(t, resp.Meta.HasNextPage)
	assert.Equal(t, "alice", resp.Data.Activities[0].CreatedUser.Username)
}

func TestGetFeedUnauthenticated(t *testing.T) {
	s := setupServer(t)
	rec := doJSON(s, http.MethodGet, "/api/v1/activities", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetObjectActivities(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")

	a := &models.Activity{
		CreatedUserID: alice.ID,
		AboutType:     "user",
		AboutID:       repositories.UserTargetID(alice.ID),
		Text:          "Hello world",
		Action:        models.ActionCommented,
		Privacy:       models.PrivacyPublic,
	}
	require.NoError(t, s.activities.Add(a, nil))

	path := "/api/v1/objects/user/" + repositories.UserTargetID(alice.ID) + "/activities"
	rec := doJSON(s, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello world")
}

func TestGetActivityHTML(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")

	a := &models.Activity{
		CreatedUserID: alice.ID,
		Text:          "Hello world",
		Action:        models.ActionCommented,
		Privacy:       models.PrivacyPublic,
	}
	require.NoError(t, s.activities.Add(a, nil))
	_, err := s.activities.AddReply(a.ID, bob.ID, "hi back")
	require.NoError(t, err)

	path := "/api/v1/activities/" + formatUint(a.ID) + "/html?next=/home"
	rec := doJSON(s, http.MethodGet, path, authToken(t, bob), "")
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, html, "Hello world")
	assert.Contains(t, html, "hi back")
	assert.Contains(t, html, `name="next" value="/home"`)

	// anonymous: no comment form, replies suppressed on request
	rec = doJSON(s, http.MethodGet, "/api/v1/activities/"+formatUint(a.ID)+"/html?replies=false", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<form")
	assert.NotContains(t, rec.Body.String(), "hi back")
}

func TestUpdateActivityOwnerOnly(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")
	a := seedActivity(t, s, alice, models.PrivacyPublic)

	rec := doJSON(s, http.MethodPut, "/api/v1/activities/"+formatUint(a.ID),
		authToken(t, bob), `{"text":"hijacked"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(s, http.MethodPut, "/api/v1/activities/"+formatUint(a.ID),
		authToken(t, alice), `{"text":"edited"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := s.activities.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)
}

func TestDeleteActivityOwnerOnly(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")
	a := seedActivity(t, s, alice, models.PrivacyPublic)

	rec := doJSON(s, http.MethodDelete, "/api/v1/activities/"+formatUint(a.ID), authToken(t, bob), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(s, http.MethodDelete, "/api/v1/activities/"+formatUint(a.ID), authToken(t, alice), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 0, countActivities(t, s))
}

func TestDeleteReplyOwnerOnly(t *testing.T) {
	s := setupServer(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")
	parent := seedActivity(t, s, alice, models.PrivacyPublic)

	reply, err := s.activities.AddReply(parent.ID, bob.ID, "mine")
	require.NoError(t, err)

	base := "/api/v1/activities/" + formatUint(parent.ID) + "/replies/" + formatUint(reply.ID)

	rec := doJSON(s, http.MethodDelete, base, authToken(t, alice), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(s, http.MethodDelete, base, authToken(t, bob), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got, err := s.activities.GetByID(parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReplyCount)
}
