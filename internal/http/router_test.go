package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/coursemarket/internal/audit"
	"github.com/mrlokans/coursemarket/internal/auth"
	"github.com/mrlokans/coursemarket/internal/catalog"
	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database"
	auditRepo "github.com/mrlokans/coursemarket/internal/database/audit"
	"github.com/mrlokans/coursemarket/internal/database/compensations"
	"github.com/mrlokans/coursemarket/internal/database/store"
	"github.com/mrlokans/coursemarket/internal/database/users"
	"github.com/mrlokans/coursemarket/internal/enrollment"
	"github.com/mrlokans/coursemarket/internal/entities"
	"github.com/mrlokans/coursemarket/internal/metrics"
	"github.com/mrlokans/coursemarket/internal/reconcile"
)

type harness struct {
	router *gin.Engine
	db     *database.Database
	audit  *audit.Service
	auth   *auth.Service
}

func setupRouter(t *testing.T) *harness {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	authCfg := config.Auth{
		SessionLifetime:  time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 5,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}

	client := store.New(db.DB, store.WithTransactions(true))
	comps := compensations.NewRepository(db.DB)
	authSvc := auth.NewService(users.NewRepository(db.DB), authCfg)
	auditSvc := audit.NewService(auditRepo.NewRepository(db.DB))
	authSvc.Subscribe(auditSvc.HandleAuthEvent)
	t.Cleanup(auditSvc.Wait)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager(sqlDB, authCfg)
	require.NoError(t, err)
	authController := auth.NewAuthController(authSvc, sessions, authCfg)
	t.Cleanup(authController.Stop)

	router := NewRouter(RouterConfig{
		Catalog:        catalog.NewService(client, comps, config.Catalog{}),
		Enrollment:     enrollment.NewService(client, comps),
		Users:          authSvc,
		Audit:          auditSvc,
		Reconciler:     reconcile.NewService(client, comps, nil, config.Maintenance{}),
		Database:       db,
		AuthController: authController,
		AuthMiddleware: auth.NewMiddleware(authSvc, sessions),
		SessionManager: sessions,
		Metrics:        metrics.New(),
		Version:        "test",
	})

	return &harness{router: router, db: db, audit: auditSvc, auth: authSvc}
}

func (h *harness) do(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) signUp(t *testing.T, name, email string) []*http.Cookie {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/auth/signup", gin.H{"name": name, "email": email, "password": "password123"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return w.Result().Cookies()
}

func (h *harness) signInAdmin(t *testing.T) []*http.Cookie {
	t.Helper()
	_, err := h.auth.CreateUser(context.Background(), "Grace Admin", "admin@example.com", "password123", entities.UserRoleAdmin)
	require.NoError(t, err)
	w := h.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "admin@example.com", "password": "password123"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return w.Result().Cookies()
}

func (h *harness) createCourse(t *testing.T, admin []*http.Cookie, body gin.H) uint {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/admin/courses", body, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.ID
}

func (h *harness) categoryID(t *testing.T, name string) uint {
	t.Helper()
	var c entities.Category
	require.NoError(t, h.db.DB.Where("name = ?", name).First(&c).Error)
	return c.ID
}

type listBody[T any] struct {
	Data     []T  `json:"data"`
	Degraded bool `json:"degraded"`
}

func decodeList[T any](t *testing.T, w *httptest.ResponseRecorder) listBody[T] {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out listBody[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCatalogEndpoints(t *testing.T) {
	h := setupRouter(t)
	admin := h.signInAdmin(t)
	web := h.categoryID(t, "Web Development")

	empty := decodeList[CourseListItem](t, h.do(t, http.MethodGet, "/api/courses", nil, nil))
	assert.Empty(t, empty.Data)
	assert.False(t, empty.Degraded)

	goID := h.createCourse(t, admin, gin.H{"title": "Go", "description": "Learn Go", "price": 25, "category_ids": []uint{web}})
	h.createCourse(t, admin, gin.H{"title": "Figma", "description": "Design basics", "price": 0})

	t.Run("list renders the public fields", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/courses", nil, nil)
		list := decodeList[map[string]any](t, w)
		require.Len(t, list.Data, 2)
		assert.Equal(t, "Figma", list.Data[0]["title"])
		assert.Equal(t, "Grace Admin", list.Data[0]["author_name"])
		assert.Equal(t, config.DefaultCourseImageURL, list.Data[0]["image_url"])
		assert.NotContains(t, list.Data[0], "created_by")
	})

	t.Run("category filter", func(t *testing.T) {
		list := decodeList[CourseListItem](t, h.do(t, http.MethodGet, "/api/courses?category_id="+itoa(web), nil, nil))
		require.Len(t, list.Data, 1)
		assert.Equal(t, goID, list.Data[0].ID)

		mobile := h.categoryID(t, "Mobile Development")
		list = decodeList[CourseListItem](t, h.do(t, http.MethodGet, "/api/courses?category_id="+itoa(mobile), nil, nil))
		assert.Empty(t, list.Data)

		w := h.do(t, http.MethodGet, "/api/courses?category_id=abc", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("featured", func(t *testing.T) {
		list := decodeList[CourseListItem](t, h.do(t, http.MethodGet, "/api/courses/featured?limit=1", nil, nil))
		require.Len(t, list.Data, 1)
		assert.Equal(t, "Figma", list.Data[0].Title)
	})

	t.Run("single course", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/courses/"+itoa(goID), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"author_name":"Grace Admin"`)

		w = h.do(t, http.MethodGet, "/api/courses/9999", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"course not found"}`, w.Body.String())

		w = h.do(t, http.MethodGet, "/api/courses/nope", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("categories", func(t *testing.T) {
		all := decodeList[entities.Category](t, h.do(t, http.MethodGet, "/api/categories", nil, nil))
		assert.Len(t, all.Data, 4)

		mapped := decodeList[entities.Category](t, h.do(t, http.MethodGet, "/api/courses/"+itoa(goID)+"/categories", nil, nil))
		require.Len(t, mapped.Data, 1)
		assert.Equal(t, "Web Development", mapped.Data[0].Name)
	})
}

func TestEnrollmentEndpoints(t *testing.T) {
	h := setupRouter(t)
	admin := h.signInAdmin(t)
	courseID := h.createCourse(t, admin, gin.H{"title": "Go", "description": "Learn Go", "price": 25})
	path := "/api/courses/" + itoa(courseID)

	w := h.do(t, http.MethodPost, path+"/enroll", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user := h.signUp(t, "Ada", "ada@example.com")

	w = h.do(t, http.MethodGet, path+"/enrollment", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enrolled":false`)

	w = h.do(t, http.MethodPost, path+"/enroll", nil, user)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, path+"/enroll", nil, user)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodPost, "/api/courses/9999/enroll", nil, user)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, path+"/enrollment", nil, user)
	assert.Contains(t, w.Body.String(), `"enrolled":true`)

	mine := decodeList[enrollment.EnrollmentView](t, h.do(t, http.MethodGet, "/api/me/enrollments", nil, user))
	require.Len(t, mine.Data, 1)
	assert.Equal(t, "Go", mine.Data[0].CourseTitle)

	var payment entities.Payment
	require.NoError(t, h.db.DB.First(&payment).Error)
	assert.Equal(t, 25.0, payment.Amount)

	all := decodeList[enrollment.EnrollmentView](t, h.do(t, http.MethodGet, "/api/admin/enrollments", nil, admin))
	require.Len(t, all.Data, 1)
	assert.Equal(t, "Ada", all.Data[0].UserName)
}

func TestAdminEndpoints(t *testing.T) {
	h := setupRouter(t)
	admin := h.signInAdmin(t)
	user := h.signUp(t, "Ada", "ada@example.com")
	web, design := h.categoryID(t, "Web Development"), h.categoryID(t, "Design")

	t.Run("requires the admin role", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/admin/users", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = h.do(t, http.MethodPost, "/api/admin/courses", gin.H{"title": "x", "description": "y"}, user)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/admin/courses", gin.H{"title": "", "description": "y", "price": 1}, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"title"`)

		w = h.do(t, http.MethodPost, "/api/admin/courses", gin.H{"title": "x", "description": "y", "price": -5}, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"price"`)

		w = h.do(t, http.MethodPost, "/api/admin/courses", gin.H{"title": "x", "description": "y", "price": 1, "category_ids": []uint{9999}}, admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"category_ids"`)

		w = h.do(t, http.MethodPost, "/api/admin/courses", "{not json", admin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("update distinguishes absent and empty categories", func(t *testing.T) {
		id := h.createCourse(t, admin, gin.H{"title": "CSS", "description": "Layouts", "price": 10, "category_ids": []uint{web, design}})
		path := "/api/admin/courses/" + itoa(id)
		count := func() int64 {
			var n int64
			require.NoError(t, h.db.DB.Model(&entities.CourseCategory{}).Where("course_id = ?", id).Count(&n).Error)
			return n
		}

		w := h.do(t, http.MethodPut, path, gin.H{"title": "CSS 2", "description": "Grid", "price": 12}, admin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, int64(2), count())

		w = h.do(t, http.MethodPut, path, gin.H{"title": "CSS 3", "description": "Grid", "price": 12, "category_ids": []uint{design}}, admin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(1), count())

		w = h.do(t, http.MethodPut, path, `{"title":"CSS 4","description":"Grid","price":12,"category_ids":[]}`, admin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, count())

		w = h.do(t, http.MethodPut, "/api/admin/courses/9999", gin.H{"title": "x", "description": "y"}, admin)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		id := h.createCourse(t, admin, gin.H{"title": "Doomed", "description": "Soon gone", "price": 5, "category_ids": []uint{web}})
		w := h.do(t, http.MethodPost, "/api/courses/"+itoa(id)+"/enroll", nil, user)
		require.Equal(t, http.StatusCreated, w.Code)

		w = h.do(t, http.MethodDelete, "/api/admin/courses/"+itoa(id), nil, admin)
		require.Equal(t, http.StatusNoContent, w.Code)

		var n int64
		require.NoError(t, h.db.DB.Model(&entities.Enrollment{}).Where("course_id = ?", id).Count(&n).Error)
		assert.Zero(t, n)

		w = h.do(t, http.MethodDelete, "/api/admin/courses/"+itoa(id), nil, admin)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("users hide password hashes", func(t *testing.T) {
		w := h.do(t, http.MethodGet, "/api/admin/users", nil, admin)
		list := decodeList[map[string]any](t, w)
		assert.Len(t, list.Data, 2)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("audit trail", func(t *testing.T) {
		h.audit.Wait()
		w := h.do(t, http.MethodGet, "/api/admin/audit?type=catalog&limit=100", nil, admin)
		require.Equal(t, http.StatusOK, w.Code)

		var out struct {
			Data        []entities.AuditEvent `json:"data"`
			TotalEvents int64                 `json:"total_events"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		actions := map[string]int{}
		for _, e := range out.Data {
			actions[e.Action]++
		}
		assert.Equal(t, 2, actions["course_create"])
		assert.Equal(t, 3, actions["course_update"])
		assert.Equal(t, 1, actions["course_delete"])
		assert.Equal(t, int64(len(out.Data)), out.TotalEvents)

		w = h.do(t, http.MethodGet, "/api/admin/audit?type=auth", nil, admin)
		assert.Contains(t, w.Body.String(), "signed_in")
	})

	t.Run("reconcile runs inline without a queue", func(t *testing.T) {
		w := h.do(t, http.MethodPost, "/api/admin/reconcile", nil, admin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"resolved":0,"retried":0,"failed":0}`, w.Body.String())

		w = h.do(t, http.MethodGet, "/api/admin/tasks/abc", nil, admin)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListsDegradeOnStoreFailure(t *testing.T) {
	h := setupRouter(t)
	require.NoError(t, h.db.Close())

	for _, path := range []string{"/api/courses", "/api/courses/featured", "/api/categories", "/api/courses/1/categories"} {
		t.Run(path, func(t *testing.T) {
			list := decodeList[map[string]any](t, h.do(t, http.MethodGet, path, nil, nil))
			assert.True(t, list.Degraded)
			assert.Empty(t, list.Data)
		})
	}

	w := h.do(t, http.MethodGet, "/api/courses/1", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"`+retryMessage+`","code":"internal"}`, w.Body.String())

	w = h.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupRouter(t)
	h.do(t, http.MethodGet, "/api/courses", nil, nil)

	w := h.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/courses"`)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
