package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/auth"
	"github.com/yungbote/courseware-backend/internal/capa"
	"github.com/yungbote/courseware-backend/internal/content"
	"github.com/yungbote/courseware-backend/internal/content/contenttest"
	"github.com/yungbote/courseware-backend/internal/courseware"
	"github.com/yungbote/courseware-backend/internal/db"
	"github.com/yungbote/courseware-backend/internal/enrollment"
	"github.com/yungbote/courseware-backend/internal/events"
	"github.com/yungbote/courseware-backend/internal/grades"
	"github.com/yungbote/courseware-backend/internal/handlers"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/middleware"
	"github.com/yungbote/courseware-backend/internal/partition"
	"github.com/yungbote/courseware-backend/internal/repos"
	"github.com/yungbote/courseware-backend/internal/server"
	"github.com/yungbote/courseware-backend/internal/state"
	"github.com/yungbote/courseware-backend/internal/types"
)

type apiFixture struct {
	router      *gin.Engine
	authService auth.Service
	enrollments repos.EnrollmentRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.NewTestDB()
	if err != nil {
		t.Fatal(err)
	}
	log, err := logger.New("development")
	if err != nil {
		t.Fatal(err)
	}
	store := content.NewStore(repos.NewCourseContentRepo(gdb, log), nil, log)
	raw, err := json.Marshal(contenttest.Tree(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Publish(context.Background(), raw); err != nil {
		t.Fatal(err)
	}

	enrollments := repos.NewEnrollmentRepo(gdb, log)
	jobRepo := repos.NewJobRunRepo(gdb, log)
	coursewareService := courseware.NewService(
		store,
		partition.NewService(store, repos.NewGroupAssignmentRepo(gdb, log), events.Nop(), []byte("test-seed"), log),
		state.NewStore(repos.NewBlockStateRepo(gdb, log), 3, log),
		capa.NewGrader(100, 1<<20, log),
		grades.NewService(repos.NewCourseGradeRepo(gdb, log), log),
		enrollments,
		events.Nop(),
		"UTC",
		log,
	)
	authService := auth.NewService(log, "test-secret", time.Hour)

	router := server.NewRouter(server.RouterConfig{
		ServiceName:       "courseware-test",
		AuthMiddleware:    middleware.NewAuthMiddleware(log, authService),
		CoursewareHandler: handlers.NewCoursewareHandler(log, coursewareService),
		CourseHandler:     handlers.NewCourseHandler(log, store, jobRepo, events.Nop()),
		EnrollmentHandler: handlers.NewEnrollmentHandler(log, enrollment.NewService(enrollments, store, events.Nop(), log)),
	})
	return &apiFixture{router: router, authService: authService, enrollments: enrollments}
}

func (f *apiFixture) token(t *testing.T, learnerID uuid.UUID, staff bool) string {
	t.Helper()
	token, err := f.authService.IssueToken(learnerID, staff, "")
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (f *apiFixture) enroll(t *testing.T, learnerID uuid.UUID) {
	t.Helper()
	err := f.enrollments.Upsert(context.Background(), nil, &types.Enrollment{
		LearnerID: learnerID,
		CourseKey: contenttest.CourseID,
		Mode:      types.ModeAudit,
		Active:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func denyCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env handlers.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rec.Body.String())
	}
	return env.Error.Code
}

func TestSubmitWithoutTokenUnauthorized(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/blocks/"+contenttest.ProblemMCKey+"/submit", "", `{"answers":{"q1":"a"}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGetUnknownBlockNotFound(t *testing.T) {
	f := newAPIFixture(t)
	learner := uuid.New()
	f.enroll(t, learner)
	rec := f.do(t, http.MethodGet, "/api/blocks/block-v1:X+Y+2024+type@html+block@nope", f.token(t, learner, false), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := denyCode(t, rec); code != "not_found" {
		t.Fatalf("code = %q, want not_found", code)
	}
}

func TestSubmitPastAttemptLimitConflict(t *testing.T) {
	f := newAPIFixture(t)
	learner := uuid.New()
	f.enroll(t, learner)
	token := f.token(t, learner, false)
	path := "/api/blocks/" + contenttest.ProblemMCKey + "/submit"

	// The fixture problem allows two attempts; distinct sessions use them up.
	for i := 0; i < 2; i++ {
		body := fmt.Sprintf(`{"answers":{"q1":"b"},"session_id":"s%d"}`, i)
		rec := f.do(t, http.MethodPost, path, token, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d (body %q)", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := f.do(t, http.MethodPost, path, token, `{"answers":{"q1":"a"},"session_id":"s3"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %q)", rec.Code, rec.Body.String())
	}
	if code := denyCode(t, rec); code != "attempts_exhausted" {
		t.Fatalf("code = %q, want attempts_exhausted", code)
	}
}

func TestSubmitUnenrolledForbidden(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/blocks/"+contenttest.ProblemMCKey+"/submit", f.token(t, uuid.New(), false), `{"answers":{"q1":"a"}}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := denyCode(t, rec); code != "not_enrolled" {
		t.Fatalf("code = %q, want not_enrolled", code)
	}
}

func TestGetCourseHonorsDepthQuery(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, uuid.New(), false)

	var node struct {
		Children []json.RawMessage `json:"Children"`
	}

	rec := f.do(t, http.MethodGet, "/api/courses/"+contenttest.CourseID+"?depth=0", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &node); err != nil {
		t.Fatal(err)
	}
	if len(node.Children) != 0 {
		t.Fatalf("depth=0 returned %d children, want 0", len(node.Children))
	}

	rec = f.do(t, http.MethodGet, "/api/courses/"+contenttest.CourseID, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", rec.Code, rec.Body.String())
	}
	node.Children = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &node); err != nil {
		t.Fatal(err)
	}
	if len(node.Children) == 0 {
		t.Fatal("unbounded fetch returned no children")
	}

	rec = f.do(t, http.MethodGet, "/api/courses/"+contenttest.CourseID+"?depth=-2", token, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPublishRequiresStaff(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/courses", f.token(t, uuid.New(), false), `{}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
