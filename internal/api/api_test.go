package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/engine"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	db *db.DB
}

type countingObserver struct{ n atomic.Int64 }

func (o *countingObserver) ObserveHTTP(string, int, time.Duration) { o.n.Add(1) }

func newTestServer(t *testing.T, obs HTTPObserver) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(Options{
		DB:                database,
		Engine:            engine.New(database),
		JWTSecret:         testJWTSecret,
		LowStockThreshold: 3,
	})
	server := httptest.NewServer(RequestIDMiddleware(LoggingMiddleware(obs)(router)))
	t.Cleanup(server.Close)
	return &testServer{Server: server, db: database}
}

// adminToken creates an admin account and logs in as it.
func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	if _, err := store.CreateUser(context.Background(), s.db, "admin@example.com", "Admin", "", string(hash), model.RoleAdmin); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return s.login(t, "admin@example.com", "password1")
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	decode(t, resp, &out)
	if out.Token == "" {
		t.Fatal("empty token from login")
	}
	return out.Token
}

// register signs up a staff member and returns their token and user ID.
func (s *testServer) register(t *testing.T, email string) (string, int64) {
	t.Helper()
	resp := s.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email": email, "full_name": "Staff " + email, "password": "password1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}
	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decode(t, resp, &out)
	return out.Token, out.User.ID
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.adminToken(t)

	resp := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "password1"})
	expectStatus(t, resp, http.StatusUnauthorized)

	// Email is matched case-insensitively.
	s.login(t, " Admin@Example.com ", "password1")
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "sam@example.com")

	resp := s.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email": "SAM@example.com", "full_name": "Sam Again", "password": "password1",
	})
	expectStatus(t, resp, http.StatusConflict)

	resp = s.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email": "short@example.com", "full_name": "Short", "password": "123",
	})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email": "x@example.com", "full_name": "X", "password": "password1", "role": "admin",
	})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, "GET", "/api/items", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, "GET", "/api/items", "garbage", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestRoleBasedAccess(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.adminToken(t)
	staffToken, _ := s.register(t, "staff@example.com")

	resp := s.do(t, "POST", "/api/items", staffToken, map[string]any{"name": "Test", "category": "IT"})
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(t, "GET", "/api/users", staffToken, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = s.do(t, "POST", "/api/assignments/1/complete-return", staffToken, nil)
	expectStatus(t, resp, http.StatusForbidden)

	// Admins pass the staff route guard but the engine refuses to file
	// requests on their behalf.
	resp = s.do(t, "POST", "/api/requests", adminToken, map[string]string{"item_name": "Laptop"})
	expectStatus(t, resp, http.StatusForbidden)
}

func TestItemsAPIFlow(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.adminToken(t)

	resp := s.do(t, "POST", "/api/items", token, map[string]any{
		"name": "Laptop", "category": "IT", "quantity_available": 2, "unit_price": "999.99",
	})
	expectStatus(t, resp, http.StatusCreated)
	var item model.InventoryItem
	decode(t, resp, &item)

	resp = s.do(t, "POST", "/api/items", token, map[string]any{"name": "Broken", "category": "IT", "quantity_available": -1})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "GET", "/api/items?q=lap", token, nil)
	expectStatus(t, resp, http.StatusOK)
	var items []model.InventoryItem
	decode(t, resp, &items)
	if len(items) != 1 {
		t.Errorf("expected 1 item matching search, got %d", len(items))
	}

	resp = s.do(t, "GET", "/api/items/available", token, nil)
	expectStatus(t, resp, http.StatusOK)
	var available []availableItem
	decode(t, resp, &available)
	if len(available) != 1 || available[0].Label != "Laptop · 2 available" {
		t.Errorf("unexpected available items: %+v", available)
	}

	resp = s.do(t, "PUT", "/api/items/9999", token, map[string]any{"name": "X", "category": "Y"})
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.do(t, "GET", "/api/items/abc", token, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "DELETE", "/api/items/"+itoa(item.ID), token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "GET", "/api/items/"+itoa(item.ID), token, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAllocationFlow(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.adminToken(t)
	staffToken, _ := s.register(t, "staff@example.com")

	resp := s.do(t, "POST", "/api/items", adminToken, map[string]any{
		"name": "Projector", "category": "AV", "quantity_available": 1,
	})
	expectStatus(t, resp, http.StatusCreated)
	var item model.InventoryItem
	decode(t, resp, &item)

	// Two requests compete for one unit.
	var first, second model.Request
	resp = s.do(t, "POST", "/api/requests", staffToken, map[string]string{"item_name": "Projector", "justification": "demo"})
	expectStatus(t, resp, http.StatusCreated)
	decode(t, resp, &first)
	resp = s.do(t, "POST", "/api/requests", staffToken, map[string]string{"item_name": "Projector"})
	expectStatus(t, resp, http.StatusCreated)
	decode(t, resp, &second)

	resp = s.do(t, "POST", "/api/requests/"+itoa(first.ID)+"/approve", adminToken, map[string]int64{"item_id": item.ID})
	expectStatus(t, resp, http.StatusOK)
	var approval engine.Approval
	decode(t, resp, &approval)
	if approval.Assignment == nil || approval.Request.Status != model.RequestApproved {
		t.Fatalf("unexpected approval: %+v", approval)
	}

	resp = s.do(t, "POST", "/api/requests/"+itoa(first.ID)+"/approve", adminToken, map[string]int64{"item_id": item.ID})
	expectStatus(t, resp, http.StatusConflict)

	resp = s.do(t, "POST", "/api/requests/"+itoa(second.ID)+"/approve", adminToken, map[string]int64{"item_id": item.ID})
	expectStatus(t, resp, http.StatusConflict)

	resp = s.do(t, "GET", "/api/requests", adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var queue requestQueue
	decode(t, resp, &queue)
	if len(queue.Pending) != 1 || len(queue.History) != 1 {
		t.Errorf("expected 1 pending and 1 processed request, got %d and %d", len(queue.Pending), len(queue.History))
	}

	resp = s.do(t, "POST", "/api/requests/"+itoa(second.ID)+"/reject", adminToken, nil)
	expectStatus(t, resp, http.StatusOK)

	// The assignment goes back through a return request.
	path := "/api/assignments/" + itoa(approval.Assignment.ID) + "/complete-return"
	resp = s.do(t, "POST", path, adminToken, nil)
	expectStatus(t, resp, http.StatusConflict)

	returnPath := "/api/me/assignments/" + itoa(approval.Assignment.ID) + "/return"
	resp = s.do(t, "POST", returnPath, staffToken, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "POST", returnPath, staffToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var info map[string]string
	decode(t, resp, &info)
	if info["info"] == "" {
		t.Errorf("expected informational body for repeated return request, got %v", info)
	}

	resp = s.do(t, "GET", "/api/assignments/returns", adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var returns []model.Assignment
	decode(t, resp, &returns)
	if len(returns) != 1 {
		t.Errorf("expected 1 pending return, got %d", len(returns))
	}

	resp = s.do(t, "POST", path, adminToken, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "GET", "/api/items/"+itoa(item.ID), adminToken, nil)
	var after model.InventoryItem
	decode(t, resp, &after)
	if after.QuantityAvailable != 1 {
		t.Errorf("expected quantity restored to 1, got %d", after.QuantityAvailable)
	}

	resp = s.do(t, "GET", "/api/me/assignments", staffToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var mine []model.Assignment
	decode(t, resp, &mine)
	if len(mine) != 1 || mine[0].Status != model.AssignmentReturned {
		t.Errorf("expected one returned assignment, got %+v", mine)
	}
}

func TestManualAssignment(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.adminToken(t)
	_, staffID := s.register(t, "staff@example.com")

	resp := s.do(t, "POST", "/api/items", adminToken, map[string]any{"name": "Phone", "category": "IT"})
	var item model.InventoryItem
	decode(t, resp, &item)

	resp = s.do(t, "POST", "/api/assignments", adminToken, map[string]int64{"item_id": item.ID, "staff_id": staffID})
	expectStatus(t, resp, http.StatusConflict)

	resp = s.do(t, "POST", "/api/assignments", adminToken, map[string]int64{"item_id": 9999, "staff_id": staffID})
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.do(t, "POST", "/api/assignments", adminToken, map[string]int64{"item_id": item.ID})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestFeedbackAndReports(t *testing.T) {
	s := newTestServer(t, nil)
	adminToken := s.adminToken(t)
	staffToken, _ := s.register(t, "staff@example.com")

	resp := s.do(t, "POST", "/api/feedback", staffToken, map[string]any{"rating": 6})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, "POST", "/api/feedback", staffToken, map[string]any{
		"rating": 4, "answers": []string{"quick", "", "more chargers"},
	})
	expectStatus(t, resp, http.StatusCreated)

	resp = s.do(t, "GET", "/api/reports", adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var summary struct {
		Feedback struct {
			Total int `json:"total"`
		} `json:"feedback"`
		RecentFeedback []model.Feedback `json:"recent_feedback"`
	}
	decode(t, resp, &summary)
	if summary.Feedback.Total != 1 || len(summary.RecentFeedback) != 1 {
		t.Fatalf("unexpected report: %+v", summary)
	}
	if summary.RecentFeedback[0].Answers[2] != "more chargers" {
		t.Errorf("unexpected answers: %v", summary.RecentFeedback[0].Answers)
	}

	resp = s.do(t, "GET", "/api/dashboard", adminToken, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "GET", "/api/reports/inventory.xlsx", adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("opening exported workbook: %v", err)
	}
	f.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.adminToken(t)

	resp := s.do(t, "POST", "/api/auth/logout", token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "GET", "/api/items", token, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.adminToken(t)

	resp := s.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"current_password": "wrong", "new_password": "newpassword",
	})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"current_password": "password1", "new_password": "newpassword",
	})
	expectStatus(t, resp, http.StatusOK)

	s.login(t, "admin@example.com", "newpassword")
}

func TestUsersAPI(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.adminToken(t)
	_, staffID := s.register(t, "staff@example.com")

	resp := s.do(t, "POST", "/api/users", token, map[string]string{
		"email": "second@example.com", "full_name": "Second Admin", "password": "password1", "role": model.RoleAdmin,
	})
	expectStatus(t, resp, http.StatusCreated)

	resp = s.do(t, "GET", "/api/users?role=staff", token, nil)
	expectStatus(t, resp, http.StatusOK)
	var users []model.User
	decode(t, resp, &users)
	if len(users) != 1 || users[0].ID != staffID {
		t.Errorf("expected only the staff member, got %+v", users)
	}

	resp = s.do(t, "DELETE", "/api/users/"+itoa(staffID), token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = s.do(t, "DELETE", "/api/users/"+itoa(staffID), token, nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "staff@example.com", "password": "password1"})
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestRequestIDAndMetrics(t *testing.T) {
	obs := &countingObserver{}
	s := newTestServer(t, obs)

	req, _ := http.NewRequest("GET", s.URL+"/api/items", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request id echoed, got %q", got)
	}

	resp = s.do(t, "GET", "/api/items", "", nil)
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}
	if n := obs.n.Load(); n != 2 {
		t.Errorf("expected 2 observed requests, got %d", n)
	}
}

func TestWriteEngineError(t *testing.T) {
	tests := []struct {
		kind   engine.Kind
		status int
	}{
		{engine.KindNotFound, http.StatusNotFound},
		{engine.KindUnavailable, http.StatusConflict},
		{engine.KindAlreadyProcessed, http.StatusConflict},
		{engine.KindInvalidState, http.StatusConflict},
		{engine.KindAlreadyRequested, http.StatusOK},
		{engine.KindForbidden, http.StatusForbidden},
		{engine.KindInvalidInput, http.StatusBadRequest},
		{engine.KindTransient, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/", nil)
			writeEngineError(rec, req, &engine.Error{Kind: tt.kind, Op: "test", Err: errors.New("cause")})
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.kind == engine.KindTransient && rec.Header().Get("Retry-After") == "" {
				t.Error("expected Retry-After on transient failure")
			}
		})
	}

	rec := httptest.NewRecorder()
	writeEngineError(rec, httptest.NewRequest("GET", "/", nil), errors.New("plain"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for non-engine error, got %d", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
