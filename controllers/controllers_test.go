package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"laptop_tracker/app"
	"laptop_tracker/db"
	"laptop_tracker/lifecycle"
	"laptop_tracker/memstore"
	"laptop_tracker/models"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeActions struct {
	mu      sync.Mutex
	entries []models.ActionLog
	fail    bool
}

func (f *fakeActions) LogAction(_ context.Context, actorID, actorUsername, action, target string, detail *string) (*models.ActionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("insert action log: connection refused")
	}
	e := models.ActionLog{ID: fmt.Sprint(len(f.entries) + 1), ActorID: actorID, ActorUsername: actorUsername, Action: action, Target: target, Detail: detail}
	f.entries = append(f.entries, e)
	return &e, nil
}

func (f *fakeActions) ListActions(_ context.Context, q db.ActionLogQuery) ([]models.ActionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ActionLog
	for i := len(f.entries) - 1; i >= 0; i-- {
		if q.Action == "" || f.entries[i].Action == q.Action {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeActions) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action+" "+e.Target)
	}
	return out
}

type harness struct {
	r       *gin.Engine
	lc      *lifecycle.Coordinator
	actions *fakeActions
}

// newHarness wires the inventory routes without the auth middleware; the
// actor is injected directly.
func newHarness(t *testing.T) *harness {
	t.Helper()
	lc := lifecycle.New(memstore.New())
	actions := &fakeActions{}
	laptops := NewLaptopController(lc, actions)
	directory := NewDirectoryController(lc, actions)
	history := NewHistoryController(lc, actions)

	r := gin.New()
	r.GET("/api/board", laptops.Board)
	r.GET("/api/laptops", laptops.ListLaptops)
	r.GET("/api/laptops/:id", laptops.GetLaptop)

	admin := r.Group("/api", func(c *gin.Context) {
		c.Set(app.CtxAccountID, "6f1c1f4e-0000-4000-8000-000000000001")
		c.Set(app.CtxUsername, "ops@example.com")
		c.Next()
	})
	admin.POST("/laptops", laptops.CreateLaptop)
	admin.PATCH("/laptops/:id", laptops.EditLaptop)
	admin.DELETE("/laptops/:id", laptops.DeleteLaptop)
	admin.POST("/laptops/:id/checkout", laptops.CheckOut)
	admin.POST("/laptops/:id/checkin", laptops.CheckIn)
	admin.POST("/laptops/:id/maintenance", laptops.SetMaintenance)
	admin.GET("/assignments", history.ListAssignments)
	admin.GET("/assignments/:id", history.GetAssignment)
	admin.GET("/stats", history.Stats)
	admin.GET("/consistency", history.Consistency)
	admin.GET("/actions", history.ListActions)
	admin.GET("/persons", directory.ListPersons)
	admin.POST("/persons", directory.CreatePerson)
	admin.PUT("/persons/:id", directory.RenamePerson)
	admin.DELETE("/persons/:id", directory.DeletePerson)
	admin.GET("/biometrics", directory.ListBiometrics)
	admin.POST("/biometrics", directory.CreateBiometric)
	admin.PUT("/biometrics/:id", directory.UpdateBiometric)
	admin.DELETE("/biometrics/:id", directory.DeleteBiometric)

	return &harness{r: r, lc: lc, actions: actions}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func (h *harness) expect(t *testing.T, method, path string, body any, want int) map[string]any {
	t.Helper()
	w := h.do(t, method, path, body)
	if w.Code != want {
		t.Fatalf("%s %s = %d, want %d: %s", method, path, w.Code, want, w.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	h.expect(t, "POST", "/api/persons", app.H{"name": "Lic. A"}, http.StatusCreated)
	h.expect(t, "POST", "/api/persons", app.H{"name": "Lic. B"}, http.StatusCreated)
	h.expect(t, "POST", "/api/biometrics", app.H{"serialNumber": "bio-100"}, http.StatusCreated)
	h.expect(t, "POST", "/api/laptops", app.H{"id": "LT-001", "brand": "Dell", "model": "Latitude 5440", "serialNumber": "DL-5440-A"}, http.StatusCreated)
	h.expect(t, "POST", "/api/laptops", app.H{"id": "LT-002", "brand": "Lenovo", "model": "ThinkPad T14", "serialNumber": "LN-T14-B"}, http.StatusCreated)
}

func TestCheckoutCheckinFlow(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	out := h.expect(t, "POST", "/api/laptops/LT-001/checkout", app.H{"personName": "lic. a", "biometricSerial": "BIO-100"}, http.StatusCreated)
	laptop := out["laptop"].(map[string]any)
	if laptop["status"] != "in-use" || laptop["currentHolder"] != "Lic. A" || laptop["biometricSerial"] != "BIO-100" {
		t.Fatalf("unexpected laptop after checkout: %v", laptop)
	}
	assignmentID := out["assignment"].(map[string]any)["id"].(string)

	// second checkout of the same laptop conflicts
	out = h.expect(t, "POST", "/api/laptops/LT-001/checkout", app.H{"personName": "Lic. B"}, http.StatusConflict)
	if out["code"] != "invalid_transition" {
		t.Fatalf("code = %v", out["code"])
	}

	got := h.expect(t, "GET", "/api/laptops/LT-001", nil, http.StatusOK)
	if got["assignment"].(map[string]any)["id"] != assignmentID {
		t.Fatalf("detail should carry the open assignment: %v", got)
	}

	h.expect(t, "POST", "/api/laptops/LT-001/checkin", app.H{"returnNotes": "fine"}, http.StatusOK)
	// nothing left to close
	out = h.expect(t, "POST", "/api/laptops/LT-001/checkin", nil, http.StatusConflict)
	if out["code"] != "no_active_assignment" {
		t.Fatalf("code = %v", out["code"])
	}

	a := h.expect(t, "GET", "/api/assignments/"+assignmentID, nil, http.StatusOK)
	if a["returnNotes"] != "fine" || a["returnedAt"] == nil {
		t.Fatalf("assignment not closed: %v", a)
	}

	want := []string{
		"person.create", "person.create", "biometric.create", "laptop.create", "laptop.create",
		"laptop.checkout LT-001", "laptop.checkin LT-001",
	}
	got2 := h.actions.actions()
	if len(got2) != len(want) || got2[5] != want[5] || got2[6] != want[6] {
		t.Fatalf("actions = %v", got2)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", "POST", "/api/laptops", "not an object", http.StatusBadRequest},
		{"missing fields", "POST", "/api/laptops", app.H{"id": "LT-9"}, http.StatusBadRequest},
		{"duplicate id", "POST", "/api/laptops", app.H{"id": "LT-001", "brand": "B", "model": "M", "serialNumber": "NEW-1"}, http.StatusConflict},
		{"duplicate serial", "POST", "/api/laptops", app.H{"id": "LT-9", "brand": "B", "model": "M", "serialNumber": "dl-5440-a"}, http.StatusConflict},
		{"unknown laptop", "GET", "/api/laptops/LT-404", nil, http.StatusNotFound},
		{"unknown person", "POST", "/api/laptops/LT-001/checkout", app.H{"personName": "Nobody"}, http.StatusNotFound},
		{"blank person", "POST", "/api/laptops/LT-001/checkout", app.H{"personName": "  "}, http.StatusBadRequest},
		{"maintenance flag missing", "POST", "/api/laptops/LT-001/maintenance", app.H{}, http.StatusBadRequest},
		{"bad history sort", "GET", "/api/assignments?sortBy=colour", nil, http.StatusBadRequest},
		{"duplicate person", "POST", "/api/persons", app.H{"name": "LIC.  a"}, http.StatusConflict},
		{"unknown assignment", "GET", "/api/assignments/01J00000000000000000000000", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h.expect(t, tc.method, tc.path, tc.body, tc.want)
		})
	}
}

func TestMaintenanceAndDelete(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	h.expect(t, "POST", "/api/laptops/LT-002/maintenance", app.H{"inMaintenance": true}, http.StatusOK)
	h.expect(t, "POST", "/api/laptops/LT-002/checkout", app.H{"personName": "Lic. A"}, http.StatusConflict)
	h.expect(t, "DELETE", "/api/laptops/LT-002", nil, http.StatusConflict)
	h.expect(t, "POST", "/api/laptops/LT-002/maintenance", app.H{"inMaintenance": false}, http.StatusOK)

	l := h.expect(t, "PATCH", "/api/laptops/LT-002", app.H{"model": "ThinkPad T14 Gen 4"}, http.StatusOK)
	if l["model"] != "ThinkPad T14 Gen 4" || l["brand"] != "Lenovo" {
		t.Fatalf("patch applied wrongly: %v", l)
	}
	h.expect(t, "DELETE", "/api/laptops/LT-002", nil, http.StatusOK)
	h.expect(t, "GET", "/api/laptops/LT-002", nil, http.StatusNotFound)
}

func TestBoardAndHistory(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	h.expect(t, "POST", "/api/laptops/LT-001/checkout", app.H{"personName": "Lic. B"}, http.StatusCreated)
	h.expect(t, "POST", "/api/laptops/LT-001/checkin", nil, http.StatusOK)
	h.expect(t, "POST", "/api/laptops/LT-002/checkout", app.H{"personName": "Lic. A"}, http.StatusCreated)

	b := h.expect(t, "GET", "/api/board", nil, http.StatusOK)
	stats := b["stats"].(map[string]any)
	if stats["total"] != 2.0 || stats["inUse"] != 1.0 || stats["openAssignments"] != 1.0 || stats["returnedAssignments"] != 1.0 {
		t.Fatalf("stats = %v", stats)
	}

	hist := h.expect(t, "GET", "/api/assignments?state=returned", nil, http.StatusOK)
	if hist["total"] != 1.0 {
		t.Fatalf("returned rows = %v", hist)
	}
	hist = h.expect(t, "GET", "/api/assignments?q=thinkpad", nil, http.StatusOK)
	rows := hist["assignments"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["laptopId"] != "LT-002" {
		t.Fatalf("search by model = %v", rows)
	}

	c := h.expect(t, "GET", "/api/consistency", nil, http.StatusOK)
	if c["consistent"] != true || len(c["issues"].([]any)) != 0 {
		t.Fatalf("consistency = %v", c)
	}

	acts := h.expect(t, "GET", "/api/actions?action=laptop.checkout", nil, http.StatusOK)
	if n := len(acts["actions"].([]any)); n != 2 {
		t.Fatalf("checkout actions = %d", n)
	}
}

func TestActionLogFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness(t)
	h.actions.fail = true
	h.expect(t, "POST", "/api/persons", app.H{"name": "Lic. A"}, http.StatusCreated)
}

func TestDirectoryRules(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	persons := h.expect(t, "GET", "/api/persons", nil, http.StatusOK)["persons"].([]any)
	var idA string
	for _, p := range persons {
		if m := p.(map[string]any); m["name"] == "Lic. A" {
			idA = m["id"].(string)
		}
	}
	if idA == "" {
		t.Fatalf("Lic. A missing: %v", persons)
	}

	h.expect(t, "POST", "/api/laptops/LT-001/checkout", app.H{"personName": "Lic. A"}, http.StatusCreated)
	// holder cannot be renamed or removed
	h.expect(t, "PUT", "/api/persons/"+idA, app.H{"name": "Lic. A. Pérez"}, http.StatusConflict)
	h.expect(t, "DELETE", "/api/persons/"+idA, nil, http.StatusConflict)
	h.expect(t, "POST", "/api/laptops/LT-001/checkin", nil, http.StatusOK)
	h.expect(t, "PUT", "/api/persons/"+idA, app.H{"name": "Lic. A. Pérez"}, http.StatusOK)

	bios := h.expect(t, "GET", "/api/biometrics", nil, http.StatusOK)["biometrics"].([]any)
	bioID := bios[0].(map[string]any)["id"].(string)
	h.expect(t, "PATCH", "/api/laptops/LT-002", app.H{"biometricSerial": "BIO-100"}, http.StatusOK)
	h.expect(t, "PUT", "/api/biometrics/"+bioID, app.H{"serialNumber": "bio-200"}, http.StatusOK)

	l := h.expect(t, "GET", "/api/laptops/LT-002", nil, http.StatusOK)["laptop"].(map[string]any)
	if l["biometricSerial"] != "BIO-200" {
		t.Fatalf("reader serial change should follow the link: %v", l)
	}
	h.expect(t, "DELETE", "/api/biometrics/"+bioID, nil, http.StatusConflict)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: brand is required", lifecycle.ErrValidation), http.StatusBadRequest},
		{lifecycle.ErrNotFound, http.StatusNotFound},
		{lifecycle.ErrDuplicateName, http.StatusConflict},
		{lifecycle.ErrInvalidState, http.StatusConflict},
		{lifecycle.ErrNoActiveAssignment, http.StatusConflict},
		{lifecycle.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	if _, err := hashPassword("short"); !errors.Is(err, errPasswordTooShort) {
		t.Fatalf("short password: %v", err)
	}
	h, err := hashPassword("correct horse")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if !passwordMatches(h, "correct horse") || passwordMatches(h, "wrong horse!") {
		t.Fatal("bcrypt comparison wrong")
	}
	if passwordMatches("", "anything") {
		t.Fatal("passkey-only account must not accept a password")
	}
}
