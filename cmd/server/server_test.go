package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// setTestEnv sets the env vars LoadConfig requires (PORT/HOST have no
// built-in default) and points the process at an isolated in-memory
// cache and disabled archive so SetupServer never reaches out to Redis
// or disk during a test run.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "0")
	t.Setenv("HOST", "localhost")
	t.Setenv("CACHE_USE_MEMORY", "true")
}

func TestSetupServer(t *testing.T) {
	setTestEnv(t)

	a := SetupServer()
	if a == nil || a.handler == nil {
		t.Fatal("SetupServer returned a nil app or handler")
	}

	testCases := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/healthz", http.StatusOK},
		{"GET", "/debug/rooms", http.StatusOK},
		{"GET", "/static/missing.js", http.StatusNotFound},
		{"GET", "/ws", http.StatusBadRequest}, // not a websocket upgrade request
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			a.handler.ServeHTTP(w, req)

			if w.Code != tc.expectedCode {
				t.Errorf("expected status %d, got %d", tc.expectedCode, w.Code)
			}
		})
	}
}

func TestHealthzReportsActiveRoomCount(t *testing.T) {
	setTestEnv(t)

	a := SetupServer()

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "0 active rooms") {
		t.Errorf("expected body to report zero active rooms, got %q", w.Body.String())
	}
}

func TestStaticFileServing(t *testing.T) {
	setTestEnv(t)

	tempDir := t.TempDir()
	oldDir, _ := os.Getwd()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldDir)

	if err := os.Mkdir("static", 0755); err != nil {
		t.Fatal(err)
	}
	testContent := "console.log('test');"
	if err := os.WriteFile("static/test.js", []byte(testContent), 0644); err != nil {
		t.Fatal(err)
	}

	a := SetupServer()

	testCases := []struct {
		name         string
		path         string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "existing static file",
			path:         "/static/test.js",
			expectedCode: http.StatusOK,
			expectedBody: testContent,
		},
		{
			name:         "non-existent static file",
			path:         "/static/missing.js",
			expectedCode: http.StatusNotFound,
			expectedBody: "",
		},
		{
			name:         "directory traversal attempt",
			path:         "/static/../main.go",
			expectedCode: http.StatusNotFound,
			expectedBody: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			w := httptest.NewRecorder()

			a.handler.ServeHTTP(w, req)

			if w.Code != tc.expectedCode {
				t.Errorf("expected status %d, got %d", tc.expectedCode, w.Code)
			}

			if tc.expectedBody != "" && w.Body.String() != tc.expectedBody {
				t.Errorf("expected body %q, got %q", tc.expectedBody, w.Body.String())
			}
		})
	}
}

func TestMiddlewareRecoversFromPanic(t *testing.T) {
	setTestEnv(t)
	// the healthz/debug routes can't panic on their own, so a panicking
	// route is added to the router; the Recoverer middleware installed on
	// the whole router turns the panic into a 500.
	a := SetupServer()
	mux, ok := a.handler.(*chi.Mux)
	if !ok {
		t.Fatalf("expected a *chi.Mux handler, got %T", a.handler)
	}
	mux.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	req := httptest.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
}
