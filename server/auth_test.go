package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zenazn/goji/web"
)

// The middleware must tolerate a nil env map, which is what goji hands it
// when it runs before route matching.
func TestAuthMiddlewareNilEnv(t *testing.T) {
	svc := &Service{config: &Config{}}
	svc.config.Auth.OpenAccess = true

	c := &web.C{} // Env deliberately nil
	var sawUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUser = requestUser(*c)
	})
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	svc.isAuthorized(c, next).ServeHTTP(rec, req)

	if sawUser != "anonymous" {
		t.Errorf("open access user = %q, want anonymous", sawUser)
	}
}

func TestAuthMiddlewareBearerNilEnv(t *testing.T) {
	svc := &Service{config: &Config{}}
	svc.config.Auth.SecretKey = "test-secret"

	token, err := svc.GenerateJWT("carol")
	if err != nil {
		t.Fatalf("unable to generate JWT: %v", err)
	}

	c := &web.C{}
	var sawUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUser = requestUser(*c)
	})
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	svc.isAuthorized(c, next).ServeHTTP(rec, req)

	if sawUser != "carol" {
		t.Errorf("authenticated user = %q, want carol", sawUser)
	}
}
