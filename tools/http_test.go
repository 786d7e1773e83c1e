package tools_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPRequestParsesJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"n":3}`))
	}))
	defer srv.Close()

	r := builtin(t, []string{"all"}, []string{"all"})
	res := invoke(t, r, "http.request", map[string]any{"action": "request", "url": srv.URL})
	if !res.Success {
		t.Fatalf("request failed: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if data["status"] != 200 {
		t.Fatalf("unexpected status: %v", data["status"])
	}
	body, ok := data["json"].(map[string]any)
	if !ok {
		t.Fatalf("expected parsed JSON body, got %v", data)
	}
	if body["ok"] != true || body["n"] != float64(3) {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHTTPHeadersModeOmitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("X-Probe", "yes")
		w.Write([]byte("ignored"))
	}))
	defer srv.Close()

	r := builtin(t, []string{"all"}, []string{"all"})
	res := invoke(t, r, "http.request", map[string]any{"action": "headers", "url": srv.URL})
	if !res.Success {
		t.Fatalf("headers failed: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if _, hasText := data["text"]; hasText {
		t.Fatal("headers mode must not include a body")
	}
	headers := data["headers"].(map[string]string)
	if headers["X-Probe"] != "yes" {
		t.Fatalf("missing probed header: %v", headers)
	}
}

func TestHTTPSourceModeReturnsRawText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hi</html>"))
	}))
	defer srv.Close()

	r := builtin(t, []string{"all"}, []string{"all"})
	res := invoke(t, r, "http.request", map[string]any{"action": "source", "url": srv.URL})
	if !res.Success {
		t.Fatalf("source failed: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if data["text"] != "<html>hi</html>" {
		t.Fatalf("unexpected text: %v", data["text"])
	}
	if data["content_type"] != "text/html" {
		t.Fatalf("unexpected content type: %v", data["content_type"])
	}
}
