package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/djav1985/v-axion-ai/core"
)

const (
	httpDefaultTimeout = 30 * time.Second
	httpMaxTimeout     = 120 * time.Second
	httpUserAgent      = "v-axion-ai/1.0 (+https://vontainment.com)"
	httpCacheTTL       = 60 * time.Second
	httpMaxBody        = 1 << 20
)

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "OPTIONS": true, "HEAD": true,
}

type httpArgs struct {
	Action  string            `json:"action"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Timeout float64           `json:"timeout"`
}

// registerHTTPTool adds http.request: an HTTP client with three modes
// (headers, request, source) and a short-TTL ristretto cache for
// idempotent GETs so tight actor loops do not hammer the same URL.
func registerHTTPTool(r *Registry) error {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return fmt.Errorf("http cache: %w", err)
	}

	schema := ObjectSchema(map[string]interface{}{
		"action":  StringEnumProperty("Which operation to perform", "headers", "request", "source"),
		"method":  StringEnumProperty("HTTP method for 'request'", "GET", "POST", "OPTIONS", "HEAD"),
		"url":     StringProperty("Target URL (http or https)"),
		"headers": ObjectProperty("Extra request headers"),
		"body":    StringProperty("Raw request body for POST"),
		"timeout": NumberProperty("Request timeout in seconds (1-120)"),
	}, "action", "url")

	return r.Register(NewTool("http.request",
		"HTTP client (GET, POST, OPTIONS, HEAD). Fetch headers, call APIs, or pull page source.",
		schema,
		func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
			var in httpArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return fail("bad arguments: %v", err), nil
			}
			if in.Method == "" {
				in.Method = "GET"
			}
			in.Method = strings.ToUpper(in.Method)
			if !httpMethods[in.Method] {
				return fail("unsupported method: %s", in.Method), nil
			}
			if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
				return fail("url must be http or https: %s", in.URL), nil
			}

			// headers mode is a HEAD, source mode is a GET.
			switch in.Action {
			case "headers":
				in.Method = "HEAD"
			case "source":
				in.Method = "GET"
			case "request":
			default:
				return fail("unknown action: %s", in.Action), nil
			}

			cacheable := in.Method == "GET" && in.Body == ""
			cacheKey := in.Action + " " + in.URL
			if cacheable {
				if hit, found := cache.Get(cacheKey); found {
					if payload, okPayload := hit.(map[string]any); okPayload {
						return ok(payload), nil
					}
				}
			}

			timeout := httpDefaultTimeout
			if in.Timeout >= 1 {
				timeout = time.Duration(in.Timeout * float64(time.Second))
				if timeout > httpMaxTimeout {
					timeout = httpMaxTimeout
				}
			}
			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			var body io.Reader
			if in.Body != "" && in.Method == "POST" {
				body = strings.NewReader(in.Body)
			}
			req, err := http.NewRequestWithContext(reqCtx, in.Method, in.URL, body)
			if err != nil {
				return fail("build request: %v", err), nil
			}
			req.Header.Set("User-Agent", httpUserAgent)
			for k, v := range in.Headers {
				req.Header.Set(k, v)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fail("%s %s: %v", in.Method, in.URL, err), nil
			}
			defer resp.Body.Close()

			payload := map[string]any{
				"action": in.Action,
				"status": resp.StatusCode,
				"url":    resp.Request.URL.String(),
				"method": in.Method,
			}
			headers := make(map[string]string, len(resp.Header))
			for k := range resp.Header {
				headers[k] = resp.Header.Get(k)
			}
			payload["headers"] = headers

			if in.Action != "headers" && in.Method != "HEAD" && in.Method != "OPTIONS" {
				raw, err := io.ReadAll(io.LimitReader(resp.Body, httpMaxBody))
				if err != nil {
					return fail("read body: %v", err), nil
				}
				text := string(raw)
				if in.Action == "request" {
					var parsed any
					if json.Unmarshal(raw, &parsed) == nil {
						payload["json"] = parsed
					} else {
						payload["text"] = text
					}
				} else {
					payload["content_type"] = resp.Header.Get("Content-Type")
					payload["text"] = text
				}
			}

			if cacheable && resp.StatusCode < 500 {
				cache.SetWithTTL(cacheKey, payload, int64(len(fmt.Sprint(payload))), httpCacheTTL)
			}
			return ok(payload), nil
		}))
}
