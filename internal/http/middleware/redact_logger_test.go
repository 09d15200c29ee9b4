package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

func lastLine(t *testing.T, s string) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("bad log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestAccessLog_MasksSecretsAndUsesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), AccessLog(RedactOptions{MaskHeaders: []string{" X-Api-Key "}}))
	r.POST("/webhook/:token", func(c *gin.Context) {
		c.Set(ChatIDKey, int64(42))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook/"+testToken+"?who=ann@example.com", nil)
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	req.Header.Set("X-Api-Key", "k")
	req.Header.Set("Authorization", "Bearer x")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, testToken) || strings.Contains(out, "s3cret") || strings.Contains(out, "ann@example.com") {
		t.Fatalf("secret leaked into access log: %s", out)
	}
	m := lastLine(t, out)
	if m["path"] != "/webhook/:token" || m["level"] != "info" || m["chat_id"] != float64(42) {
		t.Fatalf("unexpected log fields: %v", m)
	}
	headers := m["headers"].(map[string]any)
	for _, h := range []string{"X-Telegram-Bot-Api-Secret-Token", "X-Api-Key", "Authorization"} {
		if headers[h] != "[REDACTED]" {
			t.Fatalf("header %s not masked: %v", h, headers[h])
		}
	}
}

func TestAccessLog_LevelsAndUnmatchedPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(AccessLog(RedactOptions{}))
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/err", func(c *gin.Context) {
		_ = c.Error(http.ErrAbortHandler)
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	if m := lastLine(t, buf.String()); m["level"] != "warn" {
		t.Fatalf("4xx should log at warn: %v", m)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/err", nil))
	if m := lastLine(t, buf.String()); m["level"] != "error" || m["errors"] == nil {
		t.Fatalf("gin errors should log at error: %v", m)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/"+testToken, nil))
	m := lastLine(t, buf.String())
	if m["path"] != "/nope/[REDACTED:token]" {
		t.Fatalf("unmatched path not redacted: %v", m["path"])
	}
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"":                        "",
		"plain":                   "plain",
		"mail a.b@ex.io now":      "mail [REDACTED:email] now",
		"call 212-555-1212":       "call [REDACTED:phone]",
		"t=" + testToken:          "t=[REDACTED:token]",
		"order ABCD1234 for Menu": "order ABCD1234 for Menu",
	}
	for in, want := range cases {
		if got := redact(in); got != want {
			t.Fatalf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}
