package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ResponseAssertion chains checks against one API response. The body is
// read once, on first use.
type ResponseAssertion struct {
	t    *testing.T
	resp *http.Response
	body *string
}

// AssertResponse starts a chain of assertions on resp
func AssertResponse(t *testing.T, resp *http.Response) *ResponseAssertion {
	t.Helper()
	return &ResponseAssertion{t: t, resp: resp}
}

func (ra *ResponseAssertion) text() string {
	if ra.body == nil {
		defer ra.resp.Body.Close()
		raw, err := io.ReadAll(ra.resp.Body)
		require.NoError(ra.t, err, "reading response body")
		s := string(raw)
		ra.body = &s
	}
	return *ra.body
}

// Status checks the status code, printing the start of the body on mismatch
func (ra *ResponseAssertion) Status(code int) *ResponseAssertion {
	ra.t.Helper()
	assert.Equal(ra.t, code, ra.resp.StatusCode, "status; body: %s", clip(ra.text(), 300))
	return ra
}

func (ra *ResponseAssertion) StatusOK() *ResponseAssertion {
	ra.t.Helper()
	return ra.Status(http.StatusOK)
}

// ContentType checks that the Content-Type header contains expected
func (ra *ResponseAssertion) ContentType(expected string) *ResponseAssertion {
	ra.t.Helper()
	return ra.Header("Content-Type", expected)
}

func (ra *ResponseAssertion) ContentTypeJSON() *ResponseAssertion {
	ra.t.Helper()
	return ra.ContentType("application/json")
}

// Header checks that a response header contains expected
func (ra *ResponseAssertion) Header(name, expected string) *ResponseAssertion {
	ra.t.Helper()
	assert.Contains(ra.t, ra.resp.Header.Get(name), expected, "header %s", name)
	return ra
}

func (ra *ResponseAssertion) Contains(substr string) *ResponseAssertion {
	ra.t.Helper()
	if body := ra.text(); !strings.Contains(body, substr) {
		ra.t.Errorf("Expected body to contain %q.\nBody (first 500 chars): %s", substr, clip(body, 500))
	}
	return ra
}

func (ra *ResponseAssertion) ContainsAll(substrs ...string) *ResponseAssertion {
	ra.t.Helper()
	for _, substr := range substrs {
		ra.Contains(substr)
	}
	return ra
}

func (ra *ResponseAssertion) NotContains(substr string) *ResponseAssertion {
	ra.t.Helper()
	assert.NotContains(ra.t, ra.text(), substr)
	return ra
}

// ErrorContains decodes the {"error": ...} body every failing handler
// writes and checks its message
func (ra *ResponseAssertion) ErrorContains(substr string) *ResponseAssertion {
	ra.t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	ra.JSON(&e)
	assert.NotEmpty(ra.t, e.Error, "error message")
	assert.Contains(ra.t, e.Error, substr)
	return ra
}

// JSON decodes the body into v, stopping the test on invalid JSON
func (ra *ResponseAssertion) JSON(v any) *ResponseAssertion {
	ra.t.Helper()
	body := ra.text()
	require.NoError(ra.t, json.Unmarshal([]byte(body), v), "decoding body: %s", clip(body, 500))
	return ra
}

// Body returns the raw body
func (ra *ResponseAssertion) Body() string {
	return ra.text()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
