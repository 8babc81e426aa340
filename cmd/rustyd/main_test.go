package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url+"/compile", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestCompileEndpoint(t *testing.T) {
	ts := httptest.NewServer(newHandler())
	defer ts.Close()

	resp, data := post(t, ts.URL, `{"code": "fn main() { println!(\"hi\"); }"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var out compileResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out.Assembly, "main:")
	assert.Contains(t, out.Assembly, `.string "hi\n"`)
	assert.Empty(t, out.CompilerOutput)
}

func TestCompileEndpointErrors(t *testing.T) {
	ts := httptest.NewServer(newHandler())
	defer ts.Close()

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"Lexical", `{"code": "fn main() { let s = \"open; }"}`, "lex error: "},
		{"Syntax", `{"code": "fn main() { let = 1; }"}`, "parse error: "},
		{"Undefined Name", `{"code": "fn main() { y = 1; }"}`, "name error: "},
		{"Type", `{"code": "fn main() { let b: bool = 3; }"}`, "type error: type mismatch: expected bool, got i32"},
		{"Malformed JSON", `{"code": `, "invalid request: "},
		{"Missing Code", `{"source": "fn main() { }"}`, `invalid request: missing field "code"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := post(t, ts.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var out errorResponse
			require.NoError(t, json.Unmarshal(data, &out))
			assert.True(t, strings.HasPrefix(out.Detail, tt.detail), out.Detail)
		})
	}
}

func TestCompileEndpointMethods(t *testing.T) {
	h := newHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compile", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/compile", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(`{"code": ""}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompileEndpointBodyLimit(t *testing.T) {
	ts := httptest.NewServer(newHandler())
	defer ts.Close()

	body := `{"code": "` + strings.Repeat(" ", maxSourceBytes) + `fn main() { }"}`
	resp, data := post(t, ts.URL, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "invalid request: ")
}
