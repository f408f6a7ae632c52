package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvparse/internal/config"
	"github.com/JonMunkholm/csvparse/internal/core"
	"github.com/JonMunkholm/csvparse/internal/parser"
	_ "github.com/JonMunkholm/csvparse/internal/schema/defs"
	"github.com/JonMunkholm/csvparse/internal/store"
)

type fakeRuns struct {
	runs  []store.Run
	err   error
	limit int
}

func (f *fakeRuns) RecentRuns(_ context.Context, limit int) ([]store.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

// failingRecorder rejects every save, as a database that is down would.
type failingRecorder struct{}

func (failingRecorder) RecordConversion(context.Context, store.Run, []*parser.SchemaError) (int64, error) {
	return 0, errors.New("connection refused")
}

func newTestServer(t *testing.T, runs RunLister) *Server {
	t.Helper()
	return newRecordingServer(t, nil, runs)
}

func newRecordingServer(t *testing.T, rec core.Recorder, runs RunLister) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			MaxUploadSize:  1 << 20,
			RequestTimeout: 5 * time.Second,
		},
		Parse:   config.ParseConfig{MaxLineBytes: 1 << 20},
		Convert: config.ConvertConfig{MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute},
	}
	return NewServer(cfg.Server, core.NewService(cfg, rec), runs)
}

// uploadRequest builds a multipart POST with the given file body and fields.
func uploadRequest(t *testing.T, target, filename, body string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, body)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Persisting)
	assert.Equal(t, 2, body.Limiter.Capacity)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListSchemas(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/schemas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []core.SchemaInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Subset(t, names, []string{"people", "students", "contacts"})
}

func TestConvertAPI_Validated(t *testing.T) {
	s := newTestServer(t, nil)

	req := uploadRequest(t, "/api/convert", "students.csv", "Alice,20,Yes\nBob,notanumber,No\n",
		map[string]string{"schema": "students"})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Source  string            `json:"source"`
		Schema  string            `json:"schema"`
		Records []json.RawMessage `json:"records"`
		Summary struct {
			Rows      int   `json:"rows"`
			Accepted  int   `json:"accepted"`
			Rejected  int   `json:"rejected"`
			BytesRead int64 `json:"bytesRead"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "students.csv", body.Source)
	assert.Equal(t, "students", body.Schema)
	assert.Equal(t, 2, body.Summary.Rows)
	assert.Equal(t, 1, body.Summary.Accepted)
	assert.Equal(t, 1, body.Summary.Rejected)
	assert.Equal(t, int64(len("Alice,20,Yes\nBob,notanumber,No\n")), body.Summary.BytesRead)

	require.Len(t, body.Records, 2)
	assert.JSONEq(t, `{"ok":true,"value":{"name":"Alice","age":20,"isStudent":"Yes"}}`, string(body.Records[0]))

	var rejected struct {
		OK    bool `json:"ok"`
		Error struct {
			RowIndex int      `json:"rowIndex"`
			Raw      []string `json:"raw"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body.Records[1], &rejected))
	assert.False(t, rejected.OK)
	assert.Equal(t, 1, rejected.Error.RowIndex)
	assert.Equal(t, []string{"Bob", "notanumber", "No"}, rejected.Error.Raw)
}

func TestConvertAPI_Raw(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "/api/convert", "motto.csv", "name,motto\nBob,\"i, love, cs32!\"\n", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rows [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, [][]string{{"name", "motto"}, {"Bob", `"i`, "love", `cs32!"`}}, body.Rows)
}

func TestConvertAPI_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown schema",
			req:        uploadRequest(t, "/api/convert", "a.csv", "a,b\n", map[string]string{"schema": "nope"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "SCH001",
		},
		{
			name:       "missing file",
			req:        uploadRequest(t, "/api/convert", "", "", map[string]string{"schema": "people"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
		{
			name:       "not multipart",
			req:        httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader("a,b")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestConvertPage_RendersReport(t *testing.T) {
	s := newTestServer(t, nil)

	req := uploadRequest(t, "/convert", "<script>.csv", "Alice,20,Yes\nBob,notanumber,No\n",
		map[string]string{"schema": "students"})
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, html, "<th>isStudent</th>")
	assert.Contains(t, html, "<td>Alice</td>")
	assert.Contains(t, html, "schema error at row 2")
	assert.Contains(t, html, "&lt;script&gt;.csv")
	assert.NotContains(t, html, "<script>")
}

func TestConvertPage_ErrorIsHTML(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, uploadRequest(t, "/convert", "a.csv", "x\n", map[string]string{"schema": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Code: SCH001")
}

func TestConvert_PersistFailureKeepsOutcome(t *testing.T) {
	const body = "Alice,20,Yes\nBob,notanumber,No\n"

	tests := []struct {
		name   string
		target string
		check  func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:   "api returns the outcome with a warning",
			target: "/api/convert",
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var got struct {
					Source  string            `json:"source"`
					Records []json.RawMessage `json:"records"`
					Warning *ErrorResponse    `json:"warning"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, "students.csv", got.Source)
				assert.Len(t, got.Records, 2)
				require.NotNil(t, got.Warning)
				assert.Equal(t, "STO001", got.Warning.Code)
			},
		},
		{
			name:   "page renders the report with a warning",
			target: "/convert",
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				html := rec.Body.String()
				assert.Contains(t, html, "<td>Alice</td>")
				assert.Contains(t, html, "This run was not recorded")
				assert.Contains(t, html, "STO001")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordingServer(t, failingRecorder{}, nil)
			rec := serve(s, uploadRequest(t, tt.target, "students.csv", body, map[string]string{"schema": "students"}))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			tt.check(t, rec)
		})
	}
}

func TestConvertAPI_NoWarningWhenSaved(t *testing.T) {
	rec := serve(newTestServer(t, nil), uploadRequest(t, "/api/convert", "a.csv", "a,b\n", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"warning"`)
}

func TestConvertPage_TruncatesLongReports(t *testing.T) {
	body := strings.Repeat("x\n", maxReportRows+5)
	rec := serve(newTestServer(t, nil), uploadRequest(t, "/convert", "long.csv", body, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	html := rec.Body.String()
	assert.Contains(t, html, "<th>Fields</th>")
	assert.Equal(t, maxReportRows, strings.Count(html, "<td>x</td>"))
	assert.Contains(t, html, "Showing the first 500 of 505 rows.")
}

func TestIndex_ListsSchemas(t *testing.T) {
	s := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="people">`)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
}

func TestRecentRuns(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := serve(newTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/api/runs", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("lists runs", func(t *testing.T) {
		runs := &fakeRuns{runs: []store.Run{{ID: uuid.New(), Source: "people.csv", Rows: 5}}}
		rec := serve(newTestServer(t, runs), httptest.NewRequest(http.MethodGet, "/api/runs?limit=3", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, runs.limit)

		var got []store.Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "people.csv", got[0].Source)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := serve(newTestServer(t, &fakeRuns{}), httptest.NewRequest(http.MethodGet, "/api/runs?limit=zero", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store error", func(t *testing.T) {
		runs := &fakeRuns{err: errors.New("connection refused")}
		rec := serve(newTestServer(t, runs), httptest.NewRequest(http.MethodGet, "/api/runs", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "STO001", body.Code)
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(core.ErrTooManyConversions))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(&http.MaxBytesError{Limit: 1}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
