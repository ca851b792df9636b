package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/engine"
)

const salesCSV = "region,sales\nN,10\nS,5\nN,7\n"

func newTestServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(salesCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ragged.csv"), []byte("a,b\n1,2\n3\n"), 0o644))
	e, err := engine.New(engine.Options{Resolver: engine.DirResolver{Root: dir}})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	return New(e, opts), opts.UploadDir
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorKind(t *testing.T, body map[string]any) string {
	t.Helper()
	assert.Equal(t, false, body["success"])
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "error object: %v", body)
	return e["kind"].(string)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestFunctions(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/functions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	catalog := body["catalog"].(map[string]any)
	assert.Len(t, catalog["operations"], len(engine.Operations()))
}

func TestProcessJSON(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec, body := do(t, s, postJSON("/api/process",
		`{"operation":"aggregate","params":{"file":"sales.csv","group_by":["region"],"aggregations":{"sales":"sum"}}}`))
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "aggregate", body["operation"])
	assert.NotEmpty(t, body["id"])
	result := body["result"].(map[string]any)
	assert.Contains(t, result, "aggregate")
}

func TestOperationRoute(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec, body := do(t, s, postJSON("/api/operations/profile", `{"file":"sales.csv"}`))
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, "profile", body["operation"])

	rec, body = do(t, s, postJSON("/api/operations/list", ""))
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Contains(t, body["result"], "catalog")
}

func TestErrorStatusMapping(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	cases := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"unknown operation", `{"operation":"nope"}`, http.StatusBadRequest, "validation_error"},
		{"missing file", `{"operation":"profile","params":{"file":"missing.csv"}}`, http.StatusNotFound, "not_found"},
		{"escape", `{"operation":"profile","params":{"file":"../sales.csv"}}`, http.StatusNotFound, "not_found"},
		{"ragged csv", `{"operation":"profile","params":{"file":"ragged.csv"}}`, http.StatusUnprocessableEntity, "parse_error"},
		{"unknown column", `{"operation":"aggregate","params":{"file":"sales.csv","aggregations":{"nope":"sum"}}}`, http.StatusBadRequest, "validation_error"},
		{"malformed body", `{"operation":`, http.StatusBadRequest, "validation_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, s, postJSON("/api/process", tc.body))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, errorKind(t, body))
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, Options{MaxUploadBytes: 16})
	rec, body := do(t, s, postJSON("/api/process", `{"operation":"profile","params":{"file":"sales.csv"}}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "validation_error", errorKind(t, body))
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string]string, order []string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, name := range order {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestProcessUploadBindsFiles(t *testing.T) {
	s, uploadDir := newTestServer(t, Options{})
	files := map[string]string{"left.csv": "id,v\n1,2\n", "right.csv": "id,v\n1,2\n"}
	req := multipartRequest(t, map[string]string{"operation": "compare"}, files, []string{"left.csv", "right.csv"})

	rec, body := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, []any{"left.csv", "right.csv"}, body["files"])
	cmpRes := body["result"].(map[string]any)["comparison"].(map[string]any)
	assert.Equal(t, true, cmpRes["identical"])

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "upload session removed")
}

func TestProcessUploadExplicitParams(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	req := multipartRequest(t,
		map[string]string{"function": "profile", "params": `{"file":"b.csv","top_values":1}`},
		map[string]string{"a.csv": "x\n1\n", "b.csv": "y\nq\nq\nr\n"},
		[]string{"a.csv", "b.csv"})

	rec, body := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, []any{"b.csv"}, body["files"])
}

func TestProcessUploadErrors(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	req := multipartRequest(t, map[string]string{"operation": "profile"}, nil, nil)
	rec, body := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(t, body))

	req = multipartRequest(t, map[string]string{"operation": "profile", "params": "[1]"},
		map[string]string{"a.csv": "x\n1\n"}, []string{"a.csv"})
	rec, body = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(t, body))

	// uploads never reach the data directory
	req = multipartRequest(t, map[string]string{"operation": "profile", "params": `{"file":"sales.csv"}`},
		map[string]string{"a.csv": "x\n1\n"}, []string{"a.csv"})
	rec, body = do(t, s, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, body))
}

func TestProcessUploadHistoricalFunctionNames(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	files := map[string]string{"a.csv": "id,v\n1,x\n2,y\n", "b.csv": "id,w\n1,p\n"}
	req := multipartRequest(t, map[string]string{"function": "merge_dataframes", "args": "id"}, files, []string{"a.csv", "b.csv"})
	rec, body := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, "merge", body["operation"])

	req = multipartRequest(t, map[string]string{"function": "aggregate_dataframe", "args": "region, sales"},
		map[string]string{"s.csv": salesCSV}, []string{"s.csv"})
	rec, body = do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Equal(t, "aggregate", body["operation"])
	assert.Equal(t, "2 rows x 2 columns", body["message"])

	req = multipartRequest(t, map[string]string{"function": "profile_dataframe", "args": "x", "params": "{}"},
		map[string]string{"s.csv": salesCSV}, []string{"s.csv"})
	rec, body = do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorKind(t, body))
}

func TestPositionalParams(t *testing.T) {
	cases := []struct {
		op, args, want string
	}{
		{"merge", "id", `{"on":["id"]}`},
		{"aggregate", "g,v", `{"group_by":["g"],"aggregations":[{"column":"v","function":"sum"}]}`},
		{"aggregate", "g,v,mean", `{"group_by":["g"],"aggregations":[{"column":"v","function":"mean"}]}`},
		{"pivot", "r, q ,s", `{"index":"r","columns":"q","values":"s"}`},
		{"pivot", "r,q,s,max", `{"index":"r","columns":"q","values":"s","func":"max"}`},
		{"detect_anomalies", "x", `{"columns":["x"]}`},
		{"correlation", "a,b", `{"columns":["a","b"]}`},
	}
	for _, tc := range cases {
		got, err := positionalParams(tc.op, tc.args)
		require.NoError(t, err, tc.op)
		assert.JSONEq(t, tc.want, string(got), tc.op+" "+tc.args)
	}
	for _, bad := range [][2]string{{"aggregate", "g"}, {"pivot", "r,q"}, {"profile", "x"}} {
		_, err := positionalParams(bad[0], bad[1])
		assert.Equal(t, dataset.KindValidation, dataset.KindOf(err), bad[0])
	}
	assert.Equal(t, "data_quality", operationName(" Data_Quality_Check "))
	assert.Equal(t, "compare", operationName("compare"))
}

func TestBindUploads(t *testing.T) {
	names := []string{"a.csv", "b.csv"}
	cases := []struct {
		op, raw, want string
	}{
		{"validate_schema", "", `{"files":["a.csv","b.csv"]}`},
		{"merge", `{"on":["id"]}`, `{"left":"a.csv","on":["id"],"right":"b.csv"}`},
		{"PROFILE", `{"file":"b.csv"}`, `{"file":"b.csv"}`},
		{"list", "", `{}`},
	}
	for _, tc := range cases {
		got, err := bindUploads(tc.op, json.RawMessage(tc.raw), names)
		require.NoError(t, err, tc.op)
		assert.JSONEq(t, tc.want, string(got), tc.op)
	}
	got, err := bindUploads("bogus", nil, names)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor("internal_error"))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor("computation_error"))
}
