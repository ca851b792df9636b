package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/engine"
	"github.com/KaramelBytes/dfops/internal/logging"
)

type executeFunc func(context.Context, engine.Request) (*engine.Response, error)

type processResponse struct {
	Success bool `json:"success"`
	*engine.Response
}

type functionsResponse struct {
	Success bool                 `json:"success"`
	Catalog engine.CatalogResult `json:"catalog"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.engine.Health())
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, functionsResponse{Success: true, Catalog: engine.Catalog()})
}

// handleProcess accepts a JSON request naming files under the data
// directory, or a multipart form carrying the files themselves.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		s.handleUpload(w, r)
		return
	}

	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, bodyError(err))
		return
	}
	s.execute(w, r, s.engine.Execute, req)
}

// handleOperation takes the operation from the path and the params from
// the body.
func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, r, bodyError(err))
		return
	}
	req := engine.Request{Operation: chi.URLParam(r, "name")}
	if len(strings.TrimSpace(string(raw))) > 0 {
		req.Params = raw
	}
	s.execute(w, r, s.engine.Execute, req)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, bodyError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	op := operationName(r.FormValue("operation"))
	if op == "" {
		op = operationName(r.FormValue("function"))
	}
	params := json.RawMessage(r.FormValue("params"))
	if args := r.FormValue("args"); strings.TrimSpace(args) != "" {
		if len(strings.TrimSpace(string(params))) > 0 {
			respondError(w, r, dataset.Invalid("send params or args, not both"))
			return
		}
		var err error
		if params, err = positionalParams(op, args); err != nil {
			respondError(w, r, err)
			return
		}
	}
	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		respondError(w, r, dataset.Invalid("no files uploaded"))
		return
	}

	dir, names, err := s.saveUploads(uploads)
	if dir != "" {
		defer os.RemoveAll(dir)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Debug("uploads saved", "dir", dir, "files", names)

	raw, err := bindUploads(op, params, names)
	if err != nil {
		respondError(w, r, err)
		return
	}
	res := engine.DirResolver{Root: dir}
	s.execute(w, r, func(ctx context.Context, req engine.Request) (*engine.Response, error) {
		return s.engine.ExecuteWith(ctx, res, req)
	}, engine.Request{Operation: op, Params: raw})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, run executeFunc, req engine.Request) {
	resp, err := run(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, processResponse{Success: true, Response: resp})
}

// saveUploads writes each part under its base name into a fresh session
// directory. The directory is returned even on error so it can be removed.
func (s *Server) saveUploads(parts []*multipart.FileHeader) (string, []string, error) {
	base := s.opts.UploadDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "dfops-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("create upload dir: %w", err)
	}
	seen := make(map[string]bool, len(parts))
	names := make([]string, 0, len(parts))
	for _, fh := range parts {
		name := filepath.Base(filepath.Clean(strings.ReplaceAll(fh.Filename, `\`, "/")))
		if name == "." || name == "/" || name == ".." || name == "" {
			return dir, nil, dataset.Invalid("upload has no file name")
		}
		if seen[name] {
			return dir, nil, dataset.Invalid("file %s uploaded twice", name)
		}
		seen[name] = true
		if err := saveUpload(fh, filepath.Join(dir, name)); err != nil {
			return dir, nil, err
		}
		names = append(names, name)
	}
	return dir, names, nil
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create upload %s: %w", fh.Filename, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("write upload %s: %w", fh.Filename, err)
	}
	return dst.Close()
}

// bindUploads fills file parameters the form left unset with the uploaded
// names, in upload order.
func bindUploads(op string, raw json.RawMessage, names []string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, dataset.Invalid("params must be a JSON object: %v", err)
		}
	}
	var spec *engine.OperationSpec
	for _, o := range engine.Catalog().Operations {
		if o.Name == strings.ToLower(strings.TrimSpace(op)) {
			spec = &o
			break
		}
	}
	if spec == nil {
		// the engine reports the unknown operation
		return raw, nil
	}
	set := func(key string, v any) {
		if _, ok := m[key]; ok {
			return
		}
		b, _ := json.Marshal(v)
		m[key] = b
	}
	switch spec.Files {
	case -1:
		set("files", names)
	case 1:
		set("file", names[0])
	case 2:
		set("left", names[0])
		if len(names) > 1 {
			set("right", names[1])
		}
	}
	return json.Marshal(m)
}

// functionAliases maps the historical upload function names to operations.
var functionAliases = map[string]string{
	"compare_dataframes":    engine.OpCompare,
	"merge_dataframes":      engine.OpMerge,
	"profile_dataframe":     engine.OpProfile,
	"aggregate_dataframe":   engine.OpAggregate,
	"data_quality_check":    engine.OpQuality,
	"pivot_dataframe":       engine.OpPivot,
	"calculate_correlation": engine.OpCorrelation,
}

func operationName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if op, ok := functionAliases[name]; ok {
		return op
	}
	return name
}

// positionalParams converts the comma-separated args form field into the
// params object of op.
func positionalParams(op, args string) (json.RawMessage, error) {
	var list []string
	for _, a := range strings.Split(args, ",") {
		if a = strings.TrimSpace(a); a != "" {
			list = append(list, a)
		}
	}
	var p map[string]any
	switch op {
	case engine.OpMerge:
		p = map[string]any{"on": list}
	case engine.OpAggregate:
		if len(list) < 2 || len(list) > 3 {
			return nil, dataset.Invalid("aggregate args are group_column,value_column[,function]")
		}
		fn := "sum"
		if len(list) == 3 {
			fn = list[2]
		}
		p = map[string]any{
			"group_by":     list[:1],
			"aggregations": []analysis.Aggregation{{Column: list[1], Function: fn}},
		}
	case engine.OpPivot:
		if len(list) < 3 || len(list) > 4 {
			return nil, dataset.Invalid("pivot args are index,columns,values[,function]")
		}
		p = map[string]any{"index": list[0], "columns": list[1], "values": list[2]}
		if len(list) == 4 {
			p["func"] = list[3]
		}
	case engine.OpAnomalies, engine.OpCorrelation:
		p = map[string]any{"columns": list}
	default:
		return nil, dataset.Invalid("operation %q takes no args", op)
	}
	return json.Marshal(p)
}

// bodyError classifies a failure to read or decode the request body.
func bodyError(err error) error {
	if isTooLarge(err) {
		return err
	}
	return dataset.Invalid("malformed request body: %v", err)
}
