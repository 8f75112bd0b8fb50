package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/rpc"
	"github.com/hrstress/hrstress/pkg/table"
)

// multipartMemory is how much of an upload is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// uploadOptions are the form fields of POST /api/v1/analyze.
type uploadOptions struct {
	hints          hrv.Hints
	window         int
	includeSamples bool
	record         bool
}

// analyze handles POST /api/v1/analyze. Every multipart "file" part is
// analysed on its own; a file that fails is reported in failures and the
// rest continue. The response is 422 only when no file succeeded.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			jsonErr(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", h.cfg.MaxUploadBytes))
			return
		}
		jsonErr(w, http.StatusBadRequest, "expected multipart/form-data: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	opts, err := h.parseUploadOptions(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonErr(w, http.StatusBadRequest, `no "file" parts in upload`)
		return
	}

	resp := AnalyzeResponse{Results: []UploadResult{}, Failures: []UploadFailure{}}
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		res, err := h.analyzeFile(fh, opts)
		if h.cfg.Metrics != nil {
			h.cfg.Metrics.ObserveUpload(err == nil)
		}
		if err != nil {
			slog.Info("api: upload failed analysis", "file", name, "err", err)
			resp.Failures = append(resp.Failures, UploadFailure{File: name, Error: err.Error()})
			continue
		}
		resp.Results = append(resp.Results, *res)
	}

	code := http.StatusOK
	if len(resp.Results) == 0 {
		code = http.StatusUnprocessableEntity
	}
	jsonResp(w, code, resp)
}

func (h *Handler) parseUploadOptions(r *http.Request) (uploadOptions, error) {
	opts := uploadOptions{
		hints: hrv.Hints{
			Timestamp: strings.TrimSpace(r.FormValue("ts_column")),
			HeartRate: strings.TrimSpace(r.FormValue("hr_column")),
		},
		window: h.cfg.WindowSeconds,
		record: true,
	}
	if v := r.FormValue("window_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("window_seconds must be an integer")
		}
		if err := hrv.ValidateWindow(n); err != nil {
			return opts, err
		}
		opts.window = n
	}
	for field, dst := range map[string]*bool{"include_samples": &opts.includeSamples, "record": &opts.record} {
		if v := r.FormValue(field); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, fmt.Errorf("%s must be a boolean", field)
			}
			*dst = b
		}
	}
	return opts, nil
}

func (h *Handler) analyzeFile(fh *multipart.FileHeader, opts uploadOptions) (*UploadResult, error) {
	name := filepath.Base(fh.Filename)

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	tbl, err := table.Parse(io.LimitReader(f, table.MaxBytes), table.DelimiterFor(name))
	if err != nil {
		return nil, err
	}
	a, err := hrv.Analyze(tbl, hrv.Options{Hints: opts.hints, WindowSeconds: opts.window})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snap := &rpc.SessionSnapshot{
		SessionID:        uuid.NewString(),
		SourceID:         "upload:" + name,
		SourceKind:       rpc.SourceUpload,
		Origin:           name,
		AnalyzedAt:       now,
		TimestampColumn:  a.Columns.Timestamp,
		HeartRateColumn:  a.Columns.HeartRate,
		HeartRate:        a.HeartRate,
		Metrics:          a.Metrics,
		Stress:           a.Stress,
		WindowSeconds:    a.WindowSeconds,
		NonPositiveCount: a.NonPositiveCount,
		Samples:          a.Samples,
	}
	if opts.record && h.cfg.Recorder != nil {
		h.cfg.Recorder.Record(snap)
	}

	res := &UploadResult{File: name, SessionDetail: toDetail(snap, now)}
	if opts.includeSamples {
		res.Samples = a.Samples
	}
	return res, nil
}
