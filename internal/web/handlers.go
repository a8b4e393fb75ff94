package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"metazip/internal/archive"
	"metazip/internal/cleaner"
	"metazip/internal/engine"
	"metazip/internal/format"
	"metazip/internal/savings"
	"metazip/internal/statistics"
)

// Upload and batch response headers.
const (
	HeaderOriginalSize      = "X-Original-Size"
	HeaderCleanedSize       = "X-Cleaned-Size"
	HeaderSavingsPercentage = "X-Savings-Percentage"
	HeaderFilesCleaned      = "X-Files-Cleaned"
	HeaderFilesFailed       = "X-Files-Failed"
)

// batchField is the multipart field carrying the uploaded images.
const batchField = "files"

var errEmptyBody = errors.New("request body must not be empty")

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	stats := s.currentStats
	s.operationMutex.RUnlock()

	var statsData interface{}
	if stats != nil {
		statsData = stats.Snapshot()
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"version":    s.version,
			"running":    running,
			"clients":    s.clientCount(),
			"statistics": statsData,
		},
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readImage(w, r)
	if !ok {
		return
	}
	raw, err := s.engine.ExtractMetadataJSON(data)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: json.RawMessage(raw)})
}

func (s *Server) handleStrip(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readImage(w, r)
	if !ok {
		return
	}
	out, err := s.engine.StripMetadata(data)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	f, _ := format.Detect(out)
	res := savings.Calculate(uint32(len(data)), uint32(len(out)))
	h := w.Header()
	h.Set("Content-Type", f.MIMEType())
	h.Set("Content-Length", strconv.Itoa(len(out)))
	h.Set(HeaderOriginalSize, strconv.Itoa(len(data)))
	h.Set(HeaderCleanedSize, strconv.Itoa(len(out)))
	h.Set(HeaderSavingsPercentage, strconv.FormatFloat(res.Percentage, 'f', 1, 64))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		s.log.Warnf("Failed to write cleaned image: %v", err)
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readImage(w, r)
	if !ok {
		return
	}
	rep, err := s.engine.Process(r.Context(), data)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	raw, err := engine.ReportJSON(rep)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: json.RawMessage(raw)})
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	original, err := strconv.ParseUint(q.Get("original"), 10, 32)
	if err != nil {
		s.writeError(w, "original must be an unsigned 32-bit integer", http.StatusBadRequest)
		return
	}
	cleaned, err := strconv.ParseUint(q.Get("cleaned"), 10, 32)
	if err != nil {
		s.writeError(w, "cleaned must be an unsigned 32-bit integer", http.StatusBadRequest)
		return
	}

	raw := engine.CalculateSavingsJSON(uint32(original), uint32(cleaned))
	if raw == nil {
		raw = []byte("null")
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: json.RawMessage(raw)})
}

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readImage(w, r)
	if !ok {
		return
	}
	raw, err := s.engine.GetDimensionsJSON(data)
	if err != nil {
		if errors.Is(err, engine.ErrSerialization) {
			s.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: json.RawMessage(raw)})
}

// handleBatch cleans every uploaded file. One cleaned file is returned as
// is; several are returned as a ZIP archive.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	maxFile := s.cfg.Limits.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxFile*int64(s.cfg.Performance.BatchSize))
	if err := r.ParseMultipartForm(maxFile); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			s.writeError(w, fmt.Sprintf("request must not be larger than %d bytes", maxBytesError.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[batchField]
	if len(headers) == 0 {
		s.writeError(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	items := make([]cleaner.Item, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxFile {
			s.writeError(w, fmt.Sprintf("%s: %v", fh.Filename, cleaner.ErrFileTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		items = append(items, cleaner.Item{Name: fh.Filename, Data: data})
	}

	stats := statistics.NewStatistics()
	c := cleaner.NewDefaultCleaner(s.cfg, s.log, stats,
		cleaner.WithEngine(s.engine),
		cleaner.WithProgress(func(done, total int, res cleaner.FileResult) {
			s.broadcastWSMessage("batch_progress", progressData(done, total, res))
		}),
	)
	outs := c.CleanItems(r.Context(), items)
	stats.Finalize()

	var entries []archive.Entry
	var failed []cleaner.FileResult
	for _, out := range outs {
		if out.Data == nil {
			failed = append(failed, out.Result)
			continue
		}
		entries = append(entries, archive.Entry{
			Name:     out.Result.OutputPath,
			Data:     out.Data,
			Modified: out.Result.FinishedAt,
		})
	}
	s.broadcastWSMessage("batch_completed", stats.Snapshot())

	if len(entries) == 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
			Success: false,
			Error:   "no file could be cleaned",
			Data:    failed,
		})
		return
	}

	h := w.Header()
	h.Set(HeaderFilesCleaned, strconv.Itoa(len(entries)))
	h.Set(HeaderFilesFailed, strconv.Itoa(len(failed)))

	if len(entries) == 1 {
		f, _ := format.Detect(entries[0].Data)
		h.Set("Content-Type", f.MIMEType())
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": entries[0].Name}))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(entries[0].Data); err != nil {
			s.log.Warnf("Failed to write cleaned image: %v", err)
		}
		return
	}

	var buf bytes.Buffer
	if err := archive.WriteZip(&buf, entries); err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": archive.Name(time.Now())}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log.Warnf("Failed to write archive: %v", err)
	}
}

func progressData(done, total int, res cleaner.FileResult) map[string]interface{} {
	return map[string]interface{}{
		"done":   done,
		"total":  total,
		"result": res,
	}
}

// readImage reads a raw image request body no larger than the configured
// file size limit.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	limit := s.cfg.Limits.MaxFileSize
	if r.ContentLength > limit {
		s.writeError(w, fmt.Sprintf("%v: limit is %d bytes", cleaner.ErrFileTooLarge, limit), http.StatusRequestEntityTooLarge)
		return nil, false
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			s.writeError(w, fmt.Sprintf("%v: limit is %d bytes", cleaner.ErrFileTooLarge, maxBytesError.Limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		s.writeError(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	if len(data) == 0 {
		s.writeError(w, errEmptyBody.Error(), http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// readJSON decodes a single JSON value from a body of at most 1 MB.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeDomainError reports a failure of the image operations themselves.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, cleaner.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, engine.ErrInternal):
		status = http.StatusInternalServerError
	}
	s.writeError(w, err.Error(), status)
}
