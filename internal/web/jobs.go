package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"metazip/internal/cleaner"
	"metazip/internal/statistics"
)

// CleanRequest starts a clean run over paths on the server's file system.
type CleanRequest struct {
	Paths           []string `json:"paths"`
	OutputDirectory string   `json:"output_directory,omitempty"`
	DryRun          bool     `json:"dry_run"`
	Zip             bool     `json:"zip"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	IsImage      bool   `json:"is_image"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req CleanRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		s.writeError(w, "At least one path is required", http.StatusBadRequest)
		return
	}
	for _, p := range req.Paths {
		if _, err := os.Stat(p); err != nil {
			s.writeError(w, fmt.Sprintf("Path does not exist: %s", p), http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stats := statistics.NewStatistics()

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		cancel()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	s.isRunning = true
	s.cancelRun = cancel
	s.currentStats = stats
	s.lastBatch = nil
	s.operationMutex.Unlock()

	go s.runCleanAsync(ctx, req, stats)

	s.writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Message: "Cleaning started",
	})
}

func (s *Server) runCleanAsync(ctx context.Context, req CleanRequest, stats *statistics.Statistics) {
	s.broadcastWSMessage("clean_started", map[string]interface{}{
		"paths":            req.Paths,
		"output_directory": req.OutputDirectory,
		"dry_run":          req.DryRun,
	})

	c := cleaner.NewDefaultCleaner(s.cfg, s.log, stats,
		cleaner.WithEngine(s.engine),
		cleaner.WithVerifier(s.verifier),
		cleaner.WithProgress(func(done, total int, res cleaner.FileResult) {
			s.broadcastWSMessage("clean_progress", progressData(done, total, res))
		}),
	)
	batch, err := c.Clean(ctx, cleaner.Params{
		InputPaths: req.Paths,
		OutputDir:  req.OutputDirectory,
		DryRun:     req.DryRun,
		Zip:        req.Zip,
	})

	s.operationMutex.Lock()
	s.isRunning = false
	s.cancelRun = nil
	s.lastBatch = batch
	s.operationMutex.Unlock()

	switch {
	case errors.Is(err, context.Canceled):
		s.broadcastWSMessage("clean_stopped", map[string]interface{}{
			"message":    "Operation stopped by user",
			"statistics": stats.Snapshot(),
		})
	case err != nil:
		s.broadcastWSMessage("clean_error", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.broadcastWSMessage("clean_completed", map[string]interface{}{
			"summary":    stats.GetSummary(),
			"statistics": stats.Snapshot(),
			"archive":    batch.Archive,
		})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.Lock()
	running := s.isRunning
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.operationMutex.Unlock()

	if !running {
		s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "No operation in progress"})
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Operation stopping",
	})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	// Prevent directory traversal
	if strings.Contains(path, "..") {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}
	path = filepath.Clean(path)

	entries, err := os.ReadDir(path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	directories := make([]DirectoryInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		directories = append(directories, DirectoryInfo{
			Path:         filepath.Join(path, entry.Name()),
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			IsImage:      !entry.IsDir() && s.cfg.IsSupportedExtension(filepath.Ext(entry.Name())),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    directories,
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	batch := s.lastBatch
	s.operationMutex.RUnlock()

	if stats == nil {
		s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: nil})
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary":    stats.GetSummary(),
			"statistics": stats.Snapshot(),
			"batch":      batch,
		},
	})
}
