// Package service orchestrates indexing jobs, retrieval, and turn
// persistence for the retrieval API.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mhalder/ragserver/internal/config"
	"github.com/mhalder/ragserver/internal/domain"
	"github.com/mhalder/ragserver/internal/history"
	"github.com/mhalder/ragserver/internal/index"
	"github.com/mhalder/ragserver/internal/prompt"
	"github.com/mhalder/ragserver/internal/status"
	"go.uber.org/zap"
)

type jobKind int

const (
	jobRebuild jobKind = iota
	jobInsert
)

// job is one queued structural mutation of the index. A single worker drains
// the queue, so at most one rebuild or insert runs at a time.
type job struct {
	kind     jobKind
	filename string
}

// RetrievalService owns the index lifecycle and serves prompt construction.
// Indexing is triggered fire-and-forget and observed via the status tracker;
// job failures never propagate to the request that queued them.
type RetrievalService struct {
	cfg     *config.Config
	index   *index.Manager
	tracker *status.Tracker
	history *history.Store
	builder *prompt.Builder
	logger  *zap.Logger

	jobs chan job
}

// NewRetrievalService creates the service. Call Start to load or build the
// index and begin draining jobs.
func NewRetrievalService(
	cfg *config.Config,
	idx *index.Manager,
	tracker *status.Tracker,
	hist *history.Store,
	builder *prompt.Builder,
	logger *zap.Logger,
) *RetrievalService {
	return &RetrievalService{
		cfg:     cfg,
		index:   idx,
		tracker: tracker,
		history: hist,
		builder: builder,
		logger:  logger,
		jobs:    make(chan job, 16),
	}
}

// Start loads the persisted index, falling back to a full rebuild, and
// launches the worker that drains the job queue. It returns immediately;
// progress is observable through Status.
func (s *RetrievalService) Start(ctx context.Context) {
	loaded, err := s.index.Load(ctx)
	if err != nil {
		s.logger.Warn("persisted index unreadable, falling back to full rebuild", zap.Error(err))
	}
	if loaded {
		s.tracker.Finish(fmt.Sprintf("Index loaded from disk (%d chunks)", s.index.ChunkCount()))
	} else {
		s.jobs <- job{kind: jobRebuild}
	}

	go s.worker(ctx)
}

// worker drains the job queue. Jobs are not cancellable mid-flight; a job
// that outlives its trigger still runs to completion or failure and updates
// the tracker either way.
func (s *RetrievalService) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			switch j.kind {
			case jobRebuild:
				s.runRebuild(ctx)
			case jobInsert:
				s.runInsert(ctx, j.filename)
			}
		}
	}
}

// NotifyNewDocument enqueues incremental indexing for a file that already
// exists in the documents directory. Returns before the job runs.
func (s *RetrievalService) NotifyNewDocument(filename string) error {
	path, err := s.documentPath(filename)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return domain.ErrNotFound
	}
	// A queued job counts as indexing in flight even before the worker
	// picks it up and marks the tracker.
	if !s.index.Ready() && !s.tracker.Snapshot().IsIndexing && len(s.jobs) == 0 {
		return domain.ErrNotReady
	}

	select {
	case s.jobs <- job{kind: jobInsert, filename: filename}:
		return nil
	default:
		return fmt.Errorf("indexing queue full")
	}
}

// TriggerRebuild enqueues a full rebuild of the index.
func (s *RetrievalService) TriggerRebuild() error {
	select {
	case s.jobs <- job{kind: jobRebuild}:
		return nil
	default:
		return fmt.Errorf("indexing queue full")
	}
}

// Status returns the latest indexing status snapshot.
func (s *RetrievalService) Status() domain.IndexStatus {
	return s.tracker.Snapshot()
}

// ConstructPrompt builds the generation prompt for a query.
func (s *RetrievalService) ConstructPrompt(ctx context.Context, query, sessionID string, filenames []string) (string, bool, error) {
	return s.builder.Construct(ctx, query, sessionID, filenames)
}

// SaveTurn appends one completed exchange to the session's history, user
// turn first.
func (s *RetrievalService) SaveTurn(ctx context.Context, sessionID, userText, assistantText string) error {
	if err := s.history.Append(ctx, sessionID, domain.RoleUser, userText); err != nil {
		return fmt.Errorf("save user turn: %w", err)
	}
	if err := s.history.Append(ctx, sessionID, domain.RoleAssistant, assistantText); err != nil {
		return fmt.Errorf("save assistant turn: %w", err)
	}
	return nil
}

func (s *RetrievalService) runRebuild(ctx context.Context) {
	docs, err := s.loadDocuments()
	if err != nil {
		s.tracker.Begin(0, "Rebuilding index")
		s.tracker.Fail(fmt.Sprintf("Rebuild failed: %v", err))
		s.logger.Error("rebuild failed reading documents", zap.Error(err))
		return
	}

	s.tracker.Begin(len(docs), "Rebuilding index")
	err = s.index.Rebuild(ctx, docs, func(current, total int) {
		s.tracker.Advance(current, fmt.Sprintf("Indexed %d/%d documents", current, total))
	})
	if err != nil {
		s.tracker.Fail(fmt.Sprintf("Rebuild failed: %v", err))
		s.logger.Error("rebuild failed", zap.Error(err))
		return
	}
	s.tracker.Finish(fmt.Sprintf("Indexed %d documents (%d chunks)", len(docs), s.index.ChunkCount()))
}

func (s *RetrievalService) runInsert(ctx context.Context, filename string) {
	s.tracker.Begin(1, fmt.Sprintf("Indexing %s", filename))

	path, err := s.documentPath(filename)
	if err == nil {
		var content []byte
		content, err = os.ReadFile(path)
		if err == nil {
			err = s.index.Insert(ctx, domain.Document{Filename: filename, Content: string(content)})
		}
	}
	if err != nil {
		s.tracker.Fail(fmt.Sprintf("Indexing %s failed: %v", filename, err))
		s.logger.Error("insert failed", zap.String("filename", filename), zap.Error(err))
		return
	}
	s.tracker.Finish(fmt.Sprintf("Indexed %s", filename))
}

// ListDocuments returns the filenames currently in the documents directory.
func (s *RetrievalService) ListDocuments() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Storage.Documents)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// SaveDocument writes an uploaded file into the documents directory and
// enqueues incremental indexing for it.
func (s *RetrievalService) SaveDocument(filename string, content []byte) error {
	path, err := s.documentPath(filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.Storage.Documents, 0755); err != nil {
		return fmt.Errorf("create documents directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return s.NotifyNewDocument(filename)
}

// DeleteDocument removes a file and triggers a full rebuild. The index has
// no per-document delete, so a rebuild is the only way to drop its chunks.
func (s *RetrievalService) DeleteDocument(filename string) error {
	path, err := s.documentPath(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete document: %w", err)
	}
	return s.TriggerRebuild()
}

// documentPath resolves a filename inside the documents directory, rejecting
// anything that would escape it.
func (s *RetrievalService) documentPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", domain.ErrInvalidRequest
	}
	return filepath.Join(s.cfg.Storage.Documents, filename), nil
}

// loadDocuments reads every file in the documents directory. A missing
// directory is an empty collection, not an error.
func (s *RetrievalService) loadDocuments() ([]domain.Document, error) {
	files, err := s.ListDocuments()
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(files))
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(s.cfg.Storage.Documents, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, domain.Document{Filename: name, Content: string(content)})
	}
	return docs, nil
}
