package toolstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// MemStore is an in-memory Store, suitable for tests and single-process
// deployments without a configured database.
type MemStore struct {
	mu      sync.RWMutex
	tools   map[string]*models.Tool
	byName  map[string]string
	weights Weights
	synonyms map[string][]string
	threshold float64
	bugThreshold int
	now func() time.Time
}

// MemStoreOption configures a MemStore.
type MemStoreOption func(*MemStore)

// WithSearchWeights overrides the default scoring weights.
func WithSearchWeights(w Weights) MemStoreOption {
	return func(s *MemStore) { s.weights = w }
}

// WithSynonyms overrides the default synonym table.
func WithSynonyms(syn map[string][]string) MemStoreOption {
	return func(s *MemStore) { s.synonyms = syn }
}

// WithDefaultThreshold overrides the default search score cutoff.
func WithDefaultThreshold(threshold float64) MemStoreOption {
	return func(s *MemStore) { s.threshold = threshold }
}

// WithBugThreshold overrides the bug_count at which is_bugged flips true.
func WithBugThreshold(n int) MemStoreOption {
	return func(s *MemStore) { s.bugThreshold = n }
}

// NewMemStore constructs an empty in-memory tool store.
func NewMemStore(opts ...MemStoreOption) *MemStore {
	s := &MemStore{
		tools:        make(map[string]*models.Tool),
		byName:       make(map[string]string),
		weights:      DefaultWeights(),
		synonyms:     DefaultSynonyms(),
		threshold:    0.3,
		bugThreshold: models.DefaultBugThreshold,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemStore) List(ctx context.Context, opts ListOptions) ([]*models.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		if opts.ActiveOnly && !t.IsActive {
			continue
		}
		if opts.ExcludeBugged && t.IsBugged {
			continue
		}
		if opts.Category != "" && t.Category != opts.Category {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemStore) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemStore) GetByName(ctx context.Context, name string) (*models.Tool, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return s.tools[id].Clone(), nil
}

func (s *MemStore) Create(ctx context.Context, spec models.ToolSpec) (*models.Tool, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[spec.Name]; exists {
		return nil, ErrNameConflict
	}

	now := s.now()
	isActive := true
	if spec.IsActive != nil {
		isActive = *spec.IsActive
	}
	tool := &models.Tool{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Description: spec.Description,
		Category:    spec.Category,
		Tags:        append([]string(nil), spec.Tags...),
		Parameters:  append([]models.Parameter(nil), spec.Parameters...),
		Code:        spec.Code,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tools[tool.ID] = tool
	s.byName[tool.Name] = tool.ID
	return tool.Clone(), nil
}

func (s *MemStore) Update(ctx context.Context, id string, patch models.ToolPatch) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[id]
	if !ok {
		return nil, ErrNotFound
	}

	newName := tool.Name
	if patch.Name != nil {
		newName = *patch.Name
	}
	if newName != tool.Name {
		if existingID, exists := s.byName[newName]; exists && existingID != id {
			return nil, ErrNameConflict
		}
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	if patch.Name != nil {
		delete(s.byName, tool.Name)
		tool.Name = *patch.Name
		s.byName[tool.Name] = tool.ID
	}
	if patch.Description != nil {
		tool.Description = *patch.Description
	}
	if patch.Category != nil {
		tool.Category = *patch.Category
	}
	if patch.Tags != nil {
		tool.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.Parameters != nil {
		tool.Parameters = append([]models.Parameter(nil), (*patch.Parameters)...)
	}
	if patch.Code != nil {
		tool.Code = *patch.Code
	}
	if patch.IsActive != nil {
		tool.IsActive = *patch.IsActive
	}
	tool.UpdatedAt = s.now()
	return tool.Clone(), nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[id]
	if !ok {
		return nil
	}
	delete(s.byName, tool.Name)
	delete(s.tools, id)
	return nil
}

func (s *MemStore) ReportBug(ctx context.Context, id string, errorKind, message, stack string) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[id]
	if !ok {
		return nil, ErrNotFound
	}

	entry := models.BugEntry{Timestamp: s.now(), ErrorKind: errorKind, Message: message, Stack: stack}
	tool.BugLog = append(tool.BugLog, entry)
	if len(tool.BugLog) > models.BugLogCap {
		tool.BugLog = tool.BugLog[len(tool.BugLog)-models.BugLogCap:]
	}
	tool.BugCount++
	now := s.now()
	tool.LastErrorAt = &now
	if tool.BugCount >= s.bugThreshold {
		tool.IsBugged = true
	}
	tool.UpdatedAt = now
	return tool.Clone(), nil
}

func (s *MemStore) ClearBugs(ctx context.Context, id string) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[id]
	if !ok {
		return nil, ErrNotFound
	}
	tool.BugCount = 0
	tool.BugLog = nil
	tool.IsBugged = false
	tool.UpdatedAt = s.now()
	return tool.Clone(), nil
}

func (s *MemStore) Deactivate(ctx context.Context, id string) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[id]
	if !ok {
		return nil, ErrNotFound
	}
	tool.IsActive = false
	tool.UpdatedAt = s.now()
	return tool.Clone(), nil
}

func (s *MemStore) CompactBugLog(ctx context.Context, id string, olderThan time.Time) (*models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[id]
	if !ok {
		return nil, ErrNotFound
	}
	if tool.IsBugged || len(tool.BugLog) == 0 {
		return tool.Clone(), nil
	}
	kept := make([]models.BugEntry, 0, len(tool.BugLog))
	for _, e := range tool.BugLog {
		if e.Timestamp.After(olderThan) {
			kept = append(kept, e)
		}
	}
	if len(kept) != len(tool.BugLog) {
		tool.BugLog = kept
		tool.UpdatedAt = s.now()
	}
	return tool.Clone(), nil
}

func (s *MemStore) RecordExecution(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tool, ok := s.tools[id]
	if !ok {
		return ErrNotFound
	}
	tool.ExecutionCount++
	now := s.now()
	tool.LastExecutedAt = &now
	return nil
}

// SetSearchWeights replaces the scoring weights used by future Search
// calls. Used by the config hot-reload watcher to apply a changed
// SEARCH_WEIGHTS without restarting the process.
func (s *MemStore) SetSearchWeights(w Weights) {
	s.mu.Lock()
	s.weights = w
	s.mu.Unlock()
}

// SetSynonyms replaces the synonym table used by future Search calls. Used
// by the config hot-reload watcher to apply a changed SYNONYMS table.
func (s *MemStore) SetSynonyms(syn map[string][]string) {
	s.mu.Lock()
	s.synonyms = syn
	s.mu.Unlock()
}

func (s *MemStore) Search(ctx context.Context, query string, opts SearchOptions) ([]models.SearchHit, error) {
	s.mu.RLock()
	tools := make([]*models.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t)
	}
	weights := s.weights
	synonyms := s.synonyms
	defaultThreshold := s.threshold
	s.mu.RUnlock()

	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	hits := rankCandidates(query, tools, opts, weights, synonyms)
	out := make([]models.SearchHit, len(hits))
	for i, h := range hits {
		out[i] = models.SearchHit{Tool: h.Tool.Clone(), Score: h.Score}
	}
	return out, nil
}

func validateSpec(spec models.ToolSpec) error {
	if spec.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if !models.ValidName(spec.Name) {
		return &ValidationError{Field: "name", Message: "must match [a-zA-Z_][a-zA-Z0-9_]*"}
	}
	if spec.Code == "" {
		return &ValidationError{Field: "code", Message: "is required"}
	}
	return validateParams(spec.Parameters)
}

func validatePatch(patch models.ToolPatch) error {
	if patch.Name != nil {
		if *patch.Name == "" {
			return &ValidationError{Field: "name", Message: "cannot be empty"}
		}
		if !models.ValidName(*patch.Name) {
			return &ValidationError{Field: "name", Message: "must match [a-zA-Z_][a-zA-Z0-9_]*"}
		}
	}
	if patch.Code != nil && *patch.Code == "" {
		return &ValidationError{Field: "code", Message: "cannot be empty"}
	}
	if patch.Parameters != nil {
		return validateParams(*patch.Parameters)
	}
	return nil
}

func validateParams(params []models.Parameter) error {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name == "" {
			return &ValidationError{Field: "parameters", Message: "parameter name is required"}
		}
		if seen[p.Name] {
			return &ValidationError{Field: "parameters", Message: fmt.Sprintf("duplicate parameter name %q", p.Name)}
		}
		seen[p.Name] = true
		switch p.Type {
		case models.ParamString, models.ParamNumber, models.ParamBoolean, models.ParamObject, models.ParamArray, "":
		default:
			return &ValidationError{Field: "parameters", Message: fmt.Sprintf("unknown parameter type %q", p.Type)}
		}
	}
	return nil
}

var _ Store = (*MemStore)(nil)
