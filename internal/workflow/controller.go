// Package workflow drives the section-by-section drafting of a rebuttal brief.
//
// The Controller is stateless apart from its collaborators; all mutable state
// lives in a Session owned by the hosting chat session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/classifier"
	"github.com/Lllllllleong/legaldraftflow/internal/facts"
	"github.com/Lllllllleong/legaldraftflow/internal/metrics"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/prompt"
	"github.com/Lllllllleong/legaldraftflow/internal/validator"
)

// ErrInvariant marks a structural defect: a transition that would break the
// state invariants. It is never shown to the end user.
var ErrInvariant = errors.New("workflow: invariant violated")

// GenerationClient produces section text. Implementations own timeouts and
// report failures through GenerationResult rather than errors.
type GenerationClient interface {
	Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult
}

// ProgressStore persists intermediate snapshots while an event is applied.
// Failures are logged only; the caller owns the final save of the event.
type ProgressStore interface {
	Checkpoint(ctx context.Context, sessionID string, snapshot models.WorkflowState) error
}

// Reply is what the controller says back to the user for one event.
type Reply struct {
	Messages []string
	Errors   []string
	Warnings []string
}

func (r *Reply) say(msg string) {
	r.Messages = append(r.Messages, msg)
}

func (r *Reply) merge(other Reply) {
	r.Messages = append(r.Messages, other.Messages...)
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Controller sequences classifier, composer, generation and validation.
type Controller struct {
	catalog   *catalog.Catalog
	generator GenerationClient
	store     ProgressStore
	config    Config
	logger    *slog.Logger
	metrics   *metrics.Generation
	now       func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics records generation attempts.
func WithMetrics(m *metrics.Generation) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithClock overrides the time source used for checkpoints.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController wires a controller. store may be nil to disable checkpoints.
func NewController(cat *catalog.Catalog, gen GenerationClient, store ProgressStore, cfg Config, opts ...Option) (*Controller, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, fmt.Errorf("workflow: a non-empty catalog is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("workflow: a generation client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		catalog:   cat,
		generator: gen,
		store:     store,
		config:    cfg,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the controller's command configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Resume rebuilds a session from a checkpointed snapshot after checking it
// against the catalog.
func (c *Controller) Resume(snapshot models.WorkflowState) (*Session, error) {
	st := snapshot.Snapshot()
	if st.SectionContents == nil {
		st.SectionContents = make(map[string]string)
	}
	if err := c.checkInvariants(&st); err != nil {
		return nil, err
	}
	return &Session{state: &st}, nil
}

// Start moves a new session to AWAITING_DOCUMENTS. On any other phase it
// repeats the current prompt without changing state.
func (c *Controller) Start(ctx context.Context, s *Session) (Reply, error) {
	if !s.acquire() {
		return Reply{}, ErrSessionBusy
	}
	defer s.release()

	if s.state.Phase != models.PhaseInit {
		return c.currentPrompt(s.state), nil
	}
	return c.start(ctx, s.state), nil
}

// SubmitDocuments handles the documents-submitted event.
func (c *Controller) SubmitDocuments(ctx context.Context, s *Session, docs []models.Document) (Reply, error) {
	if !s.acquire() {
		return Reply{}, ErrSessionBusy
	}
	defer s.release()

	st := s.state
	var reply Reply
	switch st.Phase {
	case models.PhaseInit:
		reply.merge(c.start(ctx, st))
	case models.PhaseAwaitingDocuments:
	case models.PhaseCompleted:
		return Reply{Messages: []string{MsgWorkflowComplete}}, nil
	default:
		reply.say(msgDocumentsNotExpected())
		reply.merge(c.currentPrompt(st))
		return reply, nil
	}

	r, err := c.acceptDocuments(ctx, st, docs)
	reply.merge(r)
	return reply, err
}

// HandleMessage handles free text from the user.
func (c *Controller) HandleMessage(ctx context.Context, s *Session, text string) (Reply, error) {
	if !s.acquire() {
		return Reply{}, ErrSessionBusy
	}
	defer s.release()

	st := s.state
	switch st.Phase {
	case models.PhaseInit:
		return c.start(ctx, st), nil

	case models.PhaseAwaitingDocuments:
		return Reply{Messages: []string{msgAwaitingDocuments(c.config, st.Pending)}}, nil

	case models.PhaseAwaitingConfirmation:
		switch {
		case c.config.isConfirm(text):
			st.Phase = models.PhaseGenerating
			st.Attempts = 0
			st.LastErrors = nil
			st.LastWarnings = nil
			c.checkpoint(ctx, st)
			return c.generate(ctx, st)
		case c.config.isModify(text):
			st.Phase = models.PhaseAwaitingDocuments
			st.Pending = st.Snapshot().Documents
			c.checkpoint(ctx, st)
			return Reply{Messages: []string{msgModifyDocuments(c.config, st.Pending)}}, nil
		default:
			return c.currentPrompt(st), nil
		}

	case models.PhaseGenerating:
		if c.config.isConfirm(text) {
			return c.generate(ctx, st)
		}
		return c.currentPrompt(st), nil

	case models.PhaseCompleted:
		return Reply{Messages: []string{MsgWorkflowComplete}}, nil
	}
	return Reply{}, fmt.Errorf("%w: unknown phase %q", ErrInvariant, st.Phase)
}

// Generate runs one generation attempt for the current section. It is only
// valid in GENERATING; elsewhere it repeats the current prompt.
func (c *Controller) Generate(ctx context.Context, s *Session) (Reply, error) {
	if !s.acquire() {
		return Reply{}, ErrSessionBusy
	}
	defer s.release()

	if s.state.Phase != models.PhaseGenerating {
		return c.currentPrompt(s.state), nil
	}
	return c.generate(ctx, s.state)
}

func (c *Controller) start(ctx context.Context, st *models.WorkflowState) Reply {
	st.Phase = models.PhaseAwaitingDocuments
	c.checkpoint(ctx, st)
	return Reply{Messages: []string{msgDocumentRequirements(c.config)}}
}

func (c *Controller) acceptDocuments(ctx context.Context, st *models.WorkflowState, docs []models.Document) (Reply, error) {
	logCtx := c.logger.With("sessionId", st.SessionID, "phase", st.Phase)

	if len(docs) == 0 {
		return Reply{Messages: []string{msgEmptySubmission(c.config)}}, nil
	}
	for _, d := range docs {
		if strings.TrimSpace(d.Name) == "" {
			return Reply{Messages: []string{msgUnnamedDocument()}}, nil
		}
	}

	merged := mergeDocuments(st.Pending, docs)
	if len(merged) > c.config.MaxDocuments {
		logCtx.Warn("Document submission rejected: over the limit", "pending", len(st.Pending), "submitted", len(docs))
		return Reply{Messages: []string{msgTooManyDocuments(c.config.MaxDocuments, len(st.Pending), len(docs))}}, nil
	}

	res := classifier.Classify(merged)
	st.Pending = res.Documents
	if !res.HasRebuttalTarget {
		logCtx.Info("Rebuttal target missing, awaiting more documents.", "documentCount", len(merged))
		c.checkpoint(ctx, st)
		return Reply{Messages: []string{msgMissingRebuttalTarget(st.Pending)}}, nil
	}

	st.Documents = st.Pending
	st.Pending = nil
	st.Phase = models.PhaseAwaitingConfirmation
	if err := c.checkInvariants(st); err != nil {
		logCtx.Error("Invalid state after accepting documents", "error", err)
		return Reply{}, err
	}
	logCtx.Info("Documents accepted.", "documentCount", len(st.Documents), "sectionIndex", st.CurrentSectionIndex)
	c.checkpoint(ctx, st)

	var reply Reply
	reply.say(msgDocumentsAccepted(st.Documents))
	reply.merge(c.currentPrompt(st))
	return reply, nil
}

func (c *Controller) generate(ctx context.Context, st *models.WorkflowState) (Reply, error) {
	if err := c.checkInvariants(st); err != nil {
		return Reply{}, err
	}
	section, ok := c.catalog.At(st.CurrentSectionIndex)
	if !ok {
		return Reply{}, fmt.Errorf("%w: no section at index %d", ErrInvariant, st.CurrentSectionIndex)
	}
	logCtx := c.logger.With("sessionId", st.SessionID, "sectionId", section.ID)

	req, err := prompt.Compose(section, st.Documents, facts.Extract(st.Documents))
	if err != nil {
		logCtx.Error("Could not compose generation request", "error", err)
		return Reply{}, fmt.Errorf("%w: %v", ErrInvariant, err)
	}

	st.Attempts++
	logCtx.Info("Generating section.", "attempt", st.Attempts)
	started := c.now()
	result := c.generator.Generate(ctx, req)
	elapsed := c.now().Sub(started)

	if !result.Success {
		kind := result.ErrorKind
		if kind == "" {
			kind = models.ErrorKindBackend
		}
		c.metrics.Observe(section.ID, kind, elapsed)
		logCtx.Error("Generation failed", "errorKind", kind, "attempt", st.Attempts)
		st.LastErrors = []string{kind}
		c.checkpoint(ctx, st)
		return Reply{
			Messages: []string{msgGenerationFailed(section, kind, c.config)},
			Errors:   []string{kind},
		}, nil
	}

	text := strings.TrimSpace(result.Text)
	v := validator.Validate(text, section)
	if !v.OK {
		c.metrics.Observe(section.ID, metrics.OutcomeInvalid, elapsed)
		logCtx.Warn("Generated section failed validation", "errors", v.Errors, "attempt", st.Attempts)
		st.LastErrors = v.Errors
		st.LastWarnings = v.Warnings
		c.checkpoint(ctx, st)
		return Reply{
			Messages: []string{msgValidationFailed(section, v.Errors, c.config)},
			Errors:   v.Errors,
			Warnings: v.Warnings,
		}, nil
	}
	c.metrics.Observe(section.ID, metrics.OutcomeAccepted, elapsed)
	if len(v.Warnings) > 0 {
		logCtx.Warn("Generated section accepted with warnings", "warnings", v.Warnings)
	}

	if _, exists := st.SectionContents[section.ID]; exists {
		return Reply{}, fmt.Errorf("%w: section %q already generated", ErrInvariant, section.ID)
	}
	st.SectionContents[section.ID] = text
	st.CurrentSectionIndex++
	st.Attempts = 0
	st.LastErrors = nil
	st.LastWarnings = v.Warnings

	reply := Reply{Warnings: v.Warnings}
	reply.say(msgSectionAccepted(section, text))

	if st.CurrentSectionIndex == c.catalog.Len() {
		st.Phase = models.PhaseCompleted
		reply.say(msgCompletionSummary(c.catalog.Sections(), st.SectionContents))
		logCtx.Info("Workflow completed.")
	} else {
		st.Phase = models.PhaseAwaitingConfirmation
		reply.merge(c.currentPrompt(st))
	}
	if err := c.checkInvariants(st); err != nil {
		logCtx.Error("Invalid state after accepting section", "error", err)
		return Reply{}, err
	}
	c.checkpoint(ctx, st)
	return reply, nil
}

// currentPrompt re-emits what the user is expected to do, without changing state.
func (c *Controller) currentPrompt(st *models.WorkflowState) Reply {
	switch st.Phase {
	case models.PhaseInit, models.PhaseAwaitingDocuments:
		return Reply{Messages: []string{msgAwaitingDocuments(c.config, st.Pending)}}
	case models.PhaseAwaitingConfirmation:
		section, _ := c.catalog.At(st.CurrentSectionIndex)
		return Reply{Messages: []string{msgSectionPreview(section, st.CurrentSectionIndex, c.catalog.Len(), c.config)}}
	case models.PhaseGenerating:
		section, _ := c.catalog.At(st.CurrentSectionIndex)
		return Reply{Messages: []string{msgRetryPrompt(section, st.LastErrors, c.config)}}
	default:
		return Reply{Messages: []string{MsgWorkflowComplete}}
	}
}

func (c *Controller) checkpoint(ctx context.Context, st *models.WorkflowState) {
	if c.store == nil {
		return
	}
	st.UpdatedAt = c.now().UTC()
	if err := c.store.Checkpoint(ctx, st.SessionID, st.Snapshot()); err != nil {
		c.logger.Warn("Checkpoint failed; continuing", "sessionId", st.SessionID, "phase", st.Phase, "error", err)
	}
}

func (c *Controller) checkInvariants(st *models.WorkflowState) error {
	n := c.catalog.Len()
	switch {
	case !st.Phase.IsValid():
		return fmt.Errorf("%w: unknown phase %q", ErrInvariant, st.Phase)
	case st.CurrentSectionIndex < 0 || st.CurrentSectionIndex > n:
		return fmt.Errorf("%w: section index %d outside 0..%d", ErrInvariant, st.CurrentSectionIndex, n)
	case (st.CurrentSectionIndex == n) != (st.Phase == models.PhaseCompleted):
		return fmt.Errorf("%w: phase %s at section index %d of %d", ErrInvariant, st.Phase, st.CurrentSectionIndex, n)
	case len(st.SectionContents) != st.CurrentSectionIndex:
		return fmt.Errorf("%w: %d section contents at index %d", ErrInvariant, len(st.SectionContents), st.CurrentSectionIndex)
	case len(st.Documents) > c.config.MaxDocuments:
		return fmt.Errorf("%w: %d documents accepted", ErrInvariant, len(st.Documents))
	}
	for i := 0; i < st.CurrentSectionIndex; i++ {
		section, _ := c.catalog.At(i)
		if _, ok := st.SectionContents[section.ID]; !ok {
			return fmt.Errorf("%w: section %q missing before index %d", ErrInvariant, section.ID, st.CurrentSectionIndex)
		}
	}
	switch st.Phase {
	case models.PhaseAwaitingConfirmation, models.PhaseGenerating, models.PhaseCompleted:
		if len(st.Documents) == 0 {
			return fmt.Errorf("%w: phase %s without accepted documents", ErrInvariant, st.Phase)
		}
	}
	return nil
}

// mergeDocuments replaces documents with the same name and appends new ones,
// keeping first-seen order.
func mergeDocuments(existing, incoming []models.Document) []models.Document {
	out := make([]models.Document, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	for _, d := range existing {
		index[d.Name] = len(out)
		out = append(out, d)
	}
	for _, d := range incoming {
		d.Name = strings.TrimSpace(d.Name)
		if i, ok := index[d.Name]; ok {
			out[i] = d
			continue
		}
		index[d.Name] = len(out)
		out = append(out, d)
	}
	return out
}
