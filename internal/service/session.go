package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stawikopa-del/fitfly-sub001/internal/engine"
	"github.com/stawikopa-del/fitfly-sub001/internal/metrics"
	"github.com/stawikopa-del/fitfly-sub001/internal/models"
	"github.com/stawikopa-del/fitfly-sub001/internal/presets"
	"github.com/stawikopa-del/fitfly-sub001/internal/storage"
	"github.com/stawikopa-del/fitfly-sub001/pkg/logger"
)

// Service errors
var (
	ErrUserIDRequired      = errors.New("user_id is required")
	ErrActiveSession       = errors.New("user already has an active session")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrUnknownPreset       = errors.New("unknown preset")
	ErrInvalidSteps        = errors.New("invalid steps")
	ErrUnknownAction       = errors.New("unknown action")
	ErrClientTicksDisabled = errors.New("client ticks are disabled in server tick mode")
)

// Action is a control applied to a running session.
type Action string

const (
	ActionPlay         Action = "play"
	ActionPause        Action = "pause"
	ActionSkipForward  Action = "skip_forward"
	ActionSkipBackward Action = "skip_backward"
	ActionGoTo         Action = "goto"
)

// maxTicksPerCall bounds client-delivered ticks in one request.
const maxTicksPerCall = 3600

const persistTimeout = 5 * time.Second

// Options tune how the service hosts sessions.
type Options struct {
	ServerTicks   bool
	TickInterval  time.Duration
	PointsPerStep int
}

// SessionService hosts live session controllers and persists their progress
type SessionService struct {
	sessions    storage.SessionRepository
	completions storage.CompletionRepository
	catalog     *presets.Catalog
	opts        Options
	logger      *logger.Logger
	now         func() time.Time

	startMu sync.Mutex // serialises the one-active-session check
	mu      sync.Mutex
	live    map[string]*liveSession
}

// liveSession pairs a controller with its record. mu guards every field and
// every call into ctrl.
type liveSession struct {
	mu       sync.Mutex
	ctrl     *engine.SessionController
	driver   *engine.Driver
	record   *models.Session
	dirty    bool
	finished bool
}

// NewSessionService creates a new session service
func NewSessionService(
	sessions storage.SessionRepository,
	completions storage.CompletionRepository,
	catalog *presets.Catalog,
	opts Options,
	log *logger.Logger,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		completions: completions,
		catalog:     catalog,
		opts:        opts,
		logger:      log,
		now:         time.Now,
		live:        make(map[string]*liveSession),
	}
}

// Presets returns the catalog the service resolves preset names against
func (s *SessionService) Presets() []presets.Preset {
	return s.catalog.List()
}

// StartSession creates a session for a user and enters its first step
func (s *SessionService) StartSession(ctx context.Context, req models.StartSessionRequest) (*models.Session, error) {
	if req.UserID == "" {
		return nil, ErrUserIDRequired
	}

	kind, presetName, title, specs, err := s.resolveSteps(req)
	if err != nil {
		return nil, err
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	if err := s.ensureNoActiveSession(ctx, req.UserID); err != nil {
		return nil, err
	}

	ls := &liveSession{}
	steps := make([]engine.Step, len(specs))
	for i, spec := range specs {
		steps[i] = engine.Step{
			DurationSeconds:   spec.DurationSeconds,
			BreakAfterSeconds: spec.BreakAfterSeconds,
			Payload:           spec,
		}
	}

	sessionID := uuid.New().String()
	log := s.logger.With(logger.F("session_id", sessionID))
	ctrl, err := engine.NewSessionController(steps, engine.Events{
		OnStepChange: func(index int, phase engine.Phase) {
			ls.dirty = true
			log.Debug("Step change", logger.F("index", fmt.Sprint(index)), logger.F("phase", string(phase)))
		},
		OnSessionComplete: func() {
			log.Info("Session complete")
		},
	}, engine.FeedbackFunc(func(cue engine.Cue) {
		log.Debug("Cue", logger.F("cue", string(cue)))
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSteps, err)
	}
	ls.ctrl = ctrl

	now := s.now()
	ls.record = &models.Session{
		SessionID: sessionID,
		UserID:    req.UserID,
		Kind:      kind,
		Preset:    presetName,
		Title:     title,
		Steps:     specs,
		Status:    models.StatusActive,
		StartedAt: now,
		UpdatedAt: now,
	}

	if err := ctrl.Start(); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	ls.record.State = snapshotOf(ctrl.State())
	ls.dirty = false

	if err := s.sessions.CreateSession(ctx, ls.record); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	s.mu.Lock()
	s.live[sessionID] = ls
	s.mu.Unlock()

	metrics.RecordSessionStarted(kind)
	log.Info("Session started",
		logger.F("user_id", req.UserID),
		logger.F("kind", kind),
		logger.F("preset", presetName))

	// A session made only of zero-length steps is complete as soon as it starts.
	s.sync(ctx, ls)
	if !ls.finished && s.opts.ServerTicks {
		ls.driver = engine.NewDriver(s.opts.TickInterval, func() { s.driverTick(ls) })
		ls.driver.Start()
	}

	return ls.record.Clone(), nil
}

// Control applies action to a live session. index is only read by ActionGoTo.
func (s *SessionService) Control(ctx context.Context, sessionID string, action Action, index int) (*models.Session, error) {
	ls, err := s.acquire(ctx, sessionID)
	if err != nil {
		metrics.RecordAction(string(action), false)
		return nil, err
	}
	defer ls.mu.Unlock()

	switch action {
	case ActionPlay:
		err = ls.ctrl.Play()
	case ActionPause:
		err = ls.ctrl.Pause()
	case ActionSkipForward:
		err = ls.ctrl.SkipForward()
	case ActionSkipBackward:
		err = ls.ctrl.SkipBackward()
	case ActionGoTo:
		err = ls.ctrl.GoToStep(index)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	metrics.RecordAction(string(action), err == nil)
	if err != nil {
		if errors.Is(err, engine.ErrSessionCompleted) || errors.Is(err, engine.ErrSessionDisposed) {
			return nil, ErrSessionNotActive
		}
		return nil, err
	}

	s.sync(ctx, ls)
	return ls.record.Clone(), nil
}

// Tick delivers n client-side seconds to a session. Only allowed when the
// service does not drive clocks itself.
func (s *SessionService) Tick(ctx context.Context, sessionID string, n int) (*models.Session, error) {
	if s.opts.ServerTicks {
		return nil, ErrClientTicksDisabled
	}
	if n <= 0 {
		n = 1
	}
	if n > maxTicksPerCall {
		n = maxTicksPerCall
	}

	ls, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()

	for i := 0; i < n && !ls.ctrl.Completed(); i++ {
		ls.ctrl.Tick()
	}
	s.sync(ctx, ls)
	return ls.record.Clone(), nil
}

// GetSession returns the live view of a hosted session, or the stored record
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if ls := s.lookup(sessionID); ls != nil {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		ls.record.State = snapshotOf(ls.ctrl.State())
		return ls.record.Clone(), nil
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListUserSessions returns every stored session of a user
func (s *SessionService) ListUserSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	sessions, err := s.sessions.GetSessionsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user sessions: %w", err)
	}
	for i, session := range sessions {
		if ls := s.lookup(session.SessionID); ls != nil {
			ls.mu.Lock()
			ls.record.State = snapshotOf(ls.ctrl.State())
			sessions[i] = ls.record.Clone()
			ls.mu.Unlock()
		}
	}
	return sessions, nil
}

// ExitSession leaves a session before it completes
func (s *SessionService) ExitSession(ctx context.Context, sessionID string) (*models.Session, error) {
	ls, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer ls.mu.Unlock()

	ls.record.State = snapshotOf(ls.ctrl.State())
	ls.ctrl.Dispose()
	s.end(ls, models.StatusExited)
	s.persist(ctx, ls.record)

	metrics.RecordSessionExited(ls.record.Kind)
	s.logger.Info("Session exited", logger.F("session_id", sessionID), logger.F("user_id", ls.record.UserID))
	return ls.record.Clone(), nil
}

// ListCompletions returns a user's completed sessions and total points
func (s *SessionService) ListCompletions(ctx context.Context, userID string) (*models.CompletionsResponse, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	completions, err := s.completions.ListCompletions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}

	resp := &models.CompletionsResponse{UserID: userID, Completions: completions}
	for _, c := range completions {
		resp.TotalPoints += c.Points
	}
	return resp, nil
}

// Shutdown stops every ticker and saves the latest snapshot of each live
// session. Sessions stay active in storage.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	live := make([]*liveSession, 0, len(s.live))
	for _, ls := range s.live {
		live = append(live, ls)
	}
	s.mu.Unlock()

	for _, ls := range live {
		ls.mu.Lock()
		if ls.driver != nil {
			ls.driver.Stop()
		}
		if !ls.finished {
			ls.record.State = snapshotOf(ls.ctrl.State())
			ls.record.UpdatedAt = s.now()
			s.persist(ctx, ls.record)
		}
		ls.mu.Unlock()

		if ls.driver != nil {
			select {
			case <-ls.driver.Done():
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *SessionService) resolveSteps(req models.StartSessionRequest) (kind, presetName, title string, steps []models.StepSpec, err error) {
	if req.Preset != "" {
		p, err := s.catalog.Get(req.Preset)
		if err != nil {
			return "", "", "", nil, fmt.Errorf("%w: %s", ErrUnknownPreset, req.Preset)
		}
		title = p.Title
		if req.Title != "" {
			title = req.Title
		}
		return p.Kind, p.Name, title, cloneSteps(p.Steps), nil
	}

	kind = req.Kind
	if kind == "" {
		kind = models.KindWorkout
	}
	if !presets.ValidKind(kind) {
		return "", "", "", nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSteps, kind)
	}
	if err := presets.ValidateSteps(req.Steps); err != nil {
		return "", "", "", nil, fmt.Errorf("%w: %v", ErrInvalidSteps, err)
	}
	return kind, "", req.Title, cloneSteps(req.Steps), nil
}

// ensureNoActiveSession rejects a start while the user has a live session.
// An active record this instance does not host is left over from a previous
// process and is closed as exited.
func (s *SessionService) ensureNoActiveSession(ctx context.Context, userID string) error {
	sessions, err := s.sessions.GetSessionsByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user sessions: %w", err)
	}

	for _, session := range sessions {
		if session.Status != models.StatusActive {
			continue
		}
		if s.lookup(session.SessionID) != nil {
			return fmt.Errorf("%w: %s", ErrActiveSession, session.SessionID)
		}

		now := s.now()
		session.Status = models.StatusExited
		session.UpdatedAt = now
		session.EndedAt = &now
		if err := s.sessions.UpdateSession(ctx, session); err != nil {
			return fmt.Errorf("failed to close orphaned session: %w", err)
		}
		s.logger.Warn("Closed orphaned session", logger.F("session_id", session.SessionID), logger.F("user_id", userID))
	}
	return nil
}

func (s *SessionService) lookup(sessionID string) *liveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[sessionID]
}

// acquire returns the live session locked, or the error explaining why it
// cannot be controlled.
func (s *SessionService) acquire(ctx context.Context, sessionID string) (*liveSession, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	if ls := s.lookup(sessionID); ls != nil {
		ls.mu.Lock()
		if !ls.finished {
			return ls, nil
		}
		ls.mu.Unlock()
		return nil, ErrSessionNotActive
	}

	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return nil, ErrSessionNotActive
}

// sync copies the controller state into the record and persists it after a
// step or phase change. It finalises the session once the controller
// reports completion. Callers hold ls.mu.
func (s *SessionService) sync(ctx context.Context, ls *liveSession) {
	if ls.finished {
		return
	}
	ls.record.State = snapshotOf(ls.ctrl.State())

	if ls.ctrl.Completed() {
		s.complete(ctx, ls)
		return
	}
	if ls.dirty {
		ls.dirty = false
		ls.record.UpdatedAt = s.now()
		s.persist(ctx, ls.record)
	}
}

func (s *SessionService) complete(ctx context.Context, ls *liveSession) {
	s.end(ls, models.StatusCompleted)
	s.persist(ctx, ls.record)

	completed := len(ls.record.State.CompletedStepIndices)
	completion := &models.Completion{
		SessionID:      ls.record.SessionID,
		UserID:         ls.record.UserID,
		Kind:           ls.record.Kind,
		Preset:         ls.record.Preset,
		CompletedSteps: completed,
		TotalSteps:     len(ls.record.Steps),
		Points:         completed * s.opts.PointsPerStep,
		CompletedAt:    *ls.record.EndedAt,
	}
	if err := s.completions.RecordCompletion(ctx, completion); err != nil {
		metrics.RecordPersistError("completion")
		s.logger.Error("Failed to record completion",
			logger.F("session_id", completion.SessionID),
			logger.Err(err))
	}

	metrics.RecordSessionCompleted(ls.record.Kind, completion.Points)
	s.logger.Info("Session completed",
		logger.F("session_id", completion.SessionID),
		logger.F("user_id", completion.UserID),
		logger.F("points", fmt.Sprint(completion.Points)))
}

// end marks the session finished, stops its ticker and drops it from the
// live set. Callers hold ls.mu.
func (s *SessionService) end(ls *liveSession, status string) {
	now := s.now()
	ls.finished = true
	ls.record.Status = status
	ls.record.UpdatedAt = now
	ls.record.EndedAt = &now
	if ls.driver != nil {
		ls.driver.Stop()
	}

	s.mu.Lock()
	delete(s.live, ls.record.SessionID)
	s.mu.Unlock()
}

func (s *SessionService) persist(ctx context.Context, session *models.Session) {
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		metrics.RecordPersistError("session")
		s.logger.Error("Failed to persist session",
			logger.F("session_id", session.SessionID),
			logger.Err(err))
	}
}

func (s *SessionService) driverTick(ls *liveSession) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.finished {
		return
	}

	ls.ctrl.Tick()
	if ls.dirty || ls.ctrl.Completed() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		s.sync(ctx, ls)
	}
}

func snapshotOf(state engine.SessionState) models.Snapshot {
	return models.Snapshot{
		CurrentStepIndex:     state.CurrentStepIndex,
		Phase:                string(state.Phase),
		RemainingSeconds:     state.RemainingSeconds,
		CompletedStepIndices: append([]int{}, state.CompletedStepIndices...),
	}
}

func cloneSteps(steps []models.StepSpec) []models.StepSpec {
	out := make([]models.StepSpec, len(steps))
	for i, step := range steps {
		step.Ingredients = append([]string(nil), step.Ingredients...)
		out[i] = step
	}
	return out
}
