package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stawikopa-del/fitfly-sub001/internal/engine"
	"github.com/stawikopa-del/fitfly-sub001/internal/models"
	"github.com/stawikopa-del/fitfly-sub001/internal/presets"
	"github.com/stawikopa-del/fitfly-sub001/internal/storage"
	"github.com/stawikopa-del/fitfly-sub001/pkg/logger"
)

func newTestService(t *testing.T, opts Options) (*SessionService, *storage.MemoryStorage) {
	t.Helper()
	catalog, err := presets.Defaults()
	require.NoError(t, err)
	mem := storage.NewMemoryStorage()
	if opts.PointsPerStep == 0 {
		opts.PointsPerStep = 10
	}
	svc := NewSessionService(mem, mem, catalog, opts, logger.Nop())
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return svc, mem
}

// twoSteps is a 5s step with a 2s break, then a 3s step.
func twoSteps(user string) models.StartSessionRequest {
	return models.StartSessionRequest{
		UserID: user,
		Kind:   models.KindWorkout,
		Steps: []models.StepSpec{
			{Name: "squats", DurationSeconds: 5, BreakAfterSeconds: 2},
			{Name: "plank", DurationSeconds: 3},
		},
	}
}

func TestSessionService_StartSession(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name    string
		req     models.StartSessionRequest
		wantErr error
		kind    string
	}{
		{
			name: "preset",
			req:  models.StartSessionRequest{UserID: "u-preset", Preset: "scrambled-eggs"},
			kind: models.KindCooking,
		},
		{
			name: "custom steps",
			req:  twoSteps("u-custom"),
			kind: models.KindWorkout,
		},
		{
			name:    "empty user ID",
			req:     models.StartSessionRequest{Preset: "quick-hiit"},
			wantErr: ErrUserIDRequired,
		},
		{
			name:    "unknown preset",
			req:     models.StartSessionRequest{UserID: "u1", Preset: "nope"},
			wantErr: ErrUnknownPreset,
		},
		{
			name:    "no steps",
			req:     models.StartSessionRequest{UserID: "u1"},
			wantErr: ErrInvalidSteps,
		},
		{
			name: "negative duration",
			req: models.StartSessionRequest{UserID: "u1", Steps: []models.StepSpec{
				{Name: "x", DurationSeconds: -1},
			}},
			wantErr: ErrInvalidSteps,
		},
		{
			name:    "unknown kind",
			req:     models.StartSessionRequest{UserID: "u1", Kind: "yoga", Steps: []models.StepSpec{{Name: "x", DurationSeconds: 1}}},
			wantErr: ErrInvalidSteps,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := svc.StartSession(ctx, tt.req)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, session.SessionID)
			assert.Equal(t, tt.req.UserID, session.UserID)
			assert.Equal(t, tt.kind, session.Kind)
			assert.Equal(t, models.StatusActive, session.Status)
			assert.Equal(t, 0, session.State.CurrentStepIndex)
			assert.Equal(t, string(engine.PhaseRunningStep), session.State.Phase)
			assert.Equal(t, session.Steps[0].DurationSeconds, session.State.RemainingSeconds)
		})
	}
}

func TestSessionService_StartSession_DuplicateSession(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	first, err := svc.StartSession(ctx, twoSteps("user123"))
	require.NoError(t, err)

	_, err = svc.StartSession(ctx, twoSteps("user123"))
	assert.True(t, errors.Is(err, ErrActiveSession))

	_, err = svc.ExitSession(ctx, first.SessionID)
	require.NoError(t, err)

	_, err = svc.StartSession(ctx, twoSteps("user123"))
	assert.NoError(t, err)
}

func TestSessionService_StartSession_ClosesOrphans(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	ctx := context.Background()

	orphan := &models.Session{SessionID: "old", UserID: "u1", Status: models.StatusActive, StartedAt: time.Now()}
	require.NoError(t, mem.CreateSession(ctx, orphan))

	_, err := svc.StartSession(ctx, twoSteps("u1"))
	require.NoError(t, err)

	stored, err := mem.GetSession(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExited, stored.Status)
	assert.NotNil(t, stored.EndedAt)
}

func TestSessionService_TickToCompletion(t *testing.T) {
	svc, mem := newTestService(t, Options{PointsPerStep: 7})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, twoSteps("u1"))
	require.NoError(t, err)

	session, err = svc.Tick(ctx, session.SessionID, 5)
	require.NoError(t, err)
	assert.Equal(t, string(engine.PhaseRunningBreak), session.State.Phase)
	assert.Equal(t, 2, session.State.RemainingSeconds)
	assert.Equal(t, []int{0}, session.State.CompletedStepIndices)

	session, err = svc.Tick(ctx, session.SessionID, 100)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, session.Status)
	assert.Equal(t, string(engine.PhaseCompleted), session.State.Phase)
	assert.Equal(t, []int{0, 1}, session.State.CompletedStepIndices)
	require.NotNil(t, session.EndedAt)

	stored, err := mem.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	resp, err := svc.ListCompletions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, resp.Completions, 1)
	assert.Equal(t, 14, resp.TotalPoints)
	assert.Equal(t, 2, resp.Completions[0].CompletedSteps)
	assert.Equal(t, 2, resp.Completions[0].TotalSteps)

	_, err = svc.Control(ctx, session.SessionID, ActionPlay, 0)
	assert.True(t, errors.Is(err, ErrSessionNotActive))
	_, err = svc.Tick(ctx, session.SessionID, 1)
	assert.True(t, errors.Is(err, ErrSessionNotActive))

	got, err := svc.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestSessionService_Control(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, twoSteps("u1"))
	require.NoError(t, err)
	id := session.SessionID

	_, err = svc.Tick(ctx, id, 2)
	require.NoError(t, err)

	session, err = svc.Control(ctx, id, ActionPause, 0)
	require.NoError(t, err)
	assert.Equal(t, string(engine.PhasePaused), session.State.Phase)
	assert.Equal(t, 3, session.State.RemainingSeconds)

	stored, err := mem.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(engine.PhasePaused), stored.State.Phase, "phase changes are persisted")

	session, err = svc.Tick(ctx, id, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, session.State.RemainingSeconds, "paused sessions ignore ticks")

	session, err = svc.Control(ctx, id, ActionSkipForward, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, session.State.CurrentStepIndex)
	assert.Equal(t, string(engine.PhasePaused), session.State.Phase)
	assert.Equal(t, 2, session.State.RemainingSeconds, "now in the break")

	session, err = svc.Control(ctx, id, ActionPlay, 0)
	require.NoError(t, err)
	assert.Equal(t, string(engine.PhaseRunningBreak), session.State.Phase)

	session, err = svc.Control(ctx, id, ActionGoTo, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, session.State.CurrentStepIndex)
	assert.Equal(t, 3, session.State.RemainingSeconds)

	session, err = svc.Control(ctx, id, ActionSkipBackward, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, session.State.CurrentStepIndex)
	assert.Equal(t, 5, session.State.RemainingSeconds)

	session, err = svc.Control(ctx, id, ActionGoTo, engine.OverviewIndex)
	require.NoError(t, err)
	assert.Equal(t, string(engine.PhaseIdle), session.State.Phase)

	_, err = svc.Control(ctx, id, ActionGoTo, 9)
	assert.True(t, errors.Is(err, engine.ErrInvalidStepIndex))

	_, err = svc.Control(ctx, id, Action("dance"), 0)
	assert.True(t, errors.Is(err, ErrUnknownAction))

	_, err = svc.Control(ctx, "missing", ActionPlay, 0)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionService_ExitSession(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, twoSteps("u1"))
	require.NoError(t, err)

	exited, err := svc.ExitSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExited, exited.Status)
	assert.NotNil(t, exited.EndedAt)

	_, err = svc.ExitSession(ctx, session.SessionID)
	assert.True(t, errors.Is(err, ErrSessionNotActive))

	_, err = svc.ExitSession(ctx, "non-existent")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	resp, err := svc.ListCompletions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, resp.Completions, "exiting earns nothing")
}

func TestSessionService_ZeroLengthSessionCompletesAtStart(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, models.StartSessionRequest{
		UserID: "u1",
		Kind:   models.KindCooking,
		Steps:  []models.StepSpec{{Name: "plate"}, {Name: "serve"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, session.Status)

	_, err = svc.StartSession(ctx, twoSteps("u1"))
	assert.NoError(t, err, "a completed session does not block a new one")
}

func TestSessionService_ClientTicksDisabled(t *testing.T) {
	svc, _ := newTestService(t, Options{ServerTicks: true, TickInterval: time.Hour})

	session, err := svc.StartSession(context.Background(), twoSteps("u1"))
	require.NoError(t, err)

	_, err = svc.Tick(context.Background(), session.SessionID, 1)
	assert.True(t, errors.Is(err, ErrClientTicksDisabled))
}

func TestSessionService_ServerTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	catalog, err := presets.Defaults()
	require.NoError(t, err)
	mem := storage.NewMemoryStorage()
	svc := NewSessionService(mem, mem, catalog, Options{
		ServerTicks:   true,
		TickInterval:  time.Millisecond,
		PointsPerStep: 5,
	}, logger.Nop())
	ctx := context.Background()

	session, err := svc.StartSession(ctx, models.StartSessionRequest{
		UserID: "u1",
		Steps: []models.StepSpec{
			{Name: "a", DurationSeconds: 3, BreakAfterSeconds: 1},
			{Name: "b", DurationSeconds: 2},
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.GetSession(ctx, session.SessionID)
		return err == nil && got.Status == models.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	resp, err := svc.ListCompletions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, resp.TotalPoints)

	svc.Shutdown(ctx)
}

func TestSessionService_ShutdownPersistsProgress(t *testing.T) {
	svc, mem := newTestService(t, Options{})
	ctx := context.Background()

	session, err := svc.StartSession(ctx, twoSteps("u1"))
	require.NoError(t, err)
	_, err = svc.Tick(ctx, session.SessionID, 4)
	require.NoError(t, err)

	stored, err := mem.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.State.RemainingSeconds, "ticks alone are not persisted")

	svc.Shutdown(ctx)

	stored, err = mem.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.State.RemainingSeconds)
	assert.Equal(t, models.StatusActive, stored.Status)
}

func TestSessionService_ListUserSessions(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	first, err := svc.StartSession(ctx, twoSteps("u1"))
	require.NoError(t, err)
	_, err = svc.ExitSession(ctx, first.SessionID)
	require.NoError(t, err)
	second, err := svc.StartSession(ctx, twoSteps("u1"))
	require.NoError(t, err)
	_, err = svc.Tick(ctx, second.SessionID, 1)
	require.NoError(t, err)

	sessions, err := svc.ListUserSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[string]*models.Session{}
	for _, s := range sessions {
		byID[s.SessionID] = s
	}
	assert.Equal(t, models.StatusExited, byID[first.SessionID].Status)
	assert.Equal(t, 4, byID[second.SessionID].State.RemainingSeconds, "live sessions report live state")

	_, err = svc.ListUserSessions(ctx, "")
	assert.True(t, errors.Is(err, ErrUserIDRequired))
}
