package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/api/ws"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/auth"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/generation"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/content"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/panels"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/progress"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/study"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/domain/workspace"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/authstore"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req generation.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) Name() string {
	return m.Called().String(0)
}

type testAPI struct {
	router  *gin.Engine
	manager *workspace.Manager
	metrics *monitoring.Metrics
}

func newTestAPI(t *testing.T, gen generation.Generator) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t)
	metrics := monitoring.NewMetrics()
	tiers := persistence.Tiers{
		Remote:  persistence.NewMemoryStore(),
		Local:   persistence.NewMemoryStore(),
		Logger:  logger,
		Metrics: metrics,
	}
	notes := content.New(tiers)
	tracker := progress.New(tiers, progress.WithLocation(time.UTC))
	hub := ws.NewHub(logger, metrics)
	manager := workspace.NewManager(tiers, notes, tracker, workspace.DefaultConfig()).WithPublisher(hub)
	authSvc := auth.NewService(authstore.NewMemoryStore(), time.Hour, logger, auth.Guest{})

	h := NewHandlers(Deps{
		Auth:       authSvc,
		Workspaces: manager,
		Notes:      notes,
		Progress:   tracker,
		Study:      study.New(gen, notes, logger),
		Hub:        hub,
		Metrics:    metrics,
		Logger:     logger,
		Version:    "test",
	})
	router := gin.New()
	h.Register(router)
	return &testAPI{router: router, manager: manager, metrics: metrics}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/login", "", types.LoginRequest{Provider: "guest"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type viewResponse struct {
	Applied   bool           `json:"applied"`
	Workspace workspace.View `json:"workspace"`
}

func TestAuthRoutes(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(t, http.MethodGet, "/api/v1/workspace", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/auth/login", "", types.LoginRequest{Provider: "github"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := api.login(t)

	w = api.do(t, http.MethodGet, "/api/v1/auth/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sess struct {
		Identity  types.Identity `json:"identity"`
		Providers []string       `json:"providers"`
	}
	decode(t, w, &sess)
	assert.True(t, sess.Identity.Guest)
	assert.Equal(t, []string{"guest"}, sess.Providers)

	// open the workspace so logout has something to close
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/v1/workspace", token, nil).Code)
	assert.Equal(t, 1, api.manager.Count())

	w = api.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, api.manager.Count(), "guest workspace closes on logout")

	w = api.do(t, http.MethodGet, "/api/v1/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWorkspaceRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	w := api.do(t, http.MethodGet, "/api/v1/workspace", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/workspace/panels/video/toggle", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp viewResponse
	decode(t, w, &resp)
	assert.True(t, resp.Applied)

	w = api.do(t, http.MethodPost, "/api/v1/workspace/panels/teleporter/toggle", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPatch, "/api/v1/workspace/panels/notes/geometry", token,
		types.GeometryPatch{Width: intPtr(-5)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/workspace/presets/nonsense", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fallback struct {
		viewResponse
		Preset string `json:"preset"`
	}
	decode(t, w, &fallback)
	assert.True(t, fallback.Applied)
	assert.Equal(t, panels.Default().Name, fallback.Preset)
	for id, entry := range panels.Default().Panels {
		got := fallback.Workspace.Window.Panels[id]
		assert.Equal(t, entry.IsOpen, got.IsOpen, "%s", id)
		assert.Equal(t, entry.Geometry, got.Geometry, "%s", id)
	}

	w = api.do(t, http.MethodPost, "/api/v1/workspace/presets/zen", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.True(t, resp.Applied)
	assert.NotEmpty(t, resp.Workspace.Window.Panels)
}

func TestFocusLockSuppressesPanelOps(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	w := api.do(t, http.MethodPost, "/api/v1/workspace/lock", token,
		types.LockRequest{LockPanel: "focus", Companion: "notes"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp viewResponse
	decode(t, w, &resp)
	require.True(t, resp.Applied)
	assert.True(t, resp.Workspace.Window.IsFocusLocked)

	w = api.do(t, http.MethodPost, "/api/v1/workspace/panels/video/toggle", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.False(t, resp.Applied, "locked workspaces ignore other panels")

	w = api.do(t, http.MethodPost, "/api/v1/workspace/unlock", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.True(t, resp.Applied)
	assert.False(t, resp.Workspace.Window.IsFocusLocked)
}

func TestTimerRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	w := api.do(t, http.MethodPost, "/api/v1/timer/start", token, types.TimerStartRequest{Mode: "nap"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/timer/start", token, types.TimerStartRequest{Mode: "focus", Duration: -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	lock := true
	w = api.do(t, http.MethodPost, "/api/v1/timer/start", token,
		types.TimerStartRequest{Mode: "focus", Lock: &lock, Companion: "notes"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp viewResponse
	decode(t, w, &resp)
	assert.True(t, resp.Workspace.Session.IsActive)
	assert.Equal(t, types.DefaultSettings().FocusMinutes*60, resp.Workspace.Session.TotalTime)
	assert.True(t, resp.Workspace.Window.IsFocusLocked)

	w = api.do(t, http.MethodGet, "/api/v1/timer", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var timerResp struct {
		Session types.FocusSession `json:"session"`
	}
	decode(t, w, &timerResp)
	assert.Equal(t, types.ModeFocus, timerResp.Session.Mode)

	w = api.do(t, http.MethodPost, "/api/v1/timer/stop", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.False(t, resp.Workspace.Session.IsActive)
	assert.False(t, resp.Workspace.Window.IsFocusLocked)
}

func TestPageAndBlockRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	w := api.do(t, http.MethodPost, "/api/v1/pages", token, types.PageRequest{Title: "Biology"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pageResp struct {
		Page types.Page `json:"page"`
	}
	decode(t, w, &pageResp)
	pageID := string(pageResp.Page.ID)
	require.NotEmpty(t, pageID)

	var blockIDs []string
	for _, text := range []string{"cells", "mitochondria"} {
		w = api.do(t, http.MethodPost, "/api/v1/pages/"+pageID+"/blocks", token,
			types.BlockRequest{Type: "text", Content: text})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var blockResp struct {
			Block types.Block `json:"block"`
		}
		decode(t, w, &blockResp)
		blockIDs = append(blockIDs, string(blockResp.Block.ID))
	}

	w = api.do(t, http.MethodPost, "/api/v1/pages/"+pageID+"/blocks", token,
		types.BlockRequest{Type: "table", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/pages/"+pageID+"/blocks/"+blockIDs[1]+"/move", token,
		types.MoveBlockRequest{Index: 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/pages/"+pageID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var full struct {
		Page   types.Page    `json:"page"`
		Blocks []types.Block `json:"blocks"`
	}
	decode(t, w, &full)
	require.Len(t, full.Blocks, 2)
	assert.Equal(t, "mitochondria", full.Blocks[0].Content)

	content := "the powerhouse"
	w = api.do(t, http.MethodPatch, "/api/v1/blocks/"+blockIDs[1], token, types.BlockPatch{Content: &content})
	require.Equal(t, http.StatusOK, w.Code)

	title := "Cell Biology"
	w = api.do(t, http.MethodPatch, "/api/v1/pages/"+pageID, token, types.PagePatch{Title: &title})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &pageResp)
	assert.Equal(t, title, pageResp.Page.Title)

	w = api.do(t, http.MethodDelete, "/api/v1/blocks/"+blockIDs[0], token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, "/api/v1/pages/"+pageID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/pages/"+pageID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPatch, "/api/v1/blocks/"+blockIDs[1], token, types.BlockPatch{Content: &content})
	assert.Equal(t, http.StatusNotFound, w.Code, "blocks are deleted with their page")

	w = api.do(t, http.MethodGet, "/api/v1/pages/bad$id", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	focus := 45
	w := api.do(t, http.MethodPatch, "/api/v1/settings", token, types.SettingsPatch{FocusMinutes: &focus})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Settings types.Settings `json:"settings"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 45, resp.Settings.FocusMinutes)

	zero := 0
	w = api.do(t, http.MethodPatch, "/api/v1/settings", token, types.SettingsPatch{FocusMinutes: &zero})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/settings", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, 45, resp.Settings.FocusMinutes)

	for format, contentType := range map[string]string{
		"json": "application/json",
		"yaml": "application/yaml",
		"toml": "application/toml",
	} {
		w = api.do(t, http.MethodGet, "/api/v1/settings/export?format="+format, token, nil)
		require.Equal(t, http.StatusOK, w.Code, format)
		assert.Equal(t, contentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "studydesk-settings."+format)
		assert.Contains(t, w.Body.String(), "45")
	}

	w = api.do(t, http.MethodGet, "/api/v1/settings/export?format=xml", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressRoutes(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	w := api.do(t, http.MethodGet, "/api/v1/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Stats types.Stats `json:"stats"`
	}
	decode(t, w, &stats)
	assert.Equal(t, 0, stats.Stats.XP)

	w = api.do(t, http.MethodGet, "/api/v1/notifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/notifications/ntf_missing/read", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudyRoutesUnavailable(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	w := api.do(t, http.MethodPost, "/api/v1/pages", token, types.PageRequest{Title: "Chemistry"})
	require.Equal(t, http.StatusCreated, w.Code)
	var pageResp struct {
		Page types.Page `json:"page"`
	}
	decode(t, w, &pageResp)

	w = api.do(t, http.MethodPost, "/api/v1/study/quiz", token, types.QuizRequest{PageID: string(pageResp.Page.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var quiz struct {
		Quiz study.Quiz `json:"quiz"`
	}
	decode(t, w, &quiz)
	assert.Equal(t, study.StateUnavailable, quiz.Quiz.Status.State)

	w = api.do(t, http.MethodPost, "/api/v1/study/quiz", token, types.QuizRequest{PageID: "pg_missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/study/chat", token, types.ChatRequest{Message: "what is ATP?"})
	require.Equal(t, http.StatusOK, w.Code)
	var reply struct {
		Reply study.Reply `json:"reply"`
	}
	decode(t, w, &reply)
	assert.Equal(t, study.StateUnavailable, reply.Reply.Status.State)
}

func TestStudySummaryWithProvider(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req generation.Request) bool {
		return req.JSON && strings.Contains(req.Prompt, "Bonds")
	})).Return(`{"summary":"Atoms bond.","key_points":["ionic","covalent"]}`, nil).Once()
	gen.On("Name").Return("mock").Maybe()

	api := newTestAPI(t, gen)
	token := api.login(t)

	w := api.do(t, http.MethodPost, "/api/v1/pages", token, types.PageRequest{Title: "Bonds"})
	require.Equal(t, http.StatusCreated, w.Code)
	var pageResp struct {
		Page types.Page `json:"page"`
	}
	decode(t, w, &pageResp)

	w = api.do(t, http.MethodPost, "/api/v1/study/summary", token, types.SummaryRequest{PageID: string(pageResp.Page.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Summary study.Summary `json:"summary"`
	}
	decode(t, w, &resp)
	assert.Equal(t, study.StateReady, resp.Summary.Status.State)
	assert.Equal(t, "Atoms bond.", resp.Summary.Text)
	assert.Equal(t, []string{"ionic", "covalent"}, resp.Summary.KeyPoints)
	gen.AssertExpectations(t)
}

func TestHealthAndMetricsSummary(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)
	api.do(t, http.MethodGet, "/api/v1/workspace", token, nil)

	w := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"workspaces":1`))

	w = api.do(t, http.MethodGet, "/api/v1/presets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Studio")

	w = api.do(t, http.MethodGet, "/api/v1/metrics/summary", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary MetricsSummary
	decode(t, w, &summary)
	assert.Equal(t, 1, summary.ActiveWorkspaces)
}

func TestStreamLogs(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	entries := make([]RendererLog, MaxLogEntries+5)
	for i := range entries {
		entries[i] = RendererLog{ID: strconv.Itoa(i), Level: "warn", Message: "slow render", Panel: "notes",
			Context: map[string]any{"ms": 42.0}}
	}
	w := api.do(t, http.MethodPost, "/api/v1/logs", token, RendererLogBatch{Source: "ui", Entries: entries})
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]int
	decode(t, w, &got)
	assert.Equal(t, map[string]int{"accepted": MaxLogEntries, "dropped": 5}, got)

	w = api.do(t, http.MethodPost, "/api/v1/logs", token, RendererLogBatch{Source: "kernel"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/v1/logs", token, RendererLogBatch{Source: "ui"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func intPtr(v int) *int { return &v }

func TestImportPage(t *testing.T) {
	api := newTestAPI(t, nil)
	token := api.login(t)

	send := func(req *http.Request) *httptest.ResponseRecorder {
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		return w
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader("# Genetics\n\n- [ ] Punnett squares\n"))
	req.Header.Set("Content-Type", "text/markdown")
	w := send(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Page   types.Page    `json:"page"`
		Blocks []types.Block `json:"blocks"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "Genetics", resp.Page.Title)
	require.Len(t, resp.Blocks, 2)
	assert.Equal(t, types.BlockTodo, resp.Blocks[1].Type)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Lecture 4"))
	fw, err := mw.CreateFormFile("file", "lecture.html")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`<html><body><h2>Mitosis</h2><p>Prophase first.</p></body></html>`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/import?parent_id="+string(resp.Page.ID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = send(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.Equal(t, "Lecture 4", resp.Page.Title)
	require.NotNil(t, resp.Page.ParentID)
	assert.Len(t, resp.Blocks, 2)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/import", bytes.NewReader([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0}))
	w = send(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(""))
	w = send(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
