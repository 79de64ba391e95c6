package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"

	"tunevault/pkg/backup"
	"tunevault/pkg/catalog"
	"tunevault/pkg/health"
	"tunevault/pkg/models"
	"tunevault/pkg/monitor"
	"tunevault/pkg/probe"
	"tunevault/pkg/state"
)

type ServerTestSuite struct {
	suite.Suite
	server       *Server
	store        *catalog.Store
	primaryPath  string
	fallbackPath string
}

func (s *ServerTestSuite) SetupTest() {
	base := s.T().TempDir()
	s.primaryPath = filepath.Join(base, "primary")
	s.fallbackPath = filepath.Join(base, "fallback")
	s.Require().NoError(os.MkdirAll(s.primaryPath, 0o750))
	s.Require().NoError(os.MkdirAll(s.fallbackPath, 0o750))

	var err error
	s.store, err = catalog.NewStore(filepath.Join(base, "tunevault.db"))
	s.Require().NoError(err)
	s.Require().NoError(s.store.SeedEndpoints(s.primaryPath, s.fallbackPath))

	prober := probe.New(probe.DefaultWarningThreshold)
	st := state.New(state.DefaultSwitchCooldown)
	mon := monitor.New(prober, s.store, st, s.primaryPath, s.fallbackPath, monitor.DefaultCheckInterval)
	checker := health.New(s.store, s.primaryPath, s.fallbackPath, mon, health.Config{
		IOPayloadSize:    4 << 10,
		WarningThreshold: 0.99,
	})
	backupMgr := backup.New(s.store, prober, s.primaryPath, s.fallbackPath, 10)

	s.server = NewServer(mon, checker, backupMgr, s.store, 10*time.Second)
}

func (s *ServerTestSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *ServerTestSuite) request(method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return s.server.echo.NewContext(req, rec), rec
}

func (s *ServerTestSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var payload map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func (s *ServerTestSuite) TestRoutes() {
	routePaths := make(map[string]bool)
	for _, route := range s.server.echo.Routes() {
		routePaths[route.Method+" "+route.Path] = true
	}

	s.True(routePaths["GET /storage/status"])
	s.True(routePaths["POST /storage/switch"])
	s.True(routePaths["POST /storage/auto-switch"])
	s.True(routePaths["POST /health/check/:storage"])
	s.True(routePaths["GET /alerts"])
	s.True(routePaths["POST /backup/sync"])
	s.True(routePaths["GET /backup/status"])
	s.True(routePaths["POST /maintenance/cleanup"])
}

func (s *ServerTestSuite) TestStorageStatus() {
	ctx, rec := s.request(http.MethodGet, "/storage/status", "")
	s.Require().NoError(s.server.StorageStatusHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal("primary", payload["current_storage"])
	s.Equal("healthy", payload["overall_health"])
	s.Equal(false, payload["should_switch"])
}

func (s *ServerTestSuite) TestSwitchAndBack() {
	ctx, rec := s.request(http.MethodPost, "/storage/switch", `{"storage_type":"fallback"}`)
	s.Require().NoError(s.server.SwitchHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal("primary", payload["old_storage"])
	s.Equal("fallback", payload["new_storage"])
}

func (s *ServerTestSuite) TestSwitchValidation() {
	ctx, rec := s.request(http.MethodPost, "/storage/switch", `{"storage_type":"cloud"}`)
	s.Require().NoError(s.server.SwitchHandler(ctx))
	s.Equal(http.StatusBadRequest, rec.Code)

	ctx, rec = s.request(http.MethodPost, "/storage/switch", "")
	s.Require().NoError(s.server.SwitchHandler(ctx))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestSwitchToUnavailableTarget() {
	s.Require().NoError(os.RemoveAll(s.fallbackPath))

	ctx, rec := s.request(http.MethodPost, "/storage/switch", `{"storage_type":"fallback"}`)
	s.Require().NoError(s.server.SwitchHandler(ctx))
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *ServerTestSuite) TestAutoSwitchNotNeeded() {
	ctx, rec := s.request(http.MethodPost, "/storage/auto-switch", "")
	s.Require().NoError(s.server.AutoSwitchHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal(false, payload["switched"])
}

func (s *ServerTestSuite) TestAutoSwitchOnFailedPrimary() {
	s.Require().NoError(os.RemoveAll(s.primaryPath))

	ctx, rec := s.request(http.MethodPost, "/storage/auto-switch", "")
	s.Require().NoError(s.server.AutoSwitchHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal(true, payload["switched"])
}

func (s *ServerTestSuite) TestStorageEvents() {
	s.Require().NoError(s.store.AppendEvent(models.EventSwitch, models.StorageFallback, "switched"))

	ctx, rec := s.request(http.MethodGet, "/storage/events?limit=10", "")
	s.Require().NoError(s.server.StorageEventsHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Len(payload["events"], 1)
}

func (s *ServerTestSuite) TestStorageEventsBadLimit() {
	ctx, rec := s.request(http.MethodGet, "/storage/events?limit=zero", "")
	s.Require().NoError(s.server.StorageEventsHandler(ctx))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestHealthCheck() {
	ctx, rec := s.request(http.MethodPost, "/health/check/primary", "")
	ctx.SetParamNames("storage")
	ctx.SetParamValues("primary")

	s.Require().NoError(s.server.HealthCheckHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.Equal("healthy", payload["overall_status"])
}

func (s *ServerTestSuite) TestHealthCheckBadStorage() {
	ctx, rec := s.request(http.MethodPost, "/health/check/tape", "")
	ctx.SetParamNames("storage")
	ctx.SetParamValues("tape")

	s.Require().NoError(s.server.HealthCheckHandler(ctx))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestAlertLifecycle() {
	id, err := s.store.CreateAlert(models.StoragePrimary, models.CheckSpaceUtilization,
		models.SeverityWarning, "High disk usage: 91.0%")
	s.Require().NoError(err)

	ctx, rec := s.request(http.MethodGet, "/alerts", "")
	s.Require().NoError(s.server.AlertsHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)
	s.Len(s.decode(rec)["alerts"], 1)

	resolvePath := fmt.Sprintf("/alerts/%d/resolve", id)
	ctx, rec = s.request(http.MethodPost, resolvePath, "")
	ctx.SetParamNames("id")
	ctx.SetParamValues(fmt.Sprintf("%d", id))
	s.Require().NoError(s.server.ResolveAlertHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	// Second resolve reports not found.
	ctx, rec = s.request(http.MethodPost, resolvePath, "")
	ctx.SetParamNames("id")
	ctx.SetParamValues(fmt.Sprintf("%d", id))
	s.Require().NoError(s.server.ResolveAlertHandler(ctx))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerTestSuite) TestBackupSyncAndStatus() {
	path := filepath.Join(s.primaryPath, "favorite.mp3")
	s.Require().NoError(os.WriteFile(path, []byte("audio data"), 0o600))
	_, err := s.store.AddSong(&models.Song{
		Title:           "favorite",
		Filename:        "favorite.mp3",
		Filepath:        path,
		FileSize:        10,
		PlayCount:       42,
		IsAvailable:     true,
		StorageLocation: models.LocationPrimary,
	})
	s.Require().NoError(err)

	ctx, rec := s.request(http.MethodPost, "/backup/sync", "")
	s.Require().NoError(s.server.BackupSyncHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)
	payload := s.decode(rec)
	s.InDelta(1, payload["backed_up"], 0.01)

	ctx, rec = s.request(http.MethodGet, "/backup/status", "")
	s.Require().NoError(s.server.BackupStatusHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)
	payload = s.decode(rec)
	s.InDelta(1, payload["both_locations"], 0.01)

	ctx, rec = s.request(http.MethodPost, "/backup/verify", "")
	s.Require().NoError(s.server.BackupVerifyHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)
	payload = s.decode(rec)
	s.InDelta(1, payload["verified"], 0.01)
}

func (s *ServerTestSuite) TestCleanup() {
	ctx, rec := s.request(http.MethodPost, "/maintenance/cleanup?days=7", "")
	s.Require().NoError(s.server.CleanupHandler(ctx))
	s.Equal(http.StatusOK, rec.Code)

	payload := s.decode(rec)
	s.InDelta(7, payload["retention_days"], 0.01)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
