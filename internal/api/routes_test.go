package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/db"
	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/export"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/studio"
)

const testToken = "test-token-0123456789"

type fakeExporter struct {
	runFn func(ctx context.Context, req export.Request, obs export.Observer) (*export.Result, error)
}

func (f *fakeExporter) Negotiate(_ context.Context, format string) (encoder.Profile, error) {
	switch format {
	case encoder.FormatMP4:
		return encoder.Profile{Format: format, MIMEType: "video/mp4", Container: "mp4", VideoCodec: "libopenh264", Extension: ".mp4"}, nil
	case encoder.FormatFrames:
		return encoder.Profile{Format: format, MIMEType: "image/png", Container: "image2", VideoCodec: "png"}, nil
	}
	return encoder.Profile{}, encoder.ErrUnsupportedFormat
}

func (f *fakeExporter) Run(ctx context.Context, req export.Request, obs export.Observer) (*export.Result, error) {
	if f.runFn != nil {
		return f.runFn(ctx, req, obs)
	}
	return nil, export.ErrBusy
}

type testEnv struct {
	router http.Handler
	cfg    ServerConfig
	repo   studio.Repository
	exp    *fakeExporter
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := studio.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	logger := quietLogger()
	svc := studio.NewService(repo, studio.Options{Logger: logger})
	exp := &fakeExporter{}
	runner := studio.NewRunner(svc, repo, exp, nil, studio.RunnerConfig{OutputDir: t.TempDir(), FrameRate: 30}, logger)

	cfg := ServerConfig{
		Version:    "test",
		Service:    svc,
		Repository: repo,
		Runner:     runner,
		Negotiator: exp,
		Files:      playback.NewFileServer(logger),
		Logger:     logger,
		StartTime:  time.Now().Add(-5 * time.Second),
	}
	return &testEnv{router: NewRouter(cfg), cfg: cfg, repo: repo, exp: exp}
}

// do sends an authenticated loopback request through the router.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
		contentType = "application/octet-stream"
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json.Marshal error: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	return decodeJSON[map[string]any](t, rr)
}

func wavBytes(t *testing.T, seconds float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := audio.Silence(seconds, 8000, 1).WriteWAV(&buf); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 0xff, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// createProjectWithAudio returns the id of a project with a 2s track, which
// pads to 5s.
func (e *testEnv) createProjectWithAudio(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/projects", CreateProjectRequest{Name: "Reel"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	id := decodeJSON[TimelineResponse](t, rr).ID

	rr = e.do(t, http.MethodPost, "/projects/"+id+"/audio?name=voice.wav", wavBytes(t, 2))
	if rr.Code != http.StatusOK {
		t.Fatalf("audio status = %d, body %s", rr.Code, rr.Body.String())
	}
	return id
}

func TestHealthHandler(t *testing.T) {
	env := setupEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeJSON[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("unexpected health response: %+v", resp)
	}
	if resp.UptimeS < 5 {
		t.Errorf("UptimeS = %d, want >= 5", resp.UptimeS)
	}
}

func TestAuth_RequiresToken(t *testing.T) {
	env := setupEnv(t)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testToken, "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + testToken, "", http.StatusOK},
		{"query", "", "?token=" + testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestStatusHandler_Idle(t *testing.T) {
	env := setupEnv(t)
	env.do(t, http.MethodPost, "/projects", nil)

	rr := env.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON[StatusResponse](t, rr)
	if resp.State != "idle" {
		t.Errorf("State = %q, want idle", resp.State)
	}
	if resp.ProjectCount != 1 {
		t.Errorf("ProjectCount = %d, want 1", resp.ProjectCount)
	}
	if resp.FFmpeg != nil {
		t.Errorf("FFmpeg = %+v, want nil without a probe", resp.FFmpeg)
	}
}

func TestStatusHandler_Paused(t *testing.T) {
	env := setupEnv(t)
	if rr := env.do(t, http.MethodPost, "/runner/pause", nil); rr.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rr.Code)
	}

	resp := decodeJSON[StatusResponse](t, env.do(t, http.MethodGet, "/status", nil))
	if resp.State != "paused" {
		t.Errorf("State = %q, want paused", resp.State)
	}

	runner := decodeJSON[RunnerResponse](t, env.do(t, http.MethodPost, "/runner/resume", nil))
	if runner.Paused {
		t.Error("runner still paused after resume")
	}
}

func TestFormatsHandler(t *testing.T) {
	env := setupEnv(t)
	resp := decodeJSON[FormatsResponse](t, env.do(t, http.MethodGet, "/formats", nil))

	supported := map[string]bool{}
	for _, f := range resp.Formats {
		supported[f.Format] = f.Supported
	}
	if len(resp.Formats) != len(encoder.Formats()) {
		t.Fatalf("got %d formats, want %d", len(resp.Formats), len(encoder.Formats()))
	}
	if !supported["mp4"] || !supported["frames"] {
		t.Errorf("mp4 and frames should be supported: %v", supported)
	}
	if supported["webm"] || supported["avi"] {
		t.Errorf("webm and avi should be unsupported: %v", supported)
	}
}

func TestProjects_CreateListUpdateDelete(t *testing.T) {
	env := setupEnv(t)

	rr := env.do(t, http.MethodPost, "/projects", CreateProjectRequest{Name: "Demo"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	created := decodeJSON[TimelineResponse](t, rr)
	if created.Name != "Demo" {
		t.Errorf("Name = %q, want Demo", created.Name)
	}
	if created.Media == nil || created.Clips == nil || created.Annotations == nil {
		t.Error("empty collections should encode as arrays")
	}

	list := decodeJSON[ProjectsResponse](t, env.do(t, http.MethodGet, "/projects", nil))
	if len(list.Projects) != 1 || list.Projects[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	name, title := "Renamed", "My Reel"
	rr = env.do(t, http.MethodPatch, "/projects/"+created.ID+"/", UpdateProjectRequest{Name: &name, VideoTitle: &title})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}
	updated := decodeJSON[TimelineResponse](t, rr)
	if updated.Name != "Renamed" || updated.VideoTitle != "My Reel" {
		t.Errorf("unexpected update: %+v", updated)
	}

	empty := " "
	if rr := env.do(t, http.MethodPatch, "/projects/"+created.ID+"/", UpdateProjectRequest{Name: &empty}); rr.Code != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", rr.Code)
	}

	if rr := env.do(t, http.MethodDelete, "/projects/"+created.ID+"/", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/projects/"+created.ID+"/", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", body["code"])
	}
}

func TestProjects_SaveDocumentAndImport(t *testing.T) {
	env := setupEnv(t)
	id := env.createProjectWithAudio(t)

	if rr := env.do(t, http.MethodPost, "/projects/"+id+"/save", nil); rr.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr := env.do(t, http.MethodGet, "/projects/"+id+"/document", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("document status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "Reel.indii") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	doc := rr.Body.Bytes()

	rr = env.do(t, http.MethodPost, "/projects/import", doc)
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body %s", rr.Code, rr.Body.String())
	}
	imported := decodeJSON[TimelineResponse](t, rr)
	if imported.ID == id {
		t.Error("import should create a new project")
	}
	if imported.AudioDuration != 5 {
		t.Errorf("AudioDuration = %v, want 5", imported.AudioDuration)
	}

	rr = env.do(t, http.MethodPost, "/projects/import", `{"version":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed import status = %d, want 400", rr.Code)
	}
}

func TestImportAudio(t *testing.T) {
	env := setupEnv(t)
	created := decodeJSON[TimelineResponse](t, env.do(t, http.MethodPost, "/projects", nil))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "voice.wav")
	fw.Write(wavBytes(t, 4))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/projects/"+created.ID+"/audio", &body)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[AudioResponse](t, rr)
	if resp.Duration != 7 {
		t.Errorf("Duration = %v, want 7", resp.Duration)
	}
	if resp.Width <= 0 {
		t.Errorf("Width = %d, want > 0", resp.Width)
	}

	rr = env.do(t, http.MethodPost, "/projects/"+created.ID+"/audio", "not audio at all")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid audio status = %d, want 422", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/projects/missing/audio", wavBytes(t, 1))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d, want 404", rr.Code)
	}
}

func uploadPNG(t *testing.T, env *testEnv, id string) string {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/projects/"+id+"/media?name=shot.png", pngBytes(t, 8, 8))
	if rr.Code != http.StatusCreated {
		t.Fatalf("media status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON[MediaResponse](t, rr)
	if len(resp.Media) != 1 {
		t.Fatalf("got %d media items, want 1", len(resp.Media))
	}
	return resp.Media[0].ID
}

func TestClips_AddMoveResizeDelete(t *testing.T) {
	env := setupEnv(t)
	id := env.createProjectWithAudio(t)
	mediaID := uploadPNG(t, env, id)
	base := "/projects/" + id

	start := 1.0
	rr := env.do(t, http.MethodPost, base+"/clips", AddClipRequest{MediaID: mediaID, StartTime: &start})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add clip status = %d, body %s", rr.Code, rr.Body.String())
	}
	clip := decodeJSONBody(t, rr)
	clipID := clip["id"].(string)
	if clip["duration"].(float64) != 3 {
		t.Errorf("duration = %v, want default 3", clip["duration"])
	}

	to := 1.5
	rr = env.do(t, http.MethodPatch, base+"/clips/"+clipID, MoveClipRequest{StartTime: &to})
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d, body %s", rr.Code, rr.Body.String())
	}
	if got := decodeJSONBody(t, rr)["startTime"].(float64); got != 1.5 {
		t.Errorf("startTime = %v, want 1.5", got)
	}

	rr = env.do(t, http.MethodPost, base+"/clips/"+clipID+"/resize", ResizeClipRequest{Edge: "top", Value: 1})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad edge status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodPost, base+"/clips", AddClipRequest{MediaID: mediaID, StartTime: ptr(99.0)})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("out of range status = %d, want 422", rr.Code)
	}
	rr = env.do(t, http.MethodPost, base+"/clips", AddClipRequest{MediaID: "nope"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown media status = %d, want 404", rr.Code)
	}

	if rr := env.do(t, http.MethodDelete, base+"/clips/"+clipID, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, base+"/clips/"+clipID, nil); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestClips_RequireAudio(t *testing.T) {
	env := setupEnv(t)
	created := decodeJSON[TimelineResponse](t, env.do(t, http.MethodPost, "/projects", nil))
	mediaID := uploadPNG(t, env, created.ID)

	rr := env.do(t, http.MethodPost, "/projects/"+created.ID+"/clips", AddClipRequest{MediaID: mediaID})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "NO_AUDIO" {
		t.Errorf("code = %v, want NO_AUDIO", body["code"])
	}
}

func TestStartScreen_Protected(t *testing.T) {
	env := setupEnv(t)
	id := env.createProjectWithAudio(t)
	mediaID := uploadPNG(t, env, id)

	rr := env.do(t, http.MethodPut, "/projects/"+id+"/start-screen", StartScreenRequest{MediaID: mediaID})
	if rr.Code != http.StatusOK {
		t.Fatalf("start screen status = %d, body %s", rr.Code, rr.Body.String())
	}
	clipID := decodeJSON[IDResponse](t, rr).ID

	rr = env.do(t, http.MethodDelete, "/projects/"+id+"/clips/"+clipID, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("delete start screen status = %d, want 409", rr.Code)
	}
}

func TestAnnotations_PixelPlacement(t *testing.T) {
	env := setupEnv(t)
	id := env.createProjectWithAudio(t)
	base := "/projects/" + id

	rr := env.do(t, http.MethodPost, base+"/annotations", AddAnnotationRequest{
		Time: 3.5, PixelX: 50, PixelY: 25, FrameWidth: 200, FrameHeight: 100,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rr.Code, rr.Body.String())
	}
	a := decodeJSONBody(t, rr)
	if a["x"].(float64) != 25 || a["y"].(float64) != 25 {
		t.Errorf("position = (%v, %v), want (25, 25)", a["x"], a["y"])
	}
	annID := a["id"].(string)

	rr = env.do(t, http.MethodPatch, base+"/annotations/"+annID, MoveAnnotationRequest{Time: 4})
	if rr.Code != http.StatusOK {
		t.Fatalf("move status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, base+"/annotations/"+annID, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
}

func TestZoomAndFit(t *testing.T) {
	env := setupEnv(t)
	id := env.createProjectWithAudio(t)

	if rr := env.do(t, http.MethodPost, "/projects/"+id+"/zoom", ZoomRequest{Factor: 0}); rr.Code != http.StatusBadRequest {
		t.Errorf("zero factor status = %d, want 400", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/projects/"+id+"/fit", FitRequest{Width: 500})
	if rr.Code != http.StatusOK {
		t.Fatalf("fit status = %d", rr.Code)
	}
	fit := decodeJSON[ScaleResponse](t, rr)
	if fit.Scale != 100 {
		t.Errorf("Scale = %v, want 100 for 500px over 5s", fit.Scale)
	}
}

func TestPreview_PNG(t *testing.T) {
	env := setupEnv(t)
	id := env.createProjectWithAudio(t)

	rr := env.do(t, http.MethodGet, "/projects/"+id+"/preview.png?t=1&width=200", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rr.Header().Get("X-Playback-Time"); got != "1.000" {
		t.Errorf("X-Playback-Time = %q, want 1.000", got)
	}
	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 200 {
		t.Errorf("width = %d, want 200", img.Bounds().Dx())
	}

	if rr := env.do(t, http.MethodGet, "/projects/"+id+"/preview.png?width=-1", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad width status = %d, want 400", rr.Code)
	}

	for _, v := range []string{"NaN", "nan", "Inf", "-Inf", "abc"} {
		if rr := env.do(t, http.MethodGet, "/projects/"+id+"/preview.png?t="+v, nil); rr.Code != http.StatusBadRequest {
			t.Errorf("t=%s status = %d, want 400", v, rr.Code)
		}
	}
	rr = env.do(t, http.MethodGet, "/projects/"+id+"/playback", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("playback status after rejected seeks = %d, body %s", rr.Code, rr.Body.String())
	}
	if st := decodeJSON[PlaybackResponse](t, rr); st.Time != 1 {
		t.Errorf("rejected seeks moved the playhead to %v", st.Time)
	}
}

func TestPlayback_Controls(t *testing.T) {
	env := setupEnv(t)
	created := decodeJSON[TimelineResponse](t, env.do(t, http.MethodPost, "/projects", nil))
	if rr := env.do(t, http.MethodPost, "/projects/"+created.ID+"/playback/play", nil); rr.Code != http.StatusConflict {
		t.Errorf("play without audio status = %d, want 409", rr.Code)
	}

	id := env.createProjectWithAudio(t)
	base := "/projects/" + id + "/playback"

	st := decodeJSON[PlaybackResponse](t, env.do(t, http.MethodPost, base+"/seek", SeekRequest{Time: ptr(10.0)}))
	if st.Time != 5 {
		t.Errorf("seek past end Time = %v, want 5", st.Time)
	}
	st = decodeJSON[PlaybackResponse](t, env.do(t, http.MethodPost, base+"/seek", SeekRequest{Delta: ptr(-2.0)}))
	if st.Time != 3 {
		t.Errorf("relative seek Time = %v, want 3", st.Time)
	}
	if rr := env.do(t, http.MethodPost, base+"/seek", SeekRequest{}); rr.Code != http.StatusBadRequest {
		t.Errorf("empty seek status = %d, want 400", rr.Code)
	}

	st = decodeJSON[PlaybackResponse](t, env.do(t, http.MethodPost, base+"/play", nil))
	if st.State != playback.StatePlaying {
		t.Errorf("State = %q, want playing", st.State)
	}
	st = decodeJSON[PlaybackResponse](t, env.do(t, http.MethodPost, base+"/stop", nil))
	if st.State != playback.StateStopped || st.Time != 0 {
		t.Errorf("after stop = %+v", st)
	}
}

func TestEDLHandler(t *testing.T) {
	env := setupEnv(t)
	id := env.createProjectWithAudio(t)
	mediaID := uploadPNG(t, env, id)
	env.do(t, http.MethodPost, "/projects/"+id+"/clips", AddClipRequest{MediaID: mediaID, StartTime: ptr(3.0)})

	rr := env.do(t, http.MethodGet, "/projects/"+id+"/edl?fps=25", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "TITLE: Reel") {
		t.Errorf("EDL should start with the title, got %q", body)
	}
	if !strings.Contains(body, "shot.png") {
		t.Errorf("EDL missing clip source: %q", body)
	}

	if rr := env.do(t, http.MethodGet, "/projects/"+id+"/edl?fps=0", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("zero fps status = %d, want 400", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/projects/"+id+"/edl?fps=NaN", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("NaN fps status = %d, want 400", rr.Code)
	}
}

func ptr[T any](v T) *T { return &v }
