package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nickbanetti/vbs/internal/auth"
	"github.com/nickbanetti/vbs/internal/vision"
)

func fakeAuth(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("userRole", role)
		c.Next()
	}
}

func setupScanRouter(service *Service, userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(userID, role))

	handler := NewHandler(service)
	r.POST("/scans", handler.Upload)
	r.GET("/scans", handler.ListMine)
	r.GET("/scans/:id/status", handler.GetStatus)
	r.POST("/scans/:id/retry", handler.Retry)
	r.GET("/scans/:id/results", handler.Results)
	r.GET("/scans/:id/export/grid.csv", handler.ExportGridCSV)
	r.GET("/scans/:id/export/notes.csv", handler.ExportNotesCSV)
	r.POST("/analyze", handler.Analyze)
	r.GET("/admin/scans/failed", handler.AdminListFailed)

	return r
}

func multipartBoard(t *testing.T, filename string, data []byte, model string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	part, err := w.CreateFormFile("board_image", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if model != "" {
		_ = w.WriteField("model", model)
	}
	_ = w.Close()

	return body, w.FormDataContentType()
}

func TestUploadEndpoint_InitialStatus(t *testing.T) {
	repo := NewInMemoryRepository()
	service := NewService(repo, NewFakeStorage(), factoryFor(&FakeClient{}), "key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	body, contentType := multipartBoard(t, "board.png", pngBytes(t), "gemini-1.5-flash")
	req := httptest.NewRequest(http.MethodPost, "/scans", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	id := int(resp["scan_id"].(float64))
	sc, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Status != StatusUploaded {
		t.Fatalf("expected UPLOADED, got %s", sc.Status)
	}
	if sc.Model != "gemini-1.5-flash" {
		t.Fatalf("expected chosen model, got %s", sc.Model)
	}
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	service := NewService(NewInMemoryRepository(), NewFakeStorage(), factoryFor(&FakeClient{}), "key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	req := httptest.NewRequest(http.MethodPost, "/scans", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatusEndpoint_OtherUsersScanIsForbidden(t *testing.T) {
	repo := NewInMemoryRepository()
	id, _ := repo.Create(context.Background(), "someone-else", "k", "f.png", vision.DefaultModel)

	service := NewService(repo, NewFakeStorage(), factoryFor(&FakeClient{}), "key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scans/%d/status", id), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func analyzedScan(t *testing.T, repo *InMemoryRepository, userID string, result *vision.ExtractionResult) int {
	t.Helper()
	id, err := repo.Create(context.Background(), userID, "boards/x.png", "x.png", vision.DefaultModel)
	if err != nil {
		t.Fatal(err)
	}
	structure := &vision.StructureResult{
		BoardType:     vision.BoardHybrid,
		RowHeaders:    []string{"Q1"},
		ColumnHeaders: []string{"Opt1"},
	}
	if err := repo.SaveResult(context.Background(), id, structure, result, nil); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestExportGridCSV(t *testing.T) {
	repo := NewInMemoryRepository()
	id := analyzedScan(t, repo, "user-1", &vision.ExtractionResult{
		VotingData: []vision.VoteEntry{{Row: "Q1", Col: "Opt1", Count: 5}},
		Notes:      []vision.Note{{Text: "Good idea", Section: "Q1"}},
	})

	service := NewService(repo, NewFakeStorage(), factoryFor(&FakeClient{}), "key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scans/%d/export/grid.csv", id), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != ",Opt1\nQ1,5\n" {
		t.Fatalf("unexpected grid csv: %q", w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "voting_grid.csv") {
		t.Fatalf("missing download filename: %s", w.Header().Get("Content-Disposition"))
	}
}

func TestExportNotesCSV(t *testing.T) {
	repo := NewInMemoryRepository()
	id := analyzedScan(t, repo, "user-1", &vision.ExtractionResult{
		Notes: []vision.Note{{Text: "Good idea", Section: "Q1"}},
	})

	service := NewService(repo, NewFakeStorage(), factoryFor(&FakeClient{}), "key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scans/%d/export/notes.csv", id), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "text,section\nGood idea,Q1\n" {
		t.Fatalf("unexpected notes csv: %q", w.Body.String())
	}
}

func TestExportGridCSV_NoVotingData(t *testing.T) {
	repo := NewInMemoryRepository()
	id := analyzedScan(t, repo, "user-1", &vision.ExtractionResult{
		Notes: []vision.Note{{Text: "only notes here", Section: "S"}},
	})

	service := NewService(repo, NewFakeStorage(), factoryFor(&FakeClient{}), "key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scans/%d/export/grid.csv", id), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty voting data, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no voting/matrix data detected") {
		t.Fatalf("missing no-data signal: %s", w.Body.String())
	}
}

func TestResultsEndpoint_EmptyNotesSignalsNoData(t *testing.T) {
	repo := NewInMemoryRepository()
	id := analyzedScan(t, repo, "user-1", &vision.ExtractionResult{
		VotingData: []vision.VoteEntry{{Row: "Q1", Col: "Opt1", Count: 5}},
	})

	service := NewService(repo, NewFakeStorage(), factoryFor(&FakeClient{}), "key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scans/%d/results", id), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["notes_message"] != "no sticky notes detected" {
		t.Fatalf("expected no-data signal for notes, got %v", resp)
	}
	if _, ok := resp["voting_data"]; !ok {
		t.Fatal("voting data missing from results")
	}
}

func TestAnalyzeEndpoint_EndToEnd(t *testing.T) {
	client := &FakeClient{responses: hybridResponses()}
	service := NewService(NewInMemoryRepository(), NewFakeStorage(), factoryFor(client), "env-key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	body, contentType := multipartBoard(t, "board.png", pngBytes(t), "gemini-1.5-pro")
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", "user-key")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	votes := resp["voting_data"].([]interface{})
	if len(votes) != 1 {
		t.Fatalf("expected 1 vote entry, got %v", votes)
	}
	notes := resp["notes"].([]interface{})
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %v", notes)
	}
}

func TestAnalyzeEndpoint_MissingKey(t *testing.T) {
	// No header key and no configured fallback
	service := NewService(NewInMemoryRepository(), NewFakeStorage(), factoryFor(&FakeClient{}), "")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	body, contentType := multipartBoard(t, "board.png", pngBytes(t), "")
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when no credential, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no analysis attempted") {
		t.Fatalf("missing precondition message: %s", w.Body.String())
	}
}

func TestAnalyzeEndpoint_StageFailureReportsStage(t *testing.T) {
	client := &FakeClient{responses: []string{`garbage`}}
	service := NewService(NewInMemoryRepository(), NewFakeStorage(), factoryFor(client), "env-key")
	router := setupScanRouter(service, "user-1", auth.RoleFacilitator)

	body, contentType := multipartBoard(t, "board.png", pngBytes(t), "")
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["stage"].(float64) != 1 {
		t.Fatalf("expected stage 1 in response, got %v", resp)
	}
}
