package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.Services) {
	t.Helper()
	dbPath := t.TempDir() + "/api_test.db"
	require.NoError(t, database.Initialize(dbPath))
	t.Cleanup(func() { _ = database.Close() })

	cfg := &config.Config{
		Host:            "localhost",
		TokenSalt:       "salt",
		TokenPrefix:     "lx_",
		DefaultQuota:    1000,
		UploadDir:       t.TempDir(),
		MaxUploadSizeMB: 10,
		MaxSyncFileMB:   10,
	}
	services, err := service.New(cfg, database.DB)
	require.NoError(t, err)
	t.Cleanup(services.Stop)

	return SetupRoutes(NewHandler(services)), services
}

func issueCredential(t *testing.T, services *service.Services, principal string) string {
	t.Helper()
	_, token, err := services.Credentials.Issue(context.Background(), "test-key", principal, []string{"*"}, 1000, nil, nil)
	require.NoError(t, err)
	return token
}

func multipartAudio(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("audio", "sample.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF....WAVEfmt "))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealthCheckUnauthenticated(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSubmitTranscriptionRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartAudio(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitAndGetTranscription(t *testing.T) {
	router, services := newTestRouter(t)
	token := issueCredential(t, services, "principal-1")

	body, contentType := multipartAudio(t, map[string]string{"language_code": "en"})
	req := httptest.NewRequest(http.MethodPost, "/v1/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))
	jobID := submitResp["id"].(string)
	assert.Equal(t, "queued", submitResp["status"])

	getReq := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID, nil)
	getReq.Header.Set("Authorization", "Bearer "+token)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestGetJobOwnershipHiding(t *testing.T) {
	router, services := newTestRouter(t)
	ownerToken := issueCredential(t, services, "principal-1")
	otherToken := issueCredential(t, services, "principal-2")

	body, contentType := multipartAudio(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))
	jobID := submitResp["id"].(string)

	getReq := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID, nil)
	getReq.Header.Set("Authorization", "Bearer "+otherToken)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusNotFound, getRec.Code)

	missingReq := httptest.NewRequest(http.MethodGet, "/v1/jobs/does-not-exist", nil)
	missingReq.Header.Set("Authorization", "Bearer "+ownerToken)
	missingRec := httptest.NewRecorder()
	router.ServeHTTP(missingRec, missingReq)
	assert.Equal(t, getRec.Code, missingRec.Code)
}

func TestCancelJob(t *testing.T) {
	router, services := newTestRouter(t)
	token := issueCredential(t, services, "principal-1")

	body, contentType := multipartAudio(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/transcriptions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitResp))
	jobID := submitResp["id"].(string)

	cancelReq := httptest.NewRequest(http.MethodDelete, "/v1/jobs/"+jobID, nil)
	cancelReq.Header.Set("Authorization", "Bearer "+token)
	cancelRec := httptest.NewRecorder()
	router.ServeHTTP(cancelRec, cancelReq)
	assert.Equal(t, http.StatusNoContent, cancelRec.Code)

	secondCancelReq := httptest.NewRequest(http.MethodDelete, "/v1/jobs/"+jobID, nil)
	secondCancelReq.Header.Set("Authorization", "Bearer "+token)
	secondCancelRec := httptest.NewRecorder()
	router.ServeHTTP(secondCancelRec, secondCancelReq)
	assert.Equal(t, http.StatusBadRequest, secondCancelRec.Code)
}

func TestCreateAndListAPIKeysUnauthenticated(t *testing.T) {
	router, _ := newTestRouter(t)

	payload := `{"name":"ops","principal":"principal-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api-keys", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created["plaintext_token"])

	listReq := httptest.NewRequest(http.MethodGet, "/api-keys?principal=principal-1", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)
	assert.Equal(t, http.StatusOK, listRec.Code)
}
