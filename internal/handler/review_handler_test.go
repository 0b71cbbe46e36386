package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merchant-review-api/internal/dto"
	"github.com/noah-isme/merchant-review-api/internal/middleware"
	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/internal/service"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
)

type reviewServiceMock struct {
	batchReq     dto.BatchRequest
	batchResp    *models.BatchResult
	rejectReq    dto.RejectRecordRequest
	rejectErr    error
	approveReq   dto.ApproveRecordRequest
	lastID       string
	lastIdentity string
	principal    *models.Principal
	manyReject   dto.RejectManyRequest
	manyErr      error
}

func (m *reviewServiceMock) Reconcile(ctx context.Context, principal *models.Principal, id string, req dto.BatchRequest) (*models.BatchResult, error) {
	m.principal, m.lastID, m.batchReq = principal, id, req
	return m.batchResp, nil
}

func (m *reviewServiceMock) SubmitRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.SubmitRecordRequest) (*models.ReviewRecord, error) {
	m.lastID, m.lastIdentity = id, identity
	return nil, appErrors.ErrIncompleteSubmission
}

func (m *reviewServiceMock) ApproveRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.ApproveRecordRequest) (*models.ReviewRecord, error) {
	m.lastID, m.lastIdentity, m.approveReq = id, identity, req
	return &models.ReviewRecord{IdentityValue: identity, Status: models.ReviewStatusApproved}, nil
}

func (m *reviewServiceMock) RejectRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.RejectRecordRequest) (*models.ReviewRecord, error) {
	m.rejectReq = req
	if m.rejectErr != nil {
		return nil, m.rejectErr
	}
	return &models.ReviewRecord{IdentityValue: identity, Status: models.ReviewStatusRejected}, nil
}

func (m *reviewServiceMock) ApproveMany(ctx context.Context, principal *models.Principal, id string, req dto.ApproveManyRequest) (*models.BatchResult, error) {
	return &models.BatchResult{}, nil
}

func (m *reviewServiceMock) RejectMany(ctx context.Context, principal *models.Principal, id string, req dto.RejectManyRequest) (*models.BatchResult, error) {
	m.manyReject = req
	return nil, m.manyErr
}

func newReviewContext(method, target string, body []byte, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextPrincipalKey, &models.Principal{Email: "checker@maya.ph", Role: models.RoleChecker})
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestReviewHandlerBatch(t *testing.T) {
	mockSvc := &reviewServiceMock{batchResp: &models.BatchResult{Pass: models.BatchPassApprove, Candidates: 1, Succeeded: 1, Applied: []string{"M-1"}}}
	handler := NewReviewHandler(mockSvc)

	payload := []byte(`{"rows":[{"identityValue":"M-1","size":"LARGE","gender":""}]}`)
	c, w := newReviewContext(http.MethodPost, "/sessions/s-1/batch", payload, gin.Params{{Key: "id", Value: "s-1"}})
	handler.Batch(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", mockSvc.lastID)
	require.Len(t, mockSvc.batchReq.Rows, 1)
	assert.Equal(t, "LARGE", mockSvc.batchReq.Rows[0].Size)
	assert.Equal(t, "checker@maya.ph", mockSvc.principal.Email)

	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "APPROVE", data["pass"])
	assert.Equal(t, []interface{}{"M-1"}, data["applied"])
}

func TestReviewHandlerBatchInvalidBody(t *testing.T) {
	handler := NewReviewHandler(&reviewServiceMock{})
	c, w := newReviewContext(http.MethodPost, "/sessions/s-1/batch", []byte(`{"rows":`), gin.Params{{Key: "id", Value: "s-1"}})
	handler.Batch(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewHandlerSubmitMapsDomainError(t *testing.T) {
	mockSvc := &reviewServiceMock{}
	handler := NewReviewHandler(mockSvc)
	c, w := newReviewContext(http.MethodPost, "/sessions/s-1/records/M-1/submit", []byte(`{"size":"SMALL"}`),
		gin.Params{{Key: "id", Value: "s-1"}, {Key: "identity", Value: "M-1"}})
	handler.Submit(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "M-1", mockSvc.lastIdentity)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, appErrors.ErrIncompleteSubmission.Code, errBody["code"])
}

func TestReviewHandlerApproveWithoutBody(t *testing.T) {
	mockSvc := &reviewServiceMock{}
	handler := NewReviewHandler(mockSvc)
	c, w := newReviewContext(http.MethodPost, "/sessions/s-1/records/M-7/approve", nil,
		gin.Params{{Key: "id", Value: "s-1"}, {Key: "identity", Value: "M-7"}})
	handler.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ApproveRecordRequest{}, mockSvc.approveReq)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "APPROVED", data["status"])
}

func TestReviewHandlerRejectMissingComment(t *testing.T) {
	mockSvc := &reviewServiceMock{rejectErr: appErrors.ErrMissingComment}
	handler := NewReviewHandler(mockSvc)
	c, w := newReviewContext(http.MethodPost, "/sessions/s-1/records/M-1/reject", nil,
		gin.Params{{Key: "id", Value: "s-1"}, {Key: "identity", Value: "M-1"}})
	handler.Reject(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, appErrors.ErrMissingComment.Code, errBody["code"])
}

func TestReviewHandlerRejectMany(t *testing.T) {
	mockSvc := &reviewServiceMock{manyErr: appErrors.ErrMissingComment}
	handler := NewReviewHandler(mockSvc)
	c, w := newReviewContext(http.MethodPost, "/sessions/s-1/reject", []byte(`{"identityValues":["1","2"]}`), gin.Params{{Key: "id", Value: "s-1"}})
	handler.RejectMany(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"1", "2"}, mockSvc.manyReject.IdentityValues)
}

type tableServiceMock struct {
	tables []models.ReviewTable
}

func (m tableServiceMock) Tables() []models.ReviewTable { return m.tables }

func (m tableServiceMock) DescribeTable(ctx context.Context, key string) ([]models.ColumnInfo, error) {
	if key != "merchants" {
		return nil, appErrors.ErrNotFound
	}
	return []models.ColumnInfo{{Name: "merchant_id", DataType: "text"}}, nil
}

func TestTableHandlerMe(t *testing.T) {
	handler := NewTableHandler(tableServiceMock{})
	c, w := newReviewContext(http.MethodGet, "/me", nil, nil)
	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "CHECKER", data["role"])
	assert.Equal(t, false, data["canSubmit"])
	assert.Equal(t, true, data["canApprove"])
}

func TestTableHandlerSchema(t *testing.T) {
	handler := NewTableHandler(tableServiceMock{})
	c, w := newReviewContext(http.MethodGet, "/tables/merchants/schema", nil, gin.Params{{Key: "key", Value: "merchants"}})
	handler.Schema(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newReviewContext(http.MethodGet, "/tables/nope/schema", nil, gin.Params{{Key: "key", Value: "nope"}})
	handler.Schema(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type sessionServiceMock struct {
	session *models.ReviewSession
	query   dto.RecordQuery
}

func (m *sessionServiceMock) OpenSession(ctx context.Context, principal *models.Principal, req dto.OpenSessionRequest) (*models.ReviewSession, error) {
	return &models.ReviewSession{ID: "s-1", TableKey: req.Table, EffectiveRole: models.RoleChecker}, nil
}

func (m *sessionServiceMock) GetSession(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, error) {
	return m.session, nil
}

func (m *sessionServiceMock) CloseSession(ctx context.Context, principal *models.Principal, id string) error {
	return nil
}

func (m *sessionServiceMock) LoadSnapshot(ctx context.Context, principal *models.Principal, id string, req dto.LoadSnapshotRequest) (*models.ReviewSession, error) {
	return m.session, nil
}

func (m *sessionServiceMock) Records(ctx context.Context, principal *models.Principal, id string, query dto.RecordQuery) ([]models.ReviewRecord, *models.Pagination, *models.SnapshotStats, error) {
	m.query = query
	stats := service.SnapshotStats(m.session.Snapshot)
	return m.session.Snapshot, &models.Pagination{Page: 1, PageSize: 50, TotalCount: len(m.session.Snapshot)}, &stats, nil
}

func (m *sessionServiceMock) Snapshot(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, models.ReviewTable, error) {
	return m.session, models.ReviewTable{Key: "merchants", IdentityColumn: "merchant_id", Columns: models.DefaultReviewColumns()}, nil
}

func loadedSessionMock() *sessionServiceMock {
	row := models.NewRow([]string{"merchant_id", "review_status"}, []interface{}{"M-1", "PENDING"})
	return &sessionServiceMock{session: &models.ReviewSession{
		ID:       "s-1",
		Loaded:   true,
		Snapshot: []models.ReviewRecord{{IdentityValue: "M-1", Status: models.ReviewStatusPending, Row: row}},
	}}
}

func TestSessionHandlerOpen(t *testing.T) {
	handler := NewSessionHandler(loadedSessionMock(), service.NewExportService(nil, nil, nil, nil))
	c, w := newReviewContext(http.MethodPost, "/sessions", []byte(`{"table":"merchants"}`), nil)
	handler.Open(c)
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "merchants", data["tableKey"])
}

func TestSessionHandlerRecords(t *testing.T) {
	mockSvc := loadedSessionMock()
	handler := NewSessionHandler(mockSvc, service.NewExportService(nil, nil, nil, nil))
	c, w := newReviewContext(http.MethodGet, "/sessions/s-1/records?search=m-1&page=1&page_size=10", nil, gin.Params{{Key: "id", Value: "s-1"}})
	handler.Records(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m-1", mockSvc.query.Search)
	assert.Equal(t, 10, mockSvc.query.PageSize)
	body := decodeEnvelope(t, w)
	assert.NotNil(t, body["pagination"])
	stats := body["meta"].(map[string]interface{})["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total"])
	records := body["data"].([]interface{})
	row := records[0].(map[string]interface{})["row"].(map[string]interface{})
	assert.Equal(t, "M-1", row["merchant_id"])
}

func TestSessionHandlerExport(t *testing.T) {
	handler := NewSessionHandler(loadedSessionMock(), service.NewExportService(nil, nil, nil, nil))
	c, w := newReviewContext(http.MethodGet, "/sessions/s-1/export?format=csv", nil, gin.Params{{Key: "id", Value: "s-1"}})
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "merchants_")
	assert.Contains(t, w.Body.String(), "merchant_id,review_status")
	assert.Contains(t, w.Body.String(), "M-1,PENDING")

	c, w = newReviewContext(http.MethodGet, "/sessions/s-1/export?format=docx", nil, gin.Params{{Key: "id", Value: "s-1"}})
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
