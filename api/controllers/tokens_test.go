package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kiramarket/kirama-backend/internal/tokens"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
)

type stubTokenService struct {
	issued   *tokens.IssueInput
	scanned  *tokens.ScanInput
	consumed *tokens.ConsumeInput
	token    *models.DeliveryToken
	scan     *tokens.ScanResult
	err      error
}

func (s *stubTokenService) Issue(ctx context.Context, input tokens.IssueInput) (*models.DeliveryToken, error) {
	s.issued = &input
	return s.token, s.err
}

func (s *stubTokenService) Scan(ctx context.Context, input tokens.ScanInput) (*tokens.ScanResult, error) {
	s.scanned = &input
	return s.scan, s.err
}

func (s *stubTokenService) Consume(ctx context.Context, input tokens.ConsumeInput) (*models.DeliveryToken, error) {
	s.consumed = &input
	return s.token, s.err
}

func TestIssueTokenBindsOrder(t *testing.T) {
	orderID := uuid.New()
	customerID := uuid.New()
	svc := &stubTokenService{token: &models.DeliveryToken{
		ID:        uuid.New(),
		OrderID:   orderID,
		Code:      "KM-TEST-CODE",
		ExpiresAt: time.Now().Add(time.Hour),
	}}

	req := authedRequest(t, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/token",
		"", customerID, "customer", map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	IssueToken(svc, "https://kirama.example/", nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if svc.issued == nil || svc.issued.OrderID != orderID {
		t.Fatalf("issued = %+v", svc.issued)
	}
	if svc.issued.ActorUserID != customerID {
		t.Fatalf("actor = %s, want %s", svc.issued.ActorUserID, customerID)
	}

	var envelope struct {
		Data issueTokenResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Code != "KM-TEST-CODE" {
		t.Fatalf("code = %q", envelope.Data.Code)
	}
	if envelope.Data.QRPayloadURL != "https://kirama.example/qr/KM-TEST-CODE" {
		t.Fatalf("qr payload url = %q", envelope.Data.QRPayloadURL)
	}
	if envelope.Data.ExpiresAt.IsZero() {
		t.Fatal("expires_at missing from response")
	}
}

func TestScanTokenTrimsCode(t *testing.T) {
	svc := &stubTokenService{scan: &tokens.ScanResult{State: enums.TokenStateValid}}

	req := authedRequest(t, http.MethodPost, "/api/v1/tokens/scan",
		`{"code":"  KM-ABCDEFG  "}`, uuid.New(), "courier", nil)
	rec := httptest.NewRecorder()
	ScanToken(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.scanned == nil || svc.scanned.Code != "KM-ABCDEFG" {
		t.Fatalf("scanned = %+v", svc.scanned)
	}
}

func TestScanTokenRequiresCode(t *testing.T) {
	svc := &stubTokenService{}
	req := authedRequest(t, http.MethodPost, "/api/v1/tokens/scan", `{}`, uuid.New(), "courier", nil)
	rec := httptest.NewRecorder()
	ScanToken(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svc.scanned != nil {
		t.Fatal("service should not be called")
	}
}

func TestConsumeTokenForwardsConfirmations(t *testing.T) {
	svc := &stubTokenService{token: &models.DeliveryToken{ID: uuid.New(), Used: true}}

	body := `{"code":"KM-ABCDEFG","customer_confirmed":true,"counterparty_confirmed":true}`
	req := authedRequest(t, http.MethodPost, "/api/v1/tokens/consume", body, uuid.New(), "courier", nil)
	rec := httptest.NewRecorder()
	ConsumeToken(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.consumed == nil || !svc.consumed.CustomerConfirmed || !svc.consumed.CounterpartyConfirmed {
		t.Fatalf("consumed = %+v", svc.consumed)
	}
}

func TestConsumeTokenMapsAlreadyUsed(t *testing.T) {
	svc := &stubTokenService{err: pkgerrors.New(pkgerrors.CodeAlreadyUsed, "token already used")}

	body := `{"code":"KM-ABCDEFG","customer_confirmed":true,"counterparty_confirmed":true}`
	req := authedRequest(t, http.MethodPost, "/api/v1/tokens/consume", body, uuid.New(), "courier", nil)
	rec := httptest.NewRecorder()
	ConsumeToken(svc, nil)(rec, req)

	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
}
