package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiramarket/kirama-backend/api/responses"
	"github.com/kiramarket/kirama-backend/api/validators"
	"github.com/kiramarket/kirama-backend/internal/tokens"
	"github.com/kiramarket/kirama-backend/pkg/logger"
)

type issueTokenResponse struct {
	TokenID      uuid.UUID `json:"token_id"`
	OrderID      uuid.UUID `json:"order_id"`
	Code         string    `json:"code"`
	QRPayloadURL string    `json:"qr_payload_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IssueToken mints a fresh delivery token for an order and returns the link
// the vendor encodes into the QR image. While an unexpired unused token
// exists for the order the call fails with a conflict.
func IssueToken(svc tokens.Service, qrBaseURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := svc.Issue(r.Context(), tokens.IssueInput{
			OrderID:     orderID,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issueTokenResponse{
			TokenID:      token.ID,
			OrderID:      token.OrderID,
			Code:         token.Code,
			QRPayloadURL: qrPayloadURL(qrBaseURL, token.Code),
			ExpiresAt:    token.ExpiresAt,
		})
	}
}

// qrPayloadURL builds the public link a phone lands on when it scans the
// printed code.
func qrPayloadURL(base, code string) string {
	return fmt.Sprintf("%s/qr/%s", strings.TrimRight(base, "/"), url.PathEscape(code))
}

type scanTokenRequest struct {
	Code string `json:"code" validate:"required,min=8"`
}

// ScanToken validates a presented code without burning it. Anyone following
// the QR link may scan; identity is recorded when present.
func ScanToken(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act := optionalActor(r)

		var req scanTokenRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Scan(r.Context(), tokens.ScanInput{
			Code:        validators.SanitizeString(req.Code, 64),
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type consumeTokenRequest struct {
	Code                  string `json:"code" validate:"required,min=8"`
	CustomerConfirmed     bool   `json:"customer_confirmed"`
	CounterpartyConfirmed bool   `json:"counterparty_confirmed"`
}

// ConsumeToken burns a token at the handoff and settles the order.
func ConsumeToken(svc tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req consumeTokenRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := svc.Consume(r.Context(), tokens.ConsumeInput{
			Code:                  validators.SanitizeString(req.Code, 64),
			CustomerConfirmed:     req.CustomerConfirmed,
			CounterpartyConfirmed: req.CounterpartyConfirmed,
			ActorUserID:           act.UserID,
			ActorRole:             act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, token)
	}
}
