package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/internal/dispatch"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
)

type stubDispatchService struct {
	created    *dispatch.CreateInput
	accepted   *dispatch.AcceptInput
	rejected   *dispatch.RejectInput
	assignment *models.DeliveryAssignment
	list       *dispatch.AssignmentList
	err        error
}

func (s *stubDispatchService) Create(ctx context.Context, input dispatch.CreateInput) (*models.DeliveryAssignment, error) {
	s.created = &input
	return s.assignment, s.err
}

func (s *stubDispatchService) Get(ctx context.Context, input dispatch.GetInput) (*models.DeliveryAssignment, error) {
	return s.assignment, s.err
}

func (s *stubDispatchService) ListOpen(ctx context.Context, input dispatch.ListOpenInput) (*dispatch.AssignmentList, error) {
	return s.list, s.err
}

func (s *stubDispatchService) ListMine(ctx context.Context, input dispatch.ListMineInput) (*dispatch.AssignmentList, error) {
	return s.list, s.err
}

func (s *stubDispatchService) Accept(ctx context.Context, input dispatch.AcceptInput) (*models.DeliveryAssignment, error) {
	s.accepted = &input
	return s.assignment, s.err
}

func (s *stubDispatchService) Reject(ctx context.Context, input dispatch.RejectInput) error {
	s.rejected = &input
	return s.err
}

func (s *stubDispatchService) PickUp(ctx context.Context, input dispatch.PickUpInput) (*models.DeliveryAssignment, error) {
	return s.assignment, s.err
}

func (s *stubDispatchService) Complete(ctx context.Context, input dispatch.CompleteInput) (*models.DeliveryAssignment, error) {
	return s.assignment, s.err
}

func (s *stubDispatchService) Cancel(ctx context.Context, input dispatch.CancelInput) error {
	return s.err
}

func (s *stubDispatchService) CancelActiveForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.DeliveryAssignment, error) {
	return nil, nil
}

func (s *stubDispatchService) ExpireSweep(ctx context.Context, limit int) (int, error) {
	return 0, nil
}

func TestDispatchOrderParsesModeAndBonus(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	svc := &stubDispatchService{assignment: &models.DeliveryAssignment{ID: uuid.New(), Status: enums.AssignmentStatusPending}}

	body := `{"mode":"marketplace","bonus":"5000"}`
	req := authedRequest(t, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/dispatch",
		body, vendorID, "vendor", map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	DispatchOrder(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if svc.created == nil {
		t.Fatal("service never called")
	}
	if svc.created.Mode != enums.AssignmentModeMarketplace {
		t.Fatalf("mode = %s", svc.created.Mode)
	}
	if !svc.created.Bonus.Equal(decimalFromString(t, "5000")) {
		t.Fatalf("bonus = %s, want 5000", svc.created.Bonus)
	}
	if svc.created.ActorUserID != vendorID {
		t.Fatalf("actor = %s, want %s", svc.created.ActorUserID, vendorID)
	}
}

func TestDispatchOrderParsesDirectedCandidate(t *testing.T) {
	orderID := uuid.New()
	candidateID := uuid.New()
	svc := &stubDispatchService{assignment: &models.DeliveryAssignment{ID: uuid.New()}}

	body := `{"mode":"directed","candidate_courier_user_id":"` + candidateID.String() + `"}`
	req := authedRequest(t, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/dispatch",
		body, uuid.New(), "vendor", map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	DispatchOrder(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if svc.created.CandidateCourierUserID == nil || *svc.created.CandidateCourierUserID != candidateID {
		t.Fatalf("candidate = %v, want %s", svc.created.CandidateCourierUserID, candidateID)
	}
}

func TestDispatchOrderRejectsBadBonus(t *testing.T) {
	orderID := uuid.New()
	svc := &stubDispatchService{}

	body := `{"mode":"marketplace","bonus":"lots"}`
	req := authedRequest(t, http.MethodPost, "/api/v1/orders/"+orderID.String()+"/dispatch",
		body, uuid.New(), "vendor", map[string]string{"orderId": orderID.String()})
	rec := httptest.NewRecorder()
	DispatchOrder(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svc.created != nil {
		t.Fatal("service should not be called")
	}
}

func TestAcceptDeliveryMapsRaceLoss(t *testing.T) {
	assignmentID := uuid.New()
	svc := &stubDispatchService{err: pkgerrors.New(pkgerrors.CodeAlreadyTaken, "delivery already claimed")}

	req := authedRequest(t, http.MethodPost, "/api/v1/deliveries/"+assignmentID.String()+"/accept",
		"", uuid.New(), "courier", map[string]string{"assignmentId": assignmentID.String()})
	rec := httptest.NewRecorder()
	AcceptDelivery(svc, nil)(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if svc.accepted == nil || svc.accepted.AssignmentID != assignmentID {
		t.Fatalf("accepted = %+v", svc.accepted)
	}
}

func TestAcceptDeliveryMapsExpiredOffer(t *testing.T) {
	assignmentID := uuid.New()
	svc := &stubDispatchService{err: pkgerrors.New(pkgerrors.CodeExpired, "offer expired")}

	req := authedRequest(t, http.MethodPost, "/api/v1/deliveries/"+assignmentID.String()+"/accept",
		"", uuid.New(), "courier", map[string]string{"assignmentId": assignmentID.String()})
	rec := httptest.NewRecorder()
	AcceptDelivery(svc, nil)(rec, req)

	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
}

func TestRejectDeliveryReturnsStatus(t *testing.T) {
	assignmentID := uuid.New()
	courierID := uuid.New()
	svc := &stubDispatchService{}

	req := authedRequest(t, http.MethodPost, "/api/v1/deliveries/"+assignmentID.String()+"/reject",
		"", courierID, "courier", map[string]string{"assignmentId": assignmentID.String()})
	rec := httptest.NewRecorder()
	RejectDelivery(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.rejected == nil || svc.rejected.ActorUserID != courierID {
		t.Fatalf("rejected = %+v", svc.rejected)
	}
}
