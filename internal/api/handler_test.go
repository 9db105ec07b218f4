package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/service"
	"registration-service/internal/stripeclient"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	directSecret  = "whsec_test_direct"
	connectSecret = "whsec_test_connect"
)

type stubProcessor struct {
	err      error
	events   []*stripe.Event
	accounts []string
}

func (s *stubProcessor) HandleEvent(ctx context.Context, event *stripe.Event, connectedAccountID string) error {
	s.events = append(s.events, event)
	s.accounts = append(s.accounts, connectedAccountID)
	return s.err
}

type stubBoard struct {
	data *service.StatusBoardData
	err  error
}

func (s *stubBoard) StatusBoard(ctx context.Context) (*service.StatusBoardData, error) {
	return s.data, s.err
}

func newTestRouter(processor WebhookProcessor, board BoardLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := stripeclient.NewClient("sk_test_key", directSecret, connectSecret)
	handler := NewHandler(verifier, processor, board)
	router := gin.New()
	handler.SetupRoutes(router)
	return router
}

func signHeader(payload []byte, secret string) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func eventPayload() []byte {
	return []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","account":"acct_42","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	processor := &stubProcessor{}
	router := newTestRouter(processor, &stubBoard{})

	payload := eventPayload()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signHeader(payload, "whsec_wrong"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Webhook Error")
	assert.Empty(t, processor.events)
}

func TestWebhookAcknowledgesVerifiedEvent(t *testing.T) {
	processor := &stubProcessor{}
	router := newTestRouter(processor, &stubBoard{})

	payload := eventPayload()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signHeader(payload, directSecret))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, processor.events, 1)
	assert.Equal(t, stripe.EventType("payment_intent.succeeded"), processor.events[0].Type)
	// Direct channel never scopes to a connected account.
	assert.Equal(t, "", processor.accounts[0])
}

func TestWebhookAcknowledgesEvenWhenReconciliationFails(t *testing.T) {
	processor := &stubProcessor{err: errors.New("db down")}
	router := newTestRouter(processor, &stubBoard{})

	payload := eventPayload()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signHeader(payload, directSecret))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, processor.events, 1)
}

func TestConnectedWebhookUsesConnectSecretAndAccountScope(t *testing.T) {
	processor := &stubProcessor{}
	router := newTestRouter(processor, &stubBoard{})

	payload := eventPayload()

	// The direct secret must not verify on the connect channel.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe/connected", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signHeader(payload, directSecret))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/stripe/connected", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signHeader(payload, connectSecret))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, processor.accounts, 1)
	assert.Equal(t, "acct_42", processor.accounts[0])
}

func TestStatusBoardEndpoint(t *testing.T) {
	board := &stubBoard{
		data: &service.StatusBoardData{
			Registrations: []models.RegistrationRow{
				{ID: "reg_1", Status: models.RegistrationStatusSuccessful, FirstName: "Ada", LastName: "Lovelace"},
			},
			Groups:    []models.Group{{ID: "grp_1", Name: "Blue"}},
			Countries: []models.Country{{Name: "Germany", Alpha2Code: "DE"}},
		},
	}
	router := newTestRouter(&stubProcessor{}, board)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status-board", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got service.StatusBoardData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Registrations, 1)
	assert.Equal(t, "Ada", got.Registrations[0].FirstName)
	assert.Len(t, got.Groups, 1)
	assert.Len(t, got.Countries, 1)
}

func TestStatusBoardEndpointSurfacesLoadFailure(t *testing.T) {
	router := newTestRouter(&stubProcessor{}, &stubBoard{err: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status-board", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(&stubProcessor{}, &stubBoard{})

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
