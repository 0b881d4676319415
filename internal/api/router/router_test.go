package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/chatlog"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/clinic"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/dispatch"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
	httpmiddleware "github.com/wolfman30/whatsapp-clinic-bot/internal/http/middleware"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/livechat"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/messaging"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
	botrouter "github.com/wolfman30/whatsapp-clinic-bot/internal/router"
	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

type noopDoctors struct{}

func (noopDoctors) GetByPhone(context.Context, string) (*doctors.Doctor, error) {
	return nil, doctors.ErrNotFound
}

func (noopDoctors) GetByID(_ context.Context, id string) (*doctors.Doctor, error) {
	return &doctors.Doctor{ID: id}, nil
}

type noopMissedCall struct{}

func (noopMissedCall) MissedCall(context.Context, dispatch.Target) (string, error) {
	return "interactive", nil
}

type noopPublisher struct{}

func (noopPublisher) Enqueue(context.Context, botrouter.InboundEvent) error { return nil }

type emptyMessages struct{}

func (emptyMessages) History(context.Context, string, string, int) ([]chatlog.Message, error) {
	return nil, nil
}

func (emptyMessages) Log(_ context.Context, m chatlog.Message) (chatlog.Message, error) {
	return m, nil
}

type noPatients struct{}

func (noPatients) Get(context.Context, string) (*patients.Patient, error) {
	return nil, patients.ErrNotFound
}

func (noPatients) SetBotPaused(context.Context, string, bool) error { return nil }

type noopSender struct{}

func (noopSender) SendText(context.Context, whatsapp.Credentials, string, string) (*whatsapp.SendResponse, error) {
	return &whatsapp.SendResponse{}, nil
}

type staticClinic struct{}

func (staticClinic) Get(_ context.Context, doctorID string) (*clinic.Config, error) {
	return &clinic.Config{DoctorID: doctorID, OpeningTime: "09:00", ClosingTime: "18:00"}, nil
}

func (staticClinic) Set(context.Context, *clinic.Config) error { return nil }

const jwtSecret = "dash-secret"

func newTestRouter(t *testing.T, appSecret string) http.Handler {
	t.Helper()
	logger := logging.Default()
	return New(&Config{
		Logger:             logger,
		Webhook:            messaging.NewWebhookHandler("verify-me", noopDoctors{}, noopPublisher{}),
		MissedCall:         messaging.NewMissedCallHandler(noopDoctors{}, noopMissedCall{}, logger),
		LiveChat:           livechat.NewHandler(emptyMessages{}, noPatients{}, noopDoctors{}, noopSender{}, nil, logger),
		Clinic:             clinic.NewHandler(staticClinic{}, logger),
		MetricsHandler:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		WhatsAppAppSecret:  appSecret,
		DashboardJWTSecret: jwtSecret,
	})
}

func dashboardToken(t *testing.T, doctorID string) string {
	t.Helper()
	claims := httpmiddleware.DoctorClaims{
		DoctorID:         doctorID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterWebhookVerify(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "abc" {
		t.Fatalf("unexpected verify response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterWebhookSignature(t *testing.T) {
	router := newTestRouter(t, "app-secret")
	body := `{"object":"whatsapp_business_account","entry":[]}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unsigned webhook to be rejected, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(whatsapp.SignatureHeader, "sha256="+whatsapp.Sign("app-secret", []byte(body)))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != messaging.AckReceived {
		t.Fatalf("expected signed webhook to be accepted, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterMissedCallValidation(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/missed-call", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRouterLiveChatRequiresMatchingDoctor(t *testing.T) {
	router := newTestRouter(t, "")

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{"no token", "", "/api/livechat/doc-1/messages/919800000001", http.StatusUnauthorized},
		{"other doctor", dashboardToken(t, "doc-2"), "/api/livechat/doc-1/messages/919800000001", http.StatusForbidden},
		{"own doctor", dashboardToken(t, "doc-1"), "/api/livechat/doc-1/messages/919800000001", http.StatusOK},
		{"clinic config no token", "", "/api/clinics/doc-1/config", http.StatusUnauthorized},
		{"clinic config other doctor", dashboardToken(t, "doc-2"), "/api/clinics/doc-1/config", http.StatusForbidden},
		{"clinic config own doctor", dashboardToken(t, "doc-1"), "/api/clinics/doc-1/config", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(t, "")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
