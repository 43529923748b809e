package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"qride/pkg/domain"
	"qride/pkg/queue"
	"qride/pkg/store"
	"qride/services/relay/internal/app"
)

const testSecret = "test-relay-secret"

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	appCore, err := app.New(app.Config{
		Store: st,
		Queue: queue.NewTableQueue(st),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(New(Config{
		App:         appCore,
		RelaySecret: testSecret,
	}).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func seedCode(t *testing.T, st *store.MemoryStore, uniqueCode, phone string) {
	t.Helper()
	err := st.SaveQRCode(domain.QRCode{
		ID:          "qr-" + uniqueCode,
		UniqueCode:  uniqueCode,
		PhoneNumber: phone,
		Activated:   true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed code: %v", err)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestSendMessageSuccess(t *testing.T) {
	srv, st := newTestServer(t)
	seedCode(t, st, "abc123", "+15550001111")

	resp := postJSON(t, srv.URL+"/api/send-message", `{"code":"abc123","message":"hello"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.ID == "" {
		t.Fatalf("body = %+v", body)
	}

	msgs, err := st.ListMessages("")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].PhoneNumber != "+15550001111" {
		t.Fatalf("queued = %+v", msgs)
	}
}

func TestSendMessageRejectsGet(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/send-message")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	var body struct {
		Error        string            `json:"error"`
		Message      string            `json:"message"`
		ExpectedBody map[string]string `json:"expected_body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" || len(body.ExpectedBody) == 0 {
		t.Fatalf("405 body should describe the expected request, got %+v", body)
	}
}

func TestSendMessageErrors(t *testing.T) {
	srv, st := newTestServer(t)
	seedCode(t, st, "abc123", "+15550001111")

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"invalid json", `{not json`, http.StatusBadRequest, "Invalid JSON body"},
		{"missing fields", `{"code":"abc123"}`, http.StatusBadRequest, "Missing code or message"},
		{"unknown code", `{"code":"nope","message":"hi"}`, http.StatusNotFound, "QR code not found or not configured"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/send-message", tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.wantError {
				t.Fatalf("error = %q, want %q", body.Error, tc.wantError)
			}
		})
	}
}

func TestSendMessageCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/send-message", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q, want *", got)
	}
}

func TestFetchMessagesAuthorization(t *testing.T) {
	srv, st := newTestServer(t)
	seedCode(t, st, "abc123", "+15550001111")

	resp := postJSON(t, srv.URL+"/api/send-message", `{"code":"abc123","message":"hello"}`)
	resp.Body.Close()

	// Wrong secret.
	resp, err := http.Get(srv.URL + "/api/fetch-messages?secret=wrong")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d, want 401", resp.StatusCode)
	}

	// Correct secret.
	resp, err = http.Get(srv.URL + "/api/fetch-messages?secret=" + url.QueryEscape(testSecret))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Messages []domain.MessageRecord `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Message != "hello" {
		t.Fatalf("messages = %+v", body.Messages)
	}
}

func TestFetchMessagesCodeFilter(t *testing.T) {
	srv, st := newTestServer(t)
	seedCode(t, st, "abc123", "+15550001111")
	seedCode(t, st, "xyz789", "+15550002222")

	for _, body := range []string{
		`{"code":"abc123","message":"one"}`,
		`{"code":"xyz789","message":"two"}`,
	} {
		resp := postJSON(t, srv.URL+"/api/send-message", body)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/fetch-messages?secret=" + url.QueryEscape(testSecret) + "&code=xyz789")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Messages []domain.MessageRecord `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Code != "xyz789" {
		t.Fatalf("filtered messages = %+v", body.Messages)
	}
}

func TestDeliveryStatusRoundTrip(t *testing.T) {
	srv, st := newTestServer(t)
	seedCode(t, st, "abc123", "+15550001111")

	resp := postJSON(t, srv.URL+"/api/send-message", `{"code":"abc123","message":"hello"}`)
	var sent struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	resp.Body.Close()
	if sent.ID == "" {
		t.Fatalf("send response carried no message id")
	}

	report := `{"message_id":"` + sent.ID + `","code":"abc123","message":"hello","status":"sent"}`

	// Report requires the relay secret.
	resp = postJSON(t, srv.URL+"/api/delivery-status?secret=wrong", report)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d, want 401", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/delivery-status?secret="+url.QueryEscape(testSecret), report)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d, want 200", resp.StatusCode)
	}

	// The scan page polls without a secret.
	getResp, err := http.Get(srv.URL + "/api/delivery-status?code=abc123&message=hello")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	var body struct {
		Statuses []domain.DeliveryStatus `json:"statuses"`
	}
	if err := json.NewDecoder(getResp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Statuses) != 1 || body.Statuses[0].Status != domain.DeliverySent {
		t.Fatalf("statuses = %+v", body.Statuses)
	}
}
