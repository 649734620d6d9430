package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func signRequest(authToken, fullURL string, params map[string]string) string {
	data := fullURL
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params[k]
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newVoiceRequest(t *testing.T, form url.Values) (*echo.Echo, *http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(form.Encode()))
	req.Host = "example.com"
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return e, req, httptest.NewRecorder()
}

func TestTwilioAuth_ValidSignature(t *testing.T) {
	const token = "secret-token"
	form := url.Values{"CallSid": {"CA123"}, "From": {"+15550001111"}}
	e, req, rec := newVoiceRequest(t, form)

	sig := signRequest(token, "https://example.com/voice", map[string]string{
		"CallSid": "CA123",
		"From":    "+15550001111",
	})
	req.Header.Set("X-Twilio-Signature", sig)

	c := e.NewContext(req, rec)
	handler := TwilioAuth(func() string { return token })(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	params, ok := c.Get("twilioParams").(map[string]string)
	if !ok || params["CallSid"] != "CA123" {
		t.Fatalf("twilioParams not set: %v", c.Get("twilioParams"))
	}
}

func TestTwilioAuth_InvalidSignature(t *testing.T) {
	form := url.Values{"CallSid": {"CA123"}}
	e, req, rec := newVoiceRequest(t, form)
	req.Header.Set("X-Twilio-Signature", "bogus")

	c := e.NewContext(req, rec)
	handler := TwilioAuth(func() string { return "secret-token" })(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTwilioAuth_SkippedWithoutToken(t *testing.T) {
	form := url.Values{"CallSid": {"CA123"}}
	e, req, rec := newVoiceRequest(t, form)

	c := e.NewContext(req, rec)
	handler := TwilioAuth(func() string { return "" })(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected signature check to be skipped, got %d", rec.Code)
	}
}
