package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

func twilioConfig(baseURL string) TwilioConfig {
	return TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+14155238886",
		To:         "whatsapp:+61400000000",
		BaseURL:    baseURL,
	}
}

func TestWhatsAppSend(t *testing.T) {
	var gotPath, gotFrom, gotTo, gotBody, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		r.ParseForm()
		gotFrom, gotTo, gotBody = r.PostForm.Get("From"), r.PostForm.Get("To"), r.PostForm.Get("Body")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	err := NewWhatsApp(twilioConfig(srv.URL)).Send(context.Background(), "🏁 Stage 4")
	require.NoError(t, err)

	require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	require.Equal(t, "AC123", gotUser)
	require.Equal(t, "secret", gotPass)
	require.Equal(t, "whatsapp:+14155238886", gotFrom)
	require.Equal(t, "whatsapp:+61400000000", gotTo)
	require.Equal(t, "🏁 Stage 4", gotBody)
}

func TestWhatsAppAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":20003,"message":"Authenticate","status":401}`))
	}))
	defer srv.Close()

	err := NewWhatsApp(twilioConfig(srv.URL)).Send(context.Background(), "hi")

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	require.Equal(t, "whatsapp", sendErr.Channel)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, 20003, apiErr.Code)
	require.Equal(t, "Authenticate", apiErr.Message)
}

func TestWhatsAppUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewWhatsApp(twilioConfig(url)).Send(context.Background(), "hi")
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
}

func TestWhatsAppNotConfigured(t *testing.T) {
	cfg := twilioConfig("http://127.0.0.1:0")
	cfg.AuthToken = ""
	err := NewWhatsApp(cfg).Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestWhatsAppAddress(t *testing.T) {
	require.Equal(t, "whatsapp:+1", whatsappAddress("+1"))
	require.Equal(t, "whatsapp:+1", whatsappAddress(" whatsapp:+1 "))
}

type sentMail struct {
	addr string
	auth smtp.Auth
	mail *email.Email
}

func fakeSender(calls *[]sentMail, errs ...error) sendFunc {
	return func(e *email.Email, addr string, auth smtp.Auth) error {
		*calls = append(*calls, sentMail{addr: addr, auth: auth, mail: e})
		if len(errs) == 0 {
			return nil
		}
		err := errs[0]
		errs = errs[1:]
		return err
	}
}

func emailConfig() EmailConfig {
	return EmailConfig{
		Server:   "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		Password: "pw",
		From:     "GiroBot <bot@example.com>",
		To:       []string{"fan@example.com"},
	}
}

func TestEmailSend(t *testing.T) {
	var calls []sentMail
	m := NewEmail(emailConfig())
	m.send = fakeSender(&calls)

	require.NoError(t, m.Send(context.Background(), "Stage 4 body"))
	require.Len(t, calls, 1)
	require.Equal(t, "smtp.example.com:587", calls[0].addr)
	require.NotNil(t, calls[0].auth)
	require.Equal(t, "GiroBot Daily Update", calls[0].mail.Subject)
	require.Equal(t, []string{"fan@example.com"}, calls[0].mail.To)
	require.Equal(t, "Stage 4 body", string(calls[0].mail.Text))
}

func TestEmailRetriesWithoutAuth(t *testing.T) {
	var calls []sentMail
	m := NewEmail(emailConfig())
	m.send = fakeSender(&calls, errors.New("smtp: server doesn't support AUTH"), nil)

	require.NoError(t, m.Send(context.Background(), "body"))
	require.Len(t, calls, 2)
	require.Nil(t, calls[1].auth)
}

func TestEmailFailure(t *testing.T) {
	var calls []sentMail
	m := NewEmail(emailConfig())
	m.send = fakeSender(&calls, errors.New("connection refused"))

	err := m.Send(context.Background(), "body")
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	require.Equal(t, "email", sendErr.Channel)
	require.Len(t, calls, 1)
}

func TestEmailNotConfigured(t *testing.T) {
	err := NewEmail(EmailConfig{Server: "smtp.example.com"}).Send(context.Background(), "body")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLog(&buf).Send(context.Background(), "hello"))
	require.Equal(t, "hello\n", buf.String())

	require.NoError(t, NewLog(nil).Send(context.Background(), "hello"))
}

func TestSendErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &SendError{Channel: "log", Cause: cause}
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "log")
}
