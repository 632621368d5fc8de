//go:build !integration

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-credit-miniapp/internal/config"
	"telegram-credit-miniapp/internal/domain"
	"telegram-credit-miniapp/internal/domain/ports/adapter"
)

const getMeOK = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Credits","username":"credits_bot"}}`

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// fakeBotAPI serves getMe plus whatever the test registers per method.
func fakeBotAPI(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if method == "getMe" {
			io.WriteString(w, getMeOK)
			return
		}
		h, ok := handlers[method]
		if !ok {
			t.Errorf("unexpected bot api method %q", method)
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) *BotAPIProvider {
	t.Helper()
	p, err := NewBotAPIProvider(&config.BotConfig{
		Token:       "123:abc",
		APIEndpoint: srv.URL + "/bot%s/%s",
		Timeout:     2 * time.Second,
	}, newTestLogger())
	if err != nil {
		t.Fatalf("NewBotAPIProvider: %v", err)
	}
	return p
}

func stdInvoice() adapter.InvoiceRequest {
	return adapter.InvoiceRequest{
		Title:       "AI image credits",
		Description: "Buy 12 credits",
		Payload:     `{"userId":42,"sku":"pack12"}`,
		Currency:    "XTR",
		Prices:      []adapter.LabeledPrice{{Label: "12 credits", Amount: 50}},
	}
}

func TestBotAPIProvider_CreateInvoiceLink(t *testing.T) {
	ctx := context.Background()

	t.Run("should send stars parameters and return the link", func(t *testing.T) {
		// --- Arrange ---
		var form map[string]string
		srv := fakeBotAPI(t, map[string]http.HandlerFunc{
			"createInvoiceLink": func(w http.ResponseWriter, r *http.Request) {
				r.ParseForm()
				form = map[string]string{}
				for k := range r.PostForm {
					form[k] = r.PostForm.Get(k)
				}
				io.WriteString(w, `{"ok":true,"result":"https://t.me/$abc"}`)
			},
		})
		p := newProvider(t, srv)

		// --- Act ---
		link, err := p.CreateInvoiceLink(ctx, stdInvoice())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if link != "https://t.me/$abc" {
			t.Errorf("unexpected link %q", link)
		}
		if form["currency"] != "XTR" || form["provider_token"] != "" {
			t.Errorf("unexpected currency/provider token: %v", form)
		}
		if form["payload"] != `{"userId":42,"sku":"pack12"}` {
			t.Errorf("payload not forwarded verbatim: %q", form["payload"])
		}
		var prices []adapter.LabeledPrice
		if err := json.Unmarshal([]byte(form["prices"]), &prices); err != nil || len(prices) != 1 || prices[0].Amount != 50 {
			t.Errorf("unexpected prices %q (%v)", form["prices"], err)
		}
	})

	t.Run("should classify an api rejection", func(t *testing.T) {
		srv := fakeBotAPI(t, map[string]http.HandlerFunc{
			"createInvoiceLink": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: CURRENCY_INVALID"}`)
			},
		})
		_, err := newProvider(t, srv).CreateInvoiceLink(ctx, stdInvoice())

		var perr *domain.ProviderError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ProviderError, got %T %v", err, err)
		}
		if perr.Kind != domain.ProviderRejected || perr.Code != 400 || !strings.Contains(perr.Description, "CURRENCY_INVALID") {
			t.Errorf("unexpected classification %+v", perr)
		}
	})

	t.Run("should classify a malformed response", func(t *testing.T) {
		srv := fakeBotAPI(t, map[string]http.HandlerFunc{
			"createInvoiceLink": func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"ok":true,"result":{"not":"a string"}}`)
			},
		})
		_, err := newProvider(t, srv).CreateInvoiceLink(ctx, stdInvoice())

		var perr *domain.ProviderError
		if !errors.As(err, &perr) || perr.Kind != domain.ProviderMalformed {
			t.Fatalf("expected malformed ProviderError, got %v", err)
		}
	})

	t.Run("should classify a transport failure", func(t *testing.T) {
		srv := fakeBotAPI(t, nil)
		p := newProvider(t, srv)
		srv.Close()

		_, err := p.CreateInvoiceLink(ctx, stdInvoice())
		var perr *domain.ProviderError
		if !errors.As(err, &perr) || perr.Kind != domain.ProviderTransport {
			t.Fatalf("expected transport ProviderError, got %v", err)
		}
	})

	t.Run("should give up when the context ends", func(t *testing.T) {
		release := make(chan struct{})
		srv := fakeBotAPI(t, map[string]http.HandlerFunc{
			"createInvoiceLink": func(w http.ResponseWriter, r *http.Request) {
				<-release
				io.WriteString(w, `{"ok":true,"result":"late"}`)
			},
		})
		defer close(release)
		p := newProvider(t, srv)

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := p.CreateInvoiceLink(cctx, stdInvoice())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestBotAPIProvider_Messages(t *testing.T) {
	ctx := context.Background()
	var gotChat, gotText, gotQuery, gotOK string
	srv := fakeBotAPI(t, map[string]http.HandlerFunc{
		"sendMessage": func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			gotChat, gotText = r.PostForm.Get("chat_id"), r.PostForm.Get("text")
			io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":88,"type":"private"}}}`)
		},
		"answerPreCheckoutQuery": func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			gotQuery, gotOK = r.PostForm.Get("pre_checkout_query_id"), r.PostForm.Get("ok")
			io.WriteString(w, `{"ok":true,"result":true}`)
		},
	})
	p := newProvider(t, srv)

	if err := p.SendMessage(ctx, 88, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotChat != "88" || gotText != "hello" {
		t.Errorf("unexpected sendMessage form chat=%q text=%q", gotChat, gotText)
	}

	if err := p.AnswerPreCheckout(ctx, "q-1", true, ""); err != nil {
		t.Fatalf("AnswerPreCheckout: %v", err)
	}
	if gotQuery != "q-1" || gotOK != "true" {
		t.Errorf("unexpected pre-checkout form id=%q ok=%q", gotQuery, gotOK)
	}
}

func TestNewBotAPIProvider_RejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	_, err := NewBotAPIProvider(&config.BotConfig{Token: "bad", APIEndpoint: srv.URL + "/bot%s/%s", Timeout: time.Second}, newTestLogger())
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Kind != domain.ProviderRejected || perr.Code != 401 {
		t.Fatalf("expected rejected ProviderError, got %v", err)
	}
}
