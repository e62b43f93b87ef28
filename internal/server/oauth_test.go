package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tunebridge/tunebridge/internal/shared"
)

type fakeExchanger struct {
	codes []string
	err   error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) error {
	f.codes = append(f.codes, code)
	return f.err
}

func newCallbackServer(t *testing.T, handler *CallbackHandler) *httptest.Server {
	t.Helper()

	router := NewBasicRouter()
	router.Use(RequestLogger(shared.NewLogger(io.Discard)))
	router.Handler(handler)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestCallbackHandler(t *testing.T) {
	t.Run("ExchangesCode", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		handler := NewCallbackHandler(exchanger, "state123")
		srv := newCallbackServer(t, handler)

		resp, err := http.Get(srv.URL + "/callback?state=state123&code=authcode")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		if err := <-handler.Done(); err != nil {
			t.Errorf("expected success, got %v", err)
		}

		if len(exchanger.codes) != 1 || exchanger.codes[0] != "authcode" {
			t.Errorf("unexpected exchanged codes: %v", exchanger.codes)
		}
	})

	t.Run("RejectsBadState", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		handler := NewCallbackHandler(exchanger, "state123")
		srv := newCallbackServer(t, handler)

		resp, err := http.Get(srv.URL + "/callback?state=wrong&code=authcode")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}

		if err := <-handler.Done(); err == nil {
			t.Error("expected state validation error")
		}

		if len(exchanger.codes) != 0 {
			t.Errorf("code must not be exchanged on bad state: %v", exchanger.codes)
		}
	})

	t.Run("ReportsProviderError", func(t *testing.T) {
		handler := NewCallbackHandler(&fakeExchanger{}, "state123")
		srv := newCallbackServer(t, handler)

		resp, err := http.Get(srv.URL + "/callback?state=state123&error=access_denied&error_description=denied")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if err := <-handler.Done(); err == nil {
			t.Error("expected authorization error")
		}
	})

	t.Run("ReportsExchangeFailure", func(t *testing.T) {
		exchanger := &fakeExchanger{err: errors.New("bad code")}
		handler := NewCallbackHandler(exchanger, "state123")
		srv := newCallbackServer(t, handler)

		resp, err := http.Get(srv.URL + "/callback?state=state123&code=authcode")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", resp.StatusCode)
		}

		if err := <-handler.Done(); err == nil {
			t.Error("expected exchange error")
		}
	})

	t.Run("ProcessesOnlyFirstCallback", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		handler := NewCallbackHandler(exchanger, "state123")
		srv := newCallbackServer(t, handler)

		for i := 0; i < 2; i++ {
			resp, err := http.Get(srv.URL + "/callback?state=state123&code=authcode")
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
		}

		if len(exchanger.codes) != 1 {
			t.Errorf("expected a single exchange, got %d", len(exchanger.codes))
		}
	})
}

func TestBasicRouterMethodFilter(t *testing.T) {
	router := NewBasicRouter()
	router.Handle(http.MethodPost, "/only-post", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/only-post")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/only-post", "text/plain", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for POST, got %d", resp.StatusCode)
	}
}
