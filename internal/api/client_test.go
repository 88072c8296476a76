package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"finance/internal/core"
	"finance/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) (*Client, *int32) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess, err := session.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if token != "" {
		_ = sess.Set(context.Background(), token)
	}

	var unauthorized int32
	c := New(srv.URL+"/", sess, nil, WithUnauthorizedHandler(func(context.Context, *AuthError) {
		atomic.AddInt32(&unauthorized, 1)
	}))
	return c, &unauthorized
}

func TestLoginStoresToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not carry a bearer token")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ana" || body["password"] != "secret123" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"token":"tok-1"}`)
	}, "")

	token, err := c.Login(context.Background(), "ana", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "tok-1" || c.Session().Token() != "tok-1" {
		t.Fatalf("token not stored: %q / %q", token, c.Session().Token())
	}
}

func TestLoginRejectedIsNotAuthError(t *testing.T) {
	c, unauthorized := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"bad credentials"}`)
	}, "")

	_, err := c.Login(context.Background(), "ana", "wrongpass")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized || se.Message != "bad credentials" {
		t.Fatalf("expected status error, got %v", err)
	}
	if *unauthorized != 0 {
		t.Fatal("login failure must not trigger the unauthorized hook")
	}
}

func TestMissingTokenShortCircuits(t *testing.T) {
	var calls int32
	c, unauthorized := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, "")

	_, err := c.Categories(context.Background())
	if !IsAuthError(err) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network call, got %d", calls)
	}
	if *unauthorized != 1 {
		t.Fatalf("expected unauthorized hook once, got %d", *unauthorized)
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	c, unauthorized := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stale" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
	}, "stale")

	_, err := c.Months(context.Background())
	if StatusCode(err) != http.StatusUnauthorized || !IsAuthError(err) {
		t.Fatalf("expected 401 auth error, got %v", err)
	}
	if c.Session().Authenticated() {
		t.Fatal("session should be cleared after 401")
	}
	if *unauthorized != 1 {
		t.Fatalf("expected unauthorized hook once, got %d", *unauthorized)
	}

	// Subsequent calls short-circuit without a token.
	if _, err := c.Years(context.Background()); !IsAuthError(err) {
		t.Fatalf("expected auth error after clear, got %v", err)
	}
}

func TestNonSuccessStatusPropagates(t *testing.T) {
	c, unauthorized := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"valor inválido"}`)
	}, "tok")

	_, err := c.CreateMovement(context.Background(), core.Movement{Day: 1, Month: 1, Year: 2025, Kind: core.KindIncome})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected status error, got %v", err)
	}
	if se.StatusCode != http.StatusUnprocessableEntity || se.Message != "valor inválido" {
		t.Fatalf("unexpected status error %+v", se)
	}
	if IsAuthError(err) || *unauthorized != 0 {
		t.Fatal("non-401 errors are not auth errors")
	}
}

func TestMalformedJSONPropagates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"movements": [`)
	}, "tok")

	_, err := c.FilterMovements(context.Background(), core.Filter{Month: "1", Year: "2025"})
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNetworkFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sess, _ := session.New(context.Background(), nil)
	_ = sess.Set(context.Background(), "tok")
	c := New(url, sess, nil)

	if _, err := c.Categories(context.Background()); err == nil || IsAuthError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFilterMovements(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/movement/filter" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("month") != "3" || q.Get("year") != "2025" || q.Get("category") != "" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, `{
			"movements": [
				{"id": 7, "dia": 5, "mes": 3, "ano": 2025, "tipo": "saida", "categoriaDescricao": "Mercado", "descricao": "feira", "valor": -87.3},
				{"id": "8", "dia": 10, "mes": 3, "ano": 2025, "tipo": "entrada", "categoriaDescricao": "Salário", "descricao": "", "valor": 5000}
			],
			"total": 4912.7,
			"savings": 300
		}`)
	}, "tok")

	inv, err := c.FilterMovements(context.Background(), core.Filter{Month: "3", Year: "2025"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(inv.Movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(inv.Movements))
	}
	first := inv.Movements[0]
	if first.ID != "7" || first.Kind != core.KindExpense || !first.Amount.Equal(decimal.RequireFromString("-87.3")) {
		t.Fatalf("unexpected first movement %+v", first)
	}
	if inv.Movements[1].ID != "8" || first.CategoryDescription != "Mercado" {
		t.Fatalf("unexpected movements %+v", inv.Movements)
	}
	if !inv.Total.Equal(decimal.RequireFromString("4912.7")) || !inv.Savings.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected totals %s %s", inv.Total, inv.Savings)
	}
}

func TestCreateAndUpdateMovementBody(t *testing.T) {
	var (
		mu      sync.Mutex
		got     []map[string]any
		methods []string
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		methods = append(methods, r.Method+" "+r.URL.Path)
		got = append(got, body)
		mu.Unlock()
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"id": 42}`)
		}
	}, "tok")

	m := core.Movement{Day: 1, Month: 4, Year: 2025, Kind: core.KindExpense, CategoryID: 3, Description: "luz", Amount: decimal.RequireFromString("-120.5")}
	created, err := c.CreateMovement(context.Background(), m)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "42" {
		t.Fatalf("expected id 42, got %q", created.ID)
	}
	if err := c.UpdateMovement(context.Background(), created); err != nil {
		t.Fatalf("update: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if methods[0] != "POST /api/movement" || methods[1] != "PATCH /api/movement/42" {
		t.Fatalf("unexpected requests %v", methods)
	}
	body := got[0]
	if body["dia"] != float64(1) || body["mes"] != float64(4) || body["ano"] != float64(2025) ||
		body["tipo"] != "saida" || body["categoria"] != float64(3) || body["descricao"] != "luz" || body["valor"] != -120.5 {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMovementByIDAndDelete(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/movement/get-by-id/9":
			_, _ = io.WriteString(w, `{"id":9,"dia":2,"mes":6,"ano":2025,"tipo":"entrada","categoria":"4","descricao":"pix","valor":10}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/movement/9":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}, "tok")

	m, err := c.MovementByID(context.Background(), "9")
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if m.CategoryID != 4 || m.Day != 2 || m.Kind != core.KindIncome {
		t.Fatalf("unexpected movement %+v", m)
	}
	if err := c.DeleteMovement(context.Background(), "9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeleteMovement(context.Background(), ""); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/category/get-all":
			_, _ = io.WriteString(w, `[{"id":"1","descricao":"Casa"},{"id":2,"descricao":"Lazer"}]`)
		case "/api/category/create":
			_, _ = io.WriteString(w, `{"id":3,"descricao":"Saúde"}`)
		case "/api/movement/months":
			_, _ = io.WriteString(w, `[{"id":1,"mes":"Janeiro"}]`)
		case "/api/movement/years":
			_, _ = io.WriteString(w, `[{"id":1,"ano":2024},{"id":2,"ano":"2025"}]`)
		case "/api/savings":
			if r.Method != http.MethodPut && r.Method != http.MethodDelete {
				t.Errorf("unexpected savings method %s", r.Method)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, "tok")
	ctx := context.Background()

	cats, err := c.Categories(ctx)
	if err != nil || len(cats) != 2 || cats[0].ID != 1 || cats[1].Description != "Lazer" {
		t.Fatalf("categories: %v %+v", err, cats)
	}
	cat, err := c.CreateCategory(ctx, "  Saúde ")
	if err != nil || cat.ID != 3 {
		t.Fatalf("create category: %v %+v", err, cat)
	}
	if _, err := c.CreateCategory(ctx, " "); !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	months, err := c.Months(ctx)
	if err != nil || len(months) != 1 || months[0].Name != "Janeiro" {
		t.Fatalf("months: %v %+v", err, months)
	}
	years, err := c.Years(ctx)
	if err != nil || len(years) != 2 || years[1].Year != 2025 {
		t.Fatalf("years: %v %+v", err, years)
	}
	if err := c.UpsertSavings(ctx, decimal.NewFromInt(250)); err != nil {
		t.Fatalf("upsert savings: %v", err)
	}
	if err := c.ClearSavings(ctx); err != nil {
		t.Fatalf("clear savings: %v", err)
	}
}

func TestLogoutClearsSessionEvenOnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "tok")

	if err := c.Logout(context.Background()); err == nil {
		t.Fatal("expected server error")
	}
	if c.Session().Authenticated() {
		t.Fatal("logout must clear the session")
	}
}

func TestBiometricEndpoints(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/api/auth/touchid/challenge":
			if body["email"] != "ana" {
				t.Errorf("unexpected challenge body %v", body)
			}
			_, _ = io.WriteString(w, `{"challenge":"Y2hhbGxlbmdl"}`)
		case "/api/auth/touchid/login":
			if body["email"] != "ana" || body["credentialId"] != "cred" || body["clientDataJSON"] != "cd" {
				t.Errorf("unexpected login body %v", body)
			}
			_, _ = io.WriteString(w, `{"token":"bio-token"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, "")
	ctx := context.Background()

	challenge, err := c.BiometricChallenge(ctx, "ana")
	if err != nil || challenge != "Y2hhbGxlbmdl" {
		t.Fatalf("challenge: %v %q", err, challenge)
	}
	token, err := c.BiometricLogin(ctx, "ana", Assertion{CredentialID: "cred", Signature: "sig", AuthenticatorData: "ad", ClientDataJSON: "cd"})
	if err != nil || token != "bio-token" || c.Session().Token() != "bio-token" {
		t.Fatalf("biometric login: %v %q", err, token)
	}
}

type headerTransport struct{ base http.RoundTripper }

func (h headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("X-Wrapped", "yes")
	return h.base.RoundTrip(r)
}

func TestWithRoundTripperWrapsTransport(t *testing.T) {
	var wrapped string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped = r.Header.Get("X-Wrapped")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	sess, _ := session.New(context.Background(), nil)
	_ = sess.Set(context.Background(), "tok")
	c := New(srv.URL, sess, nil, WithRoundTripper(func(base http.RoundTripper) http.RoundTripper {
		return headerTransport{base: base}
	}))

	if _, err := c.Categories(context.Background()); err != nil {
		t.Fatalf("categories: %v", err)
	}
	if wrapped != "yes" {
		t.Error("request did not go through the wrapping transport")
	}
}
