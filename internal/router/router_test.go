package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/book-ratings-api/internal/config"
	"github.com/iliyamo/book-ratings-api/internal/handler"
	"github.com/iliyamo/book-ratings-api/internal/logger"
	"github.com/iliyamo/book-ratings-api/internal/ratelimit"
	"github.com/iliyamo/book-ratings-api/internal/repository/memrepo"
	"github.com/iliyamo/book-ratings-api/internal/service"
	"github.com/iliyamo/book-ratings-api/internal/utils"
)

type app struct {
	t      *testing.T
	e      *echo.Echo
	tokens *utils.TokenIssuer
}

// newApp wires the real services over in-memory stores.  With redis set the
// limiter and response cache run against miniredis; otherwise the in-memory
// limiter is used and caching is off.
func newApp(t *testing.T, withRedis bool) *app {
	t.Helper()
	return newAppWith(t, withRedis, nil)
}

// newAppWith lets a test adjust Deps before the router is built.
func newAppWith(t *testing.T, withRedis bool, edit func(*Deps)) *app {
	t.Helper()
	log := logger.Discard()
	st := memrepo.New()
	tokens := utils.NewTokenIssuer("test-secret", "book-ratings-api", time.Hour)

	authSvc := service.NewAuthService(st.Users(), utils.NewBcryptHasher(4), tokens, nil, log)
	bookSvc := service.NewBookService(st.Books(), nil, log)
	ratingSvc := service.NewRatingService(st.Ratings(), st.Books(), st.Users(), nil, log)

	rl := config.RateLimitConfig{Enabled: true, MaxAttempts: 60, Window: time.Minute, KeyStrategy: "ip", Prefix: "rl"}
	cache := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, KeyStrategy: "path_query", Prefix: "cache:books"}

	d := Deps{
		Auth:      handler.NewAuthHandler(authSvc, log),
		Books:     handler.NewBookHandler(bookSvc, log),
		Ratings:   handler.NewRatingHandler(ratingSvc, log),
		Tokens:    tokens,
		RateLimit: rl,
		Cache:     cache,
		Log:       log,
	}
	if withRedis {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		d.Redis = rdb
		d.Limiter = ratelimit.NewRedisWindow(rdb, rl.MaxAttempts, rl.Window)
	} else {
		mem := ratelimit.NewMemory(rl.MaxAttempts, rl.Window)
		t.Cleanup(mem.Stop)
		d.Limiter = mem
	}
	if edit != nil {
		edit(&d)
	}
	return &app{t: t, e: New(d), tokens: tokens}
}

func (a *app) request(method, path, token string, body any) *http.Request {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func (a *app) send(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.send(a.request(method, path, token, body))
}

type tokenBody struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *app) register(name string) tokenBody {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/register", "", map[string]string{
		"name":                  name,
		"email":                 name + "@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var tb tokenBody
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &tb))
	return tb
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestRegister_ReturnsTokenForNewUser(t *testing.T) {
	a := newApp(t, false)

	tb := a.register("resi")
	assert.Equal(t, "resi", tb.Name)
	assert.Equal(t, "resi@example.com", tb.Email)
	assert.Equal(t, "bearer", tb.TokenType)
	assert.Equal(t, int64(3600), tb.ExpiresIn)

	uid, err := a.tokens.Verify(tb.AccessToken)
	require.NoError(t, err)

	rec := a.do(http.MethodGet, "/v1/me", tb.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeData(t, rec)
	assert.Equal(t, float64(uid), me["id"])
	assert.Equal(t, "resi@example.com", me["email"])
	assert.NotContains(t, me, "password_hash")
}

func TestRegister_ValidationPerField(t *testing.T) {
	a := newApp(t, false)
	a.register("taken")

	valid := func() map[string]string {
		return map[string]string{
			"name":                  "ana",
			"email":                 "ana@example.com",
			"password":              "password123",
			"password_confirmation": "password123",
		}
	}
	cases := []struct {
		name  string
		edit  func(map[string]string)
		field string
	}{
		{"empty name", func(m map[string]string) { m["name"] = "" }, "name"},
		{"empty email", func(m map[string]string) { m["email"] = "" }, "email"},
		{"invalid email", func(m map[string]string) { m["email"] = "ana-at-example" }, "email"},
		{"duplicate email", func(m map[string]string) { m["email"] = "TAKEN@example.com" }, "email"},
		{"empty password", func(m map[string]string) { m["password"] = "" }, "password"},
		{"short password", func(m map[string]string) { m["password"], m["password_confirmation"] = "1234567", "1234567" }, "password"},
		{"mismatched confirmation", func(m map[string]string) { m["password_confirmation"] = "different1" }, "password"},
		{"password over 72 bytes", func(m map[string]string) {
			m["password"] = strings.Repeat("x", 80)
			m["password_confirmation"] = m["password"]
		}, "password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := valid()
			tc.edit(body)
			rec := a.do(http.MethodPost, "/v1/register", "", body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var got struct {
				Message string              `json:"message"`
				Errors  map[string][]string `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, "validation error", got.Message)
			assert.NotEmpty(t, got.Errors[tc.field])
		})
	}
}

func TestLogin(t *testing.T) {
	a := newApp(t, false)
	reg := a.register("resi")

	rec := a.do(http.MethodPost, "/v1/login", "", map[string]string{"email": "resi@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var tb tokenBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tb))
	assert.Equal(t, "resi", tb.Name)

	want, err := a.tokens.Verify(reg.AccessToken)
	require.NoError(t, err)
	got, err := a.tokens.Verify(tb.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wrongPassword := a.do(http.MethodPost, "/v1/login", "", map[string]string{"email": "resi@example.com", "password": "nope-nope"})
	unknownEmail := a.do(http.MethodPost, "/v1/login", "", map[string]string{"email": "ghost@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.JSONEq(t, `{"message":"Invalid email or password"}`, wrongPassword.Body.String())
}

func TestLogin_RateLimited(t *testing.T) {
	for _, withRedis := range []bool{false, true} {
		t.Run(fmt.Sprintf("redis=%v", withRedis), func(t *testing.T) {
			a := newApp(t, withRedis)
			// no password: rejected by validation, so no hashing slows the loop
			body := map[string]string{"email": "ghost@example.com"}

			for i := 1; i <= 60; i++ {
				rec := a.do(http.MethodPost, "/v1/login", "", body)
				require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "attempt %d", i)
			}
			rec := a.do(http.MethodPost, "/v1/login", "", body)
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.JSONEq(t, `{"message":"Too Many Attempts."}`, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))

			// resource routes are not throttled
			assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/books", "", nil).Code)
		})
	}
}

func TestLogin_ForwardedForDoesNotSplitBucket(t *testing.T) {
	for _, withRedis := range []bool{false, true} {
		t.Run(fmt.Sprintf("redis=%v", withRedis), func(t *testing.T) {
			a := newApp(t, withRedis)
			body := map[string]string{"email": "ghost@example.com"}

			codes := map[int]int{}
			for i := 1; i <= 100; i++ {
				req := a.request(http.MethodPost, "/v1/login", "", body)
				req.RemoteAddr = "203.0.113.7:4000"
				req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("10.0.0.%d", i))
				req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("10.0.1.%d", i))
				codes[a.send(req).Code]++
			}
			assert.Equal(t, map[int]int{http.StatusUnprocessableEntity: 60, http.StatusTooManyRequests: 40}, codes)
		})
	}
}

func TestLogin_TrustedProxyForwardsClientAddress(t *testing.T) {
	_, proxy, err := net.ParseCIDR("198.51.100.0/24")
	require.NoError(t, err)
	a := newAppWith(t, false, func(d *Deps) { d.TrustedProxies = []*net.IPNet{proxy} })
	body := map[string]string{"email": "ghost@example.com"}

	login := func(client string) int {
		req := a.request(http.MethodPost, "/v1/login", "", body)
		req.RemoteAddr = "198.51.100.2:4000"
		req.Header.Set(echo.HeaderXForwardedFor, client)
		return a.send(req).Code
	}
	for i := 1; i <= 60; i++ {
		require.Equal(t, http.StatusUnprocessableEntity, login("203.0.113.1"), "attempt %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, login("203.0.113.1"))
	assert.Equal(t, http.StatusUnprocessableEntity, login("203.0.113.2"), "another client behind the proxy has its own bucket")
}

func TestBooks_OwnershipEnforced(t *testing.T) {
	a := newApp(t, true)
	ana := a.register("ana").AccessToken
	bob := a.register("bob").AccessToken

	rec := a.do(http.MethodPost, "/v1/books", ana, map[string]string{"title": "Dune", "description": "spice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int(decodeData(t, rec)["id"].(float64))
	path := fmt.Sprintf("/v1/books/%d", id)

	rec = a.do(http.MethodPut, path, bob, map[string]string{"title": "Hijacked", "description": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"You can only edit your own books."}`, rec.Body.String())

	rec = a.do(http.MethodPatch, path, bob, map[string]string{})
	assert.Equal(t, http.StatusForbidden, rec.Code, "ownership is checked before validation")

	rec = a.do(http.MethodDelete, path, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, "reads need no token")
	assert.Equal(t, "Dune", decodeData(t, rec)["title"])

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodDelete, path, "", nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, path, ana, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, path, ana, nil).Code)
}

func TestBooks_RoundTrip(t *testing.T) {
	for _, withRedis := range []bool{false, true} {
		t.Run(fmt.Sprintf("redis=%v", withRedis), func(t *testing.T) {
			a := newApp(t, withRedis)
			tok := a.register("ana").AccessToken

			created := a.do(http.MethodPost, "/v1/books", tok, map[string]any{"title": "Dune", "description": nil})
			require.Equal(t, http.StatusCreated, created.Code)
			id := int(decodeData(t, created)["id"].(float64))
			path := fmt.Sprintf("/v1/books/%d", id)

			shown := a.do(http.MethodGet, path, "", nil)
			require.Equal(t, http.StatusOK, shown.Code)
			assert.JSONEq(t, created.Body.String(), shown.Body.String())

			updated := a.do(http.MethodPut, path, tok, map[string]string{"title": "Dune Messiah", "description": "sequel"})
			require.Equal(t, http.StatusOK, updated.Code)
			shown = a.do(http.MethodGet, path, "", nil)
			assert.JSONEq(t, updated.Body.String(), shown.Body.String())

			rated := a.do(http.MethodPost, path+"/ratings", tok, map[string]any{"user_id": 1, "book_id": id, "rating": 5})
			require.Equal(t, http.StatusCreated, rated.Code)
			rating := decodeData(t, rated)
			assert.Equal(t, float64(5), rating["rating"])

			shown = a.do(http.MethodGet, path, "", nil)
			book := decodeData(t, shown)
			assert.Equal(t, float64(1), book["ratings_count"])
			assert.Equal(t, float64(5), book["average_rating"])
			ratings := book["ratings"].([]any)
			require.Len(t, ratings, 1)
			assert.Equal(t, rating, ratings[0])
		})
	}
}

func TestBooks_CreateValidationAndAuth(t *testing.T) {
	a := newApp(t, false)
	tok := a.register("ana").AccessToken

	rec := a.do(http.MethodPost, "/v1/books", tok, map[string]string{"title": "", "description": "this is description"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title"`)

	rec = a.do(http.MethodPost, "/v1/books", "", map[string]string{"title": "Dune"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthenticated."}`, rec.Body.String())

	rec = a.do(http.MethodPost, "/v1/books", "garbage.token.value", map[string]string{"title": "Dune"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBooks_ListPaginated(t *testing.T) {
	a := newApp(t, true)
	tok := a.register("ana").AccessToken
	for i := 0; i < 16; i++ {
		rec := a.do(http.MethodPost, "/v1/books", tok, map[string]string{"title": fmt.Sprintf("Book %d", i)})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := a.do(http.MethodGet, "/v1/books", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Total    int `json:"total"`
			LastPage int `json:"last_page"`
			PerPage  int `json:"per_page"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 15)
	assert.Equal(t, 16, page.Meta.Total)
	assert.Equal(t, 2, page.Meta.LastPage)
	assert.Equal(t, 15, page.Meta.PerPage)

	// a write purges the cached listing
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/books", tok, map[string]string{"title": "Book 16"}).Code)
	rec = a.do(http.MethodGet, "/v1/books?page=2", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 17, page.Meta.Total)
}

func TestRatings_Errors(t *testing.T) {
	a := newApp(t, false)
	tok := a.register("ana").AccessToken
	rec := a.do(http.MethodPost, "/v1/books", tok, map[string]string{"title": "Dune"})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/v1/books/999/ratings", tok, map[string]any{"user_id": 1, "rating": 3}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodPost, "/v1/books/1/ratings", tok, map[string]any{}).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/v1/books/1/ratings", "", map[string]any{"user_id": 1, "rating": 3}).Code)

	rec = a.do(http.MethodPost, "/v1/books/1/ratings", tok, map[string]any{"user_id": 1, "rating": 2147483648})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rating"`)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	a := newApp(t, false)

	rec := a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = a.do(http.MethodGet, "/v1/authors", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Not found."}`, rec.Body.String())
}
