package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/iliyamo/book-ratings-api/internal/logger"
	"github.com/iliyamo/book-ratings-api/internal/queue"
	"github.com/iliyamo/book-ratings-api/internal/repository/memrepo"
	"github.com/iliyamo/book-ratings-api/internal/utils"
)

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Verify(h, p string) bool       { return h == "h:"+p }

type stubTokens struct{ err error }

func (s stubTokens) Issue(id uint64) (utils.AccessToken, error) {
	if s.err != nil {
		return utils.AccessToken{}, s.err
	}
	return utils.AccessToken{Token: "tok-" + strconv.FormatUint(id, 10), TTL: time.Hour}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store   *memrepo.Store
	events  *recorder
	auth    *AuthService
	books   *BookService
	ratings *RatingService
}

func newFixture() *fixture {
	st := memrepo.New()
	rec := &recorder{}
	log := logger.Discard()
	return &fixture{
		store:   st,
		events:  rec,
		auth:    NewAuthService(st.Users(), plainHasher{}, stubTokens{}, rec, log),
		books:   NewBookService(st.Books(), rec, log),
		ratings: NewRatingService(st.Ratings(), st.Books(), st.Users(), rec, log),
	}
}

func (f *fixture) user(name string) uint64 {
	u, err := f.store.Users().Create(context.Background(), name, name+"@example.com", "h:password")
	if err != nil {
		panic(err)
	}
	return u.ID
}

func ptr[T any](v T) *T { return &v }

var errBoom = errors.New("boom")
