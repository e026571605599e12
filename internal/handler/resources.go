package handler

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/book-ratings-api/internal/model"
	"github.com/iliyamo/book-ratings-api/internal/service"
	"github.com/iliyamo/book-ratings-api/internal/utils"
)

// Response shapes.  Single resources are wrapped as {"data": ...}.

type userResource struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ratingResource struct {
	ID        uint64 `json:"id"`
	UserID    uint64 `json:"user_id"`
	BookID    uint64 `json:"book_id"`
	Rating    int    `json:"rating"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type bookResource struct {
	ID            uint64           `json:"id"`
	UserID        uint64           `json:"user_id"`
	Title         string           `json:"title"`
	Description   *string          `json:"description"`
	Ratings       []ratingResource `json:"ratings"`
	RatingsCount  int              `json:"ratings_count"`
	AverageRating float64          `json:"average_rating"`
	CreatedAt     string           `json:"created_at"`
	UpdatedAt     string           `json:"updated_at"`
}

type tokenResponse struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

type pageLinks struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type pageMeta struct {
	CurrentPage int    `json:"current_page"`
	From        *int   `json:"from"`
	LastPage    int    `json:"last_page"`
	Path        string `json:"path"`
	PerPage     int    `json:"per_page"`
	To          *int   `json:"to"`
	Total       int    `json:"total"`
}

type bookCollection struct {
	Data  []bookResource `json:"data"`
	Links pageLinks      `json:"links"`
	Meta  pageMeta       `json:"meta"`
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func newUserResource(u model.User) userResource {
	return userResource{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: stamp(u.CreatedAt), UpdatedAt: stamp(u.UpdatedAt)}
}

func newRatingResource(r model.Rating) ratingResource {
	return ratingResource{
		ID:        r.ID,
		UserID:    r.UserID,
		BookID:    r.BookID,
		Rating:    r.Value,
		CreatedAt: stamp(r.CreatedAt),
		UpdatedAt: stamp(r.UpdatedAt),
	}
}

func newBookResource(b model.Book) bookResource {
	ratings := make([]ratingResource, 0, len(b.Ratings))
	for _, r := range b.Ratings {
		ratings = append(ratings, newRatingResource(r))
	}
	return bookResource{
		ID:            b.ID,
		UserID:        b.OwnerID,
		Title:         b.Title,
		Description:   b.Description,
		Ratings:       ratings,
		RatingsCount:  len(ratings),
		AverageRating: math.Round(b.AverageRating()*100) / 100,
		CreatedAt:     stamp(b.CreatedAt),
		UpdatedAt:     stamp(b.UpdatedAt),
	}
}

func newTokenResponse(u model.User, tok utils.AccessToken) tokenResponse {
	return tokenResponse{
		Name:        u.Name,
		Email:       u.Email,
		AccessToken: tok.Token,
		TokenType:   "bearer",
		ExpiresIn:   tok.ExpiresIn(),
	}
}

// newBookCollection builds the paginated listing.  Links are rooted at base,
// or at the request origin when base is empty, and keep per_page when the
// client sent it.
func newBookCollection(c echo.Context, base string, p service.BookPage) bookCollection {
	data := make([]bookResource, 0, len(p.Books))
	for _, b := range p.Books {
		data = append(data, newBookResource(b))
	}

	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	path := strings.TrimRight(base, "/") + c.Request().URL.Path
	keepPerPage := c.QueryParam("per_page") != ""
	link := func(n int) string {
		q := url.Values{}
		q.Set("page", strconv.Itoa(n))
		if keepPerPage {
			q.Set("per_page", strconv.Itoa(p.PerPage))
		}
		return path + "?" + q.Encode()
	}

	out := bookCollection{
		Data: data,
		Links: pageLinks{
			First: link(1),
			Last:  link(p.LastPage()),
		},
		Meta: pageMeta{
			CurrentPage: p.Page,
			LastPage:    p.LastPage(),
			Path:        path,
			PerPage:     p.PerPage,
			Total:       p.Total,
		},
	}
	if p.Page > 1 {
		prev := link(p.Page - 1)
		out.Links.Prev = &prev
	}
	if p.Page < p.LastPage() {
		next := link(p.Page + 1)
		out.Links.Next = &next
	}
	if len(data) > 0 {
		from, to := p.From(), p.To()
		out.Meta.From, out.Meta.To = &from, &to
	}
	return out
}
