// Package api holds the response helpers shared by the module HTTP handlers
package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Page is a 1-based page request
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows before this page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PaginatedResponse is the list envelope of every collection endpoint
type PaginatedResponse[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

var errInvalidPage = &apperrors.AppError{
	Code:       "NOT_FOUND",
	Message:    "Invalid page",
	HTTPStatus: http.StatusNotFound,
}

// ParsePage reads page and page_size. A page_size above the maximum is
// clamped; a malformed one falls back to the default.
func ParsePage(c *gin.Context) (Page, error) {
	page := Page{Number: 1, Size: DefaultPageSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, errInvalidPage
		}
		page.Number = n
	}

	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page.Size = min(n, MaxPageSize)
		}
	}
	return page, nil
}

// Paginate counts query, then loads the requested page into a response.
// decorate adds selects, preloads and ordering that must not affect the count.
// Asking for a page past the end returns a 404 error, except for page 1.
func Paginate[T any](c *gin.Context, query *gorm.DB, page Page, decorate func(*gorm.DB) *gorm.DB) (*PaginatedResponse[T], error) {
	var count int64
	if err := query.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if page.Number > 1 && int64(page.Offset()) >= count {
		return nil, errInvalidPage
	}

	list := query.Session(&gorm.Session{})
	if decorate != nil {
		list = decorate(list)
	}

	results := make([]T, 0, page.Size)
	if err := list.Offset(page.Offset()).Limit(page.Size).Find(&results).Error; err != nil {
		return nil, err
	}

	resp := &PaginatedResponse[T]{Count: count, Results: results}
	if int64(page.Offset()+len(results)) < count {
		next := pageURL(c, page.Number+1)
		resp.Next = &next
	}
	if page.Number > 1 {
		prev := pageURL(c, page.Number-1)
		resp.Previous = &prev
	}
	return resp, nil
}

// pageURL rewrites the current request URL to point at another page
func pageURL(c *gin.Context, number int) string {
	u := *c.Request.URL
	q := u.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u.RawQuery = q.Encode()
	u.Scheme = requestScheme(c)
	u.Host = c.Request.Host
	return u.String()
}

// AbsoluteURL resolves path against the scheme and host the request came in on
func AbsoluteURL(c *gin.Context, path string) string {
	u := url.URL{Scheme: requestScheme(c), Host: c.Request.Host, Path: path}
	return u.String()
}

func requestScheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}

// RespondPage writes a paginated list or the pagination error
func RespondPage[T any](c *gin.Context, query *gorm.DB, decorate func(*gorm.DB) *gorm.DB) {
	page, err := ParsePage(c)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	resp, err := Paginate[T](c, query, page, decorate)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			appErr.ToGinResponse(c)
			return
		}
		apperrors.HandleDatabaseError(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Detail is the {"detail": message} body used for plain confirmations
func Detail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"detail": message})
}
