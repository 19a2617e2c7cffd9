// Package request разбирает общие параметры запросов.
package request

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	// DefaultLimit размер страницы по умолчанию.
	DefaultLimit = 20
	// MaxLimit наибольший допустимый размер страницы.
	MaxLimit = 100
)

// Page читает limit и offset из query. Отсутствующие значения берутся по умолчанию,
// limit больше MaxLimit урезается.
func Page(r *http.Request) (limit, offset int, err error) {
	const op = "request.Page"
	q := r.URL.Query()

	limit = DefaultLimit
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("%s: invalid limit %q", op, v)
		}
		limit = min(limit, MaxLimit)
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%s: invalid offset %q", op, v)
		}
	}
	return limit, offset, nil
}
