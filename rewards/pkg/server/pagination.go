package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
)

const MaxLimit = 10000

type pagination struct {
	// Limit of zero means no limit.
	Limit  int
	Offset int
}

func parsePagination(r *http.Request) (pagination, error) {
	var p pagination
	q := r.URL.Query()

	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return p, errors.New("limit must be a positive integer")
		}
		p.Limit = min(parsed, MaxLimit)
	}

	if o := q.Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			return p, errors.New("offset must be a non-negative integer")
		}
		p.Offset = parsed
	}

	return p, nil
}

func (p pagination) apply(users []distribution.User) []distribution.User {
	if p.Offset >= len(users) {
		return []distribution.User{}
	}
	users = users[p.Offset:]
	if p.Limit > 0 && p.Limit < len(users) {
		users = users[:p.Limit]
	}
	return users
}
