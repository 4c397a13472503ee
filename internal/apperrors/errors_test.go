package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsNestedErrors(t *testing.T) {
	base := Conflict("task %s was assigned concurrently", "abc")
	wrapped := fmt.Errorf("accepting bid: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindConflict))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestStatusCodeTable(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Authorization("not yours"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("raced"), http.StatusConflict},
		{RateLimit("slow down"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
		{nil, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusCode(tc.err))
	}
}
