package clients

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/petrijr/auraflow/pkg/api"
)

func TestClassifyStatus(t *testing.T) {
	base := errors.New("boom")
	for status, permanent := range map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusUnauthorized:        true,
		http.StatusNotFound:            true,
		http.StatusTooManyRequests:     false,
		http.StatusInternalServerError: false,
		http.StatusBadGateway:          false,
	} {
		err := ClassifyStatus(status, base)
		assert.Equal(t, permanent, api.IsPermanent(err), "status %d", status)
		assert.ErrorIs(t, err, base)
	}
}
