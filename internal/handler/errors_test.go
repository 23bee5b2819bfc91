package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/iot-device-console/internal/service"
	"github.com/iliyamo/iot-device-console/internal/utils"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	e := echo.New()
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrUnauthorized, http.StatusUnauthorized},
		// Presenting an undecodable or wrong-audience token is an
		// authentication failure, not a malformed request.
		{utils.ErrInvalidToken, http.StatusUnauthorized},
		{utils.ErrWrongAudience, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrAlreadyExists, http.StatusConflict},
		{service.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{service.ErrRateLimited, http.StatusTooManyRequests},
		{service.ErrAlreadyLoggedOut, http.StatusBadRequest},
		{service.ErrInvalidCategory, http.StatusBadRequest},
		{service.ErrInvalidStatus, http.StatusBadRequest},
		{fmt.Errorf("database gone"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		// Wrapped errors must map the same as bare sentinels.
		require.NoError(t, writeError(c, fmt.Errorf("%w: detail", tc.err)))
		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}
