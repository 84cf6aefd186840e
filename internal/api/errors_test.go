package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"salonbook/internal/domain"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		httpCode int
		grpcCode codes.Code
	}{
		{domain.ErrSalonNotFound, http.StatusNotFound, codes.NotFound},
		{fmt.Errorf("%w: weekly day off", domain.ErrSalonClosed), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{domain.ErrDuplicatePendingRequest, http.StatusConflict, codes.AlreadyExists},
		{domain.ErrRaceLostAtConfirm, http.StatusConflict, codes.Aborted},
		{domain.ErrForbidden, http.StatusForbidden, codes.PermissionDenied},
		{domain.ErrTooManyRequests, http.StatusTooManyRequests, codes.ResourceExhausted},
		{domain.Backend("list", errors.New("disk full")), http.StatusServiceUnavailable, codes.Unavailable},
		{errors.New("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tt.err)
			assert.Equal(t, tt.httpCode, rec.Code)
			assert.Equal(t, tt.grpcCode, status.Code(grpcError(tt.err)))
		})
	}
}

func TestInternalErrorsHideDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, domain.Backend("list", errors.New("password=hunter2")))
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, rec.Body.String(), `"code":"backend_failure"`)
}
