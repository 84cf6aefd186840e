package api

import (
	"net/http"

	"salonbook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorMapping struct {
	http int
	grpc codes.Code
}

var errorMappings = map[string]errorMapping{
	"invalid_request":           {http.StatusBadRequest, codes.InvalidArgument},
	"invalid_schedule":          {http.StatusBadRequest, codes.InvalidArgument},
	"salon_not_found":           {http.StatusNotFound, codes.NotFound},
	"appointment_not_found":     {http.StatusNotFound, codes.NotFound},
	"forbidden":                 {http.StatusForbidden, codes.PermissionDenied},
	"duplicate_pending_request": {http.StatusConflict, codes.AlreadyExists},
	"slot_already_confirmed":    {http.StatusConflict, codes.AlreadyExists},
	"race_lost_at_confirm":      {http.StatusConflict, codes.Aborted},
	"concurrent_modification":   {http.StatusConflict, codes.Aborted},
	"appointment_withdrawn":     {http.StatusConflict, codes.FailedPrecondition},
	"invalid_transition":        {http.StatusConflict, codes.FailedPrecondition},
	"cancel_too_late":           {http.StatusConflict, codes.FailedPrecondition},
	"salon_closed":              {http.StatusUnprocessableEntity, codes.FailedPrecondition},
	"slot_in_past":              {http.StatusUnprocessableEntity, codes.FailedPrecondition},
	"slot_not_offered":          {http.StatusUnprocessableEntity, codes.FailedPrecondition},
	"date_too_far":              {http.StatusUnprocessableEntity, codes.OutOfRange},
	"too_many_requests":         {http.StatusTooManyRequests, codes.ResourceExhausted},
	"backend_failure":           {http.StatusServiceUnavailable, codes.Unavailable},
}

func mappingFor(err error) (string, errorMapping) {
	code := domain.Code(err)
	m, ok := errorMappings[code]
	if !ok {
		return code, errorMapping{http.StatusInternalServerError, codes.Internal}
	}
	return code, m
}

// writeDomainError renders err as {"error": ..., "code": ...}. Unknown errors
// are reported without their message.
func writeDomainError(w http.ResponseWriter, err error) {
	code, m := mappingFor(err)
	msg := err.Error()
	if m.http == http.StatusInternalServerError || m.http == http.StatusServiceUnavailable {
		msg = http.StatusText(m.http)
	}
	writeJSON(w, m.http, map[string]string{"error": msg, "code": code})
}

func grpcError(err error) error {
	code, m := mappingFor(err)
	msg := err.Error()
	if m.grpc == codes.Internal || m.grpc == codes.Unavailable {
		msg = code
	}
	return status.Error(m.grpc, msg)
}
