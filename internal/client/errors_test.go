package client

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		svc       Service
		kind      callKind
		status    int
		body      string
		wantKind  Kind
		wantField string
		wantMsg   string
	}{
		{
			name:     "login unauthorized",
			svc:      ServiceIdentity,
			kind:     callLogin,
			status:   http.StatusUnauthorized,
			wantKind: KindAuthentication,
		},
		{
			name:     "login bad request",
			svc:      ServiceIdentity,
			kind:     callLogin,
			status:   http.StatusBadRequest,
			wantKind: KindAuthentication,
		},
		{
			name:     "login unknown user",
			svc:      ServiceIdentity,
			kind:     callLogin,
			status:   http.StatusNotFound,
			wantKind: KindNotFound,
			wantMsg:  "user not found",
		},
		{
			name:     "rate limited",
			svc:      ServiceIdentity,
			kind:     callLogin,
			status:   http.StatusTooManyRequests,
			wantKind: KindRateLimited,
		},
		{
			name:     "server error",
			svc:      ServiceInventory,
			status:   http.StatusServiceUnavailable,
			wantKind: KindServer,
		},
		{
			name:     "expired session on identity",
			svc:      ServiceIdentity,
			status:   http.StatusUnauthorized,
			wantKind: KindAuthorization,
			wantMsg:  "your session has expired, please sign in again",
		},
		{
			name:     "forbidden on inventory",
			svc:      ServiceInventory,
			status:   http.StatusForbidden,
			wantKind: KindAuthorization,
			wantMsg:  "you are not permitted to perform this action",
		},
		{
			name:     "not found carries server message",
			svc:      ServiceInventory,
			status:   http.StatusNotFound,
			body:     `{"error":"room not found"}`,
			wantKind: KindNotFound,
			wantMsg:  "room not found",
		},
		{
			name:      "duplicate email on register",
			svc:       ServiceIdentity,
			kind:      callCreate,
			status:    http.StatusConflict,
			body:      `{"error":"email already exists"}`,
			wantKind:  KindConflict,
			wantField: "email",
		},
		{
			name:      "duplicate username reported as bad request",
			svc:       ServiceIdentity,
			kind:      callCreate,
			status:    http.StatusBadRequest,
			body:      `{"message":"username already taken"}`,
			wantKind:  KindConflict,
			wantField: "username",
		},
		{
			name:      "duplicate room number",
			svc:       ServiceInventory,
			kind:      callCreate,
			status:    http.StatusConflict,
			body:      `{"error":"room number exists"}`,
			wantKind:  KindConflict,
			wantField: "number",
			wantMsg:   "a room with this number already exists",
		},
		{
			name:     "invalid create input stays a validation error",
			svc:      ServiceInventory,
			kind:     callCreate,
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid email format"}`,
			wantKind: KindValidation,
			wantMsg:  "invalid email format",
		},
		{
			name:     "plain bad request",
			svc:      ServiceReservations,
			status:   http.StatusBadRequest,
			body:     `{"error":"bad_request","message":"room is not available for those dates"}`,
			wantKind: KindValidation,
			wantMsg:  "room is not available for those dates",
		},
		{
			name:     "unparsable body",
			svc:      ServiceReservations,
			status:   http.StatusBadRequest,
			body:     `<html>`,
			wantKind: KindValidation,
			wantMsg:  "the request was rejected as invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := classify(tt.svc, "op", tt.kind, tt.status, []byte(tt.body))
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.wantField, e.Field)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, e.Message)
			}
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("failed to load: %w", NewValidationError("floor", "floor must be at least 1"))
	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.Equal(t, "floor must be at least 1", MessageOf(wrapped))

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindBusy, KindOf(NewBusyError("cancel")))
}
