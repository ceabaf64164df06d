package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_Envelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusUnauthorized, ReasonUnauthenticated, "authentication required")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if envelope.Error.Code != "Unauthorized" {
		t.Errorf("code = %q", envelope.Error.Code)
	}
	if envelope.Error.ReasonCode != ReasonUnauthenticated {
		t.Errorf("reason_code = %q", envelope.Error.ReasonCode)
	}
	if envelope.Error.Message != "authentication required" {
		t.Errorf("message = %q", envelope.Error.Message)
	}
}

func TestWriteErrorDetail_CarriesEmailAndField(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorDetail(w, http.StatusForbidden, ErrorDetail{
		ReasonCode: ReasonEmailNotVerified,
		Message:    "Email not verified",
		Email:      "a@x.com",
	})

	var envelope ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if envelope.Error.Email != "a@x.com" {
		t.Errorf("email = %q, want a@x.com", envelope.Error.Email)
	}
	if envelope.Error.Code != "Forbidden" {
		t.Errorf("code = %q", envelope.Error.Code)
	}

	w = httptest.NewRecorder()
	WriteErrorDetail(w, http.StatusBadRequest, ErrorDetail{
		ReasonCode: ReasonValidationError,
		Message:    "email does not match the invite",
		Field:      "email",
	})
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if envelope.Error.Field != "email" {
		t.Errorf("field = %q, want email", envelope.Error.Field)
	}
}

func TestHelperStatusCodes(t *testing.T) {
	tests := []struct {
		name  string
		write func(w http.ResponseWriter)
		want  int
	}{
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, ReasonUnauthenticated, "x") }, 401},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, ReasonForbidden, "x") }, 403},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "x") }, 404},
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, ReasonBadRequest, "x") }, 400},
		{"too many", func(w http.ResponseWriter) { WriteTooManyRequests(w, "x") }, 429},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, ReasonSubmissionInFlight, "x") }, 409},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "x") }, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
