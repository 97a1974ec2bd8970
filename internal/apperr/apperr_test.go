package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not_found", NotFound("deal %d not found", 7), KindNotFound},
		{"forbidden", Forbidden("only the owner can accept"), KindForbidden},
		{"conflict", Conflict("wallet already exists"), KindConflict},
		{"bad_request", BadRequest("cannot accept from state: %s", "rejected"), KindBadRequest},
		{"internal", Internal(errors.New("boom"), "decryption failed"), KindInternal},
		{"plain error", errors.New("boom"), KindInternal},
		{"wrapped", fmt.Errorf("handler: %w", Forbidden("nope")), KindForbidden},
		{"nil-ish plain", fmt.Errorf("x"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublicMessageMasksInternal(t *testing.T) {
	err := Internal(errors.New("pgx: connection refused"), "failed to load deal")
	msg := PublicMessage(err)
	if msg == "failed to load deal" || msg == err.Error() {
		t.Errorf("internal details leaked: %q", msg)
	}

	if got := PublicMessage(BadRequest("reason is required")); got != "reason is required" {
		t.Errorf("PublicMessage() = %q, want the bad request message", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("aead: message authentication failed")
	err := Internal(inner, "decrypt escrow key")
	if !errors.Is(err, inner) {
		t.Error("wrapped error lost")
	}
}
