package auth

import (
	"context"
	"testing"

	"github.com/fxgate/fxgate/internal/model"
)

func TestCallerContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if CallerFromContext(ctx) != nil {
		t.Error("empty context should have no caller")
	}
	if UserIDFromContext(ctx) != "" {
		t.Error("empty context should have no user ID")
	}

	user := &model.User{ID: "01HUSER", Email: "a@example.com"}
	ctx = ContextWithCaller(ctx, user)

	if got := CallerFromContext(ctx); got != user {
		t.Errorf("CallerFromContext = %v, want %v", got, user)
	}
	if got := UserIDFromContext(ctx); got != "01HUSER" {
		t.Errorf("UserIDFromContext = %q", got)
	}
}

func TestMustCallerFromContext_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustCallerFromContext(context.Background())
}
