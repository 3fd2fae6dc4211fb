package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseware-backend/internal/auth"
	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/requestdata"
)

func newAuth(t *testing.T, ttl time.Duration) auth.Service {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatal(err)
	}
	return auth.NewService(log, "test-secret", ttl)
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newAuth(t, time.Hour)
	learner := uuid.New()

	token, err := svc.IssueToken(learner, true, "FR")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	ctx, err := svc.SetContextFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		t.Fatal("no request data in context")
	}
	if rd.LearnerID != learner || !rd.IsStaff || rd.Country != "FR" {
		t.Fatalf("request data = %+v", rd)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := newAuth(t, -time.Minute)
	token, err := svc.IssueToken(uuid.New(), false, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetContextFromToken(context.Background(), token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := newAuth(t, time.Hour)
	verifier := func() auth.Service {
		log, err := logger.New("development")
		if err != nil {
			t.Fatal(err)
		}
		return auth.NewService(log, "other-secret", time.Hour)
	}()

	token, err := issuer.IssueToken(uuid.New(), false, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.SetContextFromToken(context.Background(), token); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := newAuth(t, time.Hour)
	if _, err := svc.SetContextFromToken(context.Background(), "not.a.jwt"); err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestEmptyTokenIsPassthrough(t *testing.T) {
	svc := newAuth(t, time.Hour)
	ctx, err := svc.SetContextFromToken(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if requestdata.GetRequestData(ctx) != nil {
		t.Fatal("empty token must not attach request data")
	}
}
