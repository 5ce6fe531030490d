package impl

import (
	"context"
	"strings"
	"testing"
	"time"

	"sessionguard/internal/dto"

	"github.com/google/uuid"
)

func newTokenFixture() (*TokenServiceImpl, *sessionFixture) {
	f := newSessionFixture()
	// The JWT library checks exp against the wall clock, so the injected
	// clock has to start at the present.
	*f.clock = time.Now().UTC()
	svc := NewTokenServiceImpl(TokenConfig{
		Issuer:     "sessionguard-test",
		AccessTTL:  15 * time.Minute,
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
	}, f.svc)
	svc.now = f.svc.now
	return svc, f
}

func TestIssueAndIntrospect(t *testing.T) {
	tokens, f := newTokenFixture()
	ctx := context.Background()
	userID := uuid.New()

	sess, err := f.svc.Create(ctx, userID, dto.CreateSessionRequest{}, "203.0.113.9", chromeUA)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	issued, err := tokens.Issue(ctx, sess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.AccessToken == "" || strings.Count(issued.AccessToken, ".") != 2 {
		t.Fatalf("expected a compact JWT, got %q", issued.AccessToken)
	}
	if issued.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("expires in: got %d", issued.ExpiresIn)
	}

	info, err := tokens.Introspect(ctx, issued.AccessToken)
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if !info.Active {
		t.Fatalf("freshly issued token must be active")
	}
	if info.UserID != userID.String() || info.SessionID != sess.ID.String() {
		t.Fatalf("claims mismatch: %+v", info)
	}
}

func TestIssueCapsExpiryAtSessionEnd(t *testing.T) {
	tokens, f := newTokenFixture()
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, uuid.New(), dto.CreateSessionRequest{}, "203.0.113.9", chromeUA)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	f.advance(55 * time.Minute) // 5 minutes of session left, TTL is 15

	issued, err := tokens.Issue(ctx, sess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.ExpiresIn != int64((5 * time.Minute).Seconds()) {
		t.Fatalf("token must not outlive its session: got %d", issued.ExpiresIn)
	}
}

func TestIntrospectAfterTermination(t *testing.T) {
	tokens, f := newTokenFixture()
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, uuid.New(), dto.CreateSessionRequest{}, "203.0.113.9", chromeUA)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	issued, err := tokens.Issue(ctx, sess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.svc.Terminate(ctx, sess.ID, "logout"); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	info, err := tokens.Introspect(ctx, issued.AccessToken)
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if info.Active {
		t.Fatalf("terminating the session must revoke its tokens")
	}
}

func TestIntrospectGarbage(t *testing.T) {
	tokens, _ := newTokenFixture()

	cases := []string{"", "not-a-jwt", "aaaa.bbbb.cccc"}
	for _, token := range cases {
		info, err := tokens.Introspect(context.Background(), token)
		if err != nil {
			t.Fatalf("introspect(%q): %v", token, err)
		}
		if info.Active {
			t.Fatalf("malformed token %q came back active", token)
		}
	}
}

func TestIntrospectWrongKey(t *testing.T) {
	tokens, f := newTokenFixture()
	ctx := context.Background()

	sess, err := f.svc.Create(ctx, uuid.New(), dto.CreateSessionRequest{}, "203.0.113.9", chromeUA)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	issued, err := tokens.Issue(ctx, sess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokenServiceImpl(TokenConfig{
		Issuer:     "sessionguard-test",
		AccessTTL:  15 * time.Minute,
		SigningKey: []byte("ffffffffffffffffffffffffffffffff"),
	}, f.svc)
	info, err := other.Introspect(ctx, issued.AccessToken)
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}
	if info.Active {
		t.Fatalf("token signed with a different key must be inactive")
	}
}
