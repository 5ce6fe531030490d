package impl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/otp"

	"github.com/google/uuid"
)

func newTestMFAService() (*MFAServiceImpl, *memCodeStore, *recordingAudit, *stubGateway, *stubGateway) {
	codes := newMemCodeStore()
	audit := &recordingAudit{}
	sms := &stubGateway{}
	email := &stubGateway{}
	svc := &MFAServiceImpl{
		configs:  newMemConfigStore(),
		codes:    codes,
		recovery: newMemRecoveryStore(),
		audit:    audit,
		sms:      sms,
		email:    email,
		opts: MFAConfigOpts{
			Issuer:          "Acme",
			SMSCodeTTL:      5 * time.Minute,
			EmailCodeTTL:    10 * time.Minute,
			CodeMaxAttempts: 3,
			VerifyWindow:    otp.DefaultWindow,
		},
		now:      time.Now,
		dispatch: func(fn func()) { fn() },
	}
	return svc, codes, audit, sms, email
}

func TestEnrollTOTPThenVerify(t *testing.T) {
	svc, _, _, _, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	resp, err := svc.Enroll(ctx, userID, dto.EnrollRequest{Method: "totp", AccountName: "alice@acme.com"}, "203.0.113.9", "unit-test")
	if err != nil {
		t.Fatalf("enroll returned error: %v", err)
	}
	if len(resp.Secret) != 32 {
		t.Fatalf("expected 32-char secret, got %d chars", len(resp.Secret))
	}
	if !strings.HasPrefix(resp.ProvisioningURI, "otpauth://totp/Acme:alice%40acme.com?") {
		t.Fatalf("unexpected provisioning URI: %s", resp.ProvisioningURI)
	}
	if !strings.Contains(resp.ProvisioningURI, "issuer=Acme") {
		t.Fatalf("provisioning URI missing issuer: %s", resp.ProvisioningURI)
	}

	code, err := otp.CurrentCode(resp.Secret)
	if err != nil {
		t.Fatalf("current code: %v", err)
	}
	ok, err := svc.VerifyTOTP(ctx, userID, code, "203.0.113.9", "unit-test")
	if err != nil {
		t.Fatalf("verify returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected current code to verify")
	}

	ok, err = svc.VerifyTOTP(ctx, userID, "000000", "203.0.113.9", "unit-test")
	if err != nil {
		t.Fatalf("verify returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong code to fail")
	}
}

func TestVerifyTOTPWithoutEnrollment(t *testing.T) {
	svc, _, _, _, _ := newTestMFAService()

	ok, err := svc.VerifyTOTP(context.Background(), uuid.New(), "123456", "", "")
	if err != nil {
		t.Fatalf("expected no error for unenrolled user, got %v", err)
	}
	if ok {
		t.Fatalf("unenrolled user must never verify")
	}
}

func TestEnrollValidations(t *testing.T) {
	svc, _, _, _, _ := newTestMFAService()
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.EnrollRequest
		want error
	}{
		{name: "totp without account name", req: dto.EnrollRequest{Method: "totp"}, want: ErrMissingAccountName},
		{name: "sms without phone", req: dto.EnrollRequest{Method: "sms"}, want: ErrMissingRecipient},
		{name: "email without address", req: dto.EnrollRequest{Method: "email"}, want: ErrMissingRecipient},
		{name: "unknown method", req: dto.EnrollRequest{Method: "carrier-pigeon"}, want: ErrUnknownMethod},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Enroll(ctx, uuid.New(), tc.req, "", ""); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRotateTOTPSecretInvalidatesOldSecret(t *testing.T) {
	svc, _, _, _, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	enrolled, err := svc.Enroll(ctx, userID, dto.EnrollRequest{Method: "totp", AccountName: "bob@acme.com"}, "", "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	oldSecret := enrolled.Secret

	rotated, err := svc.RotateTOTPSecret(ctx, uuid.MustParse(enrolled.ConfigID))
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.Secret == oldSecret {
		t.Fatalf("rotation must produce a fresh secret")
	}

	oldCode, err := otp.CurrentCode(oldSecret)
	if err != nil {
		t.Fatalf("current code: %v", err)
	}
	if ok, _ := svc.VerifyTOTP(ctx, userID, oldCode, "", ""); ok {
		t.Fatalf("old secret must stop verifying after rotation")
	}
	newCode, err := otp.CurrentCode(rotated.Secret)
	if err != nil {
		t.Fatalf("current code: %v", err)
	}
	if ok, _ := svc.VerifyTOTP(ctx, userID, newCode, "", ""); !ok {
		t.Fatalf("new secret must verify after rotation")
	}
}

func TestRotateRejectsNonTOTPConfig(t *testing.T) {
	svc, _, _, _, _ := newTestMFAService()
	ctx := context.Background()

	enrolled, err := svc.Enroll(ctx, uuid.New(), dto.EnrollRequest{Method: "sms", PhoneNumber: "+15550100"}, "", "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := svc.RotateTOTPSecret(ctx, uuid.MustParse(enrolled.ConfigID)); !errors.Is(err, ErrNotTOTP) {
		t.Fatalf("expected ErrNotTOTP, got %v", err)
	}
}

func TestIssueCodeDeliversAndVerifies(t *testing.T) {
	svc, _, _, sms, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	resp, err := svc.IssueCode(ctx, userID, domain.MethodSMS, "+15550100", "203.0.113.9", "unit-test")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if resp.ExpiresIn != 300 {
		t.Fatalf("expected 300s ttl for sms, got %d", resp.ExpiresIn)
	}
	recipient, code, ok := sms.last()
	if !ok {
		t.Fatalf("gateway never invoked")
	}
	if recipient != "+15550100" || len(code) != 6 {
		t.Fatalf("unexpected delivery: to=%q code=%q", recipient, code)
	}

	result, err := svc.VerifyCode(ctx, userID, domain.MethodSMS, "+15550100", code, "", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result != domain.VerifyValid {
		t.Fatalf("expected valid, got %s", result)
	}

	// single use: the same code never verifies twice
	result, err = svc.VerifyCode(ctx, userID, domain.MethodSMS, "+15550100", code, "", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result != domain.VerifyInvalid {
		t.Fatalf("expected invalid after consumption, got %s", result)
	}
}

func TestVerifyCodeAttemptCap(t *testing.T) {
	svc, _, _, _, email := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.IssueCode(ctx, userID, domain.MethodEmail, "carol@acme.com", "", ""); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, code, _ := email.last()

	want := []domain.VerifyResult{domain.VerifyInvalid, domain.VerifyInvalid, domain.VerifyTooManyAttempts}
	for i, expected := range want {
		result, err := svc.VerifyCode(ctx, userID, domain.MethodEmail, "carol@acme.com", "999999", "", "")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if result != expected {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, expected, result)
		}
	}

	// the correct code is dead once the cap was breached
	result, err := svc.VerifyCode(ctx, userID, domain.MethodEmail, "carol@acme.com", code, "", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result != domain.VerifyInvalid {
		t.Fatalf("expected invalid after cap breach, got %s", result)
	}
}

func TestVerifyCodeExpiry(t *testing.T) {
	svc, _, _, sms, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt
	svc.now = func() time.Time { return clock }

	if _, err := svc.IssueCode(ctx, userID, domain.MethodSMS, "+15550100", "", ""); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, code, _ := sms.last()

	clock = issuedAt.Add(5*time.Minute + time.Second)
	result, err := svc.VerifyCode(ctx, userID, domain.MethodSMS, "+15550100", code, "", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result != domain.VerifyExpired {
		t.Fatalf("expected expired, got %s", result)
	}

	// expired record is purged, not retried
	result, err = svc.VerifyCode(ctx, userID, domain.MethodSMS, "+15550100", code, "", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result != domain.VerifyInvalid {
		t.Fatalf("expected invalid after purge, got %s", result)
	}
}

func TestReissueSupersedesOutstandingCode(t *testing.T) {
	svc, _, _, sms, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.IssueCode(ctx, userID, domain.MethodSMS, "+15550100", "", ""); err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, first, _ := sms.last()
	if _, err := svc.IssueCode(ctx, userID, domain.MethodSMS, "+15550100", "", ""); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	_, second, _ := sms.last()

	if first != second {
		if result, _ := svc.VerifyCode(ctx, userID, domain.MethodSMS, "+15550100", first, "", ""); result != domain.VerifyInvalid {
			t.Fatalf("superseded code must not verify, got %s", result)
		}
	}
	result, err := svc.VerifyCode(ctx, userID, domain.MethodSMS, "+15550100", second, "", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result != domain.VerifyValid {
		t.Fatalf("latest code must verify, got %s", result)
	}
}

func TestIssueCodeValidations(t *testing.T) {
	svc, _, _, _, _ := newTestMFAService()
	ctx := context.Background()

	if _, err := svc.IssueCode(ctx, uuid.New(), domain.MethodSMS, "", "", ""); !errors.Is(err, ErrMissingRecipient) {
		t.Fatalf("expected ErrMissingRecipient, got %v", err)
	}
	if _, err := svc.IssueCode(ctx, uuid.New(), domain.MethodTOTP, "+15550100", "", ""); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod for totp channel, got %v", err)
	}
}

func TestRecoveryCodesSingleUse(t *testing.T) {
	svc, _, _, _, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	codes, err := svc.GenerateRecoveryCodes(ctx, userID, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(codes) != 8 {
		t.Fatalf("expected 8 codes by default, got %d", len(codes))
	}
	for _, c := range codes {
		if len(c) != 8 {
			t.Fatalf("expected 8-char recovery code, got %q", c)
		}
	}

	ok, err := svc.UseRecoveryCode(ctx, userID, codes[2], "", "")
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if !ok {
		t.Fatalf("fresh recovery code must be accepted")
	}

	ok, err = svc.UseRecoveryCode(ctx, userID, codes[2], "", "")
	if err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if ok {
		t.Fatalf("recovery codes are single use")
	}

	// the remaining codes stay valid
	if ok, _ := svc.UseRecoveryCode(ctx, userID, codes[5], "", ""); !ok {
		t.Fatalf("unused recovery code must still be accepted")
	}
}

func TestDisableStopsVerification(t *testing.T) {
	svc, _, audit, _, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	enrolled, err := svc.Enroll(ctx, userID, dto.EnrollRequest{Method: "totp", AccountName: "dave@acme.com"}, "", "")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := svc.Disable(ctx, uuid.MustParse(enrolled.ConfigID)); err != nil {
		t.Fatalf("disable: %v", err)
	}

	code, _ := otp.CurrentCode(enrolled.Secret)
	if ok, _ := svc.VerifyTOTP(ctx, userID, code, "", ""); ok {
		t.Fatalf("disabled configuration must not verify")
	}

	configs, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(configs) != 1 || configs[0].Enabled {
		t.Fatalf("disabling keeps the row, disabled: %+v", configs)
	}

	if len(audit.byType(domain.EventSuspiciousActivity)) == 0 {
		t.Fatalf("expected audit trail for lifecycle changes")
	}
}

func TestVerifyCodeRecordsFailureEvents(t *testing.T) {
	svc, _, audit, _, _ := newTestMFAService()
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.IssueCode(ctx, userID, domain.MethodSMS, "+15550100", "198.51.100.7", "unit-test"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, userID, domain.MethodSMS, "+15550100", "000000", "198.51.100.7", "unit-test"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	failures := audit.byType(domain.EventMFAFailure)
	if len(failures) != 1 {
		t.Fatalf("expected one mfa_failure event, got %d", len(failures))
	}
	if failures[0].IP != "198.51.100.7" || failures[0].LoginMethod != "sms" {
		t.Fatalf("unexpected failure event: %+v", failures[0])
	}
}
