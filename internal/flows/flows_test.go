package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/samber/oops"
)

var (
	errNotFound      = errors.New("not found")
	errDupEmail      = errors.New("dup email")
	errDupCode       = errors.New("dup code")
	errMissing       = errors.New("missing")
	errShort         = errors.New("short")
	errExists        = errors.New("exists")
	errInvalidCreds  = errors.New("invalid credentials")
	errNotVerified   = errors.New("not verified")
	errInvalidCode   = errors.New("invalid code")
	errInvalidReset  = errors.New("invalid reset")
	errUserNotFound  = errors.New("user not found")
	errUnauthorized  = errors.New("unauthorized")
	errNotReady      = errors.New("not ready")
	testStoreErrors  = StoreErrors{RecordNotFound: errNotFound, DuplicateEmail: errDupEmail, DuplicateCode: errDupCode}
	testNow          = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fixedNow         = func() time.Time { return testNow }
	testSessionToken = "signed.session.token"
)

func issueSession(userID string) (string, time.Time, error) {
	return testSessionToken, testNow.Add(7 * 24 * time.Hour), nil
}

func requireOopsCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		t.Fatalf("expected oops error, got %T: %v", err, err)
	}
	if oopsErr.Code() != code {
		t.Fatalf("expected code %s, got %v", code, oopsErr.Code())
	}
}

func baseSignupDeps() (*SignupDeps, *[]UserRecord, *[]string) {
	var created []UserRecord
	var mailed []string
	deps := &SignupDeps{
		MinPasswordLength:    8,
		VerificationTTL:      24 * time.Hour,
		CodeCollisionRetries: 3,
		Now:                  fixedNow,
		GetUserByEmail: func(context.Context, string) (UserRecord, error) {
			return UserRecord{}, errNotFound
		},
		CreateUser: func(_ context.Context, u *UserRecord) error {
			u.ID = "u1"
			created = append(created, *u)
			return nil
		},
		HashPassword:        func(p string) (string, error) { return "hashed:" + p, nil },
		NewVerificationCode: func() (string, error) { return "123456", nil },
		IssueSession:        issueSession,
		SendVerificationEmail: func(_ context.Context, to, code string) error {
			mailed = append(mailed, to+":"+code)
			return nil
		},
		Errors: SignupErrors{
			EngineNotReady:   errNotReady,
			MissingFields:    errMissing,
			PasswordTooShort: errShort,
			UserExists:       errExists,
			Store:            testStoreErrors,
		},
	}
	return deps, &created, &mailed
}

func TestRunSignupCreatesUnverifiedUser(t *testing.T) {
	deps, created, mailed := baseSignupDeps()

	out, err := RunSignup(context.Background(), SignupRequest{Email: "  A@X.com ", Password: "Passw0rd!", Name: "A"}, *deps)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if out.Token != testSessionToken {
		t.Fatalf("expected session token, got %q", out.Token)
	}
	if len(*created) != 1 {
		t.Fatalf("expected one create, got %d", len(*created))
	}
	u := (*created)[0]
	if u.Email != "a@x.com" || u.IsVerified || u.PasswordHash == "Passw0rd!" {
		t.Fatalf("unexpected record: %+v", u)
	}
	if !u.VerificationTokenExpiresAt.Equal(testNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", u.VerificationTokenExpiresAt)
	}
	if len(*mailed) != 1 || (*mailed)[0] != "a@x.com:123456" {
		t.Fatalf("expected one verification mail, got %v", *mailed)
	}
}

func TestRunSignupValidation(t *testing.T) {
	deps, created, _ := baseSignupDeps()
	cases := []struct {
		req  SignupRequest
		want error
	}{
		{SignupRequest{Password: "Passw0rd!", Name: "A"}, errMissing},
		{SignupRequest{Email: "a@x.com", Name: "A"}, errMissing},
		{SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "  "}, errMissing},
		{SignupRequest{Email: "a@x.com", Password: "short", Name: "A"}, errShort},
	}
	for i, tc := range cases {
		if _, err := RunSignup(context.Background(), tc.req, *deps); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
	if len(*created) != 0 {
		t.Fatal("validation failures must not create records")
	}
}

func TestRunSignupExistingEmail(t *testing.T) {
	deps, created, _ := baseSignupDeps()
	deps.GetUserByEmail = func(context.Context, string) (UserRecord, error) {
		return UserRecord{ID: "existing"}, nil
	}
	if _, err := RunSignup(context.Background(), SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}, *deps); !errors.Is(err, errExists) {
		t.Fatalf("expected errExists, got %v", err)
	}
	if len(*created) != 0 {
		t.Fatal("duplicate must not create")
	}
}

func TestRunSignupRaceOnUniqueIndex(t *testing.T) {
	deps, _, mailed := baseSignupDeps()
	deps.CreateUser = func(context.Context, *UserRecord) error {
		return errors.Join(errDupEmail, errors.New("E11000"))
	}
	if _, err := RunSignup(context.Background(), SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}, *deps); !errors.Is(err, errExists) {
		t.Fatalf("expected errExists, got %v", err)
	}
	if len(*mailed) != 0 {
		t.Fatal("no mail on duplicate")
	}
}

func TestRunSignupRegeneratesCollidingCode(t *testing.T) {
	deps, created, mailed := baseSignupDeps()
	codes := []string{"111111", "222222", "333333"}
	deps.NewVerificationCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	calls := 0
	deps.CreateUser = func(_ context.Context, u *UserRecord) error {
		calls++
		if calls < 3 {
			return errDupCode
		}
		u.ID = "u1"
		*created = append(*created, *u)
		return nil
	}

	if _, err := RunSignup(context.Background(), SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}, *deps); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if (*created)[0].VerificationToken != "333333" {
		t.Fatalf("expected third code, got %s", (*created)[0].VerificationToken)
	}
	if (*mailed)[0] != "a@x.com:333333" {
		t.Fatalf("mail must carry the stored code, got %s", (*mailed)[0])
	}
}

func TestRunSignupGivesUpAfterRetries(t *testing.T) {
	deps, _, _ := baseSignupDeps()
	deps.CreateUser = func(context.Context, *UserRecord) error { return errDupCode }

	_, err := RunSignup(context.Background(), SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}, *deps)
	requireOopsCode(t, err, "SIGNUP_FAILED")
}

func TestRunSignupMailFailureIsInternal(t *testing.T) {
	deps, created, _ := baseSignupDeps()
	deps.SendVerificationEmail = func(context.Context, string, string) error { return errors.New("smtp down") }

	_, err := RunSignup(context.Background(), SignupRequest{Email: "a@x.com", Password: "Passw0rd!", Name: "A"}, *deps)
	requireOopsCode(t, err, "MAIL_FAILED")
	if len(*created) != 1 {
		t.Fatal("record is persisted before the mail is attempted")
	}
}

func TestRunSignupNotReady(t *testing.T) {
	if _, err := RunSignup(context.Background(), SignupRequest{}, SignupDeps{Errors: SignupErrors{EngineNotReady: errNotReady}}); !errors.Is(err, errNotReady) {
		t.Fatalf("expected errNotReady, got %v", err)
	}
}

func baseLoginDeps(user UserRecord) (*LoginDeps, *int) {
	dummyCalls := 0
	deps := &LoginDeps{
		DummyHash: "dummy",
		Now:       fixedNow,
		GetUserByEmail: func(_ context.Context, email string) (UserRecord, error) {
			if email != user.Email {
				return UserRecord{}, errNotFound
			}
			return user, nil
		},
		UpdateLastLogin: func(context.Context, string, time.Time) error { return nil },
		VerifyPassword: func(p, digest string) (bool, error) {
			if digest == "dummy" {
				dummyCalls++
				return false, nil
			}
			return "hashed:"+p == digest, nil
		},
		IssueSession: issueSession,
		Errors: LoginErrors{
			EngineNotReady:     errNotReady,
			MissingFields:      errMissing,
			InvalidCredentials: errInvalidCreds,
			EmailNotVerified:   errNotVerified,
			Store:              testStoreErrors,
		},
	}
	return deps, &dummyCalls
}

func TestRunLoginSuccessUpdatesLastLogin(t *testing.T) {
	deps, _ := baseLoginDeps(UserRecord{ID: "u1", Email: "a@x.com", PasswordHash: "hashed:Passw0rd!", IsVerified: true})
	var updated time.Time
	deps.UpdateLastLogin = func(_ context.Context, id string, at time.Time) error {
		updated = at
		return nil
	}

	out, err := RunLogin(context.Background(), LoginRequest{Email: "A@x.com", Password: "Passw0rd!"}, *deps)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !updated.Equal(testNow) || !out.User.LastLogin.Equal(testNow) {
		t.Fatalf("expected lastLogin %s, got %s / %s", testNow, updated, out.User.LastLogin)
	}
}

func TestRunLoginFailsIdenticallyForUnknownEmailAndWrongPassword(t *testing.T) {
	deps, dummyCalls := baseLoginDeps(UserRecord{ID: "u1", Email: "a@x.com", PasswordHash: "hashed:Passw0rd!", IsVerified: true})

	_, errUnknown := RunLogin(context.Background(), LoginRequest{Email: "b@x.com", Password: "Passw0rd!"}, *deps)
	_, errWrong := RunLogin(context.Background(), LoginRequest{Email: "a@x.com", Password: "nope-nope"}, *deps)
	if errUnknown != errInvalidCreds || errWrong != errInvalidCreds {
		t.Fatalf("expected identical errors, got %v / %v", errUnknown, errWrong)
	}
	if *dummyCalls != 1 {
		t.Fatalf("expected one dummy verification, got %d", *dummyCalls)
	}
}

func TestRunLoginUnverifiedIsForbidden(t *testing.T) {
	deps, _ := baseLoginDeps(UserRecord{ID: "u1", Email: "a@x.com", PasswordHash: "hashed:Passw0rd!"})
	if _, err := RunLogin(context.Background(), LoginRequest{Email: "a@x.com", Password: "Passw0rd!"}, *deps); err != errNotVerified {
		t.Fatalf("expected errNotVerified, got %v", err)
	}
}

func TestRunLoginStoreFailureIsInternal(t *testing.T) {
	deps, _ := baseLoginDeps(UserRecord{})
	deps.GetUserByEmail = func(context.Context, string) (UserRecord, error) { return UserRecord{}, errors.New("conn reset") }
	_, err := RunLogin(context.Background(), LoginRequest{Email: "a@x.com", Password: "Passw0rd!"}, *deps)
	requireOopsCode(t, err, "LOGIN_FAILED")
}

func TestRunVerifyEmail(t *testing.T) {
	var welcomed []string
	deps := VerifyEmailDeps{
		Now: fixedNow,
		ConsumeVerificationToken: func(_ context.Context, code string, now time.Time) (UserRecord, error) {
			if code != "123456" || !now.Equal(testNow) {
				return UserRecord{}, errNotFound
			}
			return UserRecord{ID: "u1", Email: "a@x.com", Name: "A", IsVerified: true}, nil
		},
		IssueSession: issueSession,
		SendWelcomeEmail: func(_ context.Context, to, name string) error {
			welcomed = append(welcomed, to+":"+name)
			return nil
		},
		Errors: VerifyEmailErrors{EngineNotReady: errNotReady, InvalidCode: errInvalidCode, Store: testStoreErrors},
	}

	out, err := RunVerifyEmail(context.Background(), " 123456 ", deps)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.User.IsVerified || out.Token == "" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(welcomed) != 1 || welcomed[0] != "a@x.com:A" {
		t.Fatalf("expected welcome mail, got %v", welcomed)
	}

	for _, code := range []string{"", "999999"} {
		if _, err := RunVerifyEmail(context.Background(), code, deps); err != errInvalidCode {
			t.Fatalf("code %q: expected errInvalidCode, got %v", code, err)
		}
	}
}

func TestRunForgotPassword(t *testing.T) {
	var stored, mailed string
	deps := ForgotPasswordDeps{
		TokenTTL: time.Hour,
		Now:      fixedNow,
		GetUserByEmail: func(_ context.Context, email string) (UserRecord, error) {
			if email == "a@x.com" {
				return UserRecord{ID: "u1", Email: email}, nil
			}
			return UserRecord{}, errNotFound
		},
		SetResetToken: func(_ context.Context, id, token string, exp time.Time) error {
			if !exp.Equal(testNow.Add(time.Hour)) {
				t.Fatalf("unexpected expiry %s", exp)
			}
			stored = token
			return nil
		},
		NewResetToken: func() (string, error) { return "abcdef", nil },
		ResetURL:      func(token string) string { return "http://client/reset-password/" + token },
		SendPasswordResetEmail: func(_ context.Context, to, url string) error {
			mailed = url
			return nil
		},
		Errors: ForgotPasswordErrors{EngineNotReady: errNotReady, MissingFields: errMissing, UserNotFound: errUserNotFound, Store: testStoreErrors},
	}

	if err := RunForgotPassword(context.Background(), "A@x.com", deps); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if stored != "abcdef" || !strings.HasSuffix(mailed, "/reset-password/abcdef") {
		t.Fatalf("unexpected token/link %q %q", stored, mailed)
	}
	if err := RunForgotPassword(context.Background(), "nobody@x.com", deps); err != errUserNotFound {
		t.Fatalf("expected errUserNotFound, got %v", err)
	}
	if err := RunForgotPassword(context.Background(), " ", deps); err != errMissing {
		t.Fatalf("expected errMissing, got %v", err)
	}
}

func TestRunResetPassword(t *testing.T) {
	consumed := 0
	deps := ResetPasswordDeps{
		MinPasswordLength: 8,
		Now:               fixedNow,
		HashPassword:      func(p string) (string, error) { return "hashed:" + p, nil },
		ConsumeResetToken: func(_ context.Context, token, hash string, _ time.Time) (UserRecord, error) {
			if token != "good" || consumed > 0 {
				return UserRecord{}, errNotFound
			}
			if hash != "hashed:NewPassw0rd" {
				t.Fatalf("unexpected hash %q", hash)
			}
			consumed++
			return UserRecord{ID: "u1", Email: "a@x.com"}, nil
		},
		Errors: ResetPasswordErrors{EngineNotReady: errNotReady, PasswordTooShort: errShort, InvalidResetToken: errInvalidReset, Store: testStoreErrors},
	}

	if err := RunResetPassword(context.Background(), "good", "short", deps); err != errShort {
		t.Fatalf("expected errShort, got %v", err)
	}
	if consumed != 0 {
		t.Fatal("short password must not consume the token")
	}
	if err := RunResetPassword(context.Background(), "good", "NewPassw0rd", deps); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := RunResetPassword(context.Background(), "good", "NewPassw0rd", deps); err != errInvalidReset {
		t.Fatalf("second use must fail like an unknown token, got %v", err)
	}
}

func TestRunCheckAuth(t *testing.T) {
	deps := CheckAuthDeps{
		GetUserByID: func(_ context.Context, id string) (UserRecord, error) {
			if id == "u1" {
				return UserRecord{ID: "u1"}, nil
			}
			return UserRecord{}, errNotFound
		},
		Errors: CheckAuthErrors{EngineNotReady: errNotReady, Unauthorized: errUnauthorized, Store: testStoreErrors},
	}
	if u, err := RunCheckAuth(context.Background(), "u1", deps); err != nil || u.ID != "u1" {
		t.Fatalf("unexpected result %+v %v", u, err)
	}
	for _, id := range []string{"", "deleted"} {
		if _, err := RunCheckAuth(context.Background(), id, deps); err != errUnauthorized {
			t.Fatalf("id %q: expected errUnauthorized, got %v", id, err)
		}
	}
}

func TestRunSweep(t *testing.T) {
	var added uint64
	var events []string
	deps := SweepDeps{
		Now: fixedNow,
		DeleteUnverifiedExpired: func(_ context.Context, now time.Time) (int64, error) {
			if !now.Equal(testNow) {
				t.Fatalf("unexpected now %s", now)
			}
			return 4, nil
		},
		MetricAdd: func(_ int, n uint64) { added += n },
		EmitAudit: func(_ context.Context, event string, _ bool, _, _ string, _ error, md func() map[string]string) {
			events = append(events, event+":"+md()["deleted"])
		},
		Events: SweepEvents{Swept: "accounts_swept"},
	}

	out, err := RunSweep(context.Background(), deps)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if out.Deleted != 4 || added != 4 {
		t.Fatalf("expected 4 deleted, got %d (metric %d)", out.Deleted, added)
	}
	if len(events) != 1 || events[0] != "accounts_swept:4" {
		t.Fatalf("unexpected events %v", events)
	}

	deps.DeleteUnverifiedExpired = func(context.Context, time.Time) (int64, error) { return 0, errors.New("db down") }
	_, err = RunSweep(context.Background(), deps)
	requireOopsCode(t, err, "SWEEP_FAILED")
}
