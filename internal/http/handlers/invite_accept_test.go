package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/bridgepoint-app/bridgepoint/internal/http/views"
	"github.com/bridgepoint-app/bridgepoint/internal/invite"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

// fakeSetupTokenStore serves the invite-accept paths; every other Store
// method panics through the embedded nil interface.
type fakeSetupTokenStore struct {
	Store

	token   store.PasswordSetupToken
	account store.Account

	passwordUpdates int
	tokensMarked    int
}

func (f *fakeSetupTokenStore) GetPasswordSetupTokenByHash(_ context.Context, tokenHash string) (store.PasswordSetupToken, error) {
	if tokenHash != f.token.TokenHash {
		return store.PasswordSetupToken{}, store.ErrNotFound
	}
	return f.token, nil
}

func (f *fakeSetupTokenStore) GetAccount(_ context.Context, id int64) (store.Account, error) {
	if id != f.account.ID {
		return store.Account{}, store.ErrNotFound
	}
	return f.account, nil
}

func (f *fakeSetupTokenStore) UpdateAccountPasswordHash(context.Context, int64, string) error {
	f.passwordUpdates++
	return nil
}

func (f *fakeSetupTokenStore) MarkPasswordSetupTokenUsed(context.Context, uuid.UUID) error {
	f.tokensMarked++
	return nil
}

func newInviteAcceptHandlers(t *testing.T, st Store) *Handlers {
	t.Helper()
	renderer, err := views.NewRenderer(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &Handlers{Store: st, Views: renderer}
}

func newFormContext(target string, form url.Values) (*echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func setupTokenFixture(expiresAt time.Time, usedAt *time.Time) (string, *fakeSetupTokenStore) {
	raw := "raw-setup-token"
	return raw, &fakeSetupTokenStore{
		token: store.PasswordSetupToken{
			ID:        uuid.New(),
			AccountID: 7,
			TokenHash: invite.HashSetupToken(raw),
			ExpiresAt: expiresAt,
			UsedAt:    usedAt,
		},
		account: store.Account{ID: 7, Email: "invitee@example.org", IsActive: true},
	}
}

func TestInviteAcceptGetExpiredTokenIsGeneric(t *testing.T) {
	raw, fake := setupTokenFixture(time.Now().Add(-time.Minute), nil)
	h := newInviteAcceptHandlers(t, fake)

	c, rec := newTestContext(http.MethodGet, "/invite/accept?token="+raw)
	if err := h.HandleInviteAcceptGet(c); err != nil {
		t.Fatal(err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "invalid or has expired") {
		t.Fatalf("expected the generic invalid-link page:\n%s", body)
	}
	if strings.Contains(body, "invitee@example.org") {
		t.Fatalf("expired token must not reveal the account email:\n%s", body)
	}
}

func TestInviteAcceptPostExpiredTokenDoesNotSetPassword(t *testing.T) {
	raw, fake := setupTokenFixture(time.Now().Add(-time.Minute), nil)
	h := newInviteAcceptHandlers(t, fake)

	c, rec := newFormContext("/invite/accept", url.Values{
		"token":            {raw},
		"password":         {"longenough"},
		"confirm_password": {"longenough"},
	})
	if err := h.HandleInviteAcceptPost(c); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(rec.Body.String(), "invalid or has expired") {
		t.Fatalf("expected the generic invalid-link page:\n%s", rec.Body.String())
	}
	if fake.passwordUpdates != 0 {
		t.Fatalf("password updated %d times, want 0", fake.passwordUpdates)
	}
	if fake.tokensMarked != 0 {
		t.Fatalf("token marked used %d times, want 0", fake.tokensMarked)
	}
}

func TestInviteAcceptPostUsedTokenDoesNotSetPassword(t *testing.T) {
	used := time.Now().Add(-time.Hour)
	raw, fake := setupTokenFixture(time.Now().Add(time.Hour), &used)
	h := newInviteAcceptHandlers(t, fake)

	c, rec := newFormContext("/invite/accept", url.Values{
		"token":            {raw},
		"password":         {"longenough"},
		"confirm_password": {"longenough"},
	})
	if err := h.HandleInviteAcceptPost(c); err != nil {
		t.Fatal(err)
	}

	// A used token reads exactly like an expired one.
	if !strings.Contains(rec.Body.String(), "invalid or has expired") {
		t.Fatalf("expected the generic invalid-link page:\n%s", rec.Body.String())
	}
	if fake.passwordUpdates != 0 {
		t.Fatalf("password updated %d times, want 0", fake.passwordUpdates)
	}
}

func TestInviteAcceptGetUnknownTokenIsGeneric(t *testing.T) {
	_, fake := setupTokenFixture(time.Now().Add(time.Hour), nil)
	h := newInviteAcceptHandlers(t, fake)

	c, rec := newTestContext(http.MethodGet, "/invite/accept?token=not-the-token")
	if err := h.HandleInviteAcceptGet(c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), "invalid or has expired") {
		t.Fatalf("expected the generic invalid-link page:\n%s", rec.Body.String())
	}
}

func TestInviteAcceptGetValidTokenShowsForm(t *testing.T) {
	raw, fake := setupTokenFixture(time.Now().Add(time.Hour), nil)
	h := newInviteAcceptHandlers(t, fake)

	c, rec := newTestContext(http.MethodGet, "/invite/accept?token="+raw)
	if err := h.HandleInviteAcceptGet(c); err != nil {
		t.Fatal(err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "invitee@example.org") {
		t.Fatalf("expected the password form for the invitee:\n%s", body)
	}
	if strings.Contains(body, "invalid or has expired") {
		t.Fatalf("valid token rendered the invalid-link page:\n%s", body)
	}
}
