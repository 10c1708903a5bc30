package invite

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/mail"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]store.Account
	profiles map[store.ProfileKind]map[string]store.Profile // keyed by email
	tokens   []store.PasswordSetupToken
	nextID   int64

	claimErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]store.Account),
		profiles: map[store.ProfileKind]map[string]store.Profile{
			store.KindParticipant: {},
			store.KindMentor:      {},
		},
	}
}

func (f *fakeStore) GetAccountByEmail(_ context.Context, email string) (store.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[email]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, p store.CreateAccountParams) (store.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[p.Email]; ok {
		return store.Account{}, errors.New("duplicate email")
	}
	f.nextID++
	a := store.Account{ID: f.nextID, Email: p.Email, PasswordHash: p.PasswordHash, Role: p.Role, IsActive: p.IsActive}
	f.accounts[p.Email] = a
	return a, nil
}

func (f *fakeStore) GetProfileByEmail(_ context.Context, kind store.ProfileKind, email string) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[kind][email]
	if !ok {
		return store.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetProfileByInviteCode(_ context.Context, kind store.ProfileKind, code string) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles[kind] {
		if p.InviteCode == code {
			return p, nil
		}
	}
	return store.Profile{}, store.ErrNotFound
}

func (f *fakeStore) UpsertInviteProfile(_ context.Context, params store.UpsertInviteProfileParams) (store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[params.Kind][params.Email]
	if !ok {
		p = store.Profile{ID: uuid.New(), Kind: params.Kind, Email: params.Email}
	}
	if params.Name != "" {
		p.Name = params.Name
	}
	p.InviteCode = params.InviteCode
	f.profiles[params.Kind][params.Email] = p
	return p, nil
}

func (f *fakeStore) ClaimProfile(_ context.Context, params store.ClaimProfileParams) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, p := range f.profiles[params.Kind] {
		if p.ID != params.ID {
			continue
		}
		if p.AccountID != nil && *p.AccountID != params.AccountID {
			return store.ErrNotFound
		}
		id := params.AccountID
		p.AccountID = &id
		p.AuthEmail = params.AuthEmail
		f.profiles[params.Kind][email] = p
		return nil
	}
	return store.ErrNotFound
}

func (f *fakeStore) SetProfileInviteCode(_ context.Context, kind store.ProfileKind, id uuid.UUID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, p := range f.profiles[kind] {
		if p.ID == id {
			p.InviteCode = code
			f.profiles[kind][email] = p
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ListProfilesMissingInviteCode(_ context.Context, kind store.ProfileKind) ([]store.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Profile
	for _, p := range f.profiles[kind] {
		if p.InviteCode == "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePasswordSetupToken(_ context.Context, p store.CreatePasswordSetupTokenParams) (store.PasswordSetupToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := store.PasswordSetupToken{ID: uuid.New(), AccountID: p.AccountID, TokenHash: p.TokenHash, ExpiresAt: p.ExpiresAt}
	f.tokens = append(f.tokens, tok)
	return tok, nil
}

type recordingMailer struct {
	mu      sync.Mutex
	sent    []mail.Invite
	failFor string
}

func (m *recordingMailer) SendInvite(_ context.Context, inv mail.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor != "" && inv.To == m.failFor {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, inv)
	return nil
}

func newTestService(st *fakeStore, m *recordingMailer) *Service {
	return NewService(st, m, Options{
		BaseURL:  "https://portal.example.org",
		TokenTTL: time.Hour,
		Workers:  2,
	})
}

func TestIssue(t *testing.T) {
	st := newFakeStore()
	m := &recordingMailer{}
	svc := newTestService(st, m)

	issued, err := svc.Issue(context.Background(), IssueParams{
		Email: " New.Mentor@Example.org ",
		Name:  "New Mentor",
		Role:  auth.RoleMentor,
	})
	if err != nil {
		t.Fatal(err)
	}
	if issued.Email != "new.mentor@example.org" {
		t.Fatalf("email not normalized: %q", issued.Email)
	}

	account, ok := st.accounts["new.mentor@example.org"]
	if !ok {
		t.Fatal("account was not created")
	}
	if account.Role != "mentor" || !account.IsActive {
		t.Fatalf("account = %+v", account)
	}

	profile, ok := st.profiles[store.KindMentor]["new.mentor@example.org"]
	if !ok {
		t.Fatal("mentor profile was not created")
	}
	if profile.AccountID != nil {
		t.Fatal("issuing an invite must not claim the profile")
	}
	if profile.InviteCode != issued.InviteCode {
		t.Fatalf("profile code %q, issued code %q", profile.InviteCode, issued.InviteCode)
	}

	if len(st.tokens) != 1 {
		t.Fatalf("got %d setup tokens, want 1", len(st.tokens))
	}
	tok := st.tokens[0]
	if tok.AccountID != account.ID {
		t.Fatalf("token for account %d, want %d", tok.AccountID, account.ID)
	}
	if strings.Contains(issued.SetupLink, tok.TokenHash) {
		t.Fatal("setup link must carry the raw token, not the stored hash")
	}
	raw := strings.TrimPrefix(issued.SetupLink, "https://portal.example.org/invite/accept?token=")
	if HashSetupToken(raw) != tok.TokenHash {
		t.Fatal("stored hash does not match the token in the link")
	}

	if len(m.sent) != 1 {
		t.Fatalf("got %d mails, want 1", len(m.sent))
	}
	if m.sent[0].Code != issued.InviteCode || m.sent[0].Link != issued.SetupLink {
		t.Fatalf("mail = %+v", m.sent[0])
	}
}

func TestIssueReusesAccount(t *testing.T) {
	st := newFakeStore()
	m := &recordingMailer{}
	svc := newTestService(st, m)

	first, err := svc.Issue(context.Background(), IssueParams{Email: "p@example.org", Role: auth.RoleParticipant})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Issue(context.Background(), IssueParams{Email: "p@example.org", Role: auth.RoleParticipant})
	if err != nil {
		t.Fatal(err)
	}

	if len(st.accounts) != 1 {
		t.Fatalf("got %d accounts, want 1", len(st.accounts))
	}
	if len(st.profiles[store.KindParticipant]) != 1 {
		t.Fatalf("got %d profiles, want 1", len(st.profiles[store.KindParticipant]))
	}
	if first.InviteCode == second.InviteCode {
		t.Fatal("re-issuing must rotate the invite code")
	}
	if len(st.tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(st.tokens))
	}
}

func TestIssueRejectsNonProgramRole(t *testing.T) {
	svc := newTestService(newFakeStore(), &recordingMailer{})
	if _, err := svc.Issue(context.Background(), IssueParams{Email: "a@example.org", Role: auth.RoleAdmin}); err == nil {
		t.Fatal("expected error for non-invitable role")
	}
}

func TestIssueBulk(t *testing.T) {
	st := newFakeStore()
	m := &recordingMailer{failFor: "bad@example.org"}
	svc := newTestService(st, m)

	results := svc.IssueBulk(context.Background(), []IssueParams{
		{Email: "one@example.org", Role: auth.RoleParticipant},
		{Email: "bad@example.org", Role: auth.RoleParticipant},
		{Email: "two@example.org", Role: auth.RoleMentor},
	})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if !results[0].Success || results[0].Email != "one@example.org" {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if results[1].Success || results[1].Error == "" {
		t.Fatalf("results[1] = %+v", results[1])
	}
	if !results[2].Success {
		t.Fatalf("results[2] = %+v", results[2])
	}
	if strings.Contains(results[1].Error, "smtp") {
		t.Fatalf("result error leaks internals: %q", results[1].Error)
	}
}

func seedProfile(st *fakeStore, kind store.ProfileKind, email, code string, accountID *int64) store.Profile {
	p := store.Profile{ID: uuid.New(), Kind: kind, Email: email, InviteCode: code, AccountID: accountID}
	st.profiles[kind][email] = p
	return p
}

func TestClaimByEmail(t *testing.T) {
	st := newFakeStore()
	seedProfile(st, store.KindMentor, "m@example.org", "MENTORCODE", nil)
	svc := newTestService(st, &recordingMailer{})

	res := svc.Claim(context.Background(), ClaimParams{AccountID: 42, Email: "M@Example.org"})
	if !res.Success || res.Role != auth.RoleMentor {
		t.Fatalf("res = %+v", res)
	}
	p := st.profiles[store.KindMentor]["m@example.org"]
	if p.AccountID == nil || *p.AccountID != 42 {
		t.Fatalf("profile not linked: %+v", p)
	}
	if p.AuthEmail != "m@example.org" {
		t.Fatalf("auth email = %q", p.AuthEmail)
	}
}

func TestClaimPrefersParticipantOverMentor(t *testing.T) {
	st := newFakeStore()
	seedProfile(st, store.KindParticipant, "both@example.org", "PCODE", nil)
	seedProfile(st, store.KindMentor, "both@example.org", "MCODE", nil)
	svc := newTestService(st, &recordingMailer{})

	res := svc.Claim(context.Background(), ClaimParams{AccountID: 1, Email: "both@example.org"})
	if !res.Success || res.Role != auth.RoleParticipant {
		t.Fatalf("res = %+v", res)
	}
}

func TestClaimEmailBeatsCode(t *testing.T) {
	st := newFakeStore()
	seedProfile(st, store.KindParticipant, "me@example.org", "MYCODE", nil)
	seedProfile(st, store.KindMentor, "other@example.org", "OTHERCODE", nil)
	svc := newTestService(st, &recordingMailer{})

	// The email match wins even when the submitted code points elsewhere.
	res := svc.Claim(context.Background(), ClaimParams{AccountID: 1, Email: "me@example.org", InviteCode: "OTHERCODE"})
	if !res.Success || res.Role != auth.RoleParticipant {
		t.Fatalf("res = %+v", res)
	}
}

func TestClaimByCode(t *testing.T) {
	st := newFakeStore()
	seedProfile(st, store.KindMentor, "listed@example.org", "MCODE12345", nil)
	svc := newTestService(st, &recordingMailer{})

	// Signed in under a different address than the profile's listed email.
	res := svc.Claim(context.Background(), ClaimParams{AccountID: 7, Email: "personal@example.org", InviteCode: "MCODE12345"})
	if !res.Success || res.Role != auth.RoleMentor {
		t.Fatalf("res = %+v", res)
	}
	p := st.profiles[store.KindMentor]["listed@example.org"]
	if p.AuthEmail != "personal@example.org" {
		t.Fatalf("auth email = %q", p.AuthEmail)
	}
}

func TestClaimConflict(t *testing.T) {
	st := newFakeStore()
	owner := int64(5)
	seedProfile(st, store.KindParticipant, "taken@example.org", "TCODE", &owner)
	svc := newTestService(st, &recordingMailer{})

	res := svc.Claim(context.Background(), ClaimParams{AccountID: 6, Email: "taken@example.org"})
	if res.Success || res.Error != msgAlreadyClaimed {
		t.Fatalf("res = %+v", res)
	}
}

func TestClaimSameAccountIsIdempotent(t *testing.T) {
	st := newFakeStore()
	owner := int64(5)
	seedProfile(st, store.KindParticipant, "mine@example.org", "MCODE", &owner)
	svc := newTestService(st, &recordingMailer{})

	res := svc.Claim(context.Background(), ClaimParams{AccountID: 5, Email: "mine@example.org"})
	if !res.Success || res.Role != auth.RoleParticipant {
		t.Fatalf("res = %+v", res)
	}
}

func TestClaimNoMatch(t *testing.T) {
	svc := newTestService(newFakeStore(), &recordingMailer{})
	res := svc.Claim(context.Background(), ClaimParams{AccountID: 1, Email: "nobody@example.org", InviteCode: "NOPE"})
	if res.Success || res.Error != msgNoProfile {
		t.Fatalf("res = %+v", res)
	}
}

func TestClaimWriteRaceReportsConflict(t *testing.T) {
	st := newFakeStore()
	seedProfile(st, store.KindParticipant, "raced@example.org", "RCODE", nil)
	st.claimErr = store.ErrNotFound
	svc := newTestService(st, &recordingMailer{})

	res := svc.Claim(context.Background(), ClaimParams{AccountID: 9, Email: "raced@example.org"})
	if res.Success || res.Error != msgAlreadyClaimed {
		t.Fatalf("res = %+v", res)
	}
}

func TestBackfillCodes(t *testing.T) {
	st := newFakeStore()
	seedProfile(st, store.KindParticipant, "old@example.org", "", nil)
	seedProfile(st, store.KindParticipant, "coded@example.org", "HASCODE123", nil)
	seedProfile(st, store.KindMentor, "oldm@example.org", "", nil)
	svc := newTestService(st, &recordingMailer{})

	summary, err := svc.BackfillCodes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Updated != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if st.profiles[store.KindParticipant]["old@example.org"].InviteCode == "" {
		t.Fatal("participant code not assigned")
	}
	if st.profiles[store.KindParticipant]["coded@example.org"].InviteCode != "HASCODE123" {
		t.Fatal("existing code must be untouched")
	}
	if st.profiles[store.KindMentor]["oldm@example.org"].InviteCode == "" {
		t.Fatal("mentor code not assigned")
	}
}
