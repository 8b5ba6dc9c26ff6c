package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/classof27/rollcall/schoology"
	"github.com/classof27/rollcall/syncer"
	"github.com/classof27/rollcall/testutil"
	"github.com/classof27/rollcall/tokenstore"
)

const cohortID = "7410290916"

func newController(t *testing.T) (*Controller, *testutil.MockSchoologyServer, *testutil.FakePlatform) {
	t.Helper()
	mock := testutil.NewMockSchoologyServer(t)
	fake := testutil.NewFakePlatform()
	c := &Controller{
		Store: tokenstore.New(),
		Schoology: &schoology.Client{
			ConsumerKey:    "ck",
			ConsumerSecret: "cs",
			BaseURL:        mock.URL,
			Domain:         "test.schoology.com",
		},
		Sync:            &syncer.Synchronizer{Platform: fake},
		CallbackURL:     "https://example.com/callback",
		CohortSectionID: cohortID,
	}
	return c, mock, fake
}

func TestBeginIssuesToken(t *testing.T) {
	c, mock, _ := newController(t)
	mock.MockRequestToken("req-tok", "req-sec")

	authURL, expiresAt, err := c.Begin(context.Background(), "user-1", "guild-1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if !strings.Contains(authURL, "test.schoology.com/oauth/authorize") {
		t.Errorf("authorize URL = %q", authURL)
	}
	if !strings.Contains(authURL, "oauth_token=req-tok") {
		t.Errorf("authorize URL missing token: %q", authURL)
	}
	if remaining := time.Until(expiresAt); remaining <= 9*time.Minute || remaining > 10*time.Minute {
		t.Errorf("expiry %v not ~10m out", remaining)
	}
	if c.Store.Len() != 1 {
		t.Errorf("Store.Len() = %d, want 1", c.Store.Len())
	}
}

func TestBeginUpstreamFailure(t *testing.T) {
	c, _, _ := newController(t) // no request_token handler registered
	if _, _, err := c.Begin(context.Background(), "user-1", "guild-1"); err == nil {
		t.Fatal("Begin() succeeded with records service down")
	}
	if c.Store.Len() != 0 {
		t.Errorf("pending authorization stored despite upstream failure")
	}
}

func seedSections(mock *testutil.MockSchoologyServer, uid int64, withCohort bool) {
	sections := []testutil.Section{
		{ID: "111", Title: "Algebra II (S1 3 Smith) Period 3"},
		{ID: "222", Title: "English 10A (S1 1 Brown) Period 1"},
		{ID: "333", Title: "Robotics Club"},
	}
	if withCohort {
		sections = append(sections, testutil.Section{ID: cohortID, Title: "Class of 2027"})
	}
	mock.MockSections(uid, sections)
}

func TestCompleteHappyPath(t *testing.T) {
	c, mock, fake := newController(t)
	mock.MockAccessToken("acc-tok", "acc-sec")
	mock.MockAppUserInfo(42)
	mock.MockUser(42, "Ada", "Lovelace")
	seedSections(mock, 42, true)

	if _, err := c.Store.Put("user-1", "guild-1", "req-tok", "req-sec"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	entries, err := c.Complete(context.Background(), "req-tok")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (club title dropped): %+v", len(entries), entries)
	}
	if entries[0].Period != 1 || entries[1].Period != 3 {
		t.Errorf("entries not period-sorted: %+v", entries)
	}

	if fake.FindRole("3 Smith") == nil || fake.FindRole("1 Brown") == nil {
		t.Errorf("class roles not created: %+v", fake.Roles)
	}
	if got := fake.RoleNamesOf("user-1"); len(got) != 2 {
		t.Errorf("member roles = %v, want 2 roles", got)
	}
}

func TestCompleteUnknownToken(t *testing.T) {
	c, _, fake := newController(t)
	if _, err := c.Complete(context.Background(), "nope"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Complete(unknown) error = %v, want ErrTokenNotFound", err)
	}
	if len(fake.Roles) != 0 {
		t.Error("platform mutated on unknown token")
	}
}

func TestCompleteTokenIsSingleUse(t *testing.T) {
	c, mock, _ := newController(t)
	mock.MockAccessToken("acc-tok", "acc-sec")
	mock.MockAppUserInfo(42)
	mock.MockUser(42, "Ada", "Lovelace")
	seedSections(mock, 42, true)
	_, _ = c.Store.Put("user-1", "guild-1", "req-tok", "req-sec")

	if _, err := c.Complete(context.Background(), "req-tok"); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}
	if _, err := c.Complete(context.Background(), "req-tok"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("second Complete() error = %v, want ErrTokenNotFound", err)
	}
}

func TestCompleteCohortMismatch(t *testing.T) {
	c, mock, fake := newController(t)
	mock.MockAccessToken("acc-tok", "acc-sec")
	mock.MockAppUserInfo(42)
	mock.MockUser(42, "Ada", "Lovelace")
	seedSections(mock, 42, false)
	_, _ = c.Store.Put("user-1", "guild-1", "req-tok", "req-sec")

	if _, err := c.Complete(context.Background(), "req-tok"); !errors.Is(err, ErrCohortMismatch) {
		t.Errorf("Complete() error = %v, want ErrCohortMismatch", err)
	}
	// The gate must hold before any platform mutation.
	if len(fake.Roles) != 0 || len(fake.Channels) != 0 {
		t.Errorf("platform mutated despite cohort mismatch: roles=%v channels=%v", fake.Roles, fake.Channels)
	}
}

func TestCompleteNoSchoologyUser(t *testing.T) {
	c, mock, _ := newController(t)
	mock.MockAccessToken("acc-tok", "acc-sec")
	mock.MockAppUserInfo(0)
	_, _ = c.Store.Put("user-1", "guild-1", "req-tok", "req-sec")

	if _, err := c.Complete(context.Background(), "req-tok"); !errors.Is(err, ErrNoSchoologyUser) {
		t.Errorf("Complete() error = %v, want ErrNoSchoologyUser", err)
	}
}

func TestCompleteUpstreamFailure(t *testing.T) {
	c, _, fake := newController(t) // access_token endpoint unregistered -> 404
	_, _ = c.Store.Put("user-1", "guild-1", "req-tok", "req-sec")

	_, err := c.Complete(context.Background(), "req-tok")
	if err == nil {
		t.Fatal("Complete() succeeded with records service down")
	}
	if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrCohortMismatch) {
		t.Errorf("upstream failure mapped to wrong kind: %v", err)
	}
	if len(fake.Roles) != 0 {
		t.Error("platform mutated despite upstream failure")
	}
}
