// Package flow orchestrates the account-link handshake: issuing pending
// authorizations, completing the OAuth exchange against Schoology, gating on
// the configured cohort, and handing the parsed schedule to the
// synchronizer. Each failure kind is a sentinel so the HTTP layer can map it
// to the exact payload the web frontend expects.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/classof27/rollcall/schedule"
	"github.com/classof27/rollcall/schoology"
	"github.com/classof27/rollcall/syncer"
	"github.com/classof27/rollcall/telemetry"
	"github.com/classof27/rollcall/tokenstore"
)

// ErrTokenNotFound mirrors the store's sentinel: the exchange token is
// unknown, expired, consumed, or superseded.
var ErrTokenNotFound = tokenstore.ErrTokenNotFound

// ErrNoSchoologyUser means the exchanged credential resolved to no usable
// external account.
var ErrNoSchoologyUser = errors.New("no schoology user for credential")

// ErrCohortMismatch means none of the user's sections carry the configured
// cohort id; synchronization is never attempted.
var ErrCohortMismatch = errors.New("cohort section not found")

// Controller drives a link flow end to end. All state lives in the injected
// collaborators; the controller itself is stateless.
type Controller struct {
	Store     *tokenstore.Store
	Schoology *schoology.Client
	Sync      *syncer.Synchronizer

	// CallbackURL is where Schoology sends the user after authorizing.
	CallbackURL string
	// CohortSectionID gates synchronization to the deployment's class.
	CohortSectionID string
}

// Begin issues a fresh pending authorization for the identity and returns
// the authorize URL to present, plus the absolute expiry for the
// user-visible deadline. Any earlier pending authorization for the same
// identity becomes unresolvable.
func (c *Controller) Begin(ctx context.Context, userID, guildID string) (string, time.Time, error) {
	ctx, span := telemetry.StartSpan(ctx, "flow", "flow.begin", attribute.String("user_id", userID))
	defer span.End()

	tok, err := c.Schoology.RequestToken(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.CountFlowFailure("upstream")
		return "", time.Time{}, fmt.Errorf("request token: %w", err)
	}
	p, err := c.Store.Put(userID, guildID, tok.Key, tok.Secret)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", time.Time{}, err
	}
	if telemetry.FlowsStarted != nil {
		telemetry.FlowsStarted.Inc()
		telemetry.TokensIssued.Inc()
	}
	telemetry.SetPendingAuthorizations(c.Store.Len())

	telemetry.LoggerWithCorr(ctx).Info("link flow started",
		slog.String("user", userID), slog.String("guild", guildID))
	return c.Schoology.AuthorizeURL(tok.Key, c.CallbackURL), p.ExpiresAt, nil
}

// Complete resolves the exchange token and runs the rest of the flow:
// access-token exchange, user resolution, cohort gate, schedule derivation,
// synchronization. It returns the recognized entries on success. No platform
// mutation happens before the cohort gate passes.
func (c *Controller) Complete(ctx context.Context, token string) ([]schedule.Entry, error) {
	ctx, span := telemetry.StartSpan(ctx, "flow", "flow.complete")
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx)

	pending, err := c.Store.Resolve(token)
	if err != nil {
		telemetry.CountFlowFailure("token_not_found")
		return nil, err
	}
	telemetry.SetPendingAuthorizations(c.Store.Len())

	access, err := c.Schoology.AccessToken(ctx, schoology.TokenPair{Key: pending.Token, Secret: pending.Secret})
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.CountFlowFailure("upstream")
		return nil, fmt.Errorf("access token exchange: %w", err)
	}

	uid, err := c.Schoology.AppUserInfo(ctx, access)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.CountFlowFailure("upstream")
		return nil, fmt.Errorf("app user info: %w", err)
	}
	if uid == 0 {
		telemetry.CountFlowFailure("no_user")
		return nil, ErrNoSchoologyUser
	}

	user, err := c.Schoology.GetUser(ctx, access, uid)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.CountFlowFailure("upstream")
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	sections, err := c.Schoology.ListSections(ctx, access, uid)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.CountFlowFailure("upstream")
		return nil, fmt.Errorf("fetch sections: %w", err)
	}

	if !hasSection(sections, c.CohortSectionID) {
		telemetry.CountFlowFailure("cohort_mismatch")
		log.Info("cohort gate rejected link",
			slog.String("user", pending.UserID), slog.Int64("schoology_uid", uid))
		return nil, ErrCohortMismatch
	}

	titles := make([]string, len(sections))
	for i, s := range sections {
		titles[i] = s.Title
	}
	entries := schedule.FromTitles(titles)
	if dropped := len(titles) - len(entries); dropped > 0 && telemetry.SectionsDropped != nil {
		telemetry.SectionsDropped.Add(float64(dropped))
	}

	var syncErr error
	telemetry.TimeFunc(telemetry.SyncDuration, func() {
		syncErr = c.Sync.Sync(ctx, pending.GuildID, pending.UserID, entries)
	})
	if syncErr != nil {
		telemetry.RecordError(span, syncErr)
		telemetry.CountFlowFailure("sync")
		return nil, fmt.Errorf("synchronize: %w", syncErr)
	}

	if telemetry.FlowsCompleted != nil {
		telemetry.FlowsCompleted.Inc()
	}
	log.Info("account linked",
		slog.String("user", pending.UserID),
		slog.String("student", user.NameFirst),
		slog.Int("classes", len(entries)))
	return entries, nil
}

func hasSection(sections []schoology.Section, id string) bool {
	for _, s := range sections {
		if s.ID == id {
			return true
		}
	}
	return false
}
