// Package syncer reconciles a member's class roles and channel visibility
// against their parsed schedule. Every run starts by stripping the member's
// existing period roles, so stale memberships never survive a re-link; the
// rest of the run is idempotent lookup-or-create, safe to repeat after a
// partial failure.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/classof27/rollcall/discordapi"
	"github.com/classof27/rollcall/schedule"
	"github.com/classof27/rollcall/telemetry"
)

// Platform is the slice of the Discord client the synchronizer uses. Tests
// substitute an in-memory fake.
type Platform interface {
	GuildRoles(ctx context.Context, guildID string) ([]discordapi.Role, error)
	CreateRole(ctx context.Context, guildID, name string) (*discordapi.Role, error)
	GuildChannels(ctx context.Context, guildID string) ([]discordapi.Channel, error)
	CreateChannel(ctx context.Context, guildID, name string, overwrites []discordapi.PermissionOverwrite) (*discordapi.Channel, error)
	EditChannelPermissions(ctx context.Context, channelID string, ow discordapi.PermissionOverwrite) error
	GuildMember(ctx context.Context, guildID, userID string) (*discordapi.Member, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error
	CreateDM(ctx context.Context, userID string) (*discordapi.Channel, error)
	SendMessage(ctx context.Context, channelID, content string, components []discordapi.Component) error
}

// Class roles look like "3 Smith". Deliberately unanchored: it only needs to
// distinguish bot-managed roles from human-made ones.
var classRolePattern = regexp.MustCompile(`\d [A-Z][a-z]+`)

// Synchronizer applies a schedule to a guild.
type Synchronizer struct {
	Platform Platform
	// Alternates maps teacher slugs to pre-existing channel ids that should
	// be used instead of a slug-named channel.
	Alternates map[string]string
	// MaintainerID, when set, is mentioned in the DM footer so users know
	// who to bother about mis-parsed schedules.
	MaintainerID string
}

// Sync reconciles roles and channel visibility for one member, then DMs them
// a summary. Entries must already be period-filtered and sorted; steps run
// strictly sequentially because later ones depend on earlier results.
func (s *Synchronizer) Sync(ctx context.Context, guildID, userID string, entries []schedule.Entry) error {
	log := telemetry.LoggerWithCorr(ctx)

	if err := s.removeClassRoles(ctx, guildID, userID); err != nil {
		return err
	}

	roles, err := s.Platform.GuildRoles(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	channels, err := s.Platform.GuildChannels(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	for _, e := range entries {
		roleName := fmt.Sprintf("%d %s", e.Period, e.Teacher)
		role := findRole(roles, roleName)
		if role == nil {
			role, err = s.Platform.CreateRole(ctx, guildID, roleName)
			if err != nil {
				return fmt.Errorf("create role %q: %w", roleName, err)
			}
			roles = append(roles, *role)
			if telemetry.RolesCreated != nil {
				telemetry.RolesCreated.Inc()
			}
		}

		ch, err := s.resolveChannel(ctx, guildID, e.Teacher, &channels)
		if err != nil {
			return err
		}

		// The @everyone role shares the guild's id. Both overwrites are
		// written every run; re-writing an identical overwrite is a no-op,
		// and per-role writes never touch other classes' grants.
		if err := s.Platform.EditChannelPermissions(ctx, ch.ID, discordapi.DenyView(guildID)); err != nil {
			return fmt.Errorf("deny @everyone on #%s: %w", ch.Name, err)
		}
		if err := s.Platform.EditChannelPermissions(ctx, ch.ID, discordapi.AllowView(role.ID)); err != nil {
			return fmt.Errorf("grant %q on #%s: %w", roleName, ch.Name, err)
		}

		if err := s.Platform.AddMemberRole(ctx, guildID, userID, role.ID); err != nil {
			return fmt.Errorf("add role %q: %w", roleName, err)
		}
	}

	if err := s.sendSummary(ctx, userID, entries); err != nil {
		// The schedule is already applied; a closed-DM user just misses the
		// receipt.
		log.Warn("schedule summary DM failed", slog.String("user", userID), slog.Any("err", err))
	}

	log.Info("schedule synchronized",
		slog.String("guild", guildID),
		slog.String("user", userID),
		slog.Int("classes", len(entries)))
	return nil
}

func findRole(roles []discordapi.Role, name string) *discordapi.Role {
	for i := range roles {
		if roles[i].Name == name {
			return &roles[i]
		}
	}
	return nil
}

// removeClassRoles strips every class role the member currently has,
// awaiting each removal before the next.
func (s *Synchronizer) removeClassRoles(ctx context.Context, guildID, userID string) error {
	roles, err := s.Platform.GuildRoles(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	byID := make(map[string]discordapi.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	member, err := s.Platform.GuildMember(ctx, guildID, userID)
	if err != nil {
		return fmt.Errorf("fetch member: %w", err)
	}
	for _, id := range member.Roles {
		r, ok := byID[id]
		if !ok || !classRolePattern.MatchString(r.Name) {
			continue
		}
		if err := s.Platform.RemoveMemberRole(ctx, guildID, userID, id); err != nil {
			return fmt.Errorf("remove role %q: %w", r.Name, err)
		}
	}
	return nil
}

// resolveChannel picks the channel for a teacher: configured alternate
// first, then an existing channel named after the slug, else a fresh text
// channel that nobody can see by default.
func (s *Synchronizer) resolveChannel(ctx context.Context, guildID, teacher string, channels *[]discordapi.Channel) (*discordapi.Channel, error) {
	slug := schedule.NormalizeTeacher(teacher)
	if altID, ok := s.Alternates[slug]; ok {
		for i := range *channels {
			if (*channels)[i].ID == altID {
				return &(*channels)[i], nil
			}
		}
		// Stale alternate entry; fall through to name lookup.
	}
	for i := range *channels {
		if (*channels)[i].Name == slug {
			return &(*channels)[i], nil
		}
	}
	ch, err := s.Platform.CreateChannel(ctx, guildID, slug, []discordapi.PermissionOverwrite{discordapi.DenyView(guildID)})
	if err != nil {
		return nil, fmt.Errorf("create channel #%s: %w", slug, err)
	}
	*channels = append(*channels, *ch)
	if telemetry.ChannelsCreated != nil {
		telemetry.ChannelsCreated.Inc()
	}
	return ch, nil
}

func (s *Synchronizer) sendSummary(ctx context.Context, userID string, entries []schedule.Entry) error {
	dm, err := s.Platform.CreateDM(ctx, userID)
	if err != nil {
		return err
	}
	return s.Platform.SendMessage(ctx, dm.ID, SummaryMessage(entries, s.MaintainerID), nil)
}

// SummaryMessage renders the DM body listing the recognized schedule.
func SummaryMessage(entries []schedule.Entry, maintainerID string) string {
	var b strings.Builder
	b.WriteString("Your schedule was automatically detected as:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%d. %s (%s)", e.Period, e.Course, e.Teacher)
	}
	if maintainerID != "" {
		fmt.Fprintf(&b, "\n\nBother <@%s> if anything looks incorrect", maintainerID)
	}
	return b.String()
}
