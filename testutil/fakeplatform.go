package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/classof27/rollcall/discordapi"
)

// FakePlatform is an in-memory stand-in for the Discord client, tracking
// guild roles, channels, per-channel overwrites, member role sets, and DMs.
// It satisfies the synchronizer's Platform interface so reconciliation tests
// can assert on final state instead of call sequences.
type FakePlatform struct {
	mu     sync.Mutex
	nextID int

	Roles    []discordapi.Role
	Channels []discordapi.Channel
	// MemberRoles maps userID to the set of role ids the member holds.
	MemberRoles map[string]map[string]bool
	// Overwrites maps channelID to per-target permission overwrites.
	Overwrites map[string]map[string]discordapi.PermissionOverwrite
	// DMs maps userID to the direct messages they received.
	DMs map[string][]string

	// FailRoleMutations makes Add/RemoveMemberRole fail, simulating a
	// permission error mid-run.
	FailRoleMutations bool
}

// NewFakePlatform returns an empty platform.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		MemberRoles: make(map[string]map[string]bool),
		Overwrites:  make(map[string]map[string]discordapi.PermissionOverwrite),
		DMs:         make(map[string][]string),
	}
}

func (f *FakePlatform) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// SeedMember gives a user an existing role set.
func (f *FakePlatform) SeedMember(userID string, roleIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		set[id] = true
	}
	f.MemberRoles[userID] = set
}

// SeedRole adds an existing guild role and returns its id.
func (f *FakePlatform) SeedRole(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("role")
	f.Roles = append(f.Roles, discordapi.Role{ID: id, Name: name})
	return id
}

// SeedChannel adds an existing guild channel and returns its id.
func (f *FakePlatform) SeedChannel(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("chan")
	f.Channels = append(f.Channels, discordapi.Channel{ID: id, Name: name, Type: discordapi.ChannelTypeGuildText})
	return id
}

func (f *FakePlatform) GuildRoles(ctx context.Context, guildID string) ([]discordapi.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]discordapi.Role, len(f.Roles))
	copy(out, f.Roles)
	return out, nil
}

func (f *FakePlatform) CreateRole(ctx context.Context, guildID, name string) (*discordapi.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := discordapi.Role{ID: f.id("role"), Name: name}
	f.Roles = append(f.Roles, r)
	return &r, nil
}

func (f *FakePlatform) GuildChannels(ctx context.Context, guildID string) ([]discordapi.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]discordapi.Channel, len(f.Channels))
	copy(out, f.Channels)
	return out, nil
}

func (f *FakePlatform) CreateChannel(ctx context.Context, guildID, name string, overwrites []discordapi.PermissionOverwrite) (*discordapi.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := discordapi.Channel{ID: f.id("chan"), Name: name, Type: discordapi.ChannelTypeGuildText}
	f.Channels = append(f.Channels, ch)
	for _, ow := range overwrites {
		f.setOverwriteLocked(ch.ID, ow)
	}
	return &ch, nil
}

func (f *FakePlatform) setOverwriteLocked(channelID string, ow discordapi.PermissionOverwrite) {
	if f.Overwrites[channelID] == nil {
		f.Overwrites[channelID] = make(map[string]discordapi.PermissionOverwrite)
	}
	f.Overwrites[channelID][ow.ID] = ow
}

func (f *FakePlatform) EditChannelPermissions(ctx context.Context, channelID string, ow discordapi.PermissionOverwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setOverwriteLocked(channelID, ow)
	return nil
}

func (f *FakePlatform) GuildMember(ctx context.Context, guildID, userID string) (*discordapi.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var roles []string
	for id := range f.MemberRoles[userID] {
		roles = append(roles, id)
	}
	return &discordapi.Member{Roles: roles}, nil
}

func (f *FakePlatform) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRoleMutations {
		return fmt.Errorf("403 Forbidden: missing permissions")
	}
	if f.MemberRoles[userID] == nil {
		f.MemberRoles[userID] = make(map[string]bool)
	}
	f.MemberRoles[userID][roleID] = true
	return nil
}

func (f *FakePlatform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRoleMutations {
		return fmt.Errorf("403 Forbidden: missing permissions")
	}
	delete(f.MemberRoles[userID], roleID)
	return nil
}

func (f *FakePlatform) CreateDM(ctx context.Context, userID string) (*discordapi.Channel, error) {
	return &discordapi.Channel{ID: "dm-" + userID}, nil
}

func (f *FakePlatform) SendMessage(ctx context.Context, channelID, content string, components []discordapi.Component) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(channelID) > 3 && channelID[:3] == "dm-" {
		userID := channelID[3:]
		f.DMs[userID] = append(f.DMs[userID], content)
	}
	return nil
}

// RoleNamesOf returns the sorted-insertion list of role names a user holds.
func (f *FakePlatform) RoleNamesOf(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, r := range f.Roles {
		if f.MemberRoles[userID][r.ID] {
			names = append(names, r.Name)
		}
	}
	return names
}

// FindRole returns the role with the given name, if any.
func (f *FakePlatform) FindRole(name string) *discordapi.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Roles {
		if f.Roles[i].Name == name {
			return &f.Roles[i]
		}
	}
	return nil
}

// FindChannel returns the channel with the given name, if any.
func (f *FakePlatform) FindChannel(name string) *discordapi.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Channels {
		if f.Channels[i].Name == name {
			return &f.Channels[i]
		}
	}
	return nil
}
