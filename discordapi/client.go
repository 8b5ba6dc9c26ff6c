// Package discordapi contains minimal helpers to interact with the Discord
// REST API for role/channel reconciliation and direct messages, plus
// signature verification and payload types for the interactions webhook.
// Only the handful of endpoints the sync flow needs are covered; this is not
// a general-purpose Discord client.
package discordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

const defaultAPIBase = "https://discord.com/api/v10"

// ViewChannel is the VIEW_CHANNEL permission bit. Discord serializes
// permission sets as decimal strings.
const ViewChannel = 1 << 10

// Channel types and overwrite target types (Discord numeric enums).
const (
	ChannelTypeGuildText = 0
	OverwriteTypeRole    = 0
)

// Client issues authenticated Discord REST calls with the bot token.
type Client struct {
	BotToken string
	AppID    string

	// BaseURL overrides the API base (tests point this at httptest servers).
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultAPIBase
}

// do issues one REST call; in encodes to a JSON body when non-nil, out
// decodes the response when non-nil. Non-2xx statuses become errors carrying
// the response body, which is where Discord explains permission failures.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.BotToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord %s %s failed: %s: %s", method, path, resp.Status, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Role is a guild role. The @everyone role's ID equals the guild ID.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is a guild channel (or a DM channel from CreateDM).
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

// Member is a guild member; Roles holds role IDs.
type Member struct {
	Roles []string `json:"roles"`
}

// PermissionOverwrite is a per-channel permission entry for one role or user.
type PermissionOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

// AllowView returns a role overwrite granting VIEW_CHANNEL.
func AllowView(roleID string) PermissionOverwrite {
	return PermissionOverwrite{
		ID:    roleID,
		Type:  OverwriteTypeRole,
		Allow: strconv.Itoa(ViewChannel),
		Deny:  "0",
	}
}

// DenyView returns a role overwrite denying VIEW_CHANNEL (used against
// @everyone when creating class channels).
func DenyView(roleID string) PermissionOverwrite {
	return PermissionOverwrite{
		ID:    roleID,
		Type:  OverwriteTypeRole,
		Allow: "0",
		Deny:  strconv.Itoa(ViewChannel),
	}
}

// GuildRoles lists all roles in a guild.
func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateRole creates a guild role with the given name.
func (c *Client) CreateRole(ctx context.Context, guildID, name string) (*Role, error) {
	var role Role
	in := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/roles", in, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// GuildChannels lists all channels in a guild.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// CreateChannel creates a guild text channel with the given initial
// permission overwrites.
func (c *Client) CreateChannel(ctx context.Context, guildID, name string, overwrites []PermissionOverwrite) (*Channel, error) {
	var ch Channel
	in := map[string]any{
		"name":                  name,
		"type":                  ChannelTypeGuildText,
		"permission_overwrites": overwrites,
	}
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/channels", in, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// EditChannelPermissions writes one per-role overwrite on a channel. Writing
// an identical overwrite again is a no-op on Discord's side, which is what
// makes re-running the sync safe.
func (c *Client) EditChannelPermissions(ctx context.Context, channelID string, ow PermissionOverwrite) error {
	in := map[string]any{"type": ow.Type, "allow": ow.Allow, "deny": ow.Deny}
	return c.do(ctx, http.MethodPut, "/channels/"+channelID+"/permissions/"+ow.ID, in, nil)
}

// GuildMember fetches one member.
func (c *Client) GuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	var m Member
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMemberRole adds a role to a member.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, nil, nil)
}

// RemoveMemberRole removes a role from a member.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodDelete, "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, nil, nil)
}

// CreateDM opens (or reuses) a DM channel with a user.
func (c *Client) CreateDM(ctx context.Context, userID string) (*Channel, error) {
	var ch Channel
	in := map[string]string{"recipient_id": userID}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", in, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// SendMessage posts a plain-content message to a channel, optionally with
// components (button rows).
func (c *Client) SendMessage(ctx context.Context, channelID, content string, components []Component) error {
	in := map[string]any{}
	if content != "" {
		in["content"] = content
	}
	if len(components) > 0 {
		in["components"] = components
	}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", in, nil)
}
