package discordapi

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
)

// Interaction types (incoming webhook payloads).
const (
	InteractionPing             = 1
	InteractionCommand          = 2
	InteractionMessageComponent = 3
)

// Interaction response types.
const (
	ResponsePong           = 1
	ResponseChannelMessage = 4
)

// MessageFlagEphemeral makes an interaction reply visible only to its
// invoker.
const MessageFlagEphemeral = 64

// Component types and button styles.
const (
	ComponentActionRow = 1
	ComponentButton    = 2

	ButtonStylePrimary = 1
	ButtonStyleLink    = 5
)

// Component is an action row or button. Rows nest buttons via Components.
type Component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	URL        string      `json:"url,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// ButtonRow wraps buttons in a single action row.
func ButtonRow(buttons ...Component) Component {
	return Component{Type: ComponentActionRow, Components: buttons}
}

// LinkButton is a URL button.
func LinkButton(label, url string) Component {
	return Component{Type: ComponentButton, Style: ButtonStyleLink, Label: label, URL: url}
}

// ActionButton is a clickable button that reports customID back through the
// interactions webhook.
func ActionButton(label, customID string) Component {
	return Component{Type: ComponentButton, Style: ButtonStylePrimary, Label: label, CustomID: customID}
}

// InteractionUser identifies the invoking user.
type InteractionUser struct {
	ID string `json:"id"`
}

// InteractionMember is present when the interaction happened in a guild.
type InteractionMember struct {
	User InteractionUser `json:"user"`
}

// InteractionData carries the command name or component custom_id.
type InteractionData struct {
	Name     string `json:"name"`
	CustomID string `json:"custom_id"`
}

// Interaction is the incoming webhook payload, trimmed to the fields we use.
type Interaction struct {
	ID      string             `json:"id"`
	Type    int                `json:"type"`
	Data    InteractionData    `json:"data"`
	GuildID string             `json:"guild_id"`
	Member  *InteractionMember `json:"member"`
	User    *InteractionUser   `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

// UserID returns the invoking user's id regardless of guild/DM context.
func (i *Interaction) UserID() string {
	if i.Member != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// ResponseData is the body of an interaction reply.
type ResponseData struct {
	Content    string      `json:"content,omitempty"`
	Flags      int         `json:"flags,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// InteractionResponse is the synchronous reply to an interaction webhook.
type InteractionResponse struct {
	Type int           `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// Pong answers a Discord PING.
func Pong() InteractionResponse {
	return InteractionResponse{Type: ResponsePong}
}

// EphemeralReply is a message reply only the invoker sees.
func EphemeralReply(content string, components ...Component) InteractionResponse {
	return InteractionResponse{
		Type: ResponseChannelMessage,
		Data: &ResponseData{Content: content, Flags: MessageFlagEphemeral, Components: components},
	}
}

// VerifyInteraction checks the Ed25519 signature Discord attaches to webhook
// deliveries: the signature covers timestamp||body.
func VerifyInteraction(publicKeyHex string, r *http.Request, body []byte) bool {
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(r.Header.Get("X-Signature-Ed25519"))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	ts := r.Header.Get("X-Signature-Timestamp")
	if ts == "" {
		return false
	}
	msg := make([]byte, 0, len(ts)+len(body))
	msg = append(msg, ts...)
	msg = append(msg, body...)
	return ed25519.Verify(ed25519.PublicKey(key), msg, sig)
}

// ApplicationCommand is the registration payload for a slash command.
type ApplicationCommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RegisterGuildCommands overwrites the application's command set for one
// guild.
func (c *Client) RegisterGuildCommands(ctx context.Context, guildID string, commands []ApplicationCommand) error {
	path := "/applications/" + c.AppID + "/guilds/" + guildID + "/commands"
	return c.do(ctx, http.MethodPut, path, commands, nil)
}

// MarshalResponse encodes an interaction response for the webhook reply.
func MarshalResponse(w http.ResponseWriter, resp InteractionResponse) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}
