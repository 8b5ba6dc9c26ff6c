package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/classof27/rollcall/discordapi"
	"github.com/classof27/rollcall/telemetry"
)

// oauthButtonID is the custom_id of the "Continue with Schoology" button the
// setup message carries.
const oauthButtonID = "oauth"

// HandleInteractions receives Discord's interaction webhook: signature
// check, PING/PONG, the /setup command, and presses of the oauth button.
func (h *Handlers) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if !discordapi.VerifyInteraction(h.cfg.DiscordPublicKey, r, body) {
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var in discordapi.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log := telemetry.LoggerWithCorr(ctx)

	switch {
	case in.Type == discordapi.InteractionPing:
		respond(w, discordapi.Pong())

	case in.Type == discordapi.InteractionMessageComponent && in.Data.CustomID == oauthButtonID:
		if in.GuildID == "" {
			respond(w, discordapi.EphemeralReply("Invalid context"))
			return
		}
		authURL, expiresAt, err := h.flow.Begin(ctx, in.UserID(), in.GuildID)
		if err != nil {
			log.Error("begin link flow failed", slog.Any("err", err))
			respond(w, discordapi.EphemeralReply("Couldn't reach Schoology, try again in a bit."))
			return
		}
		respond(w, discordapi.EphemeralReply(
			fmt.Sprintf("This link will expire at <t:%d>.", expiresAt.Unix()),
			discordapi.ButtonRow(discordapi.LinkButton("Continue with Schoology", authURL)),
		))

	case in.Type == discordapi.InteractionCommand && in.Data.Name == "setup":
		if !h.cfg.IsPrivileged(in.UserID()) {
			respond(w, discordapi.EphemeralReply("Insufficient permission"))
			return
		}
		err := h.discord.SendMessage(ctx, in.Channel.ID, "", []discordapi.Component{
			discordapi.ButtonRow(discordapi.ActionButton("Continue with Schoology", oauthButtonID)),
		})
		if err != nil {
			log.Warn("setup message send failed", slog.String("channel", in.Channel.ID), slog.Any("err", err))
			respond(w, discordapi.EphemeralReply("Insufficient permission to send in this channel"))
			return
		}
		respond(w, discordapi.EphemeralReply("Setup message posted."))

	default:
		// Unknown command or component; acknowledge quietly.
		respond(w, discordapi.EphemeralReply("Unknown interaction"))
	}
}

func respond(w http.ResponseWriter, resp discordapi.InteractionResponse) {
	if err := discordapi.MarshalResponse(w, resp); err != nil {
		slog.Warn("failed to encode interaction response", slog.Any("err", err))
	}
}
