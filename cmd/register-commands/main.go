// Command register-commands overwrites the application's slash-command set
// for one guild. Run it once per guild after inviting the bot:
//
//	DISCORD_GUILD_ID=... go run ./cmd/register-commands
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/classof27/rollcall/config"
	"github.com/classof27/rollcall/discordapi"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	guildID := os.Getenv("DISCORD_GUILD_ID")
	if guildID == "" {
		slog.Error("missing DISCORD_GUILD_ID")
		os.Exit(1)
	}
	if cfg.DiscordBotToken == "" || cfg.DiscordAppID == "" {
		slog.Error("missing discord env: require DISCORD_BOT_TOKEN, DISCORD_APP_ID")
		os.Exit(1)
	}

	client := &discordapi.Client{BotToken: cfg.DiscordBotToken, AppID: cfg.DiscordAppID}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	commands := []discordapi.ApplicationCommand{
		{Name: "setup", Description: "Post the Schoology link button in this channel"},
	}
	if err := client.RegisterGuildCommands(ctx, guildID, commands); err != nil {
		slog.Error("command registration failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("commands registered", slog.String("guild", guildID), slog.Int("count", len(commands)))
}
