package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/harrison/suiterun/internal/config"
	"github.com/harrison/suiterun/internal/credentials"
	"github.com/harrison/suiterun/internal/notify"
	"github.com/spf13/cobra"
)

// loadConfig reads the configuration named by --config, or the project's
// .suiterun/config.yaml, and resolves relative paths against the project root.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg  *config.Config
		root string
		err  error
	)
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		root, err = config.ProjectRoot(filepath.Dir(configPath))
	} else {
		root, err = config.ProjectRoot(".")
		if err == nil {
			cfg, err = config.LoadConfigFromDir(root)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Resolve(root)
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// buildChannels resolves channel credentials and creates the notification
// channels. Unresolved credentials leave a channel unready, never fail the run.
func buildChannels(cfg *config.Config, resolver *credentials.Resolver) []notify.Channel {
	// Placeholders of disabled channels stay unresolved.
	tg := cfg.Notify.Telegram
	var token, chatID string
	if tg.Enabled {
		token, _ = resolver.ResolveString(tg.BotToken)
		chatID, _ = resolver.ResolveString(tg.ChatID)
	}

	em := cfg.Notify.Email
	var host, username, password string
	var recipients []string
	if em.Enabled {
		host, _ = resolver.ResolveString(em.SMTPHost)
		username, _ = resolver.ResolveString(em.Username)
		password, _ = resolver.ResolveString(em.Password)
		recipients, _ = resolver.ResolveList(em.Recipients)
	}

	return []notify.Channel{
		notify.NewTelegram(notify.TelegramConfig{
			Enabled:  tg.Enabled,
			BotToken: token,
			ChatID:   chatID,
			APIURL:   tg.APIURL,
		}, nil),
		notify.NewEmail(notify.EmailConfig{
			Enabled:       em.Enabled,
			Host:          host,
			Port:          em.SMTPPort,
			Username:      username,
			Password:      password,
			FromName:      em.FromName,
			Recipients:    recipients,
			SubjectPrefix: em.SubjectPrefix,
		}, nil),
	}
}
