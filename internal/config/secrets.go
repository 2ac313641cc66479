package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.ProjectX.APIKey)
	redact(&out.Oanda.APIKey)
	redact(&out.QuestDB.Password)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Decider.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Identities != nil {
		out.Identities = make([]IdentityConfig, len(cfg.Identities))
		copy(out.Identities, cfg.Identities)
	}
	if cfg.Notify.KafkaBrokers != nil {
		out.Notify.KafkaBrokers = make([]string, len(cfg.Notify.KafkaBrokers))
		copy(out.Notify.KafkaBrokers, cfg.Notify.KafkaBrokers)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
