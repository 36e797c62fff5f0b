package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FieldCodes holds the tenant-specific Bitrix24 custom-field
// identifiers the pipeline writes into. Every UF_CRM_* code is
// overridable through configuration; the defaults match the production
// portal. Attachment fields come in pairs: the raw file URL and a
// human-readable note embedding the same URL.
type FieldCodes struct {
	Age      string `mapstructure:"age"`
	City     string `mapstructure:"city"`
	Degree   string `mapstructure:"degree"`
	Position string `mapstructure:"position"`
	Username string `mapstructure:"username"`

	ResumeURL    string `mapstructure:"resume_url"`
	ResumeNote   string `mapstructure:"resume_note"`
	DiplomaURL   string `mapstructure:"diploma_url"`
	DiplomaNote  string `mapstructure:"diploma_note"`
	Phase2Q1URL  string `mapstructure:"phase2_q1_url"`
	Phase2Q1Note string `mapstructure:"phase2_q1_note"`
	Phase2Q2URL  string `mapstructure:"phase2_q2_url"`
	Phase2Q2Note string `mapstructure:"phase2_q2_note"`
	Phase2Q3URL  string `mapstructure:"phase2_q3_url"`
	Phase2Q3Note string `mapstructure:"phase2_q3_note"`
}

type BitrixConfig struct {
	WebhookBaseURL string `mapstructure:"webhook_base_url"`
	DealCategoryID int    `mapstructure:"deal_category_id"`
	DealStageID    string `mapstructure:"deal_stage_id"`
	DealSourceID   string `mapstructure:"deal_source_id"`
	LookupRetries  int    `mapstructure:"lookup_retries"`
}

type TelegramConfig struct {
	BotToken        string        `mapstructure:"bot_token"`
	APIBaseURL      string        `mapstructure:"api_base_url"`
	FileBaseURL     string        `mapstructure:"file_base_url"`
	MetaTimeout     time.Duration `mapstructure:"meta_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	DatabaseURL   string        `mapstructure:"database_url"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`

	Bitrix   BitrixConfig   `mapstructure:"bitrix"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Log      LogConfig      `mapstructure:"log"`
	Fields   FieldCodes     `mapstructure:"fields"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if !strings.HasSuffix(cfg.Bitrix.WebhookBaseURL, "/") {
		cfg.Bitrix.WebhookBaseURL += "/"
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.Telegram.FileBaseURL == "" {
		cfg.Telegram.FileBaseURL = cfg.Telegram.APIBaseURL
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so AutomaticEnv values survive
	// Unmarshal.
	v.SetDefault("database_url", "")
	v.SetDefault("bitrix.webhook_base_url", "")
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.file_base_url", "")
	v.SetDefault("log.file", "")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("public_base_url", "https://jobs.ishbor.uz")
	v.SetDefault("cache_ttl", 30*time.Minute)

	v.SetDefault("bitrix.deal_category_id", 9)
	v.SetDefault("bitrix.deal_stage_id", "C9:NEW")
	v.SetDefault("bitrix.deal_source_id", "WEBFORM")
	v.SetDefault("bitrix.lookup_retries", 3)

	v.SetDefault("telegram.api_base_url", "https://api.telegram.org")
	v.SetDefault("telegram.meta_timeout", 3*time.Second)
	v.SetDefault("telegram.download_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("fields.age", "UF_CRM_1587626661")
	v.SetDefault("fields.city", "UF_CRM_1587626676")
	v.SetDefault("fields.degree", "UF_CRM_1587626693")
	v.SetDefault("fields.position", "UF_CRM_1587626712")
	v.SetDefault("fields.username", "UF_CRM_1587626730")
	v.SetDefault("fields.resume_url", "UF_CRM_1587626751")
	v.SetDefault("fields.resume_note", "UF_CRM_1587626768")
	v.SetDefault("fields.diploma_url", "UF_CRM_1587626784")
	v.SetDefault("fields.diploma_note", "UF_CRM_1587626801")
	v.SetDefault("fields.phase2_q1_url", "UF_CRM_1588584259")
	v.SetDefault("fields.phase2_q1_note", "UF_CRM_1588584275")
	v.SetDefault("fields.phase2_q2_url", "UF_CRM_1588584291")
	v.SetDefault("fields.phase2_q2_note", "UF_CRM_1588584308")
	v.SetDefault("fields.phase2_q3_url", "UF_CRM_1588584324")
	v.SetDefault("fields.phase2_q3_note", "UF_CRM_1588584340")
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Bitrix.WebhookBaseURL) == "" {
		return fmt.Errorf("BITRIX_WEBHOOK_BASE_URL is empty")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	return nil
}
