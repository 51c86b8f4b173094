package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so excluded_numbers can contain both "972501234567" and 972501234567.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Bot         BotConfig       `json:"bot"`
	Model       ModelConfig     `json:"model"`
	Providers   ProvidersConfig `json:"providers"`
	Channels    ChannelsConfig  `json:"channels"`
	Leads       LeadsConfig     `json:"leads"`
	Notify      NotifyConfig    `json:"notify"`
	Events      EventsConfig    `json:"events"`
	Gateway     GatewayConfig   `json:"gateway"`
	Followup    FollowupConfig  `json:"followup"`
	Log         LogConfig       `json:"log"`
	PromptsFile string          `json:"prompts_file" env:"LEADBOT_PROMPTS_FILE"`
	mu          sync.RWMutex
}

type BotConfig struct {
	BatchWaitSeconds     float64             `json:"batch_wait_seconds" env:"LEADBOT_BOT_BATCH_WAIT_SECONDS"`
	SweepIntervalSeconds int                 `json:"sweep_interval_seconds" env:"LEADBOT_BOT_SWEEP_INTERVAL_SECONDS"`
	SweepWindowMinutes   int                 `json:"sweep_window_minutes" env:"LEADBOT_BOT_SWEEP_WINDOW_MINUTES"`
	MaxTrackedMessages   int                 `json:"max_tracked_messages" env:"LEADBOT_BOT_MAX_TRACKED_MESSAGES"`
	MaxHistoryTurns      int                 `json:"max_history_turns" env:"LEADBOT_BOT_MAX_HISTORY_TURNS"`
	HistoryFetchLimit    int                 `json:"history_fetch_limit" env:"LEADBOT_BOT_HISTORY_FETCH_LIMIT"`
	AnalysisEvery        int                 `json:"analysis_every" env:"LEADBOT_BOT_ANALYSIS_EVERY"`
	TurnTimeoutSeconds   int                 `json:"turn_timeout_seconds" env:"LEADBOT_BOT_TURN_TIMEOUT_SECONDS"`
	GroupSuffix          string              `json:"group_suffix" env:"LEADBOT_BOT_GROUP_SUFFIX"`
	ExcludedNumbers      FlexibleStringSlice `json:"excluded_numbers" env:"LEADBOT_BOT_EXCLUDED_NUMBERS"`
	StopKeywords         []string            `json:"stop_keywords" env:"LEADBOT_BOT_STOP_KEYWORDS"`
	TimeZone             string              `json:"time_zone" env:"LEADBOT_BOT_TIME_ZONE"`
	SweepEnabled         bool                `json:"sweep_enabled" env:"LEADBOT_BOT_SWEEP_ENABLED"`
}

type ModelConfig struct {
	Provider          string  `json:"provider" env:"LEADBOT_MODEL_PROVIDER"`
	Name              string  `json:"name" env:"LEADBOT_MODEL_NAME"`
	MaxTokens         int     `json:"max_tokens" env:"LEADBOT_MODEL_MAX_TOKENS"`
	Temperature       float64 `json:"temperature" env:"LEADBOT_MODEL_TEMPERATURE"`
	AnalysisMaxTokens int     `json:"analysis_max_tokens" env:"LEADBOT_MODEL_ANALYSIS_MAX_TOKENS"`
	AnalysisTemp      float64 `json:"analysis_temperature" env:"LEADBOT_MODEL_ANALYSIS_TEMPERATURE"`
	InputCostPerMTok  float64 `json:"input_cost_per_mtok" env:"LEADBOT_MODEL_INPUT_COST_PER_MTOK"`
	OutputCostPerMTok float64 `json:"output_cost_per_mtok" env:"LEADBOT_MODEL_OUTPUT_COST_PER_MTOK"`
}

type ProvidersConfig struct {
	OpenRouter ProviderConfig `json:"openrouter" envPrefix:"LEADBOT_PROVIDERS_OPENROUTER_"`
	OpenAI     ProviderConfig `json:"openai" envPrefix:"LEADBOT_PROVIDERS_OPENAI_"`
	Anthropic  ProviderConfig `json:"anthropic" envPrefix:"LEADBOT_PROVIDERS_ANTHROPIC_"`
	Gemini     ProviderConfig `json:"gemini" envPrefix:"LEADBOT_PROVIDERS_GEMINI_"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"API_KEY"`
	APIBase string `json:"api_base" env:"API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"PROXY"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Discord  DiscordConfig  `json:"discord"`
}

type WhatsAppConfig struct {
	Enabled            bool    `json:"enabled" env:"LEADBOT_CHANNELS_WHATSAPP_ENABLED"`
	APIURL             string  `json:"api_url" env:"LEADBOT_CHANNELS_WHATSAPP_API_URL"`
	InstanceID         string  `json:"instance_id" env:"LEADBOT_CHANNELS_WHATSAPP_INSTANCE_ID"`
	APIToken           string  `json:"api_token" env:"LEADBOT_CHANNELS_WHATSAPP_API_TOKEN"`
	Polling            bool    `json:"polling" env:"LEADBOT_CHANNELS_WHATSAPP_POLLING"`
	ReceiveTimeoutSecs int     `json:"receive_timeout_seconds" env:"LEADBOT_CHANNELS_WHATSAPP_RECEIVE_TIMEOUT_SECONDS"`
	SendRatePerSecond  float64 `json:"send_rate_per_second" env:"LEADBOT_CHANNELS_WHATSAPP_SEND_RATE_PER_SECOND"`
	SendBurst          int     `json:"send_burst" env:"LEADBOT_CHANNELS_WHATSAPP_SEND_BURST"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled" env:"LEADBOT_CHANNELS_DISCORD_ENABLED"`
	Token   string `json:"token" env:"LEADBOT_CHANNELS_DISCORD_TOKEN"`
}

type LeadsConfig struct {
	Driver          string `json:"driver" env:"LEADBOT_LEADS_DRIVER"`
	SheetID         string `json:"sheet_id" env:"LEADBOT_LEADS_SHEET_ID"`
	SheetTab        string `json:"sheet_tab" env:"LEADBOT_LEADS_SHEET_TAB"`
	CredentialsFile string `json:"credentials_file" env:"LEADBOT_LEADS_CREDENTIALS_FILE"`
	SQLitePath      string `json:"sqlite_path" env:"LEADBOT_LEADS_SQLITE_PATH"`
}

type NotifyConfig struct {
	OperatorChatID   string `json:"operator_chat_id" env:"LEADBOT_NOTIFY_OPERATOR_CHAT_ID"`
	DiscordChannelID string `json:"discord_channel_id" env:"LEADBOT_NOTIFY_DISCORD_CHANNEL_ID"`
}

type EventsConfig struct {
	AMQPURL  string `json:"amqp_url" env:"LEADBOT_EVENTS_AMQP_URL"`
	Exchange string `json:"exchange" env:"LEADBOT_EVENTS_EXCHANGE"`
	Source   string `json:"source" env:"LEADBOT_EVENTS_SOURCE"`
}

type GatewayConfig struct {
	Host         string `json:"host" env:"LEADBOT_GATEWAY_HOST"`
	Port         int    `json:"port" env:"LEADBOT_GATEWAY_PORT"`
	WebhookToken string `json:"webhook_token" env:"LEADBOT_GATEWAY_WEBHOOK_TOKEN"`
}

type FollowupConfig struct {
	Enabled  bool   `json:"enabled" env:"LEADBOT_FOLLOWUP_ENABLED"`
	Schedule string `json:"schedule" env:"LEADBOT_FOLLOWUP_SCHEDULE"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LEADBOT_LOG_LEVEL"`
	Format string `json:"format" env:"LEADBOT_LOG_FORMAT"`
	File   string `json:"file" env:"LEADBOT_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			BatchWaitSeconds:     4,
			SweepIntervalSeconds: 30,
			SweepWindowMinutes:   5,
			MaxTrackedMessages:   500,
			MaxHistoryTurns:      40,
			HistoryFetchLimit:    30,
			AnalysisEvery:        2,
			TurnTimeoutSeconds:   180,
			GroupSuffix:          "@g.us",
			ExcludedNumbers:      FlexibleStringSlice{},
			StopKeywords:         []string{"stop", "סטופ", "עצור"},
			TimeZone:             "Asia/Bangkok",
			SweepEnabled:         true,
		},
		Model: ModelConfig{
			Provider:          "anthropic",
			Name:              "claude-sonnet-4-5-20250929",
			MaxTokens:         4096,
			Temperature:       0.7,
			AnalysisMaxTokens: 500,
			AnalysisTemp:      0.2,
			InputCostPerMTok:  3.0,
			OutputCostPerMTok: 15.0,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled:            true,
				APIURL:             "https://api.green-api.com",
				Polling:            true,
				ReceiveTimeoutSecs: 20,
				SendRatePerSecond:  2,
				SendBurst:          3,
			},
		},
		Leads: LeadsConfig{
			Driver:     "sqlite",
			SheetTab:   "Leads",
			SQLitePath: "~/.leadbot/leads.db",
		},
		Events: EventsConfig{
			Exchange: "leadbot.events",
			Source:   "leadbot",
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18790,
		},
		Followup: FollowupConfig{
			Enabled:  false,
			Schedule: "0 9 * * *",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig layers defaults, the JSON file at path (when present), a .env
// file in the working directory and finally the process environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) BatchWait() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Bot.BatchWaitSeconds * float64(time.Second))
}

func (c *Config) SweepInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Bot.SweepIntervalSeconds) * time.Second
}

func (c *Config) SweepWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Bot.SweepWindowMinutes) * time.Minute
}

func (c *Config) TurnTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Bot.TurnTimeoutSeconds) * time.Second
}

// Location resolves the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	c.mu.RLock()
	name := strings.TrimSpace(c.Bot.TimeZone)
	c.mu.RUnlock()
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) SQLitePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Leads.SQLitePath)
}

func ExpandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
