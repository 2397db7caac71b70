package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env               string        `env:"ENV,default=dev"`
	BotToken          string        `env:"BOT_TOKEN,required"`
	QueuePath         string        `env:"QUEUE_DB,default=herald.db"`
	PollInterval      time.Duration `env:"POLL_INTERVAL,default=10s"`
	DefaultApproverID string        `env:"DEFAULT_APPROVER_ID"`
	Server            struct {
		Port        string `env:"PORT,default=8080"`
		MetricsPort string `env:"METRICS_PORT,default=8081"`
	}
	Telegram struct {
		UseWebhook    bool   `env:"TELEGRAM_USE_WEBHOOK,default=false"`
		WebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`
	}
}

func Load() (*Config, error) {
	config := &Config{}
	if err := envconfig.Process(context.Background(), config); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}
