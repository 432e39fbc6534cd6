package settings

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// consts
const (
	Name = "BizFlow"
)

// Config ...
type Config struct {
	Name        string `ignored:"true"`
	Version     string `ignored:"true"`
	Environment string `envconfig:"environment" default:"development"`
	HTTPListen  string `envconfig:"HTTP_LISTEN" default:":5001"`
	RedisURI    string `envconfig:"redis_uri" default:"redis://localhost:6379/1"`

	XaiAPIKey      string        `envconfig:"XAI_API_KEY"`
	XaiBaseURL     string        `envconfig:"XAI_BASE_URL" default:"https://api.x.ai/v1"`
	ChatModel      string        `envconfig:"chat_model" default:"grok-4-1-fast"`
	ChatTemp       float32       `envconfig:"chat_temperature" default:"0.7"`
	ChatMaxTokens  int           `envconfig:"chat_max_tokens" default:"1024"`
	StreamIdleTime time.Duration `envconfig:"stream_idle_timeout" default:"120s"`

	RateLimit   string `envconfig:"rate_limit" default:"60-M"`
	HistorySave bool   `envconfig:"history_save" default:"true"`
	PresetFile  string `envconfig:"preset_file"`
}

var (
	// Current 当前配置
	Current = new(Config)
)

func init() {
	if err := envconfig.Process(Name, Current); err != nil {
		log.Printf("envconfig process fail: %s", err)
	}

	Current.Name = Name
	Current.Version = version
}

// Usage 打印配置帮助
func Usage() error {
	log.Printf("ver: %s", Current.Version)
	return envconfig.Usage(Current.Name, Current)
}

// InDevelop ...
func InDevelop() bool {
	return strings.HasPrefix(Current.Environment, "dev")
}
