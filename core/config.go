package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (default), TEST, QA, PROD
	AppName  string
	WorkDir  string
	Build    string

	Server struct {
		Addr            string
		ShutdownTimeout time.Duration
	}

	// Backend is the content backend collaborator owning all durable
	// entities (trainings, overlays, frame configs, interaction logs).
	Backend struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	// Agent is the AI agent service reached over a duplex channel.
	Agent struct {
		URL string
		// two-tier reconnect backoff: Short applies until the first
		// successful open, Long afterwards.
		ReconnectShort time.Duration
		ReconnectLong  time.Duration
	}

	FrontendBaseURL       string
	DefaultFromEmail      mail.Address
	SendgridApiKey        string
	RollbarToken          string
	SendCompletionEmails  bool
	CompletionNotifyEmail string
}

// InitConf loads configuration from defaults, an optional config/.env.<env>
// file and environment variables (prefixed with the current env name).
func InitConf() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Elimu")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("shutdownTimeout", 10*time.Second)
	v.SetDefault("backendBaseURL", "http://localhost:9000/api")
	v.SetDefault("backendTimeout", 15*time.Second)
	v.SetDefault("agentURL", "ws://localhost:9100/agent")
	v.SetDefault("agentReconnectShort", 2*time.Second)
	v.SetDefault("agentReconnectLong", 10*time.Second)
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendCompletionEmails", false)

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd, _ := os.Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		Env:      env,
		AppName:  v.GetString("appName"),
		WorkDir:  wd,
		Build:    v.GetString("build"),

		FrontendBaseURL:       v.GetString("frontendBaseURL"),
		DefaultFromEmail:      mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:        v.GetString("sendgridApiKey"),
		RollbarToken:          v.GetString("rollbarToken"),
		SendCompletionEmails:  v.GetBool("sendCompletionEmails"),
		CompletionNotifyEmail: v.GetString("completionNotifyEmail"),
	}
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.ShutdownTimeout = v.GetDuration("shutdownTimeout")
	conf.Backend.BaseURL = v.GetString("backendBaseURL")
	conf.Backend.Token = v.GetString("backendToken")
	conf.Backend.Timeout = v.GetDuration("backendTimeout")
	conf.Agent.URL = v.GetString("agentURL")
	conf.Agent.ReconnectShort = v.GetDuration("agentReconnectShort")
	conf.Agent.ReconnectLong = v.GetDuration("agentReconnectLong")

	Conf = conf
	return conf
}
