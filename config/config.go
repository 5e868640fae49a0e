package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Secret string `yaml:"secret" json:"secret"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
}

// BotConfig configures the WhatsApp gateway. Device is the push name used when
// pairing a fresh device.
type BotConfig struct {
	Device string `yaml:"device" json:"device"`
}

// OcrConfig configures the external OCR endpoint used for barcode recognition.
type OcrConfig struct {
	Url     string `yaml:"url" json:"url"`
	Apikey  string `yaml:"apikey" json:"apikey"`
	Engine  string `yaml:"engine" json:"engine"`
	Timeout int    `yaml:"timeout" json:"timeout"` // seconds
	Retries int    `yaml:"retries" json:"retries"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig `yaml:"system" json:"system"`
	Web      WebConfig `yaml:"web" json:"web"`
	Database DBConfig  `yaml:"database" json:"database"`
	Bot      BotConfig `yaml:"bot" json:"bot"`
	Ocr      OcrConfig `yaml:"ocr" json:"ocr"`
	Logger   LogConfig `yaml:"logger" json:"logger"`
}

func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

func (c *AppConfig) InitDirs() error {
	for _, dir := range []string{c.System.Workdir, c.GetLogDir(), c.GetDataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (c *OcrConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "shopbot",
		Location: "Asia/Jakarta",
		Workdir:  "/var/shopbot",
		Debug:    true,
	},
	Web: WebConfig{
		Host:   "0.0.0.0",
		Port:   1890,
		Secret: "9b6de5cc-shopbot-1890-b67c-0f48aa1b22fd",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "shopbot",
		User:     "postgres",
		Passwd:   "myroot",
		MaxConn:  100,
		IdleConn: 10,
	},
	Bot: BotConfig{
		Device: "shopbot",
	},
	Ocr: OcrConfig{
		Url:     "https://api.ocr.space/parse/image",
		Engine:  "2",
		Timeout: 30,
		Retries: 3,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/shopbot/shopbot.log",
	},
}

func setEnvValue(name string, f func(v string)) {
	var evalue = os.Getenv(name)
	if evalue != "" {
		f(evalue)
	}
}

func setEnvInt64Value(name string, f func(v int64)) {
	var evalue = os.Getenv(name)
	if evalue == "" {
		return
	}
	p, err := strconv.ParseInt(evalue, 10, 64)
	if err == nil {
		f(p)
	}
}

// LoadConfig reads the yaml configuration file and applies environment
// overrides. A missing file falls back to DefaultAppConfig so the container
// image can be configured from the environment alone.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	if cfile != "" {
		if _, err := os.Stat(cfile); err == nil {
			data, err := os.ReadFile(cfile)
			if err != nil {
				panic(err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				panic(err)
			}
		}
	}
	if cfg.System.Appid == "" {
		cfg = DefaultAppConfig
	}

	setEnvValue("SHOPBOT_SYSTEM_WORKDIR", func(v string) { cfg.System.Workdir = v })
	setEnvValue("SHOPBOT_SYSTEM_LOCATION", func(v string) { cfg.System.Location = v })
	setEnvValue("SHOPBOT_SYSTEM_DEBUG", func(v string) { cfg.System.Debug = v == "true" })

	setEnvValue("SHOPBOT_WEB_HOST", func(v string) { cfg.Web.Host = v })
	setEnvInt64Value("SHOPBOT_WEB_PORT", func(v int64) { cfg.Web.Port = int(v) })
	setEnvValue("SHOPBOT_WEB_SECRET", func(v string) { cfg.Web.Secret = v })

	setEnvValue("SHOPBOT_DB_TYPE", func(v string) { cfg.Database.Type = v })
	setEnvValue("SHOPBOT_DB_HOST", func(v string) { cfg.Database.Host = v })
	setEnvInt64Value("SHOPBOT_DB_PORT", func(v int64) { cfg.Database.Port = int(v) })
	setEnvValue("SHOPBOT_DB_NAME", func(v string) { cfg.Database.Name = v })
	setEnvValue("SHOPBOT_DB_USER", func(v string) { cfg.Database.User = v })
	setEnvValue("SHOPBOT_DB_PWD", func(v string) { cfg.Database.Passwd = v })

	setEnvValue("SHOPBOT_BOT_DEVICE", func(v string) { cfg.Bot.Device = v })

	setEnvValue("SHOPBOT_OCR_URL", func(v string) { cfg.Ocr.Url = v })
	setEnvValue("SHOPBOT_OCR_APIKEY", func(v string) { cfg.Ocr.Apikey = v })
	setEnvValue("SHOPBOT_OCR_ENGINE", func(v string) { cfg.Ocr.Engine = v })
	setEnvInt64Value("SHOPBOT_OCR_TIMEOUT", func(v int64) { cfg.Ocr.Timeout = int(v) })
	setEnvInt64Value("SHOPBOT_OCR_RETRIES", func(v int64) { cfg.Ocr.Retries = int(v) })

	setEnvValue("SHOPBOT_LOGGER_MODE", func(v string) { cfg.Logger.Mode = v })

	return cfg
}

// Validate checks the credentials the process cannot run without.
func (c *AppConfig) Validate() error {
	if c.Database.Name == "" || c.Database.User == "" {
		return fmt.Errorf("database connection is not configured")
	}
	if c.Ocr.Apikey == "" {
		return fmt.Errorf("ocr apikey is not configured")
	}
	return nil
}
