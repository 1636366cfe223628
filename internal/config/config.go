// Package config 載入服務設定：預設值 → 設定檔 → COVEY_ 環境變數 → 命令列參數。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 環境變數前綴，例如 COVEY_VIDEO_APIKEYSECRET
const EnvPrefix = "COVEY"

type LogConf struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RoomConf struct {
	MaxOccupancy int `mapstructure:"maxOccupancy"`
}

type VideoConf struct {
	AccountSID   string        `mapstructure:"accountSID"`
	APIKeySID    string        `mapstructure:"apiKeySID"`
	APIKeySecret string        `mapstructure:"apiKeySecret"`
	TokenTTL     time.Duration `mapstructure:"tokenTTL"`
}

type WebSocketConf struct {
	SendBuffer int `mapstructure:"sendBuffer"`
}

// Config 服務設定
type Config struct {
	Port       int           `mapstructure:"port"`
	MetricPort int           `mapstructure:"metricPort"` // 0 表示不啟動監控
	Log        LogConf       `mapstructure:"log"`
	Room       RoomConf      `mapstructure:"room"`
	Video      VideoConf     `mapstructure:"video"`
	WebSocket  WebSocketConf `mapstructure:"websocket"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8081)
	v.SetDefault("metricPort", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("room.maxOccupancy", 50)
	// 空字串預設值讓 AutomaticEnv 在 Unmarshal 時也能找到這些鍵
	v.SetDefault("video.accountSID", "")
	v.SetDefault("video.apiKeySID", "")
	v.SetDefault("video.apiKeySecret", "")
	v.SetDefault("video.tokenTTL", time.Hour)
	v.SetDefault("websocket.sendBuffer", 256)
}

// Load 讀取設定
//
// configFile 為空時只使用預設值與環境變數；flags 中有變更的參數優先。
// flag 名稱與設定鍵相同（例如 --log.level）。
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(configFile, flags)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch 監看設定檔，內容變更且通過驗證時呼叫 onChange
//
// 無效的新內容只記錄在 onError，不影響目前的設定。
func Watch(configFile string, flags *pflag.FlagSet, onChange func(*Config), onError func(error)) error {
	if configFile == "" {
		return errors.New("沒有設定檔可監看")
	}
	v, err := newViper(configFile, flags)
	if err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("重新載入 %s 失敗: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(configFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("讀取設定檔失敗: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("綁定命令列參數失敗: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析設定失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 檢查設定
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("無效的端口: %d", c.Port)
	}
	if c.MetricPort < 0 || c.MetricPort > 65535 {
		return fmt.Errorf("無效的監控端口: %d", c.MetricPort)
	}
	if c.Room.MaxOccupancy <= 0 {
		return errors.New("room.maxOccupancy 必須大於 0")
	}
	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("無效的日誌格式: %s", c.Log.Format)
	}
	return nil
}

// VideoConfigured 是否提供了完整的影音服務憑證
func (c *Config) VideoConfigured() bool {
	return c.Video.AccountSID != "" && c.Video.APIKeySID != "" && c.Video.APIKeySecret != ""
}
