package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/koopa0/system-design/covey-rooms/internal"
	"github.com/koopa0/system-design/covey-rooms/internal/config"
	"github.com/koopa0/system-design/covey-rooms/internal/monitor"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "covey-rooms",
	Short: "房間協調服務",
	Long:  `房間協調服務：房間註冊表、玩家 session 與 WebSocket 事件訂閱`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		return run(cfg, cmd.Flags())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "設定檔路徑（yaml/toml/json）")
	rootCmd.Flags().Int("port", 8081, "服務器端口")
	rootCmd.Flags().Int("metricPort", 0, "statsviz 監控端口（0 不啟動）")
	rootCmd.Flags().String("log.level", "info", "日誌級別 (debug, info, warn, error)")
	rootCmd.Flags().String("log.format", "text", "日誌格式 (text, json, pretty)")
	rootCmd.Flags().Int("room.maxOccupancy", internal.DefaultMaxOccupancy, "每房間最大玩家數")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, flags *pflag.FlagSet) error {
	logger, setLevel := setupLogger(cfg.Log.Level, cfg.Log.Format)

	// 設定檔變更時只熱更新日誌級別，其他欄位需要重啟
	if configFile != "" {
		err := config.Watch(configFile, flags,
			func(c *config.Config) {
				setLevel(c.Log.Level)
				logger.Info("日誌級別已更新", "level", c.Log.Level)
			},
			func(err error) {
				logger.Warn("設定檔重新載入失敗", "error", err)
			})
		if err != nil {
			logger.Warn("無法監看設定檔", "error", err)
		}
	}

	video, err := setupVideoProvider(cfg, logger)
	if err != nil {
		return err
	}

	// 創建房間管理器
	manager := internal.NewManager(video, logger, internal.WithMaxOccupancy(cfg.Room.MaxOccupancy))

	// 創建 HTTP 處理器
	handler := internal.NewHandler(manager, logger)

	// 創建 WebSocket Hub
	wsHub := internal.NewWebSocketHub(manager, logger, cfg.WebSocket.SendBuffer)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws", wsHub.ServeWS)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricServer *http.Server
	if cfg.MetricPort > 0 {
		metricServer, err = monitor.NewServer(cfg.MetricPort)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("啟動監控", "url", fmt.Sprintf("http://localhost:%d%s", cfg.MetricPort, monitor.Path))
			if err := metricServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("監控服務器失敗", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("房間服務器啟動",
			"port", cfg.Port,
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("收到關閉信號，開始優雅關閉...")
	case err := <-errCh:
		logger.Error("服務器啟動失敗", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}
	if metricServer != nil {
		_ = metricServer.Shutdown(ctx)
	}

	// 解散所有房間，訂閱者會收到 roomClosing
	manager.Stop()

	wsHub.Stop()

	logger.Info("服務器已關閉")
	return nil
}

// setupVideoProvider 沒有設定憑證時使用隨機金鑰，只適合本地開發
func setupVideoProvider(cfg *config.Config, logger *slog.Logger) (internal.VideoProvider, error) {
	if cfg.VideoConfigured() {
		return internal.NewJWTVideoProvider(
			cfg.Video.AccountSID,
			cfg.Video.APIKeySID,
			cfg.Video.APIKeySecret,
			cfg.Video.TokenTTL)
	}

	logger.Warn("未設定影音服務憑證，使用本地開發用金鑰")
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return internal.NewJWTVideoProvider("AC-dev", "SK-dev", hex.EncodeToString(secret), cfg.Video.TokenTTL)
}

// setupLogger 設置日誌
//
// 回傳的 setLevel 可在執行期調整級別。pretty 格式使用 charmbracelet/log
// 作為 slog handler，適合本地開發。
func setupLogger(level, format string) (*slog.Logger, func(string)) {
	if format == "pretty" {
		cl := charmlog.NewWithOptions(os.Stdout, charmlog.Options{
			Level:           charmlog.Level(parseLevel(level)),
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Prefix:          "covey",
		})
		return slog.New(cl), func(l string) {
			cl.SetLevel(charmlog.Level(parseLevel(l)))
		}
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(parseLevel(level))

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug", // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler), func(l string) {
		logLevel.Set(parseLevel(l))
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
