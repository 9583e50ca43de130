package main

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/joho/godotenv/autoload"

	"github.com/dbytex91/addonx/internal/api"
	"github.com/dbytex91/addonx/internal/cinemeta"
	"github.com/dbytex91/addonx/internal/engine"
	"github.com/dbytex91/addonx/internal/store"
	"github.com/dbytex91/addonx/internal/transport"
)

type config struct {
	ListenAddr       string `env:"ADDONX_LISTEN_ADDR" envDefault:"127.0.0.1:7010"`
	DataDir          string `env:"ADDONX_DATA_DIR"`
	Profile          string `env:"ADDONX_PROFILE" envDefault:"default"`
	TorrentHelperURL string `env:"ADDONX_TORRENT_HELPER_URL"`
	MaxConcurrency   int    `env:"ADDONX_MAX_CONCURRENCY" envDefault:"8"`
	UserAgent        string `env:"ADDONX_USER_AGENT"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
}

var version = "1.0.0"

func main() {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetLevel(logLevel(cfg.LogLevel))

	var prefs store.Store = store.NewMemory()
	if cfg.DataDir != "" {
		badger, err := store.OpenBadger(cfg.DataDir)
		if err != nil {
			log.Fatalf("Failed to open the preference store at %s: %v", cfg.DataDir, err)
		}
		defer badger.Close()
		prefs = badger
	}

	var transportOpts []transport.Option
	if cfg.UserAgent != "" {
		transportOpts = append(transportOpts, transport.WithUserAgent(cfg.UserAgent))
	}
	tr := transport.New(transportOpts...)

	eng := engine.New(prefs,
		engine.WithTransport(tr),
		engine.WithProfile(cfg.Profile),
		engine.WithConcurrency(cfg.MaxConcurrency),
		engine.WithTorrentHelperURL(cfg.TorrentHelperURL),
		engine.WithMetadata(cinemeta.New(tr)),
	)

	app := fiber.New(fiber.Config{
		AppName:               "addonx " + version,
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(logger.New(logger.Config{
		Format:        "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat:    "15:04:05",
		TimeZone:      "Local",
		TimeInterval:  500 * time.Millisecond,
		Output:        os.Stdout,
		DisableColors: false,
	}))

	api.New(eng).Register(app)

	log.Infof("Starting addonx %s on %s (profile %s)", version, cfg.ListenAddr, eng.Profile())
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Errorf("Server stopped: %v", err)
	}
}

func logLevel(raw string) log.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
