package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		AppName  string

		Client ClientConfig
		Server ServerConfig

		RollbarToken string
	}

	// ClientConfig drives the sync engine and its local persistence.
	ClientConfig struct {
		EndpointURL     string
		RequestTimeout  time.Duration
		MaxPushAttempts int
		DrainEvery      time.Duration
		PersistEvery    time.Duration
		CleanupEvery    time.Duration

		DataDir     string
		SnapshotKey string
		QueueKey    string
		SessionKey  string
	}

	// ServerConfig drives the development endpoint emulator.
	ServerConfig struct {
		Addr                 string
		AdminUsername        string
		AdminPasswordHash    string
		SecretKey            string
		TokenExpirationDelta time.Duration

		Database DatabaseConfig
	}

	DatabaseConfig struct {
		Engine     string
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// LoadConfig reads configuration from defaults, an optional config/.env.<env>
// file and ENV-prefixed environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("client.endpointUrl", "")
	v.SetDefault("client.requestTimeout", 10*time.Second)
	v.SetDefault("client.maxPushAttempts", 3)
	v.SetDefault("client.drainEvery", 2*time.Minute)
	v.SetDefault("client.persistEvery", time.Minute)
	v.SetDefault("client.cleanupEvery", 5*time.Minute)
	v.SetDefault("client.dataDir", filepath.Join(Getwd(), ".darasa"))
	v.SetDefault("client.snapshotKey", "data_backup")
	v.SetDefault("client.queueKey", "sync_queue")
	v.SetDefault("client.sessionKey", "admin_session")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.adminUsername", "admin")
	v.SetDefault("server.adminPasswordHash", "")
	v.SetDefault("server.secretKey", "x#0q-kz&7s!dz2(h4x)w*c8(#yg5h^$cegm9emy+darasa")
	v.SetDefault("server.tokenExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.database.engine", "postgres")
	v.SetDefault("server.database.host", "localhost")
	v.SetDefault("server.database.port", "5432")
	v.SetDefault("server.database.name", "darasa")
	v.SetDefault("server.database.user", "")
	v.SetDefault("server.database.password", "")
	v.SetDefault("server.database.disableTls", true)
	v.SetDefault("rollbarToken", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}
