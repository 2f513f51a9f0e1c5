package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds catalogue, delivery and pipeline settings.
// Load from env and/or a .env file (see LoadEnvFile).
type Config struct {
	// Catalogue API
	APIBaseURL      string // e.g. https://api.example.org/api/v1
	PreferredServer string // source server to request, e.g. "hd-2"
	SubtitleMatch   string // "label" | "lang": how English subtitle tracks are recognized
	HTTPTimeout     time.Duration

	// Chat delivery
	BotToken    string // primary chat channel credential
	LargeTarget string // identity the large-file sink delivers to, e.g. "me"

	// Pipeline
	WorkDir          string        // root for per-conversation working dirs; artifacts are transient
	SmallFileLimit   int64         // bytes; files over this go to the large sink
	ProgressInterval time.Duration // minimum gap between progress edits

	// Networking
	SOCKSProxy  string // host:port of a SOCKS5 proxy; "" = direct
	MetricsAddr string // Prometheus listen address; "" = metrics disabled
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load()
// to use a .env file. If BotToken is empty, Load tries
// ANIME_COURIER_TOKEN_FILE with a "Token:" line.
func Load() *Config {
	c := &Config{
		APIBaseURL:       os.Getenv("ANIME_COURIER_API_URL"),
		PreferredServer:  getEnv("ANIME_COURIER_SERVER", "hd-2"),
		SubtitleMatch:    getEnvMatchMode("ANIME_COURIER_SUBTITLE_MATCH", "label"),
		HTTPTimeout:      getEnvDuration("ANIME_COURIER_HTTP_TIMEOUT", 30*time.Second),
		BotToken:         os.Getenv("ANIME_COURIER_BOT_TOKEN"),
		LargeTarget:      getEnv("ANIME_COURIER_LARGE_TARGET", "me"),
		WorkDir:          getEnv("ANIME_COURIER_WORK_DIR", "./downloads"),
		SmallFileLimit:   getEnvInt64("ANIME_COURIER_SMALL_FILE_LIMIT", 50<<20),
		ProgressInterval: getEnvDuration("ANIME_COURIER_PROGRESS_INTERVAL", 3*time.Second),
		SOCKSProxy:       os.Getenv("ANIME_COURIER_SOCKS_PROXY"),
		MetricsAddr:      os.Getenv("ANIME_COURIER_METRICS_ADDR"),
	}
	if c.SmallFileLimit <= 0 {
		c.SmallFileLimit = 50 << 20
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = 3 * time.Second
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.BotToken == "" {
		if token, err := readTokenFile(os.Getenv("ANIME_COURIER_TOKEN_FILE")); err == nil {
			c.BotToken = token
		}
	}
	return c
}

// readTokenFile reads a "Token: x" line (or a bare single-line token) from
// path, so the credential can live outside the environment.
func readTokenFile(path string) (string, error) {
	if path == "" {
		return "", os.ErrNotExist
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close()
	var bare string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "Token:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Token:")), nil
		}
		if bare == "" {
			bare = line
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if bare == "" {
		return "", os.ErrNotExist
	}
	return bare, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvMatchMode returns "label" or "lang"; anything else falls back to the
// default.
func getEnvMatchMode(key, defaultVal string) string {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "label":
		return "label"
	case "lang":
		return "lang"
	}
	return defaultVal
}
