package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.PreferredServer != "hd-2" {
		t.Errorf("PreferredServer = %q, want hd-2", c.PreferredServer)
	}
	if c.SubtitleMatch != "label" {
		t.Errorf("SubtitleMatch = %q, want label", c.SubtitleMatch)
	}
	if c.SmallFileLimit != 50<<20 {
		t.Errorf("SmallFileLimit = %d, want %d", c.SmallFileLimit, 50<<20)
	}
	if c.ProgressInterval != 3*time.Second {
		t.Errorf("ProgressInterval = %v, want 3s", c.ProgressInterval)
	}
	if c.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", c.HTTPTimeout)
	}
	if c.LargeTarget != "me" {
		t.Errorf("LargeTarget = %q, want me", c.LargeTarget)
	}
	if c.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want disabled", c.MetricsAddr)
	}
}

func TestLoad_overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("ANIME_COURIER_API_URL", "https://api.host/api/v1")
	os.Setenv("ANIME_COURIER_SERVER", "hd-1")
	os.Setenv("ANIME_COURIER_SUBTITLE_MATCH", "LANG")
	os.Setenv("ANIME_COURIER_SMALL_FILE_LIMIT", "1048576")
	os.Setenv("ANIME_COURIER_PROGRESS_INTERVAL", "5s")
	c := Load()
	if c.APIBaseURL != "https://api.host/api/v1" {
		t.Errorf("APIBaseURL = %q", c.APIBaseURL)
	}
	if c.PreferredServer != "hd-1" {
		t.Errorf("PreferredServer = %q", c.PreferredServer)
	}
	if c.SubtitleMatch != "lang" {
		t.Errorf("SubtitleMatch = %q, want lang", c.SubtitleMatch)
	}
	if c.SmallFileLimit != 1<<20 {
		t.Errorf("SmallFileLimit = %d", c.SmallFileLimit)
	}
	if c.ProgressInterval != 5*time.Second {
		t.Errorf("ProgressInterval = %v", c.ProgressInterval)
	}
}

func TestLoad_badValuesFallBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("ANIME_COURIER_SUBTITLE_MATCH", "fuzzy")
	os.Setenv("ANIME_COURIER_PROGRESS_INTERVAL", "not-a-duration")
	os.Setenv("ANIME_COURIER_SMALL_FILE_LIMIT", "-5")
	c := Load()
	if c.SubtitleMatch != "label" {
		t.Errorf("SubtitleMatch = %q, want label fallback", c.SubtitleMatch)
	}
	if c.ProgressInterval != 3*time.Second {
		t.Errorf("ProgressInterval = %v, want 3s fallback", c.ProgressInterval)
	}
	if c.SmallFileLimit != 50<<20 {
		t.Errorf("SmallFileLimit = %d, want default", c.SmallFileLimit)
	}
}

func TestLoad_tokenFile(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "token.txt")
	if err := os.WriteFile(path, []byte("# bot credential\nToken: 123:abc\n"), 0600); err != nil {
		t.Fatal(err)
	}
	os.Setenv("ANIME_COURIER_TOKEN_FILE", path)
	c := Load()
	if c.BotToken != "123:abc" {
		t.Errorf("BotToken = %q, want 123:abc", c.BotToken)
	}
}

func TestLoad_envTokenWinsOverFile(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "token.txt")
	if err := os.WriteFile(path, []byte("999:zzz\n"), 0600); err != nil {
		t.Fatal(err)
	}
	os.Setenv("ANIME_COURIER_TOKEN_FILE", path)
	os.Setenv("ANIME_COURIER_BOT_TOKEN", "111:aaa")
	c := Load()
	if c.BotToken != "111:aaa" {
		t.Errorf("BotToken = %q, want env value", c.BotToken)
	}
}

func TestReadTokenFile_bareToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.txt")
	if err := os.WriteFile(path, []byte("123:abc\n"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := readTokenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "123:abc" {
		t.Errorf("readTokenFile() = %q", got)
	}
}

func TestLoadEnvFile_missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nonexistent")); err != nil {
		t.Fatalf("missing file should return nil: %v", err)
	}
}

func TestLoadEnvFile_setsEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	data := "ANIME_COURIER_SERVER=hd-1\n# comment\nANIME_COURIER_LARGE_TARGET=\"chat 42\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("ANIME_COURIER_SERVER") != "hd-1" {
		t.Errorf("ANIME_COURIER_SERVER = %q", os.Getenv("ANIME_COURIER_SERVER"))
	}
	if os.Getenv("ANIME_COURIER_LARGE_TARGET") != "chat 42" {
		t.Errorf("quoted value = %q", os.Getenv("ANIME_COURIER_LARGE_TARGET"))
	}
}
