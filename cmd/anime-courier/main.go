// Command anime-courier: look up titles on the catalogue API and run the
// episode pipeline (stream extraction, download cascade, delivery).
//
//	search    Search the catalogue and print matching titles
//	episodes  Print the episode list for a title slug
//	fetch     Run the full pipeline for one episode id, or every episode
//	          of a slug with -all. With ANIME_COURIER_BOT_TOKEN set the
//	          result is delivered to -chat; otherwise files stay in the
//	          work dir.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/animecourier/anime-courier/internal/catalogue"
	"github.com/animecourier/anime-courier/internal/config"
	"github.com/animecourier/anime-courier/internal/delivery"
	"github.com/animecourier/anime-courier/internal/health"
	"github.com/animecourier/anime-courier/internal/httpclient"
	"github.com/animecourier/anime-courier/internal/materializer"
	"github.com/animecourier/anime-courier/internal/orchestrator"
	"github.com/animecourier/anime-courier/internal/progress"
	"github.com/animecourier/anime-courier/internal/session"
	"github.com/animecourier/anime-courier/internal/subtitle"
	"github.com/animecourier/anime-courier/internal/telegram"
)

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[anime-courier] ")

	fetchCmd := flag.NewFlagSet("fetch", flag.ExitOnError)
	fetchAll := fetchCmd.Bool("all", false, "Treat the argument as a title slug and fetch every episode sequentially")
	fetchChat := fetchCmd.Int64("chat", 0, "Conversation id to deliver to (default: ANIME_COURIER_CHAT_ID)")
	fetchMetricsAddr := fetchCmd.String("metrics-addr", "", "Serve Prometheus /metrics on this address (default: ANIME_COURIER_METRICS_ADDR)")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <search|episodes|fetch> [flags] <arg>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  search <query>            Search the catalogue, print title slugs\n")
		fmt.Fprintf(os.Stderr, "  episodes <slug>           Print the episode list for a title\n")
		fmt.Fprintf(os.Stderr, "  fetch <episodeId>         Run the pipeline for one episode\n")
		fmt.Fprintf(os.Stderr, "  fetch -all <slug>         Run the pipeline for every episode of a title\n")
		os.Exit(1)
	}

	cfg := config.Load()
	if cfg.SOCKSProxy != "" {
		if err := httpclient.SetSOCKSProxy(cfg.SOCKSProxy); err != nil {
			log.Printf("SOCKS proxy %q: %v", cfg.SOCKSProxy, err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &catalogue.Client{
		BaseURL:         cfg.APIBaseURL,
		HTTP:            httpclient.WithTimeout(cfg.HTTPTimeout),
		PreferredServer: cfg.PreferredServer,
		SubtitleMatch:   catalogue.SubtitleMatch(cfg.SubtitleMatch),
	}

	switch os.Args[1] {
	case "search":
		query := strings.Join(os.Args[2:], " ")
		if query == "" {
			log.Printf("search: need a query")
			os.Exit(1)
		}
		titles, err := client.Search(ctx, query)
		if err != nil {
			log.Printf("Search failed: %v", err)
			os.Exit(1)
		}
		if len(titles) == 0 {
			fmt.Println("No results.")
			return
		}
		for i, title := range titles {
			fmt.Printf("%2d. %s  (%s)\n", i+1, title.DisplayName, title.Slug)
		}

	case "episodes":
		if len(os.Args) < 3 {
			log.Printf("episodes: need a title slug")
			os.Exit(1)
		}
		eps, err := client.ListEpisodes(ctx, os.Args[2])
		if err != nil {
			log.Printf("List episodes failed: %v", err)
			os.Exit(1)
		}
		for _, ep := range eps {
			fmt.Printf("Episode %-6s %s\n", ep.Number, ep.ID)
		}

	case "fetch":
		_ = fetchCmd.Parse(os.Args[2:])
		if fetchCmd.NArg() < 1 {
			log.Printf("fetch: need an episode id (or a slug with -all)")
			os.Exit(1)
		}
		arg := fetchCmd.Arg(0)

		metricsAddr := *fetchMetricsAddr
		if metricsAddr == "" {
			metricsAddr = cfg.MetricsAddr
		}
		if metricsAddr != "" {
			go serveMetrics(metricsAddr)
		}

		// Preflight is advisory: a flaky upstream may still serve the fetch.
		if err := health.CheckCatalogue(ctx, cfg.APIBaseURL); err != nil {
			log.Printf("Catalogue preflight: %v", err)
		}

		eps, err := episodesForFetch(ctx, client, arg, *fetchAll)
		if err != nil {
			log.Printf("Fetch failed: %v", err)
			os.Exit(1)
		}

		if cfg.BotToken != "" {
			chat := *fetchChat
			if chat == 0 {
				chat = envChatID()
			}
			if chat == 0 {
				log.Printf("fetch: bot token set but no -chat / ANIME_COURIER_CHAT_ID")
				os.Exit(1)
			}
			fetchToChat(ctx, cfg, client, chat, eps)
			return
		}
		fetchToDisk(ctx, cfg, client, eps)

	default:
		log.Printf("Unknown command %q", os.Args[1])
		os.Exit(1)
	}
}

// episodesForFetch resolves the fetch argument to concrete episode refs:
// every episode of the slug with all, else the single id. The episode number
// for a bare id comes from its "?ep=N" suffix.
func episodesForFetch(ctx context.Context, client *catalogue.Client, arg string, all bool) ([]catalogue.EpisodeRef, error) {
	if all {
		eps, err := client.ListEpisodes(ctx, arg)
		if err != nil {
			return nil, err
		}
		if len(eps) == 0 {
			return nil, fmt.Errorf("no episodes for %q", arg)
		}
		return eps, nil
	}
	return []catalogue.EpisodeRef{{Number: episodeNumberFromID(arg), ID: arg}}, nil
}

// episodeNumberFromID extracts N from "<slug>?ep=N", falling back to "1".
func episodeNumberFromID(id string) string {
	if _, n, ok := strings.Cut(id, "?ep="); ok && n != "" {
		return n
	}
	return "1"
}

func envChatID() int64 {
	var n int64
	fmt.Sscanf(os.Getenv("ANIME_COURIER_CHAT_ID"), "%d", &n)
	return n
}

// fetchToChat runs each episode through the orchestrator, delivering to the
// conversation. Sequential like the bot's "download all".
func fetchToChat(ctx context.Context, cfg *config.Config, client *catalogue.Client, chat int64, eps []catalogue.EpisodeRef) {
	bot := &telegram.Bot{Token: cfg.BotToken}
	o := &orchestrator.Orchestrator{
		Resolver:     client,
		Materializer: &materializer.Materializer{ProgressInterval: cfg.ProgressInterval},
		Subtitles:    orchestrator.DefaultSubtitleFetcher,
		Router: &delivery.Router{
			Notifier:         bot,
			LargeTarget:      cfg.LargeTarget,
			SmallFileLimit:   cfg.SmallFileLimit,
			ProgressInterval: cfg.ProgressInterval,
		},
		Notifier: bot,
		Sessions: session.NewStore(),
		WorkDir:  cfg.WorkDir,
	}
	for _, ep := range eps {
		if ctx.Err() != nil {
			log.Printf("Interrupted, stopping after Episode %s", ep.Number)
			return
		}
		res := o.ProcessEpisode(ctx, chat, ep)
		log.Printf("Episode %s: %s", ep.Number, res)
	}
}

// fetchToDisk runs the pipeline without a chat channel: files land in the
// work dir and stay there.
func fetchToDisk(ctx context.Context, cfg *config.Config, client *catalogue.Client, eps []catalogue.EpisodeRef) {
	m := &materializer.Materializer{ProgressInterval: cfg.ProgressInterval}
	destDir := filepath.Join(cfg.WorkDir, "videos")
	subDir := filepath.Join(cfg.WorkDir, "subtitles")
	obs := progress.ObserverFunc(func(e progress.Event) {
		line := fmt.Sprintf("Downloaded %d bytes", e.Bytes)
		if e.Percent != progress.Unknown {
			line += fmt.Sprintf(" (%.1f%%)", e.Percent)
		}
		log.Print(line)
	})

	failed := 0
	for _, ep := range eps {
		if ctx.Err() != nil {
			log.Printf("Interrupted, stopping after Episode %s", ep.Number)
			break
		}
		manifest, err := client.ResolveStream(ctx, ep.ID)
		if err != nil {
			log.Printf("Episode %s: resolve failed: %v", ep.Number, err)
			failed++
			continue
		}
		if manifest.StreamURL == "" {
			log.Printf("Episode %s: no stream found", ep.Number)
			failed++
			continue
		}
		path, err := m.Materialize(ctx, manifest.StreamURL, ep.Number, destDir, obs)
		if err != nil {
			log.Printf("Episode %s: download failed: %v (stream: %s)", ep.Number, err, manifest.StreamURL)
			failed++
			continue
		}
		fmt.Println(path)
		if manifest.SubtitleURL != "" {
			subPath, err := subtitle.Fetch(ctx, nil, manifest.SubtitleURL, ep.Number, subDir)
			if err != nil {
				log.Printf("Episode %s: subtitle download failed: %v", ep.Number, err)
			} else {
				fmt.Println(subPath)
			}
		}
	}
	if failed > 0 {
		log.Printf("%d of %d episode(s) failed", failed, len(eps))
		os.Exit(1)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("Metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics listener: %v", err)
	}
}
