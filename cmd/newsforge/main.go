package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsforge/newsforge/internal/article"
	"github.com/newsforge/newsforge/internal/config"
	"github.com/newsforge/newsforge/internal/fetch"
	"github.com/newsforge/newsforge/internal/generate"
	"github.com/newsforge/newsforge/internal/history"
	"github.com/newsforge/newsforge/internal/llm"
	"github.com/newsforge/newsforge/internal/server"
	"github.com/newsforge/newsforge/internal/sources"
	"github.com/newsforge/newsforge/internal/stock"
	"github.com/newsforge/newsforge/internal/suggest"
	"github.com/newsforge/newsforge/internal/workflow"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsforge",
	Short:   "AI-assisted article generation",
	Long:    "Newsforge turns a topic or document into a complete article: headline, body, sources, media, narration and social posts.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(socialCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsforge", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsforge/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure API keys, generation defaults and suggestion feeds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		articles, err := store.Load()
		if err != nil {
			return fmt.Errorf("loading archive: %w", err)
		}

		google := llm.EnvCredential{EnvVar: cfg.Backends.Google.APIKeyEnv}
		pexels := llm.EnvCredential{EnvVar: cfg.Backends.Pexels.APIKeyEnv}

		fmt.Printf("Archive: %d articles (%s)\n", len(articles), store.Path())
		fmt.Printf("Text/image/speech backend configured: %v\n", credOK(google))
		fmt.Printf("Stock media backend configured: %v\n", credOK(pexels))
		return nil
	},
}

var (
	genURL       string
	genFile      string
	genLanguage  string
	genLength    string
	genTone      string
	genAudience  string
	genFocus     string
	genQuotes    bool
	genStats     bool
	genCounter   bool
	genTimeFrame string
	genRegion    string
	genPrefer    []string
	genBlock     []string
	genVerified  bool
	genAudio     bool
	genNoMedia   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate a complete article from a topic, URL or file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctrl := workflow.New(buildOrchestrator(store), store)
		req, err := buildRequest(store, args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		log.Printf("Step 1/3: generating article text...")
		if err := ctrl.StartGeneration(ctx, req); err != nil {
			return fmt.Errorf("text stage: %w", err)
		}

		log.Printf("Step 2/3: gathering media...")
		if err := ctrl.ConfirmText(ctx, !genNoMedia); err != nil {
			return fmt.Errorf("media stage: %w", err)
		}

		log.Printf("Step 3/3: finalizing...")
		if err := ctrl.Finalize(ctx, genAudio); err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
		if msg := ctrl.Err(); msg != "" {
			log.Printf("Warning: %s", msg)
		}
		saveDefaults(store, req)

		a := ctrl.Article()
		fmt.Printf("\n%s\n", a.Title)
		fmt.Printf("  id:       %s\n", a.ID)
		fmt.Printf("  words:    %d (%d min read)\n", a.WordCount(), a.ReadTimeMinutes())
		fmt.Printf("  sources:  %d\n", len(a.Sources))
		fmt.Printf("  media:    %d\n", len(a.Media))
		if a.AudioURL != "" {
			fmt.Printf("  audio:    %s\n", a.AudioURL)
		}
		fmt.Printf("\nView it with: newsforge serve\n")
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&genURL, "url", "", "Generate from a web page (document mode)")
	generateCmd.Flags().StringVar(&genFile, "file", "", "Generate from a local text file (document mode)")
	generateCmd.Flags().StringVar(&genLanguage, "language", "", "Output language (en, de, fr, es, it)")
	generateCmd.Flags().StringVar(&genLength, "length", "", "Length bucket (short, medium, long)")
	generateCmd.Flags().StringVar(&genTone, "tone", "", "Editorial tone")
	generateCmd.Flags().StringVar(&genAudience, "audience", "", "Target audience")
	generateCmd.Flags().StringVar(&genFocus, "focus", "", "Editorial focus")
	generateCmd.Flags().BoolVar(&genQuotes, "quotes", false, "Require direct quotes")
	generateCmd.Flags().BoolVar(&genStats, "stats", false, "Require statistics")
	generateCmd.Flags().BoolVar(&genCounter, "counter-argument", false, "Require a counter-argument")
	generateCmd.Flags().StringVar(&genTimeFrame, "timeframe", "", "Time frame for topic research")
	generateCmd.Flags().StringVar(&genRegion, "region", "", "Preferred source region")
	generateCmd.Flags().StringSliceVar(&genPrefer, "prefer-domain", nil, "Preferred source domains")
	generateCmd.Flags().StringSliceVar(&genBlock, "block-domain", nil, "Blocked source domains")
	generateCmd.Flags().BoolVar(&genVerified, "verified-only", false, "Restrict to verified sources")
	generateCmd.Flags().BoolVar(&genAudio, "audio", false, "Generate narration audio")
	generateCmd.Flags().BoolVar(&genNoMedia, "no-media", false, "Skip the media stage")
}

var topicsDays int

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Suggest topics from configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		feeds := make([]suggest.FeedConfig, 0, len(cfg.Feeds))
		for _, f := range cfg.Feeds {
			feeds = append(feeds, suggest.FeedConfig{URL: f.URL, Name: f.Name})
		}
		if len(feeds) == 0 {
			fmt.Println("No suggestion feeds configured.")
			return nil
		}

		topics := suggest.New(feeds).Topics(topicsDays)
		if len(topics) == 0 {
			fmt.Println("No recent topics found.")
			return nil
		}
		for _, tp := range topics {
			fmt.Printf("[%s] %s", tp.Source, tp.Title)
			if tp.Published != "" {
				fmt.Printf(" (%s)", tp.Published)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	topicsCmd.Flags().IntVar(&topicsDays, "days", 2, "How many days back to look")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		articles, err := store.Load()
		if err != nil {
			return err
		}
		if len(articles) == 0 {
			fmt.Println("Archive is empty.")
			return nil
		}
		for _, a := range articles {
			fmt.Printf("%s  %s  [%s] %s\n",
				a.ID, time.UnixMilli(a.CreatedAt).Format("2006-01-02 15:04"), a.Language, a.Title)
		}
		return nil
	},
}

var socialCmd = &cobra.Command{
	Use:   "social <article-id> <platform>",
	Short: "Generate a social post (x, linkedin, facebook) for an archived article",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		a, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("no archived article with id %s", args[0])
		}

		orch := buildOrchestrator(store)
		post, err := orch.GenerateSocialPost(cmd.Context(), a, generate.Platform(args[1]))
		if err != nil {
			return err
		}
		fmt.Println(post)
		return nil
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the article archive over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		srv, err := server.New(store, newResolver())
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		addr := ":" + strconv.Itoa(port)
		log.Printf("Serving archive on http://localhost%s", addr)
		return http.ListenAndServe(addr, srv.Handler())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
}

func openStore() (*history.Store, error) {
	return history.Open(filepath.Join(cfg.GetDataDir(), "newsforge.db"))
}

func newResolver() *sources.Resolver {
	return sources.NewResolver(cfg.Sources.NoisePatterns, cfg.Sources.RedirectHosts)
}

func buildOrchestrator(store *history.Store) *generate.Orchestrator {
	google := llm.NewGoogleProvider(
		cfg.Backends.Google.TextModel,
		cfg.Backends.Google.ImageModel,
		cfg.Backends.Google.SpeechModel,
		llm.EnvCredential{EnvVar: cfg.Backends.Google.APIKeyEnv},
	)
	pexels := stock.NewPexelsClient(llm.EnvCredential{EnvVar: cfg.Backends.Pexels.APIKeyEnv})
	return generate.New(google, google, google, pexels, store, newResolver())
}

func buildRequest(store *history.Store, args []string) (generate.Request, error) {
	req := generate.Request{
		Language:               article.ParseLanguage(pickSetting(store, "default_language", genLanguage, cfg.Generation.Language)),
		Length:                 generate.Length(pickSetting(store, "default_length", genLength, cfg.Generation.Length)),
		Tone:                   generate.Tone(pickSetting(store, "default_tone", genTone, cfg.Generation.Tone)),
		Audience:               pick(genAudience, cfg.Generation.Audience),
		Focus:                  pick(genFocus, cfg.Generation.Focus),
		IncludeQuotes:          genQuotes,
		IncludeStats:           genStats,
		IncludeCounterArgument: genCounter,
		TimeFrame:              genTimeFrame,
		Region:                 genRegion,
		PreferredDomains:       genPrefer,
		BlockedDomains:         genBlock,
		VerifiedOnly:           genVerified,
	}

	switch {
	case genURL != "":
		doc, err := fetch.NewDocumentFetcher(0).Fetch(genURL)
		if err != nil {
			return req, err
		}
		req.Mode = generate.ModeDocument
		req.DocumentName = doc.Name
		req.DocumentText = doc.Text
	case genFile != "":
		data, err := os.ReadFile(genFile)
		if err != nil {
			return req, fmt.Errorf("reading document: %w", err)
		}
		req.Mode = generate.ModeDocument
		req.DocumentName = filepath.Base(genFile)
		req.DocumentText = string(data)
	case len(args) == 1:
		req.Mode = generate.ModeTopic
		req.Topic = args[0]
	default:
		return req, fmt.Errorf("a topic argument, --url or --file is required")
	}
	return req, nil
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

// pickSetting resolves a generation default: explicit flag, then the value
// saved from the last run, then the config file.
func pickSetting(store *history.Store, key, flag, fallback string) string {
	if flag != "" {
		return flag
	}
	if saved, err := store.GetSetting(key); err == nil && saved != "" {
		return saved
	}
	return fallback
}

// saveDefaults remembers the run's language, length and tone so the next
// invocation reuses them without flags.
func saveDefaults(store *history.Store, req generate.Request) {
	settings := map[string]string{
		"default_language": string(req.Language),
		"default_length":   string(req.Length),
		"default_tone":     string(req.Tone),
	}
	for key, value := range settings {
		if value == "" {
			continue
		}
		if err := store.PutSetting(key, value); err != nil {
			log.Printf("saving %s: %v", key, err)
		}
	}
}

func credOK(c llm.CredentialProvider) bool {
	_, err := c.EnsureKey()
	return err == nil
}
