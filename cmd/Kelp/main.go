package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/Kelp/internal/api"
	"github.com/BTreeMap/Kelp/internal/chat"
	"github.com/BTreeMap/Kelp/internal/config"
	"github.com/BTreeMap/Kelp/internal/flow"
	"github.com/BTreeMap/Kelp/internal/genai"
	"github.com/BTreeMap/Kelp/internal/itinerary"
	"github.com/BTreeMap/Kelp/internal/lockfile"
	"github.com/BTreeMap/Kelp/internal/messaging"
	"github.com/BTreeMap/Kelp/internal/planner"
	"github.com/BTreeMap/Kelp/internal/store"
	"github.com/BTreeMap/Kelp/internal/taxonomy"
	"github.com/BTreeMap/Kelp/internal/venue"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	cfg := config.Load()

	// Parse command line flags
	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], cfg)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Kelp with configured modules")
	server, cleanup, err := buildServer(ctx, flags)
	if err != nil {
		slog.Error("Kelp failed to start", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := server.Run(ctx); err != nil {
		slog.Error("Kelp failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Kelp exited successfully")
}

// Flags holds command line flag values
type Flags struct {
	apiAddr           *string
	openaiKey         *string
	openaiBaseURL     *string
	openaiModel       *string
	yelpKey           *string
	dbDSN             *string
	taxonomyFile      *string
	watchTaxonomy     *bool
	preserveTimes     *bool
	searchTimeout     *time.Duration
	completionTimeout *time.Duration
	allowedOrigins    *string
	shareBaseURL      *string
	twilioSID         *string
	twilioToken       *string
	twilioFrom        *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, cfg config.Config) (Flags, error) {
	flags := Flags{
		apiAddr:           fs.String("api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)"),
		openaiKey:         fs.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiBaseURL:     fs.String("openai-base-url", cfg.OpenAIBaseURL, "OpenAI-compatible gateway URL (overrides $OPENAI_BASE_URL)"),
		openaiModel:       fs.String("openai-model", cfg.OpenAIModel, "completion model (overrides $OPENAI_MODEL)"),
		yelpKey:           fs.String("yelp-api-key", cfg.YelpKey, "Yelp Fusion API key (overrides $YELP_API_KEY)"),
		dbDSN:             fs.String("db-dsn", cfg.DatabaseURL, "database DSN for shared flows; empty keeps them in memory (overrides $DATABASE_URL)"),
		taxonomyFile:      fs.String("taxonomy-file", cfg.TaxonomyFile, "YAML category taxonomy; empty uses the built-in table (overrides $KELP_TAXONOMY_FILE)"),
		watchTaxonomy:     fs.Bool("watch-taxonomy", cfg.WatchTaxonomy, "reload the taxonomy file when it changes (overrides $KELP_WATCH_TAXONOMY)"),
		preserveTimes:     fs.Bool("preserve-times", false, "keep stop times unchanged when stops are reordered or removed"),
		searchTimeout:     fs.Duration("search-timeout", cfg.SearchTimeout, "timeout per venue search (overrides $KELP_SEARCH_TIMEOUT)"),
		completionTimeout: fs.Duration("completion-timeout", cfg.CompletionTimeout, "timeout per completion (overrides $KELP_COMPLETION_TIMEOUT)"),
		allowedOrigins:    fs.String("allowed-origins", cfg.AllowedOrigins, "comma-separated CORS origins; empty allows any (overrides $KELP_ALLOWED_ORIGINS)"),
		shareBaseURL:      fs.String("share-base-url", cfg.ShareBaseURL, "prefix for share links in texts (overrides $KELP_SHARE_BASE_URL)"),
		twilioSID:         fs.String("twilio-account-sid", cfg.TwilioAccountSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:       fs.String("twilio-auth-token", cfg.TwilioAuthToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:        fs.String("twilio-from-number", cfg.TwilioFromNumber, "Twilio sending number (overrides $TWILIO_FROM_NUMBER)"),
	}

	if err := fs.Parse(args); err != nil {
		return flags, err
	}

	slog.Debug("flags parsed",
		"apiAddr", *flags.apiAddr,
		"openaiKeySet", *flags.openaiKey != "",
		"openaiBaseURL", *flags.openaiBaseURL,
		"openaiModel", *flags.openaiModel,
		"yelpKeySet", *flags.yelpKey != "",
		"dbDSN_set", *flags.dbDSN != "",
		"taxonomyFile", *flags.taxonomyFile,
		"watchTaxonomy", *flags.watchTaxonomy,
		"preserveTimes", *flags.preserveTimes,
		"twilioSIDSet", *flags.twilioSID != "")
	return flags, nil
}

// buildServer wires every module. Missing credentials disable the matching endpoints rather
// than aborting startup.
func buildServer(ctx context.Context, flags Flags) (*api.Server, func(), error) {
	reg, err := taxonomy.NewRegistry(*flags.taxonomyFile)
	if err != nil {
		return nil, nil, err
	}
	if *flags.watchTaxonomy {
		if err := reg.Watch(ctx); err != nil {
			slog.Warn("Failed to watch taxonomy file", "error", err, "path", *flags.taxonomyFile)
		}
	}

	// Two servers sharing one SQLite file would race on migrations and writes.
	var dbLock *lockfile.Lock
	if dsn := strings.TrimSpace(*flags.dbDSN); dsn != "" && store.DetectDSNType(dsn) == "sqlite3" && !strings.Contains(dsn, ":memory:") {
		if dbLock, err = lockfile.Acquire(dsn); err != nil {
			return nil, nil, err
		}
	}

	st, err := store.Open(*flags.dbDSN)
	if err != nil {
		dbLock.Release()
		return nil, nil, err
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
		if err := dbLock.Release(); err != nil {
			slog.Error("Failed to release database lock", "error", err)
		}
	}

	engine := itinerary.Engine{PreserveTimes: *flags.preserveTimes}

	var completer genai.Completer
	if client, err := genai.NewClient(buildGenAIOptions(flags)...); err != nil {
		slog.Warn("AI assistant disabled; chat returns 500 and plans use keyword rules", "error", err)
	} else {
		completer = client
	}

	var generator api.FlowGenerator
	if yelp, err := venue.NewYelpClient(buildYelpOptions(flags, reg)...); err != nil {
		slog.Warn("Venue search disabled; flow generation returns 500", "error", err)
	} else {
		generator = flow.NewGenerator(planner.NewDefaultChain(completer, reg), flow.NewAssembler(yelp))
	}

	var responder api.ChatResponder
	if completer != nil {
		responder = chat.NewEditor(completer, engine)
	}

	var sender api.FlowSender
	if tw, err := messaging.NewTwilioClient(buildTwilioOptions(flags)...); err != nil {
		slog.Info("SMS sharing disabled", "reason", err)
	} else {
		sender = messaging.NewService(tw)
	}

	apiOpts := append(buildAPIOptions(flags), api.WithEngine(engine))
	slog.Debug("Module wiring complete",
		"generator", generator != nil, "assistant", responder != nil, "sms", sender != nil, "api_opts", len(apiOpts))
	return api.NewServer(generator, responder, st, sender, apiOpts...), cleanup, nil
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.openaiBaseURL))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.completionTimeout > 0 {
		genaiOpts = append(genaiOpts, genai.WithTimeout(*flags.completionTimeout))
	}
	return genaiOpts
}

// buildYelpOptions constructs venue search configuration options
func buildYelpOptions(flags Flags, reg *taxonomy.Registry) []venue.YelpOption {
	yelpOpts := []venue.YelpOption{venue.WithTaxonomy(reg)}
	if *flags.yelpKey != "" {
		yelpOpts = append(yelpOpts, venue.WithAPIKey(*flags.yelpKey))
	}
	if *flags.searchTimeout > 0 {
		yelpOpts = append(yelpOpts, venue.WithTimeout(*flags.searchTimeout))
	}
	return yelpOpts
}

// buildTwilioOptions constructs SMS configuration options
func buildTwilioOptions(flags Flags) []messaging.Option {
	return []messaging.Option{
		messaging.WithAccountSID(*flags.twilioSID),
		messaging.WithAuthToken(*flags.twilioToken),
		messaging.WithFromNumber(*flags.twilioFrom),
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.allowedOrigins != "" {
		apiOpts = append(apiOpts, api.WithAllowedOrigins(strings.Split(*flags.allowedOrigins, ",")...))
	}
	if *flags.shareBaseURL != "" {
		apiOpts = append(apiOpts, api.WithShareBaseURL(*flags.shareBaseURL))
	}
	return apiOpts
}
