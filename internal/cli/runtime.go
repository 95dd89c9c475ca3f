package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/redadsync/redadsync/internal/auth"
	"github.com/redadsync/redadsync/internal/bitable"
	"github.com/redadsync/redadsync/internal/config"
	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/httpclient"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/metrics"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/notify"
	"github.com/redadsync/redadsync/internal/report"
	"github.com/redadsync/redadsync/internal/store"
	"github.com/redadsync/redadsync/internal/tablesync"
)

// appRuntime holds the collaborators of one CLI invocation. Clients are
// built once here and passed down; nothing is process-global.
type appRuntime struct {
	cfg         *config.Config
	loader      *config.Loader
	loc         *time.Location
	logger      *logging.Logger
	metrics     *metrics.Metrics
	httpc       *httpclient.Client
	credentials *store.FileCredentialStore
	bindings    *store.FileBindingStore
	manager     *auth.Manager
	fetcher     *report.Fetcher
	exporter    *report.Exporter
	notifier    *notify.Notifier

	// resolver and coordinator are nil when feishu is disabled.
	resolver    *tablesync.Resolver
	coordinator *tablesync.Coordinator
}

func newRuntime() (*appRuntime, error) {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if globalFlags.DataDir != "" {
		cfg.DataDir = globalFlags.DataDir
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.WithLevel(level))
	loader.SetLogger(logger)

	rt := &appRuntime{
		cfg:         cfg,
		loader:      loader,
		loc:         loc,
		logger:      logger,
		metrics:     metrics.NewMetrics("redadsync"),
		credentials: store.NewFileCredentialStore(cfg.CredentialsPath()),
		bindings:    store.NewFileBindingStore(cfg.BindingsPath()),
		exporter:    report.NewExporter(cfg.ReportsDir()),
	}

	rt.httpc = httpclient.New(httpclient.Options{
		Timeout:   cfg.HTTP.Timeout,
		UTLS:      cfg.HTTP.UTLS,
		UserAgent: "redadsync/" + Version,
	})

	provider := auth.NewHTTPProvider(rt.httpc, cfg.RedAd)
	rt.manager = auth.NewManager(rt.credentials, provider,
		auth.WithMargin(cfg.RedAd.RefreshMargin),
		auth.WithLogger(logger),
		auth.WithMetrics(rt.metrics),
	)
	rt.fetcher = report.NewFetcher(rt.httpc, cfg.RedAd.BaseURL, rt.manager, logger, rt.metrics)

	if cfg.Feishu.Enabled {
		tokens := bitable.NewTokenSource(rt.httpc, cfg.Feishu.BaseURL, cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		tables := bitable.NewClient(rt.httpc, cfg.Feishu.BaseURL, tokens)
		opts := tablesync.Options{
			DefaultAppToken: cfg.Feishu.DefaultAppToken,
			NameLimit:       cfg.Feishu.TableNameLimit,
			Location:        loc,
			Logger:          logger,
			Metrics:         rt.metrics,
		}
		rt.resolver = tablesync.NewResolver(tables, rt.bindings, opts)
		rt.coordinator = tablesync.NewCoordinator(rt.resolver, tables, rt.manager, opts)
	}

	rt.notifier, err = notify.FromConfig(cfg.Telegram, logger)
	if err != nil {
		return nil, err
	}

	return rt, nil
}

// requireSync returns an error when syncing is not configured.
func (rt *appRuntime) requireSync() error {
	if rt.coordinator == nil {
		return fmt.Errorf("table sync is disabled (set feishu.enabled in %s)", rt.loader.Path())
	}
	return nil
}

// findAccount looks an account up by advertiser id, then by exact name,
// then case-insensitively by name. An empty query selects the only
// authorized account.
func (rt *appRuntime) findAccount(query string) (models.TokenBundle, error) {
	bundles, err := rt.credentials.ListBundles()
	if err != nil {
		return models.TokenBundle{}, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		switch len(bundles) {
		case 0:
			return models.TokenBundle{}, fmt.Errorf("no authorized accounts (run: redadsync authorize)")
		case 1:
			return bundles[0], nil
		default:
			return models.TokenBundle{}, fmt.Errorf("%d accounts are authorized, name one of them", len(bundles))
		}
	}

	if b, ok := models.BundleSlice(bundles).FindByID(query); ok {
		return *b, nil
	}
	for _, b := range bundles {
		if b.AdvertiserName == query {
			return b, nil
		}
	}
	for _, b := range bundles {
		if strings.EqualFold(b.AdvertiserName, query) {
			return b, nil
		}
	}
	return models.TokenBundle{}, &errors.ErrAccountNotFound{AccountID: query}
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
