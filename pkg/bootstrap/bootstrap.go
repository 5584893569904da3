// Package bootstrap wires the collaborators shared by cmd/orchestrator,
// cmd/scheduler and cmd/version-gc from a single config.Config: the run
// store, lock store, object store, and the full map of per-step handlers.
package bootstrap

import (
	"bytes"
	"context"
	"time"

	"github.com/nova-retail/catalogsync/config"
	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/export"
	"github.com/nova-retail/catalogsync/pkg/importftp"
	"github.com/nova-retail/catalogsync/pkg/lock"
	"github.com/nova-retail/catalogsync/pkg/notification"
	"github.com/nova-retail/catalogsync/pkg/objectstore"
	"github.com/nova-retail/catalogsync/pkg/orchestrator"
	"github.com/nova-retail/catalogsync/pkg/pricing"
	"github.com/nova-retail/catalogsync/pkg/sftp"
	"github.com/nova-retail/catalogsync/pkg/steprunner"
	"github.com/nova-retail/catalogsync/pkg/stocksplit"
	"github.com/nova-retail/catalogsync/pkg/store"
	"github.com/nova-retail/catalogsync/pkg/versioning"
	"github.com/xuri/excelize/v2"
)

// BuildRunStore picks PostgresRunStore when DatabaseURL is set, otherwise
// the in-memory reference store.
func BuildRunStore(cfg *config.Config) (store.RunStore, error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemoryRunStore(cfg.Logger()), nil
	}
	return store.NewPostgresRunStore(context.Background(), cfg.DatabaseURL, store.WithPostgresLogger(cfg.Logger()))
}

// BuildLockStore picks RedisStore when RedisURL is set, otherwise the
// in-memory reference store.
func BuildLockStore(cfg *config.Config) (lock.Store, error) {
	if cfg.RedisURL == "" {
		return lock.NewMemoryStore(time.Now), nil
	}
	return lock.NewRedisStore(cfg.RedisURL, lock.WithRedisLogger(cfg.Logger()))
}

// BuildObjectStore returns the local-filesystem reference store rooted at
// cfg.ObjectStoreBaseURL (a real signed-URL object store is an external
// collaborator this binary does not implement).
func BuildObjectStore(cfg *config.Config) (objectstore.Store, error) {
	baseDir := cfg.ObjectStoreBaseURL
	if baseDir == "" {
		baseDir = "./data"
	}
	return objectstore.NewLocalStore(baseDir)
}

// BuildEnvironment loads the shared collaborators every downstream
// handler needs. The EAN-mapping, override, and stock-location feeds are
// loaded once at process start from their fixed auxiliary keys; a fresh
// drop of any of them takes effect on the next process restart.
func BuildEnvironment(cfg *config.Config, objStore objectstore.Store) *orchestrator.Environment {
	ctx := context.Background()
	fees := pricing.DefaultFeeConfig()

	var eanMapping []export.MappingEntry
	if raw, err := objStore.Get(ctx, "inputs/aux/ean_mapping.tsv"); err == nil {
		if t, err := export.ReadTSV(bytes.NewReader(raw)); err == nil {
			eanMapping = export.LoadMappingEntries(t)
		}
	}

	var overrides []export.Override
	if raw, err := objStore.Get(ctx, "inputs/aux/overrides.tsv"); err == nil {
		if t, err := export.ReadTSV(bytes.NewReader(raw)); err == nil {
			overrides = export.LoadOverrides(t)
		}
	}

	stockEU := map[string]int{}
	if raw, err := objStore.Get(ctx, "inputs/aux/stock_location.txt"); err == nil {
		ingest := stocksplit.IngestLocations(stocksplit.ParseLocationRows(raw))
		for matnr, totals := range ingest.Totals {
			stockEU[matnr] = totals.StockEU
		}
	}

	var sftpClient *sftp.Client
	if cfg.ValidateSFTPEnv() == nil && cfg.SFTPPrivateKeyPath != "" {
		if key, err := sftp.LoadPrivateKeyFile(cfg.SFTPPrivateKeyPath); err == nil {
			sftpClient = sftp.NewClient(sftp.Config{
				Host:       cfg.SFTPHost,
				Port:       22,
				Username:   cfg.SFTPUser,
				PrivateKey: key,
				RemoteDir:  cfg.SFTPBaseDir,
			}, cfg.Logger())
		}
	}

	return &orchestrator.Environment{
		Store:          objStore,
		Fees:           fees,
		EANMapping:     eanMapping,
		Overrides:      overrides,
		StockEUByMatnr: stockEU,
		SFTP:           sftpClient,
		Notifier:       notification.NewWebhookNotifier(cfg.WebhookURL, cfg.Logger()),
		Manifest:       versioning.FileManifest{},
	}
}

// BuildHandlers assembles the full canonical-step handler map.
func BuildHandlers(cfg *config.Config, env *orchestrator.Environment, objStore objectstore.Store, logger core.Logger) map[string]orchestrator.StepHandler {
	return map[string]orchestrator.StepHandler{
		"import_ftp":        orchestrator.NewImportFTPHandler(env, importftp.NewClient(ftpConfig(cfg), logger)),
		"parse_merge":       orchestrator.NewParseMergeHandler(env, parseMergeDeps(cfg, objStore)),
		"ean_mapping":       orchestrator.NewEANMappingHandler(env),
		"pricing":           orchestrator.NewPricingHandler(env, "amazon"),
		"override_products": orchestrator.NewOverrideProductsHandler(env),
		"export_ean":        orchestrator.NewExportEANHandler(env, false),
		"export_ean_xlsx":   orchestrator.NewExportEANHandler(env, true),
		"export_amazon":     orchestrator.NewExportAmazonHandler(env, amazonTemplateLoader(objStore)),
		"export_mediaworld": orchestrator.NewExportMediaWorldHandler(env),
		"export_eprice":     orchestrator.NewExportEpriceHandler(env),
		"upload_sftp":       orchestrator.NewUploadSFTPHandler(env),
		"versioning":        orchestrator.NewVersioningHandler(env),
		"notification":      orchestrator.NewNotificationHandler(env, StatusFor),
	}
}

// NewOrchestrator wires an *orchestrator.Orchestrator from cfg's budgets.
func NewOrchestrator(cfg *config.Config, runs store.RunStore, lockStore lock.Store, handlers map[string]orchestrator.StepHandler, logger core.Logger) *orchestrator.Orchestrator {
	orch := orchestrator.New(runs, lockStore, handlers, logger)
	orch.LockTTL = cfg.LockTTL()
	orch.OrchestratorBudget = cfg.OrchestratorBudget()
	orch.ParseMergeBudget = cfg.ParseMergeBudget()
	return orch
}

// StatusFor derives the end-of-run notification status from the final
// run record.
func StatusFor(run *store.RunRecord) notification.Status {
	switch {
	case run.ErrorMessage != "":
		return notification.StatusFailed
	case run.WarningCount > 0:
		return notification.StatusSuccessWithWarning
	default:
		return notification.StatusSuccess
	}
}

func ftpConfig(cfg *config.Config) importftp.Config {
	return importftp.Config{
		Host:     cfg.FTPHost,
		Port:     cfg.FTPPort,
		User:     cfg.FTPUser,
		Password: cfg.FTPPassword,
		InputDir: cfg.FTPInputDir,
		UseTLS:   cfg.FTPUseTLS == "true",
	}
}

func parseMergeDeps(cfg *config.Config, objStore objectstore.Store) func(run *store.RunRecord) (steprunner.ParseMergeDeps, error) {
	return func(run *store.RunRecord) (steprunner.ParseMergeDeps, error) {
		ctx := context.Background()
		stockRaw, err := objStore.Get(ctx, "inputs/runs/"+run.RunID+"/stock.txt")
		if err != nil {
			return steprunner.ParseMergeDeps{}, err
		}
		priceRaw, err := objStore.Get(ctx, "inputs/runs/"+run.RunID+"/price.txt")
		if err != nil {
			return steprunner.ParseMergeDeps{}, err
		}
		materialKey := "inputs/runs/" + run.RunID + "/material.txt"
		return steprunner.ParseMergeDeps{
			Store:             objStore,
			StockRaw:          stockRaw,
			PriceRaw:          priceRaw,
			MaterialSrc:       steprunner.NewObjectStoreSource(objStore, materialKey),
			MaxFetchBytes:     cfg.MaxFetchBytes,
			MaxPartialLine:    cfg.MaxPartialLineBytes,
			MaxTotalChunks:    cfg.MaxTotalChunks,
			MaxTotalSizeBytes: cfg.MaxTotalSizeBytes,
			TickDeadline:      time.Now().Add(cfg.ParseMergeBudget()),
		}, nil
	}
}

// amazonTemplateLoader reopens the staged xlsm template fresh for every
// invocation, since excelize.File is mutated (and closed) per tick.
func amazonTemplateLoader(objStore objectstore.Store) func() (*excelize.File, error) {
	return func() (*excelize.File, error) {
		raw, err := objStore.Get(context.Background(), "inputs/aux/amazon_listing_template.xlsm")
		if err != nil {
			return nil, err
		}
		return excelize.OpenReader(bytes.NewReader(raw))
	}
}
