package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/nova-retail/catalogsync/core"
	"github.com/nova-retail/catalogsync/pkg/export"
	"github.com/nova-retail/catalogsync/pkg/importftp"
	"github.com/nova-retail/catalogsync/pkg/notification"
	"github.com/nova-retail/catalogsync/pkg/objectstore"
	"github.com/nova-retail/catalogsync/pkg/pricing"
	"github.com/nova-retail/catalogsync/pkg/sftp"
	"github.com/nova-retail/catalogsync/pkg/steprunner"
	"github.com/nova-retail/catalogsync/pkg/store"
	"github.com/nova-retail/catalogsync/pkg/versioning"
	"github.com/xuri/excelize/v2"
)

// Environment bundles the collaborators the downstream per-step handlers
// (everything after parse_merge) need: the object store holding
// products.tsv and every export artifact, the fee table, the auxiliary
// mapping/override feeds, and the outward-facing SFTP/notification
// clients.
type Environment struct {
	Store          objectstore.Store
	Fees           *pricing.FeeConfig
	EANMapping     []export.MappingEntry
	Overrides      []export.Override
	StockEUByMatnr map[string]int
	SFTP           *sftp.Client
	Notifier       notification.Notifier
	Manifest       versioning.FileManifest
}

const productsKey = "outputs/products.tsv"

func readProducts(ctx context.Context, store objectstore.Store, key string) (export.Table, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return export.Table{}, fmt.Errorf("orchestrator: read %s: %w", key, err)
	}
	return export.ReadTSV(bytes.NewReader(raw))
}

func writeTable(ctx context.Context, store objectstore.Store, key string, t export.Table) error {
	var buf bytes.Buffer
	if err := export.WriteTSV(&buf, t); err != nil {
		return err
	}
	return store.Put(ctx, key, bytes.NewReader(buf.Bytes()))
}

// NewImportFTPHandler builds import_ftp: stage the raw material, stock,
// price and stock-location feeds into the object store for parse_merge.
func NewImportFTPHandler(env *Environment, client *importftp.Client) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		if err := client.FetchAll(ctx, env.Store, run.RunID); err != nil {
			return StepResult{Outcome: OutcomeFailed, Err: err, ErrorCode: "import_ftp_failed"}, nil
		}
		return StepResult{Outcome: OutcomeCompleted}, nil
	})
}

// NewEANMappingHandler builds the ean_mapping step.
func NewEANMappingHandler(env *Environment) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		products, err := readProducts(ctx, env.Store, productsKey)
		if err != nil {
			return StepResult{}, err
		}
		enriched, warnings := export.RunEANMapping(ctx, products, env.EANMapping)
		if err := writeTable(ctx, env.Store, productsKey, enriched); err != nil {
			return StepResult{}, err
		}
		metrics := map[string]interface{}{}
		for k, v := range warnings {
			metrics[k] = v
		}
		return StepResult{Outcome: OutcomeCompleted, Patch: metrics}, nil
	})
}

// NewPricingHandler builds the pricing step.
func NewPricingHandler(env *Environment, marketplace string) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		products, err := readProducts(ctx, env.Store, productsKey)
		if err != nil {
			return StepResult{}, err
		}
		fees, err := env.Fees.For(marketplace)
		if err != nil {
			return StepResult{Outcome: OutcomeFailed, ErrorCode: "missing_fee_config"}, nil
		}
		priced := export.RunPricing(ctx, products, fees)
		if err := writeTable(ctx, env.Store, productsKey, priced); err != nil {
			return StepResult{}, err
		}
		return StepResult{Outcome: OutcomeCompleted}, nil
	})
}

// NewOverrideProductsHandler builds the override_products step.
func NewOverrideProductsHandler(env *Environment) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		products, err := readProducts(ctx, env.Store, productsKey)
		if err != nil {
			return StepResult{}, err
		}
		overridden, applied := export.RunOverrideProducts(ctx, products, env.Overrides)
		if err := writeTable(ctx, env.Store, productsKey, overridden); err != nil {
			return StepResult{}, err
		}
		return StepResult{Outcome: OutcomeCompleted, Patch: map[string]interface{}{"overrides_applied": applied}}, nil
	})
}

// NewExportEANHandler builds export_ean (CSV) and export_ean_xlsx (XLSX),
// sharing the same dedup pass so both artifacts describe identical rows.
func NewExportEANHandler(env *Environment, xlsx bool) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		products, err := readProducts(ctx, env.Store, productsKey)
		if err != nil {
			return StepResult{}, err
		}
		header, rows, rejected := export.RunExportEAN(ctx, products)

		if !xlsx {
			var buf bytes.Buffer
			if err := export.WriteEANCSV(&buf, header, rows); err != nil {
				return StepResult{}, err
			}
			if err := env.Store.Put(ctx, "outputs/ean_catalog.tsv", bytes.NewReader(buf.Bytes())); err != nil {
				return StepResult{}, err
			}
			return StepResult{Outcome: OutcomeCompleted, Patch: map[string]interface{}{"rejected_ean": rejected}}, nil
		}

		var buf bytes.Buffer
		if err := export.WriteEANXLSX(&buf, header, rows); err != nil {
			return StepResult{}, err
		}
		if err := env.Store.Put(ctx, "outputs/latest_staging/Catalogo EAN.xlsx", bytes.NewReader(buf.Bytes())); err != nil {
			return StepResult{}, err
		}
		return StepResult{Outcome: OutcomeCompleted, Patch: map[string]interface{}{
			"rejected_ean":      rejected,
			"validation_passed": true,
		}}, nil
	})
}

// NewExportAmazonHandler builds export_amazon: the xlsm listing loader and
// the txt price/inventory feed, aborting on any byte-coherence mismatch.
func NewExportAmazonHandler(env *Environment, templateLoader func() (*excelize.File, error)) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		products, err := readProducts(ctx, env.Store, productsKey)
		if err != nil {
			return StepResult{}, err
		}
		fees, err := env.Fees.For("amazon")
		if err != nil {
			return StepResult{Outcome: OutcomeFailed, ErrorCode: "missing_fee_config"}, nil
		}
		rows, err := export.BuildAmazonRows(products, fees, env.StockEUByMatnr)
		if err != nil {
			return StepResult{}, err
		}

		template, err := templateLoader()
		if err != nil {
			return StepResult{}, fmt.Errorf("orchestrator: load amazon template: %w", err)
		}
		defer template.Close()
		if err := export.WriteAmazonListingLoader(template, rows); err != nil {
			return StepResult{}, err
		}

		var txtBuf bytes.Buffer
		if err := export.WriteAmazonPriceInventoryTXT(&txtBuf, rows); err != nil {
			return StepResult{}, err
		}

		// Derive each artifact's row-set from what was actually written
		// rather than the shared in-memory rows, so a divergence between
		// the two writers is something CheckAmazonCoherence can actually
		// detect before either artifact is emitted.
		xlsmRows, err := export.ReadBackListingLoaderRows(template)
		if err != nil {
			return StepResult{}, err
		}
		txtRows, err := export.ReadBackPriceInventoryRows(txtBuf.Bytes())
		if err != nil {
			return StepResult{}, err
		}
		if err := export.CheckAmazonCoherence(xlsmRows, txtRows); err != nil {
			return StepResult{Outcome: OutcomeFailed, Err: err, ErrorCode: "amazon_artifact_mismatch"}, nil
		}

		var xlsmBuf bytes.Buffer
		if _, err := template.WriteTo(&xlsmBuf); err != nil {
			return StepResult{}, fmt.Errorf("orchestrator: serialize amazon xlsm: %w", err)
		}
		if err := env.Store.Put(ctx, "outputs/latest_staging/amazon_listing_loader.xlsm", bytes.NewReader(xlsmBuf.Bytes())); err != nil {
			return StepResult{}, err
		}
		if err := env.Store.Put(ctx, "outputs/latest_staging/amazon_price_inventory.txt", bytes.NewReader(txtBuf.Bytes())); err != nil {
			return StepResult{}, err
		}

		return StepResult{Outcome: OutcomeCompleted, Patch: map[string]interface{}{"validation_passed": true, "row_count": len(rows)}}, nil
	})
}

// NewExportMediaWorldHandler builds export_mediaworld.
func NewExportMediaWorldHandler(env *Environment) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		products, err := readProducts(ctx, env.Store, productsKey)
		if err != nil {
			return StepResult{}, err
		}
		fees, err := env.Fees.For("mediaworld")
		if err != nil {
			return StepResult{Outcome: OutcomeFailed, ErrorCode: "missing_fee_config"}, nil
		}
		rows := export.BuildMarketplaceRows(products, fees, env.StockEUByMatnr)
		records := export.BuildMediaWorldRecords(rows)
		if err := export.ValidateMediaWorldSchema(records); err != nil {
			return StepResult{Outcome: OutcomeFailed, Err: err, ErrorCode: "mediaworld_schema_invalid"}, nil
		}
		var buf bytes.Buffer
		if err := export.WriteMediaWorldCSV(&buf, records); err != nil {
			return StepResult{}, err
		}
		if err := env.Store.Put(ctx, "outputs/latest_staging/Export Mediaworld.xlsx", bytes.NewReader(buf.Bytes())); err != nil {
			return StepResult{}, err
		}
		return StepResult{Outcome: OutcomeCompleted, Patch: map[string]interface{}{"validation_passed": true, "row_count": len(rows)}}, nil
	})
}

// NewExportEpriceHandler builds export_eprice.
func NewExportEpriceHandler(env *Environment) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		products, err := readProducts(ctx, env.Store, productsKey)
		if err != nil {
			return StepResult{}, err
		}
		fees, err := env.Fees.For("eprice")
		if err != nil {
			return StepResult{Outcome: OutcomeFailed, ErrorCode: "missing_fee_config"}, nil
		}
		rows := export.BuildMarketplaceRows(products, fees, env.StockEUByMatnr)
		var buf bytes.Buffer
		if err := export.WriteEpriceCSV(&buf, rows); err != nil {
			return StepResult{}, err
		}
		if err := env.Store.Put(ctx, "outputs/latest_staging/Export ePrice.xlsx", bytes.NewReader(buf.Bytes())); err != nil {
			return StepResult{}, err
		}
		return StepResult{Outcome: OutcomeCompleted, Patch: map[string]interface{}{"validation_passed": true, "row_count": len(rows)}}, nil
	})
}

// NewUploadSFTPHandler builds upload_sftp: pre-flight gate, then one
// upload per whitelisted file.
func NewUploadSFTPHandler(env *Environment) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		exports := exportValidationsFromSteps(run)
		if err := sftp.PreflightCheck(ctx, env.Store, "outputs/latest_staging", exports); err != nil {
			return StepResult{Outcome: OutcomeFailed, Err: err, ErrorCode: "sftp_preflight_failed"}, nil
		}
		for _, name := range core.OutputFileWhitelist {
			data, err := env.Store.Get(ctx, "outputs/latest_staging/"+name)
			if err != nil {
				return StepResult{}, fmt.Errorf("orchestrator: read staged %s: %w", name, err)
			}
			if err := env.SFTP.Upload(ctx, name, bytes.NewReader(data)); err != nil {
				return StepResult{}, fmt.Errorf("orchestrator: upload %s: %w", name, err)
			}
		}
		return StepResult{Outcome: OutcomeCompleted}, nil
	})
}

// NewVersioningHandler builds the versioning step.
func NewVersioningHandler(env *Environment) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		result, err := versioning.Publish(ctx, env.Store, "outputs/latest_staging", core.OutputFileWhitelist, time.Now(), env.Manifest)
		if err != nil {
			return StepResult{}, err
		}
		env.Manifest = result.Manifest
		return StepResult{Outcome: OutcomeCompleted, Patch: map[string]interface{}{"deleted_versions": len(result.Deleted)}}, nil
	})
}

// NewNotificationHandler builds the blocking notification step.
func NewNotificationHandler(env *Environment, statusFor func(run *store.RunRecord) notification.Status) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		err := env.Notifier.Notify(ctx, notification.Payload{
			RunID:        run.RunID,
			Status:       statusFor(run),
			WarningCount: run.WarningCount,
			ErrorMessage: run.ErrorMessage,
		})
		if err != nil {
			return StepResult{Outcome: OutcomeFailed, Err: err, ErrorCode: "notification_failed"}, nil
		}
		return StepResult{Outcome: OutcomeCompleted}, nil
	})
}

func exportValidationsFromSteps(run *store.RunRecord) []sftp.ExportValidation {
	steps := []string{"export_ean_xlsx", "export_amazon", "export_mediaworld", "export_eprice"}
	out := make([]sftp.ExportValidation, 0, len(steps))
	for _, s := range steps {
		state := run.Steps[s]
		passed := state != nil && state.Status.TerminalSuccess()
		out = append(out, sftp.ExportValidation{Step: s, ValidationPassed: passed})
	}
	return out
}

// NewParseMergeHandler adapts steprunner.RunParseMergeTick into a
// StepHandler, resolving material/stock/price sources through deps on
// every tick.
func NewParseMergeHandler(env *Environment, deps func(run *store.RunRecord) (steprunner.ParseMergeDeps, error)) StepHandler {
	return StepHandlerFunc(func(ctx context.Context, run *store.RunRecord) (StepResult, error) {
		d, err := deps(run)
		if err != nil {
			return StepResult{}, err
		}
		fields := run.Steps["parse_merge"].Fields
		if fields == nil {
			fields = map[string]interface{}{}
		}
		tick, err := steprunner.RunParseMergeTick(ctx, run.RunID, fields, d)
		if err != nil {
			if core.IsWorkerLimit(err) {
				return StepResult{Outcome: OutcomeWorkerLimit}, nil
			}
			return StepResult{Outcome: OutcomeFailed, Err: err, ErrorCode: err.Error()}, nil
		}
		if tick.Done {
			return StepResult{Outcome: OutcomeCompleted, Patch: tick.Patch}, nil
		}
		return StepResult{Outcome: OutcomeInProgress, Patch: tick.Patch}, nil
	})
}
