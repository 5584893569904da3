package core

import "time"

// Environment variable names. config.Load reads REDIS_URL, DATABASE_URL
// and PORT through its struct tags; it does not read DEV_MODE.
const (
	EnvRedisURL    = "REDIS_URL"
	EnvPostgresDSN = "DATABASE_URL"
	EnvDevMode     = "DEV_MODE"
	EnvPort        = "PORT"
)

// On-wire constants.
const (
	LockTTL               = 120 * time.Second
	StepMaxRetries        = 8
	MaxTotalChunks        = 50
	MaxFetchBytes         = 2 * 1024 * 1024
	MaxPartialLineBytes   = 256 * 1024
	MaxTotalSizeBytes     = 40 * 1024 * 1024
	OrchestratorBudgetMS  = 25_000
	ParseMergeBudgetMS    = 50_000
	ParseMergeTimeBudget  = 8 * time.Second
	LockName              = "global_sync"
)

// WorkerLimitBackoffSeconds is the geometric backoff table for the
// 546/WORKER_LIMIT retry policy. Index 0 is the delay before
// retry attempt 1.
var WorkerLimitBackoffSeconds = []int{60, 120, 240, 480, 600, 600, 600, 600}

// CanonicalSteps is the totally ordered 13-step pipeline.
var CanonicalSteps = []string{
	"import_ftp",
	"parse_merge",
	"ean_mapping",
	"pricing",
	"override_products",
	"export_ean",
	"export_ean_xlsx",
	"export_amazon",
	"export_mediaworld",
	"export_eprice",
	"upload_sftp",
	"versioning",
	"notification",
}

// OperationalWarningWhitelist lists WARN event messages that never count
// toward warning_count at finalization.
var OperationalWarningWhitelist = map[string]bool{
	"orchestrator_yield_scheduled": true,
	"drain_loop_incomplete":        true,
	"step_retry_scheduled":         true,
	"resume_failed_http":           true,
	"lock_ownership_lost":          true,
	"yielded_locked":                true,
	"multiple_running_detected":    true,
	"cron_auth_failed":             true,
}

// OutputFileWhitelist is the exactly-5 SFTP-shipped file names.
var OutputFileWhitelist = []string{
	"Catalogo EAN.xlsx",
	"Export ePrice.xlsx",
	"Export Mediaworld.xlsx",
	"amazon_listing_loader.xlsm",
	"amazon_price_inventory.txt",
}
