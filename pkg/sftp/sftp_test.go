package sftp

import (
	"context"
	"testing"

	"github.com/nova-retail/catalogsync/core"
	"github.com/stretchr/testify/assert"
)

type fakeLister struct{ keys []string }

func (f fakeLister) List(ctx context.Context, prefix string) ([]string, error) {
	return f.keys, nil
}

func wantedKeys() []string {
	keys := make([]string, len(core.OutputFileWhitelist))
	for i, name := range core.OutputFileWhitelist {
		keys[i] = "outputs/" + name
	}
	return keys
}

func TestPreflightCheck_PassesWithExactWhitelist(t *testing.T) {
	err := PreflightCheck(context.Background(), fakeLister{keys: wantedKeys()}, "outputs/", nil)
	assert.NoError(t, err)
}

func TestPreflightCheck_RejectsStrayCSV(t *testing.T) {
	keys := append(wantedKeys(), "outputs/stray.csv")
	err := PreflightCheck(context.Background(), fakeLister{keys: keys}, "outputs/", nil)
	assert.Error(t, err)
}

func TestPreflightCheck_RejectsMissingFile(t *testing.T) {
	keys := wantedKeys()[:len(wantedKeys())-1]
	err := PreflightCheck(context.Background(), fakeLister{keys: keys}, "outputs/", nil)
	assert.Error(t, err)
}

func TestPreflightCheck_RejectsExportWarnings(t *testing.T) {
	exports := []ExportValidation{{Step: "export_ean", ValidationPassed: true, Warnings: []string{"some warning"}}}
	err := PreflightCheck(context.Background(), fakeLister{keys: wantedKeys()}, "outputs/", exports)
	assert.Error(t, err)
}

func TestPreflightCheck_RejectsFailedValidation(t *testing.T) {
	exports := []ExportValidation{{Step: "export_amazon", ValidationPassed: false}}
	err := PreflightCheck(context.Background(), fakeLister{keys: wantedKeys()}, "outputs/", exports)
	assert.Error(t, err)
}
