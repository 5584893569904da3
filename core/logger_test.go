package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredLogger_TextFormatIncludesComponentAndFields(t *testing.T) {
	var buf strings.Builder
	logger := NewStructuredLogger("catalogsync", "info", "text")
	logger.output = &buf
	withComponent := logger.WithComponent("pricing").(*StructuredLogger)
	withComponent.output = &buf

	withComponent.Info("computed ladder", map[string]interface{}{"run_id": "run-1"})

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "[catalogsync]")
	assert.Contains(t, out, "[pricing]")
	assert.Contains(t, out, "computed ladder")
	assert.Contains(t, out, "run_id=run-1")
}

func TestStructuredLogger_JSONFormatEncodesFields(t *testing.T) {
	var buf strings.Builder
	logger := NewStructuredLogger("catalogsync", "info", "json")
	logger.output = &buf

	logger.Error("step failed", map[string]interface{}{"step": "export_ean"})

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"service":"catalogsync"`)
	assert.Contains(t, out, `"step":"export_ean"`)
}

func TestStructuredLogger_DebugSuppressedUnlessDebugLevel(t *testing.T) {
	var buf strings.Builder
	info := NewStructuredLogger("catalogsync", "info", "text")
	info.output = &buf
	info.Debug("should not appear", nil)
	assert.Empty(t, buf.String())

	var debugBuf strings.Builder
	debug := NewStructuredLogger("catalogsync", "debug", "text")
	debug.output = &debugBuf
	debug.Debug("should appear", nil)
	assert.Contains(t, debugBuf.String(), "should appear")
}

func TestNewStructuredLogger_DefaultsLevelAndFormat(t *testing.T) {
	logger := NewStructuredLogger("svc", "", "")
	assert.Equal(t, "info", logger.level)
	assert.Equal(t, "text", logger.format)
}
