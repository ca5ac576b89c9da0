package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_FileRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))

	RecordToolAudit(context.Background(), "lookup_order", "sess-1", "success", map[string]interface{}{
		"order_number": "#1234567",
	})
	RecordEscalationAudit(context.Background(), "sess-1", "human_request", nil)
	RecordSessionAudit(context.Background(), "clear", "sess-1", "success", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "execute:lookup_order")
	assert.Contains(t, out, "escalate:human_request")
	assert.Contains(t, out, `"actor":"sess-1"`)
}

func TestGetAuditLogger_KeepsInitializedInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))

	first := GetAuditLogger()
	second := GetAuditLogger()
	assert.Same(t, first, second)
	assert.NotNil(t, first.file)
}
