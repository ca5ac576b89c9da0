package cli

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tanya/internal/config"
	"github.com/harun/tanya/pkg/intent"
	"github.com/harun/tanya/pkg/orchestrator"
	"github.com/harun/tanya/pkg/toolclient"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AI.Profiles = []config.AIProfile{
		{ID: "backup", Provider: "openai", APIKey: "sk-test", Priority: 2},
		{ID: "main", Provider: "anthropic", APIKey: "sk-ant-test", Priority: 1},
	}
	cfg.Agents = []orchestrator.AgentConfig{
		{ID: "agent_orders", Name: "Order Support", AllowedTools: []string{"lookup_order"}},
		{ID: "agent_general", Name: "General Support"},
	}
	cfg.Routing = orchestrator.RoutingConfig{
		FallbackAgent: "agent_general",
		Rules: []orchestrator.RoutingRule{
			{IntentID: intent.CategoryOrderStatus, Keywords: []string{"order"}, TargetAgent: "agent_orders"},
		},
	}
	cfg.Tools.BaseURL = "http://tools.internal"
	cfg.Tools.Definitions = []toolclient.ToolDefinition{
		{Handle: "lookup_order", Endpoint: "/tools/lookup_order"},
	}
	return cfg
}

func TestBuildProviders_OrderedByPriority(t *testing.T) {
	providers, err := buildProviders(testConfig().AI.Profiles)
	require.NoError(t, err)
	require.Len(t, providers, 2)

	assert.Equal(t, "anthropic", providers[0].Name())
	assert.Equal(t, "openai", providers[1].Name())
}

func TestBuildProviders_UnknownVendor(t *testing.T) {
	_, err := buildProviders([]config.AIProfile{
		{ID: "bad", Provider: "gemini", APIKey: "x"},
	})
	assert.Error(t, err)
}

func TestBuildEngine(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	rt, eng, err := buildEngine(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, rt)
	require.NotNil(t, eng)
	defer eng.close()

	// Default rate limit is on.
	assert.NotNil(t, eng.limiter)
	assert.NotNil(t, eng.breakers)
	assert.Nil(t, eng.archiver)
	assert.Equal(t, 0, rt.SessionCount())
}

func TestBuildEngine_WithArchive(t *testing.T) {
	cfg := testConfig()
	cfg.Archive.Enabled = true
	cfg.Archive.Path = t.TempDir() + "/archive.db"

	rt, eng, err := buildEngine(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, rt)
	defer eng.close()

	assert.NotNil(t, eng.archiver)
}
