package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/types"
)

const keyVaultPath = "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.KeyVault/vaults/kv1"

func newKeyVaultTestModule(t *testing.T, armClient *mockArmClient) *KeyVaultModule {
	t.Helper()
	inventoryClient := &mockInventoryClient{ResourcesByType: map[string][]*types.GraphResource{
		keyVaultResourceType: {graphResource(keyVaultPath, keyVaultResourceType, "kv1")},
	}}
	return &KeyVaultModule{newTestBase(t, armClient, inventoryClient)}
}

func TestKeyVaultModule_ReportsAuthorizationAndProtection(t *testing.T) {
	armClient := &mockArmClient{
		Resources: map[string]*arm.FetchResult{
			keyVaultPath: fetchedContent("kv1", map[string]any{
				"enableRbacAuthorization": true,
				"enableSoftDelete":        true,
				"enablePurgeProtection":   true,
				"publicNetworkAccess":     "Enabled",
				"networkAcls": map[string]any{
					"defaultAction": "Deny",
					"bypass":        "AzureServices",
					"ipRules":       []any{map[string]any{"value": "20.30.40.50"}},
				},
			}),
		},
	}
	module := newKeyVaultTestModule(t, armClient)

	overview, err := module.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, overview.Rows, 1)
	row := overview.Rows[0]
	assert.Equal(t, "kv1", row.Name)
	assert.Equal(t, "Selected networks", row.Exposure.Label())
	assert.Equal(t, []string{"20.30.40.50", "AzureServices"}, row.Exposure.Whitelisted)
	assert.Equal(t, []string{"Entra ID", "Enabled", "Enabled"}, row.Values)
}

func TestKeyVaultModule_LegacyVaultDefaults(t *testing.T) {
	armClient := &mockArmClient{
		Resources: map[string]*arm.FetchResult{
			keyVaultPath: fetchedContent("kv1", map[string]any{}),
		},
	}
	module := newKeyVaultTestModule(t, armClient)

	overview, err := module.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, overview.Rows, 1)
	row := overview.Rows[0]
	assert.Equal(t, "All networks", row.Exposure.Label())
	assert.Equal(t, []string{"Vault access policies", "Enabled", "Disabled"}, row.Values)
}

func TestKeyVaultModule_HiddenVaultIsSkippedSilently(t *testing.T) {
	armClient := &mockArmClient{
		Resources: map[string]*arm.FetchResult{
			keyVaultPath: {Status: arm.FetchStatusHidden},
		},
	}
	module := newKeyVaultTestModule(t, armClient)

	overview, err := module.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, overview.Rows)
	assert.False(t, module.RunLog.HasErrors())
}
