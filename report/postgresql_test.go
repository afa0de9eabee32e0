package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/types"
)

const postgresqlServerPath = "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.DBforPostgreSQL/flexibleServers/psql1"

func newPostgresqlTestModule(t *testing.T, armClient *mockArmClient) *PostgresqlServerModule {
	t.Helper()
	inventoryClient := &mockInventoryClient{ResourcesByType: map[string][]*types.GraphResource{
		postgresqlServerResourceType: {graphResource(postgresqlServerPath, postgresqlServerResourceType, "psql1")},
	}}
	return &PostgresqlServerModule{newTestBase(t, armClient, inventoryClient)}
}

func serverConfiguration(configurationName string, configurationValue string) any {
	return map[string]any{
		"name":       configurationName,
		"properties": map[string]any{"value": configurationValue},
	}
}

func TestPostgresqlServerModule_ReadsTransportSettingsFromConfigurations(t *testing.T) {
	armClient := &mockArmClient{
		Resources: map[string]*arm.FetchResult{
			postgresqlServerPath: fetchedContent("psql1", map[string]any{
				"network": map[string]any{"publicNetworkAccess": "Enabled"},
			}),
			postgresqlServerPath + configurationsPath: ruleList(
				serverConfiguration("require_secure_transport", "on"),
				serverConfiguration("ssl_min_protocol_version", "TLSv1.2"),
			),
			postgresqlServerPath + firewallRulesPath: ruleList(
				firewallRule("0.0.0.0", "0.0.0.0"),
			),
		},
	}
	module := newPostgresqlTestModule(t, armClient)

	overview, err := module.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, overview.Rows, 1)
	row := overview.Rows[0]
	assert.Equal(t, "psql1", row.Name)
	assert.Equal(t, "Selected networks", row.Exposure.Label())
	assert.Equal(t, []string{"Azure backbone"}, row.Exposure.Whitelisted)
	assert.Equal(t, []string{"Enabled", "TLS 1.2"}, row.Values)
}

func TestPostgresqlServerModule_VnetIntegratedServerIsPrivate(t *testing.T) {
	armClient := &mockArmClient{
		Resources: map[string]*arm.FetchResult{
			postgresqlServerPath: fetchedContent("psql1", map[string]any{
				"network": map[string]any{
					"publicNetworkAccess":       "Disabled",
					"delegatedSubnetResourceId": "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.Network/virtualNetworks/vnet1/subnets/psql",
				},
			}),
			postgresqlServerPath + configurationsPath: ruleList(
				serverConfiguration("require_secure_transport", "off"),
			),
			postgresqlServerPath + firewallRulesPath: ruleList(),
		},
	}
	module := newPostgresqlTestModule(t, armClient)

	overview, err := module.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, overview.Rows, 1)
	row := overview.Rows[0]
	assert.Equal(t, "Private", row.Exposure.Label())
	assert.Equal(t, []string{"Disabled", ""}, row.Values)
}

func TestPostgresqlServerModule_MissingConfigurationsSkipsServer(t *testing.T) {
	armClient := &mockArmClient{
		Resources: map[string]*arm.FetchResult{
			postgresqlServerPath: fetchedContent("psql1", map[string]any{
				"network": map[string]any{"publicNetworkAccess": "Enabled"},
			}),
			postgresqlServerPath + firewallRulesPath: ruleList(),
		},
	}
	module := newPostgresqlTestModule(t, armClient)

	overview, err := module.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, overview.Rows)
	assert.True(t, module.RunLog.HasErrors())
}

func TestDelegatedSubnetAsVnetRules(t *testing.T) {
	vnetRules := delegatedSubnetAsVnetRules(map[string]any{
		"network": map[string]any{
			"publicNetworkAccess":       "Disabled",
			"delegatedSubnetResourceId": "/a/b",
		},
	})
	require.Len(t, vnetRules, 1)

	assert.Empty(t, delegatedSubnetAsVnetRules(map[string]any{
		"network": map[string]any{"publicNetworkAccess": "Enabled"},
	}))
	assert.Empty(t, delegatedSubnetAsVnetRules(map[string]any{}))
}
