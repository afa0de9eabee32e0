package report

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/azure"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

const (
	sqlServerResourceType = "Microsoft.Sql/servers"
	firewallRulesPath     = "/firewallRules"
	vnetRulesPath         = "/virtualNetworkRules"
)

// SqlServerModule reports the network exposure, minimum TLS version and
// authentication model of all SQL servers. Firewall and VNet rules live in
// sub-resources and are fetched separately before resolution.
type SqlServerModule struct {
	baseModule
}

func NewSqlServerModule(armClient arm.IArmClient, inventoryClient azure.IInventoryClient, resolverClient exposure.IResolverClient, runLog *runlog.RunLog, logger *logrus.Logger) *SqlServerModule {
	return &SqlServerModule{baseModule{
		ArmClient:       armClient,
		InventoryClient: inventoryClient,
		ResolverClient:  resolverClient,
		RunLog:          runLog,
		Logger:          logger,
	}}
}

func (module *SqlServerModule) Name() string {
	return "sql-servers"
}

func (module *SqlServerModule) Run(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		Columns: []string{"Name", "Allow access from", "Minimum TLS Version", "Data-plane authorization"},
	}

	sqlServers, err := module.fetchResourcesOfType(ctx, sqlServerResourceType, "SQL Server")
	if err != nil {
		return nil, err
	}

	for _, sqlServer := range sqlServers {
		// Servers predating the setting report no minimalTlsVersion and
		// accept TLS 1.0.
		minimumTlsVersion := fmt.Sprintf("TLS %s", stringProperty(sqlServer.Properties, "minimalTlsVersion", "1.0"))

		dataPlaneAuthorization := "SQL credentials"
		if administrators, present := sqlServer.Properties["administrators"].(map[string]any); present {
			if boolProperty(administrators, "azureADOnlyAuthentication") {
				dataPlaneAuthorization = "Entra ID"
			}
		}

		firewallRules, ok, err := module.fetchRuleList(ctx, sqlServer, firewallRulesPath, "Firewall rules")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		vnetRules, ok, err := module.fetchRuleList(ctx, sqlServer, vnetRulesPath, "VNet rules")
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		result, err := module.ResolverClient.ResolveDatabaseExposure(ctx, sqlServer.Resource.SubscriptionID, sqlServer.Properties, firewallRules, vnetRules)
		networkExposure, skip, err := module.exposureOrSkip(sqlServer.Resource, result, err)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		overview.AddRow(&types.OverviewRow{
			Name:     sqlServer.name(),
			Exposure: networkExposure,
			Values:   []string{minimumTlsVersion, dataPlaneAuthorization},
		})
	}

	return overview, nil
}

// fetchRuleList retrieves one of the server's rule sub-resources. A false
// second return means the server was recorded as failed and must be skipped.
func (module *SqlServerModule) fetchRuleList(ctx context.Context, sqlServer *fetchedResource, rulesPath string, ruleKind string) ([]any, bool, error) {
	result, err := module.ArmClient.GetResource(ctx, sqlServer.Resource.ID+rulesPath, sqlServer.ApiVersions)
	if err != nil {
		return nil, false, err
	}

	if result.Status != arm.FetchStatusOK {
		module.RunLog.RecordError(sqlServer.Resource.ID+rulesPath, sqlServer.ApiVersions, fmt.Sprintf("Could not retrieve content of %s for SQL Server", ruleKind))
		return nil, false, nil
	}

	rules, _ := result.Content["value"].([]any)
	return rules, true, nil
}
