package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/azure"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

const (
	postgresqlServerResourceType = "Microsoft.DBforPostgreSQL/flexibleServers"
	configurationsPath           = "/configurations"

	sslEnforcementConfigurationName    = "require_secure_transport"
	minimumTlsVersionConfigurationName = "ssl_min_protocol_version"
)

// PostgresqlServerModule reports the network exposure and transport
// hardening of all PostgreSQL flexible servers. SSL enforcement and the
// minimum TLS version are server configuration parameters, not ARM
// properties, and come from the configurations sub-resource. Servers with
// public access disabled are VNet-integrated through a delegated subnet,
// which is reported as a single VNet rule.
type PostgresqlServerModule struct {
	baseModule
}

func NewPostgresqlServerModule(armClient arm.IArmClient, inventoryClient azure.IInventoryClient, resolverClient exposure.IResolverClient, runLog *runlog.RunLog, logger *logrus.Logger) *PostgresqlServerModule {
	return &PostgresqlServerModule{baseModule{
		ArmClient:       armClient,
		InventoryClient: inventoryClient,
		ResolverClient:  resolverClient,
		RunLog:          runLog,
		Logger:          logger,
	}}
}

func (module *PostgresqlServerModule) Name() string {
	return "postgresql-servers"
}

func (module *PostgresqlServerModule) Run(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		Columns: []string{"Name", "Allow access from", "SSL enforcement", "Minimum TLS version"},
	}

	postgresqlServers, err := module.fetchResourcesOfType(ctx, postgresqlServerResourceType, "PostgreSQL Server")
	if err != nil {
		return nil, err
	}

	for _, postgresqlServer := range postgresqlServers {
		sslEnforcement, minimumTlsVersion, ok, err := module.fetchTransportConfiguration(ctx, postgresqlServer)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		firewallRulesResult, err := module.ArmClient.GetResource(ctx, postgresqlServer.Resource.ID+firewallRulesPath, postgresqlServer.ApiVersions)
		if err != nil {
			return nil, err
		}
		if firewallRulesResult.Status != arm.FetchStatusOK {
			module.RunLog.RecordError(postgresqlServer.Resource.ID+firewallRulesPath, postgresqlServer.ApiVersions, "Could not retrieve content of Firewall rules for PostgreSQL Server")
			continue
		}
		firewallRules, _ := firewallRulesResult.Content["value"].([]any)

		vnetRules := delegatedSubnetAsVnetRules(postgresqlServer.Properties)

		result, err := module.ResolverClient.ResolveDatabaseExposure(ctx, postgresqlServer.Resource.SubscriptionID, postgresqlServer.Properties, firewallRules, vnetRules)
		networkExposure, skip, err := module.exposureOrSkip(postgresqlServer.Resource, result, err)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		overview.AddRow(&types.OverviewRow{
			Name:     postgresqlServer.name(),
			Exposure: networkExposure,
			Values:   []string{sslEnforcement, minimumTlsVersion},
		})
	}

	return overview, nil
}

// fetchTransportConfiguration walks the server's configuration parameters
// for require_secure_transport and ssl_min_protocol_version. A false third
// return means the server was recorded as failed and must be skipped.
func (module *PostgresqlServerModule) fetchTransportConfiguration(ctx context.Context, postgresqlServer *fetchedResource) (string, string, bool, error) {
	result, err := module.ArmClient.GetResource(ctx, postgresqlServer.Resource.ID+configurationsPath, postgresqlServer.ApiVersions)
	if err != nil {
		return "", "", false, err
	}

	if result.Status != arm.FetchStatusOK {
		module.RunLog.RecordError(postgresqlServer.Resource.ID+configurationsPath, postgresqlServer.ApiVersions, "Could not retrieve configuration of PostgreSQL Server")
		return "", "", false, nil
	}

	sslEnforcement := ""
	minimumTlsVersion := ""
	configurations, _ := result.Content["value"].([]any)

	for _, rawConfiguration := range configurations {
		configuration, _ := rawConfiguration.(map[string]any)
		configurationProperties, _ := configuration["properties"].(map[string]any)
		configurationValue := stringProperty(configurationProperties, "value", "")

		switch configuration["name"] {
		case sslEnforcementConfigurationName:
			sslEnforcement = enabledDisabled(configurationValue == "on")
		case minimumTlsVersionConfigurationName:
			// The parameter value has the form "TLSv1.2".
			if _, version, found := strings.Cut(configurationValue, "TLSv"); found {
				minimumTlsVersion = fmt.Sprintf("TLS %s", version)
			}
		}

		if sslEnforcement != "" && minimumTlsVersion != "" {
			break
		}
	}

	return sslEnforcement, minimumTlsVersion, true, nil
}

// delegatedSubnetAsVnetRules synthesizes the VNet rule list of a flexible
// server. With public access disabled the server is reachable only through
// its delegated subnet; with public access enabled VNet integration cannot
// be used and the list is empty.
func delegatedSubnetAsVnetRules(serverProperties map[string]any) []any {
	networkProperties, _ := serverProperties["network"].(map[string]any)
	publicNetworkAccess := stringProperty(networkProperties, "publicNetworkAccess", "")

	if strings.EqualFold(publicNetworkAccess, "Disabled") {
		if delegatedSubnetPath, present := networkProperties["delegatedSubnetResourceId"].(string); present {
			return []any{
				map[string]any{"properties": map[string]any{"virtualNetworkSubnetId": delegatedSubnetPath}},
			}
		}
	}

	return []any{}
}
