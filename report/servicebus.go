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
	serviceBusResourceType = "Microsoft.ServiceBus/namespaces"
	networkRuleSetsPath    = "/networkrulesets/default"
)

// ServiceBusModule reports the network exposure, minimum TLS version and
// authentication model of all Service Bus namespaces. The network rule set
// is a sub-resource; its content is grafted onto the namespace properties so
// the generic resolver can walk it like an inline ACL.
type ServiceBusModule struct {
	baseModule
}

func NewServiceBusModule(armClient arm.IArmClient, inventoryClient azure.IInventoryClient, resolverClient exposure.IResolverClient, runLog *runlog.RunLog, logger *logrus.Logger) *ServiceBusModule {
	return &ServiceBusModule{baseModule{
		ArmClient:       armClient,
		InventoryClient: inventoryClient,
		ResolverClient:  resolverClient,
		RunLog:          runLog,
		Logger:          logger,
	}}
}

func (module *ServiceBusModule) Name() string {
	return "service-bus-namespaces"
}

func (module *ServiceBusModule) Run(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		Columns: []string{"Name", "Allow access from", "Minimum TLS version", "Data-plane authorization"},
	}

	serviceBuses, err := module.fetchResourcesOfType(ctx, serviceBusResourceType, "Service Bus")
	if err != nil {
		return nil, err
	}

	for _, serviceBus := range serviceBuses {
		minimumTlsVersion := ""
		if rawVersion := stringProperty(serviceBus.Properties, "minimumTlsVersion", ""); rawVersion != "" {
			minimumTlsVersion = fmt.Sprintf("TLS %s", rawVersion)
		}

		dataPlaneAuthorization := "Shared Access Signatures (SAS)"
		if boolProperty(serviceBus.Properties, "disableLocalAuth") {
			dataPlaneAuthorization = "Entra ID"
		}

		ruleSetResult, err := module.ArmClient.GetResource(ctx, serviceBus.Resource.ID+networkRuleSetsPath, serviceBus.ApiVersions)
		if err != nil {
			return nil, err
		}
		if ruleSetResult.Status != arm.FetchStatusOK {
			module.RunLog.RecordError(serviceBus.Resource.ID+networkRuleSetsPath, serviceBus.ApiVersions, "Could not retrieve network rule set of Service Bus")
			continue
		}

		// The rule set carries the namespace's effective publicNetworkAccess;
		// it moves to the top level and the rest becomes the inline ACL.
		ruleSetProperties, _ := ruleSetResult.Content["properties"].(map[string]any)
		if rawAccess, present := ruleSetProperties["publicNetworkAccess"]; present {
			serviceBus.Properties["publicNetworkAccess"] = rawAccess
			delete(ruleSetProperties, "publicNetworkAccess")
		}
		serviceBus.Properties["networkAcls"] = ruleSetProperties

		result, err := module.ResolverClient.ResolveExposure(ctx, serviceBus.Resource.SubscriptionID, serviceBus.Properties)
		networkExposure, skip, err := module.exposureOrSkip(serviceBus.Resource, result, err)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		overview.AddRow(&types.OverviewRow{
			Name:     serviceBus.name(),
			Exposure: networkExposure,
			Values:   []string{minimumTlsVersion, dataPlaneAuthorization},
		})
	}

	return overview, nil
}
