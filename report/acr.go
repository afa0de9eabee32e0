package report

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/azure"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

const containerRegistryResourceType = "Microsoft.ContainerRegistry/registries"

// ContainerRegistryModule reports the network exposure, anonymous pull
// access, content trust and admin-user status of all container registries.
type ContainerRegistryModule struct {
	baseModule
}

func NewContainerRegistryModule(armClient arm.IArmClient, inventoryClient azure.IInventoryClient, resolverClient exposure.IResolverClient, runLog *runlog.RunLog, logger *logrus.Logger) *ContainerRegistryModule {
	return &ContainerRegistryModule{baseModule{
		ArmClient:       armClient,
		InventoryClient: inventoryClient,
		ResolverClient:  resolverClient,
		RunLog:          runLog,
		Logger:          logger,
	}}
}

func (module *ContainerRegistryModule) Name() string {
	return "container-registries"
}

func (module *ContainerRegistryModule) Run(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		Columns: []string{"Name", "Allow access from", "Anonymous pull access", "Content trust", "Admin user"},
	}

	registries, err := module.fetchResourcesOfType(ctx, containerRegistryResourceType, "Container Registry")
	if err != nil {
		return nil, err
	}

	for _, registry := range registries {
		anonymousPullAccess := enabledDisabled(boolProperty(registry.Properties, "anonymousPullEnabled"))
		adminUser := enabledDisabled(boolProperty(registry.Properties, "adminUserEnabled"))

		contentTrust := "Disabled"
		if policies, present := registry.Properties["policies"].(map[string]any); present {
			if trustPolicy, present := policies["trustPolicy"].(map[string]any); present {
				contentTrust = enabledDisabled(strings.EqualFold(stringProperty(trustPolicy, "status", ""), "enabled"))
			}
		}

		result, err := module.ResolverClient.ResolveExposure(ctx, registry.Resource.SubscriptionID, registry.Properties)
		networkExposure, skip, err := module.exposureOrSkip(registry.Resource, result, err)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		overview.AddRow(&types.OverviewRow{
			Name:     registry.name(),
			Exposure: networkExposure,
			Values:   []string{anonymousPullAccess, contentTrust, adminUser},
		})
	}

	return overview, nil
}
