package report

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/azure"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

const keyVaultResourceType = "Microsoft.KeyVault/vaults"

// KeyVaultModule reports the network exposure, data-plane authorization
// model and deletion protection of all key vaults.
type KeyVaultModule struct {
	baseModule
}

func NewKeyVaultModule(armClient arm.IArmClient, inventoryClient azure.IInventoryClient, resolverClient exposure.IResolverClient, runLog *runlog.RunLog, logger *logrus.Logger) *KeyVaultModule {
	return &KeyVaultModule{baseModule{
		ArmClient:       armClient,
		InventoryClient: inventoryClient,
		ResolverClient:  resolverClient,
		RunLog:          runLog,
		Logger:          logger,
	}}
}

func (module *KeyVaultModule) Name() string {
	return "key-vaults"
}

func (module *KeyVaultModule) Run(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		Columns: []string{"Name", "Allow access from", "Data-plane authorization", "Soft delete", "Purge protection"},
	}

	keyVaults, err := module.fetchResourcesOfType(ctx, keyVaultResourceType, "Key Vault")
	if err != nil {
		return nil, err
	}

	for _, keyVault := range keyVaults {
		// Vaults created before the RBAC model existed carry no
		// enableRbacAuthorization field at all.
		dataPlaneAuthorization := "Vault access policies"
		if boolProperty(keyVault.Properties, "enableRbacAuthorization") {
			dataPlaneAuthorization = "Entra ID"
		}

		// Soft delete is on for every vault unless it was explicitly opted
		// out before the setting became immutable.
		softDelete := "Enabled"
		if rawSoftDelete, present := keyVault.Properties["enableSoftDelete"]; present {
			softDeleteEnabled, _ := rawSoftDelete.(bool)
			softDelete = enabledDisabled(softDeleteEnabled)
		}

		// Purge protection is reported by presence, not value.
		_, purgeProtected := keyVault.Properties["enablePurgeProtection"]
		purgeProtection := enabledDisabled(purgeProtected)

		result, err := module.ResolverClient.ResolveExposure(ctx, keyVault.Resource.SubscriptionID, keyVault.Properties)
		networkExposure, skip, err := module.exposureOrSkip(keyVault.Resource, result, err)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		overview.AddRow(&types.OverviewRow{
			Name:     keyVault.name(),
			Exposure: networkExposure,
			Values:   []string{dataPlaneAuthorization, softDelete, purgeProtection},
		})
	}

	return overview, nil
}
