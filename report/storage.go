package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/azure"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

const (
	storageAccountResourceType = "Microsoft.Storage/storageAccounts"
	blobServiceResourceType    = "Microsoft.Storage/storageAccounts/blobServices"
	blobServicePath            = "/blobServices/default"
	listAccountSasPath         = "/listAccountSas"
	sasTimestampLayout         = "2006-01-02T15:04:05Z"
)

// StorageAccountModule reports the network exposure and transport hardening
// of all storage accounts. The blob-service probe is best effort: premium
// account kinds reject it and simply leave the blob columns empty.
type StorageAccountModule struct {
	baseModule
}

func NewStorageAccountModule(armClient arm.IArmClient, inventoryClient azure.IInventoryClient, resolverClient exposure.IResolverClient, runLog *runlog.RunLog, logger *logrus.Logger) *StorageAccountModule {
	return &StorageAccountModule{baseModule{
		ArmClient:       armClient,
		InventoryClient: inventoryClient,
		ResolverClient:  resolverClient,
		RunLog:          runLog,
		Logger:          logger,
	}}
}

func (module *StorageAccountModule) Name() string {
	return "storage-accounts"
}

func (module *StorageAccountModule) Run(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		Columns: []string{"Name", "Allow access from", "Secure transfer", "Minimum TLS version", "Blob versioning", "Data-plane authorization", "SAS generation"},
	}

	storageAccounts, err := module.fetchResourcesOfType(ctx, storageAccountResourceType, "Storage Account")
	if err != nil {
		return nil, err
	}

	for _, storageAccount := range storageAccounts {
		secureTransfer := enabledDisabled(boolProperty(storageAccount.Properties, "supportsHttpsTrafficOnly"))
		minimumTlsVersion := formatTlsVersion(stringProperty(storageAccount.Properties, "minimumTlsVersion", ""))

		// Shared key access is on unless explicitly disabled.
		dataPlaneAuthorization := "Shared Access Signatures (SAS)"
		if rawSharedKeyAccess, present := storageAccount.Properties["allowSharedKeyAccess"]; present {
			if sharedKeyAccess, _ := rawSharedKeyAccess.(bool); !sharedKeyAccess {
				dataPlaneAuthorization = "Entra ID"
			}
		}

		blobVersioning, err := module.probeBlobVersioning(ctx, storageAccount)
		if err != nil {
			return nil, err
		}

		sasGeneration, err := module.probeSasGeneration(ctx, storageAccount)
		if err != nil {
			return nil, err
		}

		result, err := module.ResolverClient.ResolveExposure(ctx, storageAccount.Resource.SubscriptionID, storageAccount.Properties)
		networkExposure, skip, err := module.exposureOrSkip(storageAccount.Resource, result, err)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		overview.AddRow(&types.OverviewRow{
			Name:     storageAccount.name(),
			Exposure: networkExposure,
			Values:   []string{secureTransfer, minimumTlsVersion, blobVersioning, dataPlaneAuthorization, sasGeneration},
		})
	}

	return overview, nil
}

// probeBlobVersioning fetches the account's blob service. Account kinds
// without a blob service answer with a feature-not-supported error, leaving
// the column empty.
func (module *StorageAccountModule) probeBlobVersioning(ctx context.Context, storageAccount *fetchedResource) (string, error) {
	apiVersions, err := module.ArmClient.GetApiVersions(ctx, storageAccount.Resource.SubscriptionID, blobServiceResourceType)
	if err != nil {
		return "", err
	}

	result, err := module.ArmClient.GetResource(ctx, storageAccount.Resource.ID+blobServicePath, apiVersions)
	if err != nil {
		return "", err
	}

	switch result.Status {
	case arm.FetchStatusHidden, arm.FetchStatusUnsupported:
		return "", nil
	case arm.FetchStatusNotFound:
		module.RunLog.RecordError(storageAccount.Resource.ID+blobServicePath, apiVersions, "Could not retrieve content of Blob Service")
		return "", nil
	}

	blobServiceProperties, _ := result.Content["properties"].(map[string]any)
	return enabledDisabled(boolProperty(blobServiceProperties, "isVersioningEnabled")), nil
}

// probeSasGeneration asks the management plane for a short-lived, read-only
// account SAS. A token coming back proves SAS generation is open to anyone
// with the management-plane permission.
func (module *StorageAccountModule) probeSasGeneration(ctx context.Context, storageAccount *fetchedResource) (string, error) {
	now := time.Now().UTC()
	requestBody := map[string]any{
		"signedServices":      "bfqt",
		"signedResourceTypes": "sco",
		"signedPermission":    "rl",
		"signedProtocol":      "https",
		"signedStart":         now.Add(-20 * time.Minute).Format(sasTimestampLayout),
		"signedExpiry":        now.Add(3 * time.Hour).Format(sasTimestampLayout),
		"keyToSign":           "key1",
	}

	result, err := module.ArmClient.PostResource(ctx, storageAccount.Resource.ID+listAccountSasPath, requestBody, storageAccount.ApiVersions)
	if err != nil {
		return "", err
	}

	if result.Status == arm.FetchStatusOK {
		if sasToken, present := result.Content["accountSasToken"].(string); present && sasToken != "" {
			return "Possible", nil
		}
	}

	return "Blocked", nil
}

// formatTlsVersion turns ARM's "TLS1_2" enum form into "TLS 1.2". Unknown
// forms pass through untouched.
func formatTlsVersion(rawVersion string) string {
	_, version, found := strings.Cut(rawVersion, "TLS")
	if !found {
		return rawVersion
	}
	return fmt.Sprintf("TLS %s", strings.ReplaceAll(version, "_", "."))
}
