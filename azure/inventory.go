package azure

import (
	"context"
	"fmt"
	"regexp"

	"github.com/azure/azure-exposure-reporter/types"

	"github.com/sirupsen/logrus"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
)

type IInventoryClient interface {
	GetResourcesOfType(ctx context.Context, resourceType string) ([]*types.GraphResource, error)
}

// InventoryClient enumerates the audited resources through Azure Resource
// Graph, one query per resource type across all configured subscriptions.
type InventoryClient struct {
	Credential               azcore.TokenCredential
	SubscriptionIDs          []*string
	IgnoreResourceIDPatterns []string
	Logger                   *logrus.Logger
}

var subscriptionGuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func NewInventoryClient(credential azcore.TokenCredential, subscriptionIDs []string, ignoreResourceIDPatterns []string, logger *logrus.Logger) (*InventoryClient, error) {
	emptyGuid := "00000000-0000-0000-0000-000000000000"
	subscriptionIDsPtr := make([]*string, len(subscriptionIDs))
	for i, subscriptionID := range subscriptionIDs {
		if subscriptionID == emptyGuid || !subscriptionGuidRegex.MatchString(subscriptionID) {
			return nil, fmt.Errorf("invalid subscription ID: %s", subscriptionID)
		}
		subscriptionIDsPtr[i] = &subscriptionIDs[i]
	}

	return &InventoryClient{
		Credential:               credential,
		SubscriptionIDs:          subscriptionIDsPtr,
		IgnoreResourceIDPatterns: ignoreResourceIDPatterns,
		Logger:                   logger,
	}, nil
}

func (inventory *InventoryClient) GetResourcesOfType(ctx context.Context, resourceType string) ([]*types.GraphResource, error) {
	resourcesClient, err := armresourcegraph.NewClient(inventory.Credential, nil)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("resources | where type =~ '%s' | project id, name, type, location, subscriptionId", resourceType)
	inventory.Logger.Debugf("Running Resource Graph query: %s", query)

	resources := []*types.GraphResource{}
	var skipToken *string

	for {
		queryRequest := armresourcegraph.QueryRequest{
			Query:         to.Ptr(query),
			Subscriptions: inventory.SubscriptionIDs,
			Options: &armresourcegraph.QueryRequestOptions{
				AuthorizationScopeFilter: to.Ptr(armresourcegraph.AuthorizationScopeFilterAtScopeAndBelow),
				SkipToken:                skipToken,
			},
		}

		response, err := resourcesClient.Resources(ctx, queryRequest, nil)
		if err != nil {
			return nil, fmt.Errorf("resource graph query for type %s: %w", resourceType, err)
		}

		rows, _ := response.QueryResponse.Data.([]any)
		resources = inventory.collectRows(rows, resources)

		if response.SkipToken == nil || *response.SkipToken == "" {
			break
		}
		skipToken = response.SkipToken
	}

	return resources, nil
}

func (inventory *InventoryClient) collectRows(rows []any, resources []*types.GraphResource) []*types.GraphResource {
	for _, row := range rows {
		resource, _ := row.(map[string]any)

		resourceID, _ := resource["id"].(string)
		if inventory.shouldIgnore(resourceID) {
			inventory.Logger.Tracef("Ignoring Resource ID: %s", resourceID)
			continue
		}

		resourceName, _ := resource["name"].(string)
		resourceType, _ := resource["type"].(string)
		resourceLocation, _ := resource["location"].(string)
		subscriptionID, _ := resource["subscriptionId"].(string)

		inventory.Logger.Tracef("Adding Resource ID: %s", resourceID)
		resources = append(resources, &types.GraphResource{
			ID:             resourceID,
			Name:           resourceName,
			Type:           resourceType,
			Location:       resourceLocation,
			SubscriptionID: subscriptionID,
		})
	}

	return resources
}

func (inventory *InventoryClient) shouldIgnore(resourceID string) bool {
	for _, pattern := range inventory.IgnoreResourceIDPatterns {
		matched, err := regexp.MatchString(pattern, resourceID)
		if err != nil {
			inventory.Logger.Debugf("Error matching pattern %s: %v", pattern, err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
