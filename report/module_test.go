package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

type mockArmClient struct {
	ApiVersions map[string][]string
	Resources   map[string]*arm.FetchResult
	PostResults map[string]*arm.FetchResult

	RequestedPaths []string
	PostedBodies   map[string]map[string]any
}

func (mockClient *mockArmClient) GetSubscriptions(ctx context.Context) ([]string, error) {
	return []string{"sub1"}, nil
}

func (mockClient *mockArmClient) GetApiVersions(ctx context.Context, subscriptionID string, resourceType string) ([]string, error) {
	if apiVersions, found := mockClient.ApiVersions[resourceType]; found {
		return apiVersions, nil
	}
	return []string{"2023-04-01"}, nil
}

func (mockClient *mockArmClient) GetResource(ctx context.Context, resourcePath string, apiVersions []string) (*arm.FetchResult, error) {
	mockClient.RequestedPaths = append(mockClient.RequestedPaths, resourcePath)
	if result, found := mockClient.Resources[resourcePath]; found {
		return result, nil
	}
	return &arm.FetchResult{Status: arm.FetchStatusNotFound}, nil
}

func (mockClient *mockArmClient) PostResource(ctx context.Context, resourcePath string, requestBody map[string]any, apiVersions []string) (*arm.FetchResult, error) {
	if mockClient.PostedBodies == nil {
		mockClient.PostedBodies = map[string]map[string]any{}
	}
	mockClient.PostedBodies[resourcePath] = requestBody
	if result, found := mockClient.PostResults[resourcePath]; found {
		return result, nil
	}
	return &arm.FetchResult{Status: arm.FetchStatusNotFound}, nil
}

type mockInventoryClient struct {
	ResourcesByType map[string][]*types.GraphResource
}

func (mockClient *mockInventoryClient) GetResourcesOfType(ctx context.Context, resourceType string) ([]*types.GraphResource, error) {
	return mockClient.ResourcesByType[resourceType], nil
}

type mockServicePrincipalClient struct {
	ServicePrincipals []*types.ServicePrincipal
}

func (mockClient *mockServicePrincipalClient) GetServicePrincipals(ctx context.Context) ([]*types.ServicePrincipal, error) {
	return mockClient.ServicePrincipals, nil
}

// newTestBase wires a base module onto mocks, with a real resolver walking
// the mocked management API.
func newTestBase(t *testing.T, armClient *mockArmClient, inventoryClient *mockInventoryClient) baseModule {
	t.Helper()
	logger := logrus.New()
	return baseModule{
		ArmClient:       armClient,
		InventoryClient: inventoryClient,
		ResolverClient:  exposure.NewResolverClient(armClient, logger),
		RunLog:          runlog.NewRunLog(filepath.Join(t.TempDir(), "run.log"), logger),
		Logger:          logger,
	}
}

func graphResource(resourceID string, resourceType string, resourceName string) *types.GraphResource {
	return &types.GraphResource{
		ID:             resourceID,
		Type:           resourceType,
		Name:           resourceName,
		Location:       "westeurope",
		SubscriptionID: "sub1",
	}
}

func fetchedContent(resourceName string, properties map[string]any) *arm.FetchResult {
	return &arm.FetchResult{
		Status: arm.FetchStatusOK,
		Content: map[string]any{
			"name":       resourceName,
			"properties": properties,
		},
	}
}
