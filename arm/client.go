package arm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/sirupsen/logrus"
)

const (
	moduleName    = "azure-exposure-reporter"
	moduleVersion = "v1.0.0"

	subscriptionsApiVersion = "2020-01-01"
	providersApiVersion     = "2021-04-01"
)

type IArmClient interface {
	GetSubscriptions(ctx context.Context) ([]string, error)
	GetApiVersions(ctx context.Context, subscriptionID string, resourceType string) ([]string, error)
	GetResource(ctx context.Context, resourcePath string, apiVersions []string) (*FetchResult, error)
	PostResource(ctx context.Context, resourcePath string, requestBody map[string]any, apiVersions []string) (*FetchResult, error)
}

// ArmClient performs raw calls against the Azure Resource Manager API. The
// per-resource api-version negotiation and the throttling backoff live in
// fetch.go; everything here is addressing and discovery.
type ArmClient struct {
	Endpoint string
	Pipeline runtime.Pipeline
	Observer ProgressObserver
	Logger   *logrus.Logger

	apiVersionCacheMutex sync.Mutex
	apiVersionCache      map[string][]string
}

func NewArmClient(credential azcore.TokenCredential, observer ProgressObserver, logger *logrus.Logger) *ArmClient {
	configuration := cloud.AzurePublic.Services[cloud.ResourceManager]
	scope := strings.TrimSuffix(configuration.Audience, "/") + "/.default"

	clientOptions := &policy.ClientOptions{
		// Throttling is handled by the fetch loop, which honors the
		// server-declared Retry-After. The transport must not retry on its own.
		Retry: policy.RetryOptions{MaxRetries: -1},
	}
	authPolicy := runtime.NewBearerTokenPolicy(credential, []string{scope}, nil)
	pipeline := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{authPolicy},
	}, clientOptions)

	return &ArmClient{
		Endpoint:        configuration.Endpoint,
		Pipeline:        pipeline,
		Observer:        observer,
		Logger:          logger,
		apiVersionCache: map[string][]string{},
	}
}

// GetSubscriptions returns the Id of every subscription readable by the
// client's credential.
func (armClient *ArmClient) GetSubscriptions(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/subscriptions?api-version=%s", armClient.Endpoint, subscriptionsApiVersion)

	body, err := armClient.getJson(ctx, url)
	if err != nil {
		return nil, err
	}

	var response struct {
		Value []struct {
			SubscriptionID string `json:"subscriptionId"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("unmarshalling subscription list: %w", err)
	}

	subscriptionIDs := []string{}
	for _, subscription := range response.Value {
		subscriptionIDs = append(subscriptionIDs, subscription.SubscriptionID)
	}

	return subscriptionIDs, nil
}

// GetApiVersions returns the ordered list of API versions the provider
// registers for the passed resource type within the passed subscription.
// The result is memoized for the lifetime of the client, so report modules
// can re-resolve freely while iterating resources.
//
// A type with no registered version is a configuration problem that would
// fail every later call for that type, so it is reported as a *FatalError
// for the driver to terminate on.
func (armClient *ArmClient) GetApiVersions(ctx context.Context, subscriptionID string, resourceType string) ([]string, error) {
	cacheKey := subscriptionID + "|" + resourceType

	armClient.apiVersionCacheMutex.Lock()
	cached, found := armClient.apiVersionCache[cacheKey]
	armClient.apiVersionCacheMutex.Unlock()
	if found {
		return cached, nil
	}

	// Split on the first separator only: type paths may contain further
	// slashes, e.g. Microsoft.Storage/storageAccounts/blobServices.
	parts := strings.SplitN(resourceType, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("resource type %q is not in <provider>/<type> format", resourceType)
	}
	resourceProvider := parts[0]
	typeSuffix := parts[1]

	url := fmt.Sprintf("%s/subscriptions/%s/providers/%s/resourceTypes?api-version=%s",
		armClient.Endpoint, subscriptionID, resourceProvider, providersApiVersion)

	body, err := armClient.getJson(ctx, url)
	if err != nil {
		return nil, err
	}

	var response struct {
		Value []struct {
			ResourceType string   `json:"resourceType"`
			ApiVersions  []string `json:"apiVersions"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("unmarshalling resource types of provider %s: %w", resourceProvider, err)
	}

	for _, registeredType := range response.Value {
		if registeredType.ResourceType == typeSuffix {
			armClient.apiVersionCacheMutex.Lock()
			armClient.apiVersionCache[cacheKey] = registeredType.ApiVersions
			armClient.apiVersionCacheMutex.Unlock()
			return registeredType.ApiVersions, nil
		}
	}

	return nil, &FatalError{
		Reason: fmt.Sprintf("could not retrieve a valid API version for the resource type %q in subscription %q", resourceType, subscriptionID),
	}
}

// getJson performs a GET that is expected to succeed, translating non-200
// responses through the fatal-error taxonomy.
func (armClient *ArmClient) getJson(ctx context.Context, url string) ([]byte, error) {
	request, err := runtime.NewRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}

	response, err := armClient.Pipeline.Do(request)
	if err != nil {
		return nil, err
	}

	body, err := runtime.Payload(response)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		return nil, classifyError(parseArmError(body))
	}

	return body, nil
}
