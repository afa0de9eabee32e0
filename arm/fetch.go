package arm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

type FetchStatus string

const (
	// FetchStatusOK means Content holds the parsed resource body.
	FetchStatusOK FetchStatus = "OK"
	// FetchStatusHidden means the resource lives behind a tenant boundary the
	// caller's token cannot cross (Microsoft-managed resources). Benign.
	FetchStatusHidden FetchStatus = "Hidden"
	// FetchStatusUnsupported means the provider declared the requested content
	// unsupported for this resource. Benign.
	FetchStatusUnsupported FetchStatus = "Unsupported"
	// FetchStatusNotFound means every candidate API version was exhausted
	// without a successful response. Recoverable: log and skip the resource.
	FetchStatusNotFound FetchStatus = "NotFound"
)

type FetchResult struct {
	Status  FetchStatus
	Content map[string]any
}

const (
	throttlingErrorCode         = "toomanyrequests"
	hiddenTenantErrorCode       = "invalidauthenticationtokentenant"
	unsupportedFeatureSubstring = "featurenotsupported"
	retryAfterHeader            = "Retry-After"
)

// GetResource retrieves the content of the resource at the passed path,
// trying the passed API versions front to back. The first 200 wins. A
// throttling response does not advance the version: the client sleeps for the
// server-declared number of seconds and retries the same version.
func (armClient *ArmClient) GetResource(ctx context.Context, resourcePath string, apiVersions []string) (*FetchResult, error) {
	return armClient.fetch(ctx, http.MethodGet, resourcePath, nil, apiVersions)
}

// PostResource issues a POST against the passed resource path, typically an
// ARM action such as .../listAccountSas. Hidden resources do not surface
// here: actions are only attempted on resources already fetched.
func (armClient *ArmClient) PostResource(ctx context.Context, resourcePath string, requestBody map[string]any, apiVersions []string) (*FetchResult, error) {
	return armClient.fetch(ctx, http.MethodPost, resourcePath, requestBody, apiVersions)
}

func (armClient *ArmClient) fetch(ctx context.Context, method string, resourcePath string, requestBody map[string]any, apiVersions []string) (*FetchResult, error) {
	for versionIndex := 0; versionIndex < len(apiVersions); versionIndex++ {
		apiVersion := apiVersions[versionIndex]
		url := fmt.Sprintf("%s%s?api-version=%s", armClient.Endpoint, resourcePath, apiVersion)

		request, err := runtime.NewRequest(ctx, method, url)
		if err != nil {
			return nil, err
		}
		if requestBody != nil {
			if err := runtime.MarshalAsJSON(request, requestBody); err != nil {
				return nil, err
			}
		}

		response, err := armClient.Pipeline.Do(request)
		if err != nil {
			return nil, err
		}

		responseBody, err := runtime.Payload(response)
		if err != nil {
			return nil, err
		}

		if response.StatusCode == http.StatusOK {
			var content map[string]any
			if err := json.Unmarshal(responseBody, &content); err != nil {
				return nil, fmt.Errorf("unmarshalling content of %s: %w", resourcePath, err)
			}
			return &FetchResult{Status: FetchStatusOK, Content: content}, nil
		}

		errorCode := strings.ToLower(parseArmError(responseBody).Code)

		switch {
		case method == http.MethodGet && errorCode == hiddenTenantErrorCode:
			return &FetchResult{Status: FetchStatusHidden}, nil

		case strings.Contains(errorCode, unsupportedFeatureSubstring):
			return &FetchResult{Status: FetchStatusUnsupported}, nil

		case errorCode == throttlingErrorCode:
			if err := armClient.waitOutThrottling(ctx, response); err != nil {
				return nil, err
			}
			// Retry the same API version once the cooldown is over.
			versionIndex--

		default:
			armClient.Logger.Debugf("API version %s rejected for %s (%s), trying the next one", apiVersion, resourcePath, errorCode)
		}
	}

	return &FetchResult{Status: FetchStatusNotFound}, nil
}

// waitOutThrottling sleeps for the cooldown declared in the Retry-After
// header, surfacing a once-per-second countdown to the observer. The context
// is checked every tick so a long backoff can be aborted.
func (armClient *ArmClient) waitOutThrottling(ctx context.Context, response *http.Response) error {
	secondsToSleep, err := strconv.Atoi(response.Header.Get(retryAfterHeader))
	if err != nil {
		return fmt.Errorf("throttled without a usable %s header: %w", retryAfterHeader, err)
	}

	for remaining := secondsToSleep; remaining > 0; remaining-- {
		armClient.observer().Throttled(remaining)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	return nil
}

func (armClient *ArmClient) observer() ProgressObserver {
	if armClient.Observer == nil {
		return noopObserver{}
	}
	return armClient.Observer
}
