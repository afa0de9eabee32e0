package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/azure"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/runlog"
	"github.com/azure/azure-exposure-reporter/types"
)

// IReportModule is one per-resource-type report. Run produces the module's
// overview; recoverable per-resource problems go to the run log, only fatal
// preconditions surface as errors.
type IReportModule interface {
	Name() string
	Run(ctx context.Context) (*types.Overview, error)
}

// baseModule carries the clients every report module needs. Modules embed it
// and add nothing else.
type baseModule struct {
	ArmClient       arm.IArmClient
	InventoryClient azure.IInventoryClient
	ResolverClient  exposure.IResolverClient
	RunLog          *runlog.RunLog
	Logger          *logrus.Logger
}

// fetchedResource pairs an inventoried resource with its fetched content and
// the API versions used, so modules can issue follow-up sub-resource calls.
type fetchedResource struct {
	Resource    *types.GraphResource
	ApiVersions []string
	Content     map[string]any
	Properties  map[string]any
}

func (fetched *fetchedResource) name() string {
	if resourceName, present := fetched.Content["name"].(string); present {
		return resourceName
	}
	return fetched.Resource.Name
}

// fetchResourcesOfType enumerates all resources of the passed type and
// fetches each one's content. Hidden resources are skipped silently,
// unfetchable ones are recorded in the run log; fatal precondition errors
// abort. resourceKind is the human-readable name used in log records, e.g.
// "Key Vault".
func (base *baseModule) fetchResourcesOfType(ctx context.Context, resourceType string, resourceKind string) ([]*fetchedResource, error) {
	resources, err := base.InventoryClient.GetResourcesOfType(ctx, resourceType)
	if err != nil {
		return nil, err
	}

	fetched := []*fetchedResource{}

	for _, resource := range resources {
		apiVersions, err := base.ArmClient.GetApiVersions(ctx, resource.SubscriptionID, resourceType)
		if err != nil {
			return nil, err
		}

		result, err := base.ArmClient.GetResource(ctx, resource.ID, apiVersions)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case arm.FetchStatusHidden:
			base.Logger.Debugf("Skipping Microsoft-managed resource: %s", resource.ID)
			continue
		case arm.FetchStatusUnsupported:
			base.Logger.Debugf("Skipping resource with unsupported content: %s", resource.ID)
			continue
		case arm.FetchStatusNotFound:
			base.RunLog.RecordError(resource.ID, apiVersions, fmt.Sprintf("Could not retrieve content of %s", resourceKind))
			continue
		}

		properties, _ := result.Content["properties"].(map[string]any)
		fetched = append(fetched, &fetchedResource{
			Resource:    resource,
			ApiVersions: apiVersions,
			Content:     result.Content,
			Properties:  properties,
		})
	}

	return fetched, nil
}

// exposureOrSkip maps a resolution outcome to either a usable exposure or a
// skip decision. Hidden resources are skipped silently; failed resolutions
// and per-resource schema errors are recorded and skipped; fatal errors pass
// through untouched.
func (base *baseModule) exposureOrSkip(resource *types.GraphResource, result *types.ExposureResult, err error) (*types.NetworkExposure, bool, error) {
	if err != nil {
		var fatalError *arm.FatalError
		if errors.As(err, &fatalError) {
			return nil, false, err
		}
		base.RunLog.RecordError(resource.ID, nil, fmt.Sprintf("Could not resolve network exposure: %v", err))
		return nil, true, nil
	}

	switch result.Status {
	case types.ExposureStatusHidden:
		base.Logger.Debugf("Skipping resource with Microsoft-managed private endpoint: %s", resource.ID)
		return nil, true, nil
	case types.ExposureStatusFailed:
		base.RunLog.RecordError(resource.ID, nil, "Could not resolve private endpoints")
		return nil, true, nil
	}

	return result.Exposure, false, nil
}

// stringProperty reads an optional string field, returning the fallback when
// the field is absent or not a string.
func stringProperty(properties map[string]any, fieldName string, fallback string) string {
	if value, present := properties[fieldName].(string); present {
		return value
	}
	return fallback
}

func boolProperty(properties map[string]any, fieldName string) bool {
	value, _ := properties[fieldName].(bool)
	return value
}

// enabledDisabled renders a bool the way the portal does.
func enabledDisabled(enabled bool) string {
	if enabled {
		return "Enabled"
	}
	return "Disabled"
}
