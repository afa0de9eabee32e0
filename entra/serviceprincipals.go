package entra

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/serviceprincipals"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/types"
)

type IServicePrincipalClient interface {
	GetServicePrincipals(ctx context.Context) ([]*types.ServicePrincipal, error)
}

// ServicePrincipalClient reads the tenant's service principals from the
// Microsoft Graph API.
type ServicePrincipalClient struct {
	Credential azcore.TokenCredential
	Logger     *logrus.Logger
}

func NewServicePrincipalClient(credential azcore.TokenCredential, logger *logrus.Logger) *ServicePrincipalClient {
	return &ServicePrincipalClient{
		Credential: credential,
		Logger:     logger,
	}
}

// GetServicePrincipals returns id, display name and type of every service
// principal readable by the credential, following OData paging. Types include
// Application, ManagedIdentity, Legacy and SocialIdp.
func (client *ServicePrincipalClient) GetServicePrincipals(ctx context.Context) ([]*types.ServicePrincipal, error) {
	graphClient, err := msgraphsdk.NewGraphServiceClientWithCredentials(client.Credential, []string{"https://graph.microsoft.com/.default"})
	if err != nil {
		return nil, fmt.Errorf("creating Graph client: %w", err)
	}

	requestConfiguration := &serviceprincipals.ServicePrincipalsRequestBuilderGetRequestConfiguration{
		QueryParameters: &serviceprincipals.ServicePrincipalsRequestBuilderGetQueryParameters{
			Select: []string{"id", "displayName", "servicePrincipalType"},
			Top:    to.Ptr(int32(999)),
		},
	}

	response, err := graphClient.ServicePrincipals().Get(ctx, requestConfiguration)
	if err != nil {
		return nil, fmt.Errorf("listing service principals: %w", err)
	}

	pageIterator, err := msgraphcore.NewPageIterator[models.ServicePrincipalable](response, graphClient.GetAdapter(), models.CreateServicePrincipalCollectionResponseFromDiscriminatorValue)
	if err != nil {
		return nil, fmt.Errorf("creating service principal page iterator: %w", err)
	}

	servicePrincipals := []*types.ServicePrincipal{}
	err = pageIterator.Iterate(ctx, func(servicePrincipal models.ServicePrincipalable) bool {
		servicePrincipals = append(servicePrincipals, &types.ServicePrincipal{
			ID:   stringValue(servicePrincipal.GetId()),
			Name: stringValue(servicePrincipal.GetDisplayName()),
			Type: stringValue(servicePrincipal.GetServicePrincipalType()),
		})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("iterating service principals: %w", err)
	}

	client.Logger.Debugf("Retrieved %d service principals", len(servicePrincipals))
	return servicePrincipals, nil
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
