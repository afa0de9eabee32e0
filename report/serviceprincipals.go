package report

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/entra"
	"github.com/azure/azure-exposure-reporter/types"
)

// ServicePrincipalModule inventories the tenant's service principals. It is
// an identity report: rows carry no network-exposure column.
type ServicePrincipalModule struct {
	ServicePrincipalClient entra.IServicePrincipalClient
	Logger                 *logrus.Logger
}

func NewServicePrincipalModule(servicePrincipalClient entra.IServicePrincipalClient, logger *logrus.Logger) *ServicePrincipalModule {
	return &ServicePrincipalModule{
		ServicePrincipalClient: servicePrincipalClient,
		Logger:                 logger,
	}
}

func (module *ServicePrincipalModule) Name() string {
	return "service-principals"
}

func (module *ServicePrincipalModule) Run(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		Columns: []string{"Name", "Type", "Object ID"},
	}

	servicePrincipals, err := module.ServicePrincipalClient.GetServicePrincipals(ctx)
	if err != nil {
		return nil, err
	}

	for _, servicePrincipal := range servicePrincipals {
		overview.AddRow(&types.OverviewRow{
			Name:   servicePrincipal.Name,
			Values: []string{servicePrincipal.Type, servicePrincipal.ID},
		})
	}

	return overview, nil
}
