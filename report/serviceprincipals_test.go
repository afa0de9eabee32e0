package report

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/azure-exposure-reporter/types"
)

func TestServicePrincipalModule_ListsTenantPrincipals(t *testing.T) {
	servicePrincipalClient := &mockServicePrincipalClient{
		ServicePrincipals: []*types.ServicePrincipal{
			{ID: "11111111-1111-1111-1111-111111111111", Name: "ci-deployer", Type: "Application"},
			{ID: "22222222-2222-2222-2222-222222222222", Name: "vm-identity", Type: "ManagedIdentity"},
		},
	}
	module := NewServicePrincipalModule(servicePrincipalClient, logrus.New())

	overview, err := module.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Type", "Object ID"}, overview.Columns)
	require.Len(t, overview.Rows, 2)
	assert.Equal(t, "ci-deployer", overview.Rows[0].Name)
	assert.Nil(t, overview.Rows[0].Exposure)
	assert.Equal(t, []string{"Application", "11111111-1111-1111-1111-111111111111"}, overview.Rows[0].Values)
}
