package exposure

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/types"
)

const (
	privateEndpointResourceType  = "Microsoft.Network/privateEndpoints"
	networkInterfaceResourceType = "Microsoft.Network/networkInterfaces"

	azureBackboneIP    = "0.0.0.0"
	azureBackboneLabel = "Azure backbone"

	publicNetworkAccessEnabled = "Enabled"
	defaultActionDeny          = "deny"
	bypassNone                 = "None"
)

type IResolverClient interface {
	ResolveExposure(ctx context.Context, subscriptionID string, resourceProperties map[string]any) (*types.ExposureResult, error)
	ResolveDatabaseExposure(ctx context.Context, subscriptionID string, resourceProperties map[string]any, firewallRules []any, vnetRules []any) (*types.ExposureResult, error)
}

// ResolverClient normalizes the heterogeneous network-restriction schemas of
// ARM resources into NetworkExposure records. It calls back into the ARM
// client to chase private-endpoint and NIC sub-resources.
type ResolverClient struct {
	ArmClient arm.IArmClient
	Logger    *logrus.Logger
}

func NewResolverClient(armClient arm.IArmClient, logger *logrus.Logger) *ResolverClient {
	return &ResolverClient{
		ArmClient: armClient,
		Logger:    logger,
	}
}

// ResolveExposure determines the network exposure of a resource whose
// restrictions are carried inline in its properties, under either the
// networkRuleSet or the networkAcls dialect.
//
// Hidden and Failed results supersede whatever the ACL walk computed:
// callers never see a partially resolved record.
func (resolver *ResolverClient) ResolveExposure(ctx context.Context, subscriptionID string, resourceProperties map[string]any) (*types.ExposureResult, error) {
	exposure := &types.NetworkExposure{Whitelisted: []string{}, IsPublic: true}

	// App services with no restrictions report publicNetworkAccess as null,
	// which counts as publicly reachable. So does an absent field.
	if rawAccess, present := resourceProperties["publicNetworkAccess"]; present && rawAccess != nil {
		if accessValue, _ := rawAccess.(string); accessValue != publicNetworkAccessEnabled {
			exposure.IsPublic = false
		}
	}

	if exposure.IsPublic {
		networkAcls := extractNetworkAcls(resourceProperties)

		if len(networkAcls) > 0 {
			whitelisted, restricted, err := resolver.resolveAclRules(networkAcls, resourceProperties)
			if err != nil {
				return nil, err
			}
			if restricted {
				exposure.IsPublic = false
				exposure.Whitelisted = append(exposure.Whitelisted, whitelisted...)
			}
		}
	}

	return resolver.appendPrivateEndpoints(ctx, subscriptionID, resourceProperties, exposure)
}

// ResolveDatabaseExposure is the variant for server types whose firewall and
// VNet rules are separate sub-resources fetched by the caller beforehand
// (.../firewallRules and .../virtualNetworkRules entries, in provider order).
func (resolver *ResolverClient) ResolveDatabaseExposure(ctx context.Context, subscriptionID string, resourceProperties map[string]any, firewallRules []any, vnetRules []any) (*types.ExposureResult, error) {
	exposure := &types.NetworkExposure{Whitelisted: []string{}, IsPublic: true}

	if rawAccess, present := resourceProperties["publicNetworkAccess"]; present {
		accessValue, _ := rawAccess.(string)
		exposure.IsPublic = accessValue == publicNetworkAccessEnabled
	} else if rawNetwork, present := resourceProperties["network"]; present {
		// Flexible-server variants nest the flag under a network block.
		networkProperties, _ := rawNetwork.(map[string]any)
		accessValue, _ := networkProperties["publicNetworkAccess"].(string)
		exposure.IsPublic = accessValue == publicNetworkAccessEnabled
	}

	if exposure.IsPublic {
		if err := appendFirewallRules(exposure, firewallRules); err != nil {
			return nil, err
		}
		if err := appendDatabaseVnetRules(exposure, vnetRules); err != nil {
			return nil, err
		}
	}

	return resolver.appendPrivateEndpoints(ctx, subscriptionID, resourceProperties, exposure)
}

// extractNetworkAcls returns the inline ACL block of the resource, trying the
// two dialects in order. The keys are mutually exclusive across resource
// types, so the first match wins.
func extractNetworkAcls(resourceProperties map[string]any) map[string]any {
	for _, aclOption := range []string{"networkRuleSet", "networkAcls"} {
		if rawAcls, present := resourceProperties[aclOption]; present {
			networkAcls, _ := rawAcls.(map[string]any)
			return networkAcls
		}
	}
	return nil
}

// resolveAclRules walks a deny-by-default ACL block into whitelist labels.
// An ACL whose defaultAction is not deny leaves the resource unrestricted and
// records nothing.
func (resolver *ResolverClient) resolveAclRules(networkAcls map[string]any, resourceProperties map[string]any) ([]string, bool, error) {
	defaultAction, present := networkAcls["defaultAction"].(string)
	if !present {
		return nil, false, fmt.Errorf("network ACL block without a defaultAction field")
	}
	if strings.ToLower(defaultAction) != defaultActionDeny {
		return nil, false, nil
	}

	whitelisted := []string{}

	rawIpRules, present := networkAcls["ipRules"]
	if !present {
		return nil, false, fmt.Errorf("deny-by-default network ACL block without an ipRules field")
	}
	ipRules, _ := rawIpRules.([]any)
	for _, rawRule := range ipRules {
		ipRule, _ := rawRule.(map[string]any)
		// Two field dialects for the same thing; first present wins.
		for _, ipRuleOption := range []string{"value", "ipMask"} {
			if whitelistedIp, present := ipRule[ipRuleOption].(string); present {
				whitelisted = append(whitelisted, whitelistedIp)
				break
			}
		}
	}

	if rawVnetRules, present := networkAcls["virtualNetworkRules"]; present {
		vnetRules, _ := rawVnetRules.([]any)
		for _, rawRule := range vnetRules {
			vnetRule, _ := rawRule.(map[string]any)
			vnetRulePath, err := vnetRulePath(vnetRule)
			if err != nil {
				return nil, false, err
			}
			vnetName, subnetName, err := ParseSubnetPath(vnetRulePath)
			if err != nil {
				return nil, false, err
			}
			whitelisted = append(whitelisted, vnetName+"/"+subnetName)
		}
	}

	// Comma-separated service list, e.g. "AzureServices, Logging, Metrics".
	bypassingServices, _ := networkAcls["bypass"].(string)
	if bypassingServices == "" {
		bypassingServices, _ = resourceProperties["networkRuleBypassOptions"].(string)
	}
	if bypassingServices != "" && bypassingServices != bypassNone {
		whitelisted = append(whitelisted, bypassingServices)
	}

	return whitelisted, true, nil
}

// vnetRulePath reads the subnet reference of an inline VNet rule, which may
// carry either a direct id or a nested subnet.id.
func vnetRulePath(vnetRule map[string]any) (string, error) {
	if rulePath, present := vnetRule["id"].(string); present {
		return rulePath, nil
	}

	subnetReference, _ := vnetRule["subnet"].(map[string]any)
	if rulePath, present := subnetReference["id"].(string); present {
		return rulePath, nil
	}

	return "", fmt.Errorf("virtual network rule without an id or subnet.id field")
}

func appendFirewallRules(exposure *types.NetworkExposure, firewallRules []any) error {
	for _, rawRule := range firewallRules {
		firewallRule, _ := rawRule.(map[string]any)
		ruleProperties, _ := firewallRule["properties"].(map[string]any)

		startIp, startPresent := ruleProperties["startIpAddress"].(string)
		endIp, endPresent := ruleProperties["endIpAddress"].(string)
		if !startPresent || !endPresent {
			return fmt.Errorf("firewall rule without startIpAddress and endIpAddress fields")
		}

		if startIp == azureBackboneIP && endIp == azureBackboneIP {
			// The 0.0.0.0-0.0.0.0 sentinel means "trusted Azure services".
			// Providers may return several such rules under different names;
			// dedupe on the label.
			if !slices.Contains(exposure.Whitelisted, azureBackboneLabel) {
				exposure.Whitelisted = append(exposure.Whitelisted, azureBackboneLabel)
			}
		} else if startIp == endIp {
			exposure.Whitelisted = append(exposure.Whitelisted, startIp)
		} else {
			exposure.Whitelisted = append(exposure.Whitelisted, startIp+" - "+endIp)
		}
	}

	return nil
}

func appendDatabaseVnetRules(exposure *types.NetworkExposure, vnetRules []any) error {
	for _, rawRule := range vnetRules {
		vnetRule, _ := rawRule.(map[string]any)
		ruleProperties, _ := vnetRule["properties"].(map[string]any)

		subnetPath, present := ruleProperties["virtualNetworkSubnetId"].(string)
		if !present {
			return fmt.Errorf("virtual network rule without a virtualNetworkSubnetId field")
		}

		vnetName, subnetName, err := ParseSubnetPath(subnetPath)
		if err != nil {
			return err
		}
		exposure.Whitelisted = append(exposure.Whitelisted, vnetName+"/"+subnetName)
	}

	return nil
}

// appendPrivateEndpoints resolves the resource's private-endpoint connections
// and appends their rules to the whitelist. Private endpoints are additive:
// a resource can be closed to the public internet and still reachable through
// an endpoint. A Hidden or Failed outcome discards the exposure computed so
// far and is returned as-is.
func (resolver *ResolverClient) appendPrivateEndpoints(ctx context.Context, subscriptionID string, resourceProperties map[string]any, exposure *types.NetworkExposure) (*types.ExposureResult, error) {
	rawConnections, present := resourceProperties["privateEndpointConnections"]
	if !present {
		return types.ResolvedExposure(exposure), nil
	}
	connections, _ := rawConnections.([]any)

	endpointRules, status, err := resolver.resolvePrivateEndpoints(ctx, subscriptionID, connections)
	if err != nil {
		return nil, err
	}
	if status != types.ExposureStatusResolved {
		return &types.ExposureResult{Status: status}, nil
	}

	exposure.Whitelisted = append(exposure.Whitelisted, endpointRules...)
	return types.ResolvedExposure(exposure), nil
}

// resolvePrivateEndpoints resolves each connection to a
// "<vnet>/<subnet> (<ip>, ...)" rule, in input order. One hidden endpoint
// taints the whole result; one failed fetch aborts it.
func (resolver *ResolverClient) resolvePrivateEndpoints(ctx context.Context, subscriptionID string, connections []any) ([]string, types.ExposureStatus, error) {
	apiVersions, err := resolver.ArmClient.GetApiVersions(ctx, subscriptionID, privateEndpointResourceType)
	if err != nil {
		return nil, "", err
	}

	endpointRules := []string{}

	for _, rawConnection := range connections {
		connection, _ := rawConnection.(map[string]any)
		endpointPath, err := privateEndpointPath(connection)
		if err != nil {
			return nil, "", err
		}

		endpointResult, err := resolver.ArmClient.GetResource(ctx, endpointPath, apiVersions)
		if err != nil {
			return nil, "", err
		}
		if endpointResult.Status == arm.FetchStatusHidden {
			return nil, types.ExposureStatusHidden, nil
		}
		if endpointResult.Status != arm.FetchStatusOK {
			return nil, types.ExposureStatusFailed, nil
		}

		endpointProperties, _ := endpointResult.Content["properties"].(map[string]any)
		subnetReference, _ := endpointProperties["subnet"].(map[string]any)
		subnetPath, present := subnetReference["id"].(string)
		if !present {
			return nil, "", fmt.Errorf("private endpoint %s without a subnet reference", endpointPath)
		}

		vnetName, subnetName, err := ParseSubnetPath(subnetPath)
		if err != nil {
			return nil, "", err
		}

		ipAddresses := customDnsIpAddresses(endpointProperties)
		if len(ipAddresses) == 0 {
			// The cheap path yielded nothing; resolve the attached NICs at the
			// cost of one extra fetch each.
			ipAddresses, status, err := resolver.resolveEndpointNics(ctx, subscriptionID, endpointProperties)
			if err != nil {
				return nil, "", err
			}
			if status != types.ExposureStatusResolved {
				return nil, status, nil
			}
			endpointRules = append(endpointRules, fmt.Sprintf("%s/%s (%s)", vnetName, subnetName, strings.Join(ipAddresses, ", ")))
			continue
		}

		endpointRules = append(endpointRules, fmt.Sprintf("%s/%s (%s)", vnetName, subnetName, strings.Join(ipAddresses, ", ")))
	}

	return endpointRules, types.ExposureStatusResolved, nil
}

func privateEndpointPath(connection map[string]any) (string, error) {
	connectionProperties, _ := connection["properties"].(map[string]any)
	endpointReference, _ := connectionProperties["privateEndpoint"].(map[string]any)

	if endpointPath, present := endpointReference["id"].(string); present {
		return endpointPath, nil
	}

	return "", fmt.Errorf("private endpoint connection without a properties.privateEndpoint.id field")
}

func customDnsIpAddresses(endpointProperties map[string]any) []string {
	ipAddresses := []string{}

	dnsConfigs, _ := endpointProperties["customDnsConfigs"].([]any)
	for _, rawConfig := range dnsConfigs {
		dnsConfig, _ := rawConfig.(map[string]any)
		configAddresses, _ := dnsConfig["ipAddresses"].([]any)
		for _, rawAddress := range configAddresses {
			if ipAddress, present := rawAddress.(string); present {
				ipAddresses = append(ipAddresses, ipAddress)
			}
		}
	}

	return ipAddresses
}

// resolveEndpointNics collects the private IP of every IP configuration on
// the endpoint's network interfaces. Any NIC that cannot be fetched, hidden
// or not, leaves the endpoint unresolvable.
func (resolver *ResolverClient) resolveEndpointNics(ctx context.Context, subscriptionID string, endpointProperties map[string]any) ([]string, types.ExposureStatus, error) {
	apiVersions, err := resolver.ArmClient.GetApiVersions(ctx, subscriptionID, networkInterfaceResourceType)
	if err != nil {
		return nil, "", err
	}

	ipAddresses := []string{}

	networkInterfaces, _ := endpointProperties["networkInterfaces"].([]any)
	for _, rawInterface := range networkInterfaces {
		networkInterface, _ := rawInterface.(map[string]any)
		interfacePath, present := networkInterface["id"].(string)
		if !present {
			return nil, "", fmt.Errorf("network interface reference without an id field")
		}

		interfaceResult, err := resolver.ArmClient.GetResource(ctx, interfacePath, apiVersions)
		if err != nil {
			return nil, "", err
		}
		if interfaceResult.Status != arm.FetchStatusOK {
			return nil, types.ExposureStatusFailed, nil
		}

		interfaceProperties, _ := interfaceResult.Content["properties"].(map[string]any)
		ipConfigurations, _ := interfaceProperties["ipConfigurations"].([]any)
		for _, rawConfiguration := range ipConfigurations {
			ipConfiguration, _ := rawConfiguration.(map[string]any)
			configurationProperties, _ := ipConfiguration["properties"].(map[string]any)
			if ipAddress, present := configurationProperties["privateIPAddress"].(string); present {
				ipAddresses = append(ipAddresses, ipAddress)
			}
		}
	}

	return ipAddresses, types.ExposureStatusResolved, nil
}
