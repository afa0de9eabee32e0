package exposure

import (
	"fmt"
	"strings"
)

const (
	virtualNetworksMarker = "virtualnetworks/"
	subnetsMarker         = "/subnets/"
)

// MalformedPathError reports a resource ID that does not carry the
// virtualNetworks/.../subnets/... segments. This must never be swallowed: it
// means the provider changed its ID schema.
type MalformedPathError struct {
	Path string
}

func (malformedPathError *MalformedPathError) Error() string {
	return fmt.Sprintf("no virtual network and subnet markers in resource path: %s", malformedPathError.Path)
}

// ParseSubnetPath extracts the virtual network and subnet names from a full
// resource ID such as
//
//	/subscriptions/<id>/resourceGroups/rg/providers/Microsoft.Network/virtualNetworks/myVnet/subnets/mySubnet
//
// Both names are returned lower-cased. Trailing segments after the subnet
// name are retained; callers needing a bare subnet name must split further.
func ParseSubnetPath(path string) (string, string, error) {
	loweredPath := strings.ToLower(path)

	markerIndex := strings.Index(loweredPath, virtualNetworksMarker)
	if markerIndex == -1 {
		return "", "", &MalformedPathError{Path: path}
	}
	remainder := loweredPath[markerIndex+len(virtualNetworksMarker):]

	subnetIndex := strings.Index(remainder, subnetsMarker)
	if subnetIndex == -1 {
		return "", "", &MalformedPathError{Path: path}
	}

	vnetName := remainder[:subnetIndex]
	subnetName := remainder[subnetIndex+len(subnetsMarker):]

	return vnetName, subnetName, nil
}
