package types

// NetworkExposure describes where a resource can be reached from.
//
// The three reachable states are mutually exclusive:
//   - IsPublic false with an empty whitelist: fully private
//   - IsPublic true with a non-empty whitelist: selected networks only
//   - IsPublic true with an empty whitelist: open to the internet
type NetworkExposure struct {
	Whitelisted []string
	IsPublic    bool
}

const (
	ExposureLabelPrivate          = "Private"
	ExposureLabelSelectedNetworks = "Selected networks"
	ExposureLabelAllNetworks      = "All networks"
)

// Label maps the exposure to its report column value. A non-empty whitelist
// takes precedence over the public flag.
func (exposure *NetworkExposure) Label() string {
	if len(exposure.Whitelisted) > 0 {
		return ExposureLabelSelectedNetworks
	}

	if exposure.IsPublic {
		return ExposureLabelAllNetworks
	}

	return ExposureLabelPrivate
}

type ExposureStatus string

const (
	// ExposureStatusResolved means Exposure carries a complete record.
	ExposureStatusResolved ExposureStatus = "Resolved"
	// ExposureStatusHidden means the resource is Microsoft-managed and cannot
	// be inspected with the caller's token. Not an error.
	ExposureStatusHidden ExposureStatus = "Hidden"
	// ExposureStatusFailed means a private-endpoint or NIC sub-resource could
	// not be retrieved and the record would be incomplete.
	ExposureStatusFailed ExposureStatus = "Failed"
)

type ExposureResult struct {
	Status   ExposureStatus
	Exposure *NetworkExposure
}

func ResolvedExposure(exposure *NetworkExposure) *ExposureResult {
	return &ExposureResult{Status: ExposureStatusResolved, Exposure: exposure}
}

func HiddenExposure() *ExposureResult {
	return &ExposureResult{Status: ExposureStatusHidden}
}

func FailedExposure() *ExposureResult {
	return &ExposureResult{Status: ExposureStatusFailed}
}
