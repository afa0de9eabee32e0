package types

type GraphResource struct {
	ID             string
	Type           string
	Name           string
	Location       string
	SubscriptionID string
}

type ServicePrincipal struct {
	ID   string
	Name string
	Type string
}
