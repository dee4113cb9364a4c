package core

// Wire-level headers every participating service must honor.
const (
	HeaderServiceToken  = "X-Service-Token"
	HeaderServiceAPIKey = "X-Service-Api-Key"
	HeaderServiceName   = "X-Service-Name"
	HeaderAuthorization = "Authorization"
)
