// Package api provides the OAuth 2.0 authorization server endpoints and the
// credential management REST API.
//
//	@title						Authcore API
//	@version					1.0
//	@description				OAuth 2.0 authorization server and API key management
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.apikey	SessionCookie
//	@in							cookie
//	@name						session_id
package api
