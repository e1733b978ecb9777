// Package docs provides generated OpenAPI documentation.
//
// Songbook API
//
//	@title			Songbook API
//	@version		1.0
//	@description	Music prompt templates and children's worship song generation.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/songbook
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/songbook/serve.go -o ./swagger --parseDependency --parseInternal
