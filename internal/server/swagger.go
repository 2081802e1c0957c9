package server

//go:generate swag init -g internal/server/swagger.go -o docs/swagger

// @title webscan API
// @version 0.1
// @description Performance and accessibility scans of public web pages, with cached results and asynchronous jobs.
// @contact.name webscan maintainers
// @contact.url https://github.com/raysh454/webscan
// @BasePath /
