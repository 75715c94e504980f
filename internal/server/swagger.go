package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title Veritas API
// @version 0.1
// @description Image forensics sessions: upload an image, follow extraction and analysis, fetch the report.
// @contact.name Veritas Maintainers
// @contact.url https://github.com/raysh454/veritas
// @BasePath /
