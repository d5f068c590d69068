package main

// API documentation for swaggo. Generate with `swag init -g cmd/tutord/docs.go`
// and build with -tags=swagger to serve it.
//
// @title           tutord API
// @version         1.0
// @description     On-device model lifecycle and streaming generation for language tutoring.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
