/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
// @title           Approval Router API
// @version         1.0
// @description     Multi-stage approval workflow routing API
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token from Keycloak
package main

import "github.com/mautops/approval-router/cmd"

//go:generate swag init -g main.go -o docs

func main() {
	cmd.Execute()
}
