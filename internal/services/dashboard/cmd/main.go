package main

import "github.com/LeonardoBeccarini/agritech_dashboard/internal/services/dashboard/cmd/commands"

func main() {
	commands.Execute()
}
