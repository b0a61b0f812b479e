package main

import (
	"fedgrants-backend/cmd/fedgrants/cmd"
)

func main() {
	cmd.Execute()
}
