package main

import "firmpay/internal/app/server"

func main() {
	server.Run()
}
