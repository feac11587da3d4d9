package main

import "mdsync-backend/cmd"

func main() {
	cmd.Run()
}
