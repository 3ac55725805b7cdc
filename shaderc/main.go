package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	shader_go "surface-shader-go/shader-go"
)

func TerminateHandler() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	s := <-quit
	fmt.Println("terminate handler called:", s)
	os.Exit(130)
}

func main() {
	go TerminateHandler()
	os.Exit(shader_go.RealMain(os.Args))
}
