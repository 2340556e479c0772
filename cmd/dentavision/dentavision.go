package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/dentavision/dentavision/server"
)

func main() {
	parser := argparse.NewParser("dentavision", "Dental X-ray diagnosis service")
	hotReloadWWW := parser.Flag("", "hot", &argparse.Options{Help: "Hot reload www instead of embedding into binary", Default: false})
	configFilePath := parser.String("c", "config", &argparse.Options{Help: "Config file path", Default: "dentavision.json"})
	port := parser.String("p", "port", &argparse.Options{Help: "HTTP listen port", Default: "8080"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	s, err := server.NewServer(*configFilePath)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	s.HotReloadWWW = *hotReloadWWW
	s.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := s.ListenHTTP(":" + *port); err != nil {
		fmt.Printf("%v\n", err)
	}
}
