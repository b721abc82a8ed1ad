package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	hf          bool
	configPath  string
	projectPath string
	logLevel    string
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/conf.toml", "set config `file`")
	flag.StringVar(&projectPath, "p", "", "set project `file` (json)")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
	if projectPath == "" {
		fmt.Fprintln(os.Stderr, "a project file is required (-p)")
		flag.Usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `tileseed version: tileseed/v0.1.0
Usage: tileseed [-h] [-c filename] -p project.json [-l logLevel]
`)
	flag.PrintDefaults()
}
