package main

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

var (
	flagSCPPort     uint16
	flagVideoPort   uint16
	flagInput       string
	flagDisplayName string
	flagDial        string
	flagLogLevel    string
	flagHelp        bool
	flagVersion     bool
)

func init() {
	flag.Uint16VarP(&flagSCPPort, "scp-port", "p", 60201, "SCP control port to listen on")
	flag.Uint16VarP(&flagVideoPort, "video-port", "u", 7000, "UDP port for the H.264 video stream")
	flag.StringVarP(&flagInput, "input", "i", "", "Camera device (default: probe /dev/video0, /dev/video1)")
	flag.StringVarP(&flagDisplayName, "name", "n", "eyespy", "Local display name shown in the startup line (not advertised)")
	flag.StringVarP(&flagDial, "dial", "d", "", "Connect to host:port instead of waiting for an incoming call")
	flag.StringVarP(&flagLogLevel, "log-level", "l", "", "Log level (error, warn, info, debug); overrides LOGLEVEL")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Peer-to-peer video calling for connected devices

Usage: eyespyd [OPTION]...

Network:
  -p, --scp-port=NUM     SCP control port to listen on (default: 60201)
  -u, --video-port=NUM    UDP port for the H.264 video stream (default: 7000)
  -d, --dial=HOST:PORT    Connect to a peer instead of waiting for a call

Video source:
  -i, --input=FILE        Camera device (default: probe /dev/video0, /dev/video1)

Miscellaneous:
  -n, --name=NAME         Local display name shown in the startup line (not advertised)
  -l, --log-level=LEVEL   Log level: error, warn, info, debug
  -h, --help              Prints this help message and exits
  -v, --version           Prints version information and exits

A browser-facing signaling bridge (e.g. github.com/gorilla/websocket) would
sit in front of this binary's Session API rather than inside it; SCP is a
raw TCP protocol between two eyespyd instances, not a websocket endpoint.`

func help() {
	fmt.Println(helpString)
}

const version = "0.1.0"
