package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	eyespy "github.com/kaimana/eyespy"
	"github.com/kaimana/eyespy/internal/discovery"
	"github.com/kaimana/eyespy/internal/scp"
)

func main() {
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}

	if flagVersion {
		fmt.Println("eyespyd", version)
		os.Exit(0)
	}

	if flagLogLevel != "" {
		os.Setenv("LOGLEVEL", flagLogLevel)
	}

	prefs := scp.DefaultPreferences()
	prefs.PortSCP = flagSCPPort
	prefs.PortInVideo = flagVideoPort

	cfg := eyespy.DefaultConfig()
	cfg.DevicePath = flagInput
	cfg.Preferences = prefs

	session, err := eyespy.Open(cfg)
	if err != nil {
		fatal(err)
	}
	defer session.Close()

	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	green.Printf("eyespyd listening: scp=%d video=%d name=%q\n", session.LocalPort(), flagVideoPort, flagDisplayName)

	watcher, err := discovery.NewMDNSWatcher()
	if err != nil {
		yellow.Printf("mdns unavailable, discovery disabled: %v\n", err)
	} else {
		defer watcher.Close()
		go announcePeers(watcher, yellow)
	}

	if flagDial != "" {
		go dial(session, flagDial, green, red)
	}

	go printEvents(session, green, red, yellow)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

func dial(session *eyespy.Session, target string, green, red *color.Color) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		red.Printf("invalid --dial target %q: %v\n", target, err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		red.Printf("invalid --dial port %q: %v\n", portStr, err)
		return
	}

	addrs, err := net.LookupIP(host)
	if err != nil || len(addrs) == 0 {
		red.Printf("cannot resolve %q: %v\n", host, err)
		return
	}

	dest := &net.TCPAddr{IP: addrs[0], Port: port}
	if _, err := session.Call(dest); err != nil {
		red.Printf("call to %s failed: %v\n", target, err)
		return
	}
	green.Printf("connected to %s\n", target)
}

func printEvents(session *eyespy.Session, green, red, yellow *color.Color) {
	for event := range session.Events() {
		switch event.Kind {
		case eyespy.PeerIncoming:
			yellow.Printf("incoming call from %s, accepting\n", event.PeerIP)
			if _, err := session.Accept(); err != nil {
				red.Printf("accept failed: %v\n", err)
			}
		case eyespy.PeerConnected:
			green.Printf("call established with %s\n", event.Session.PeerIP)
		case eyespy.PeerFailed:
			red.Printf("call failed: %v\n", event.Err)
		case eyespy.PeerDisconnected:
			yellow.Println("call ended")
		}
	}
}

// announcePeers logs discovered peers; a real UI would offer them as dial
// targets instead.
func announcePeers(watcher discovery.Watcher, yellow *color.Color) {
	for peer := range watcher.Services() {
		yellow.Printf("discovered peer %s at %v:%d\n", peer.Hostname, peer.Addrs, peer.Port)
	}
}

func fatal(err error) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "eyespyd: %v\n", err)
	os.Exit(1)
}
