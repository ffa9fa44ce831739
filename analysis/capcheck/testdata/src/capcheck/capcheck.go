package capcheck

import (
	"context"
	"net"
	"os"
)

const packetNetwork = "udp"

func literal() {
	net.Dial("udp", "localhost:53") // want `net.Dial requires undeclared capability network.udp \(argument may be udp\)`
}

func declared() {
	net.Dial("tcp", "localhost:80")
}

func constant() {
	net.ListenPacket(packetNetwork, ":0") // want `net.ListenPacket requires undeclared capability network.udp`
}

func branch(local bool) {
	network := "tcp"
	if local {
		network = "unix"
	}
	net.Listen(network, "/tmp/s") // want `net.Listen requires undeclared capability network.unix \(argument may be unix\)`
}

func unresolved(network string) {
	net.Dial(network, "localhost:80")
}

func dialer(ctx context.Context) {
	var d net.Dialer
	d.DialContext(ctx, "udp6", "[::1]:53") // want `net.\(Dialer\).DialContext requires undeclared capability network.udp \(argument may be udp6\)`
}

func environment() {
	os.Setenv("HOME", "/") // want `os.Setenv requires undeclared capability process.env$`
}

func ignored() {
	net.Dial("udp", "localhost:53") //capscan:ignore
}

func lookup() {
	os.Getenv("HOME")
}
