package main

import "net"

func network(secure bool) string {
	if secure {
		return "tcp"
	}
	return "udp"
}

func main() {
	net.Dial(network(false), "localhost:80")
	net.Listen("unix", "/tmp/s") //capscan:ignore
	net.Dial("ip4", "localhost")
}
