// Package netutil resolves the socket addresses named by Config.
package netutil

import "net"

// ResolveTCP parses a "host:port" socket address the way the teacher's
// utils.AddrRepr does, narrowed to TCP: this server only ever listens on
// TCP (memcached text protocol and the health endpoint), so the unix
// socket branch the client-side AddrRepr carried is dropped rather than
// adapted — nothing in this repo dials a unix socket.
func ResolveTCP(addr string) (*net.TCPAddr, error) {
	return net.ResolveTCPAddr("tcp", addr)
}
