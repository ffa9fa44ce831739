// Programs whose annotated calls resolve to the same values with both engines.
// Each call to use has its expected values in a @Values annotation.

package p

const Network = "network"

type Kind string

const KindGPS Kind = "gps"

var provider = "passive"

var mutable = "a"

func setMutable() {
	mutable = "b"
}

func use(s string) {}

func external() string

func literal() {
	use("gps") // @Values(gps)
}

func qualified() {
	use(Network)         // @Values(network)
	use(string(KindGPS)) // @Values(gps)
	use(provider)        // @Values(passive)
	use(mutable)         // @Values()
}

func straight() {
	x := "network"
	use(x) // @Values(network)
}

func overwrite() {
	x := "gps"
	x = "network"
	use(x) // @Values(network)
}

func branches(c bool) {
	var x string
	if c {
		x = "gps"
	} else {
		x = "network"
	}
	use(x) // @Values(gps, network)
}

func unconditionalFirst(c bool) {
	x := "passive"
	if c {
		x = "gps"
	}
	use(x) // @Values(passive, gps)
}

func writesAfterUse() {
	x := "gps"
	use(x) // @Values(gps)
	x = "network"
	use(x) // @Values(network)
}

func opaque() {
	x := "gps"
	x += "x"
	use(x) // @Values()
}

func opaqueConcat(y string) {
	x := "gps"
	x = y + "z"
	use(x) // @Values()
}

func chain() {
	a := "network"
	b := a
	use(b) // @Values(network)
}

func param(p string) {
	use(p) // @Values()
}

func getProvider() string {
	return "gps"
}

func twoReturns(c bool) string {
	if c {
		return "gps"
	}
	return "network"
}

func calls(c bool) {
	use(getProvider()) // @Values(gps)
	use(twoReturns(c)) // @Values(gps, network)
	use(external())    // @Values()
}

func pair() (string, int) {
	return "udp", 1
}

func tuples() {
	n, _ := pair()
	use(n) // @Values(udp)
}

func named() (s string) {
	s = "tcp"
	return
}

func bare() {
	use(named()) // @Values(tcp)
}

func pairErr() (string, error) {
	return "unix", nil
}

func forward() (string, error) {
	return pairErr()
}

func forwarded() {
	s, _ := forward()
	use(s) // @Values(unix)
}

func recursive(n int) string {
	if n == 0 {
		return "gps"
	}
	return recursive(n - 1)
}

func mutualA(n int) string {
	if n == 0 {
		return "a"
	}
	return mutualB(n - 1)
}

func mutualB(n int) string {
	if n == 0 {
		return "b"
	}
	return mutualA(n - 1)
}

func cycles() {
	use(recursive(3)) // @Values(gps)
	use(mutualA(3))   // @Values(a, b)
}

type server struct {
	kind string
}

func (s *server) network() string {
	return "tcp"
}

func (s *server) dial() {
	x := s.network()
	use(x)      // @Values(tcp)
	use(s.kind) // @Values()
}

func iife() {
	use(func() string { return "gps" }()) // @Values(gps)
}

func iface() {
	var v any = "gps"
	use(v.(string)) // @Values(gps)
}
