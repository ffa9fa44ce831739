// Programs whose annotated calls resolve to different values with each engine.
// The syntax engine keeps a conditional write that a later write shadows, the
// graph engine follows paths and drops it.

package p

func use(s string) {}

func shadowed(c bool) {
	x := "passive"
	if c {
		x = "gps"
	}
	x = "network"
	use(x)
}
