package cloudinit

import (
	"errors"
	"net"
	"strconv"
	"testing"
)

func TestFindFreePort(t *testing.T) {
	port, err := findFreePort(8100, 8199)
	if err != nil {
		t.Fatalf("findFreePort failed: %v", err)
	}
	if port < 8100 || port > 8199 {
		t.Errorf("port %d outside range", port)
	}
}

func TestFindFreePortSkipsOccupied(t *testing.T) {
	// Hold the low end of a two-port range.
	l, err := net.Listen("tcp", "127.0.0.1:18100")
	if err != nil {
		t.Skipf("cannot bind 18100: %v", err)
	}
	defer l.Close()

	port, err := findFreePort(18100, 18101)
	if err != nil {
		t.Fatalf("findFreePort failed: %v", err)
	}
	if port != 18101 {
		t.Errorf("port = %d, want 18101", port)
	}
}

func TestFindFreePortExhausted(t *testing.T) {
	var held []net.Listener
	defer func() {
		for _, l := range held {
			l.Close()
		}
	}()
	for p := 18110; p <= 18112; p++ {
		l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(p))
		if err != nil {
			t.Skipf("cannot bind %d: %v", p, err)
		}
		held = append(held, l)
	}

	_, err := findFreePort(18110, 18112)
	var npe *NoPortAvailableError
	if !errors.As(err, &npe) {
		t.Fatalf("error = %v, want NoPortAvailableError", err)
	}
	if npe.Min != 18110 || npe.Max != 18112 {
		t.Errorf("range in error = %d-%d", npe.Min, npe.Max)
	}
}
