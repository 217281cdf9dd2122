package event

import (
	"errors"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"
)

func TestSignalOrderAndDisconnect(t *testing.T) {
	var ev Event[int]
	var got []int
	c1 := ev.Connect(func(v int) { got = append(got, v) })
	ev.Connect(func(v int) { got = append(got, v*10) })
	test.That(t, ev.ConnectionCount(), test.ShouldEqual, 2)

	test.That(t, ev.Signal(1), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []int{1, 10})

	c1.Disconnect()
	c1.Disconnect()
	test.That(t, ev.ConnectionCount(), test.ShouldEqual, 1)
	test.That(t, ev.Signal(2), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []int{1, 10, 20})

	var nilConn *Connection
	nilConn.Disconnect()
}

func TestSignalIsolatesPanics(t *testing.T) {
	var ev Event[string]
	var after []string
	ev.Connect(func(string) { panic("boom") })
	ev.Connect(func(s string) { after = append(after, s) })
	ev.Connect(func(string) { panic(errors.New("bang")) })

	err := ev.Signal("frame")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, after, test.ShouldResemble, []string{"frame"})

	errs := multierr.Errors(err)
	test.That(t, errs, test.ShouldHaveLength, 2)
	var pe *PanicError
	test.That(t, errors.As(errs[0], &pe), test.ShouldBeTrue)
	test.That(t, pe.Value, test.ShouldEqual, "boom")
	test.That(t, errs[1].Error(), test.ShouldContainSubstring, "bang")
}

func TestDisconnectDuringSignal(t *testing.T) {
	var ev Event[int]
	calls := 0
	var conn *Connection
	conn = ev.Connect(func(int) {
		calls++
		conn.Disconnect()
	})
	test.That(t, ev.Signal(0), test.ShouldBeNil)
	test.That(t, ev.Signal(0), test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 1)
}
