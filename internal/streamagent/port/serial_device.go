package port

import (
	"github.com/tarm/serial"
)

// serialDevice is the alternate Device backend for deployments where the
// stream device is presented as a real line-disciplined serial tty (rather
// than the common raw virtio-serial character device) and therefore needs
// baud-rate/line configuration before use. tarm/serial hides its file
// descriptor, so PollReadable is implemented as a short-timeout peek read
// instead of a raw poll(2) call: the peeked byte (if any) is buffered and
// handed back first on the next Read.
type serialDevice struct {
	port *serial.Port

	pending []byte // at most one byte, buffered by a PollReadable peek
}

// OpenSerialDevice opens path as a tty at the given baud rate. ReadTimeout is
// fixed at pollInterval so a single configured deadline serves PollReadable
// in both blocking and non-blocking mode (see PollReadable).
func OpenSerialDevice(path string, baud int) (Device, error) {
	cfg := &serial.Config{Name: path, Baud: baud, ReadTimeout: pollInterval}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &serialDevice{port: p}, nil
}

func (d *serialDevice) Read(p []byte) (int, error) {
	if len(d.pending) > 0 {
		n := copy(p, d.pending)
		d.pending = d.pending[n:]
		return n, nil
	}
	return d.port.Read(p)
}

func (d *serialDevice) Write(p []byte) (int, error) { return d.port.Write(p) }
func (d *serialDevice) Close() error                { return d.port.Close() }

// PollReadable peeks one byte using the port's fixed ReadTimeout. tarm/serial
// returns (0, nil) on a read timeout on the platforms this agent targets,
// which this treats as "not ready" rather than an error. Non-blocking
// callers on this backend still wait up to pollInterval: tarm/serial fixes
// the timeout at OpenPort time, so this backend cannot offer a true
// zero-wait poll the way fileDevice can. That's an accepted limitation of
// the uncommon tty-backed path.
func (d *serialDevice) PollReadable(blocking bool) (bool, error) {
	if len(d.pending) > 0 {
		return true, nil
	}
	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	d.pending = buf[:n]
	return true, nil
}
