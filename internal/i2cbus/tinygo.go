package i2cbus

import "tinygo.org/x/drivers"

// TinyGo adapts a TinyGo bus (machine.I2C0 and friends) to Transport so the
// same driver and estimator run on a microcontroller build.
type TinyGo struct {
	bus drivers.I2C
}

func NewTinyGo(bus drivers.I2C) *TinyGo {
	return &TinyGo{bus: bus}
}

func (t *TinyGo) Write(addr uint16, w []byte) error {
	return Classify("write", addr, t.bus.Tx(addr, w, nil))
}

func (t *TinyGo) WriteRead(addr uint16, w, r []byte) error {
	return Classify("write_read", addr, t.bus.Tx(addr, w, r))
}
