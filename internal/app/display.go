package app

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/tilt_computer/internal/sampler"
)

const (
	displayW = 128
	displayH = 64
)

// Drawer is the part of an OLED driver the display sink uses.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// fixedAddrBus sends every transfer to one address, so a display strapped
// to 0x3D works with a driver that assumes 0x3C.
type fixedAddrBus struct {
	i2c.Bus
	addr uint16
}

func (b *fixedAddrBus) Tx(_ uint16, w, r []byte) error { return b.Bus.Tx(b.addr, w, r) }

func (b *fixedAddrBus) String() string { return fmt.Sprintf("%s@0x%02X", b.Bus.String(), b.addr) }

// OpenDisplay initializes an SSD1306 at addr on bus.
func OpenDisplay(bus i2c.Bus, addr uint16) (*ssd1306.Dev, error) {
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(&fixedAddrBus{Bus: bus, addr: addr}, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display at 0x%02X: %w", addr, err)
	}
	return dev, nil
}

// DisplaySink shows the attitude on the OLED.
type DisplaySink struct {
	dev Drawer
}

func NewDisplaySink(dev Drawer) *DisplaySink {
	return &DisplaySink{dev: dev}
}

func (d *DisplaySink) Publish(r sampler.Report) error {
	return d.dev.Draw(d.dev.Bounds(), renderReport(r), image.Point{})
}

// Splash draws the start-up screen.
func (d *DisplaySink) Splash() error {
	img, drawer := newFrame()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Tilt Computer")
	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("MPU-6050 I2C")
	return d.dev.Draw(d.dev.Bounds(), img, image.Point{})
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func renderReport(r sampler.Report) *image1bit.VerticalLSB {
	img, drawer := newFrame()

	if !r.Tracking {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawString("Orientation")
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawString("Waiting...")
		return img
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString(fmt.Sprintf("R: %6.1f", r.Pose.Roll))
	drawer.Dot = fixed.P(0, 26)
	drawer.DrawString(fmt.Sprintf("P: %6.1f", r.Pose.Pitch))

	// read health on the last line
	status := "OK"
	if r.AccelStatus != sampler.StatusOK || r.GyroStatus != sampler.StatusOK {
		status = fmt.Sprintf("A:%s G:%s", r.AccelStatus, r.GyroStatus)
	}
	drawer.Dot = fixed.P(0, 52)
	drawer.DrawString(status)
	return img
}
