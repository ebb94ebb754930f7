package app

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/tilt_computer/internal/orientation"
	"github.com/relabs-tech/tilt_computer/internal/xdr"
)

// RunMonitor prints the attitude sentences arriving on a serial port until
// ctx is done or the port closes.
func RunMonitor(ctx context.Context, port string, baud int, out io.Writer) error {
	rwc, err := xdr.OpenSerial(port, baud)
	if err != nil {
		return err
	}
	log.WithField("component", "monitor").Infof("listening on %s at %d baud", port, baud)

	go func() {
		<-ctx.Done()
		rwc.Close()
	}()

	err = xdr.Monitor(rwc, func(p orientation.Pose) {
		fmt.Fprintln(out, poseLine(p))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
