// Command fsexport exports the FreeSurfer anatomical and segmentation volumes of an experiment.
//
//	fsexport <root> <experiment>
//
// reads root/FREESURFER/SUBJECTS/<experiment>_<subject>_<session>/mri and writes the NIfTI volumes to
// root/<experiment>/<subject>/T1/<session>.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var errExportFailed = errors.New("export failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupLogger(os.Stderr, false)

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		if !errors.Is(err, errExportFailed) {
			log.Error().Err(err).Msg("fsexport failed")
		}
		stop()
		os.Exit(1)
	}
}
