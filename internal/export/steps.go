package export

import (
	"path/filepath"

	"github.com/askiada/go-fsexport/internal/command"
)

// Origin tells where the source volume of a step lives.
type Origin int

const (
	// FromInput sources are FreeSurfer volumes in the mri directory of the subject.
	FromInput Origin = iota
	// FromOutput sources are volumes written by an earlier step of the session.
	FromOutput
)

// Step produces Destination in the output directory from Source.
type Step struct {
	Name        string
	Source      string
	Origin      Origin
	Destination string
	build       func(tools command.Tools, src, dst string) command.Command
}

// SourcePath resolves the source volume of the step.
func (s Step) SourcePath(inputDir, outputDir string) string {
	if s.Origin == FromOutput {
		return filepath.Join(outputDir, s.Source)
	}

	return filepath.Join(inputDir, s.Source)
}

// Command returns the invocation writing src to dst.
func (s Step) Command(tools command.Tools, src, dst string) command.Command {
	return s.build(tools, src, dst)
}

// Volumes written for every session, in order.
const (
	T1Volume             = "anat_T1_fs.nii.gz"
	T1BrainVolume        = "anat_T1_brain.nii.gz"
	AparcVolume          = "anat_aparc_fs.nii.gz"
	AparcBrainVolume     = "anat_aparc_brain.nii.gz"
	Aparc2009Volume      = "anat_aparc2009_fs.nii.gz"
	Aparc2009BrainVolume = "anat_aparc2009_brain.nii.gz"
	freesurferBrain      = "brain.mgz"
	freesurferAparc      = "aparc+aseg.mgz"
	freesurferAparc2009  = "aparc.a2009s+aseg.mgz"
)

// Catalog returns the six steps run for every session. Each reorientation reads the volume written by the
// conversion right before it.
func Catalog() []Step {
	convert := command.Tools.Convert
	reorient := command.Tools.Reorient

	return []Step{
		{Name: "t1-convert", Source: freesurferBrain, Origin: FromInput, Destination: T1Volume, build: convert},
		{Name: "t1-reorient", Source: T1Volume, Origin: FromOutput, Destination: T1BrainVolume, build: reorient},
		{Name: "aparc-convert", Source: freesurferAparc, Origin: FromInput, Destination: AparcVolume, build: convert},
		{Name: "aparc-reorient", Source: AparcVolume, Origin: FromOutput, Destination: AparcBrainVolume, build: reorient},
		{Name: "aparc2009-convert", Source: freesurferAparc2009, Origin: FromInput, Destination: Aparc2009Volume, build: convert},
		{Name: "aparc2009-reorient", Source: Aparc2009Volume, Origin: FromOutput, Destination: Aparc2009BrainVolume, build: reorient},
	}
}
