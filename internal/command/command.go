// Package command builds the invocations of the external neuroimaging tools and runs them without a shell.
package command

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	// DefaultConvertProgram converts FreeSurfer volumes.
	DefaultConvertProgram = "mri_convert"
	// DefaultReorientProgram rewrites a volume in axial orientation.
	DefaultReorientProgram = "3daxialize"
)

// Command is a program and its arguments. Arguments are passed to the program as is.
type Command struct {
	Program string
	Args    []string
}

// String renders the command as a bash line, for logs only.
func (c Command) String() string {
	words := make([]string, 0, len(c.Args)+1)
	for _, word := range append([]string{c.Program}, c.Args...) {
		quoted, err := syntax.Quote(word, syntax.LangBash)
		if err != nil {
			// words with NUL bytes cannot be quoted, they cannot be passed to a program either
			quoted = "<invalid>"
		}
		words = append(words, quoted)
	}

	return strings.Join(words, " ")
}

// Tools names the external programs.
type Tools struct {
	ConvertProgram  string
	ReorientProgram string
}

// DefaultTools returns the programs looked up in PATH.
func DefaultTools() Tools {
	return Tools{
		ConvertProgram:  DefaultConvertProgram,
		ReorientProgram: DefaultReorientProgram,
	}
}

// Convert converts the mgz volume src into the NIfTI volume dst, as float with nearest neighbour resampling.
func (t Tools) Convert(src, dst string) Command {
	return Command{
		Program: t.ConvertProgram,
		Args: []string{
			"--in_type", "mgz",
			"--out_type", "nii",
			"-odt", "float",
			"-rt", "nearest",
			"--input_volume", src,
			"--output_volume", dst,
		},
	}
}

// Reorient writes src in axial orientation to dst.
func (t Tools) Reorient(src, dst string) Command {
	return Command{
		Program: t.ReorientProgram,
		Args: []string{
			"-prefix", dst,
			"-axial", src,
		},
	}
}
