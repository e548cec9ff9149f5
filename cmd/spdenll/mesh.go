package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notargets/spdebarrier/ad"
	"github.com/notargets/spdebarrier/model"
	"github.com/notargets/spdebarrier/problem"
	"github.com/notargets/spdebarrier/spde"
)

func newMeshCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mesh PROBLEM.yaml",
		Short: "Summarize the mesh and precision structure of a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.summarize(cmd.OutOrStdout(), args[0])
		},
	}
}

func (a *app) summarize(w io.Writer, path string) error {
	p, err := problem.Load(path, a.log)
	if err != nil {
		return err
	}
	fmt.Fprint(w, p.Mesh.String())

	if p.Barrier != nil {
		n := 0
		for _, b := range p.Barrier {
			if b {
				n++
			}
		}
		fmt.Fprintf(w, "  Barrier elements: %d, interface edges: %d\n", n, p.Mesh.InterfaceEdges(p.Barrier))
	}

	f := ad.Float{}
	start := p.Data.Layout().Split(p.Start)
	tr := model.Transform[float64](f, start)
	q := spde.Precision[float64](f, p.Data.Structure, tr.Kappa)
	fmt.Fprintf(w, "  Precision: %s at kappa=%.4g (range %.4g)\n", q, tr.Kappa, spde.Range[float64](f, tr.Kappa))
	return nil
}
