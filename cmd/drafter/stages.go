package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

func stageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage stages: placed instances of an asset's remote method",
	}
	cmd.AddCommand(stageAddCmd(a))
	cmd.AddCommand(stageListCmd(a))
	cmd.AddCommand(stageRmCmd(a))
	cmd.AddCommand(stageSetCmd(a))
	return cmd
}

func stageAddCmd(a *app) *cobra.Command {
	var (
		id   string
		x, y float64
	)
	cmd := &cobra.Command{
		Use:   "add <asset-id> <method>",
		Short: "Instantiate a remote method of an asset as a new stage",
		Long: `Instantiate a remote method of an asset as a new stage.

The method is given by name or by id. The stage is named after the asset
(and the method, for multi-method assets) plus a per-asset instance number.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID := pipeline.ID(args[0])
			if id == "" {
				id = string(pipeline.NewID())
			}
			s, err := a.update(cmd.Context(), func(st *pipeline.Store) error {
				asset, ok := st.Snapshot().Assets[assetID]
				if !ok {
					return &pipeline.DomainError{Kind: pipeline.KindAssetNotFound, ID: assetID}
				}
				m, ok := asset.MethodByName(args[1])
				if !ok {
					m.ID = pipeline.ID(args[1])
				}
				return st.Dispatch(pipeline.InstantiateStage{
					StageID:        pipeline.ID(id),
					AssetID:        assetID,
					RemoteMethodID: m.ID,
					X:              x,
					Y:              y,
				})
			})
			if err != nil {
				return err
			}
			stage := s.Stages[pipeline.ID(id)]
			fmt.Fprintf(cmd.OutOrStdout(), "stage %s: %s\n", stage.ID, stage.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "stage id (default: a new random id)")
	cmd.Flags().Float64Var(&x, "x", 0, "horizontal position")
	cmd.Flags().Float64Var(&y, "y", 0, "vertical position")
	return cmd
}

func stageListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stages with their access point types and volumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			renderStages(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func renderStages(w io.Writer, s pipeline.State) {
	stages := s.SortedStages()
	if len(stages) == 0 {
		fmt.Fprintln(w, "no stages")
		return
	}
	maxName := 4
	for _, st := range stages {
		maxName = max(maxName, len(st.Name))
	}
	for _, st := range stages {
		image := "<no asset>"
		if as, ok := s.Assets[st.AssetID]; ok {
			image = as.Image
		}
		fmt.Fprintf(w, "%s  %-*s  %s  in=%s out=%s\n", st.ID, maxName, st.Name, image,
			st.Requester.Type.Name, st.Responder.Type.Name)
		for _, v := range st.Volumes {
			fmt.Fprintf(w, "    volume %s  %s:%s (%s)\n", v.ID, v.Source, v.Target, v.Type)
		}
	}
}

func stageRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <stage-id>",
		Short: "Remove a stage and every connection touching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.dispatch(cmd.Context(), pipeline.DeleteStage{StageID: pipeline.ID(args[0])}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed stage %s\n", args[0])
			return nil
		},
	}
}

func stageSetCmd(a *app) *cobra.Command {
	var (
		name string
		x, y float64
	)
	cmd := &cobra.Command{
		Use:   "set <stage-id>",
		Short: "Rename or move a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			act := pipeline.UpdateStage{StageID: pipeline.ID(args[0])}
			if flags.Changed("name") {
				rx, ry := pipeline.Radii(name)
				act.Name, act.RX, act.RY = &name, &rx, &ry
			}
			if flags.Changed("x") {
				act.X = &x
			}
			if flags.Changed("y") {
				act.Y = &y
			}
			if act.Name == nil && act.X == nil && act.Y == nil {
				return fmt.Errorf("nothing to change: pass --name, --x or --y")
			}
			if _, err := a.dispatch(cmd.Context(), act); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated stage %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().Float64Var(&x, "x", 0, "new horizontal position")
	cmd.Flags().Float64Var(&y, "y", 0, "new vertical position")
	return cmd
}

// ─── volumes ──────────────────────────────────────────────────────────────────

func volumeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Manage bind mounts of a stage's container",
	}
	cmd.AddCommand(volumeAddCmd(a))
	cmd.AddCommand(volumeRmCmd(a))
	return cmd
}

func volumeAddCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "add <stage-id> <host-path> <container-path>",
		Short: "Bind a host path into a stage's container",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = string(pipeline.NewID())
			}
			_, err := a.dispatch(cmd.Context(), pipeline.AddVolume{
				StageID: pipeline.ID(args[0]),
				Volume: pipeline.Volume{
					ID:     pipeline.ID(id),
					Type:   pipeline.VolumeBind,
					Source: args[1],
					Target: args[2],
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "volume %s: %s:%s\n", id, args[1], args[2])
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "volume id (default: a new random id)")
	return cmd
}

func volumeRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <stage-id> <volume-id>",
		Short: "Remove a bind mount from a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.dispatch(cmd.Context(), pipeline.RemoveVolume{
				StageID:  pipeline.ID(args[0]),
				VolumeID: pipeline.ID(args[1]),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed volume %s\n", args[1])
			return nil
		},
	}
}
