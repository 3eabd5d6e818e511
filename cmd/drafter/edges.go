package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

func connectCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "connect <requester-stage-id> <responder-stage-id>",
		Short: "Feed one stage's output into another stage's input",
		Long: `Connect the requester of the first stage to the responder of the second.

At run time the orchestrator calls the responder stage and forwards its
reply to the requester stage, so both must carry the same message type.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				id = string(pipeline.NewID())
			}
			s, err := a.update(cmd.Context(), func(st *pipeline.Store) error {
				e, err := pipeline.ConnectStages(st.Snapshot(), pipeline.ID(args[0]), pipeline.ID(args[1]))
				if err != nil {
					return err
				}
				e.ID = pipeline.ID(id)
				return st.Dispatch(pipeline.AddEdge{Edge: e})
			})
			if err != nil {
				return err
			}
			from := s.Stages[pipeline.ID(args[1])]
			to := s.Stages[pipeline.ID(args[0])]
			fmt.Fprintf(cmd.OutOrStdout(), "edge %s: %s → %s [%s]\n", id, from.Name, to.Name, from.Responder.Type.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "edge id (default: a new random id)")
	return cmd
}

func disconnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <edge-id>",
		Short: "Remove a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.dispatch(cmd.Context(), pipeline.RemoveEdge{EdgeID: pipeline.ID(args[0])}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed edge %s\n", args[0])
			return nil
		},
	}
}
