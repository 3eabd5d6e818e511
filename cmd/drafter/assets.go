package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

func assetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage assets: container images and their gRPC interfaces",
	}
	cmd.AddCommand(assetAddCmd(a))
	cmd.AddCommand(assetListCmd(a))
	cmd.AddCommand(assetRmCmd(a))
	cmd.AddCommand(assetSetCmd(a))
	return cmd
}

func assetAddCmd(a *app) *cobra.Command {
	var name, image, id string
	cmd := &cobra.Command{
		Use:   "add <service.proto>",
		Short: "Register an asset from its .proto interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return &pipeline.DomainError{Kind: pipeline.KindFileInput, Message: "read " + args[0], Cause: err}
			}
			if id == "" {
				id = string(pipeline.NewID())
			}
			s, err := a.dispatch(cmd.Context(), pipeline.CreateAsset{
				AssetID: pipeline.ID(id),
				Name:    name,
				Image:   image,
				Source:  string(src),
			})
			if err != nil {
				return err
			}
			asset := s.Assets[pipeline.ID(id)]
			fmt.Fprintf(cmd.OutOrStdout(), "asset %s: %s (%d methods)\n", asset.ID, asset.Name, len(asset.Methods))
			for _, m := range asset.Methods {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n", m.ID, m.Signature())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name of the asset")
	cmd.Flags().StringVar(&image, "image", "", "container image, e.g. org/detector:latest")
	cmd.Flags().StringVar(&id, "id", "", "asset id (default: a new random id)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func assetListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List assets and their remote methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			renderAssets(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func renderAssets(w io.Writer, s pipeline.State) {
	assets := s.SortedAssets()
	if len(assets) == 0 {
		fmt.Fprintln(w, "no assets")
		return
	}
	maxName := 4
	for _, as := range assets {
		maxName = max(maxName, len(as.Name))
	}
	for _, as := range assets {
		fmt.Fprintf(w, "%s  %-*s  %s\n", as.ID, maxName, as.Name, as.Image)
		for _, m := range as.Methods {
			fmt.Fprintf(w, "    %s\n", m.Signature())
		}
	}
}

func assetRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <asset-id>",
		Short: "Remove an asset; its stages stay in the design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.dispatch(cmd.Context(), pipeline.DeleteAsset{AssetID: pipeline.ID(args[0])}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed asset %s\n", args[0])
			return nil
		},
	}
}

func assetSetCmd(a *app) *cobra.Command {
	var name, image string
	cmd := &cobra.Command{
		Use:   "set <asset-id>",
		Short: "Rename an asset or point it at another image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("image") {
				return fmt.Errorf("nothing to change: pass --name and/or --image")
			}
			id := pipeline.ID(args[0])
			_, err := a.update(cmd.Context(), func(st *pipeline.Store) error {
				asset, ok := st.Snapshot().Assets[id]
				if !ok {
					return &pipeline.DomainError{Kind: pipeline.KindAssetNotFound, ID: id}
				}
				if flags.Changed("name") {
					asset.Name = strings.TrimSpace(name)
				}
				if flags.Changed("image") {
					asset.Image = strings.TrimSpace(image)
				}
				return st.Dispatch(pipeline.UpdateAsset{Asset: asset})
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated asset %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&image, "image", "", "new container image")
	return cmd
}
