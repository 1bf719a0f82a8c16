package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Faultbox/steelifc/internal/config"
	"github.com/Faultbox/steelifc/internal/scene"
	"github.com/Faultbox/steelifc/pkg/step"
)

func samplesCmd() *cobra.Command {
	var show string

	cmd := &cobra.Command{
		Use:   "samples",
		Short: "List built-in sample scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if show != "" {
				s, err := scene.Sample(show)
				if err != nil {
					return err
				}
				data, err := s.Marshal()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			for _, name := range scene.SampleNames() {
				s, err := scene.Sample(name)
				if err != nil {
					return err
				}
				entries, err := s.Entries()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %-22s %3d elements  %s\n", name, len(entries), s.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "Print the YAML of one sample")
	return cmd
}

func classifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <name>...",
		Short: "Show the IFC entity each element name maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(config.Overrides{})
			if err != nil {
				return err
			}
			c, err := cfg.Classifier()
			if err != nil {
				return err
			}
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", name, c.Classify(name).IFCType())
			}
			return nil
		},
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.ifc>",
		Short: "Summarize an IFC file and check its references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()

			f, err := step.Parse(fh)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:      %s\n", args[0])
			fmt.Fprintf(out, "Schema:    %v\n", f.Schemas())
			if h := f.HeaderEntry("FILE_NAME"); h != nil {
				if ts, ok := h.Attr(1).(step.String); ok {
					fmt.Fprintf(out, "Written:   %s\n", ts)
				}
				if sys, ok := h.Attr(5).(step.String); ok {
					fmt.Fprintf(out, "System:    %s\n", sys)
				}
			}
			fmt.Fprintf(out, "Instances: %d\n", len(f.Instances))

			fmt.Fprintln(out, "\nBy type:")
			for _, tc := range f.CountByType() {
				fmt.Fprintf(out, "  %-36s %d\n", tc.Type, tc.Count)
			}

			if err := f.Validate(); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(out, "\nAll references resolve.")
			return nil
		},
	}
}
