package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zpdzap/drydock/internal/state"
)

func statusCmd() *cobra.Command {
	var cached, asJSON bool
	cmd := &cobra.Command{
		Use:   "status [ids...]",
		Short: "Show the state of each deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), !cached)
			if err != nil {
				return err
			}
			defer a.Close()

			states := a.mgr.States()
			if len(args) > 0 {
				filtered := make(map[string]state.DeploymentState, len(args))
				for _, id := range args {
					if s, ok := states[id]; ok {
						filtered[id] = s
					}
				}
				states = filtered
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(states)
			}
			printStates(cmd.OutOrStdout(), states, a.mgr.Errors(args))
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Show the last saved state without querying docker")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printStates(w io.Writer, states map[string]state.DeploymentState, errs map[string][]string) {
	if len(states) == 0 {
		fmt.Fprintln(w, "No deployments.")
		return
	}
	ids := make([]string, 0, len(states))
	width := 0
	for id := range states {
		ids = append(ids, id)
		width = max(width, len(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := states[id]
		fmt.Fprintf(w, "%-*s  %-18s  %s\n", width, id, describe(s), memberSummary(s.Members()))
		for _, e := range errs[id] {
			fmt.Fprintf(w, "%*s  ! %s\n", width, "", e)
		}
	}
}

// describe is "running/healthy", "stopped" or "unknown".
func describe(s state.DeploymentState) string {
	if s.Status() == state.StatusRunning {
		return fmt.Sprintf("%s/%s", s.Status(), s.Health())
	}
	return string(s.Status())
}

func memberSummary(members map[string]string) string {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + members[name]
	}
	return strings.Join(parts, " ")
}

func inspectCmd() *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "inspect [ids...]",
		Short: "Show member container statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			byID, err := a.mgr.Inspect(cmd.Context(), args, member)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(byID))
			for id := range byID {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			out := cmd.OutOrStdout()
			for _, id := range ids {
				fmt.Fprintf(out, "%s: %s\n", id, memberSummary(byID[id]))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "Only show this service")
	return cmd
}

func volumesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "volumes [ids...]",
		Short: "List volumes owned by the deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			names, err := a.mgr.ListVolumes(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func imagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "images [ids...]",
		Short: "List images built for the deployments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			names, err := a.mgr.ListImages(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [ids...]",
		Short: "Check compose documents for structural problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			problems, err := a.mgr.Validate(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintln(out, "All deployments valid.")
				return nil
			}
			ids := make([]string, 0, len(problems))
			for id := range problems {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "✗ %s: %v\n", id, problems[id])
			}
			return errOperationFailed
		},
	}
}
