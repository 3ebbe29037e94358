package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/report"
	"github.com/spf13/cobra"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "View tasks the way a client sees them",
}

var clientTasksCmd = &cobra.Command{
	Use:   "tasks [client-id]",
	Short: "List a client's tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientTasks,
}

var clientShowCmd = &cobra.Command{
	Use:   "show [client-id] [task-id]",
	Short: "Show one task as the client sees it",
	Args:  cobra.ExactArgs(2),
	RunE:  runClientShow,
}

var clientReportCmd = &cobra.Command{
	Use:   "report [client-id]",
	Short: "Write a PDF progress report for a client",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientReport,
}

var reportOut string

func init() {
	clientCmd.AddCommand(clientTasksCmd, clientShowCmd, clientReportCmd)

	clientReportCmd.Flags().StringVar(&reportOut, "out", "", "Output file (default <client-id>-report.pdf)")
}

func runClientTasks(cmd *cobra.Command, args []string) error {
	var tasks []lifecycle.ClientTask
	if err := apiGet("/client/"+args[0]+"/tasks", &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPROGRESS\tMILESTONE")
	for _, t := range tasks {
		milestone := "-"
		if t.ActiveMilestone != nil {
			milestone = t.ActiveMilestone.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", truncateID(t.ID), truncate(t.Title, 40), t.Status, formatProgress(t.ProgressView), milestone)
	}
	w.Flush()
	return nil
}

func runClientReport(cmd *cobra.Command, args []string) error {
	var tasks []lifecycle.ClientTask
	if err := apiGet("/client/"+args[0]+"/tasks", &tasks); err != nil {
		return err
	}
	out := reportOut
	if out == "" {
		out = args[0] + "-report.pdf"
	}
	if err := report.WriteClientReport(out, args[0], tasks, time.Now()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Wrote %d tasks to %s\n", len(tasks), out)
	return nil
}

func runClientShow(cmd *cobra.Command, args []string) error {
	var t lifecycle.ClientTask
	if err := apiGet("/client/"+args[0]+"/tasks/"+args[1], &t); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", t.ID)
	fmt.Printf("Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Printf("Description: %s\n", t.Description)
	}
	fmt.Printf("Status:      %s\n", t.Status)
	fmt.Printf("Progress:    %s\n", formatProgress(t.ProgressView))
	if t.ProgressAchieved != nil && t.ProgressTarget != nil {
		fmt.Printf("Achieved:    %g / %g\n", *t.ProgressAchieved, *t.ProgressTarget)
	}
	if t.Quantity != nil {
		fmt.Printf("Quantity:    %d\n", *t.Quantity)
	}
	if t.OfferPrice != nil {
		fmt.Printf("Price:       %.2f\n", *t.OfferPrice)
	}
	if t.CreditsUsed != nil {
		fmt.Printf("Credits:     %g used\n", *t.CreditsUsed)
	}
	for _, m := range lifecycle.SortMilestones(t.Milestones) {
		mark := " "
		if m.Percentage <= t.Progress {
			mark = "x"
		}
		fmt.Printf("  [%s] %5g%%  %s\n", mark, m.Percentage, m.Name)
	}
	return nil
}
