package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/planboard/internal/controlplane"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [status]",
	Short: "Move a task to another status",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskReopenCmd = &cobra.Command{
	Use:   "reopen [task-id]",
	Short: "Reopen a completed or cancelled task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskReopen,
}

var taskApproveCmd = &cobra.Command{
	Use:   "approve [task-id]",
	Short: "Approve a purchased task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskApprove,
}

var taskProgressCmd = &cobra.Command{
	Use:   "progress [task-id] [percent|clear]",
	Short: "Set or clear the progress override",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskProgress,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit task fields and status in one atomic request",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history [task-id]",
	Short: "Show the decision records for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskHistory,
}

var (
	taskTitle      string
	taskDesc       string
	taskClient     string
	taskMode       string
	taskStart      string
	taskEnd        string
	taskTarget     float64
	taskAchieved   float64
	taskQuantity   int
	taskCreditCost float64
	taskOffer      float64
	taskOriginal   float64
	taskNotes      string
	taskMilestones []string

	taskStatus      string
	taskCreditsUsed float64
	showQuantity    bool
	showCredits     bool
	showDetails     bool
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskStatusCmd, taskReopenCmd,
		taskApproveCmd, taskProgressCmd, taskEditCmd, taskHistoryCmd)

	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskClient, "client", "", "Client ID")
	taskAddCmd.Flags().StringVar(&taskMode, "mode", "", "Progress mode: AUTO (default) or MANUAL")
	taskAddCmd.Flags().StringVar(&taskNotes, "notes", "", "Internal notes (admin only)")
	addTaskFieldFlags(taskAddCmd)
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (PENDING_APPROVAL, PENDING, ACTIVE, COMPLETED, CANCELLED)")
	taskListCmd.Flags().StringVar(&taskClient, "client", "", "Filter by client ID")
	taskListCmd.Flags().StringVar(&taskMode, "mode", "", "Filter by progress mode")

	taskEditCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVar(&taskDesc, "desc", "", "New description")
	taskEditCmd.Flags().StringVar(&taskNotes, "notes", "", "New internal notes")
	taskEditCmd.Flags().StringVar(&taskStatus, "status", "", "Requested status")
	taskEditCmd.Flags().Float64Var(&taskCreditsUsed, "credits-used", 0, "Credits used so far")
	taskEditCmd.Flags().BoolVar(&showQuantity, "show-quantity", true, "Show quantity to the client")
	taskEditCmd.Flags().BoolVar(&showCredits, "show-credits", true, "Show credits and prices to the client")
	taskEditCmd.Flags().BoolVar(&showDetails, "show-details", false, "Show achieved/target amounts to the client")
	addTaskFieldFlags(taskEditCmd)
}

// addTaskFieldFlags registers the flags shared by add and edit.
func addTaskFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&taskStart, "start", "", "Start date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&taskEnd, "end", "", "End date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().Float64Var(&taskTarget, "target", 0, "Progress target amount (MANUAL mode)")
	cmd.Flags().Float64Var(&taskAchieved, "achieved", 0, "Progress achieved amount (MANUAL mode)")
	cmd.Flags().IntVar(&taskQuantity, "quantity", 0, "Quantity")
	cmd.Flags().Float64Var(&taskCreditCost, "credit-cost", 0, "Credit cost")
	cmd.Flags().Float64Var(&taskOffer, "offer-price", 0, "Offer price")
	cmd.Flags().Float64Var(&taskOriginal, "original-price", 0, "Original price")
	cmd.Flags().StringArrayVar(&taskMilestones, "milestone", nil, "Milestone as name:percentage[:color] (repeatable)")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	mode, err := models.ParseProgressMode(taskMode)
	if err != nil {
		return err
	}
	in := models.NewTask{
		Title:         taskTitle,
		Description:   taskDesc,
		ClientID:      taskClient,
		ProgressMode:  mode,
		InternalNotes: taskNotes,
	}
	flags := cmd.Flags()
	if in.StartDate, err = dateFlag(flags.Changed("start"), taskStart); err != nil {
		return err
	}
	if in.EndDate, err = dateFlag(flags.Changed("end"), taskEnd); err != nil {
		return err
	}
	in.ProgressTarget = floatFlag(flags.Changed("target"), taskTarget)
	in.ProgressAchieved = floatFlag(flags.Changed("achieved"), taskAchieved)
	in.CreditCost = floatFlag(flags.Changed("credit-cost"), taskCreditCost)
	in.OfferPrice = floatFlag(flags.Changed("offer-price"), taskOffer)
	in.OriginalPrice = floatFlag(flags.Changed("original-price"), taskOriginal)
	if flags.Changed("quantity") {
		in.Quantity = models.Int(taskQuantity)
	}
	if in.Milestones, err = parseMilestones(taskMilestones); err != nil {
		return err
	}

	var task lifecycle.AdminTask
	if err := apiPost("/admin/tasks", in, &task); err != nil {
		return err
	}
	fmt.Printf("Created task: %s\n", task.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if taskStatus != "" {
		q.Set("status", taskStatus)
	}
	if taskClient != "" {
		q.Set("client_id", taskClient)
	}
	if taskMode != "" {
		q.Set("mode", taskMode)
	}
	path := "/admin/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var tasks []lifecycle.AdminTask
	if err := apiGet(path, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tMODE\tPROGRESS\tCLIENT")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(t.ID), truncate(t.Title, 40), t.Status, t.ProgressMode,
			formatProgress(t.Computed), t.ClientID)
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var task lifecycle.AdminTask
	if err := apiGet("/admin/tasks/"+args[0], &task); err != nil {
		return err
	}
	printAdminTask(&task)
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	status, err := models.ParseTaskStatus(args[1])
	if err != nil {
		return err
	}
	var task lifecycle.AdminTask
	if err := apiPatch("/admin/tasks/"+args[0]+"/status", map[string]string{"status": string(status)}, &task); err != nil {
		return err
	}
	fmt.Printf("Task %s is %s\n", truncateID(task.ID), task.Status)
	return nil
}

func runTaskReopen(cmd *cobra.Command, args []string) error {
	var task lifecycle.AdminTask
	if err := apiPost("/admin/tasks/"+args[0]+"/reopen", nil, &task); err != nil {
		return err
	}
	fmt.Printf("Reopened task %s, now %s\n", truncateID(task.ID), task.Status)
	return nil
}

func runTaskApprove(cmd *cobra.Command, args []string) error {
	var task lifecycle.AdminTask
	if err := apiPost("/admin/tasks/"+args[0]+"/approve", nil, &task); err != nil {
		return err
	}
	fmt.Printf("Approved task %s, now %s\n", truncateID(task.ID), task.Status)
	return nil
}

func runTaskProgress(cmd *cobra.Command, args []string) error {
	var patch models.TaskPatch
	if args[1] == "clear" {
		patch.ClearProgress = true
	} else {
		v, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid percentage %q", args[1])
		}
		patch.Progress = &v
	}

	var task lifecycle.AdminTask
	if err := apiPatch("/admin/tasks/"+args[0], patch, &task); err != nil {
		return err
	}
	fmt.Printf("Task %s progress: %s\n", truncateID(task.ID), formatProgress(task.Computed))
	return nil
}

// runTaskEdit loads the server copy into a draft, applies the flags that were
// set, and sends only the difference together with any status change.
func runTaskEdit(cmd *cobra.Command, args []string) error {
	var current lifecycle.AdminTask
	if err := apiGet("/admin/tasks/"+args[0], &current); err != nil {
		return err
	}

	draft := lifecycle.NewDraft(&current.Task)
	if err := applyEditFlags(cmd, &draft.Current); err != nil {
		return err
	}
	if !draft.Dirty() {
		fmt.Println("No changes")
		return nil
	}

	req := controlplane.EditRequest{Status: draft.StatusChange(), Patch: draft.Patch()}
	var task lifecycle.AdminTask
	if err := apiPatch("/admin/tasks/"+args[0]+"/edit", req, &task); err != nil {
		return err
	}
	fmt.Printf("Updated task %s\n", truncateID(task.ID))
	printAdminTask(&task)
	return nil
}

func applyEditFlags(cmd *cobra.Command, t *models.Task) error {
	flags := cmd.Flags()
	if flags.Changed("title") {
		t.Title = taskTitle
	}
	if flags.Changed("desc") {
		t.Description = taskDesc
	}
	if flags.Changed("notes") {
		t.InternalNotes = taskNotes
	}
	if flags.Changed("status") {
		status, err := models.ParseTaskStatus(taskStatus)
		if err != nil {
			return err
		}
		t.Status = status
	}
	var err error
	if flags.Changed("start") {
		if t.StartDate, err = dateFlag(true, taskStart); err != nil {
			return err
		}
	}
	if flags.Changed("end") {
		if t.EndDate, err = dateFlag(true, taskEnd); err != nil {
			return err
		}
	}
	if flags.Changed("target") {
		t.ProgressTarget = models.Float(taskTarget)
	}
	if flags.Changed("achieved") {
		t.ProgressAchieved = models.Float(taskAchieved)
	}
	if flags.Changed("quantity") {
		t.Quantity = models.Int(taskQuantity)
	}
	if flags.Changed("credit-cost") {
		t.CreditCost = models.Float(taskCreditCost)
	}
	if flags.Changed("credits-used") {
		t.CreditsUsed = models.Float(taskCreditsUsed)
	}
	if flags.Changed("offer-price") {
		t.OfferPrice = models.Float(taskOffer)
	}
	if flags.Changed("original-price") {
		t.OriginalPrice = models.Float(taskOriginal)
	}
	if flags.Changed("show-quantity") {
		t.ShowQuantityToClient = models.Bool(showQuantity)
	}
	if flags.Changed("show-credits") {
		t.ShowCreditsToClient = models.Bool(showCredits)
	}
	if flags.Changed("show-details") {
		t.ShowProgressDetails = models.Bool(showDetails)
	}
	if flags.Changed("milestone") {
		ms, err := parseMilestones(taskMilestones)
		if err != nil {
			return err
		}
		t.Milestones = ms
	}
	return nil
}

func runTaskHistory(cmd *cobra.Command, args []string) error {
	var entries []models.PDREntry
	if err := apiGet("/admin/tasks/"+args[0]+"/history", &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No history found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Action, e.Outcome, truncate(e.Details, 60))
	}
	w.Flush()
	return nil
}

func printAdminTask(t *lifecycle.AdminTask) {
	fmt.Printf("ID:          %s\n", t.ID)
	fmt.Printf("Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Printf("Description: %s\n", t.Description)
	}
	fmt.Printf("Status:      %s\n", t.Status)
	fmt.Printf("Mode:        %s\n", t.ProgressMode)
	fmt.Printf("Progress:    %s\n", formatProgress(t.Computed))
	if t.ClientID != "" {
		fmt.Printf("Client:      %s\n", t.ClientID)
	}
	if t.PlanID != "" {
		fmt.Printf("Plan:        %s\n", t.PlanID)
	}
	if t.Computed.ActiveMilestone != nil {
		fmt.Printf("Milestone:   %s (%g%%)\n", t.Computed.ActiveMilestone.Name, t.Computed.ActiveMilestone.Percentage)
	}
	if t.Computed.NextMilestone != nil {
		fmt.Printf("Next:        %s (%g%%)\n", t.Computed.NextMilestone.Name, t.Computed.NextMilestone.Percentage)
	}
	if len(t.AllowedTransitions) > 0 {
		next := make([]string, len(t.AllowedTransitions))
		for i, s := range t.AllowedTransitions {
			next[i] = string(s)
		}
		fmt.Printf("Can move to: %s\n", strings.Join(next, ", "))
	}
	if t.CanReopen {
		fmt.Println("Reopenable:  yes")
	}
	if t.InternalNotes != "" {
		fmt.Printf("Notes:       %s\n", t.InternalNotes)
	}
	fmt.Printf("Created:     %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:     %s\n", t.UpdatedAt.Format(time.RFC3339))
}

// --- Helpers ---

func formatProgress(v lifecycle.ProgressView) string {
	if v.Overachieving {
		return fmt.Sprintf("%d%% (overachieving)", v.DisplayProgress)
	}
	return fmt.Sprintf("%d%%", v.DisplayProgress)
}

func floatFlag(changed bool, v float64) *float64 {
	if !changed {
		return nil
	}
	return models.Float(v)
}

func dateFlag(changed bool, v string) (*time.Time, error) {
	if !changed {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", v)
}

// parseMilestones reads name:percentage[:color] specs.
func parseMilestones(specs []string) ([]models.Milestone, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]models.Milestone, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid milestone %q (want name:percentage[:color])", spec)
		}
		pct, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid milestone percentage in %q", spec)
		}
		m := models.Milestone{Name: parts[0], Percentage: pct}
		if len(parts) == 3 {
			m.Color = parts[2]
		}
		out = append(out, m)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
