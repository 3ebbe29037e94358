package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fentz26/planboard/internal/catalog"
	"github.com/fentz26/planboard/internal/lifecycle"
	"github.com/fentz26/planboard/internal/models"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage marketplace plans",
}

var planAddCmd = &cobra.Command{
	Use:   "add",
	Short: "List a new plan in the marketplace",
	RunE:  runPlanAdd,
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List marketplace plans",
	RunE:  runPlanList,
}

var planImportCmd = &cobra.Command{
	Use:   "import [catalog.yaml]",
	Short: "Create every plan in a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanImport,
}

var planExportCmd = &cobra.Command{
	Use:   "export [catalog.yaml]",
	Short: "Write the current plans to a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanExport,
}

var planPurchaseCmd = &cobra.Command{
	Use:   "purchase [plan-id]",
	Short: "Purchase a plan on behalf of a client",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanPurchase,
}

var purchaseClient string

func init() {
	planCmd.AddCommand(planAddCmd, planListCmd, planImportCmd, planExportCmd, planPurchaseCmd)

	planAddCmd.Flags().StringVar(&taskTitle, "title", "", "Plan title (required)")
	planAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Plan description")
	planAddCmd.Flags().StringVar(&taskMode, "mode", "", "Progress mode: AUTO (default) or MANUAL")
	planAddCmd.Flags().Float64Var(&taskTarget, "target", 0, "Progress target amount (MANUAL mode)")
	planAddCmd.Flags().IntVar(&taskQuantity, "quantity", 0, "Quantity")
	planAddCmd.Flags().Float64Var(&taskCreditCost, "credit-cost", 0, "Credit cost")
	planAddCmd.Flags().Float64Var(&taskOffer, "offer-price", 0, "Offer price")
	planAddCmd.Flags().Float64Var(&taskOriginal, "original-price", 0, "Original price")
	planAddCmd.Flags().StringArrayVar(&taskMilestones, "milestone", nil, "Milestone as name:percentage[:color] (repeatable)")
	planAddCmd.MarkFlagRequired("title")

	planPurchaseCmd.Flags().StringVar(&purchaseClient, "client", "", "Purchasing client ID (required)")
	planPurchaseCmd.MarkFlagRequired("client")
}

func runPlanAdd(cmd *cobra.Command, args []string) error {
	mode, err := models.ParseProgressMode(taskMode)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	in := models.NewPlan{
		Title:          taskTitle,
		Description:    taskDesc,
		ProgressMode:   mode,
		ProgressTarget: floatFlag(flags.Changed("target"), taskTarget),
		CreditCost:     floatFlag(flags.Changed("credit-cost"), taskCreditCost),
		OfferPrice:     floatFlag(flags.Changed("offer-price"), taskOffer),
		OriginalPrice:  floatFlag(flags.Changed("original-price"), taskOriginal),
	}
	if flags.Changed("quantity") {
		in.Quantity = models.Int(taskQuantity)
	}
	if in.Milestones, err = parseMilestones(taskMilestones); err != nil {
		return err
	}

	var plan models.Task
	if err := apiPost("/admin/plans", in, &plan); err != nil {
		return err
	}
	fmt.Printf("Created plan: %s\n", plan.ID)
	return nil
}

func runPlanList(cmd *cobra.Command, args []string) error {
	plans, err := fetchPlans()
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Println("No plans found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMODE\tMILESTONES\tOFFER PRICE")
	for _, p := range plans {
		price := "-"
		if p.OfferPrice != nil {
			price = fmt.Sprintf("%.2f", *p.OfferPrice)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", truncateID(p.ID), truncate(p.Title, 40), p.ProgressMode, len(p.Milestones), price)
	}
	w.Flush()
	return nil
}

func runPlanImport(cmd *cobra.Command, args []string) error {
	c, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	for _, in := range c.Plans {
		var plan models.Task
		if err := apiPost("/admin/plans", in, &plan); err != nil {
			return fmt.Errorf("import %q: %w", in.Title, err)
		}
		fmt.Printf("Created plan %s: %s\n", truncateID(plan.ID), plan.Title)
	}
	fmt.Printf("Imported %d plans\n", len(c.Plans))
	return nil
}

func runPlanExport(cmd *cobra.Command, args []string) error {
	plans, err := fetchPlans()
	if err != nil {
		return err
	}
	if err := catalog.Save(args[0], catalog.FromPlans(plans)); err != nil {
		return err
	}
	fmt.Printf("Exported %d plans to %s\n", len(plans), args[0])
	return nil
}

func runPlanPurchase(cmd *cobra.Command, args []string) error {
	var task lifecycle.ClientTask
	if err := apiPost("/client/"+purchaseClient+"/plans/"+args[0]+"/purchase", nil, &task); err != nil {
		return err
	}
	fmt.Printf("Purchased plan %s for %s\n", truncateID(args[0]), purchaseClient)
	fmt.Printf("Task %s is %s until an admin approves it\n", task.ID, task.Status)
	return nil
}

func fetchPlans() ([]models.Task, error) {
	var plans []models.Task
	if err := apiGet("/admin/plans", &plans); err != nil {
		return nil, err
	}
	return plans, nil
}
