package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"chalet-planner/internal/app"
	"chalet-planner/internal/clipper"
	"chalet-planner/internal/config"
	"chalet-planner/internal/database"
	"chalet-planner/internal/llm"
	"chalet-planner/internal/quantity"
	"chalet-planner/internal/shopping"
	"chalet-planner/internal/store"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	geminiClient, err := llm.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
	}
	defer geminiClient.Close()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	var itemStore store.Store
	if cfg.TripFeedURL != "" {
		feed := store.NewFeed(cfg.TripFeedURL, cfg.TripID)
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := feed.Connect(connectCtx); err != nil {
			log.Fatalf("Failed to connect to trip feed: %v", err)
		}
		defer feed.Close()
		itemStore = feed
	} else {
		itemStore = store.NewSQLiteStore(db.SQL)
	}

	var grouper llm.Grouper = geminiClient
	if cfg.GroupingServiceURL != "" {
		grouper = llm.NewRemoteGrouper(cfg.GroupingServiceURL, cfg.GroupingServiceKey)
	}

	cache := shopping.NewSQLiteCache(db.SQL, cfg.CacheSlot)
	engine := shopping.NewEngine(itemStore, grouper, cache)
	recipeClipper := clipper.NewClipper(itemStore, geminiClient)

	application := app.NewApp(itemStore, engine, geminiClient, recipeClipper)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(ctx, application)
	case "refresh":
		if err := application.RefreshGrouping(ctx); err != nil {
			log.Fatalf("Regrouping failed: %v", err)
		}
		fmt.Println("Items regrouped.")
		runList(ctx, application)
	case "toggle":
		runToggle(ctx, application, os.Args[2:])
	case "add":
		runAdd(ctx, application, os.Args[2:])
	case "remove":
		runRemove(ctx, application, os.Args[2:])
	case "import":
		runImport(ctx, application, os.Args[2:])
	case "estimate":
		runEstimate(ctx, application, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runList(ctx context.Context, application *app.App) {
	groups, err := application.ConsolidatedList(ctx)
	if err != nil {
		log.Fatalf("Failed to build shopping list: %v", err)
	}
	if len(groups) == 0 {
		fmt.Println("The shopping list is empty.")
		return
	}
	for _, g := range groups {
		mark := " "
		if g.Checked {
			mark = "x"
		} else if g.PartiallyChecked {
			mark = "~"
		}
		fmt.Printf("[%s] %s%s  (%d entries, key: %s)\n",
			mark, g.CanonicalName, formatQuantity(g.Quantity), len(g.Sources), g.GroupKey)
	}
}

func runToggle(ctx context.Context, application *app.App, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: chalet-planner toggle <group-key>")
	}
	report, err := application.ToggleGroup(ctx, args[0])
	if err != nil {
		log.Fatalf("Toggle incomplete (%d of %d applied): %v", report.Applied, report.Attempted, err)
	}
	fmt.Printf("Toggled %d items.\n", report.Applied)
}

func runAdd(ctx context.Context, application *app.App, args []string) {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	date := addCmd.String("date", time.Now().Format("2006-01-02"), "Meal date (YYYY-MM-DD)")
	meal := addCmd.String("meal", "Dinner", "Meal label")
	text := addCmd.String("text", "", "Ingredient text")
	qty := addCmd.Float64("qty", 0, "Quantity (optional)")
	unit := addCmd.String("unit", "", "Unit (g, kg, cl, dL, L, pcs, bottles, packs)")
	addCmd.Parse(args)

	item := shopping.SourceItem{
		Date:      *date,
		MealLabel: *meal,
		Text:      *text,
		Unit:      quantity.Unit(*unit),
	}
	if *qty > 0 {
		item.Quantity = qty
	}

	added, err := application.AddItem(ctx, item)
	if err != nil {
		log.Fatalf("Failed to add item: %v", err)
	}
	fmt.Printf("Added %q to %s / %s (id: %s)\n", added.Text, added.Date, added.MealLabel, added.ItemID)
}

func runRemove(ctx context.Context, application *app.App, args []string) {
	if len(args) < 2 {
		log.Fatal("Usage: chalet-planner remove <date> <item-id>")
	}
	if err := application.RemoveItem(ctx, args[0], args[1]); err != nil {
		log.Fatalf("Failed to remove item: %v", err)
	}
	fmt.Println("Item removed.")
}

func runImport(ctx context.Context, application *app.App, args []string) {
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	date := importCmd.String("date", time.Now().Format("2006-01-02"), "Meal date (YYYY-MM-DD)")
	meal := importCmd.String("meal", "Imported", "Meal label")
	importCmd.Parse(args)

	if importCmd.NArg() < 1 {
		log.Fatal("Usage: chalet-planner import [-date ...] [-meal ...] <url>")
	}

	added, err := application.ImportRecipe(ctx, importCmd.Arg(0), *date, *meal)
	if err != nil {
		log.Fatalf("Import failed after %d items: %v", len(added), err)
	}
	fmt.Printf("Imported %d ingredients into %s / %s.\n", len(added), *date, *meal)
}

func runEstimate(ctx context.Context, application *app.App, args []string) {
	estimateCmd := flag.NewFlagSet("estimate", flag.ExitOnError)
	date := estimateCmd.String("date", time.Now().Format("2006-01-02"), "Meal date (YYYY-MM-DD)")
	meal := estimateCmd.String("meal", "Dinner", "Meal label")
	headcount := estimateCmd.Int("headcount", 0, "Number of people eating")
	estimateCmd.Parse(args)

	if *headcount <= 0 {
		log.Fatal("A positive -headcount is required")
	}

	updated, err := application.EstimateMeal(ctx, *date, *meal, *headcount)
	if err != nil {
		log.Fatalf("Estimation failed: %v", err)
	}
	fmt.Printf("Updated quantities for %d items.\n", updated)
}

func formatQuantity(q quantity.Result) string {
	switch q.Kind {
	case quantity.KindSingle:
		return fmt.Sprintf(" — %g %s", q.Single.Total, q.Single.Unit)
	case quantity.KindBreakdown:
		parts := make([]string, 0, len(q.Breakdown))
		for _, a := range q.Breakdown {
			parts = append(parts, fmt.Sprintf("%g %s", a.Total, a.Unit))
		}
		return " — " + strings.Join(parts, " + ")
	default:
		return ""
	}
}

func printUsage() {
	fmt.Println("Usage: chalet-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  list               Print the consolidated shopping list")
	fmt.Println("  refresh            Regroup items via the grouping oracle")
	fmt.Println("  toggle <key>       Toggle a consolidated group")
	fmt.Println("  add                Add an item (-date, -meal, -text, -qty, -unit)")
	fmt.Println("  remove <date> <id> Remove an item")
	fmt.Println("  import <url>       Import recipe ingredients from a URL")
	fmt.Println("  estimate           Estimate quantities for a meal (-date, -meal, -headcount)")
}
