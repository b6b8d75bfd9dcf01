package result

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/roadtt-engine/log"
	"github.com/mpapenbr/roadtt-engine/pkg/catalog"
	"github.com/mpapenbr/roadtt-engine/pkg/cmd/util"
	"github.com/mpapenbr/roadtt-engine/pkg/config"
	"github.com/mpapenbr/roadtt-engine/pkg/processing"
	"github.com/mpapenbr/roadtt-engine/pkg/report"
)

var (
	reportName string
	category   string
)

var reports = []string{
	"result", "startlist", "callup", "signon", "analysis", "points", "bonus",
}

func NewResultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "prints a report of the event document",
		Long: fmt.Sprintf(`Loads the event document and prints the selected report.
Available reports: %v`, reports),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&reportName, "report", "r", "result",
		"report to print")
	cmd.Flags().StringVar(&category, "category", "",
		"restrict result and startlist to this category")
	return cmd
}

func printReport(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e, closeDir, err := util.NewEngine(ctx)
	if err != nil {
		return err
	}
	defer closeDir()
	if err := util.LoadEvent(ctx, e, config.EventFile); err != nil {
		return err
	}
	cats, err := loadCatalog()
	if err != nil {
		return err
	}
	log.Debug("Printing report", log.String("report", reportName))
	return render(w, e, cats, reportName, category)
}

func loadCatalog() (report.Categories, error) {
	if config.CatalogFile == "" {
		return nil, nil
	}
	cat, err := catalog.Load(config.CatalogFile)
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func render(w io.Writer, e *processing.Engine, cats report.Categories, name, cat string) error {
	places := e.Timing().Precision
	switch name {
	case "result":
		results := report.Results(e, cats)
		if cat != "" {
			results = []report.Result{report.ResultFor(e, cat, cats)}
		}
		return renderResults(w, results, places)
	case "startlist", "callup":
		lists := report.Startlists(e, cats)
		if name == "callup" {
			lists = report.Callup(e, cats)
		}
		if cat != "" {
			lists = []report.Startlist{report.StartlistFor(e, cat, cats)}
		}
		return renderStartlists(w, lists)
	case "signon":
		return renderSignon(w, report.Signon(e))
	case "analysis":
		return renderAnalysis(w, report.Analysis(e), places)
	case "points":
		return renderPoints(w, report.Points(e))
	case "bonus":
		return renderBonuses(w, report.Bonuses(e))
	default:
		fmt.Fprintf(os.Stderr, "available reports: %v\n", reports)
		return fmt.Errorf("unknown report %q", name)
	}
}
