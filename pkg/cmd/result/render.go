package result

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mpapenbr/roadtt-engine/pkg/report"
	"github.com/mpapenbr/roadtt-engine/pkg/tod"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func fmtTod(t *tod.Tod, places int) string {
	if t == nil {
		return ""
	}
	return t.RawTime(places)
}

func heading(w io.Writer, text string) {
	if text == "" {
		return
	}
	fmt.Fprintln(w, text)
	fmt.Fprintln(w)
}

func renderSignon(w io.Writer, lines []report.SignonLine) error {
	heading(w, "Sign on")
	tw := newTable(w)
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Rider, l.Name, l.Comment)
	}
	return tw.Flush()
}

func renderStartlists(w io.Writer, lists []report.Startlist) error {
	for _, sl := range lists {
		heading(w, sl.Heading)
		tw := newTable(w)
		for _, l := range sl.Lines {
			if l.Break {
				fmt.Fprintln(tw)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				fmtTod(l.WallStart, 0), l.Rider, l.Name, l.Team)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nTotal riders: %d\n\n", sl.Total)
	}
	return nil
}

func renderResults(w io.Writer, results []report.Result, places int) error {
	for _, r := range results {
		heading(w, r.Heading)
		tw := newTable(w)
		for _, l := range r.Lines {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				l.Place, l.Rider, l.Name,
				fmtTod(l.Elapsed, places), down(l.Down, places),
				fmtTod(l.Bonus, 0), fmtTod(l.Penalty, 0))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nStarters: %d", r.Starters)
		if r.OTL > 0 {
			fmt.Fprintf(w, "  Outside time limit: %d", r.OTL)
		}
		if r.DNF > 0 {
			fmt.Fprintf(w, "  Did not finish: %d", r.DNF)
		}
		fmt.Fprintln(w)
		if r.LeaderSpeed != nil {
			fmt.Fprintf(w, "Average speed of the winner: %.1f km/h\n", *r.LeaderSpeed)
		}
		for _, c := range r.Comments {
			fmt.Fprintln(w, c)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func down(t *tod.Tod, places int) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return "+" + t.RawTime(places)
}

func renderAnalysis(w io.Writer, lines []report.AnalysisLine, places int) error {
	heading(w, "Judges Report")
	tw := newTable(w)
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s",
			l.Hit, l.Mark, l.Rider, l.Name,
			fmtTod(l.Start, places), fmtTod(l.Finish, places),
			fmtTod(l.Elapsed, places))
		for _, s := range l.Splits {
			cell := fmtTod(s.Elapsed, places)
			if s.Rank > 0 {
				cell += " (" + strconv.Itoa(s.Rank) + ")"
			}
			fmt.Fprintf(tw, "\t%s", cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func renderPoints(w io.Writer, sections []report.PointsSection) error {
	for _, s := range sections {
		h := s.Tally
		if s.Descr != "" {
			h = s.Descr
		}
		heading(w, h)
		tw := newTable(w)
		for _, l := range s.Lines {
			fmt.Fprintf(tw, "%d.\t%s\t%s\t%d\t%s\n",
				l.Rank, l.Rider, l.Name, l.Points, l.Countback)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func renderBonuses(w io.Writer, lines []report.BonusLine) error {
	heading(w, "Time Bonuses")
	tw := newTable(w)
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.Rider, l.Name,
			fmtTod(l.StageBonus, -1), fmtTod(l.ContestBonus, -1),
			fmtTod(l.Penalty, -1), l.Total.RawTime(-1))
	}
	return tw.Flush()
}
