package probe

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Report aggregates probe results for rendering.
type Report struct {
	Results []Result
}

// Counts returns the number of capable, incapable, and unknown models.
func (r *Report) Counts() (capable, incapable, unknown int) {
	for _, res := range r.Results {
		switch res.Verdict {
		case VerdictCapable:
			capable++
		case VerdictIncapable:
			incapable++
		default:
			unknown++
		}
	}
	return capable, incapable, unknown
}

// Render writes the tabular report and aggregate counts.
func (r *Report) Render(w io.Writer) error {
	if len(r.Results) == 0 {
		fmt.Fprintln(w, "No models matched.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tTOOL SUPPORT\tDETAIL")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Model, res.Verdict, res.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	capable, incapable, unknown := r.Counts()
	fmt.Fprintf(w, "\n%d with tool support, %d without", capable, incapable)
	if unknown > 0 {
		fmt.Fprintf(w, ", %d unknown (probe failed)", unknown)
	}
	fmt.Fprintln(w)
	return nil
}
