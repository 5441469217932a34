package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"nsutils/network"
)

// Links 输出各网络命名空间内的接口
func Links(w io.Writer, links []network.Link, opts Options) error {
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "   ")
		return enc.Encode(struct {
			Links []network.Link `json:"links"`
		}{Links: links})
	}

	tw := tabwriter.NewWriter(w, 12, 1, 3, ' ', 0)
	if !opts.NoHeadings {
		if _, err := fmt.Fprint(tw, "NSID\tPID\tNAME\tTYPE\tSTATE\tMAC\tADDRESSES\n"); err != nil {
			return err
		}
	}
	for _, l := range links {
		mac := l.MAC
		if mac == "" {
			mac = "-"
		}
		_, err := fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			l.Namespace,
			l.PID,
			l.Name,
			l.Type,
			l.State,
			mac,
			strings.Join(l.Addrs, ","))
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}
