package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"nsutils/namespace"
)

// 列表表头
const namespaceHeader = "NSID\tNSTYPE\tNPROC\tPID\tPPID\tCOMMAND"

// Options 输出格式
type Options struct {
	NoHeadings bool // 不输出表头
	Raw        bool // 空格分隔，不对齐
	JSON       bool
}

// Namespaces 按 opts 输出命名空间列表
func Namespaces(w io.Writer, summaries []namespace.Summary, opts Options) error {
	if opts.JSON {
		return JSON(w, summaries)
	}
	return Table(w, summaries, opts)
}

// Table 输出命名空间表格
func Table(w io.Writer, summaries []namespace.Summary, opts Options) error {
	out := w
	var tw *tabwriter.Writer
	if !opts.Raw {
		tw = tabwriter.NewWriter(w, 12, 1, 3, ' ', 0)
		out = tw
	}
	sep := "\t"
	if opts.Raw {
		sep = " "
	}

	if !opts.NoHeadings {
		if _, err := fmt.Fprintln(out, strings.ReplaceAll(namespaceHeader, "\t", sep)); err != nil {
			return err
		}
	}
	for _, s := range summaries {
		_, err := fmt.Fprintf(out, "%d%s%s%s%d%s%d%s%d%s%s\n",
			s.ID, sep,
			s.Type, sep,
			s.MemberCount, sep,
			s.PID, sep,
			s.ParentPID, sep,
			DisplayCommand(s.CommandLine))
		if err != nil {
			return err
		}
	}
	if tw != nil {
		return tw.Flush()
	}
	return nil
}

type jsonNamespaces struct {
	Namespaces []namespace.Summary `json:"namespaces"`
}

// JSON 以 lsns -J 的结构输出
func JSON(w io.Writer, summaries []namespace.Summary) error {
	display := make([]namespace.Summary, len(summaries))
	for i, s := range summaries {
		s.CommandLine = DisplayCommand(s.CommandLine)
		display[i] = s
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "   ")
	return enc.Encode(jsonNamespaces{Namespaces: display})
}

// DisplayCommand cmdline 以 \0 分隔参数，显示时替换为空格并去掉末尾分隔符。
// 其余控制字符转义为 \xHH，避免破坏表格的行与列
func DisplayCommand(cmdline string) string {
	cmd := strings.TrimRight(strings.ReplaceAll(cmdline, "\x00", " "), " ")
	var b strings.Builder
	for _, r := range cmd {
		if r < 0x20 || r == 0x7f {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
