package export

import (
	"bufio"
	"strings"

	"github.com/franz/gg-curator/internal/store"
)

const (
	blockBegin = "BEGIN\n"
	blockEnd   = "END\n\n"
	// Downstream loaders expect an empty warning line right before the
	// sequence, whether or not there is anything to warn about.
	warningLine = "warning=\n"
)

// writeBlock renders one record as a BEGIN/key=value/END block
func writeBlock(w *bufio.Writer, row store.ExportRow) error {
	if _, err := w.WriteString(blockBegin); err != nil {
		return err
	}
	for _, f := range row.Fields {
		if f.Key == store.SequenceKey {
			if _, err := w.WriteString(warningLine); err != nil {
				return err
			}
		}
		w.WriteString(f.Key)
		w.WriteByte('=')
		if f.Value != nil {
			w.WriteString(*f.Value)
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	_, err := w.WriteString(blockEnd)
	return err
}

// RenderBlock returns the block text of one record
func RenderBlock(row store.ExportRow) string {
	var sb strings.Builder
	w := bufio.NewWriter(&sb)
	writeBlock(w, row)
	w.Flush()
	return sb.String()
}

// SplitBlocks splits concatenated export text back into blocks, each
// including its trailing blank line.
func SplitBlocks(text string) []string {
	var blocks []string
	for len(text) > 0 {
		i := strings.Index(text, blockEnd)
		if i < 0 {
			blocks = append(blocks, text)
			break
		}
		blocks = append(blocks, text[:i+len(blockEnd)])
		text = text[i+len(blockEnd):]
	}
	return blocks
}
