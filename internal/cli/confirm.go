package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/rel-k8s/relctl/internal/teardown"
)

// terminalConfirmer answers destructive-action prompts from an input
// stream. The namespace prompt is deliberately stronger: it requires
// typing the namespace name back, not just "y".
type terminalConfirmer struct {
	in  *bufio.Scanner
	out io.Writer
}

func newTerminalConfirmer(in io.Reader, out io.Writer) *terminalConfirmer {
	return &terminalConfirmer{in: bufio.NewScanner(in), out: out}
}

// Confirm implements teardown.Confirmer.
func (c *terminalConfirmer) Confirm(kind teardown.PromptKind, subject string) (bool, error) {
	switch kind {
	case teardown.PromptNamespace:
		fmt.Fprintf(c.out, "WARNING: this deletes namespace %q and EVERYTHING in it, including data.\n", subject)
		fmt.Fprintf(c.out, "Type the namespace name to continue: ")
		line, err := c.readLine()
		if err != nil {
			return false, err
		}
		return line == subject, nil
	default:
		fmt.Fprintf(c.out, "Uninstall release %q? [y/N]: ", subject)
		line, err := c.readLine()
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(line)
		return answer == "y" || answer == "yes", nil
	}
}

func (c *terminalConfirmer) readLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		// EOF on stdin counts as a declined prompt.
		return "", nil
	}
	return strings.TrimSpace(c.in.Text()), nil
}
