package main

import (
	"os"
	"strconv"
	"strings"

	"bibedit-cli/internal/cli"
)

// isRecordArg reports whether s names a record: a positive id or a
// navigation token.
func isRecordArg(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#state=") {
		return true
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// rewriteDirectRecordArgs makes `bibedit <recid>` work like `bibedit edit <recid>`.
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten
// before parsing. Persistent flags may come first, so the first positional
// token is located rather than assumed to be argv[1].
func rewriteDirectRecordArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config":    true,
		"--dir":       true,
		"--url":       true,
		"--user":      true,
		"--format":    true,
		"--log-level": true,
	}

	insertEdit := func(i int) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "edit")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isRecordArg(argv[i+1]) {
				return insertEdit(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") {
				continue
			}
			if valueFlags[a] {
				i++ // skip value if present
			}
			continue
		}
		if isRecordArg(a) {
			return insertEdit(i)
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectRecordArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
