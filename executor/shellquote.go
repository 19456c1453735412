package executor

import "strings"

// quoteArg wraps an argument in single quotes for safe inclusion in a
// remote shell command line, escaping any single quotes it contains.
func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// quoteArgv joins argv into a single shell-quoted command line, suitable
// for passing as the trailing argument to `ssh user@host <command>`.
func quoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}
