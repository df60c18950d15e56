package utils

import "github.com/kballard/go-shellquote"

// TokenizeCommand splits an interactive command line into tokens, honoring
// shell-style quoting so values may contain spaces.
func TokenizeCommand(line string) ([]string, error) {
	return shellquote.Split(line)
}
