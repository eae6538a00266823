package speech

import "regexp"

var pausePattern = regexp.MustCompile(`(\.\.\.|[!?:,])`)

// InsertPauses appends a space after sentence and clause punctuation
// (`...`, `!`, `?`, `:`, `,`) so the platform engine breathes at clause
// boundaries. Text containing none of the marks passes through unchanged.
//
// The transform is pure but NOT idempotent: applying it to its own output
// widens the spacing further. It is meant for a single application per
// utterance, which is what the local adapter does.
func InsertPauses(text string) string {
	return pausePattern.ReplaceAllString(text, "$1 ")
}
