// Package latex extracts per-question answer text from raw LaTeX submissions.
package latex

import (
	"regexp"
	"strings"
)

var (
	sectionPattern = regexp.MustCompile(`(?i)\\section\*?\{(?:Q|Question|Problem)\s*(\d+)[^}]*\}`)

	fallbackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?mi)^\s*Q(\d+):?\s*`),
		regexp.MustCompile(`(?mi)^\s*Question\s+(\d+):?\s*`),
		regexp.MustCompile(`(?mi)^\s*Problem\s+(\d+):?\s*`),
		regexp.MustCompile(`(?m)^\s*(\d+)\.\s+`),
	}

	preamblePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\\documentclass.*$`),
		regexp.MustCompile(`(?m)^\\usepackage.*$`),
		regexp.MustCompile(`(?m)^\\title.*$`),
		regexp.MustCompile(`(?m)^\\author.*$`),
		regexp.MustCompile(`(?m)^\\date.*$`),
		regexp.MustCompile(`(?m)^\\maketitle.*$`),
		regexp.MustCompile(`\\begin\{document\}`),
		regexp.MustCompile(`\\end\{document\}`),
	}

	commentPattern = regexp.MustCompile(`(?m)(^|[^\\])%.*$`)
	// Inline commands whose argument should survive, e.g. \textbf{x} -> x.
	wrapperCommandPattern = regexp.MustCompile(`\\(?:textbf|textit|texttt|emph|underline|mathrm|mathbf|text)\{([^{}]*)\}`)
	bareCommandPattern    = regexp.MustCompile(`\\[a-zA-Z]+\*?(?:\[[^\]]*\])?`)
	multiBlankPattern     = regexp.MustCompile(`\n\s*\n+`)
	multiSpacePattern     = regexp.MustCompile(`[ \t]+`)
)

// Parse extracts a question-id -> answer-text mapping from raw LaTeX content.
// Section markers of the form \section{Q1}, \section{Question 1} or
// \section{Problem 1} delimit answers; when none are present a set of looser
// line-based markers is tried, and as a last resort the whole cleaned document
// becomes the answer to q1. Parse never fails: unparseable content degrades to
// fewer (or one) extracted answers.
func Parse(content string) map[string]string {
	cleaned := stripPreamble(content)

	if answers := extract(cleaned, sectionPattern); len(answers) > 0 {
		return answers
	}

	for _, pattern := range fallbackPatterns {
		if answers := extract(cleaned, pattern); len(answers) > 0 {
			return answers
		}
	}

	return map[string]string{"q1": toPlainText(cleaned)}
}

// ParseForRubric extracts answers and aligns them with the rubric's question
// ids: questions without a matching marker map to the empty string, and
// markers that are not rubric questions are dropped.
func ParseForRubric(content string, questionIDs []string) map[string]string {
	extracted := Parse(content)

	answers := make(map[string]string, len(questionIDs))
	for _, id := range questionIDs {
		answers[id] = extracted[id]
	}

	return answers
}

func extract(content string, pattern *regexp.Regexp) map[string]string {
	matches := pattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	answers := make(map[string]string, len(matches))
	for i, match := range matches {
		questionNum := content[match[2]:match[3]]
		start := match[1]
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		answers["q"+questionNum] = toPlainText(content[start:end])
	}

	return answers
}

func stripPreamble(content string) string {
	for _, pattern := range preamblePatterns {
		content = pattern.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(content)
}

// toPlainText performs a rough LaTeX-to-text conversion: comments go away,
// wrapper commands keep their argument, remaining commands are dropped and
// whitespace is collapsed.
func toPlainText(fragment string) string {
	text := commentPattern.ReplaceAllString(fragment, "$1")

	// Unwrap nested wrappers from the inside out.
	for i := 0; i < 5; i++ {
		replaced := wrapperCommandPattern.ReplaceAllString(text, "$1")
		if replaced == text {
			break
		}
		text = replaced
	}

	text = bareCommandPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer("{", "", "}", "", "$", "", "~", " ").Replace(text)
	text = multiSpacePattern.ReplaceAllString(text, " ")
	text = multiBlankPattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
