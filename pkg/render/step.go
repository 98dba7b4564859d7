// Package render turns a raw model response into the step shown in the tutor panel:
// the first fenced code block becomes the step's code and everything else becomes the
// explanation.
package render

import (
	"regexp"
	"strings"
)

const DefaultLanguage = "text"

var (
	fencedBlockRegexp = regexp.MustCompile("```(\\w+)?\\n([\\s\\S]*?)```")
	paragraphRegexp   = regexp.MustCompile(`\n\n+`)
)

type CodeBlock struct {
	Language string `json:"language" yaml:"language"`
	Code     string `json:"code" yaml:"code"`
}

// Step is one rendered model response.
type Step struct {
	Number      int      `json:"number" yaml:"number"`
	Code        string   `json:"code" yaml:"code"`
	Language    string   `json:"language" yaml:"language"`
	HasCode     bool     `json:"hasCode" yaml:"has_code"`
	Explanation string   `json:"explanation" yaml:"explanation"`
	Paragraphs  []string `json:"paragraphs" yaml:"paragraphs"`
}

// ParseCodeBlocks returns every fenced block of the response in order. Blocks without a
// language tag get DefaultLanguage. Code is trimmed.
func ParseCodeBlocks(response string) []CodeBlock {
	var blocks []CodeBlock
	for _, m := range fencedBlockRegexp.FindAllStringSubmatch(response, -1) {
		language := m[1]
		if language == "" {
			language = DefaultLanguage
		}
		blocks = append(blocks, CodeBlock{
			Language: language,
			Code:     strings.TrimSpace(m[2]),
		})
	}
	return blocks
}

// StripCodeBlocks removes all fenced blocks and trims the result. Whitespace between the
// remaining pieces is left alone.
func StripCodeBlocks(response string) string {
	return strings.TrimSpace(fencedBlockRegexp.ReplaceAllString(response, ""))
}

// SplitParagraphs splits on runs of two or more newlines.
func SplitParagraphs(explanation string) []string {
	return paragraphRegexp.Split(explanation, -1)
}

// Parse builds step number `number` from a model response. Only the first code block
// is shown; extra blocks are dropped from the explanation but not displayed.
func Parse(number int, response string) Step {
	step := Step{
		Number:      number,
		Explanation: StripCodeBlocks(response),
	}
	if blocks := ParseCodeBlocks(response); len(blocks) > 0 {
		step.Code = blocks[0].Code
		step.Language = blocks[0].Language
		step.HasCode = true
	}
	step.Paragraphs = SplitParagraphs(step.Explanation)
	return step
}
