package taxonomy

import (
	"regexp"
	"strings"
)

// Translation is the human-facing text for a rule code.
type Translation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Fix         string `json:"fix"`
}

const (
	unknownDescription = "Unknown accessibility issue detected on this element."
	genericFix         = "Review the relevant WCAG success criterion for remediation guidance."
)

// curated holds hand-written translations for the rule codes audits hit
// most often. Keys are full engine rule codes.
var curated = map[string]Translation{
	"WCAG2AA.Principle1.Guideline1_1.1_1_1.H37": {
		Title:       "Images missing alternative text",
		Description: "One or more images have no alt attribute, so screen reader users get no information about them.",
		Fix:         "Add an alt attribute to every img element. Use alt=\"\" for purely decorative images.",
	},
	"WCAG2AA.Principle1.Guideline1_1.1_1_1.H67.1": {
		Title:       "Decorative image has a title but empty alt",
		Description: "An image with an empty alt attribute also carries a title, which screen readers may still announce.",
		Fix:         "Remove the title attribute from decorative images, or give the image meaningful alt text.",
	},
	"WCAG2AA.Principle1.Guideline1_3.1_3_1.F68": {
		Title:       "Form fields without labels",
		Description: "Form inputs are not programmatically associated with a label, so assistive technology cannot name them.",
		Fix:         "Wrap each input in a label element or link them with for/id attributes.",
	},
	"WCAG2AA.Principle1.Guideline1_4.1_4_3.G18.Fail": {
		Title:       "Insufficient text contrast",
		Description: "Text color does not reach the 4.5:1 contrast ratio against its background, making it hard to read for low-vision users.",
		Fix:         "Darken the text or lighten the background until the ratio reaches at least 4.5:1.",
	},
	"WCAG2AA.Principle1.Guideline1_4.1_4_3.G145.Fail": {
		Title:       "Insufficient large-text contrast",
		Description: "Large text does not reach the 3:1 contrast ratio against its background.",
		Fix:         "Adjust foreground or background color until large text reaches at least 3:1.",
	},
	"WCAG2AA.Principle2.Guideline2_4.2_4_1.H64.1": {
		Title:       "Iframe missing a title",
		Description: "An iframe has no title attribute, so screen reader users cannot tell what the embedded content is.",
		Fix:         "Add a title attribute to every iframe describing its content.",
	},
	"WCAG2AA.Principle2.Guideline2_4.2_4_2.H25.1.NoTitleEl": {
		Title:       "Page has no title",
		Description: "The document head contains no title element, leaving browser tabs and screen readers with nothing to announce.",
		Fix:         "Add a concise, descriptive title element to the document head.",
	},
	"WCAG2AA.Principle3.Guideline3_1.3_1_1.H57.2": {
		Title:       "Page language not declared",
		Description: "The html element has no valid lang attribute, so screen readers may read the page with the wrong pronunciation rules.",
		Fix:         "Add a lang attribute to the html element, e.g. lang=\"en\".",
	},
	"WCAG2AA.Principle4.Guideline4_1.4_1_1.F77": {
		Title:       "Duplicate element IDs",
		Description: "Multiple elements share the same id value, which breaks label associations and ARIA references.",
		Fix:         "Make every id attribute unique within the page.",
	},
	"WCAG2AA.Principle4.Guideline4_1.4_1_2.H91.A.EmptyNoId": {
		Title:       "Empty link",
		Description: "A link contains no text and no accessible name, so keyboard and screen reader users cannot tell where it goes.",
		Fix:         "Give every link visible text or an aria-label describing its destination.",
	},
	"WCAG2AA.Principle4.Guideline4_1.4_1_2.H91.Button.Name": {
		Title:       "Button without an accessible name",
		Description: "A button element has no text content or accessible name.",
		Fix:         "Add visible text or an aria-label to the button.",
	},
}

// codePrefix strips the standard name plus the principle/guideline/
// criterion segments, leaving only the technique suffix.
var codePrefix = regexp.MustCompile(`^[A-Za-z0-9]+\.Principle\d+\.Guideline\d+_\d+\.\d+_\d+_\d+\.`)

// StripCode removes the guideline hierarchy prefix from a rule code,
// e.g. "WCAG2AA.Principle1.Guideline1_1.1_1_1.H37" becomes "H37".
func StripCode(code string) string {
	return codePrefix.ReplaceAllString(code, "")
}

// Translate resolves human-facing text for a rule code. Resolution never
// fails: curated entry, then the external dictionary, then placeholders.
func Translate(code string, dict Dictionary) Translation {
	if t, ok := curated[code]; ok {
		return t
	}

	description := unknownDescription
	if d, ok := dict[code]; ok && strings.TrimSpace(d) != "" {
		description = strings.TrimSpace(d)
	}

	title := ""
	if len(description) > 10 && description != unknownDescription {
		title = firstSentence(description)
	}
	if title == "" {
		title = StripCode(code)
	}

	return Translation{
		Title:       title,
		Description: description,
		Fix:         genericFix,
	}
}

func firstSentence(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
