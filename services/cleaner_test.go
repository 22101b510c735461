package services

import (
	"strings"
	"testing"

	"property-scraper/utils"
)

func TestCleanHTMLStripsNoise(t *testing.T) {
	page := `<html><head>
<meta charset="utf-8"><link rel="stylesheet" href="/a.css">
<style>body{color:red}</style><script>track()</script>
</head><body>
<h1>House</h1>
<svg><path d="M0"/></svg><noscript>enable js</noscript>


<div aria-label="Property description text">line one<br>line two</div>
</body></html>`

	out, err := NewCleaner(utils.NewNopLogger()).CleanHTML([]byte(page))
	if err != nil {
		t.Fatalf("CleanHTML: %v", err)
	}
	for _, gone := range []string{"<script", "<style", "<meta", "<link", "<svg", "<noscript", "track()"} {
		if strings.Contains(out, gone) {
			t.Errorf("CleanHTML kept %q:\n%s", gone, out)
		}
	}
	if !strings.Contains(out, "<h1>House</h1>") {
		t.Errorf("CleanHTML dropped content:\n%s", out)
	}
	if !strings.Contains(out, "line one\nline two") {
		t.Errorf("CleanHTML did not turn <br> into a newline:\n%s", out)
	}
	if strings.Contains(out, "\n\n") {
		t.Errorf("CleanHTML left blank lines:\n%s", out)
	}
}

func TestNormaliseText(t *testing.T) {
	if got := normaliseText("  DHA   Phase\n5 \t"); got != "DHA Phase 5" {
		t.Errorf("normaliseText: got %q", got)
	}
}
