package extraction

import (
	"strings"
	"testing"
)

func TestRenderTemplate(t *testing.T) {
	r := RenderTemplate("olá {{A}} {{B}}", map[string]string{
		"A": "um",
		"B": "dois",
	})
	if r != "olá um dois" {
		t.Fatalf("unexpected render result: %s", r)
	}
}

func TestBuildPrompts(t *testing.T) {
	base := BuildBaseUserPrompt("{schema}")
	for _, p := range []string{"{schema}", "CPF", "omita-o"} {
		if !strings.Contains(base, p) {
			t.Fatalf("base prompt missing expected text %q", p)
		}
	}
	repair := BuildRepairUserPrompt("{schema}", `{"bad":1}`)
	if !strings.Contains(repair, `{"bad":1}`) || strings.Contains(repair, "{{") {
		t.Fatalf("unexpected repair prompt: %s", repair)
	}
}
