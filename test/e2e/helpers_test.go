//go:build e2e

package e2e

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// nliPredictions builds n tab-separated NLI prediction lines with varying
// sentence lengths; every fourth example is mispredicted.
func nliPredictions(n int) string {
	words := []string{"the", "cat", "sat", "on", "a", "mat", "while", "dogs", "ran", "outside"}
	labels := []string{"entailment", "neutral", "contradiction"}
	var b strings.Builder
	for i := 0; i < n; i++ {
		a := strings.Join(words[:2+i%8], " ")
		h := strings.Join(words[:1+(i*3)%6], " ")
		gold := labels[i%3]
		pred := gold
		if i%4 == 0 {
			pred = labels[(i+1)%3]
		}
		prob := 0.55 + float64(i%9)*0.05
		b.WriteString(a + "\t" + h + "\t" + gold + "\t" + pred + "\t" + strconv.FormatFloat(prob, 'f', 2, 64) + "\n")
	}
	return b.String()
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
